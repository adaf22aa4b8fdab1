// Package qpstream synthesizes quasiparticle density timestreams for a
// superconducting photon detector.
//
// Photon arrivals are drawn per sample from a Poisson process. Each arrival
// injects an exponentially decaying pulse whose amplitude scales as
// 808 nm / wavelength, with the wavelength drawn uniformly from a discrete
// set. All randomness comes from one seeded Source owned by a Session, so a
// run is exactly reproducible from its configuration.
//
//	cfg, err := qpstream.NewSimulationConfig(1e6, 1e-3, []float64{808}, 3)
//	if err != nil {
//		return err
//	}
//	res, err := qpstream.NewSession(cfg).Run(qpstream.RunParams{FallTimeUsec: 30, CountRateHz: 500})
package qpstream
