package qpstream

// Timestream is the synthesized quasiparticle density perturbation, one value
// per sample, relative to the dark baseline.
type Timestream []float64

// Arrival is the ground truth for one injected photon.
type Arrival struct {
	Index        int     `json:"index"`
	TimeSec      float64 `json:"time_sec"`
	WavelengthNM float64 `json:"wavelength_nm"`
	Amplitude    float64 `json:"amplitude"`
}

// Synthesis is the outcome of one injection pass.
type Synthesis struct {
	Timestream  Timestream
	PulseLength int
	Arrivals    []Arrival
	Skipped     int
	Advisories  []Advisory
}

// Synthesize walks mask in index order and, at every marked sample, writes a
// freshly generated pulse into a zeroed buffer starting at that sample.
//
// Overlapping pulses are not summed: the later pulse overwrites the tail of
// the earlier one. New pulses start only at indices below
// SampleCount()-PulseLength, so no pulse is ever truncated; marked samples in
// that tail are skipped without drawing a wavelength and counted in Skipped.
func Synthesize(cfg SimulationConfig, src *Source, mask ArrivalMask, fallTimeUsec float64) (*Synthesis, error) {
	n := cfg.SampleCount()
	if len(mask) != n {
		return nil, &ConfigurationError{Field: "arrival_mask", Value: len(mask), Reason: "length must equal the sample count"}
	}
	gen, err := NewPulseGenerator(cfg, src, fallTimeUsec)
	if err != nil {
		return nil, err
	}

	buf := make(Timestream, n)
	length := gen.Length()
	limit := n - length

	var arrivals []Arrival
	for i := 0; i < limit; i++ {
		if !mask[i] {
			continue
		}
		pulse, err := gen.Next()
		if err != nil {
			return nil, err
		}
		copy(buf[i:i+length], pulse.Values)
		arrivals = append(arrivals, Arrival{
			Index:        i,
			TimeSec:      float64(i) / cfg.SampleRateHz(),
			WavelengthNM: pulse.WavelengthNM,
			Amplitude:    pulse.Amplitude,
		})
	}

	syn := &Synthesis{
		Timestream:  buf,
		PulseLength: length,
		Arrivals:    arrivals,
	}
	if limit < 0 {
		limit = 0
	}
	for _, v := range mask[limit:] {
		if v {
			syn.Skipped++
		}
	}
	if syn.Skipped > 0 {
		syn.Advisories = append(syn.Advisories, tailSkippedAdvisory(syn.Skipped, length))
	}
	return syn, nil
}
