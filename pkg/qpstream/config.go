package qpstream

import "math"

// SimulationConfig holds the immutable parameters of a simulation. Build it
// with NewSimulationConfig so the invariants below always hold:
//   - SampleRateHz and DurationSec are positive and finite
//   - WavelengthsNM is non-empty and every entry is positive and finite
//   - SampleCount() >= 1
type SimulationConfig struct {
	sampleRateHz  float64
	durationSec   float64
	wavelengthsNM []float64
	seed          int64
}

// NewSimulationConfig validates the parameters and returns a config.
// The wavelength slice is copied; later changes by the caller are not seen.
func NewSimulationConfig(sampleRateHz, durationSec float64, wavelengthsNM []float64, seed int64) (SimulationConfig, error) {
	if !positiveFinite(sampleRateHz) {
		return SimulationConfig{}, &ConfigurationError{Field: "sample_rate_hz", Value: sampleRateHz, Reason: "must be positive"}
	}
	if !positiveFinite(durationSec) {
		return SimulationConfig{}, &ConfigurationError{Field: "duration_sec", Value: durationSec, Reason: "must be positive"}
	}
	if len(wavelengthsNM) == 0 {
		return SimulationConfig{}, &ConfigurationError{Field: "wavelengths_nm", Value: wavelengthsNM, Reason: "must not be empty"}
	}
	for _, wl := range wavelengthsNM {
		if !positiveFinite(wl) {
			return SimulationConfig{}, &ConfigurationError{Field: "wavelengths_nm", Value: wl, Reason: "every wavelength must be positive"}
		}
	}

	cfg := SimulationConfig{
		sampleRateHz:  sampleRateHz,
		durationSec:   durationSec,
		wavelengthsNM: append([]float64(nil), wavelengthsNM...),
		seed:          seed,
	}
	if cfg.SampleCount() < 1 {
		return SimulationConfig{}, &ConfigurationError{Field: "duration_sec", Value: durationSec, Reason: "shorter than one sample period"}
	}
	return cfg, nil
}

// SampleRateHz returns the sample rate in Hz.
func (c SimulationConfig) SampleRateHz() float64 { return c.sampleRateHz }

// DurationSec returns the run length in seconds.
func (c SimulationConfig) DurationSec() float64 { return c.durationSec }

// Seed returns the seed of the session random stream.
func (c SimulationConfig) Seed() int64 { return c.seed }

// WavelengthsNM returns a copy of the allowed wavelength set, in nm.
func (c SimulationConfig) WavelengthsNM() []float64 {
	return append([]float64(nil), c.wavelengthsNM...)
}

// SampleCount is floor(duration * sample rate).
func (c SimulationConfig) SampleCount() int {
	return int(math.Floor(c.durationSec * c.sampleRateHz))
}

// SamplePeriodSec is the spacing of the time grid.
func (c SimulationConfig) SamplePeriodSec() float64 {
	return 1 / c.sampleRateHz
}

// TimeGrid returns index/sample rate for every sample, in seconds.
func (c SimulationConfig) TimeGrid() []float64 {
	n := c.SampleCount()
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = float64(i) / c.sampleRateHz
	}
	return grid
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
