package qpstream

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ReferenceWavelengthNM is the calibration wavelength that produces a unit
// peak amplitude. Shorter wavelengths scale the amplitude up proportionally.
const ReferenceWavelengthNM = 808.0

// pulseSpanFallTimes is how many fall times a template covers.
const pulseSpanFallTimes = 10.0

// maxPulseLength is the largest sample count exactly representable as a float64.
const maxPulseLength = 1 << 53

// PulseTemplate is one photon's contribution to the timestream.
type PulseTemplate struct {
	WavelengthNM float64   `json:"wavelength_nm"`
	Amplitude    float64   `json:"amplitude"`
	FallTimeUsec float64   `json:"fall_time_usec"`
	Values       []float64 `json:"values"`
	TimeUsec     []float64 `json:"time_usec"`
}

// Len returns the number of samples in the template.
func (p *PulseTemplate) Len() int {
	return len(p.Values)
}

// Peak returns the largest value of the template.
func (p *PulseTemplate) Peak() float64 {
	return floats.Max(p.Values)
}

// Amplitude returns the peak amplitude of a photon at wavelengthNM.
func Amplitude(wavelengthNM float64) float64 {
	return ReferenceWavelengthNM / wavelengthNM
}

// PulseLength returns the number of samples a template occupies: the floor of
// sample rate * 10 * fall time. It depends only on the fall time and the
// sample rate, never on the wavelength, which is what lets the synthesizer
// bound its scan before any wavelength is drawn.
func PulseLength(fallTimeUsec, sampleRateHz float64) (int, error) {
	if !positiveFinite(fallTimeUsec) {
		return 0, &ConfigurationError{Field: "fall_time_usec", Value: fallTimeUsec, Reason: "must be positive"}
	}
	if !positiveFinite(sampleRateHz) {
		return 0, &ConfigurationError{Field: "sample_rate_hz", Value: sampleRateHz, Reason: "must be positive"}
	}

	// Multiply before converting from usec so whole-number inputs stay exact.
	span := math.Floor(sampleRateHz * pulseSpanFallTimes * fallTimeUsec / 1e6)
	if span > maxPulseLength {
		return 0, &ConfigurationError{Field: "fall_time_usec", Value: fallTimeUsec, Reason: fmt.Sprintf("pulse length %g samples is not representable", span)}
	}
	n := int(span)
	if n < 1 {
		return 0, &DegeneratePulseError{FallTimeUsec: fallTimeUsec, SampleRateHz: sampleRateHz}
	}
	return n, nil
}

// GeneratePulse builds the template amplitude*exp(-t/fall time) for a photon
// of wavelengthNM. The time axis runs from 0 to 10 fall times inclusive, so
// the last value is amplitude*e^-10.
func GeneratePulse(fallTimeUsec, sampleRateHz, wavelengthNM float64) (*PulseTemplate, error) {
	if !positiveFinite(wavelengthNM) {
		return nil, &ConfigurationError{Field: "wavelength_nm", Value: wavelengthNM, Reason: "must be positive"}
	}
	n, err := PulseLength(fallTimeUsec, sampleRateHz)
	if err != nil {
		return nil, err
	}

	t := make([]float64, n)
	if n > 1 {
		floats.Span(t, 0, pulseSpanFallTimes*fallTimeUsec)
	}

	values := make([]float64, n)
	for i, ti := range t {
		values[i] = math.Exp(-ti / fallTimeUsec)
	}
	amp := Amplitude(wavelengthNM)
	floats.Scale(amp, values)

	return &PulseTemplate{
		WavelengthNM: wavelengthNM,
		Amplitude:    amp,
		FallTimeUsec: fallTimeUsec,
		Values:       values,
		TimeUsec:     t,
	}, nil
}

// PulseGenerator draws a wavelength from the configured set for every pulse
// it builds, using the session source.
type PulseGenerator struct {
	cfg          SimulationConfig
	src          *Source
	fallTimeUsec float64
	length       int
}

// NewPulseGenerator validates the fall time against the config.
func NewPulseGenerator(cfg SimulationConfig, src *Source, fallTimeUsec float64) (*PulseGenerator, error) {
	n, err := PulseLength(fallTimeUsec, cfg.SampleRateHz())
	if err != nil {
		return nil, err
	}
	return &PulseGenerator{cfg: cfg, src: src, fallTimeUsec: fallTimeUsec, length: n}, nil
}

// Length is the sample count of every template this generator builds.
func (g *PulseGenerator) Length() int {
	return g.length
}

// Next draws a wavelength and returns a fresh template for it. Every template
// has exactly Length() samples.
func (g *PulseGenerator) Next() (*PulseTemplate, error) {
	wl := g.src.ChooseWavelength(g.cfg.wavelengthsNM)
	pulse, err := GeneratePulse(g.fallTimeUsec, g.cfg.SampleRateHz(), wl)
	if err != nil {
		return nil, err
	}
	if pulse.Len() != g.length {
		return nil, fmt.Errorf("qpstream: %g nm pulse has %d samples, want %d", wl, pulse.Len(), g.length)
	}
	return pulse, nil
}
