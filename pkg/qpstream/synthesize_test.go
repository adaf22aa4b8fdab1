package qpstream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortConfig has 20 samples and, with a 0.5 usec fall time, 5-sample pulses.
func shortConfig(t *testing.T, wavelengths []float64) SimulationConfig {
	t.Helper()
	cfg := mustConfig(t, 1e6, 2e-5, wavelengths, 9)
	require.Equal(t, 20, cfg.SampleCount())
	return cfg
}

func maskAt(n int, idx ...int) ArrivalMask {
	m := make(ArrivalMask, n)
	for _, i := range idx {
		m[i] = true
	}
	return m
}

func TestSynthesizeOverwritesOverlap(t *testing.T) {
	cfg := shortConfig(t, []float64{404, 808, 1616})
	const i = 3

	syn, err := Synthesize(cfg, NewSource(cfg.Seed()), maskAt(20, i, i+1), 0.5)
	require.NoError(t, err)
	require.Equal(t, 5, syn.PulseLength)
	require.Len(t, syn.Arrivals, 2)

	first, err := GeneratePulse(0.5, 1e6, syn.Arrivals[0].WavelengthNM)
	require.NoError(t, err)
	second, err := GeneratePulse(0.5, 1e6, syn.Arrivals[1].WavelengthNM)
	require.NoError(t, err)

	assert.Equal(t, first.Values[0], syn.Timestream[i])
	// The second pulse owns [i+1, i+6) outright; nothing is summed.
	assert.Equal(t, second.Values, []float64(syn.Timestream[i+1:i+6]))
	assert.Equal(t, 0.0, syn.Timestream[i+6])
}

func TestSynthesizeSkipsTailArrivals(t *testing.T) {
	cfg := shortConfig(t, []float64{808})

	// Starts are allowed below 20-5=15.
	syn, err := Synthesize(cfg, NewSource(cfg.Seed()), maskAt(20, 14, 15, 19), 0.5)
	require.NoError(t, err)

	require.Len(t, syn.Arrivals, 1)
	assert.Equal(t, 14, syn.Arrivals[0].Index)
	assert.Equal(t, 2, syn.Skipped)
	require.Len(t, syn.Advisories, 1)
	assert.Equal(t, AdvisoryTailArrivalsSkipped, syn.Advisories[0].Kind)

	expected, err := GeneratePulse(0.5, 1e6, 808)
	require.NoError(t, err)
	assert.Equal(t, expected.Values, []float64(syn.Timestream[14:19]))
	assert.Equal(t, 0.0, syn.Timestream[19])
	for j := 0; j < 14; j++ {
		assert.Equal(t, 0.0, syn.Timestream[j])
	}
}

func TestSynthesizePulseLongerThanBuffer(t *testing.T) {
	cfg := shortConfig(t, []float64{808})

	// 30 usec pulses are 300 samples long, far beyond the 20-sample buffer.
	syn, err := Synthesize(cfg, NewSource(cfg.Seed()), maskAt(20, 0, 5), 30)
	require.NoError(t, err)

	assert.Empty(t, syn.Arrivals)
	assert.Equal(t, 2, syn.Skipped)
	assert.Equal(t, make(Timestream, 20), syn.Timestream)
}

func TestSynthesizeEmptyMask(t *testing.T) {
	cfg := shortConfig(t, []float64{808})

	syn, err := Synthesize(cfg, NewSource(cfg.Seed()), make(ArrivalMask, 20), 0.5)
	require.NoError(t, err)
	assert.Equal(t, make(Timestream, 20), syn.Timestream)
	assert.Empty(t, syn.Advisories)
}

func TestSynthesizeMaskLengthMismatch(t *testing.T) {
	cfg := shortConfig(t, []float64{808})

	syn, err := Synthesize(cfg, NewSource(cfg.Seed()), make(ArrivalMask, 19), 0.5)
	assert.Nil(t, syn)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "arrival_mask", cfgErr.Field)
}

func TestSynthesizeDegeneratePulse(t *testing.T) {
	cfg := shortConfig(t, []float64{808})

	syn, err := Synthesize(cfg, NewSource(cfg.Seed()), maskAt(20, 2), 0.01)
	assert.Nil(t, syn)
	var degenerate *DegeneratePulseError
	assert.True(t, errors.As(err, &degenerate))
}

func TestSynthesizeConsumesOneDrawPerInjection(t *testing.T) {
	cfg := shortConfig(t, []float64{404, 808, 1310, 1550})

	// Skipped tail arrivals must not consume wavelength draws.
	a, err := Synthesize(cfg, NewSource(1), maskAt(20, 2, 9, 17, 18), 0.5)
	require.NoError(t, err)
	b, err := Synthesize(cfg, NewSource(1), maskAt(20, 2, 9), 0.5)
	require.NoError(t, err)

	assert.Equal(t, b.Arrivals, a.Arrivals)
	assert.Equal(t, b.Timestream, a.Timestream)
}
