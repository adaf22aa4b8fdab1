package spectral

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func sine(n int, freq, fs, amp float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return x
}

func TestWelchSinePeak(t *testing.T) {
	const fs = 1000.0
	psd, err := Welch(sine(4096, 50, fs, 1), fs, WelchOptions{})
	require.NoError(t, err)

	assert.Len(t, psd.Frequencies, DefaultSegmentLength/2+1)
	assert.Len(t, psd.Power, DefaultSegmentLength/2+1)
	assert.Equal(t, 0.0, psd.Frequencies[0])
	assert.InDelta(t, fs/2, psd.Frequencies[len(psd.Frequencies)-1], 1e-9)

	binWidth := fs / DefaultSegmentLength
	assert.InDelta(t, 50, psd.PeakFrequency(), binWidth)
	// 50% overlap: (4096-256)/128 + 1 segments.
	assert.Equal(t, 31, psd.Segments)
}

func TestWelchWhiteNoiseIntegratesToVariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	x := make([]float64, 1<<15)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	const fs = 2048.0

	psd, err := Welch(x, fs, WelchOptions{SegmentLength: 512})
	require.NoError(t, err)

	df := psd.Frequencies[1] - psd.Frequencies[0]
	total := floats.Sum(psd.Power) * df
	assert.InDelta(t, stat.Variance(x, nil), total, 0.15)
}

func TestWelchRemovesMean(t *testing.T) {
	x := make([]float64, 512)
	for i := range x {
		x[i] = 3
	}
	psd, err := Welch(x, 100, WelchOptions{})
	require.NoError(t, err)
	for _, p := range psd.Power {
		assert.InDelta(t, 0, p, 1e-20)
	}
}

func TestWelchShortSignalClipsSegment(t *testing.T) {
	psd, err := Welch(sine(100, 5, 100, 1), 100, WelchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, psd.Segments)
	assert.Len(t, psd.Power, 51)
}

func TestWelchErrors(t *testing.T) {
	_, err := Welch([]float64{1}, 100, WelchOptions{})
	assert.ErrorIs(t, err, ErrShortSignal)

	_, err = Welch(make([]float64, 10), 0, WelchOptions{})
	assert.ErrorIs(t, err, ErrSampleRate)

	_, err = Welch(make([]float64, 10), 10, WelchOptions{SegmentLength: 8, Overlap: 8})
	assert.Error(t, err)
}

func TestPeriodicHann(t *testing.T) {
	const n = 8
	win := periodicHann(n)
	require.Len(t, win, n)
	for i, w := range win {
		assert.InDelta(t, 0.5-0.5*math.Cos(2*math.Pi*float64(i)/n), w, 1e-12, "sample %d", i)
	}
	assert.Equal(t, 0.0, win[0])
	assert.InDelta(t, 1, win[n/2], 1e-12)
}
