// Package spectral estimates power spectral densities of sampled signals.
package spectral

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultSegmentLength matches scipy.signal.welch.
const DefaultSegmentLength = 256

var (
	// ErrShortSignal is returned for signals with fewer than two samples.
	ErrShortSignal = errors.New("spectral: signal needs at least two samples")

	// ErrSampleRate is returned for a non-positive sample rate.
	ErrSampleRate = errors.New("spectral: sample rate must be positive")
)

// WelchOptions tunes the estimate. Zero values select the defaults: 256-sample
// segments (clipped to the signal length) overlapping by half.
type WelchOptions struct {
	SegmentLength int
	Overlap       int
}

// PSD is a one-sided power spectral density in units^2/Hz.
type PSD struct {
	SampleRateHz float64   `json:"sample_rate_hz"`
	Segments     int       `json:"segments"`
	Frequencies  []float64 `json:"frequencies_hz"`
	Power        []float64 `json:"power"`
}

// PeakFrequency returns the frequency of the largest power bin.
func (p *PSD) PeakFrequency() float64 {
	return p.Frequencies[floats.MaxIdx(p.Power)]
}

// Welch averages Hann-windowed, mean-removed periodograms of overlapping
// segments of x.
func Welch(x []float64, sampleRateHz float64, opts WelchOptions) (*PSD, error) {
	if len(x) < 2 {
		return nil, ErrShortSignal
	}
	if sampleRateHz <= 0 {
		return nil, ErrSampleRate
	}

	nperseg := opts.SegmentLength
	if nperseg <= 0 {
		nperseg = DefaultSegmentLength
	}
	if nperseg > len(x) {
		nperseg = len(x)
	}
	if nperseg < 2 {
		return nil, ErrShortSignal
	}
	noverlap := opts.Overlap
	if noverlap <= 0 {
		noverlap = nperseg / 2
	}
	if noverlap >= nperseg {
		return nil, fmt.Errorf("spectral: overlap %d must be smaller than segment length %d", noverlap, nperseg)
	}

	win := periodicHann(nperseg)
	scale := 1 / (sampleRateHz * floats.Dot(win, win))

	fft := fourier.NewFFT(nperseg)
	nfreq := nperseg/2 + 1
	power := make([]float64, nfreq)
	seg := make([]float64, nperseg)
	coeffs := make([]complex128, nfreq)

	segments := 0
	for start := 0; start+nperseg <= len(x); start += nperseg - noverlap {
		copy(seg, x[start:start+nperseg])
		mean := stat.Mean(seg, nil)
		for i := range seg {
			seg[i] = (seg[i] - mean) * win[i]
		}
		coeffs = fft.Coefficients(coeffs, seg)
		for k, c := range coeffs {
			p := (real(c)*real(c) + imag(c)*imag(c)) * scale
			// Fold negative frequencies in, except DC and Nyquist.
			if k > 0 && !(nperseg%2 == 0 && k == nfreq-1) {
				p *= 2
			}
			power[k] += p
		}
		segments++
	}
	floats.Scale(1/float64(segments), power)

	freqs := make([]float64, nfreq)
	for k := range freqs {
		freqs[k] = float64(k) * sampleRateHz / float64(nperseg)
	}

	return &PSD{
		SampleRateHz: sampleRateHz,
		Segments:     segments,
		Frequencies:  freqs,
		Power:        power,
	}, nil
}

// periodicHann returns the n-point periodic Hann window, the symmetric n+1
// window without its last sample.
func periodicHann(n int) []float64 {
	win := make([]float64, n+1)
	for i := range win {
		win[i] = 1
	}
	return window.Hann(win)[:n]
}
