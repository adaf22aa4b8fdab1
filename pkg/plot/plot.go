// Package plot renders timestreams, pulse templates and power spectra.
// It only reads the arrays it is given.
package plot

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/chrissnell/qpstream/pkg/qpstream"
	"github.com/chrissnell/qpstream/pkg/spectral"
)

// Format selects the image encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

const (
	width  = 8 * vg.Inch
	height = 4 * vg.Inch

	densityLabel = "∝ Δ Quasiparticle Density"
)

var arrivalColor = color.RGBA{R: 200, A: 255}

// ParseFormat accepts "png" or "svg".
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatPNG, FormatSVG:
		return f, nil
	}
	return "", fmt.Errorf("unsupported plot format %q", s)
}

// Timestream draws value against the time grid with the ground-truth
// arrivals marked.
func Timestream(w io.Writer, res *qpstream.Result, format Format) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Quasiparticle timestream (seed %d, %g Hz)", res.Parameters.Seed, res.Parameters.CountRateHz)
	p.X.Label.Text = "time (sec)"
	p.Y.Label.Text = densityLabel

	line, err := plotter.NewLine(xys(res.TimeGrid(), res.Timestream))
	if err != nil {
		return fmt.Errorf("error building timestream line: %w", err)
	}
	p.Add(line)

	if len(res.Arrivals) > 0 {
		pts := make(plotter.XYs, len(res.Arrivals))
		for i, a := range res.Arrivals {
			pts[i].X = a.TimeSec
			pts[i].Y = a.Amplitude
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("error building arrival markers: %w", err)
		}
		scatter.GlyphStyle.Color = arrivalColor
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
		p.Legend.Add("photon arrival", scatter)
	}

	return save(w, p, format)
}

// Pulse draws a single pulse template against its time subgrid.
func Pulse(w io.Writer, pulse *qpstream.PulseTemplate, format Format) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Photon pulse (%g nm, fall time %g usec)", pulse.WavelengthNM, pulse.FallTimeUsec)
	p.X.Label.Text = "Time (usec)"
	p.Y.Label.Text = densityLabel

	line, err := plotter.NewLine(xys(pulse.TimeUsec, pulse.Values))
	if err != nil {
		return fmt.Errorf("error building pulse line: %w", err)
	}
	p.Add(line)
	return save(w, p, format)
}

// PowerSpectrum draws a PSD, on a log axis when every bin is positive.
func PowerSpectrum(w io.Writer, psd *spectral.PSD, format Format) error {
	p := plot.New()
	p.Title.Text = "Power spectral density"
	p.X.Label.Text = "frequency (Hz)"
	p.Y.Label.Text = "PSD (1/Hz)"

	if floats.Min(psd.Power) > 0 {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{}
	}

	line, err := plotter.NewLine(xys(psd.Frequencies, psd.Power))
	if err != nil {
		return fmt.Errorf("error building spectrum line: %w", err)
	}
	p.Add(line)
	return save(w, p, format)
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(y))
	for i := range pts {
		pts[i].X = x[i]
		pts[i].Y = y[i]
	}
	return pts
}

func save(w io.Writer, p *plot.Plot, format Format) error {
	if _, err := ParseFormat(string(format)); err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, string(format))
	if err != nil {
		return fmt.Errorf("error creating %s canvas: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("error writing %s plot: %w", format, err)
	}
	return nil
}
