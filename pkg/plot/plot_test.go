package plot

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/qpstream/pkg/qpstream"
	"github.com/chrissnell/qpstream/pkg/spectral"
)

func testResult(t *testing.T, rate float64) *qpstream.Result {
	t.Helper()
	cfg, err := qpstream.NewSimulationConfig(1e6, 5e-3, []float64{404, 808}, 3)
	require.NoError(t, err)
	res, err := qpstream.NewSession(cfg).Run(qpstream.RunParams{FallTimeUsec: 30, CountRateHz: rate})
	require.NoError(t, err)
	return res
}

func TestTimestreamPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Timestream(&buf, testResult(t, 2000), FormatPNG))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestTimestreamSVGWithoutArrivals(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Timestream(&buf, testResult(t, 0), FormatSVG))
	assert.Contains(t, buf.String(), "<svg")
}

func TestPulse(t *testing.T) {
	pulse, err := qpstream.GeneratePulse(30, 1e6, 808)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Pulse(&buf, pulse, FormatSVG))
	assert.Contains(t, buf.String(), "<svg")
}

func TestPowerSpectrum(t *testing.T) {
	res := testResult(t, 2000)
	psd, err := spectral.Welch(res.Timestream, res.Parameters.SampleRateHz, spectral.WelchOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, PowerSpectrum(&buf, psd, FormatPNG))
	assert.NotZero(t, buf.Len())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("svg")
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, f)

	_, err = ParseFormat("gif")
	assert.Error(t, err)

	var buf bytes.Buffer
	pulse, err := qpstream.GeneratePulse(30, 1e6, 808)
	require.NoError(t, err)
	assert.Error(t, Pulse(&buf, pulse, Format("bmp")))
}
