package spectral

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	psd := &PSD{
		SampleRateHz: 8,
		Segments:     1,
		Frequencies:  []float64{0, 2, 4},
		Power:        []float64{0.5, 1.25, 0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, psd))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"frequency_hz", "power"},
		{"0", "0.5"},
		{"2", "1.25"},
		{"4", "0"},
	}, rows)
}
