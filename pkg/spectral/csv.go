package spectral

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteCSV writes one row per frequency bin with a frequency_hz,power header.
func WriteCSV(w io.Writer, p *PSD) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"frequency_hz", "power"}); err != nil {
		return err
	}
	for i, f := range p.Frequencies {
		row := []string{
			strconv.FormatFloat(f, 'g', -1, 64),
			strconv.FormatFloat(p.Power[i], 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
