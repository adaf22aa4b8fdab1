// Package responseformat encodes simulation results as JSON, MessagePack or
// CSV, both for HTTP responses and for files written by the CLI.
package responseformat

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/qpstream/pkg/qpstream"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgPack Format = "msgpack"
	FormatCSV     Format = "csv"
)

// ParseFormat accepts json, msgpack or csv (case-insensitive). An empty
// string selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "msgpack":
		return FormatMsgPack, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatMsgPack:
		return "application/x-msgpack"
	case FormatCSV:
		return "text/csv"
	default:
		return "application/json"
	}
}

// CSVHeader is the column layout of a CSV-encoded timestream.
var CSVHeader = []string{"time_sec", "value", "arrival", "count"}

// Encode writes data to w. CSV is only defined for *qpstream.Result; every
// other format accepts any value.
func Encode(w io.Writer, format Format, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatMsgPack:
		return encodeMsgPack(w, data)
	case FormatCSV:
		res, ok := data.(*qpstream.Result)
		if !ok {
			return fmt.Errorf("csv encoding needs a simulation result, got %T", data)
		}
		return EncodeCSV(w, res)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// EncodeCSV writes one row per sample: time, value, arrival flag and the
// number of photons drawn for that sample.
func EncodeCSV(w io.Writer, res *qpstream.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	times := res.TimeGrid()
	row := make([]string, len(CSVHeader))
	for i, v := range res.Timestream {
		row[0] = strconv.FormatFloat(times[i], 'g', -1, 64)
		row[1] = strconv.FormatFloat(v, 'g', -1, 64)
		row[2] = "0"
		if i < len(res.Mask) && res.Mask[i] {
			row[2] = "1"
		}
		row[3] = "0"
		if i < len(res.Counts) {
			row[3] = strconv.Itoa(res.Counts[i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeResult reads a result written by Encode in JSON or MessagePack.
func DecodeResult(r io.Reader, format Format) (*qpstream.Result, error) {
	res := &qpstream.Result{}
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(res); err != nil {
			return nil, err
		}
	case FormatMsgPack:
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		if err := dec.Decode(res); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("cannot decode results from %q", format)
	}
	return res, nil
}

func encodeMsgPack(w io.Writer, data any) error {
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}

// Formatter handles encoding and writing responses in JSON, MessagePack or CSV
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// WriteResponse writes the response in the format named by the format query
// parameter. JSON is the default. Unknown formats fall back to JSON, and CSV
// falls back to JSON for anything that is not a simulation result.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, data any, headers map[string]string) error {
	return f.WriteStatus(w, req, http.StatusOK, data, headers)
}

// WriteStatus is WriteResponse with an explicit status code.
func (f *Formatter) WriteStatus(w http.ResponseWriter, req *http.Request, status int, data any, headers map[string]string) error {
	// Set any provided headers first
	for k, v := range headers {
		w.Header().Set(k, v)
	}

	// Always set CORS header
	w.Header().Set("Access-Control-Allow-Origin", "*")

	format, err := ParseFormat(req.URL.Query().Get("format"))
	if err != nil {
		format = FormatJSON
	}
	if _, ok := data.(*qpstream.Result); format == FormatCSV && !ok {
		format = FormatJSON
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(status)
	if format == FormatJSON {
		return json.NewEncoder(w).Encode(data)
	}
	return Encode(w, format, data)
}

// WriteError writes a JSON error body with the given status.
func (f *Formatter) WriteError(w http.ResponseWriter, status int, err error) error {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
