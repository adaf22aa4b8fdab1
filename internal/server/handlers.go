package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/qpstream/internal/constants"
	"github.com/chrissnell/qpstream/internal/metrics"
	"github.com/chrissnell/qpstream/internal/storage"
	"github.com/chrissnell/qpstream/pkg/config"
	"github.com/chrissnell/qpstream/pkg/qpstream"
	"github.com/chrissnell/qpstream/pkg/spectral"
)

// maxSamples bounds the timestream a single request may ask for.
const maxSamples = 10_000_000

const defaultListLimit = 50

var errStoreDisabled = errors.New("run storage is not configured")

// queryError reports a malformed query parameter.
type queryError struct {
	param string
	value string
	err   error
}

func (e *queryError) Error() string {
	return fmt.Sprintf("invalid query parameter %s=%q: %v", e.param, e.value, e.err)
}

func (e *queryError) Unwrap() error { return e.err }

// GetTimestream runs one simulation and returns the full result.
func (c *Controller) GetTimestream(w http.ResponseWriter, req *http.Request) {
	res, err := c.run(req)
	if err != nil {
		c.writeError(w, req, err)
		return
	}
	c.formatter.WriteResponse(w, req, res, seedHeader(res))
}

// GetPulse returns a single pulse template. The wavelength must be one of the
// request's allowed wavelengths.
func (c *Controller) GetPulse(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	cfgData, err := c.requestConfig(q)
	if err != nil {
		c.writeError(w, req, err)
		return
	}
	allowed := cfgData.Simulation.WavelengthsNM
	wavelength, err := floatParam(q, "wavelength_nm", allowed[0])
	if err != nil {
		c.writeError(w, req, err)
		return
	}
	if !slices.Contains(allowed, wavelength) {
		c.writeError(w, req, &qpstream.ConfigurationError{
			Field:  "wavelength_nm",
			Value:  wavelength,
			Reason: fmt.Sprintf("not in the allowed set %v", allowed),
		})
		return
	}

	fallTime, sampleRate := cfgData.Pulse.FallTimeUsec, cfgData.Simulation.SampleRateHz
	n, err := qpstream.PulseLength(fallTime, sampleRate)
	if err != nil {
		c.writeError(w, req, err)
		return
	}
	if n > maxSamples {
		c.writeError(w, req, &qpstream.ConfigurationError{
			Field:  "fall_time_usec",
			Value:  fallTime,
			Reason: fmt.Sprintf("pulse would have %d samples (limit %d)", n, maxSamples),
		})
		return
	}

	pulse, err := qpstream.GeneratePulse(fallTime, sampleRate, wavelength)
	if err != nil {
		c.writeError(w, req, err)
		return
	}
	c.formatter.WriteResponse(w, req, pulse, nil)
}

// GetPSD runs one simulation and returns the Welch power spectral density of
// its timestream.
func (c *Controller) GetPSD(w http.ResponseWriter, req *http.Request) {
	segment, err := intParam(req.URL.Query(), "segment_length", c.cfg.Output.PSDSegmentLength)
	if err != nil {
		c.writeError(w, req, err)
		return
	}

	res, err := c.run(req)
	if err != nil {
		c.writeError(w, req, err)
		return
	}

	psd, err := spectral.Welch(res.Timestream, res.Parameters.SampleRateHz, spectral.WelchOptions{SegmentLength: segment})
	if err != nil {
		c.writeError(w, req, &queryError{param: "segment_length", value: strconv.Itoa(segment), err: err})
		return
	}
	c.formatter.WriteResponse(w, req, psd, seedHeader(res))
}

// CreateRun runs one simulation, stores it and returns its listing entry.
func (c *Controller) CreateRun(w http.ResponseWriter, req *http.Request) {
	if c.store == nil {
		c.writeError(w, req, errStoreDisabled)
		return
	}

	res, err := c.run(req)
	if err != nil {
		c.writeError(w, req, err)
		return
	}

	info, err := c.store.Save(req.Context(), res)
	if err != nil {
		c.writeError(w, req, err)
		return
	}
	c.formatter.WriteStatus(w, req, http.StatusCreated, info, map[string]string{
		"Location": apiPrefix + "/runs/" + info.ID,
	})
}

// ListRuns returns stored runs, newest first.
func (c *Controller) ListRuns(w http.ResponseWriter, req *http.Request) {
	if c.store == nil {
		c.writeError(w, req, errStoreDisabled)
		return
	}

	limit, err := intParam(req.URL.Query(), "limit", defaultListLimit)
	if err != nil {
		c.writeError(w, req, err)
		return
	}

	runs, err := c.store.List(req.Context(), limit)
	if err != nil {
		c.writeError(w, req, err)
		return
	}
	c.formatter.WriteResponse(w, req, runs, nil)
}

// GetRun returns one stored run including its sample arrays.
func (c *Controller) GetRun(w http.ResponseWriter, req *http.Request) {
	if c.store == nil {
		c.writeError(w, req, errStoreDisabled)
		return
	}

	run, err := c.store.Load(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		c.writeError(w, req, err)
		return
	}
	c.formatter.WriteResponse(w, req, run, nil)
}

// DeleteRun removes one stored run.
func (c *Controller) DeleteRun(w http.ResponseWriter, req *http.Request) {
	if c.store == nil {
		c.writeError(w, req, errStoreDisabled)
		return
	}

	if err := c.store.Delete(req.Context(), mux.Vars(req)["id"]); err != nil {
		c.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Healthz reports liveness, the run store schema version and the last known
// storage health.
func (c *Controller) Healthz(w http.ResponseWriter, req *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": constants.Version,
	}
	if c.store != nil {
		if st, err := c.store.SchemaStatus(); err == nil {
			body["schema"] = st
		}
	}
	body["storage"] = c.health.GetAllHealth()
	c.formatter.WriteResponse(w, req, body, nil)
}

// run applies the query overrides to the configured defaults and runs one
// simulation.
func (c *Controller) run(req *http.Request) (*qpstream.Result, error) {
	cfgData, err := c.requestConfig(req.URL.Query())
	if err != nil {
		return nil, err
	}

	simCfg, err := cfgData.SimulationConfig()
	if err != nil {
		return nil, err
	}
	if simCfg.SampleCount() > maxSamples {
		return nil, &qpstream.ConfigurationError{
			Field:  "duration_sec",
			Value:  simCfg.DurationSec(),
			Reason: fmt.Sprintf("request would synthesize %d samples (limit %d)", simCfg.SampleCount(), maxSamples),
		}
	}

	params := qpstream.Parameters{
		SampleRateHz:  simCfg.SampleRateHz(),
		DurationSec:   simCfg.DurationSec(),
		WavelengthsNM: simCfg.WavelengthsNM(),
		Seed:          simCfg.Seed(),
		FallTimeUsec:  cfgData.Pulse.FallTimeUsec,
		CountRateHz:   cfgData.Arrivals.CountRateHz,
	}
	if res, ok := c.cache.get(params); ok {
		return res, nil
	}

	start := time.Now()
	res, err := qpstream.NewSession(simCfg, qpstream.WithLogger(c.logger)).Run(cfgData.RunParams())
	metrics.RecordRun(res, time.Since(start))
	if err != nil {
		return nil, err
	}
	c.cache.set(res)
	return res, nil
}

// requestConfig copies the configured defaults and applies any simulation
// parameters present in q.
func (c *Controller) requestConfig(q url.Values) (*config.ConfigData, error) {
	cfg := *c.cfg
	sim := &cfg.Simulation
	sim.WavelengthsNM = append([]float64(nil), c.cfg.Simulation.WavelengthsNM...)

	var err error
	if sim.SampleRateHz, err = floatParam(q, "sample_rate_hz", sim.SampleRateHz); err != nil {
		return nil, err
	}
	if sim.DurationSec, err = floatParam(q, "duration_sec", sim.DurationSec); err != nil {
		return nil, err
	}
	if v := q.Get("seed"); v != "" {
		if sim.Seed, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, &queryError{param: "seed", value: v, err: err}
		}
	}
	if v := q.Get("wavelengths_nm"); v != "" {
		if sim.WavelengthsNM, err = parseWavelengths(v); err != nil {
			return nil, &queryError{param: "wavelengths_nm", value: v, err: err}
		}
	}
	if cfg.Pulse.FallTimeUsec, err = floatParam(q, "fall_time_usec", cfg.Pulse.FallTimeUsec); err != nil {
		return nil, err
	}
	if cfg.Arrivals.CountRateHz, err = floatParam(q, "count_rate_hz", cfg.Arrivals.CountRateHz); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// writeError maps err to a status code and writes it as JSON.
func (c *Controller) writeError(w http.ResponseWriter, req *http.Request, err error) {
	var (
		ce *qpstream.ConfigurationError
		de *qpstream.DegeneratePulseError
		qe *queryError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ce), errors.As(err, &de), errors.As(err, &qe):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errStoreDisabled):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		c.logger.Errorw("request failed", "path", req.URL.Path, "error", err)
	}
	c.formatter.WriteError(w, status, err)
}

func seedHeader(res *qpstream.Result) map[string]string {
	return map[string]string{"X-Qpstream-Seed": strconv.FormatInt(res.Parameters.Seed, 10)}
}

func floatParam(q url.Values, name string, def float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &queryError{param: name, value: v, err: err}
	}
	return f, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &queryError{param: name, value: v, err: err}
	}
	return n, nil
}

// parseWavelengths accepts a comma-separated list, e.g. "808,1550".
func parseWavelengths(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		wl, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, wl)
	}
	return out, nil
}
