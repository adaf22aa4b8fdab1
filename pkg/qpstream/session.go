package qpstream

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RunParams are the per-run inputs that are not part of SimulationConfig.
type RunParams struct {
	FallTimeUsec float64 `json:"fall_time_usec"`
	CountRateHz  float64 `json:"count_rate_hz"`
}

// Parameters is the flat, serializable record of everything a run used.
type Parameters struct {
	SampleRateHz  float64   `json:"sample_rate_hz"`
	DurationSec   float64   `json:"duration_sec"`
	WavelengthsNM []float64 `json:"wavelengths_nm"`
	Seed          int64     `json:"seed"`
	FallTimeUsec  float64   `json:"fall_time_usec"`
	CountRateHz   float64   `json:"count_rate_hz"`
}

// Config rebuilds the SimulationConfig the parameters came from.
func (p Parameters) Config() (SimulationConfig, error) {
	return NewSimulationConfig(p.SampleRateHz, p.DurationSec, p.WavelengthsNM, p.Seed)
}

// RunParams returns the per-run half of the parameters.
func (p Parameters) RunParams() RunParams {
	return RunParams{FallTimeUsec: p.FallTimeUsec, CountRateHz: p.CountRateHz}
}

// Summary holds descriptive statistics of a finished run.
type Summary struct {
	Photons       int     `json:"photons"`
	MarkedSamples int     `json:"marked_samples"`
	Injected      int     `json:"injected"`
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"std_dev"`
	Peak          float64 `json:"peak"`
}

// Result is the full artifact of one run: the timestream, the ground truth
// and every advisory raised along the way.
type Result struct {
	Parameters  Parameters  `json:"parameters"`
	SampleCount int         `json:"sample_count"`
	PulseLength int         `json:"pulse_length"`
	Mask        ArrivalMask `json:"mask"`
	Counts      []int       `json:"counts"`
	Timestream  Timestream  `json:"timestream"`
	Arrivals    []Arrival   `json:"arrivals"`
	Skipped     int         `json:"skipped"`
	Advisories  []Advisory  `json:"advisories"`
	Summary     Summary     `json:"summary"`
}

// TimeGrid returns the sample times of the result, in seconds.
func (r *Result) TimeGrid() []float64 {
	grid := make([]float64, len(r.Timestream))
	for i := range grid {
		grid[i] = float64(i) / r.Parameters.SampleRateHz
	}
	return grid
}

// HasAdvisory reports whether the run raised an advisory of kind k.
func (r *Result) HasAdvisory(k AdvisoryKind) bool {
	for _, a := range r.Advisories {
		if a.Kind == k {
			return true
		}
	}
	return false
}

// Session owns the random stream of one simulation. Draws happen in a fixed
// order (all arrival counts, then one wavelength per injected arrival), so
// two sessions built from equal configs produce identical results.
//
// A Session is single-owner and not safe for concurrent use.
type Session struct {
	cfg    SimulationConfig
	src    *Source
	logger *zap.SugaredLogger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger routes advisories and run diagnostics to logger.
func WithLogger(logger *zap.SugaredLogger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession seeds a fresh source from cfg.Seed().
func NewSession(cfg SimulationConfig, opts ...SessionOption) *Session {
	s := &Session{
		cfg:    cfg,
		src:    NewSource(cfg.Seed()),
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the session configuration.
func (s *Session) Config() SimulationConfig {
	return s.cfg
}

// ScheduleArrivals draws the arrival mask from the session source.
func (s *Session) ScheduleArrivals(countRateHz float64) (*ArrivalSchedule, error) {
	return ScheduleArrivals(s.cfg, s.src, countRateHz)
}

// Synthesize injects pulses for mask using the session source.
func (s *Session) Synthesize(mask ArrivalMask, fallTimeUsec float64) (*Synthesis, error) {
	return Synthesize(s.cfg, s.src, mask, fallTimeUsec)
}

// Run validates params, draws the arrival mask and synthesizes the
// timestream. On error nothing is returned; advisories never cause an error.
func (s *Session) Run(params RunParams) (*Result, error) {
	if err := validateCountRate(params.CountRateHz); err != nil {
		return nil, err
	}
	if _, err := PulseLength(params.FallTimeUsec, s.cfg.SampleRateHz()); err != nil {
		return nil, err
	}

	sched, err := s.ScheduleArrivals(params.CountRateHz)
	if err != nil {
		return nil, err
	}
	syn, err := s.Synthesize(sched.Mask, params.FallTimeUsec)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Parameters: Parameters{
			SampleRateHz:  s.cfg.SampleRateHz(),
			DurationSec:   s.cfg.DurationSec(),
			WavelengthsNM: s.cfg.WavelengthsNM(),
			Seed:          s.cfg.Seed(),
			FallTimeUsec:  params.FallTimeUsec,
			CountRateHz:   params.CountRateHz,
		},
		SampleCount: s.cfg.SampleCount(),
		PulseLength: syn.PulseLength,
		Mask:        sched.Mask,
		Counts:      sched.Counts,
		Timestream:  syn.Timestream,
		Arrivals:    syn.Arrivals,
		Skipped:     syn.Skipped,
	}
	res.Advisories = append(res.Advisories, sched.Advisories...)
	res.Advisories = append(res.Advisories, syn.Advisories...)
	res.Summary = summarize(sched, syn)

	for _, a := range res.Advisories {
		s.logger.Warnw(a.Message, "advisory", a.Kind.String(), "samples", a.Samples, "seed", s.cfg.Seed())
	}
	s.logger.Debugw("synthesized timestream",
		"samples", res.SampleCount,
		"pulse_length", res.PulseLength,
		"photons", res.Summary.Photons,
		"injected", res.Summary.Injected,
		"skipped", res.Skipped,
	)
	return res, nil
}

func summarize(sched *ArrivalSchedule, syn *Synthesis) Summary {
	sum := Summary{
		Photons:       sched.TotalPhotons(),
		MarkedSamples: sched.Mask.Count(),
		Injected:      len(syn.Arrivals),
		Peak:          floats.Max(syn.Timestream),
	}
	if len(syn.Timestream) > 1 {
		sum.Mean, sum.StdDev = stat.MeanStdDev(syn.Timestream, nil)
	} else {
		sum.Mean = syn.Timestream[0]
	}
	return sum
}
