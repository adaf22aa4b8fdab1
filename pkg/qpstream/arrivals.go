package qpstream

import "math"

// ArrivalMask marks the samples that have at least one photon arrival.
type ArrivalMask []bool

// Count returns the number of marked samples.
func (m ArrivalMask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// Indices returns the marked sample indices in increasing order.
func (m ArrivalMask) Indices() []int {
	idx := make([]int, 0, m.Count())
	for i, v := range m {
		if v {
			idx = append(idx, i)
		}
	}
	return idx
}

// ArrivalSchedule is the outcome of the arrival draw. Counts keeps the raw
// per-sample Poisson draws; Mask collapses them to presence.
type ArrivalSchedule struct {
	Mask          ArrivalMask
	Counts        []int
	RatePerSample float64
	Advisories    []Advisory
}

// TotalPhotons is the sum of the raw draws.
func (s *ArrivalSchedule) TotalPhotons() int {
	total := 0
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// ScheduleArrivals draws one Poisson count per sample with mean
// countRateHz / sample rate and marks every sample whose count is at least
// one. Multi-photon samples and an empty run are reported as advisories;
// neither changes the draw.
func ScheduleArrivals(cfg SimulationConfig, src *Source, countRateHz float64) (*ArrivalSchedule, error) {
	if err := validateCountRate(countRateHz); err != nil {
		return nil, err
	}

	rate := countRateHz / cfg.SampleRateHz()
	counts := src.DrawPoisson(rate, cfg.SampleCount())

	mask := make(ArrivalMask, len(counts))
	total, multi, collapsed := 0, 0, 0
	for i, c := range counts {
		total += c
		if c >= 1 {
			mask[i] = true
		}
		if c > 1 {
			multi++
			collapsed += c - 1
		}
	}

	sched := &ArrivalSchedule{
		Mask:          mask,
		Counts:        counts,
		RatePerSample: rate,
	}
	if multi > 0 {
		sched.Advisories = append(sched.Advisories, multiplePhotonsAdvisory(multi, collapsed))
	}
	if total == 0 {
		sched.Advisories = append(sched.Advisories, noPhotonsAdvisory())
	}
	return sched, nil
}

func validateCountRate(countRateHz float64) error {
	if countRateHz < 0 || math.IsNaN(countRateHz) || math.IsInf(countRateHz, 0) {
		return &ConfigurationError{Field: "count_rate_hz", Value: countRateHz, Reason: "must be zero or positive"}
	}
	return nil
}
