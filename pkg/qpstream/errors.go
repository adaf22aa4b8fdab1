package qpstream

import "fmt"

// ConfigurationError reports a simulation parameter that cannot be used.
// It is returned before any random draw is made or any buffer is allocated.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// DegeneratePulseError reports a fall time so short, relative to the sample
// rate, that the pulse template would have zero samples.
type DegeneratePulseError struct {
	FallTimeUsec float64
	SampleRateHz float64
}

func (e *DegeneratePulseError) Error() string {
	return fmt.Sprintf("degenerate pulse: fall time %g usec at %g Hz yields zero samples (need fall time >= %g usec)",
		e.FallTimeUsec, e.SampleRateHz, minFallTimeUsec(e.SampleRateHz))
}

// minFallTimeUsec is the shortest fall time that produces a one-sample template.
func minFallTimeUsec(sampleRateHz float64) float64 {
	if sampleRateHz <= 0 {
		return 0
	}
	return 1e6 / (pulseSpanFallTimes * sampleRateHz)
}

// AdvisoryKind classifies a non-fatal condition found during a run.
type AdvisoryKind int

const (
	// AdvisoryMultiplePhotons means at least one sample drew two or more
	// arrivals, which the boolean mask collapses into one.
	AdvisoryMultiplePhotons AdvisoryKind = iota + 1

	// AdvisoryNoPhotons means the whole run drew zero arrivals.
	AdvisoryNoPhotons

	// AdvisoryTailArrivalsSkipped means arrivals too close to the end of the
	// buffer to hold a full pulse were left out of the timestream.
	AdvisoryTailArrivalsSkipped
)

var advisoryKindStrings = map[AdvisoryKind]string{
	AdvisoryMultiplePhotons:     "multiple_photons",
	AdvisoryNoPhotons:           "no_photons",
	AdvisoryTailArrivalsSkipped: "tail_arrivals_skipped",
}

func (k AdvisoryKind) String() string {
	if s, ok := advisoryKindStrings[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText lets advisories serialize with their readable kind.
func (k AdvisoryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind written by MarshalText.
func (k *AdvisoryKind) UnmarshalText(text []byte) error {
	for kind, s := range advisoryKindStrings {
		if s == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown advisory kind %q", text)
}

// Advisory is a warning-class signal attached to a run. It never aborts the
// run and never changes what was drawn.
type Advisory struct {
	Kind    AdvisoryKind `json:"kind"`
	Samples int          `json:"samples"`
	Message string       `json:"message"`
}

func (a Advisory) String() string {
	return a.Kind.String() + ": " + a.Message
}

func multiplePhotonsAdvisory(samples, lost int) Advisory {
	return Advisory{
		Kind:    AdvisoryMultiplePhotons,
		Samples: samples,
		Message: fmt.Sprintf("%d samples received more than one photon (%d arrivals collapsed); lower the count rate or raise the sample rate", samples, lost),
	}
}

func noPhotonsAdvisory() Advisory {
	return Advisory{
		Kind:    AdvisoryNoPhotons,
		Message: "no photons arrived during the run; raise the count rate or the duration, or change the seed",
	}
}

func tailSkippedAdvisory(skipped, pulseLength int) Advisory {
	return Advisory{
		Kind:    AdvisoryTailArrivalsSkipped,
		Samples: skipped,
		Message: fmt.Sprintf("%d arrivals within %d samples of the end were not injected", skipped, pulseLength),
	}
}
