// Package storage persists finished simulation runs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chrissnell/qpstream/pkg/migrate"
	"github.com/chrissnell/qpstream/pkg/qpstream"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunInfo is the listing view of a stored run. It carries the parameters and
// summary but not the sample arrays.
type RunInfo struct {
	ID          string              `json:"id"`
	CreatedAt   time.Time           `json:"created_at"`
	Parameters  qpstream.Parameters `json:"parameters"`
	SampleCount int                 `json:"sample_count"`
	PulseLength int                 `json:"pulse_length"`
	Skipped     int                 `json:"skipped"`
	Summary     qpstream.Summary    `json:"summary"`
}

// StoredRun is a complete stored run.
type StoredRun struct {
	RunInfo
	Result *qpstream.Result `json:"result"`
}

// RunStore is implemented by every run storage backend.
type RunStore interface {
	Save(ctx context.Context, res *qpstream.Result) (*RunInfo, error)
	Load(ctx context.Context, id string) (*StoredRun, error)
	List(ctx context.Context, limit int) ([]RunInfo, error)
	Delete(ctx context.Context, id string) error
	SchemaStatus() (migrate.Status, error)
	Close() error
}
