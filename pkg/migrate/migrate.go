// Package migrate applies versioned SQL migrations to a SQLite database.
package migrate

import (
	"database/sql"
	"fmt"
	"slices"
)

// Latest targets the newest migration a Source knows about.
const Latest = -1

// Migration is one numbered schema change with its up and down scripts.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Source supplies migrations and tracks the version a database is at.
type Source interface {
	Migrations() ([]Migration, error)
	EnsureVersionTable(db *sql.DB) error
	Version(db *sql.DB) (int, error)
	RecordVersion(tx *sql.Tx, version int) error
}

// Status describes where a database stands relative to its migrations.
type Status struct {
	Current int   `json:"current"`
	Latest  int   `json:"latest"`
	Pending []int `json:"pending,omitempty"`
}

// UpToDate reports whether every migration has been applied.
func (s Status) UpToDate() bool {
	return len(s.Pending) == 0 && s.Current == s.Latest
}

// Migrator moves one database between schema versions.
type Migrator struct {
	db     *sql.DB
	source Source
	logf   func(template string, args ...interface{})
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogf reports each applied step through logf.
func WithLogf(logf func(template string, args ...interface{})) Option {
	return func(m *Migrator) {
		m.logf = logf
	}
}

// NewMigrator returns a Migrator for db reading migrations from source.
func NewMigrator(db *sql.DB, source Source, opts ...Option) *Migrator {
	m := &Migrator{
		db:     db,
		source: source,
		logf:   func(string, ...interface{}) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MigrateUp applies every pending migration.
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(Latest)
}

// MigrateTo applies up or down scripts until the database is at target.
// Target 0 reverts every migration; Latest applies all of them.
func (m *Migrator) MigrateTo(target int) error {
	migrations, current, err := m.load()
	if err != nil {
		return err
	}
	steps, err := plan(migrations, current, target)
	if err != nil {
		return err
	}
	for _, s := range steps {
		if err := m.apply(s); err != nil {
			return err
		}
	}
	return nil
}

// Status reports the current and latest versions and what is left to apply.
func (m *Migrator) Status() (Status, error) {
	migrations, current, err := m.load()
	if err != nil {
		return Status{}, err
	}
	st := Status{Current: current}
	for _, mig := range migrations {
		st.Latest = max(st.Latest, mig.Version)
		if mig.Version > current {
			st.Pending = append(st.Pending, mig.Version)
		}
	}
	return st, nil
}

func (m *Migrator) load() ([]Migration, int, error) {
	if err := m.source.EnsureVersionTable(m.db); err != nil {
		return nil, 0, err
	}
	current, err := m.source.Version(m.db)
	if err != nil {
		return nil, 0, err
	}
	migrations, err := m.source.Migrations()
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })
	return migrations, current, nil
}

// step is one script run, leaving the database at version to.
type step struct {
	migration Migration
	down      bool
	to        int
}

func (s step) direction() string {
	if s.down {
		return "down"
	}
	return "up"
}

func (s step) script() string {
	if s.down {
		return s.migration.Down
	}
	return s.migration.Up
}

// plan lists the steps that take a database from current to target.
// migrations must be sorted by version.
func plan(migrations []Migration, current, target int) ([]step, error) {
	latest := 0
	if len(migrations) > 0 {
		latest = migrations[len(migrations)-1].Version
	}
	if target == Latest {
		target = latest
	}
	known := target == 0 || slices.ContainsFunc(migrations, func(m Migration) bool { return m.Version == target })
	if !known {
		return nil, fmt.Errorf("no migration with version %d (latest is %d)", target, latest)
	}

	var steps []step
	if target >= current {
		for _, mig := range migrations {
			if mig.Version > current && mig.Version <= target {
				steps = append(steps, step{migration: mig, to: mig.Version})
			}
		}
	} else {
		for i := len(migrations) - 1; i >= 0; i-- {
			mig := migrations[i]
			if mig.Version > current || mig.Version <= target {
				continue
			}
			prev := 0
			if i > 0 {
				prev = migrations[i-1].Version
			}
			steps = append(steps, step{migration: mig, down: true, to: prev})
		}
	}

	for _, s := range steps {
		if s.script() == "" {
			return nil, fmt.Errorf("migration %d (%s) has no %s script", s.migration.Version, s.migration.Name, s.direction())
		}
	}
	return steps, nil
}

func (m *Migrator) apply(s step) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.script()); err != nil {
		return fmt.Errorf("migration %d (%s) %s failed: %w", s.migration.Version, s.migration.Name, s.direction(), err)
	}
	if err := m.source.RecordVersion(tx, s.to); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", s.migration.Version, err)
	}

	m.logf("migrated %s through %d (%s); schema at version %d", s.direction(), s.migration.Version, s.migration.Name, s.to)
	return nil
}
