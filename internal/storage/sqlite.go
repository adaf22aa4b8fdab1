package storage

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/qpstream/internal/log"
	"github.com/chrissnell/qpstream/pkg/migrate"
	"github.com/chrissnell/qpstream/pkg/qpstream"
)

const sqliteStorageType = "sqlite"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps runs in a SQLite database. Sample arrays and nested
// records are stored as MessagePack blobs.
type SQLiteStore struct {
	db       *sql.DB
	migrator *migrate.Migrator
	health   *HealthManager
	now      func() time.Time
}

// NewSQLiteStore opens (and if needed creates) the run database at path.
// health may be nil.
func NewSQLiteStore(ctx context.Context, path string, health *HealthManager) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping run database: %w", err)
	}

	log.Infof("opening run store at %s", path)
	migrator := migrate.NewMigrator(db, migrate.NewFSProvider(migrationsFS, "migrations", "schema_migrations"), migrate.WithLogf(log.Infof))
	if err := migrator.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate run database: %w", err)
	}

	if health == nil {
		health = NewHealthManager()
	}
	s := &SQLiteStore{db: db, migrator: migrator, health: health, now: time.Now}
	s.health.Record(sqliteStorageType, nil)
	return s, nil
}

// SchemaStatus reports the run table schema version.
func (s *SQLiteStore) SchemaStatus() (migrate.Status, error) {
	st, err := s.migrator.Status()
	s.health.Record(sqliteStorageType, err)
	return st, err
}

// Save stores res under a new random id.
func (s *SQLiteStore) Save(ctx context.Context, res *qpstream.Result) (*RunInfo, error) {
	info := &RunInfo{
		ID:          uuid.NewString(),
		CreatedAt:   s.now().UTC(),
		Parameters:  res.Parameters,
		SampleCount: res.SampleCount,
		PulseLength: res.PulseLength,
		Skipped:     res.Skipped,
		Summary:     res.Summary,
	}

	params, err := marshal(res.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}
	summary, err := marshal(res.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	blob, err := marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, seed, sample_count, pulse_length, skipped, parameters, summary, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.ID, info.CreatedAt.UnixNano(), res.Parameters.Seed,
		info.SampleCount, info.PulseLength, info.Skipped,
		params, summary, blob,
	)
	s.health.Record(sqliteStorageType, err)
	if err != nil {
		log.Errorw("could not store run", "error", err)
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	log.Debugw("stored run", "id", info.ID, "samples", info.SampleCount, "bytes", len(blob))
	return info, nil
}

// Load returns the run with the given id, or ErrRunNotFound.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*StoredRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, sample_count, pulse_length, skipped, parameters, summary, result
		FROM runs WHERE id = ?`, id)

	var blob []byte
	info, err := scanInfo(row, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	s.health.Record(sqliteStorageType, err)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	res := &qpstream.Result{}
	if err := unmarshal(blob, res); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &StoredRun{RunInfo: *info, Result: res}, nil
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, sample_count, pulse_length, skipped, parameters, summary
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	s.health.Record(sqliteStorageType, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		info, err := scanInfo(rows, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read run: %w", err)
		}
		runs = append(runs, *info)
	}
	return runs, rows.Err()
}

// Delete removes the run with the given id, or returns ErrRunNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	s.health.Record(sqliteStorageType, err)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanInfo reads the listing columns and, when blob is non-nil, the result
// column after them.
func scanInfo(row scanner, blob *[]byte) (*RunInfo, error) {
	var (
		info              RunInfo
		createdAt         int64
		params, summaries []byte
	)
	dest := []any{&info.ID, &createdAt, &info.SampleCount, &info.PulseLength, &info.Skipped, &params, &summaries}
	if blob != nil {
		dest = append(dest, blob)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	info.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := unmarshal(params, &info.Parameters); err != nil {
		return nil, err
	}
	if err := unmarshal(summaries, &info.Summary); err != nil {
		return nil, err
	}
	return &info, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
