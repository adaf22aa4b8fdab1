package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Migration files are named 001_create_runs.up.sql / 001_create_runs.down.sql
var migrationFileRegex = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider reads migrations from a directory of an fs.FS, usually an
// embed.FS, and keeps the applied version in a SQLite table.
type FSProvider struct {
	fsys  fs.FS
	dir   string
	table string
}

// NewFSProvider reads migrations from dir inside fsys. An empty table name
// selects "schema_migrations".
func NewFSProvider(fsys fs.FS, dir string, table string) *FSProvider {
	if table == "" {
		table = "schema_migrations"
	}
	return &FSProvider{fsys: fsys, dir: dir, table: table}
}

// Migrations pairs up the up and down scripts found in the directory.
// Files that do not follow the naming scheme are ignored.
func (p *FSProvider) Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(p.fsys, p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", p.dir, err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		parts := migrationFileRegex.FindStringSubmatch(entry.Name())
		if entry.IsDir() || parts == nil {
			continue
		}
		version, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("bad migration version in %s: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(p.fsys, path.Join(p.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: strings.ReplaceAll(parts[2], "_", " ")}
			byVersion[version] = mig
		} else if name := strings.ReplaceAll(parts[2], "_", " "); name != mig.Name {
			return nil, fmt.Errorf("migration %d is named both %q and %q", version, mig.Name, name)
		}
		if parts[3] == "up" {
			mig.Up = string(body)
		} else {
			mig.Down = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		migrations = append(migrations, *mig)
	}
	return migrations, nil
}

// EnsureVersionTable creates the version table if it does not exist.
func (p *FSProvider) EnsureVersionTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + p.table + ` (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", p.table, err)
	}
	return nil
}

// Version returns the highest recorded version, or 0 for a fresh database.
func (p *FSProvider) Version(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM ` + p.table).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// RecordVersion makes version the highest recorded one. Version 0 clears the
// table.
func (p *FSProvider) RecordVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec(`DELETE FROM `+p.table+` WHERE version > ?`, version); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", version, err)
	}
	if version == 0 {
		return nil
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO `+p.table+` (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", version, err)
	}
	return nil
}
