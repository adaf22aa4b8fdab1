package config

import (
	"database/sql"
	"embed"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/qpstream/pkg/migrate"
)

const defaultProfile = "default"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *SQLiteProvider) migrator() *migrate.Migrator {
	return migrate.NewMigrator(s.db, migrate.NewFSProvider(migrationsFS, "migrations", "config_schema_migrations"))
}

// InitSchema brings the configuration tables up to the latest migration
func (s *SQLiteProvider) InitSchema() error {
	if err := s.migrator().MigrateUp(); err != nil {
		return fmt.Errorf("failed to migrate configuration schema: %w", err)
	}
	return nil
}

// MigrateSchema moves the configuration tables to schema version; 0 drops them
func (s *SQLiteProvider) MigrateSchema(version int) error {
	if err := s.migrator().MigrateTo(version); err != nil {
		return fmt.Errorf("failed to migrate configuration schema to version %d: %w", version, err)
	}
	return nil
}

// SchemaStatus reports the configuration schema version
func (s *SQLiteProvider) SchemaStatus() (migrate.Status, error) {
	return s.migrator().Status()
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := Defaults()

	var configID int64
	err := s.db.QueryRow(`SELECT id FROM configs WHERE name = ?`, defaultProfile).Scan(&configID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no %q configuration found in %s", defaultProfile, s.dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query configs: %w", err)
	}

	err = s.db.QueryRow(`
		SELECT sample_rate_hz, duration_sec, seed, fall_time_usec, count_rate_hz
		FROM simulations WHERE config_id = ?`, configID,
	).Scan(
		&config.Simulation.SampleRateHz,
		&config.Simulation.DurationSec,
		&config.Simulation.Seed,
		&config.Pulse.FallTimeUsec,
		&config.Arrivals.CountRateHz,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load simulation parameters: %w", err)
	}

	wavelengths, err := s.getWavelengths(configID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wavelengths: %w", err)
	}
	if len(wavelengths) > 0 {
		config.Simulation.WavelengthsNM = wavelengths
	}

	settings, err := s.getSettings(configID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := applySettings(config, settings); err != nil {
		return nil, err
	}

	return config, nil
}

func (s *SQLiteProvider) getWavelengths(configID int64) ([]float64, error) {
	rows, err := s.db.Query(`SELECT wavelength_nm FROM wavelengths WHERE config_id = ? ORDER BY position`, configID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wavelengths []float64
	for rows.Next() {
		var wl float64
		if err := rows.Scan(&wl); err != nil {
			return nil, err
		}
		wavelengths = append(wavelengths, wl)
	}
	return wavelengths, rows.Err()
}

func (s *SQLiteProvider) getSettings(configID int64) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings WHERE config_id = ?`, configID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// SaveConfig replaces the stored default configuration with config
func (s *SQLiteProvider) SaveConfig(config *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM configs WHERE name = ?`, defaultProfile); err != nil {
		return fmt.Errorf("failed to clear previous configuration: %w", err)
	}
	res, err := tx.Exec(`INSERT INTO configs (name) VALUES (?)`, defaultProfile)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}
	configID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read config id: %w", err)
	}

	// SQLite leaves foreign keys off unless asked, so clear orphans here.
	for _, table := range []string{"simulations", "wavelengths", "settings"} {
		if _, err := tx.Exec(`DELETE FROM ` + table + ` WHERE config_id NOT IN (SELECT id FROM configs)`); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO simulations (config_id, sample_rate_hz, duration_sec, seed, fall_time_usec, count_rate_hz)
		VALUES (?, ?, ?, ?, ?, ?)`,
		configID,
		config.Simulation.SampleRateHz,
		config.Simulation.DurationSec,
		config.Simulation.Seed,
		config.Pulse.FallTimeUsec,
		config.Arrivals.CountRateHz,
	)
	if err != nil {
		return fmt.Errorf("failed to insert simulation parameters: %w", err)
	}

	for i, wl := range config.Simulation.WavelengthsNM {
		if _, err := tx.Exec(`INSERT INTO wavelengths (config_id, position, wavelength_nm) VALUES (?, ?, ?)`, configID, i, wl); err != nil {
			return fmt.Errorf("failed to insert wavelength %v: %w", wl, err)
		}
	}

	for key, value := range settingsFromConfig(config) {
		if _, err := tx.Exec(`INSERT INTO settings (config_id, key, value) VALUES (?, ?, ?)`, configID, key, value); err != nil {
			return fmt.Errorf("failed to insert setting %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func settingsFromConfig(c *ConfigData) map[string]string {
	settings := map[string]string{
		"output.format":             c.Output.Format,
		"output.psd_segment_length": strconv.Itoa(c.Output.PSDSegmentLength),
		"server.listen_addr":        c.Server.ListenAddr,
		"server.port":               strconv.Itoa(c.Server.Port),
		"server.cache_mb":           strconv.Itoa(c.Server.CacheMB),
		"log.debug":                 strconv.FormatBool(c.Log.Debug),
	}
	optional := map[string]string{
		"output.path":         c.Output.Path,
		"output.plot_path":    c.Output.PlotPath,
		"output.psd_path":     c.Output.PSDPath,
		"storage.sqlite_path": c.Storage.SQLitePath,
		"log.file":            c.Log.File,
	}
	for k, v := range optional {
		if v != "" {
			settings[k] = v
		}
	}
	return settings
}

func applySettings(c *ConfigData, settings map[string]string) error {
	for key, value := range settings {
		var err error
		switch key {
		case "output.path":
			c.Output.Path = value
		case "output.format":
			c.Output.Format = value
		case "output.plot_path":
			c.Output.PlotPath = value
		case "output.psd_path":
			c.Output.PSDPath = value
		case "output.psd_segment_length":
			c.Output.PSDSegmentLength, err = strconv.Atoi(value)
		case "storage.sqlite_path":
			c.Storage.SQLitePath = value
		case "server.listen_addr":
			c.Server.ListenAddr = value
		case "server.port":
			c.Server.Port, err = strconv.Atoi(value)
		case "server.cache_mb":
			c.Server.CacheMB, err = strconv.Atoi(value)
		case "log.debug":
			c.Log.Debug, err = strconv.ParseBool(value)
		case "log.file":
			c.Log.File = value
		default:
			return fmt.Errorf("unknown setting %q", key)
		}
		if err != nil {
			return fmt.Errorf("invalid value %q for setting %s: %w", value, key, err)
		}
	}
	return nil
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}
