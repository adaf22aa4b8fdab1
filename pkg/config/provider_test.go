package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/qpstream/pkg/qpstream"
)

func TestParseYAMLKeepsDefaults(t *testing.T) {
	cfg, err := ParseYAML([]byte(`
simulation:
  seed: 11
pulse:
  fall_time_usec: 12.5
`))
	require.NoError(t, err)

	assert.Equal(t, int64(11), cfg.Simulation.Seed)
	assert.Equal(t, 12.5, cfg.Pulse.FallTimeUsec)
	assert.Equal(t, 1e6, cfg.Simulation.SampleRateHz)
	assert.Equal(t, 1e-3, cfg.Simulation.DurationSec)
	assert.Equal(t, []float64{808}, cfg.Simulation.WavelengthsNM)
	assert.Equal(t, 500.0, cfg.Arrivals.CountRateHz)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Server.CacheMB)
}

func TestParseYAMLReplacesWavelengths(t *testing.T) {
	cfg, err := ParseYAML([]byte("simulation:\n  wavelengths_nm: [404, 1616]\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{404, 1616}, cfg.Simulation.WavelengthsNM)
}

func TestParseYAMLRejectsUnknownFields(t *testing.T) {
	_, err := ParseYAML([]byte("simulation:\n  sample_rate: 1000\n"))
	assert.Error(t, err)
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qpstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte("arrivals:\n  count_rate_hz: 0\n"), 0o644))

	p := NewYAMLProvider(path)
	defer p.Close()

	cfg, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Zero(t, cfg.Arrivals.CountRateHz)
	assert.True(t, p.IsReadOnly())
	assert.NoError(t, cfg.Validate())
}

func TestYAMLProviderMissingFile(t *testing.T) {
	_, err := NewYAMLProvider(filepath.Join(t.TempDir(), "absent.yaml")).LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(c *ConfigData)
		field      string
		degenerate bool
	}{
		{name: "defaults", mutate: func(c *ConfigData) {}},
		{name: "zero sample rate", mutate: func(c *ConfigData) { c.Simulation.SampleRateHz = 0 }, field: "sample_rate_hz"},
		{name: "negative duration", mutate: func(c *ConfigData) { c.Simulation.DurationSec = -1 }, field: "duration_sec"},
		{name: "no wavelengths", mutate: func(c *ConfigData) { c.Simulation.WavelengthsNM = nil }, field: "wavelengths_nm"},
		{name: "negative rate", mutate: func(c *ConfigData) { c.Arrivals.CountRateHz = -5 }, field: "count_rate_hz"},
		{name: "degenerate pulse", mutate: func(c *ConfigData) { c.Pulse.FallTimeUsec = 0.01 }, degenerate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()

			switch {
			case tt.degenerate:
				var dpe *qpstream.DegeneratePulseError
				assert.True(t, errors.As(err, &dpe), "got %v", err)
			case tt.field != "":
				var ce *qpstream.ConfigurationError
				require.True(t, errors.As(err, &ce), "got %v", err)
				assert.Equal(t, tt.field, ce.Field)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunParams(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, qpstream.RunParams{FallTimeUsec: 30, CountRateHz: 500}, cfg.RunParams())
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.InitSchema())
	assert.False(t, p.IsReadOnly())

	_, err = p.LoadConfig()
	assert.Error(t, err, "empty database has no default profile")

	want := Defaults()
	want.Simulation.WavelengthsNM = []float64{1550, 808, 404}
	want.Simulation.Seed = 42
	want.Pulse.FallTimeUsec = 7.5
	want.Arrivals.CountRateHz = 1200
	want.Output.Path = "/tmp/run.msgpack"
	want.Output.Format = "msgpack"
	want.Storage.SQLitePath = "/tmp/runs.db"
	want.Server.Port = 9090
	want.Server.CacheMB = 0
	want.Log.Debug = true
	require.NoError(t, p.SaveConfig(want))

	got, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Saving again replaces the profile rather than appending to it.
	want.Simulation.WavelengthsNM = []float64{808}
	require.NoError(t, p.SaveConfig(want))
	got, err = p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []float64{808}, got.Simulation.WavelengthsNM)
}

func TestLoadBackends(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "qpstream.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("simulation:\n  seed: 99\n"), 0o644))
	cfg, err := Load(yamlPath, BackendYAML)
	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Simulation.Seed)

	dbPath := filepath.Join(dir, "qpstream.db")
	p, err := NewSQLiteProvider(dbPath)
	require.NoError(t, err)
	require.NoError(t, p.InitSchema())
	require.NoError(t, p.SaveConfig(cfg))
	require.NoError(t, p.Close())

	cfg, err = Load(dbPath, BackendSQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Simulation.Seed)

	_, err = Load(yamlPath, "toml")
	assert.Error(t, err)
}

func TestSQLiteProviderMigrateSchema(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer p.Close()

	st, err := p.SchemaStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Current)
	assert.Equal(t, []int{1}, st.Pending)

	require.NoError(t, p.InitSchema())
	require.NoError(t, p.SaveConfig(Defaults()))

	require.NoError(t, p.MigrateSchema(0))
	st, err = p.SchemaStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Current)
	_, err = p.LoadConfig()
	assert.Error(t, err)

	assert.Error(t, p.MigrateSchema(7))
}
