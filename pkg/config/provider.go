package config

import (
	"math"

	"github.com/chrissnell/qpstream/pkg/qpstream"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Simulation SimulationData `json:"simulation" yaml:"simulation"`
	Pulse      PulseData      `json:"pulse" yaml:"pulse"`
	Arrivals   ArrivalsData   `json:"arrivals" yaml:"arrivals"`
	Output     OutputData     `json:"output,omitempty" yaml:"output,omitempty"`
	Storage    StorageData    `json:"storage,omitempty" yaml:"storage,omitempty"`
	Server     ServerData     `json:"server,omitempty" yaml:"server,omitempty"`
	Log        LogData        `json:"log,omitempty" yaml:"log,omitempty"`
}

// SimulationData holds the immutable simulation parameters
type SimulationData struct {
	SampleRateHz  float64   `json:"sample_rate_hz" yaml:"sample_rate_hz"`
	DurationSec   float64   `json:"duration_sec" yaml:"duration_sec"`
	WavelengthsNM []float64 `json:"wavelengths_nm" yaml:"wavelengths_nm"`
	Seed          int64     `json:"seed" yaml:"seed"`
}

// PulseData holds the pulse shape parameters
type PulseData struct {
	FallTimeUsec float64 `json:"fall_time_usec" yaml:"fall_time_usec"`
}

// ArrivalsData holds the photon arrival process parameters
type ArrivalsData struct {
	CountRateHz float64 `json:"count_rate_hz" yaml:"count_rate_hz"`
}

// OutputData controls where the one-shot CLI writes its artifacts
type OutputData struct {
	Path             string `json:"path,omitempty" yaml:"path,omitempty"`
	Format           string `json:"format,omitempty" yaml:"format,omitempty"`
	PlotPath         string `json:"plot_path,omitempty" yaml:"plot_path,omitempty"`
	PSDPath          string `json:"psd_path,omitempty" yaml:"psd_path,omitempty"`
	PSDSegmentLength int    `json:"psd_segment_length,omitempty" yaml:"psd_segment_length,omitempty"`
}

// StorageData holds the run store configuration
type StorageData struct {
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

// ServerData holds the HTTP service configuration
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	// CacheMB bounds the in-memory result cache; 0 disables it.
	CacheMB int `json:"cache_mb,omitempty" yaml:"cache_mb,omitempty"`
}

// LogData holds logging configuration
type LogData struct {
	Debug bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Defaults returns the configuration used when a source leaves a field unset.
func Defaults() *ConfigData {
	return &ConfigData{
		Simulation: SimulationData{
			SampleRateHz:  1e6,
			DurationSec:   1e-3,
			WavelengthsNM: []float64{qpstream.ReferenceWavelengthNM},
			Seed:          3,
		},
		Pulse:    PulseData{FallTimeUsec: 30},
		Arrivals: ArrivalsData{CountRateHz: 500},
		Output: OutputData{
			Format:           "json",
			PSDSegmentLength: 256,
		},
		Server: ServerData{
			ListenAddr: "0.0.0.0",
			Port:       8080,
			CacheMB:    64,
		},
	}
}

// SimulationConfig validates the simulation section.
func (c *ConfigData) SimulationConfig() (qpstream.SimulationConfig, error) {
	s := c.Simulation
	return qpstream.NewSimulationConfig(s.SampleRateHz, s.DurationSec, s.WavelengthsNM, s.Seed)
}

// RunParams returns the per-run parameters.
func (c *ConfigData) RunParams() qpstream.RunParams {
	return qpstream.RunParams{
		FallTimeUsec: c.Pulse.FallTimeUsec,
		CountRateHz:  c.Arrivals.CountRateHz,
	}
}

// Validate checks every simulation parameter without running anything.
func (c *ConfigData) Validate() error {
	cfg, err := c.SimulationConfig()
	if err != nil {
		return err
	}
	if _, err := qpstream.PulseLength(c.Pulse.FallTimeUsec, cfg.SampleRateHz()); err != nil {
		return err
	}
	if rate := c.Arrivals.CountRateHz; rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return &qpstream.ConfigurationError{Field: "count_rate_hz", Value: c.Arrivals.CountRateHz, Reason: "must be zero or positive"}
	}
	return nil
}
