package config

import (
	"fmt"
	"path/filepath"
)

// Backends accepted by Open.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

// Open returns the provider for a configuration source. The caller owns the
// provider and must Close it.
func Open(cfgFile, backend string) (ConfigProvider, error) {
	filename, err := filepath.Abs(cfgFile)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendYAML:
		return NewYAMLProvider(filename), nil
	case BackendSQLite:
		provider, err := NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	}
	return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", backend)
}

// Load opens a configuration source, reads it and closes it again.
func Load(cfgFile, backend string) (*ConfigData, error) {
	provider, err := Open(cfgFile, backend)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfgData, nil
}
