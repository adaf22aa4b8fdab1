package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chrissnell/qpstream/pkg/config"
	"github.com/chrissnell/qpstream/pkg/migrate"
)

func main() {
	var (
		yamlFile     = flag.String("yaml", "", "Path to YAML configuration file (required for conversion)")
		sqliteFile   = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force        = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun       = flag.Bool("dry-run", false, "Show what would be done without executing")
		schemaStatus = flag.Bool("schema-status", false, "Print the schema version of an existing SQLite database and exit")
		migrateTo    = flag.Int("migrate-to", migrate.Latest, "Migrate an existing SQLite database to this schema version and exit (0 drops the configuration tables)")
	)
	flag.Parse()

	migrateSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "migrate-to" {
			migrateSet = true
		}
	})

	if *sqliteFile == "" || (*yamlFile == "" && !*schemaStatus && !migrateSet) {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -sqlite <config.db> -schema-status | -migrate-to <version>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	var err error
	switch {
	case migrateSet:
		err = migrateSchema(*sqliteFile, *migrateTo, os.Stdout)
	case *schemaStatus:
		err = printSchemaStatus(*sqliteFile, os.Stdout)
	default:
		err = convert(*yamlFile, *sqliteFile, *force, *dryRun)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openExisting(sqliteFile string) (*config.SQLiteProvider, error) {
	if _, err := os.Stat(sqliteFile); err != nil {
		return nil, fmt.Errorf("SQLite file is not accessible: %w", err)
	}
	return config.NewSQLiteProvider(sqliteFile)
}

// migrateSchema moves an existing configuration database to version and
// prints the resulting status.
func migrateSchema(sqliteFile string, version int, w io.Writer) error {
	provider, err := openExisting(sqliteFile)
	if err != nil {
		return err
	}
	defer provider.Close()

	if err := provider.MigrateSchema(version); err != nil {
		return err
	}
	return writeSchemaStatus(provider, w)
}

func printSchemaStatus(sqliteFile string, w io.Writer) error {
	provider, err := openExisting(sqliteFile)
	if err != nil {
		return err
	}
	defer provider.Close()
	return writeSchemaStatus(provider, w)
}

func writeSchemaStatus(provider *config.SQLiteProvider, w io.Writer) error {
	st, err := provider.SchemaStatus()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Schema version: %d (latest %d)\n", st.Current, st.Latest)
	if st.UpToDate() {
		fmt.Fprintln(w, "Schema is up to date")
		return nil
	}
	fmt.Fprintf(w, "Pending migrations: %v\n", st.Pending)
	return nil
}

func convert(yamlFile, sqliteFile string, force, dryRun bool) error {
	// Check if YAML file exists
	if _, err := os.Stat(yamlFile); os.IsNotExist(err) {
		return fmt.Errorf("YAML file does not exist: %s", yamlFile)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(sqliteFile); err == nil && !force {
		return fmt.Errorf("SQLite file already exists: %s (use -force to overwrite or choose a different filename)", sqliteFile)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", yamlFile)
	fmt.Printf("  Target: %s\n", sqliteFile)

	if dryRun {
		fmt.Println("DRY RUN - No changes will be made")
	}

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration...\n")
	configData, err := config.NewYAMLProvider(yamlFile).LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading YAML configuration: %w", err)
	}
	if err := configData.Validate(); err != nil {
		return fmt.Errorf("configuration is not valid: %w", err)
	}

	if dryRun {
		printConfigSummary(configData)
		fmt.Println("DRY RUN complete - no database created")
		return nil
	}

	// Remove existing SQLite file if force is specified
	if force {
		if err := os.Remove(sqliteFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("error removing existing SQLite file: %w", err)
		}
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(sqliteFile), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fmt.Printf("Creating SQLite database...\n")
	provider, err := config.NewSQLiteProvider(sqliteFile)
	if err != nil {
		return err
	}
	defer provider.Close()

	if err := provider.InitSchema(); err != nil {
		return err
	}

	fmt.Printf("Loading configuration into SQLite database...\n")
	if err := provider.SaveConfig(configData); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", sqliteFile)
	return nil
}

func printConfigSummary(c *config.ConfigData) {
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Simulation:\n")
	fmt.Printf("  - sample rate: %g Hz\n", c.Simulation.SampleRateHz)
	fmt.Printf("  - duration: %g s\n", c.Simulation.DurationSec)
	fmt.Printf("  - wavelengths: %v nm\n", c.Simulation.WavelengthsNM)
	fmt.Printf("  - seed: %d\n", c.Simulation.Seed)
	fmt.Printf("Pulse fall time: %g µs\n", c.Pulse.FallTimeUsec)
	fmt.Printf("Count rate: %g Hz\n", c.Arrivals.CountRateHz)

	fmt.Printf("\nOutput: format=%s", c.Output.Format)
	if c.Output.Path != "" {
		fmt.Printf(" path=%s", c.Output.Path)
	}
	fmt.Println()
	if c.Storage.SQLitePath != "" {
		fmt.Printf("Run store: %s\n", c.Storage.SQLitePath)
	}
	fmt.Printf("Server: %s:%d\n", c.Server.ListenAddr, c.Server.Port)
}
