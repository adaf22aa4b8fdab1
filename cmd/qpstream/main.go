package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chrissnell/qpstream/internal/constants"
	"github.com/chrissnell/qpstream/internal/log"
	"github.com/chrissnell/qpstream/internal/storage"
	"github.com/chrissnell/qpstream/pkg/config"
	"github.com/chrissnell/qpstream/pkg/plot"
	"github.com/chrissnell/qpstream/pkg/qpstream"
	"github.com/chrissnell/qpstream/pkg/responseformat"
	"github.com/chrissnell/qpstream/pkg/spectral"
)

// overrides holds command-line values that replace configured ones. Only
// flags the user actually set are applied.
type overrides struct {
	seed     int64
	rate     float64
	fallTime float64
	out      string
	format   string
	plot     string
	psd      string
	set      map[string]bool
}

func main() {
	var o overrides
	cfgFile := flag.String("config", "", "Path to configuration source (YAML file or SQLite database). Built-in defaults are used when empty")
	cfgBackend := flag.String("config-backend", config.BackendYAML, "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	flag.Int64Var(&o.seed, "seed", 0, "Random seed (overrides simulation.seed)")
	flag.Float64Var(&o.rate, "rate", 0, "Photon count rate in Hz (overrides arrivals.count_rate_hz)")
	flag.Float64Var(&o.fallTime, "fall-time", 0, "Pulse fall time in microseconds (overrides pulse.fall_time_usec)")
	flag.StringVar(&o.out, "out", "", "Write the run to this file; '-' writes to stdout (overrides output.path)")
	flag.StringVar(&o.format, "format", "", "Output format: json, msgpack or csv (overrides output.format)")
	flag.StringVar(&o.plot, "plot", "", "Render the timestream to this .png or .svg file (overrides output.plot_path)")
	flag.StringVar(&o.psd, "psd", "", "Write the Welch PSD to this file: .png/.svg renders a plot, anything else writes CSV (overrides output.psd_path)")
	store := flag.Bool("store", false, "Save the run to the SQLite run store at storage.sqlite_path")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("qpstream %s\n", constants.Version)
		os.Exit(0)
	}

	o.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgData := config.Defaults()
	if *cfgFile != "" {
		var err error
		cfgData, err = config.Load(*cfgFile, *cfgBackend)
		if err != nil {
			log.Errorf("Failed to load configuration: %v", err)
			os.Exit(1)
		}
	}

	if cfgData.Log.File != "" {
		if err := log.InitWithFile(*debug || cfgData.Log.Debug, log.FileOptions{Path: cfgData.Log.File, MaxSizeMB: 50, MaxBackups: 3}); err != nil {
			log.Errorf("Failed to open log file: %v", err)
			os.Exit(1)
		}
	}

	o.apply(cfgData)
	if err := run(context.Background(), cfgData, *store, os.Stdout); err != nil {
		log.Errorf("qpstream: %v", err)
		os.Exit(1)
	}
}

func (o overrides) apply(c *config.ConfigData) {
	if o.set["seed"] {
		c.Simulation.Seed = o.seed
	}
	if o.set["rate"] {
		c.Arrivals.CountRateHz = o.rate
	}
	if o.set["fall-time"] {
		c.Pulse.FallTimeUsec = o.fallTime
	}
	if o.set["out"] {
		c.Output.Path = o.out
	}
	if o.set["format"] {
		c.Output.Format = o.format
	}
	if o.set["plot"] {
		c.Output.PlotPath = o.plot
	}
	if o.set["psd"] {
		c.Output.PSDPath = o.psd
	}
}

// run performs one simulation and writes every artifact cfgData asks for.
// The human-readable summary goes to stdout unless the run itself does.
func run(ctx context.Context, cfgData *config.ConfigData, store bool, stdout io.Writer) error {
	if err := cfgData.Validate(); err != nil {
		return err
	}
	format, err := responseformat.ParseFormat(cfgData.Output.Format)
	if err != nil {
		return err
	}
	simCfg, err := cfgData.SimulationConfig()
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := qpstream.NewSession(simCfg, qpstream.WithLogger(log.GetSugaredLogger())).Run(cfgData.RunParams())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	summaryOut := stdout
	if cfgData.Output.Path == "-" {
		summaryOut = os.Stderr
		if err := responseformat.Encode(stdout, format, res); err != nil {
			return fmt.Errorf("error writing run: %w", err)
		}
	} else if cfgData.Output.Path != "" {
		if err := writeFile(cfgData.Output.Path, func(w io.Writer) error {
			return responseformat.Encode(w, format, res)
		}); err != nil {
			return fmt.Errorf("error writing run: %w", err)
		}
	}

	if cfgData.Output.PlotPath != "" {
		pf, err := plotFormat(cfgData.Output.PlotPath)
		if err != nil {
			return err
		}
		if err := writeFile(cfgData.Output.PlotPath, func(w io.Writer) error {
			return plot.Timestream(w, res, pf)
		}); err != nil {
			return fmt.Errorf("error writing plot: %w", err)
		}
	}

	if cfgData.Output.PSDPath != "" {
		if err := writePSD(cfgData.Output.PSDPath, res, cfgData.Output.PSDSegmentLength); err != nil {
			return fmt.Errorf("error writing PSD: %w", err)
		}
	}

	var runID string
	if store {
		if cfgData.Storage.SQLitePath == "" {
			return fmt.Errorf("-store needs storage.sqlite_path in the configuration")
		}
		s, err := storage.NewSQLiteStore(ctx, cfgData.Storage.SQLitePath, nil)
		if err != nil {
			return err
		}
		defer s.Close()
		info, err := s.Save(ctx, res)
		if err != nil {
			return err
		}
		runID = info.ID
	}

	printSummary(summaryOut, res, elapsed, cfgData.Output.Path, runID)
	return nil
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func plotFormat(path string) (plot.Format, error) {
	return plot.ParseFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

func writePSD(path string, res *qpstream.Result, segment int) error {
	psd, err := spectral.Welch(res.Timestream, res.Parameters.SampleRateHz, spectral.WelchOptions{SegmentLength: segment})
	if err != nil {
		return err
	}

	if pf, err := plotFormat(path); err == nil {
		return writeFile(path, func(w io.Writer) error {
			return plot.PowerSpectrum(w, psd, pf)
		})
	}
	return writeFile(path, func(w io.Writer) error {
		return spectral.WriteCSV(w, psd)
	})
}

func printSummary(w io.Writer, res *qpstream.Result, elapsed time.Duration, outPath, runID string) {
	p := res.Parameters
	fmt.Fprintf(w, "Synthesized %s samples at %s (%s) in %s\n",
		humanize.Comma(int64(res.SampleCount)),
		humanize.SIWithDigits(p.SampleRateHz, 2, "Hz"),
		humanize.SIWithDigits(p.DurationSec, 3, "s"),
		elapsed.Round(time.Microsecond))
	fmt.Fprintf(w, "  Seed:        %d\n", p.Seed)
	fmt.Fprintf(w, "  Count rate:  %s\n", humanize.SIWithDigits(p.CountRateHz, 3, "Hz"))
	fmt.Fprintf(w, "  Fall time:   %g µs (%d-sample pulse)\n", p.FallTimeUsec, res.PulseLength)
	fmt.Fprintf(w, "  Photons:     %s drawn, %s marked samples, %s injected, %s skipped at the tail\n",
		humanize.Comma(int64(res.Summary.Photons)),
		humanize.Comma(int64(res.Summary.MarkedSamples)),
		humanize.Comma(int64(res.Summary.Injected)),
		humanize.Comma(int64(res.Skipped)))
	fmt.Fprintf(w, "  Timestream:  mean %.4g, std %.4g, peak %.4g\n", res.Summary.Mean, res.Summary.StdDev, res.Summary.Peak)

	for _, a := range res.Advisories {
		fmt.Fprintf(w, "  Advisory:    %s\n", a)
	}
	if outPath != "" && outPath != "-" {
		if fi, err := os.Stat(outPath); err == nil {
			fmt.Fprintf(w, "  Output:      %s (%s)\n", outPath, humanize.Bytes(uint64(fi.Size())))
		}
	}
	if runID != "" {
		fmt.Fprintf(w, "  Stored as:   %s\n", runID)
	}
}
