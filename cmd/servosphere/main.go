// Command servosphere derives movement variables from servosphere
// recordings, prints per-trial summaries and optionally stores, exports
// and plots the results.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/servosphere/internal/config"
	"github.com/banshee-data/servosphere/internal/db"
	"github.com/banshee-data/servosphere/internal/fsutil"
	"github.com/banshee-data/servosphere/internal/ingest"
	"github.com/banshee-data/servosphere/internal/monitoring"
	"github.com/banshee-data/servosphere/internal/movement"
	"github.com/banshee-data/servosphere/internal/report"
	"github.com/banshee-data/servosphere/internal/summary"
	"github.com/banshee-data/servosphere/internal/version"
)

type options struct {
	configPath string
	dbPath     string
	outDir     string
	plotDir    string
	workers    int
	store      bool
	asJSON     bool
	quiet      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, fsutil.OSFileSystem{}); err != nil {
		log.Fatalf("servosphere: %v", err)
	}
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		w := fs.Output()
		fmt.Fprintf(w, "Usage: servosphere [flags] <command> [args]\n\n")
		fmt.Fprintf(w, "Commands:\n")
		fmt.Fprintf(w, "  derive <file.csv>...     derive movement variables and print summaries\n")
		fmt.Fprintf(w, "  list                     list stored recordings\n")
		fmt.Fprintf(w, "  show <recording-id>      print a stored recording as CSV\n")
		fmt.Fprintf(w, "  migrate up|down|version|force <n>\n")
		fmt.Fprintf(w, "  version                  print build information\n\n")
		fmt.Fprintf(w, "Flags:\n")
		fs.PrintDefaults()
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, fsys fsutil.FileSystem) error {
	var opts options
	fs := flag.NewFlagSet("servosphere", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to JSON run configuration")
	fs.StringVar(&opts.dbPath, "db", "", "path to sqlite database (overrides config)")
	fs.StringVar(&opts.outDir, "out", "", "directory for derived CSV files (overrides config)")
	fs.StringVar(&opts.plotDir, "plots", "", "directory for path plots and velocity charts (overrides config)")
	fs.IntVar(&opts.workers, "workers", 0, "recordings processed concurrently (overrides config)")
	fs.BoolVar(&opts.store, "store", false, "store derived recordings and summaries in the database")
	fs.BoolVar(&opts.asJSON, "json", false, "print summaries as JSON")
	fs.BoolVar(&opts.quiet, "quiet", false, "suppress diagnostic logging")
	fs.Usage = usage(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.quiet {
		restore := monitoring.Logf
		monitoring.SetLogger(nil)
		defer monitoring.SetLogger(restore)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	switch rest[0] {
	case "derive":
		return runDerive(ctx, cfg, opts, rest[1:], stdout, fsys)
	case "list":
		return runList(ctx, cfg, stdout)
	case "show":
		return runShow(ctx, cfg, rest[1:], stdout)
	case "migrate":
		return runMigrate(cfg, rest[1:], stdout)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.dbPath != "" {
		cfg.DatabasePath = &opts.dbPath
	}
	if opts.outDir != "" {
		cfg.OutputDir = &opts.outDir
	}
	if opts.plotDir != "" {
		cfg.PlotDir = &opts.plotDir
	}
	if opts.workers != 0 {
		cfg.Workers = &opts.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runDerive(ctx context.Context, cfg *config.Config, opts options, paths []string, stdout io.Writer, fsys fsutil.FileSystem) error {
	if len(paths) == 0 {
		return errors.New("derive: at least one recording is required")
	}
	defer monitoring.Elapsed("derive", time.Now())

	// Expand globs so quoted patterns work the same on every shell.
	var files []string
	for _, p := range paths {
		matches, err := fsys.Glob(p)
		if err != nil {
			return fmt.Errorf("derive: bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			matches = []string{p}
		}
		files = append(files, matches...)
	}

	c, err := ingest.ReadAll(fsys, files)
	if err != nil {
		return err
	}
	if cfg.GetClean() {
		if c, err = ingest.CleanAll(c, cfg.GetMinDTMillis()); err != nil {
			return err
		}
	}

	c, err = cfg.Pipeline().Run(ctx, c)
	if err != nil {
		return err
	}
	monitoring.Logf("derived %d recording(s) with stages %v", len(c), cfg.GetStages())

	tables := c.TableList()
	summaries := make([]summary.Summary, len(tables))
	haveSummaries := fullPipeline(cfg.GetStages())
	if haveSummaries {
		if summaries, err = summary.SummarizeAll(c); err != nil {
			return err
		}
	}

	if dir := cfg.GetOutputDir(); dir != "" {
		for _, t := range tables {
			path, err := ingest.WriteCSV(fsys, dir, t)
			if err != nil {
				return err
			}
			monitoring.Logf("wrote %s", path)
		}
	}

	if dir := cfg.GetPlotDir(); dir != "" {
		if err := writePlots(fsys, dir, cfg.GetDistanceUnit(), tables); err != nil {
			return err
		}
	}

	if opts.store {
		if err := storeAll(ctx, cfg.GetDatabasePath(), files, tables, summaries, haveSummaries); err != nil {
			return err
		}
	}

	if !haveSummaries {
		return nil
	}
	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	return printSummaries(stdout, summaries, cfg.GetDistanceUnit())
}

// fullPipeline reports whether every stage ran, which summaries require.
func fullPipeline(stages []movement.Stage) bool {
	seen := make(map[movement.Stage]bool, len(stages))
	for _, s := range stages {
		seen[s] = true
	}
	for _, s := range movement.AllStages {
		if !seen[s] {
			return false
		}
	}
	return true
}

func writePlots(fsys fsutil.FileSystem, dir, unit string, tables []*movement.Table) error {
	for _, t := range tables {
		if t.Has(movement.ColX) {
			path, err := report.WritePathPlot(fsys, dir, t, unit)
			if err != nil {
				return fmt.Errorf("plot %s: %w", t.Name, err)
			}
			monitoring.Logf("wrote %s", path)
		}
		if t.Has(movement.ColVelocity) && t.Has(movement.ColTurnVelocity) {
			path, err := report.WriteVelocityChart(fsys, dir, t, unit)
			if err != nil {
				return fmt.Errorf("chart %s: %w", t.Name, err)
			}
			monitoring.Logf("wrote %s", path)
		}
	}
	return nil
}

func storeAll(ctx context.Context, dbPath string, files []string, tables []*movement.Table, summaries []summary.Summary, withSummaries bool) error {
	database, err := db.NewDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	for i, t := range tables {
		rec, err := database.SaveRecording(ctx, t, files[i])
		if err != nil {
			return fmt.Errorf("store %s: %w", t.Name, err)
		}
		if withSummaries {
			if err := database.SaveSummary(ctx, rec.ID, summaries[i]); err != nil {
				return fmt.Errorf("store %s: %w", t.Name, err)
			}
		}
		monitoring.Logf("stored %s as %s", t.Name, rec.ID)
	}
	return nil
}

func printSummaries(w io.Writer, summaries []summary.Summary, unit string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "name\trows\tduration_s\tdistance_%s\tstraightness\tmean_velocity\tmean_turn_velocity\tstop_fraction\tmean_bearing\n", unit)
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Name, s.Rows,
			num(s.DurationSecs), num(s.TotalDistance), num(s.Straightness),
			num(s.MeanVelocity), num(s.MeanTurnVelocity), num(s.StopFraction),
			num(s.MeanBearingDegrees),
		)
	}
	return tw.Flush()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func runList(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	database, err := db.NewDB(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	recs, err := database.ListRecordings(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "recording_id\tname\trows\tsource\tcreated_at")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Name, r.Rows, r.Source, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func runShow(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: servosphere show <recording-id>")
	}
	database, err := db.NewDB(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	t, err := database.LoadRecording(ctx, args[0])
	if err != nil {
		return err
	}
	return ingest.Write(stdout, t)
}

func runMigrate(cfg *config.Config, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errors.New("usage: servosphere migrate up|down|version|force <n>")
	}
	// Schema is managed explicitly here, so open without migrating.
	database, err := db.OpenDB(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	switch args[0] {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		monitoring.Logf("all migrations applied")
	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		monitoring.Logf("rolled back one migration")
	case "force":
		if len(args) < 2 {
			return errors.New("usage: servosphere migrate force <n>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.MigrateForce(v); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate action %q", args[0])
	}

	v, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "version=%d dirty=%t\n", v, dirty)
	return nil
}
