// Command goldrates streams a gold-rate CSV in chunks, appends per-ounce
// rate columns and writes the result to a relational table and optional
// CSV, XLSX and Parquet files.
//
// Configuration precedence: flag > environment (.env honoured) > --config
// file > built-in defaults.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"goldrates/internal/config"
	"goldrates/internal/logging"
	"goldrates/internal/metrics"
	"goldrates/internal/metrics/datadog"
	"goldrates/internal/metrics/prompush"
	"goldrates/internal/pipeline"

	// register all backends with the storage factory.
	_ "goldrates/internal/storage/all"
)

func main() {
	_ = godotenv.Load() // optional .env; real environment wins
	os.Exit(run(os.Args[1:], os.Stderr, os.Getenv))
}

// flags holds the raw command-line values.
type flags struct {
	configPath string
	validate   bool
	verbose    bool

	input, outCSV, outXLSX, outParquet string
	table, dbKind, dbDSN, comma        string
	chunkSize, precision               int
	allowMissing                       bool
	metricsBackend, pushgatewayURL     string
	datadogAddr, logLevel              string
}

func newFlagSet(out io.Writer) (*flag.FlagSet, *flags) {
	var f flags
	def := config.Default()
	fs := flag.NewFlagSet("goldrates", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&f.configPath, "config", "", "YAML or JSON config file")
	fs.BoolVar(&f.validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&f.verbose, "v", false, "enable verbose logs")

	fs.StringVar(&f.input, "input", "", "source CSV path (.zst, .gz, .lz4 decompressed)")
	fs.StringVar(&f.outCSV, "output-csv", "", "write the enriched table to this CSV file")
	fs.StringVar(&f.outXLSX, "output-xlsx", "", "write the enriched table to this XLSX file")
	fs.StringVar(&f.outParquet, "output-parquet", "", "write the enriched table to this Parquet file")
	fs.StringVar(&f.table, "table", def.DB.Table, "relational table name (replaced on every run)")
	fs.IntVar(&f.chunkSize, "chunksize", def.ChunkSize, "rows per chunk and insert batch")
	fs.StringVar(&f.dbKind, "db-kind", def.DB.Kind, "relational backend: mysql, postgres, mssql, sqlite")
	fs.StringVar(&f.dbDSN, "db-dsn", def.DB.DSN, "database connection string")
	fs.IntVar(&f.precision, "precision", def.Precision, "round derived values to n places (-1 disables)")
	fs.BoolVar(&f.allowMissing, "allow-missing-rate-columns", false, "derive empty columns for missing rate columns instead of failing")
	fs.StringVar(&f.comma, "comma", def.Comma, "input delimiter")
	fs.StringVar(&f.metricsBackend, "metrics-backend", def.Metrics.Backend, "metrics backend: none, pushgateway, datadog")
	fs.StringVar(&f.pushgatewayURL, "pushgateway-url", def.Metrics.PushgatewayURL, "Pushgateway base URL")
	fs.StringVar(&f.datadogAddr, "datadog-addr", def.Metrics.DatadogAddr, "DogStatsD address")
	fs.StringVar(&f.logLevel, "log-level", def.Log.Level, "log level: debug, info, warn, error")
	return fs, &f
}

// resolveConfig layers defaults, the config file, the environment and the
// flags the user actually set.
func resolveConfig(fs *flag.FlagSet, f *flags, getenv func(string) string) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(f.configPath, cfg); err != nil {
			return cfg, err
		}
	}
	config.ApplyEnv(&cfg, getenv)

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "input":
			cfg.Input = f.input
		case "output-csv":
			cfg.Outputs.CSV = f.outCSV
		case "output-xlsx":
			cfg.Outputs.XLSX = f.outXLSX
		case "output-parquet":
			cfg.Outputs.Parquet = f.outParquet
		case "table":
			cfg.DB.Table = f.table
		case "chunksize":
			cfg.ChunkSize = f.chunkSize
		case "db-kind":
			cfg.DB.Kind = f.dbKind
		case "db-dsn":
			cfg.DB.DSN = f.dbDSN
		case "precision":
			cfg.Precision = f.precision
		case "allow-missing-rate-columns":
			cfg.AllowMissingRateColumns = f.allowMissing
		case "comma":
			cfg.Comma = f.comma
		case "metrics-backend":
			cfg.Metrics.Backend = f.metricsBackend
		case "pushgateway-url":
			cfg.Metrics.PushgatewayURL = f.pushgatewayURL
		case "datadog-addr":
			cfg.Metrics.DatadogAddr = f.datadogAddr
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "v":
			cfg.Log.Verbose = f.verbose
		}
	})
	return cfg, nil
}

// run is main without the process exit, returning the exit code.
func run(args []string, stderr io.Writer, getenv func(string) string) int {
	fs, f := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return pipeline.ExitOK
		}
		return pipeline.ExitConfig
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return pipeline.ExitConfig
	}

	cfg, err := resolveConfig(fs, f, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return pipeline.ExitConfig
	}

	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Verbose: cfg.Log.Verbose, JSON: cfg.Log.JSON})
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return pipeline.ExitConfig
	}
	defer func() { _ = log.Sync() }()

	issues := config.Validate(cfg)
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			log.Error("config: "+iss.Message, zap.String("path", iss.Path))
		} else {
			log.Warn("config: "+iss.Message, zap.String("path", iss.Path))
		}
	}
	if len(config.Errors(issues)) > 0 {
		log.Error("configuration is invalid")
		return pipeline.ExitConfig
	}
	if f.validate {
		log.Info("configuration is valid")
		return pipeline.ExitOK
	}

	runID := uuid.NewString()
	if flush := setupMetrics(cfg.Metrics, runID, log); flush != nil {
		defer flush()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := pipeline.New(cfg, log, pipeline.WithRunID(runID))
	if _, err := d.Run(ctx); err != nil {
		fields := []zap.Field{zap.Error(err)}
		var se *pipeline.StageError
		if errors.As(err, &se) {
			fields = append(fields, zap.String("stage", string(se.Stage)))
			if se.Sink != "" {
				fields = append(fields, zap.String("sink", se.Sink))
			}
		}
		code := pipeline.ExitCode(err)
		if code == pipeline.ExitInterrupted {
			log.Warn("goldrates: interrupted", fields...)
		} else {
			log.Error("goldrates: run failed", fields...)
		}
		return code
	}
	return pipeline.ExitOK
}

// setupMetrics installs the configured backend and returns its flush, or nil
// when metrics are disabled. A backend that cannot start is logged and
// skipped; metrics never fail a run.
func setupMetrics(mc config.MetricsConfig, runID string, log *zap.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch mc.Backend {
	case "", config.MetricsNone:
		log.Debug("metrics: disabled")
		return nil
	case config.MetricsPushgateway:
		b, err = prompush.NewBackend(mc.Job, mc.PushgatewayURL, runID)
	case config.MetricsDatadog:
		b, err = datadog.NewBackend(datadog.Config{Addr: mc.DatadogAddr, GlobalTags: append([]string{"run_id:" + runID}, mc.Tags...)})
	default:
		log.Warn("metrics: unknown backend; metrics disabled", zap.String("backend", mc.Backend))
		return nil
	}
	if err != nil {
		log.Warn("metrics: backend init failed; using nop", zap.String("backend", mc.Backend), zap.Error(err))
		return nil
	}
	log.Debug("metrics: enabled", zap.String("backend", mc.Backend))
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush error", zap.Error(err))
		}
	}
}
