package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/riskibarqy/playerstats-ingest/internal/app"
	"github.com/riskibarqy/playerstats-ingest/internal/config"
	"github.com/riskibarqy/playerstats-ingest/internal/observability"
	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
)

// inputList collects repeated and comma separated -input values.
type inputList []string

func (l *inputList) String() string {
	return strings.Join(*l, ",")
}

func (l *inputList) Set(v string) error {
	*l = append(*l, config.SplitCSV(v)...)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	cfg, err = parseFlags(cfg, args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	logger := logging.NewJSONWriter(cfg.LogLevel, stderr).Named("playerstats-ingest")
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("shutdown uptrace", "error", err)
		}
	}()

	stopProfiler, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		return 1
	}
	defer func() { _ = stopProfiler() }()

	summary, err := app.Ingest(ctx, cfg, logger)
	if err != nil {
		logger.Error("ingestion failed", "db_path", summary.DBPath, "error", err)
		return 1
	}

	logger.Info("ingestion finished",
		"run_id", summary.Batch.RunID,
		"imported", summary.Batch.Imported,
		"failed", summary.Batch.Failed,
		"players_total", summary.Counts.Players,
		"season_stats_total", summary.Counts.SeasonStats,
	)
	if summary.DryRun {
		fmt.Fprintf(stdout, "dry run: %d player(s) would be imported, %d failed\n", summary.Batch.Imported, summary.Batch.Failed)
		return 0
	}
	fmt.Fprintf(stdout, "imported %d player(s) into %s\n", summary.Batch.Imported, summary.DBPath)
	return 0
}

// parseFlags applies command line overrides on top of the env config.
func parseFlags(cfg config.Config, args []string, output io.Writer) (config.Config, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(output)

	var inputs inputList
	fs.Var(&inputs, "input", "Player JSON file; repeatable or comma separated (env INGEST_INPUT).")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite store path (env INGEST_DB_PATH).")
	fs.StringVar(&cfg.LabelsPath, "labels", cfg.LabelsPath, "Optional label map YAML overlay (env INGEST_LABELS_PATH).")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Run the batch against an in-memory store (env INGEST_DRY_RUN).")
	fs.IntVar(&cfg.PlanWorkers, "plan-workers", cfg.PlanWorkers, "Parallel document planners.")
	fs.IntVar(&cfg.DecodeWorkers, "decode-workers", cfg.DecodeWorkers, "Parallel input file decoders.")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	inputs = append(inputs, fs.Args()...)
	if len(inputs) > 0 {
		cfg.InputPaths = inputs
	}
	if len(cfg.InputPaths) == 0 {
		return cfg, fmt.Errorf("at least one -input file is required")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
