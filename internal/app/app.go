package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/playerstats-ingest/internal/config"
	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
	"github.com/riskibarqy/playerstats-ingest/internal/domain/playerstats"
	"github.com/riskibarqy/playerstats-ingest/internal/infrastructure/document"
	"github.com/riskibarqy/playerstats-ingest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/playerstats-ingest/internal/infrastructure/repository/sqlite"
	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
	"github.com/riskibarqy/playerstats-ingest/internal/usecase"
)

// Summary is the outcome of one ingestion run.
type Summary struct {
	DBPath string
	DryRun bool
	Schema sqlite.SchemaReport
	Batch  usecase.Result
	Counts player.Counts
}

// OpenDB opens the traced SQLite handle configured by cfg.
func OpenDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	path := normalizeDBPath(cfg.DBPath)
	return sqlite.Open(ctx, sqlite.Options{
		Path:           path,
		BusyTimeout:    cfg.DBBusyTimeout,
		DBName:         dbNameFromPath(path),
		QueryFormatter: formatDBQueryForTrace,
	})
}

// Ingest decodes every input file, bootstraps the store and merges the
// documents in one batch. Input errors are returned before the store is
// opened.
func Ingest(ctx context.Context, cfg config.Config, logger *logging.Logger) (Summary, error) {
	if logger == nil {
		logger = logging.Default()
	}
	summary := Summary{DBPath: normalizeDBPath(cfg.DBPath)}

	labels, err := playerstats.LoadLabelMap(cfg.LabelsPath)
	if err != nil {
		return summary, fmt.Errorf("load label map: %w", err)
	}

	loader := document.NewLoader(cfg.DecodeWorkers, logger.Named("document"))
	docs, err := loader.LoadFiles(ctx, cfg.InputPaths)
	if err != nil {
		return summary, err
	}

	var store player.Store
	if cfg.DryRun {
		// Same batch semantics against the in-memory store; nothing is written.
		store = memory.NewStore()
		summary.DryRun = true
	} else {
		sqliteStore, report, closeDB, err := openStore(ctx, cfg, logger)
		if err != nil {
			return summary, err
		}
		defer closeDB()
		store = sqliteStore
		summary.Schema = report
	}

	service := usecase.NewIngestionService(store, playerstats.NewResolver(labels), logger.Named("ingest"), cfg.PlanWorkers)

	result, err := service.ImportBatch(ctx, docs)
	summary.Batch = result
	if err != nil {
		return summary, err
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		return summary, fmt.Errorf("count rows: %w", err)
	}
	summary.Counts = counts
	return summary, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (*sqlite.Store, sqlite.SchemaReport, func(), error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, sqlite.SchemaReport{}, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("close sqlite failed", "error", err)
		}
	}

	schemaStart := time.Now()
	report, err := sqlite.NewSchemaManager(db, logger.Named("schema")).Ensure(ctx)
	if err != nil {
		closeDB()
		return nil, sqlite.SchemaReport{}, nil, err
	}
	logger.Debug("schema ready", "duration_ms", time.Since(schemaStart).Milliseconds())

	return sqlite.NewStore(db, logger.Named("store")), report, closeDB, nil
}
