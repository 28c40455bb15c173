package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/riskibarqy/playerstats-ingest/internal/app"
	"github.com/riskibarqy/playerstats-ingest/internal/config"
	"github.com/riskibarqy/playerstats-ingest/internal/infrastructure/repository/sqlite"
	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if path := strings.TrimSpace(os.Getenv("DB_PATH")); path != "" {
		cfg.DBPath = path
	}

	logger := logging.NewJSON(cfg.LogLevel).Named("migration")
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, logger, os.Args[1:]); err != nil {
		logger.Error("migration command failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logging.Logger, args []string) error {
	db, err := app.OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cmd := strings.ToLower(strings.TrimSpace(args[0]))
	if cmd == "patch" {
		report, err := sqlite.NewSchemaManager(db, logger).Patch(ctx)
		if err != nil {
			return err
		}
		logger.Info("schema patched",
			"columns_added", report.ColumnsAdded,
			"indexes_created", report.IndexesCreated,
			"categories_seeded", report.CategoriesSeeded,
		)
		return nil
	}

	m, err := sqlite.NewMigrator(db)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close migration source", "error", err)
		}
	}()

	switch cmd {
	case "up":
		ran, err := m.Up()
		if err != nil {
			return err
		}
		if !ran {
			logger.Info("no migration changes", "db_path", cfg.DBPath)
			return nil
		}
		logger.Info("migrations applied", "db_path", cfg.DBPath)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			fmt.Println("version: none")
		} else {
			fmt.Printf("version: %d\n", version)
		}
		fmt.Printf("dirty: %t\n", dirty)
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force requires a version argument")
		}
		version, err := parseVersion(args[1])
		if err != nil {
			return err
		}
		if err := m.Force(version); err != nil {
			return err
		}
		logger.Info("forced migration version", "version", version)
	default:
		printUsage()
		os.Exit(2)
	}
	return nil
}

func parseVersion(raw string) (int, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if value < -1 {
		return 0, fmt.Errorf("version must be >= -1")
	}
	if value > int64(^uint(0)>>1) {
		return 0, fmt.Errorf("version is too large for this platform")
	}

	return int(value), nil
}

func printUsage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s <up|version|force|patch> [args]\n", name)
	fmt.Fprintln(os.Stderr, "store path is read from DB_PATH, falling back to INGEST_DB_PATH")
	fmt.Fprintln(os.Stderr, "examples:")
	fmt.Fprintf(os.Stderr, "  %s up\n", name)
	fmt.Fprintf(os.Stderr, "  %s version\n", name)
	fmt.Fprintf(os.Stderr, "  %s force 1\n", name)
	fmt.Fprintf(os.Stderr, "  %s patch\n", name)
}
