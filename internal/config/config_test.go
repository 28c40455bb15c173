package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("INGEST_DB_PATH", "")
	t.Setenv("INGEST_INPUT", "")
	t.Setenv("INGEST_PLAN_WORKERS", "")
	t.Setenv("DB_BUSY_TIMEOUT", "")
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("PYROSCOPE_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBPath != "players.sqlite" {
		t.Fatalf("unexpected default db path: %q", cfg.DBPath)
	}
	if cfg.DBBusyTimeout != 5*time.Second {
		t.Fatalf("unexpected default busy timeout: %s", cfg.DBBusyTimeout)
	}
	if cfg.PlanWorkers != 4 || cfg.DecodeWorkers != 4 {
		t.Fatalf("unexpected default workers: plan=%d decode=%d", cfg.PlanWorkers, cfg.DecodeWorkers)
	}
	if len(cfg.InputPaths) != 0 {
		t.Fatalf("expected no default inputs, got %+v", cfg.InputPaths)
	}
	if cfg.LogLevel.String() != "info" {
		t.Fatalf("unexpected default log level: %s", cfg.LogLevel.String())
	}
}

func TestLoad_InputPathsParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("INGEST_INPUT", " saka.json, ,rice.json ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.InputPaths) != 2 || cfg.InputPaths[0] != "saka.json" || cfg.InputPaths[1] != "rice.json" {
		t.Fatalf("unexpected input paths: %+v", cfg.InputPaths)
	}
}

func TestLoad_DryRunParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	t.Setenv("INGEST_DRY_RUN", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.DryRun {
		t.Fatalf("expected dry run enabled")
	}

	t.Setenv("INGEST_DRY_RUN", "maybe")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid INGEST_DRY_RUN")
	}
}

func TestLoad_WorkerBounds(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	t.Run("zero plan workers", func(t *testing.T) {
		t.Setenv("INGEST_PLAN_WORKERS", "0")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for INGEST_PLAN_WORKERS=0")
		}
	})

	t.Run("invalid decode workers", func(t *testing.T) {
		t.Setenv("INGEST_DECODE_WORKERS", "many")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for invalid INGEST_DECODE_WORKERS")
		}
	})
}

func TestLoad_BusyTimeoutParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	t.Run("invalid duration", func(t *testing.T) {
		t.Setenv("DB_BUSY_TIMEOUT", "soon")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for invalid DB_BUSY_TIMEOUT")
		}
	})

	t.Run("non positive", func(t *testing.T) {
		t.Setenv("DB_BUSY_TIMEOUT", "0s")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for DB_BUSY_TIMEOUT=0s")
		}
	})
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-other=1, uptrace-dsn='https://token@api.uptrace.dev?grpc=4317'")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev?grpc=4317" {
		t.Fatalf("unexpected uptrace dsn: %q", cfg.UptraceDSN)
	}
}

func TestLoad_PyroscopeRequiresServerAddressWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PYROSCOPE_ENABLED=true without PYROSCOPE_SERVER_ADDRESS")
	}
}

func TestLoad_PyroscopeAppNameDefaultsToServiceName(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("APP_SERVICE_NAME", "playerstats-ingest-test")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040")
	t.Setenv("PYROSCOPE_APP_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PyroscopeAppName != "playerstats-ingest-test" {
		t.Fatalf("unexpected pyroscope app name: %q", cfg.PyroscopeAppName)
	}
}

func TestLoad_LogLevelParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("APP_LOG_LEVEL", "WARNING")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LogLevel.String() != "warn" {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel.String())
	}
}
