package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
)

// Config stores runtime configuration for the ingestion tools.
type Config struct {
	AppEnv                     string        `validate:"oneof=dev stage prod"`
	ServiceName                string        `validate:"required"`
	ServiceVersion             string        `validate:"required"`
	DBPath                     string        `validate:"required"`
	DBBusyTimeout              time.Duration `validate:"gt=0"`
	InputPaths                 []string      `validate:"dive,required"`
	LabelsPath                 string
	DryRun                     bool
	PlanWorkers                int `validate:"min=1,max=256"`
	DecodeWorkers              int `validate:"min=1,max=256"`
	UptraceEnabled             bool
	UptraceDSN                 string `validate:"required_if=UptraceEnabled true"`
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string `validate:"required_if=PyroscopeEnabled true"`
	PyroscopeAppName           string `validate:"required_if=PyroscopeEnabled true"`
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration `validate:"gt=0"`
	LogLevel                   logging.Level
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	busyTimeout, err := time.ParseDuration(getEnv("DB_BUSY_TIMEOUT", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_BUSY_TIMEOUT: %w", err)
	}

	planWorkers, err := getEnvAsInt("INGEST_PLAN_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse INGEST_PLAN_WORKERS: %w", err)
	}
	decodeWorkers, err := getEnvAsInt("INGEST_DECODE_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse INGEST_DECODE_WORKERS: %w", err)
	}

	dryRun, err := strconv.ParseBool(getEnv("INGEST_DRY_RUN", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse INGEST_DRY_RUN: %w", err)
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}

	cfg := Config{
		AppEnv:                     appEnv,
		ServiceName:                strings.TrimSpace(getEnv("APP_SERVICE_NAME", "playerstats-ingest")),
		ServiceVersion:             strings.TrimSpace(getEnv("APP_SERVICE_VERSION", "dev")),
		DBPath:                     strings.TrimSpace(getEnv("INGEST_DB_PATH", "players.sqlite")),
		DBBusyTimeout:              busyTimeout,
		InputPaths:                 splitCSV(getEnv("INGEST_INPUT", "")),
		LabelsPath:                 strings.TrimSpace(getEnv("INGEST_LABELS_PATH", "")),
		DryRun:                     dryRun,
		PlanWorkers:                planWorkers,
		DecodeWorkers:              decodeWorkers,
		UptraceEnabled:             uptraceEnabled,
		UptraceDSN:                 uptraceDSN,
		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", "")),
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
		LogLevel:                   parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints. It is called by Load and again by the
// CLI after flags are applied.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

// SplitCSV splits a comma separated list, dropping blank items.
func SplitCSV(v string) []string {
	return splitCSV(v)
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
