package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/playerstats-ingest/internal/config"
)

func baseConfig() config.Config {
	return config.Config{
		AppEnv:              config.EnvDev,
		ServiceName:         "playerstats-ingest",
		ServiceVersion:      "dev",
		DBPath:              "players.sqlite",
		DBBusyTimeout:       5 * time.Second,
		PlanWorkers:         4,
		DecodeWorkers:       4,
		PyroscopeUploadRate: 15 * time.Second,
	}
}

func TestParseFlags_InputsAndOverrides(t *testing.T) {
	cfg, err := parseFlags(baseConfig(), []string{
		"-input", "a.json,b.json",
		"-input", "c.json",
		"-db", "/tmp/out.sqlite",
		"-labels", "labels.yaml",
		"d.json",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.json", "b.json", "c.json", "d.json"}, cfg.InputPaths)
	assert.Equal(t, "/tmp/out.sqlite", cfg.DBPath)
	assert.Equal(t, "labels.yaml", cfg.LabelsPath)
}

func TestParseFlags_EnvInputsKeptWithoutFlag(t *testing.T) {
	base := baseConfig()
	base.InputPaths = []string{"from-env.json"}

	cfg, err := parseFlags(base, nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-env.json"}, cfg.InputPaths)
}

func TestParseFlags_RequiresInput(t *testing.T) {
	_, err := parseFlags(baseConfig(), nil, io.Discard)
	assert.Error(t, err)
}

func TestParseFlags_RejectsInvalidWorkers(t *testing.T) {
	_, err := parseFlags(baseConfig(), []string{"-input", "a.json", "-plan-workers", "0"}, io.Discard)
	assert.Error(t, err)
}

func TestRun_ImportsFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "saka.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"name": "Bukayo Saka", "season_stats": {"2020/21": {"standard": {"Playing Time MP": 30}}}}`), 0o600))
	db := filepath.Join(dir, "players.sqlite")

	t.Setenv("APP_ENV", config.EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("PYROSCOPE_ENABLED", "false")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-input", input, "-db", db}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "imported 1 player(s) into "+db, strings.TrimSpace(stdout.String()))
}

func TestRun_FatalOnInvalidDocument(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(input, []byte(`[1, 2]`), 0o600))

	t.Setenv("APP_ENV", config.EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-input", input, "-db", filepath.Join(dir, "players.sqlite")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
}

func TestRun_DryRunLeavesDatabaseAbsent(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "squad.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
	  {"name": "Bukayo Saka", "season_stats": {"2020/21": {"standard": {"Playing Time MP": 30}}}},
	  {"name": "", "season_stats": {}}
	]`), 0o600))
	db := filepath.Join(dir, "players.sqlite")

	t.Setenv("APP_ENV", config.EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("PYROSCOPE_ENABLED", "false")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-dry-run", "-input", input, "-db", db}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "dry run: 1 player(s) would be imported, 1 failed", strings.TrimSpace(stdout.String()))
	_, err := os.Stat(db)
	assert.True(t, os.IsNotExist(err))
}
