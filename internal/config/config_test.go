package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/log"
)

// chdir moves into a fresh directory so no stray plansmith.yaml or .env
// is picked up
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Pipeline, cfg.Pipeline)
	assert.Equal(t, BackendHeuristic, cfg.Backend.Name)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ".plansmith/plans.db", cfg.Store.Path)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadFile(t *testing.T) {
	dir := chdir(t)
	path := writeFile(t, dir, "custom.yaml", `
pipeline:
  max_stage_retries: 4
  call_timeout: 15s
  concurrency: 8
  export_partial: false
log:
  level: debug
  format: json
server:
  addr: 127.0.0.1:9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Pipeline.MaxStageRetries)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.CallTimeout)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.False(t, cfg.Pipeline.ExportPartial)
	assert.Equal(t, 3, cfg.Pipeline.MaxCallRetries, "unset keys keep defaults")
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)

	lc := cfg.LoggerConfig()
	assert.Equal(t, log.LevelDebug, lc.Level)
	assert.Equal(t, log.FormatJSON, lc.Format)
}

func TestLoadWorkingDirectoryFile(t *testing.T) {
	dir := chdir(t)
	writeFile(t, dir, "plansmith.yaml", "pipeline:\n  max_prompt_chars: 500\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Pipeline.MaxPromptChars)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := chdir(t)
	path := writeFile(t, dir, "plansmith.yaml", "pipeline:\n  concurrency: 2\n")

	t.Setenv("PLANSMITH_PIPELINE_CONCURRENCY", "6")
	t.Setenv("PLANSMITH_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Pipeline.Concurrency)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	writeFile(t, dir, ".env", "PLANSMITH_PIPELINE_MAX_CRITERIA_PER_TASK=3\n")
	t.Cleanup(func() { _ = os.Unsetenv("PLANSMITH_PIPELINE_MAX_CRITERIA_PER_TASK") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.MaxCriteriaPerTask)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := chdir(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))
}

func TestLoadInvalid(t *testing.T) {
	dir := chdir(t)
	path := writeFile(t, dir, "bad.yaml", `
pipeline:
  concurrency: 0
backend:
  name: oracle
log:
  level: loud
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
	assert.Contains(t, err.Error(), "backend.name")
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "pipeline")
}

func TestLoadProviders(t *testing.T) {
	dir := chdir(t)
	t.Setenv("TEST_PLANSMITH_KEY", "sk-test")
	path := writeFile(t, dir, "llm.yaml", `
backend:
  name: llm
  provider: main
providers:
  - name: main
    type: openai
    enabled: true
    config:
      api_key: ${TEST_PLANSMITH_KEY}
      model: gpt-4o-mini
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-test", cfg.Providers[0].Config.APIKey)
	assert.Len(t, cfg.ProvidersConfig().Providers, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "llm without providers",
			mutate:  func(c *Config) { c.Backend.Name = BackendLLM },
			wantErr: "providers",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name:    "empty store path",
			mutate:  func(c *Config) { c.Store.Path = " " },
			wantErr: "store.path",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = -time.Second },
			wantErr: "timeouts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
