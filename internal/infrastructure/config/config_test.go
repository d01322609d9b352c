package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
storage:
  database_path: "books.db"
matching:
  date_tolerance_days: 0
  similarity: levenshtein
api:
  port: 9090
scheduler:
  enabled: true
  interval: 15m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "books.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 0, cfg.Matching.DateToleranceDays)
	assert.Equal(t, "levenshtein", cfg.Matching.Similarity)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval)

	// Unset keys keep defaults
	assert.Equal(t, 0.85, cfg.Matching.FuzzyThreshold)
	assert.Equal(t, "0.01", cfg.Matching.SubsetTolerance)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"threshold":  "matching:\n  fuzzy_threshold: 1.5\n",
		"confidence": "matching:\n  fuzzy_confidence_min: 95\n",
		"tolerance":  "matching:\n  subset_tolerance: cents\n",
		"interval":   "scheduler:\n  enabled: true\n  interval: 0s\n",
		"yaml":       "matching: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECONCILER_DB_PATH", "test.db")
	t.Setenv("RECONCILER_PORT", "9000")
	t.Setenv("RECONCILER_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("MATCH_FUZZY_THRESHOLD", "0.9")
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("SCHEDULER_INTERVAL", "30m")

	cfg := LoadFromEnv()
	assert.Equal(t, "test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.API.AllowedOrigins)
	assert.Equal(t, 0.9, cfg.Matching.FuzzyThreshold)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.Interval)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("RECONCILER_DB_PATH", "")
	t.Setenv("MATCH_DATE_TOLERANCE_DAYS", "not-a-number")

	cfg := LoadFromEnv()
	assert.Equal(t, "reconciler.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 2, cfg.Matching.DateToleranceDays)
	assert.Equal(t, "jaro_winkler", cfg.Matching.Similarity)
}

func TestLoadOrEnv_FallbackToEnv(t *testing.T) {
	t.Setenv("RECONCILER_DB_PATH", "fallback.db")

	cfg := LoadOrEnv_WithPath("nonexistent.yaml")
	assert.NotNil(t, cfg)
	assert.Equal(t, "fallback.db", cfg.Storage.DatabasePath)
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "expanded.db")
	path := writeFile(t, "config.yaml", `
storage:
  database_path: "${TEST_DB_PATH}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded.db", cfg.Storage.DatabasePath)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "RECONCILER_DOTENV_PROBE=from-file\nLOG_LEVEL=debug\n")
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("RECONCILER_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("RECONCILER_DOTENV_PROBE"))
	// Existing variables are not overridden
	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestMatchingConfig_Tolerance(t *testing.T) {
	tol, err := Default().Matching.Tolerance()
	require.NoError(t, err)
	assert.Equal(t, "0.01", tol.String())

	_, err = MatchingConfig{SubsetTolerance: "-1"}.Tolerance()
	assert.Error(t, err)
}
