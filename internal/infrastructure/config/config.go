// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback), optionally seeded from a .env file
//
// Example usage:
//
//	_ = config.LoadDotEnv()
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Matching      MatchingConfig      `yaml:"matching"`
	API           APIConfig           `yaml:"api"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MatchingConfig holds the matching rule parameters
type MatchingConfig struct {
	DateToleranceDays   int     `yaml:"date_tolerance_days"`
	FuzzyThreshold      float64 `yaml:"fuzzy_threshold"`
	FuzzyConfidenceMin  int     `yaml:"fuzzy_confidence_min"`
	FuzzyConfidenceMax  int     `yaml:"fuzzy_confidence_max"`
	PartialConfidence   int     `yaml:"partial_confidence"`
	SubsetTolerance     string  `yaml:"subset_tolerance"`
	MinPartialPayments  int     `yaml:"min_partial_payments"`
	MaxSubsetCandidates int     `yaml:"max_subset_candidates"`
	Similarity          string  `yaml:"similarity"` // jaro_winkler or levenshtein
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SchedulerConfig controls periodic reconciliation runs
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: "reconciler.db",
		},
		Matching: MatchingConfig{
			DateToleranceDays:   2,
			FuzzyThreshold:      0.85,
			FuzzyConfidenceMin:  75,
			FuzzyConfidenceMax:  90,
			PartialConfidence:   85,
			SubsetTolerance:     "0.01",
			MinPartialPayments:  2,
			MaxSubsetCandidates: 24,
			Similarity:          "jaro_winkler",
		},
		API: APIConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:4200"},
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: time.Hour,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Load reads and parses the config file. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECONCILER_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	d := Default()
	return &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("RECONCILER_DB_PATH", d.Storage.DatabasePath),
		},
		Matching: MatchingConfig{
			DateToleranceDays:   getEnvInt("MATCH_DATE_TOLERANCE_DAYS", d.Matching.DateToleranceDays),
			FuzzyThreshold:      getEnvFloat("MATCH_FUZZY_THRESHOLD", d.Matching.FuzzyThreshold),
			FuzzyConfidenceMin:  getEnvInt("MATCH_FUZZY_CONFIDENCE_MIN", d.Matching.FuzzyConfidenceMin),
			FuzzyConfidenceMax:  getEnvInt("MATCH_FUZZY_CONFIDENCE_MAX", d.Matching.FuzzyConfidenceMax),
			PartialConfidence:   getEnvInt("MATCH_PARTIAL_CONFIDENCE", d.Matching.PartialConfidence),
			SubsetTolerance:     getEnv("MATCH_SUBSET_TOLERANCE", d.Matching.SubsetTolerance),
			MinPartialPayments:  getEnvInt("MATCH_MIN_PARTIAL_PAYMENTS", d.Matching.MinPartialPayments),
			MaxSubsetCandidates: getEnvInt("MATCH_MAX_SUBSET_CANDIDATES", d.Matching.MaxSubsetCandidates),
			Similarity:          getEnv("MATCH_SIMILARITY", d.Matching.Similarity),
		},
		API: APIConfig{
			Port:           getEnvInt("RECONCILER_PORT", d.API.Port),
			AllowedOrigins: getEnvList("RECONCILER_ALLOWED_ORIGINS", d.API.AllowedOrigins),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvBool("SCHEDULER_ENABLED", d.Scheduler.Enabled),
			Interval: getEnvDuration("SCHEDULER_INTERVAL", d.Scheduler.Interval),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", d.Observability.Logging.Level),
				Format: getEnv("LOG_FORMAT", d.Observability.Logging.Format),
			},
		},
	}
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables
func LoadOrEnv_WithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// LoadDotEnv loads variables from .env files into the environment. Missing
// files are ignored and variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	m := c.Matching
	if m.DateToleranceDays < 0 {
		return fmt.Errorf("matching.date_tolerance_days must not be negative")
	}
	if m.FuzzyThreshold <= 0 || m.FuzzyThreshold > 1 {
		return fmt.Errorf("matching.fuzzy_threshold must be in (0, 1]")
	}
	if m.FuzzyConfidenceMin > m.FuzzyConfidenceMax {
		return fmt.Errorf("matching.fuzzy_confidence_min exceeds fuzzy_confidence_max")
	}
	if _, err := m.Tolerance(); err != nil {
		return err
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	return nil
}

// Tolerance parses the subset tolerance
func (m MatchingConfig) Tolerance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(m.SubsetTolerance))
	if err != nil {
		return decimal.Zero, fmt.Errorf("matching.subset_tolerance: %w", err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("matching.subset_tolerance must not be negative")
	}
	return d, nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if result, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
