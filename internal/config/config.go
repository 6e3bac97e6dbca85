//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-starload.
// Configuration is loaded from config files and CLI flags (no environment variables).
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DateLayout is the layout used for logical dates in config and flags.
const DateLayout = "2006-01-02"

// Config holds all configuration for pgedge-starload.
type Config struct {
	// Connection is the PostgreSQL connection string of the warehouse.
	Connection string `mapstructure:"connection" yaml:"connection"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// LogFormat is "console" or "json".
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// MaxConns caps the connection pool. The dimension layer needs three.
	MaxConns int `mapstructure:"max_conns" yaml:"max_conns"`

	// Workflow holds the scheduling parameters.
	Workflow WorkflowConfig `mapstructure:"workflow" yaml:"workflow"`

	// Seed holds configuration for the seed subcommand.
	Seed SeedConfig `mapstructure:"seed" yaml:"seed"`

	// Metrics holds Pushgateway settings.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// WorkflowConfig holds the daily schedule and per-task execution policy.
type WorkflowConfig struct {
	// DagID namespaces the run log.
	DagID string `mapstructure:"dag_id" yaml:"dag_id"`

	// StartDate is the first logical day (YYYY-MM-DD).
	StartDate string `mapstructure:"start_date" yaml:"start_date"`

	// EndDate is the last logical day, inclusive. Empty means the last
	// completed day.
	EndDate string `mapstructure:"end_date" yaml:"end_date"`

	// Catchup schedules every day from StartDate. When false only the
	// latest day is scheduled.
	Catchup bool `mapstructure:"catchup" yaml:"catchup"`

	// ExecutionTimeout bounds a single task attempt.
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout" yaml:"execution_timeout"`

	// Retries is the number of automatic retries per task.
	Retries int `mapstructure:"retries" yaml:"retries"`

	// RetryDelay is the wait between task attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`

	// DependsOnPast stops a backfill at the first failed day.
	DependsOnPast bool `mapstructure:"depends_on_past" yaml:"depends_on_past"`

	// LockKey is the advisory lock id that keeps one run active at a time.
	LockKey int64 `mapstructure:"lock_key" yaml:"lock_key"`
}

// SeedConfig holds configuration for synthetic raw event generation.
type SeedConfig struct {
	// StartDate is the first day to generate (YYYY-MM-DD).
	StartDate string `mapstructure:"start_date" yaml:"start_date"`

	// Days is the number of consecutive days to generate.
	Days int `mapstructure:"days" yaml:"days"`

	// EventsPerDay is the number of raw rows per day.
	EventsPerDay int `mapstructure:"events_per_day" yaml:"events_per_day"`

	// Users is the size of the user id space.
	Users int `mapstructure:"users" yaml:"users"`

	// Products is the size of the product catalogue.
	Products int `mapstructure:"products" yaml:"products"`

	// Profile shapes the intraday traffic (store-regional, store-global, flat).
	Profile string `mapstructure:"profile" yaml:"profile"`

	// RandomSeed makes generation reproducible. Zero picks a random seed.
	RandomSeed uint64 `mapstructure:"random_seed" yaml:"random_seed"`

	// BatchSize is the number of rows per COPY batch.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// MetricsConfig holds Prometheus Pushgateway settings.
type MetricsConfig struct {
	// PushgatewayURL enables pushing run metrics when set.
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url"`

	// Job is the Pushgateway job label.
	Job string `mapstructure:"job" yaml:"job"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "console",
		MaxConns:  8,
		Workflow: WorkflowConfig{
			DagID:            "ecommerce_final_project",
			StartDate:        "2019-10-01",
			Catchup:          true,
			ExecutionTimeout: 60 * time.Minute,
			Retries:          0,
			RetryDelay:       30 * time.Second,
			DependsOnPast:    false,
			LockKey:          727001,
		},
		Seed: SeedConfig{
			StartDate:    "2019-10-01",
			Days:         1,
			EventsPerDay: 100000,
			Users:        20000,
			Products:     5000,
			Profile:      "store-regional",
			BatchSize:    5000,
		},
		Metrics: MetricsConfig{
			Job: "pgedge_starload",
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-starload.yaml
// 3. ~/.config/pgedge-starload/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("pgedge-starload")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-starload"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	// Durations ("60m", "30s") are decoded by viper's default hooks.
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	if c.LogFormat != "" && c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be 'console' or 'json'")
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("max_conns must be at least 1")
	}
	return nil
}

// ValidateWorkflow checks configuration required for run and backfill.
func (c *Config) ValidateWorkflow() error {
	if err := c.Validate(); err != nil {
		return err
	}
	// The run lock pins one connection for the whole invocation.
	if c.MaxConns < 2 {
		return fmt.Errorf("max_conns must be at least 2 for workflow runs")
	}
	w := c.Workflow
	if w.DagID == "" {
		return fmt.Errorf("workflow.dag_id is required")
	}
	start, err := parseDate("workflow.start_date", w.StartDate)
	if err != nil {
		return err
	}
	if w.EndDate != "" {
		end, err := parseDate("workflow.end_date", w.EndDate)
		if err != nil {
			return err
		}
		if end.Before(start) {
			return fmt.Errorf("workflow.end_date must not be before workflow.start_date")
		}
	}
	if w.ExecutionTimeout <= 0 {
		return fmt.Errorf("workflow.execution_timeout must be positive")
	}
	if w.Retries < 0 {
		return fmt.Errorf("workflow.retries must be non-negative")
	}
	if w.RetryDelay < 0 {
		return fmt.Errorf("workflow.retry_delay must be non-negative")
	}
	return nil
}

// ValidateSeed checks configuration required for the seed command.
func (c *Config) ValidateSeed() error {
	if err := c.Validate(); err != nil {
		return err
	}
	s := c.Seed
	if _, err := parseDate("seed.start_date", s.StartDate); err != nil {
		return err
	}
	if s.Days < 1 {
		return fmt.Errorf("seed.days must be at least 1")
	}
	if s.EventsPerDay < 1 {
		return fmt.Errorf("seed.events_per_day must be at least 1")
	}
	if s.Users < 1 || s.Products < 1 {
		return fmt.Errorf("seed.users and seed.products must be at least 1")
	}
	// Ids are stored as INTEGER.
	if s.Users > math.MaxInt32 || s.Products > math.MaxInt32 {
		return fmt.Errorf("seed.users and seed.products must not exceed %d", math.MaxInt32)
	}
	if s.BatchSize < 1 {
		return fmt.Errorf("seed.batch_size must be at least 1")
	}
	return nil
}

func parseDate(key, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD: %w", key, err)
	}
	return t, nil
}
