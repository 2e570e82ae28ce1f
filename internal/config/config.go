package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all flightpath configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP server
	HTTP HTTPConfig `yaml:"http"`

	// SQLite storage
	Database DatabaseConfig `yaml:"database"`

	// Assessment defaults applied when a template config omits a value
	Assessment AssessmentConfig `yaml:"assessment"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string `yaml:"addr"`
	APIPrefix       string `yaml:"api_prefix"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	PoolSize int    `yaml:"pool_size"`
}

// AssessmentConfig holds engine defaults for adaptive sessions.
type AssessmentConfig struct {
	TimeLimitMinutes      int     `yaml:"time_limit_minutes"`
	StartingAbility       float64 `yaml:"starting_ability"`
	MinQuestions          int     `yaml:"min_questions"`
	MaxQuestions          int     `yaml:"max_questions"`
	StoppingStandardError float64 `yaml:"stopping_standard_error"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "flightpath",
		Version: "1.0.0",

		HTTP: HTTPConfig{
			Addr:            ":8000",
			APIPrefix:       "/api/v1",
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
		},

		Database: DatabaseConfig{
			Path:     "data/flightpath.db",
			PoolSize: 5,
		},

		Assessment: AssessmentConfig{
			TimeLimitMinutes:      120,
			StartingAbility:       0.0,
			MinQuestions:          5,
			MaxQuestions:          25,
			StoppingStandardError: 0.3,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		c.HTTP.Addr = addr
	}
	if prefix := os.Getenv("API_V1_PREFIX"); prefix != "" {
		c.HTTP.APIPrefix = prefix
	}
	if path := os.Getenv("DATABASE_URL"); path != "" {
		c.Database.Path = path
	}
	if size := os.Getenv("DATABASE_POOL_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			c.Database.PoolSize = n
		}
	}
	if v := os.Getenv("ASSESSMENT_DEFAULT_TIME_LIMIT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Assessment.TimeLimitMinutes = n
		}
	}
	if v := os.Getenv("ASSESSMENT_DEFAULT_MIN_QUESTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Assessment.MinQuestions = n
		}
	}
	if v := os.Getenv("ASSESSMENT_DEFAULT_MAX_QUESTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Assessment.MaxQuestions = n
		}
	}
	if v := os.Getenv("ASSESSMENT_DEFAULT_STOPPING_SE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Assessment.StoppingStandardError = f
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetReadTimeout returns the HTTP read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.ReadTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetWriteTimeout returns the HTTP write timeout as a duration.
func (c *Config) GetWriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.WriteTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetShutdownTimeout returns the graceful shutdown timeout as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path not configured (set DATABASE_URL or database.path)")
	}
	if c.Database.PoolSize < 1 {
		return fmt.Errorf("database pool size must be at least 1, got %d", c.Database.PoolSize)
	}
	if c.Assessment.MinQuestions < 1 {
		return fmt.Errorf("min_questions must be at least 1, got %d", c.Assessment.MinQuestions)
	}
	if c.Assessment.MaxQuestions < c.Assessment.MinQuestions {
		return fmt.Errorf("max_questions (%d) must be >= min_questions (%d)",
			c.Assessment.MaxQuestions, c.Assessment.MinQuestions)
	}
	if c.Assessment.StoppingStandardError <= 0 {
		return fmt.Errorf("stopping_standard_error must be positive, got %f", c.Assessment.StoppingStandardError)
	}
	return nil
}
