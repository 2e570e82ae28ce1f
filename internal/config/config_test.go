package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "flightpath" {
		t.Errorf("expected Name=flightpath, got %s", cfg.Name)
	}
	if cfg.HTTP.Addr != ":8000" {
		t.Errorf("expected Addr=:8000, got %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.APIPrefix != "/api/v1" {
		t.Errorf("expected APIPrefix=/api/v1, got %s", cfg.HTTP.APIPrefix)
	}
	if cfg.Assessment.MinQuestions != 5 || cfg.Assessment.MaxQuestions != 25 {
		t.Errorf("unexpected question limits: min=%d max=%d", cfg.Assessment.MinQuestions, cfg.Assessment.MaxQuestions)
	}
	if cfg.Assessment.StoppingStandardError != 0.3 {
		t.Errorf("expected StoppingStandardError=0.3, got %f", cfg.Assessment.StoppingStandardError)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("DATABASE_URL", "")
	t.Setenv("HTTP_ADDR", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "flightpath.yaml")

	cfg := DefaultConfig()
	cfg.Database.Path = "custom/flight.db"
	cfg.Assessment.MaxQuestions = 40

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Database.Path != "custom/flight.db" {
		t.Errorf("expected Database.Path=custom/flight.db, got %s", loaded.Database.Path)
	}
	if loaded.Assessment.MaxQuestions != 40 {
		t.Errorf("expected MaxQuestions=40, got %d", loaded.Assessment.MaxQuestions)
	}
}

func TestConfig_MissingFileUsesDefaults(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.HTTP.Addr != ":8000" {
		t.Errorf("expected default Addr, got %s", loaded.HTTP.Addr)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "env/test.db")
	t.Setenv("DATABASE_POOL_SIZE", "9")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("API_V1_PREFIX", "/api/v2")
	t.Setenv("ASSESSMENT_DEFAULT_MAX_QUESTIONS", "30")
	t.Setenv("ASSESSMENT_DEFAULT_STOPPING_SE", "0.25")

	loaded, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Database.Path != "env/test.db" {
		t.Errorf("expected Database.Path=env/test.db, got %s", loaded.Database.Path)
	}
	if loaded.Database.PoolSize != 9 {
		t.Errorf("expected PoolSize=9, got %d", loaded.Database.PoolSize)
	}
	if loaded.HTTP.Addr != ":9999" {
		t.Errorf("expected Addr=:9999, got %s", loaded.HTTP.Addr)
	}
	if loaded.HTTP.APIPrefix != "/api/v2" {
		t.Errorf("expected APIPrefix=/api/v2, got %s", loaded.HTTP.APIPrefix)
	}
	if loaded.Assessment.MaxQuestions != 30 {
		t.Errorf("expected MaxQuestions=30, got %d", loaded.Assessment.MaxQuestions)
	}
	if loaded.Assessment.StoppingStandardError != 0.25 {
		t.Errorf("expected StoppingStandardError=0.25, got %f", loaded.Assessment.StoppingStandardError)
	}
}

func TestConfig_EnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("DATABASE_POOL_SIZE", "not-a-number")
	t.Setenv("ASSESSMENT_DEFAULT_MIN_QUESTIONS", "-4")

	loaded, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Database.PoolSize != 5 {
		t.Errorf("expected default PoolSize=5, got %d", loaded.Database.PoolSize)
	}
	if loaded.Assessment.MinQuestions != 5 {
		t.Errorf("expected default MinQuestions=5, got %d", loaded.Assessment.MinQuestions)
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero pool size", func(c *Config) { c.Database.PoolSize = 0 }},
		{"zero min questions", func(c *Config) { c.Assessment.MinQuestions = 0 }},
		{"max below min", func(c *Config) { c.Assessment.MaxQuestions = 2; c.Assessment.MinQuestions = 10 }},
		{"non-positive stopping se", func(c *Config) { c.Assessment.StoppingStandardError = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
