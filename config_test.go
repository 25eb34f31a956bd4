package scorebook

import (
	"errors"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"missing path", func(c *Config) { c.Path = "" }, "Path"},
		{"bad environment", func(c *Config) { c.Environment = "no spaces" }, "Environment"},
		{"negative stale timeout", func(c *Config) { c.StaleJobTimeout = -time.Hour }, "StaleJobTimeout"},
		{"negative retries", func(c *Config) { c.MaxRecordRetries = -1 }, "MaxRecordRetries"},
		{"error rate above one", func(c *Config) { c.ErrorRateThreshold = 1.5 }, "ErrorRateThreshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %s, want %s", verr.Field, tt.wantField)
			}
		})
	}

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	// Negative disables the error-rate abort and is valid.
	cfg = DefaultConfig()
	cfg.ErrorRateThreshold = -1
	if err := cfg.Validate(); err != nil {
		t.Errorf("negative error rate threshold rejected: %v", err)
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()

	if cfg.Environment == "" {
		t.Error("environment not defaulted")
	}
	if cfg.Path == "" {
		t.Error("path not derived from environment")
	}
	if cfg.StaleJobTimeout != 2*time.Hour {
		t.Errorf("stale timeout = %v, want 2h", cfg.StaleJobTimeout)
	}
	if cfg.MaxRecordRetries != 3 {
		t.Errorf("max retries = %d, want 3", cfg.MaxRecordRetries)
	}
	if cfg.ErrorRateThreshold != 0.25 {
		t.Errorf("error rate threshold = %v, want 0.25", cfg.ErrorRateThreshold)
	}

	// Explicit values survive.
	cfg = Config{Path: "/tmp/x.db", Environment: "prod", MaxRecordRetries: 7}.WithDefaults()
	if cfg.Path != "/tmp/x.db" || cfg.Environment != "prod" || cfg.MaxRecordRetries != 7 {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}

	// A negative threshold means disabled and must not be replaced
	// with the default.
	cfg = Config{Path: "/tmp/x.db", ErrorRateThreshold: -1}.WithDefaults()
	if cfg.ErrorRateThreshold != -1 {
		t.Errorf("disabled error rate threshold = %v, want -1", cfg.ErrorRateThreshold)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SCOREBOOK_DB_PATH", "/tmp/scorebook-test.db")
	t.Setenv("SCOREBOOK_ENV", "staging")
	t.Setenv("SCOREBOOK_SOURCE_ID", "collector-7")
	t.Setenv("SCOREBOOK_STALE_TIMEOUT", "45m")
	t.Setenv("SCOREBOOK_UNIQUE_ACTIVE_JOB", "false")
	t.Setenv("SCOREBOOK_DEBUG", "1")

	cfg := ConfigFromEnv()
	if cfg.Path != "/tmp/scorebook-test.db" {
		t.Errorf("path = %s", cfg.Path)
	}
	if cfg.Environment != "staging" {
		t.Errorf("environment = %s", cfg.Environment)
	}
	if cfg.SourceID != "collector-7" {
		t.Errorf("source id = %s", cfg.SourceID)
	}
	if cfg.StaleJobTimeout != 45*time.Minute {
		t.Errorf("stale timeout = %v", cfg.StaleJobTimeout)
	}
	if cfg.UniqueActiveJob {
		t.Error("unique active job not disabled")
	}
	if !cfg.Debug {
		t.Error("debug not enabled")
	}
}

func TestConfigFromEnv_UniqueActiveDefault(t *testing.T) {
	t.Setenv("SCOREBOOK_UNIQUE_ACTIVE_JOB", "")

	if cfg := ConfigFromEnv(); !cfg.UniqueActiveJob {
		t.Error("unique active job should default on")
	}
}
