package scorebook

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dugoutlabs/scorebook/internal/store"
)

// Config configures the scorebook engine.
type Config struct {
	// Path is the path to the SQLite database.
	// If empty, it is derived from Environment.
	Path string

	// Environment names the target environment (e.g. "prod", "staging").
	// If empty, resolved via SCOREBOOK_ENV, falling back to "default".
	Environment string

	// SourceID identifies this collector/ingestor instance; it is
	// stamped into sync audit records as the source identity.
	// Defaults to hostname if not set.
	SourceID string

	// UniqueActiveJob enforces at most one RUNNING job per type and
	// environment. Some job types legitimately run concurrently
	// (independent per-entity collectors); those disable this.
	UniqueActiveJob bool

	// StaleJobTimeout marks RUNNING jobs older than this as FAILED when
	// the reaper runs. Required so a crashed run cannot block the
	// unique-active-job policy forever. Defaults to 2 hours.
	StaleJobTimeout time.Duration

	// MaxRecordRetries bounds per-record retries on transient store
	// failures before the record counts as an error. Defaults to 3.
	MaxRecordRetries int

	// ErrorRateThreshold fails a job outright once errors/processed
	// exceeds it (after a minimum of 20 records). Defaults to 0.25;
	// a negative value disables the abort entirely.
	ErrorRateThreshold float64

	// SyncScope lists the entities a sync run replicates when the
	// caller does not name a scope. Defaults to all registered entities.
	SyncScope []string

	// Debug enables verbose logging of store and sync operations.
	Debug bool

	// DebugLogPath is the path to write debug logs.
	// Defaults to stderr if empty.
	DebugLogPath string
}

// DefaultConfig returns a Config with sensible defaults.
// Environment defaults to "default" and Path is derived from it.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	return Config{
		Environment:        "default",
		Path:               store.EnvDBPath("default"),
		SourceID:           hostname,
		UniqueActiveJob:    true,
		StaleJobTimeout:    2 * time.Hour,
		MaxRecordRetries:   3,
		ErrorRateThreshold: 0.25,
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	SCOREBOOK_DB_PATH       → Path
//	SCOREBOOK_ENV           → Environment
//	SCOREBOOK_SOURCE_ID     → SourceID
//	SCOREBOOK_STALE_TIMEOUT → StaleJobTimeout (Go duration string)
//	SCOREBOOK_SYNC_SCOPE    → SyncScope (comma-separated entities)
//	SCOREBOOK_UNIQUE_ACTIVE_JOB → UniqueActiveJob (strconv.ParseBool)
//	SCOREBOOK_DEBUG         → Debug (any non-empty value enables)
//	SCOREBOOK_DEBUG_LOG     → DebugLogPath
func ConfigFromEnv() Config {
	cfg := Config{
		Path:            os.Getenv("SCOREBOOK_DB_PATH"),
		Environment:     os.Getenv("SCOREBOOK_ENV"),
		SourceID:        os.Getenv("SCOREBOOK_SOURCE_ID"),
		UniqueActiveJob: true,
		Debug:           os.Getenv("SCOREBOOK_DEBUG") != "",
		DebugLogPath:    os.Getenv("SCOREBOOK_DEBUG_LOG"),
	}
	if v := os.Getenv("SCOREBOOK_STALE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StaleJobTimeout = d
		}
	}
	if v := os.Getenv("SCOREBOOK_SYNC_SCOPE"); v != "" {
		cfg.SyncScope = strings.Split(v, ",")
	}
	if v := os.Getenv("SCOREBOOK_UNIQUE_ACTIVE_JOB"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UniqueActiveJob = b
		}
	}
	return cfg
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.Path == "" {
		return &ValidationError{Field: "Path", Message: "required: path to SQLite database"}
	}

	if c.Environment != "" {
		if err := store.ValidateEnvID(c.Environment); err != nil {
			return &ValidationError{Field: "Environment", Message: err.Error()}
		}
	}

	if c.StaleJobTimeout < 0 {
		return &ValidationError{Field: "StaleJobTimeout", Message: "must be non-negative"}
	}

	if c.MaxRecordRetries < 0 {
		return &ValidationError{Field: "MaxRecordRetries", Message: "must be non-negative"}
	}

	if c.ErrorRateThreshold > 1 {
		return &ValidationError{Field: "ErrorRateThreshold", Message: "must be at most 1 (negative disables)"}
	}

	return nil
}

// WithDefaults fills in default values for unset fields.
// Environment resolution: explicit field > SCOREBOOK_ENV env > "default";
// Path is derived from the resolved environment if not explicitly set.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.Environment == "" {
		resolved, err := store.ResolveEnv("")
		if err == nil {
			c.Environment = resolved
		} else {
			c.Environment = "default"
		}
	}

	if c.Path == "" {
		c.Path = store.EnvDBPath(c.Environment)
	}

	if c.SourceID == "" {
		c.SourceID = defaults.SourceID
	}
	if c.StaleJobTimeout == 0 {
		c.StaleJobTimeout = defaults.StaleJobTimeout
	}
	if c.MaxRecordRetries == 0 {
		c.MaxRecordRetries = defaults.MaxRecordRetries
	}
	// Zero means unset and takes the default; negative means disabled
	// and is preserved.
	if c.ErrorRateThreshold == 0 {
		c.ErrorRateThreshold = defaults.ErrorRateThreshold
	}

	return c
}
