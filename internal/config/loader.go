package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/aristath/nexflow/internal/persistence"
	"github.com/aristath/nexflow/internal/scheduler"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON or invalid values return an error.
func Load(globalPath, projectPath string) (*NexflowConfig, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Merge global config if exists
	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Merge project config if exists (highest precedence)
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.nexflow/config.json
// Project: .nexflow/config.json (relative to cwd)
// Empty database and log paths are filled in under ~/.nexflow.
func LoadDefault() (*NexflowConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalDir := filepath.Join(homeDir, ".nexflow")
	globalPath := filepath.Join(globalDir, "config.json")
	projectPath := filepath.Join(".nexflow", "config.json")

	cfg, err := Load(globalPath, projectPath)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(globalDir, "nexflow.db")
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(globalDir, "nexflow.log")
	}

	return cfg, nil
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Only keys present in the file override base values.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *NexflowConfig, path string) error {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Decode over a copy so a malformed file leaves base untouched.
	merged := *base
	if err := json.Unmarshal(data, &merged); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	*base = merged

	return nil
}

// Validate checks value ranges that JSON decoding cannot express.
func (c *NexflowConfig) Validate() error {
	var errs []error

	switch c.Scheduler.RemovalPolicy {
	case "cascade", "reject":
	default:
		errs = append(errs, fmt.Errorf("scheduler.removal_policy must be \"cascade\" or \"reject\", got %q", c.Scheduler.RemovalPolicy))
	}
	if c.Scheduler.TimeUnit <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.time_unit must be positive"))
	}
	if d := c.Scheduler.DefaultDuration; d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		errs = append(errs, fmt.Errorf("scheduler.default_duration must be a non-negative number"))
	}
	if c.Storage.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("storage.retry.multiplier must be at least 1"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Workspace.ConcurrencyLimit < 0 {
		errs = append(errs, fmt.Errorf("workspace.concurrency_limit must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Policy returns the configured removal policy.
func (c SchedulerConfig) Policy() scheduler.RemovalPolicy {
	return scheduler.ParseRemovalPolicy(c.RemovalPolicy)
}

// Persistence converts the retry settings for persistence.NewResilientStore.
func (r RetryConfig) Persistence() persistence.RetryConfig {
	return persistence.RetryConfig{
		InitialInterval:     time.Duration(r.InitialInterval),
		MaxInterval:         time.Duration(r.MaxInterval),
		MaxElapsedTime:      time.Duration(r.MaxElapsedTime),
		Multiplier:          r.Multiplier,
		RandomizationFactor: r.RandomizationFactor,
	}
}
