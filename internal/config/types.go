package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchedulerConfig controls how projects behave and how schedules are projected.
type SchedulerConfig struct {
	RemovalPolicy   string   `json:"removal_policy"`   // "cascade" or "reject"
	TimeUnit        Duration `json:"time_unit"`        // Wall-clock length of one schedule unit (e.g. "1h")
	DefaultDuration float64  `json:"default_duration"` // Prefilled duration in the add-task form
}

// RetryConfig mirrors persistence.RetryConfig with JSON-friendly durations.
type RetryConfig struct {
	InitialInterval     Duration `json:"initial_interval"`
	MaxInterval         Duration `json:"max_interval"`
	MaxElapsedTime      Duration `json:"max_elapsed_time"`
	Multiplier          float64  `json:"multiplier"`
	RandomizationFactor float64  `json:"randomization_factor"`
}

// StorageConfig locates the project database.
type StorageConfig struct {
	DBPath string      `json:"db_path,omitempty"` // Defaults to ~/.nexflow/nexflow.db
	Retry  RetryConfig `json:"retry"`
}

// LogConfig controls the structured log output.
type LogConfig struct {
	Level string `json:"level"`          // debug, info, warn, error
	File  string `json:"file,omitempty"` // Defaults to ~/.nexflow/nexflow.log
}

// WorkspaceConfig controls the multi-project host.
type WorkspaceConfig struct {
	ConcurrencyLimit int    `json:"concurrency_limit"`         // Max projects scheduled at once (0 = unlimited)
	DefaultProject   string `json:"default_project,omitempty"` // Opened when no project is named
}

// NexflowConfig is the top-level configuration.
type NexflowConfig struct {
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Log       LogConfig       `json:"log"`
	Workspace WorkspaceConfig `json:"workspace"`
}

// Duration is a time.Duration written as a string such as "1h30m" in JSON.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"1h\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
