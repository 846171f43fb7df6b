package config

import "time"

// DefaultConfig returns the built-in configuration: cascade removal, hourly
// time units, and a conservative retry policy for the SQLite store.
func DefaultConfig() *NexflowConfig {
	return &NexflowConfig{
		Scheduler: SchedulerConfig{
			RemovalPolicy:   "cascade",
			TimeUnit:        Duration(time.Hour),
			DefaultDuration: 1,
		},
		Storage: StorageConfig{
			Retry: RetryConfig{
				InitialInterval:     Duration(50 * time.Millisecond),
				MaxInterval:         Duration(2 * time.Second),
				MaxElapsedTime:      Duration(10 * time.Second),
				Multiplier:          2.0,
				RandomizationFactor: 0.5,
			},
		},
		Log: LogConfig{
			Level: "info",
		},
		Workspace: WorkspaceConfig{
			ConcurrencyLimit: 4,
			DefaultProject:   "default",
		},
	}
}
