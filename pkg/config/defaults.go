package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittocheck/pkg/metrics"
	"github.com/marmos91/dittocheck/pkg/scheduler"
	"github.com/marmos91/dittocheck/pkg/verifier"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Handle table specific defaults are handled by the table implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyVerifierDefaults(&cfg.Verifier)
	applyHandlesDefaults(&cfg.Handles)
	applySchedulerDefaults(&cfg.Scheduler)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyVerifierDefaults(cfg *VerifierConfig) {
	if cfg.Root == "" {
		cfg.Root = "/export"
	}
	if cfg.ReadChunkSize == 0 {
		cfg.ReadChunkSize = verifier.DefaultReadChunkSize
	}
	if cfg.FileRepairMode == 0 {
		cfg.FileRepairMode = uint32(verifier.DefaultFileRepairMode)
	}
	if cfg.DirectoryRepairMode == 0 {
		cfg.DirectoryRepairMode = uint32(verifier.DefaultDirectoryRepairMode)
	}
}

// applyHandlesDefaults sets handle table defaults.
func applyHandlesDefaults(cfg *HandlesConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Applied for all types so generated config files are complete
	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = "/tmp/dittocheck-handles"
	}
}

func applySchedulerDefaults(cfg *SchedulerConfig) {
	// Enabled and AutoRepair default to false

	if cfg.Interval == 0 {
		cfg.Interval = scheduler.DefaultInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = scheduler.DefaultTimeout
	}
	if cfg.RepairBurst == 0 {
		cfg.RepairBurst = 1
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = metrics.DefaultPort
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Handles: HandlesConfig{
			Memory: make(map[string]any),
			Badger: make(map[string]any),
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
