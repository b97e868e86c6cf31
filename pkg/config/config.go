package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete dittocheck configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOCHECK_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Handle table configuration follows the store pattern: Type selects the
// implementation and only the matching type-specific section is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Verifier configures the verification core
	Verifier VerifierConfig `mapstructure:"verifier" yaml:"verifier"`

	// Handles selects the handle-to-path table
	Handles HandlesConfig `mapstructure:"handles" yaml:"handles"`

	// Scheduler configures background verification
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// VerifierConfig configures the verification core.
type VerifierConfig struct {
	// Root is the exported directory verified by full scans
	Root string `mapstructure:"root" yaml:"root" validate:"required,startswith=/"`

	// ReadChunkSize bounds each read of the file corruption probe
	ReadChunkSize int `mapstructure:"read_chunk_size" yaml:"read_chunk_size" validate:"gt=0"`

	// FileRepairMode is the permission mode applied to corrupted files
	FileRepairMode uint32 `mapstructure:"file_repair_mode" yaml:"file_repair_mode" validate:"gt=0,lte=511"` // 511 = 0777

	// DirectoryRepairMode is the permission mode applied to corrupted directories
	DirectoryRepairMode uint32 `mapstructure:"directory_repair_mode" yaml:"directory_repair_mode" validate:"gt=0,lte=511"`

	// DisableDefaultInvariants skips the built-in readable/traversable/resolvable rules
	DisableDefaultInvariants bool `mapstructure:"disable_default_invariants" yaml:"disable_default_invariants"`
}

// HandlesConfig specifies the handle table configuration.
type HandlesConfig struct {
	// Type specifies which table implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// SchedulerConfig configures background verification.
type SchedulerConfig struct {
	// Enabled starts periodic full scans in serve mode
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between scans
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`

	// Timeout bounds the repair phase of each scan
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`

	// AutoRepair repairs every path with a violation after a scan
	AutoRepair bool `mapstructure:"auto_repair" yaml:"auto_repair"`

	// RepairsPerSecond throttles auto-repair (0 = unthrottled)
	RepairsPerSecond uint `mapstructure:"repairs_per_second" yaml:"repairs_per_second"`

	// RepairBurst is the number of repairs allowed back to back
	RepairBurst uint `mapstructure:"repair_burst" yaml:"repair_burst"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled exposes /metrics and records verifier metrics
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port for the metrics HTTP server
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOCHECK_VERIFIER_ROOT=/srv/export
	v.SetEnvPrefix("DITTOCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"verifier.root", "verifier.read_chunk_size",
		"verifier.file_repair_mode", "verifier.directory_repair_mode",
		"verifier.disable_default_invariants",
		"handles.type", "handles.badger.path", "handles.badger.in_memory",
		"scheduler.enabled", "scheduler.interval", "scheduler.timeout",
		"scheduler.auto_repair", "scheduler.repairs_per_second", "scheduler.repair_burst",
		"metrics.enabled", "metrics.port",
		"shutdown_timeout",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist is also acceptable
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittocheck")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittocheck")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
