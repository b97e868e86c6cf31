package config

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittocheck/internal/logger"
	"github.com/marmos91/dittocheck/pkg/fsys"
	"github.com/marmos91/dittocheck/pkg/handle"
	"github.com/marmos91/dittocheck/pkg/metrics"
	"github.com/marmos91/dittocheck/pkg/scheduler"
	"github.com/marmos91/dittocheck/pkg/verifier"
)

// ConfigureLogging applies the logging section to the global logger.
func ConfigureLogging(cfg *LoggingConfig) error {
	logger.SetLevel(cfg.Level)

	if err := logger.SetFormat(cfg.Format); err != nil {
		return err
	}
	if err := logger.SetOutput(cfg.Output); err != nil {
		return fmt.Errorf("failed to configure log output: %w", err)
	}
	return nil
}

// CreateHandleTable creates a handle table based on configuration.
//
// The Type field selects the implementation; the type-specific options map is
// decoded and passed to its constructor.
//
// Supported types:
//   - "memory": ordered in-memory table, lost on restart
//   - "badger": BadgerDB-backed table persisted at handles.badger.path
func CreateHandleTable(ctx context.Context, cfg *HandlesConfig) (handle.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return handle.NewMemoryTable(), nil
	case "badger":
		return createBadgerHandleTable(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown handle table type: %q", cfg.Type)
	}
}

// decodeBadgerOptions decodes the free-form badger section. Decoding is
// weakly typed because values set through environment variables arrive as
// strings.
func decodeBadgerOptions(options map[string]any) (handle.BadgerTableConfig, error) {
	var tableCfg handle.BadgerTableConfig
	if err := mapstructure.WeakDecode(options, &tableCfg); err != nil {
		return tableCfg, fmt.Errorf("failed to decode badger handle table config: %w", err)
	}
	return tableCfg, nil
}

func createBadgerHandleTable(options map[string]any) (handle.Table, error) {
	tableCfg, err := decodeBadgerOptions(options)
	if err != nil {
		return nil, err
	}

	table, err := handle.NewBadgerTable(tableCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger handle table: %w", err)
	}

	return table, nil
}

// CreateVerifierWithFS builds a Verifier over the given filesystem view.
func CreateVerifierWithFS(cfg *VerifierConfig, filesystem *fsys.FS, translator handle.Translator, m metrics.VerifierMetrics) *verifier.Verifier {
	return verifier.New(verifier.Config{
		Root:                     cfg.Root,
		ReadChunkSize:            cfg.ReadChunkSize,
		FileRepairMode:           os.FileMode(cfg.FileRepairMode),
		DirectoryRepairMode:      os.FileMode(cfg.DirectoryRepairMode),
		DisableDefaultInvariants: cfg.DisableDefaultInvariants,
	}, filesystem, translator, m)
}

// CreateScanner builds the background scanner for a verifier.
func CreateScanner(cfg *SchedulerConfig, target scheduler.Target) (*scheduler.Scanner, error) {
	return scheduler.NewScanner(target, scheduler.Config{
		Enabled:          cfg.Enabled,
		Interval:         cfg.Interval,
		Timeout:          cfg.Timeout,
		AutoRepair:       cfg.AutoRepair,
		RepairsPerSecond: cfg.RepairsPerSecond,
		RepairBurst:      cfg.RepairBurst,
	})
}
