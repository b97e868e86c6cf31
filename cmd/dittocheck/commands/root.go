// Package commands implements the dittocheck command line.
package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/marmos91/dittocheck/internal/logger"
	"github.com/marmos91/dittocheck/pkg/config"
	"github.com/marmos91/dittocheck/pkg/fsys"
	"github.com/marmos91/dittocheck/pkg/handle"
	"github.com/marmos91/dittocheck/pkg/metrics"
	"github.com/marmos91/dittocheck/pkg/verifier"
)

// DefaultFs can be set by tests to use an in-memory filesystem. If nil,
// the commands use the real OS filesystem.
var DefaultFs afero.Fs

// ErrCheckFailed is returned when a verification is invalid, corruption is
// found or a repair does not succeed. main maps it to exit status 1 without
// printing usage.
var ErrCheckFailed = errors.New("check failed")

type globalOptions struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCmd returns the dittocheck root command with every subcommand.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "dittocheck",
		Short:         "Verify, detect and repair filesystem consistency behind an NFS export",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return nil
			}
			return opts.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/dittocheck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(
		newInitCmd(),
		newVerifyCmd(opts),
		newVerifyHandleCmd(opts),
		newScanCmd(opts),
		newDetectCmd(opts),
		newRepairCmd(opts),
		newHandlesCmd(opts),
		newServeCmd(opts),
	)

	return rootCmd
}

func (o *globalOptions) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.ConfigureLogging(&cfg.Logging); err != nil {
		return err
	}

	o.cfg = cfg
	return nil
}

func (o *globalOptions) filesystem() *fsys.FS {
	if DefaultFs != nil {
		return fsys.New(DefaultFs)
	}
	return fsys.NewOS()
}

// newVerifier builds a verifier with the configured handle table as its
// translator. The caller closes the returned table.
func (o *globalOptions) newVerifier(cmd *cobra.Command, m metrics.VerifierMetrics) (*verifier.Verifier, handle.Table, error) {
	table, err := config.CreateHandleTable(cmd.Context(), &o.cfg.Handles)
	if err != nil {
		return nil, nil, err
	}

	v := config.CreateVerifierWithFS(&o.cfg.Verifier, o.filesystem(), table, m)
	v.Initialize()
	return v, table, nil
}

func closeTable(table handle.Table) {
	if err := table.Close(); err != nil {
		logger.Warn("Failed to close handle table: %v", err)
	}
}

func printResult(w io.Writer, res verifier.ValidationResult) error {
	fmt.Fprintln(w, res.Summary())
	for _, violation := range res.Violations {
		fmt.Fprintln(w, "  -", violation)
	}
	if !res.Valid {
		return ErrCheckFailed
	}
	return nil
}
