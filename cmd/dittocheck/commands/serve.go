package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittocheck/internal/logger"
	"github.com/marmos91/dittocheck/pkg/config"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run background verification and the metrics endpoint until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts.cfg, opts)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, opts *globalOptions) error {
	metricsResult := config.InitializeMetrics(cfg)

	table, err := config.CreateHandleTable(ctx, &cfg.Handles)
	if err != nil {
		return err
	}
	defer closeTable(table)

	v := config.CreateVerifierWithFS(&cfg.Verifier, opts.filesystem(), table, metricsResult.VerifierMetrics)
	v.Initialize()

	scanner, err := config.CreateScanner(&cfg.Scheduler, v)
	if err != nil {
		return err
	}

	metricsErr := make(chan error, 1)
	if metricsResult.Server != nil {
		go func() {
			metricsErr <- metricsResult.Server.Start(ctx)
		}()
	}

	scanner.Start()
	logger.Info("dittocheck is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case runErr = <-metricsErr:
		logger.Error("Metrics server error: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := scanner.Stop(shutdownCtx); err != nil {
		logger.Warn("Scanner shutdown: %v", err)
	}
	if metricsResult.Server != nil {
		if err := metricsResult.Server.Stop(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown: %v", err)
		}
	}

	return runErr
}
