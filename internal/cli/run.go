package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opensourcecitizen/oscnode/internal/app"
	"github.com/opensourcecitizen/oscnode/internal/buildinfo"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the tray agent (default)",
	Args:  cobra.NoArgs,
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting OSC agent",
		zap.String("version", buildinfo.Version),
		zap.String("task_url", cfg.Task.URL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, shutting down",
				zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	err = app.New(cfg, buildinfo.Version, logger).Run(ctx)
	if errors.Is(err, app.ErrAlreadyRunning) {
		fmt.Fprintln(cmd.ErrOrStderr(), "oscnode is already running.")
		return err
	}
	if err != nil {
		logger.Error("Agent failed", zap.Error(err))
		return err
	}
	logger.Info("Agent stopped")
	return nil
}
