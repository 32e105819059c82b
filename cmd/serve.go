package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portage/internal/daemon"
	"portage/internal/logger"
	"portage/internal/module"
	"portage/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transfer broker daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		reg := module.NewRegistry()
		reg.Register(module.NewFileModule())

		if cfg.ModuleDir != "" {
			module.Discover(cfg.ModuleDir, reg)

			watcher, err := module.WatchModules(cfg.ModuleDir, reg)
			if err != nil {
				logger.Log.Warn("module watcher unavailable",
					zap.String("dir", cfg.ModuleDir),
					zap.Error(err))
			} else {
				defer watcher.Stop()
			}
		}

		srv := daemon.New(cfg, reg, repository.NewAttemptRepository())
		if err := srv.Start(); err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Log.Info("signal received, shutting down")
		case <-srv.StopCh():
			logger.Log.Info("stop requested, shutting down")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return srv.Stop(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
