package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hmelo/skyarena-server/internal/app"
	"github.com/hmelo/skyarena-server/internal/config"
	"github.com/hmelo/skyarena-server/internal/log"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "skyarena-server",
		Short: "Multiplayer arena game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.New("info", true)
			cfg, resolvedPath, err := config.Load(bootLog, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if cmd.Flags().Changed("addr") {
				cfg.Addr, _ = cmd.Flags().GetString("addr")
			}
			if cmd.Flags().Changed("db") {
				cfg.DatabasePath, _ = cmd.Flags().GetString("db")
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
			}

			logger := log.New(cfg.LogLevel, cfg.LogPretty)
			logger.Debug().Str("config", resolvedPath).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			logger.Info().Str("addr", cfg.Addr).Msg("starting skyarena server")
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.Flags().String("addr", "", "HTTP listen address")
	rootCmd.Flags().String("db", "", "path to sqlite database")
	rootCmd.Flags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
