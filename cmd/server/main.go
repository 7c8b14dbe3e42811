package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/config"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/httpserver"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/logger"
)

// main wires the gateway from config and keeps the process lifecycle small.
// Business logic lives in the internal packages.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, envFile string
	cmd := &cobra.Command{
		Use:          "pdw-gateway",
		Short:        "Serve the personal data wallet decryption gateway",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the process environment")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.New(logger.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level, Service: "pdw-gateway"})

	gw, err := build(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "gateway wiring failed", "error", err)
		return fmt.Errorf("build gateway: %w", err)
	}
	defer gw.Close()

	log.InfoContext(ctx, "starting pdw gateway",
		"addr", cfg.Server.Addr,
		"chain_mode", cfg.Chain.Mode,
		"package_id", gw.packageID,
		"threshold", cfg.Threshold.Threshold,
		"auth", cfg.Server.RequireAuth,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv := httpserver.New(cfg.Server.Addr, cfg.Server, gw.router)
		return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	g.Go(func() error {
		err := gw.sessions.RunSweeper(ctx, cfg.Session.SweepInterval, cfg.Session.MaxEntries)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		log.ErrorContext(ctx, "gateway stopped with error", "error", err)
		return err
	}
	log.Info("gateway stopped")
	return nil
}
