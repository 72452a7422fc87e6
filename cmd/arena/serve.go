package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-arena-auth"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		Long: `Start the server exposing the player routes, the realtime lobby and
chat namespaces and the metrics endpoint. Token secrets are required.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			slogger, err := setupLogging(cfg.Log)
			if err != nil {
				return err
			}
			logger := auth.NewSlogLogger(slogger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := newServer(ctx, cfg, logger)
			if err != nil {
				logger.Error("server setup failed", "error", err)
				return err
			}
			defer srv.Close()

			go func() {
				<-ctx.Done()
				_ = srv.srv.Shutdown(context.Background())
			}()

			logger.Info("arena listening", "addr", cfg.HTTP.Addr)
			return srv.srv.Serve(cfg.HTTP.Addr)
		},
	}

	bindServerFlags(cmd.Flags())
	return cmd
}
