package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpserver "github.com/sawpanic/fundboard/internal/interfaces/http"
	"github.com/sawpanic/fundboard/internal/interfaces/http/handlers"
	"github.com/sawpanic/fundboard/internal/metrics"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		Long:  "Serves the dashboard page, per-panel fragments, a websocket live stream, /health and /metrics",
		RunE:  runServe,
	}
	cmd.Flags().String("host", "", "Listen host")
	cmd.Flags().Int("port", 0, "Listen port")
	cmd.Flags().Duration("settle-timeout", 0, "How long page renders wait for panels")
	cmd.Flags().Bool("no-live", false, "Disable the websocket live stream")
	return cmd
}

// runServe starts the dashboard server
func runServe(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd.Context())

	reg := metrics.NewRegistry()
	client, err := newClient(cfg, reg)
	if err != nil {
		return err
	}

	h := handlers.NewHandlers(handlers.Options{
		Source:        client,
		Metrics:       reg,
		Defaults:      cfg.DefaultSelection(),
		Strategies:    cfg.Strategies,
		SettleTimeout: cfg.SettleTimeout(),
		LiveUpdates:   cfg.Server.LiveUpdates,
		AllowOrigin:   cfg.Server.AllowOrigin,
		Version:       version,
	})

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout(),
		WriteTimeout:   cfg.Server.WriteTimeout(),
		IdleTimeout:    cfg.Server.IdleTimeout(),
		RequestTimeout: cfg.SettleTimeout() + cfg.RequestTimeout(),
		AllowOrigin:    cfg.Server.AllowOrigin,
		LiveUpdates:    cfg.Server.LiveUpdates,
	}, h, reg)

	serverErr := make(chan error, 1)
	go func() {
		addr := server.Address()
		log.Info().
			Str("dashboard", fmt.Sprintf("http://%s/", addr)).
			Str("health", fmt.Sprintf("http://%s/health", addr)).
			Str("metrics", fmt.Sprintf("http://%s/metrics", addr)).
			Str("api", client.BaseURL()).
			Msg("Dashboard endpoints available")

		serverErr <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}

	log.Info().Msg("Dashboard server shutdown complete")
	return nil
}
