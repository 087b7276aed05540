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

	"github.com/sawpanic/brlpulse/internal/dashboard"
	httpapi "github.com/sawpanic/brlpulse/internal/interfaces/http"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard HTTP server",
		Long:  "Serves the dashboard page, the JSON API, live websocket updates and Prometheus metrics",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	cmd.Flags().Bool("no-fetch", false, "Do not fetch quotes on startup")
	return cmd
}

// runServe starts the dashboard server and blocks until SIGINT or SIGTERM
func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	noFetch, _ := cmd.Flags().GetBool("no-fetch")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	hub := dashboard.NewHub(a.metrics.SetWSClients)
	svc := dashboard.NewService(a.client, dashboard.NewBoard(), hub)
	handlers := httpapi.NewHandlers(svc, a.client, a.metrics, cfg.Dashboard.DefaultAmount, version)
	server := httpapi.NewServer(httpapi.ServerConfig{
		Addr:           cfg.HTTP.Addr,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		HandlerTimeout: 10 * time.Second,
	}, handlers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("dashboard", fmt.Sprintf("http://%s/", displayAddr(cfg.HTTP.Addr))).
			Str("health", fmt.Sprintf("http://%s/health", displayAddr(cfg.HTTP.Addr))).
			Str("metrics", fmt.Sprintf("http://%s/metrics", displayAddr(cfg.HTTP.Addr))).
			Msg(appName + " endpoints available")

		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	if cfg.Dashboard.FetchOnStart && !noFetch {
		go svc.Refresh(ctx)
	}
	if cfg.Dashboard.AutoRefresh > 0 {
		go svc.Run(ctx, cfg.Dashboard.AutoRefresh)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}

	log.Info().Msg("Dashboard server shutdown complete")
	return nil
}

// displayAddr turns ":8080" into "localhost:8080" for clickable log lines
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
