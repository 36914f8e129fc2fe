package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/mesohops/internal/application"
	"github.com/sawpanic/mesohops/internal/monitor"
	"github.com/sawpanic/mesohops/internal/store"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Start monitoring HTTP server",
		Long:  "Starts HTTP server with /health, /metrics and /runs endpoints",
		Args:  cobra.NoArgs,
		RunE:  runMonitor,
	}
	cmd.Flags().String("host", "", "HTTP server host (overrides config)")
	cmd.Flags().Int("port", 0, "HTTP server port (overrides config)")
	addStoreFlags(cmd.Flags())
	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Monitor.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Monitor.Port, _ = cmd.Flags().GetInt("port")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer s.Close()

	runner := application.NewRunner(s, nil, log.Logger)
	srv := monitor.NewServer(monitor.ServerConfig{
		Host:  cfg.Monitor.Host,
		Port:  cfg.Monitor.Port,
		RPS:   cfg.Monitor.RPS,
		Burst: cfg.Monitor.Burst,
	}, runner, log.Logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
