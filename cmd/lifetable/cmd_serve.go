package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/lifetable/internal/core"
	"github.com/JonMunkholm/lifetable/internal/metrics"
	"github.com/JonMunkholm/lifetable/internal/pipeline"
	"github.com/JonMunkholm/lifetable/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API",
	Long: `Starts the HTTP API:

  POST /api/runs                          start a run (202, returns run_id)
  GET  /api/runs                          list runs
  GET  /api/runs/{id}                     run progress and result
  GET  /api/runs/{id}/events              progress as server-sent events
  GET  /api/runs/{id}/artifacts/{name}    download an artifact
  POST /api/runs/{id}/cancel              cancel a run
  GET  /healthz, /metrics`,
	RunE: serve,
}

func serve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p := pipeline.New(cfg, sources, slog.Default())
	p.Metrics = metrics.New(prometheus.DefaultRegisterer)

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		p.Recorder = st
	}

	limiter := pipeline.NewLimiter(cfg.Run.MaxConcurrent, cfg.Run.MaxWaitTime)
	service := pipeline.NewService(p, limiter, cfg.Run.Timeout, slog.Default())
	server := web.NewServer(service, &cfg.Server, prometheus.DefaultGatherer)

	slog.Info("sources registered", "count", core.SourceCount())
	for _, def := range core.All() {
		slog.Debug("source", "key", def.Info.Key, "role", def.Info.Role, "label", def.Info.Label)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := service.LimiterStatus(); status.Active > 0 {
		slog.Info("waiting for runs to complete", "active", status.Active)
	}
	if err := service.Shutdown(shutdownCtx); err != nil {
		slog.Warn("runs did not complete in time", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
