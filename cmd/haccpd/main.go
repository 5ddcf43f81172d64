// Command haccpd serves the HACCP interview API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"haccpcore/internal/adapters/interview"
	"haccpcore/internal/blob"
	"haccpcore/internal/core"
)

func main() {
	if err := run(); err != nil {
		slog.Error("haccpd exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := core.OpenStoreDriver(core.StorageDriver(cfg.Storage.Driver), cfg.Storage.SQLitePath, cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	archive, err := blob.OpenDriver(ctx, blob.Driver(cfg.Blob.Driver), cfg.Blob.FSRoot)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := core.NewPrometheusMetricsRecorder(registry)

	handler := interview.NewHandler(store, core.NewTemplatePlanGenerator())
	handler.Archive = archive
	handler.Metrics = metrics
	handler.Logger = logger

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", handler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	// Flush pending autosaves before the process exits.
	if err := handler.Close(shutdownCtx); err != nil {
		logger.Warn("autosave flush on shutdown", "error", err)
	}
	return nil
}
