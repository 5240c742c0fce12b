// Package main runs the translation relay as a standalone HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pricofy/translate-relay/internal/app"
	"github.com/pricofy/translate-relay/internal/config"
	"github.com/pricofy/translate-relay/internal/logger"
	"github.com/pricofy/translate-relay/internal/metrics"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "translate-relay",
		Short: "Batch translation relay in front of a LibreTranslate backend",
		Long: `translate-relay accepts POST /translate with a batch of texts and
forwards every text to the upstream translation backend concurrently.

Configuration is read from --config (or config.yaml in . and ./config/)
and RELAY_* environment variables, e.g. RELAY_UPSTREAM_URL.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to the configuration file")

	return cmd
}

// run serves until ctx is cancelled, then shuts the listeners down.
func run(ctx context.Context, cfg *config.Configuration, log *zap.Logger) error {
	m := metrics.New()

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           app.NewHandler(cfg, log, m),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		}
	}

	errs := make(chan error, 2)
	go func() {
		log.Info("server listening",
			zap.String("addr", cfg.Server.ListenAddr),
			zap.String("upstream", cfg.Upstream.URL))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	if metricsServer != nil {
		go func() {
			log.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddr))
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case serveErr = <-errs:
		log.Error("server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	for _, srv := range []*http.Server{server, metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed", zap.String("addr", srv.Addr), zap.Error(err))
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("forced close failed", zap.String("addr", srv.Addr), zap.Error(closeErr))
			}
		}
	}

	return serveErr
}
