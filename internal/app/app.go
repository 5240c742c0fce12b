// Package app wires the relay components from a configuration.
package app

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pricofy/translate-relay/internal/batch"
	"github.com/pricofy/translate-relay/internal/config"
	"github.com/pricofy/translate-relay/internal/handler"
	"github.com/pricofy/translate-relay/internal/metrics"
	"github.com/pricofy/translate-relay/internal/router"
	"github.com/pricofy/translate-relay/internal/translator"
)

// NewHandler builds the public HTTP handler: router, translate handler,
// batch orchestrator and upstream client.
func NewHandler(cfg *config.Configuration, logger *zap.Logger, m *metrics.Metrics) http.Handler {
	opts := translator.Options{
		URL:     cfg.Upstream.URL,
		APIKey:  cfg.Upstream.APIKey,
		Timeout: cfg.Upstream.Timeout,
	}
	if cfg.Upstream.Breaker.Enabled {
		opts.Breaker = &translator.BreakerOptions{
			MaxFailures: cfg.Upstream.Breaker.MaxFailures,
			OpenTimeout: cfg.Upstream.Breaker.OpenTimeout,
		}
	}

	client := translator.New(opts, logger, m)
	orchestrator := batch.New(client, cfg.Batch.MaxTexts, m)
	translate := handler.New(orchestrator, logger, handler.Options{MaxBodyBytes: cfg.Server.MaxBodyBytes})

	return router.New(translate, logger, m)
}
