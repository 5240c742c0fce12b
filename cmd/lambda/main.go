// Package main is the entry point for the translation relay Lambda function,
// served behind an API Gateway HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/pricofy/translate-relay/internal/app"
	"github.com/pricofy/translate-relay/internal/config"
	"github.com/pricofy/translate-relay/internal/logger"
)

// function holds what survives between invocations of a warm instance.
type function struct {
	handler http.Handler
	warmer  *warmer
	logger  *zap.Logger
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() { _ = zl.Sync() }()

	fn := &function{
		// No scrape endpoint exists inside Lambda, so metrics stay off.
		handler: app.NewHandler(cfg, zl, nil),
		warmer:  newWarmer(nil, zl),
		logger:  zl,
	}

	lambda.Start(fn.handleRequest)
}

func (f *function) handleRequest(ctx context.Context, event json.RawMessage) (interface{}, error) {
	// Warmup detection (MUST be first - before any other processing)
	if warmup, ok := IsWarmupEvent(event); ok {
		return f.warmer.Handle(ctx, warmup)
	}

	var req events.APIGatewayV2HTTPRequest
	if err := json.Unmarshal(event, &req); err != nil {
		return nil, fmt.Errorf("failed to decode API Gateway event: %w", err)
	}

	return serveAPIGateway(ctx, f.handler, req)
}
