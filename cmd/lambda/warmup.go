// Package main contains the Lambda warmup handler for preventing cold starts.
// Scheduled events trigger this handler periodically to keep instances warm.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"go.uber.org/zap"
)

const (
	// WarmupSource identifies warmup events.
	WarmupSource = "warmup"

	// WarmupDelay ensures instances overlap to create true concurrency
	WarmupDelay = 75 * time.Millisecond
)

// WarmupEvent represents the scheduled event payload for warmup
type WarmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

// WarmupResponse is the response returned by warmup operations
type WarmupResponse struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// invoker is the part of the Lambda API client used for self-invocation.
type invoker interface {
	Invoke(ctx context.Context, params *lambdasdk.InvokeInput, optFns ...func(*lambdasdk.Options)) (*lambdasdk.InvokeOutput, error)
}

// warmer answers warmup events and fans out asynchronous self-invocations.
type warmer struct {
	functionName string
	delay        time.Duration
	logger       *zap.Logger

	once      sync.Once
	client    invoker
	clientErr error
}

// newWarmer creates a warmer. A nil client is built lazily from the default
// AWS configuration on the first warmup that needs it.
func newWarmer(client invoker, logger *zap.Logger) *warmer {
	w := &warmer{
		functionName: os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
		delay:        WarmupDelay,
		logger:       logger.With(zap.String("component", "warmup")),
	}
	if client != nil {
		w.client = client
		w.once.Do(func() {})
	}
	return w
}

// IsWarmupEvent checks if the event is a warmup event
func IsWarmupEvent(event json.RawMessage) (*WarmupEvent, bool) {
	var eventMap map[string]interface{}
	if err := json.Unmarshal(event, &eventMap); err != nil {
		return nil, false
	}

	source, ok := eventMap["source"].(string)
	if !ok || source != WarmupSource {
		return nil, false
	}

	warmup := &WarmupEvent{Source: source}
	if concurrency, ok := eventMap["concurrency"].(float64); ok && concurrency > 0 {
		warmup.Concurrency = int(concurrency)
	}

	return warmup, true
}

// Handle processes a warmup event and, when asked for concurrency, invokes
// the function that many more times so that many instances stay warm.
func (w *warmer) Handle(ctx context.Context, warmup *WarmupEvent) (interface{}, error) {
	instancesWarmed := 1 // this instance

	if warmup.Concurrency > 0 {
		invoked, err := w.selfInvoke(ctx, warmup.Concurrency)
		if err != nil {
			w.logger.Warn("warmup self-invoke failed",
				zap.Int("requested", warmup.Concurrency),
				zap.Int("invoked", invoked),
				zap.Error(err))
		}
		instancesWarmed += invoked
	}

	// Brief delay to ensure instances overlap
	time.Sleep(w.delay)

	return map[string]interface{}{
		"statusCode": 200,
		"body": WarmupResponse{
			Status:          "warm",
			InstancesWarmed: instancesWarmed,
		},
	}, nil
}

func (w *warmer) lambdaClient(ctx context.Context) (invoker, error) {
	w.once.Do(func() {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			w.clientErr = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		w.client = lambdasdk.NewFromConfig(cfg)
	})
	return w.client, w.clientErr
}

// selfInvoke fires count asynchronous invocations in parallel and reports how
// many were accepted along with the first error.
func (w *warmer) selfInvoke(ctx context.Context, count int) (int, error) {
	client, err := w.lambdaClient(ctx)
	if err != nil {
		return 0, err
	}

	// Children get concurrency 0 so they do not fan out again.
	payload, err := json.Marshal(WarmupEvent{Source: WarmupSource})
	if err != nil {
		return 0, err
	}

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		errOnce  sync.Once
		firstErr error
	)

	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := client.Invoke(ctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(w.functionName),
				InvocationType: types.InvocationTypeEvent,
				Payload:        payload,
			})
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}
			accepted.Add(1)
		}()
	}

	wg.Wait()
	return int(accepted.Load()), firstErr
}
