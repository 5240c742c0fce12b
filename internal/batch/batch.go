// Package batch fans a list of texts out to the item translator and
// reassembles the results in input order.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pricofy/translate-relay/internal/metrics"
)

// DefaultMaxTexts is the default cap on texts per batch.
const DefaultMaxTexts = 100

// ErrTooManyItems is returned when a batch exceeds the configured cap.
var ErrTooManyItems = errors.New("too many texts")

// ItemTranslator translates a single text. Implementations report failure by
// returning "", never through an error.
type ItemTranslator interface {
	Translate(ctx context.Context, text, source, target string) string
}

// Orchestrator runs one ItemTranslator call per text concurrently.
type Orchestrator struct {
	translator ItemTranslator
	maxTexts   int
	metrics    *metrics.Metrics
}

// New creates an Orchestrator. A non-positive maxTexts selects DefaultMaxTexts.
func New(translator ItemTranslator, maxTexts int, m *metrics.Metrics) *Orchestrator {
	if maxTexts <= 0 {
		maxTexts = DefaultMaxTexts
	}
	return &Orchestrator{
		translator: translator,
		maxTexts:   maxTexts,
		metrics:    m,
	}
}

// MaxTexts returns the batch cap.
func (o *Orchestrator) MaxTexts() int {
	return o.maxTexts
}

// TranslateBulk translates every text and returns a slice of the same length
// where result[i] belongs to texts[i]. It waits for every item to settle.
// Items are detached from ctx cancellation and bounded only by their own
// deadline, so a caller going away does not cut the batch short.
func (o *Orchestrator) TranslateBulk(ctx context.Context, texts []string, source, target string) ([]string, error) {
	if len(texts) > o.maxTexts {
		return nil, ErrTooManyItems
	}

	start := time.Now()
	itemCtx := context.WithoutCancel(ctx)
	results := make([]string, len(texts))

	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = o.translator.Translate(itemCtx, text, source, target)
		}()
	}
	wg.Wait()

	o.metrics.ObserveBatch(len(texts), time.Since(start))
	return results, nil
}
