package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricofy/translate-relay/internal/config"
	"github.com/pricofy/translate-relay/internal/metrics"
)

func testConfig(upstreamURL string) *config.Configuration {
	return &config.Configuration{
		Server:   config.ServerConfiguration{MaxBodyBytes: 1 << 20},
		Upstream: config.UpstreamConfiguration{URL: upstreamURL, Timeout: time.Second},
		Batch:    config.BatchConfiguration{MaxTexts: 2},
	}
}

func TestNewHandlerUsesConfiguredCap(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"translatedText":"ok"}`))
	}))
	defer upstream.Close()

	h := NewHandler(testConfig(upstream.URL), zap.NewNop(), metrics.New())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/translate",
		strings.NewReader(`{"texts":["a","b","c"],"source":"en","target":"ja"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `{"error":"Too many texts (max 2)"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/translate",
		strings.NewReader(`{"texts":["a","b"],"source":"en","target":"ja"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"translations":["ok","ok"]}`, rr.Body.String())
	assert.EqualValues(t, 2, calls.Load())
}

func TestNewHandlerWithBreaker(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	cfg := testConfig(upstream.URL)
	cfg.Upstream.Breaker = config.BreakerConfiguration{Enabled: true, MaxFailures: 1, OpenTimeout: time.Minute}
	h := NewHandler(cfg, nil, nil)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/translate",
			strings.NewReader(`{"texts":["a"],"source":"en","target":"ja"}`)))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `{"translations":[""]}`, rr.Body.String())
	}
	assert.EqualValues(t, 1, calls.Load())
}
