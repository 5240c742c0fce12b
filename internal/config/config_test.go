package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "https://libretranslate.de/translate", cfg.Upstream.URL)
	assert.Equal(t, 20*time.Second, cfg.Upstream.Timeout)
	assert.False(t, cfg.Upstream.Breaker.Enabled)
	assert.Equal(t, 100, cfg.Batch.MaxTexts)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RELAY_UPSTREAM_URL", "http://127.0.0.1:5000/translate")
	t.Setenv("RELAY_UPSTREAM_TIMEOUT", "3s")
	t.Setenv("RELAY_BATCH_MAX_TEXTS", "10")
	t.Setenv("RELAY_UPSTREAM_BREAKER_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:5000/translate", cfg.Upstream.URL)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 10, cfg.Batch.MaxTexts)
	assert.True(t, cfg.Upstream.Breaker.Enabled)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	content := []byte("upstream:\n  url: http://backend:5000/translate\n  api_key: secret\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend:5000/translate", cfg.Upstream.URL)
	assert.Equal(t, "secret", cfg.Upstream.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Batch.MaxTexts)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to read configuration file")
}

func TestValidate(t *testing.T) {
	valid := func() Configuration {
		return Configuration{
			Server:   ServerConfiguration{MaxBodyBytes: 1024},
			Upstream: UpstreamConfiguration{URL: "https://example.com/translate", Timeout: time.Second},
			Batch:    BatchConfiguration{MaxTexts: 100},
		}
	}

	tests := []struct {
		name     string
		mutate   func(*Configuration)
		errorMsg string
	}{
		{name: "valid", mutate: func(*Configuration) {}},
		{name: "empty url", mutate: func(c *Configuration) { c.Upstream.URL = "" }, errorMsg: "upstream.url is required"},
		{name: "bad scheme", mutate: func(c *Configuration) { c.Upstream.URL = "ftp://example.com" }, errorMsg: `upstream.url must be http or https, got "ftp://example.com"`},
		{name: "zero timeout", mutate: func(c *Configuration) { c.Upstream.Timeout = 0 }, errorMsg: "upstream.timeout must be positive"},
		{name: "zero max texts", mutate: func(c *Configuration) { c.Batch.MaxTexts = 0 }, errorMsg: "batch.max_texts must be positive"},
		{name: "zero body limit", mutate: func(c *Configuration) { c.Server.MaxBodyBytes = 0 }, errorMsg: "server.max_body_bytes must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.errorMsg)
		})
	}
}
