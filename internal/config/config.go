// Package config loads the relay configuration from file, environment and defaults.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. RELAY_UPSTREAM_URL.
const EnvPrefix = "relay"

// Configuration is the complete relay configuration.
type Configuration struct {
	Server   ServerConfiguration   `mapstructure:"server"`
	Upstream UpstreamConfiguration `mapstructure:"upstream"`
	Batch    BatchConfiguration    `mapstructure:"batch"`
	Log      LogSettings           `mapstructure:"log"`
}

// ServerConfiguration holds the listener settings.
type ServerConfiguration struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
}

// UpstreamConfiguration describes the translation backend.
type UpstreamConfiguration struct {
	URL     string               `mapstructure:"url"`
	APIKey  string               `mapstructure:"api_key"`
	Timeout time.Duration        `mapstructure:"timeout"`
	Breaker BreakerConfiguration `mapstructure:"breaker"`
}

// BreakerConfiguration controls the optional circuit breaker in front of the
// upstream backend.
type BreakerConfiguration struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// BatchConfiguration holds the batch admission limits.
type BatchConfiguration struct {
	MaxTexts int `mapstructure:"max_texts"`
}

// LogSettings holds information used to initialize the logger.
type LogSettings struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("upstream.url", "https://libretranslate.de/translate")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.timeout", 20*time.Second)
	v.SetDefault("upstream.breaker.enabled", false)
	v.SetDefault("upstream.breaker.max_failures", 5)
	v.SetDefault("upstream.breaker.open_timeout", 30*time.Second)
	v.SetDefault("batch.max_texts", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)
}

// Load reads the configuration. An empty configFilePath searches for
// config.{yaml,json,toml} in the working directory and ./config/, and a missing
// file there is not an error. Environment variables override both.
func Load(configFilePath string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFilePath != "" {
		v.SetConfigFile(configFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "unable to read configuration file")
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config/")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrap(err, "unable to read configuration file")
			}
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings the relay cannot run without.
func (c *Configuration) Validate() error {
	if c.Upstream.URL == "" {
		return errors.New("upstream.url is required")
	}
	u, err := url.Parse(c.Upstream.URL)
	if err != nil {
		return errors.Wrap(err, "upstream.url is invalid")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("upstream.url must be http or https, got %q", c.Upstream.URL)
	}
	if c.Upstream.Timeout <= 0 {
		return errors.New("upstream.timeout must be positive")
	}
	if c.Batch.MaxTexts <= 0 {
		return errors.New("batch.max_texts must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	return nil
}
