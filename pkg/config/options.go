package config

import (
	"time"

	"github.com/kart-io/apnshub/pkg/channel"
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
	"github.com/kart-io/apnshub/pkg/logger"
)

// Option mutates a Config.
type Option func(*Config) error

// WithChannels appends channel configurations.
func WithChannels(cfgs ...channel.Config) Option {
	return func(cfg *Config) error {
		cfg.Channels = append(cfg.Channels, cfgs...)
		return nil
	}
}

// WithLogLevel sets the level of the default logger.
func WithLogLevel(level string) Option {
	return func(cfg *Config) error {
		cfg.LogLevel = level
		return nil
	}
}

// WithLogger sets a custom logger instance.
func WithLogger(l logger.Logger) Option {
	return func(cfg *Config) error {
		cfg.Logger = l
		return nil
	}
}

// WithSendTimeout bounds how long one send waits for its recipients. Zero disables the bound.
func WithSendTimeout(timeout time.Duration) Option {
	return func(cfg *Config) error {
		if timeout < 0 {
			return apnserrors.New(apnserrors.ErrInvalidConfig, "send_timeout must not be negative")
		}
		cfg.SendTimeout = timeout
		return nil
	}
}

// WithTelemetry replaces the telemetry settings.
func WithTelemetry(t TelemetryConfig) Option {
	return func(cfg *Config) error {
		cfg.Telemetry = t
		return nil
	}
}

// WithMemoryTokenStore keeps invalid tokens in process memory for ttl.
func WithMemoryTokenStore(ttl time.Duration) Option {
	return func(cfg *Config) error {
		cfg.TokenStore.Type = TokenStoreMemory
		cfg.TokenStore.TTL = ttl
		return nil
	}
}

// WithRedisTokenStore keeps invalid tokens in Redis.
func WithRedisTokenStore(url string) Option {
	return func(cfg *Config) error {
		cfg.TokenStore.Type = TokenStoreRedis
		cfg.TokenStore.RedisURL = url
		return nil
	}
}

// WithTransport sets connection tuning.
func WithTransport(t TransportConfig) Option {
	return func(cfg *Config) error {
		cfg.Transport = t
		return nil
	}
}

// WithTestDefaults provides safe defaults for testing.
func WithTestDefaults() Option {
	return func(cfg *Config) error {
		cfg.LogLevel = "silent"
		cfg.SendTimeout = 5 * time.Second
		cfg.Telemetry.Enabled = false
		cfg.TokenStore.Type = TokenStoreMemory
		return nil
	}
}
