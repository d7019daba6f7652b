package config

import (
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
)

// Validate checks the configuration. Channel problems are reported as
// misconfiguration so they surface before any connection is opened.
func (c *Config) Validate() error {
	// An explicit empty list is a valid, empty pool; only an absent one is rejected.
	if c.Channels == nil {
		return apnserrors.New(apnserrors.ErrMisconfigured, "APNS configuration is invalid").
			WithDetails("no apns channel configured")
	}
	for i, ch := range c.Channels {
		if err := ch.Validate(); err != nil {
			if ne, ok := err.(*apnserrors.NotifyError); ok {
				ne.WithContext("index", i)
			}
			return err
		}
	}
	if c.SendTimeout < 0 {
		return apnserrors.New(apnserrors.ErrInvalidConfig, "send_timeout must not be negative")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return apnserrors.Newf(apnserrors.ErrInvalidConfig, "telemetry.sample_rate %v out of range [0,1]", c.Telemetry.SampleRate)
	}
	if c.Transport.PushTimeout < 0 || c.Transport.Concurrency < 0 {
		return apnserrors.New(apnserrors.ErrInvalidConfig, "transport settings must not be negative")
	}
	switch c.TokenStore.Type {
	case "", TokenStoreMemory:
	case TokenStoreRedis:
		if c.TokenStore.RedisURL == "" {
			return apnserrors.New(apnserrors.ErrInvalidConfig, "token_store.redis_url is required for the redis store")
		}
	default:
		return apnserrors.Newf(apnserrors.ErrInvalidConfig, "unknown token_store.type %q", c.TokenStore.Type)
	}
	return nil
}
