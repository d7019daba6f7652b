// Package config loads apnshub configuration from YAML, the environment and
// functional options, in that order.
package config

import (
	"bytes"
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kart-io/apnshub/pkg/channel"
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
	"github.com/kart-io/apnshub/pkg/logger"
)

// Token store backends.
const (
	TokenStoreMemory = "memory"
	TokenStoreRedis  = "redis"
)

// Config is the root configuration.
type Config struct {
	// Channels is the APNs credential list. It decodes from a single mapping or a list.
	Channels    ChannelList      `yaml:"apns" json:"apns"`
	LogLevel    string           `yaml:"log_level" json:"log_level" env:"LOG_LEVEL"`
	SendTimeout time.Duration    `yaml:"send_timeout" json:"send_timeout" env:"SEND_TIMEOUT"`
	Telemetry   TelemetryConfig  `yaml:"telemetry" json:"telemetry" envPrefix:"TELEMETRY_"`
	TokenStore  TokenStoreConfig `yaml:"token_store" json:"token_store" envPrefix:"TOKEN_STORE_"`
	Transport   TransportConfig  `yaml:"transport" json:"transport" envPrefix:"TRANSPORT_"`

	// Logger overrides the logger built from LogLevel.
	Logger logger.Logger `yaml:"-" json:"-"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool              `yaml:"enabled" json:"enabled" env:"ENABLED"`
	ServiceName    string            `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`
	ServiceVersion string            `yaml:"service_version" json:"service_version" env:"SERVICE_VERSION"`
	Environment    string            `yaml:"environment" json:"environment" env:"ENVIRONMENT"`
	OTLPEndpoint   string            `yaml:"otlp_endpoint" json:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	OTLPHeaders    map[string]string `yaml:"otlp_headers" json:"otlp_headers" env:"OTLP_HEADERS"`
	TracingEnabled bool              `yaml:"tracing_enabled" json:"tracing_enabled" env:"TRACING_ENABLED"`
	MetricsEnabled bool              `yaml:"metrics_enabled" json:"metrics_enabled" env:"METRICS_ENABLED"`
	SampleRate     float64           `yaml:"sample_rate" json:"sample_rate" env:"SAMPLE_RATE"`
}

// TokenStoreConfig configures the invalid-token registry.
type TokenStoreConfig struct {
	Type      string        `yaml:"type" json:"type" env:"TYPE"`
	RedisURL  string        `yaml:"redis_url" json:"redis_url" env:"REDIS_URL"`
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix" env:"KEY_PREFIX"`
	TTL       time.Duration `yaml:"ttl" json:"ttl" env:"TTL"`
}

// TransportConfig tunes every APNs connection.
type TransportConfig struct {
	PushTimeout time.Duration `yaml:"push_timeout" json:"push_timeout" env:"PUSH_TIMEOUT"`
	// Concurrency bounds in-flight requests per connection.
	Concurrency int `yaml:"concurrency" json:"concurrency" env:"CONCURRENCY"`
}

// ChannelList is a list of channel configs that also accepts a single config.
type ChannelList []channel.Config

// UnmarshalYAML accepts a mapping or a sequence of mappings.
func (l *ChannelList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var c channel.Config
		if err := node.Decode(&c); err != nil {
			return err
		}
		*l = ChannelList{c}
	case yaml.SequenceNode:
		var cs []channel.Config
		if err := node.Decode(&cs); err != nil {
			return err
		}
		*l = append(ChannelList{}, cs...)
	default:
		return invalidShape()
	}
	return nil
}

// UnmarshalJSON accepts an object or an array of objects.
func (l *ChannelList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return invalidShape()
	}
	switch data[0] {
	case '{':
		var c channel.Config
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*l = ChannelList{c}
	case '[':
		var cs []channel.Config
		if err := json.Unmarshal(data, &cs); err != nil {
			return err
		}
		*l = append(ChannelList{}, cs...)
	default:
		return invalidShape()
	}
	return nil
}

func invalidShape() error {
	return apnserrors.New(apnserrors.ErrMisconfigured, "APNS configuration is invalid")
}

// Default returns a configuration with defaults applied and no channels.
func Default() *Config {
	return &Config{
		LogLevel:    "warn",
		SendTimeout: 30 * time.Second,
		Telemetry: TelemetryConfig{
			ServiceName:    "apnshub",
			ServiceVersion: "0.1.0",
			Environment:    "development",
			OTLPEndpoint:   "http://localhost:4318",
			TracingEnabled: true,
			MetricsEnabled: true,
			SampleRate:     1.0,
		},
		TokenStore: TokenStoreConfig{
			Type:      TokenStoreMemory,
			KeyPrefix: "apnshub:invalid:",
			TTL:       30 * 24 * time.Hour,
		},
		Transport: TransportConfig{
			PushTimeout: 10 * time.Second,
			Concurrency: 64,
		},
	}
}

// GetLogger returns the configured logger, building a standard one from LogLevel
// when none was set.
func (c *Config) GetLogger() logger.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.New().LogMode(logger.ParseLevel(c.LogLevel))
}
