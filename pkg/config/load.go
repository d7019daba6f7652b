package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apnserrors "github.com/kart-io/apnshub/pkg/errors"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "APNSHUB_"

// New builds a configuration from defaults and options, then validates it.
func New(opts ...Option) (*Config, error) {
	cfg := Default()
	if err := cfg.apply(opts); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the YAML file at path, overlays APNSHUB_* environment variables
// (a .env file in the working directory is honored), applies opts and validates.
func Load(path string, opts ...Option) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apnserrors.Wrapf(err, apnserrors.ErrConfigLoadFailed, "read %s", path)
	}
	if err := Decode(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.apply(append([]Option{WithEnv()}, opts...)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unmarshals YAML into cfg, keeping defaults for absent keys.
func Decode(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if apnserrors.GetCode(err) != "" {
			return err
		}
		return apnserrors.Wrap(err, apnserrors.ErrConfigLoadFailed, "decode configuration")
	}
	return nil
}

// WithEnv overlays APNSHUB_* environment variables onto the configuration.
func WithEnv() Option {
	return func(cfg *Config) error {
		// A missing .env file is fine.
		_ = godotenv.Load()
		if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
			return apnserrors.Wrap(err, apnserrors.ErrConfigLoadFailed, "parse environment")
		}
		return nil
	}
}

func (c *Config) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}
