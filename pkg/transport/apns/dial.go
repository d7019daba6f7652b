package apns

import (
	"crypto/tls"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/token"

	"github.com/kart-io/apnshub/pkg/channel"
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
)

// Option configures transports created by NewTransport and Dialer.
type Option func(*options)

type options struct {
	timeout     time.Duration
	concurrency int
}

func defaultOptions() options {
	return options{timeout: defaultPushTimeout, concurrency: defaultConcurrency}
}

// WithPushTimeout bounds each HTTP/2 request.
func WithPushTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithConcurrency bounds the number of in-flight requests per connection.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// Dialer returns a channel.Dialer that creates an apns2 client per config.
func Dialer(opts ...Option) channel.Dialer {
	return func(cfg channel.Config) (channel.Transport, error) {
		client, err := NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewTransport(client, cfg.BundleID, opts...), nil
	}
}

// NewClient creates the apns2 client for cfg, against the production or the
// development gateway. Credentials are tried in order: auth key, pfx, cert/key pair.
func NewClient(cfg channel.Config) (*apns2.Client, error) {
	var client *apns2.Client
	switch {
	case cfg.AuthKey != "":
		key, err := token.AuthKeyFromFile(cfg.AuthKey)
		if err != nil {
			return nil, credentialError(err, cfg, "load auth key")
		}
		client = apns2.NewTokenClient(&token.Token{AuthKey: key, KeyID: cfg.KeyID, TeamID: cfg.TeamID})
	case cfg.Pfx != "":
		cert, err := certificate.FromP12File(cfg.Pfx, cfg.Passphrase)
		if err != nil {
			return nil, credentialError(err, cfg, "load pfx")
		}
		client = apns2.NewClient(cert)
	case cfg.Cert != "" && cfg.Key != "":
		cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
		if err != nil {
			return nil, credentialError(err, cfg, "load certificate")
		}
		client = apns2.NewClient(cert)
	case cfg.Cert != "":
		cert, err := certificate.FromPemFile(cfg.Cert, cfg.Passphrase)
		if err != nil {
			return nil, credentialError(err, cfg, "load certificate")
		}
		client = apns2.NewClient(cert)
	default:
		return nil, apnserrors.Newf(apnserrors.ErrMisconfigured, "no credentials for %s", cfg.BundleID)
	}

	if cfg.Production {
		return client.Production(), nil
	}
	return client.Development(), nil
}

func credentialError(err error, cfg channel.Config, what string) error {
	return apnserrors.Wrapf(err, apnserrors.ErrTransport, "%s for %s", what, cfg.BundleID)
}
