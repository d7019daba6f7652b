package apnshub

import (
	"github.com/kart-io/apnshub/pkg/channel"
	"github.com/kart-io/apnshub/pkg/observability"
	"github.com/kart-io/apnshub/pkg/tokenstore"
)

// Option customizes how New assembles the hub.
type Option func(*hubOptions)

type hubOptions struct {
	dialer    channel.Dialer
	tokens    tokenstore.Store
	telemetry []observability.Option
}

// WithDialer replaces the APNs HTTP/2 dialer.
func WithDialer(d channel.Dialer) Option {
	return func(o *hubOptions) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithTokenStore uses s instead of the store described by the configuration.
// The hub closes it on Shutdown.
func WithTokenStore(s tokenstore.Store) Option {
	return func(o *hubOptions) { o.tokens = s }
}

// WithTelemetryOptions passes options through to observability.New.
func WithTelemetryOptions(opts ...observability.Option) Option {
	return func(o *hubOptions) { o.telemetry = append(o.telemetry, opts...) }
}
