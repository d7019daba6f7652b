// Package apnshub delivers one push notification to many devices through a pool of
// APNs connections, preferring production credentials and failing over to the
// next eligible connection when one rejects a device.
//
// Basic usage:
//
//	hub, err := apnshub.New(nil) // Load config from APNSHUB_* env
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer hub.Shutdown(context.Background())
//
//	batch, err := hub.Send(ctx, dispatch.Payload{
//		Data: map[string]any{"alert": "Hello", "badge": 1},
//	}, []channel.Recipient{{DeviceToken: token, AppIdentifier: "com.example.app"}})
//
// Configuration from a YAML file:
//
//	cfg, err := config.Load("apnshub.yaml")
//	hub, err := apnshub.New(cfg)
package apnshub

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/kart-io/apnshub/pkg/channel"
	"github.com/kart-io/apnshub/pkg/config"
	"github.com/kart-io/apnshub/pkg/dispatch"
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
	"github.com/kart-io/apnshub/pkg/logger"
	"github.com/kart-io/apnshub/pkg/observability"
	"github.com/kart-io/apnshub/pkg/tokenstore"
	"github.com/kart-io/apnshub/pkg/transport/apns"
)

// Hub owns the connection pool and everything a send needs around it.
type Hub struct {
	config     *config.Config
	pool       *channel.Pool
	dispatcher *dispatch.Dispatcher
	tokens     tokenstore.Store
	telemetry  *observability.Telemetry
	logger     logger.Logger

	// ctx is cancelled when Shutdown gives up waiting for running sends.
	ctx    context.Context
	cancel context.CancelFunc
	sends  sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// ChannelStatus describes one pooled connection.
type ChannelStatus struct {
	Index      int    `json:"index"`
	BundleID   string `json:"bundle_id"`
	Production bool   `json:"production"`
	Priority   int    `json:"priority"`
}

// New creates a hub from cfg. A nil cfg is read from the environment.
func New(cfg *config.Config, opts ...Option) (*Hub, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.New(config.WithEnv()); err != nil {
			return nil, err
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := hubOptions{dialer: apns.Dialer(
		apns.WithPushTimeout(cfg.Transport.PushTimeout),
		apns.WithConcurrency(cfg.Transport.Concurrency),
	)}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Hub{config: cfg, logger: cfg.GetLogger()}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	telemetry, err := observability.New(cfg.Telemetry, o.telemetry...)
	if err != nil {
		h.logger.Error("failed to initialize telemetry", "error", err)
		telemetry = observability.Noop()
	}
	h.telemetry = telemetry

	if o.tokens != nil {
		h.tokens = o.tokens
	} else if h.tokens, err = newTokenStore(cfg.TokenStore); err != nil {
		_ = h.telemetry.Shutdown(context.Background())
		return nil, err
	}

	h.pool, err = channel.NewPool(o.dialer, cfg.Channels,
		channel.WithLogger(h.logger),
		channel.WithEventHook(h.observeEvent),
	)
	if err != nil {
		_ = h.tokens.Close()
		_ = h.telemetry.Shutdown(context.Background())
		return nil, err
	}

	h.dispatcher = dispatch.New(h.pool,
		dispatch.WithLogger(h.logger),
		dispatch.WithTelemetry(h.telemetry),
		dispatch.WithTokenStore(h.tokens),
	)

	h.logger.Info("APNS hub initialized", "channels", h.pool.Len(),
		"token_store", cfg.TokenStore.Type, "telemetry", cfg.Telemetry.Enabled)
	return h, nil
}

func newTokenStore(cfg config.TokenStoreConfig) (tokenstore.Store, error) {
	switch cfg.Type {
	case config.TokenStoreRedis:
		return tokenstore.NewRedisStore(context.Background(), tokenstore.RedisConfig{
			URL:       cfg.RedisURL,
			KeyPrefix: cfg.KeyPrefix,
			TTL:       cfg.TTL,
		})
	default:
		return tokenstore.NewMemoryStore(cfg.TTL), nil
	}
}

func (h *Hub) observeEvent(c *channel.Channel, ev channel.Event) {
	switch ev.Type {
	case channel.EventTransmitted, channel.EventTransmissionError:
		return
	}
	h.telemetry.RecordConnectionEvent(context.Background(), c.BundleID(), c.Index(), ev.Type.String())
}

// Send delivers p to recipients, bounded by the configured send timeout. Sends
// still running when Shutdown's context expires are cancelled.
func (h *Hub) Send(ctx context.Context, p dispatch.Payload, recipients []channel.Recipient) (*dispatch.BatchResult, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, apnserrors.New(apnserrors.ErrTransport, "hub is shut down")
	}
	h.sends.Add(1)
	h.mu.Unlock()
	defer h.sends.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	if h.config.SendTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, h.config.SendTimeout)
		defer cancelTimeout()
	}
	return h.dispatcher.Send(ctx, p, recipients)
}

// InvalidTokens lists the tokens rejected as invalid by every eligible connection.
func (h *Hub) InvalidTokens(ctx context.Context) ([]tokenstore.Entry, error) {
	return h.tokens.List(ctx)
}

// ForgetToken removes token from the invalid-token registry.
func (h *Hub) ForgetToken(ctx context.Context, token string) error {
	return h.tokens.Remove(ctx, token)
}

// Channels reports the pool in priority order.
func (h *Hub) Channels() []ChannelStatus {
	out := make([]ChannelStatus, 0, h.pool.Len())
	for _, c := range h.pool.Channels() {
		out = append(out, ChannelStatus{
			Index:      c.Index(),
			BundleID:   c.BundleID(),
			Production: c.Production(),
			Priority:   c.Priority(),
		})
	}
	return out
}

// Shutdown waits for running sends, then closes the connections, the token store
// and the telemetry exporters. When ctx expires first, pending recipients are
// resolved as cancelled and ctx's error is returned along with any close error.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		h.sends.Wait()
		close(drained)
	}()

	var errs []error
	select {
	case <-drained:
	case <-ctx.Done():
		h.logger.Warn("APNS hub shutdown cancelling running sends", "error", ctx.Err())
		errs = append(errs, ctx.Err())
		h.cancel()
		<-drained
	}
	h.cancel()

	errs = append(errs, h.pool.Close(), h.tokens.Close(), h.telemetry.Shutdown(ctx))
	h.logger.Info("APNS hub shut down")
	return stderrors.Join(errs...)
}
