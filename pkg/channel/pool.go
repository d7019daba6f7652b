// Package channel owns the ordered pool of APNs connections and the rules that decide
// which of them may deliver to a given device.
package channel

import (
	stderrors "errors"
	"sort"

	apnserrors "github.com/kart-io/apnshub/pkg/errors"
	"github.com/kart-io/apnshub/pkg/logger"
)

// Pool is the priority-ordered set of channels. Order and membership are fixed when
// NewPool returns; the pool is safe for concurrent use by any number of dispatches.
type Pool struct {
	channels []*Channel
	logger   logger.Logger
}

// Option configures NewPool.
type Option func(*poolOptions)

type poolOptions struct {
	logger logger.Logger
	hook   EventHook
}

// WithLogger sets the logger used by the pool and its channels.
func WithLogger(l logger.Logger) Option {
	return func(o *poolOptions) { o.logger = l }
}

// WithEventHook registers a hook called for every transport event.
func WithEventHook(h EventHook) Option {
	return func(o *poolOptions) { o.hook = h }
}

// NewPool dials one transport per config, orders the resulting channels by priority
// (production first, ties keep configuration order) and numbers them. Every config
// must name a bundle identifier. An empty list yields an empty pool, for which no
// recipient qualifies.
func NewPool(dial Dialer, cfgs []Config, opts ...Option) (*Pool, error) {
	o := poolOptions{logger: logger.Discard}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logger.OrDiscard(o.logger)

	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	channels := make([]*Channel, 0, len(cfgs))
	for _, cfg := range cfgs {
		t, err := dial(cfg)
		if err != nil {
			closeAll(channels)
			return nil, apnserrors.Wrapf(err, apnserrors.ErrMisconfigured, "cannot create connection for %s", cfg.BundleID)
		}
		channels = append(channels, newChannel(cfg, t, o.logger, o.hook))
	}

	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].priority < channels[j].priority
	})
	for i, c := range channels {
		c.index = i
		c.start()
	}

	if len(channels) == 0 {
		o.logger.Warn("APNS pool has no channels")
	}
	o.logger.Info("APNS pool ready", "channels", len(channels))
	return &Pool{channels: channels, logger: o.logger}, nil
}

// Len returns the number of channels.
func (p *Pool) Len() int { return len(p.channels) }

// At returns the channel at index i.
func (p *Pool) At(i int) *Channel { return p.channels[i] }

// Channels returns a copy of the ordered channel list.
func (p *Pool) Channels() []*Channel {
	out := make([]*Channel, len(p.channels))
	copy(out, p.channels)
	return out
}

// Qualify is shorthand for Qualify(p, r).
func (p *Pool) Qualify(r Recipient) []int {
	return Qualify(p, r)
}

// Close closes every transport and waits for the channel event loops to drain.
func (p *Pool) Close() error {
	return closeAll(p.channels)
}

func closeAll(channels []*Channel) error {
	var errs []error
	for _, c := range channels {
		if err := c.transport.Close(); err != nil {
			errs = append(errs, apnserrors.Wrapf(err, apnserrors.ErrTransport, "close connection %s", c.BundleID()))
			continue
		}
		if c.index >= 0 {
			<-c.done
		}
	}
	return stderrors.Join(errs...)
}
