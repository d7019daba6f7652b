// Package dispatch sends one notification to many recipients over a channel pool,
// choosing the highest priority eligible channel per recipient and failing over to
// the next eligible one on every transmission error.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kart-io/apnshub/pkg/channel"
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
	"github.com/kart-io/apnshub/pkg/logger"
	"github.com/kart-io/apnshub/pkg/notification"
	"github.com/kart-io/apnshub/pkg/observability"
	"github.com/kart-io/apnshub/pkg/tokenstore"
)

// Dispatcher is safe for concurrent Sends over the same pool.
type Dispatcher struct {
	pool      *channel.Pool
	logger    logger.Logger
	telemetry *observability.Telemetry
	tokens    tokenstore.Store
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger.OrDiscard(l) }
}

// WithTelemetry sets the telemetry used for spans and metrics.
func WithTelemetry(t *observability.Telemetry) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.telemetry = t
		}
	}
}

// WithTokenStore records tokens that fail with an invalid-token code on every
// eligible channel.
func WithTokenStore(s tokenstore.Store) Option {
	return func(d *Dispatcher) { d.tokens = s }
}

// New creates a dispatcher over pool.
func New(pool *channel.Pool, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:      pool,
		logger:    logger.Discard,
		telemetry: observability.Noop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send builds one notification from p and delivers it to every recipient. It
// returns once every recipient has a terminal result; per-recipient failures are
// reported in the BatchResult, and only an invalid payload fails the call. When
// ctx is done, recipients still waiting for a result are resolved as failed.
func (d *Dispatcher) Send(ctx context.Context, p Payload, recipients []channel.Recipient) (*BatchResult, error) {
	n, err := notification.Build(p.Data, p.ExpirationTime)
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{
		ID:      uuid.NewString(),
		Results: make([]Result, len(recipients)),
	}
	start := time.Now()
	ctx, span := d.telemetry.StartSend(ctx, batch.ID, len(recipients))

	var wg sync.WaitGroup
	for i, r := range recipients {
		wg.Add(1)
		go func(i int, r channel.Recipient) {
			defer wg.Done()
			batch.Results[i] = d.deliver(ctx, n, r)
		}(i, r)
	}
	wg.Wait()

	batch.Duration = time.Since(start)
	transmitted, failed := batch.Transmitted(), batch.Failed()
	d.telemetry.EndSend(ctx, span, transmitted, failed, batch.Duration)
	d.logger.Info("APNS send finished", "batch_id", batch.ID,
		"transmitted", transmitted, "failed", failed, "duration", batch.Duration)
	return batch, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *notification.Notification, r channel.Recipient) Result {
	eligible := channel.Qualify(d.pool, r)
	if len(eligible) == 0 {
		d.logger.Warn("APNS no connection available", "token", r.TokenHex(), "app_identifier", r.AppIdentifier)
		d.telemetry.RecordFailed(ctx, observability.ReasonNoConnection, 0, false)
		return Result{
			Recipient: r,
			Channel:   -1,
			Error:     ErrNoConnection,
			ErrorCode: apnserrors.ErrNoConnection,
			Retryable: apnserrors.IsRetryable(apnserrors.ErrNoConnection),
		}
	}

	h := newDeliveryHandle(r, n, eligible[0])
	d.telemetry.DeliveryStarted(ctx)
	d.transmit(h, h.notification, h.device)

	for {
		select {
		case o := <-h.inbox:
			if res, done := d.handleOutcome(ctx, h, o); done {
				return res
			}
		case <-ctx.Done():
			err := apnserrors.Wrap(ctx.Err(), apnserrors.ErrCancelled, "delivery cancelled")
			d.logger.Warn("APNS delivery cancelled", "token", r.TokenHex(), "channel", h.current, "error", ctx.Err())
			d.telemetry.RecordFailed(ctx, observability.ReasonCancelled, 0, true)
			return h.resolve(Result{
				Channel:   h.current,
				BundleID:  d.pool.At(h.current).BundleID(),
				Error:     err.Error(),
				ErrorCode: apnserrors.ErrCancelled,
				Retryable: apnserrors.IsRetryable(apnserrors.ErrCancelled),
			})
		}
	}
}
