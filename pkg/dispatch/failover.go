package dispatch

import (
	"context"
	"fmt"
	"slices"

	"github.com/kart-io/apnshub/pkg/channel"
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
	"github.com/kart-io/apnshub/pkg/notification"
	"github.com/kart-io/apnshub/pkg/observability"
	"github.com/kart-io/apnshub/pkg/tokenstore"
)

// handleOutcome applies one outcome to h and reports whether h is now resolved.
func (d *Dispatcher) handleOutcome(ctx context.Context, h *DeliveryHandle, o channel.Outcome) (Result, bool) {
	if o.Channel != h.current {
		d.logger.Debug("ignoring stale outcome", "token", h.recipient.TokenHex(),
			"channel", o.Channel, "current", h.current)
		return Result{}, false
	}

	switch o.Kind {
	case channel.OutcomeTransmitted:
		c := d.pool.At(h.current)
		d.telemetry.RecordTransmitted(ctx, c.BundleID())
		return h.resolve(Result{
			Transmitted: true,
			Channel:     h.current,
			BundleID:    c.BundleID(),
		}), true
	case channel.OutcomeTransmissionError:
		return d.handleTransmissionError(ctx, h, o.Code, o.Notification, o.Device)
	}
	return Result{}, false
}

// handleTransmissionError moves h one step down its eligible channels and
// retransmits, or resolves h as failed when no eligible channel follows the current
// one. An error that names no notification or no device leaves h untouched.
func (d *Dispatcher) handleTransmissionError(ctx context.Context, h *DeliveryHandle, code int,
	n *notification.Notification, dev *channel.Device) (Result, bool) {
	if n == nil || dev == nil {
		return Result{}, false
	}
	if code != channel.CodeInvalidToken {
		h.allInvalid = false
	}

	eligible := channel.Qualify(d.pool, h.recipient)
	pos := slices.Index(eligible, h.current)
	if pos >= 0 && pos+1 < len(eligible) && eligible[pos+1] < d.pool.Len() {
		from := h.current
		h.current = eligible[pos+1]
		d.logger.Info("APNS failover", "token", h.recipient.TokenHex(),
			"from", from, "to", h.current, "code", code, "reason", channel.CodeText(code))
		d.telemetry.RecordFailover(ctx, from, h.current, code)
		d.transmit(h, n, dev)
		return Result{}, false
	}

	c := d.pool.At(h.current)
	token := h.recipient.TokenHex()
	d.logger.Error("APNS can not find valid connection", "token", token,
		"channel", h.current, "code", code, "reason", channel.CodeText(code))
	d.telemetry.RecordFailed(ctx, observability.ReasonExhausted, code, true)
	if h.allInvalid {
		d.markInvalid(ctx, token, c.BundleID(), code)
	}
	return h.resolve(Result{
		Channel:   h.current,
		BundleID:  c.BundleID(),
		Error:     fmt.Sprintf("no valid connection for %s", token),
		ErrorCode: apnserrors.ErrTransmission,
		Code:      code,
		Status:    code,
		Retryable: !h.allInvalid && apnserrors.IsRetryable(apnserrors.ErrTransmission),
	}), true
}

func (d *Dispatcher) transmit(h *DeliveryHandle, n *notification.Notification, dev *channel.Device) {
	h.attempts++
	d.pool.At(h.current).Transmit(n, dev)
}

func (d *Dispatcher) markInvalid(ctx context.Context, token, bundleID string, code int) {
	if d.tokens == nil {
		return
	}
	err := d.tokens.MarkInvalid(context.WithoutCancel(ctx), tokenstore.Entry{
		Token:    token,
		BundleID: bundleID,
		Code:     code,
	})
	if err != nil {
		d.logger.Error("failed to record invalid token", "token", token, "error", err)
	}
}
