package dispatch

import (
	"sync/atomic"

	"github.com/kart-io/apnshub/pkg/channel"
	"github.com/kart-io/apnshub/pkg/notification"
)

const inboxSize = 8

// DeliveryHandle tracks one recipient of one Send. Only the goroutine delivering
// the recipient mutates it; channels reach it solely through its device's reply
// function, which queues outcomes on the inbox.
type DeliveryHandle struct {
	recipient    channel.Recipient
	notification *notification.Notification
	device       *channel.Device
	current      int
	attempts     int
	// allInvalid stays set while every transmission error so far was an
	// invalid-token rejection.
	allInvalid bool

	inbox    chan channel.Outcome
	resolved atomic.Bool
	result   Result
}

func newDeliveryHandle(r channel.Recipient, n *notification.Notification, first int) *DeliveryHandle {
	h := &DeliveryHandle{
		recipient:    r,
		notification: n,
		current:      first,
		allInvalid:   true,
		inbox:        make(chan channel.Outcome, inboxSize),
	}
	h.device = channel.NewDevice(r, h.post)
	return h
}

// post never blocks the channel event loop. Outcomes arriving after resolution or
// while the inbox is full are dropped.
func (h *DeliveryHandle) post(o channel.Outcome) {
	if h.resolved.Load() {
		return
	}
	select {
	case h.inbox <- o:
	default:
	}
}

func (h *DeliveryHandle) resolve(r Result) Result {
	r.Recipient = h.recipient
	r.Attempts = h.attempts
	h.result = r
	h.resolved.Store(true)
	return r
}

// Current returns the index of the channel the recipient is being delivered on.
func (h *DeliveryHandle) Current() int { return h.current }

// Device returns the device handed to transports.
func (h *DeliveryHandle) Device() *channel.Device { return h.device }

// Resolved reports whether the handle reached a terminal outcome.
func (h *DeliveryHandle) Resolved() bool { return h.resolved.Load() }

// Result returns the terminal outcome. It is only meaningful once Resolved is true.
func (h *DeliveryHandle) Result() Result { return h.result }
