// Package channeltest provides an in-memory channel.Transport for tests.
package channeltest

import (
	"sync"
	"time"

	"github.com/kart-io/apnshub/pkg/channel"
	"github.com/kart-io/apnshub/pkg/notification"
)

// Behavior decides which event a transmission produces. Returning an Event with a
// zero Type keeps the transport silent for that transmission.
type Behavior func(n *notification.Notification, d *channel.Device) channel.Event

// Succeed reports every transmission as transmitted.
func Succeed() Behavior {
	return func(n *notification.Notification, d *channel.Device) channel.Event {
		return channel.Event{Type: channel.EventTransmitted, Notification: n, Device: d}
	}
}

// Fail reports every transmission as a transmission error with code.
func Fail(code int) Behavior {
	return func(n *notification.Notification, d *channel.Device) channel.Event {
		return channel.Event{Type: channel.EventTransmissionError, Code: code, Notification: n, Device: d}
	}
}

// Silent never reports anything.
func Silent() Behavior {
	return func(*notification.Notification, *channel.Device) channel.Event {
		return channel.Event{}
	}
}

// Sequence uses behaviors in call order and repeats the last one.
func Sequence(behaviors ...Behavior) Behavior {
	var (
		mu   sync.Mutex
		next int
	)
	return func(n *notification.Notification, d *channel.Device) channel.Event {
		mu.Lock()
		b := behaviors[next]
		if next < len(behaviors)-1 {
			next++
		}
		mu.Unlock()
		return b(n, d)
	}
}

// Transmission records one Transmit call.
type Transmission struct {
	Notification *notification.Notification
	Device       *channel.Device
	At           time.Time
}

// Transport is a scripted channel.Transport.
type Transport struct {
	mu       sync.Mutex
	behavior Behavior
	delay    func(d *channel.Device) time.Duration
	events   chan channel.Event
	sent     []Transmission
	closed   bool
}

// New creates a transport with the given behavior. A nil behavior means Succeed.
func New(b Behavior) *Transport {
	if b == nil {
		b = Succeed()
	}
	return &Transport{
		behavior: b,
		events:   make(chan channel.Event, 256),
	}
}

// WithDelay postpones each result by the duration f returns for the device.
func (t *Transport) WithDelay(f func(d *channel.Device) time.Duration) *Transport {
	t.mu.Lock()
	t.delay = f
	t.mu.Unlock()
	return t
}

// Transmit records the call and emits the scripted result.
func (t *Transport) Transmit(n *notification.Notification, d *channel.Device) {
	t.mu.Lock()
	t.sent = append(t.sent, Transmission{Notification: n, Device: d, At: time.Now()})
	behavior, delay := t.behavior, t.delay
	t.mu.Unlock()

	ev := behavior(n, d)
	if ev.Type == 0 {
		return
	}
	if delay == nil {
		t.Emit(ev)
		return
	}
	wait := delay(d)
	go func() {
		time.Sleep(wait)
		t.Emit(ev)
	}()
}

// Emit pushes an arbitrary event, for example a connection event or an error that
// refers to no delivery. It is a no-op once the transport is closed.
func (t *Transport) Emit(ev channel.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.events <- ev
}

// Events implements channel.Transport.
func (t *Transport) Events() <-chan channel.Event {
	return t.events
}

// Close implements channel.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
	return nil
}

// Transmissions returns a copy of the recorded calls.
func (t *Transport) Transmissions() []Transmission {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transmission, len(t.sent))
	copy(out, t.sent)
	return out
}

// Count returns the number of Transmit calls.
func (t *Transport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

// Dialer hands out transports in dial order and records the configs it was given.
type Dialer struct {
	mu         sync.Mutex
	transports []*Transport
	Configs    []channel.Config
}

// NewDialer creates a Dialer over the given transports.
func NewDialer(ts ...*Transport) *Dialer {
	return &Dialer{transports: ts}
}

// Dial implements channel.Dialer. It creates a succeeding transport when the
// prepared ones are used up.
func (d *Dialer) Dial(cfg channel.Config) (channel.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := len(d.Configs)
	d.Configs = append(d.Configs, cfg)
	if i < len(d.transports) {
		return d.transports[i], nil
	}
	t := New(nil)
	d.transports = append(d.transports, t)
	return t, nil
}

// Transport returns the transport handed out for the i-th dialed config.
func (d *Dialer) Transport(i int) *Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[i]
}
