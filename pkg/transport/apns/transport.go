// Package apns implements channel.Transport on the APNs HTTP/2 provider API.
package apns

import (
	"context"
	stderrors "errors"
	"net"
	"sync"
	"time"

	"github.com/sideshow/apns2"

	"github.com/kart-io/apnshub/pkg/channel"
	"github.com/kart-io/apnshub/pkg/notification"
)

// Pusher is the part of *apns2.Client the transport uses.
type Pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

const (
	defaultPushTimeout = 10 * time.Second
	defaultConcurrency = 64
	eventBuffer        = 128
)

// Transport sends every Transmit as its own HTTP/2 request and reports the
// response as a Transmitted or TransmissionError event.
type Transport struct {
	client  Pusher
	topic   string
	timeout time.Duration

	events chan channel.Event
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewTransport wraps client. topic is the bundle identifier sent as apns-topic.
func NewTransport(client Pusher, topic string, opts ...Option) *Transport {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		client:  client,
		topic:   topic,
		timeout: o.timeout,
		events:  make(chan channel.Event, eventBuffer),
		sem:     make(chan struct{}, o.concurrency),
		ctx:     ctx,
		cancel:  cancel,
	}
	t.events <- channel.Event{Type: channel.EventConnected}
	return t
}

// Transmit implements channel.Transport. It returns immediately; transmissions
// after Close are dropped.
func (t *Transport) Transmit(n *notification.Notification, d *channel.Device) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	t.wg.Add(1)
	go t.push(n, d)
}

func (t *Transport) push(n *notification.Notification, d *channel.Device) {
	defer t.wg.Done()

	select {
	case t.sem <- struct{}{}:
		defer func() { <-t.sem }()
	case <-t.ctx.Done():
		t.events <- transmissionError(channel.CodeShutdown, n, d)
		return
	}

	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()

	res, err := t.client.PushWithContext(ctx, Convert(n, d, t.topic))
	if err != nil {
		t.events <- connectionEvent(err)
		code := channel.CodeProcessingError
		if t.ctx.Err() != nil {
			code = channel.CodeShutdown
		}
		t.events <- transmissionError(code, n, d)
		return
	}
	if res.Sent() {
		t.events <- channel.Event{Type: channel.EventTransmitted, Notification: n, Device: d}
		return
	}
	ev := transmissionError(ReasonCode(res.Reason), n, d)
	ev.Err = &ResponseError{StatusCode: res.StatusCode, Reason: res.Reason, ApnsID: res.ApnsID}
	t.events <- ev
}

func transmissionError(code int, n *notification.Notification, d *channel.Device) channel.Event {
	return channel.Event{Type: channel.EventTransmissionError, Code: code, Notification: n, Device: d}
}

func connectionEvent(err error) channel.Event {
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return channel.Event{Type: channel.EventTimeout, Err: err}
	}
	return channel.Event{Type: channel.EventSocketError, Err: err}
}

// Events implements channel.Transport.
func (t *Transport) Events() <-chan channel.Event {
	return t.events
}

// Close cancels in-flight requests, waits for their events and closes the event
// stream after a final Disconnected event.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
	t.events <- channel.Event{Type: channel.EventDisconnected}
	close(t.events)
	return nil
}
