package channel

import (
	"github.com/kart-io/apnshub/pkg/logger"
	"github.com/kart-io/apnshub/pkg/notification"
)

// EventHook observes every event a channel receives, after it has been handled.
type EventHook func(c *Channel, ev Event)

// Channel is one pooled transport bound to a bundle identity and a priority.
type Channel struct {
	config    Config
	priority  int
	index     int
	transport Transport
	logger    logger.Logger
	hook      EventHook
	done      chan struct{}
}

func newChannel(cfg Config, t Transport, log logger.Logger, hook EventHook) *Channel {
	return &Channel{
		config:    cfg,
		priority:  cfg.Priority(),
		index:     -1,
		transport: t,
		logger:    log,
		hook:      hook,
		done:      make(chan struct{}),
	}
}

// BundleID returns the bundle identifier the channel's credentials are issued for.
func (c *Channel) BundleID() string { return c.config.BundleID }

// Priority returns 0 for production channels and 1 for sandbox channels.
func (c *Channel) Priority() int { return c.priority }

// Index returns the channel's position in its pool.
func (c *Channel) Index() int { return c.index }

// Production reports whether the channel talks to the production gateway.
func (c *Channel) Production() bool { return c.config.Production }

// Transmit hands n to the channel's transport. The result arrives on d's reply
// function as an Outcome tagged with this channel's index.
func (c *Channel) Transmit(n *notification.Notification, d *Device) {
	c.transport.Transmit(n, d)
}

func (c *Channel) start() {
	go c.run()
}

func (c *Channel) run() {
	defer close(c.done)
	for ev := range c.transport.Events() {
		c.handle(ev)
		if c.hook != nil {
			c.hook(c, ev)
		}
	}
}

func (c *Channel) handle(ev Event) {
	switch ev.Type {
	case EventConnected:
		c.logger.Info("APNS connection connected", "index", c.index, "bundle_id", c.BundleID())
	case EventDisconnected:
		c.logger.Info("APNS connection disconnected", "index", c.index, "bundle_id", c.BundleID())
	case EventTimeout:
		c.logger.Warn("APNS connection timeout", "index", c.index, "bundle_id", c.BundleID())
	case EventSocketError:
		c.logger.Warn("APNS connection socket error", "index", c.index, "bundle_id", c.BundleID(), "error", ev.Err)
	case EventTransmitted:
		if ev.Device == nil {
			return
		}
		c.logger.Debug("APNS notification transmitted", "index", c.index, "token", ev.Device.TokenHex())
		ev.Device.report(Outcome{
			Kind:         OutcomeTransmitted,
			Channel:      c.index,
			Notification: ev.Notification,
			Device:       ev.Device,
		})
	case EventTransmissionError:
		if ev.Notification == nil || ev.Device == nil {
			// The transport evicted the delivery; nothing left to route.
			c.logger.Debug("APNS transmission error for unknown delivery", "index", c.index, "code", ev.Code)
			return
		}
		c.logger.Warn("APNS transmission error", "index", c.index, "token", ev.Device.TokenHex(),
			"code", ev.Code, "reason", CodeText(ev.Code))
		ev.Device.report(Outcome{
			Kind:         OutcomeTransmissionError,
			Channel:      c.index,
			Code:         ev.Code,
			Notification: ev.Notification,
			Device:       ev.Device,
		})
	}
}
