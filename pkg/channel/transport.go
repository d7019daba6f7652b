package channel

import (
	"encoding/hex"

	"github.com/kart-io/apnshub/pkg/notification"
)

// Transport is one live, authenticated connection to the push gateway. It is owned
// by the transport implementation; the pool only transmits through it and listens to
// its events.
type Transport interface {
	// Transmit hands a notification to the connection without waiting for the result.
	// The result is reported later as a Transmitted or TransmissionError event that
	// carries the same notification and device.
	Transmit(n *notification.Notification, d *Device)

	// Events returns the event stream. It must be closed by Close.
	Events() <-chan Event

	Close() error
}

// Dialer creates the transport for one channel configuration.
type Dialer func(cfg Config) (Transport, error)

// EventType tags transport events.
type EventType int

const (
	EventConnected EventType = iota + 1
	EventDisconnected
	EventTimeout
	EventSocketError
	EventTransmitted
	EventTransmissionError
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventTimeout:
		return "timeout"
	case EventSocketError:
		return "socket_error"
	case EventTransmitted:
		return "transmitted"
	case EventTransmissionError:
		return "transmission_error"
	default:
		return "unknown"
	}
}

// Event is emitted by a Transport. Notification and Device are set for Transmitted
// and TransmissionError; either may be nil when the transport no longer knows which
// delivery an error refers to.
type Event struct {
	Type         EventType
	Code         int
	Notification *notification.Notification
	Device       *Device
	Err          error
}

// Recipient is one target device of a send.
type Recipient struct {
	DeviceToken   []byte `json:"deviceToken"`
	AppIdentifier string `json:"appIdentifier,omitempty"`
}

// TokenHex returns the device token in the hex form APNs uses.
func (r Recipient) TokenHex() string {
	return hex.EncodeToString(r.DeviceToken)
}

// OutcomeKind tags the result of one transmission attempt.
type OutcomeKind int

const (
	OutcomeTransmitted OutcomeKind = iota + 1
	OutcomeTransmissionError
)

// Outcome is what a channel reports back to the owner of a Device.
type Outcome struct {
	Kind         OutcomeKind
	Channel      int
	Code         int
	Notification *notification.Notification
	Device       *Device
}

// Device is the recipient as handed to a transport. The reply function belongs to
// whoever created the device and receives the outcomes of its attempts.
type Device struct {
	Recipient
	reply func(Outcome)
}

// NewDevice binds a recipient to a reply function.
func NewDevice(r Recipient, reply func(Outcome)) *Device {
	return &Device{Recipient: r, reply: reply}
}

// Token returns the raw device token.
func (d *Device) Token() []byte {
	return d.DeviceToken
}

func (d *Device) report(o Outcome) {
	if d.reply != nil {
		d.reply(o)
	}
}
