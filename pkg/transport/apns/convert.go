package apns

import (
	"fmt"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"

	"github.com/kart-io/apnshub/pkg/channel"
	"github.com/kart-io/apnshub/pkg/notification"
)

// Convert builds the apns2 request for one device.
func Convert(n *notification.Notification, d *channel.Device, topic string) *apns2.Notification {
	req := &apns2.Notification{
		DeviceToken: d.TokenHex(),
		Topic:       topic,
		Payload:     BuildPayload(n),
		PushType:    apns2.PushTypeAlert,
		Priority:    apns2.PriorityHigh,
	}
	if n.Background() && !n.HasAlert() {
		req.PushType = apns2.PushTypeBackground
		req.Priority = apns2.PriorityLow
	}
	if n.Expiry != nil {
		req.Expiration = time.Unix(*n.Expiry, 0)
	}
	return req
}

// BuildPayload maps n onto the aps dictionary. Custom keys sit next to aps.
func BuildPayload(n *notification.Notification) *payload.Payload {
	p := payload.NewPayload()
	if n.Alert != nil {
		p.Alert(n.Alert)
	}
	if n.Badge != nil {
		p.Badge(*n.Badge)
	}
	if n.Sound != "" {
		p.Sound(n.Sound)
	}
	if n.Background() {
		p.ContentAvailable()
	}
	if n.Category != "" {
		p.Category(n.Category)
	}
	for k, v := range n.Payload {
		p.Custom(k, v)
	}
	return p
}

// ReasonCode maps an APNs rejection reason onto a transmission error code.
func ReasonCode(reason string) int {
	switch reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return channel.CodeInvalidToken
	case apns2.ReasonMissingDeviceToken:
		return channel.CodeMissingDeviceToken
	case apns2.ReasonMissingTopic:
		return channel.CodeMissingTopic
	case apns2.ReasonPayloadEmpty:
		return channel.CodeMissingPayload
	case apns2.ReasonPayloadTooLarge:
		return channel.CodeInvalidPayloadSize
	case apns2.ReasonBadTopic, apns2.ReasonTopicDisallowed:
		return channel.CodeInvalidTopicSize
	case apns2.ReasonShutdown, apns2.ReasonServiceUnavailable:
		return channel.CodeShutdown
	case apns2.ReasonInternalServerError, apns2.ReasonIdleTimeout, apns2.ReasonTooManyRequests:
		return channel.CodeProcessingError
	default:
		return channel.CodeUnknown
	}
}

// ResponseError describes a rejected push.
type ResponseError struct {
	StatusCode int
	Reason     string
	ApnsID     string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("apns: %d %s (apns-id %s)", e.StatusCode, e.Reason, e.ApnsID)
}
