// Package notification maps caller payload data onto the normalized APNs notification
// shared by every recipient of one send.
package notification

// Recognized payload keys.
const (
	KeyAlert            = "alert"
	KeyBadge            = "badge"
	KeySound            = "sound"
	KeyContentAvailable = "content-available"
	KeyCategory         = "category"
)

// Notification is the gateway-facing representation of one payload. It is built once
// per send and must be treated as read-only afterwards.
type Notification struct {
	// Alert is either a string or an alert dictionary.
	Alert              any            `json:"alert,omitempty"`
	Badge              *int           `json:"badge,omitempty"`
	Sound              string         `json:"sound,omitempty"`
	ContentAvailable   bool           `json:"content_available,omitempty"`
	NewsstandAvailable bool           `json:"newsstand_available,omitempty"`
	Category           string         `json:"category,omitempty"`
	Expiry             *int64         `json:"expiry,omitempty"`
	Payload            map[string]any `json:"payload,omitempty"`
}

// Background reports whether the notification asks for background delivery.
// Newsstand availability implies content-available on the wire.
func (n *Notification) Background() bool {
	return n.ContentAvailable || n.NewsstandAvailable
}

// HasAlert reports whether the notification shows user-facing content.
func (n *Notification) HasAlert() bool {
	return n.Alert != nil || n.Badge != nil || n.Sound != ""
}
