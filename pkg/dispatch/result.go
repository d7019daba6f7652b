package dispatch

import (
	"time"

	"github.com/kart-io/apnshub/pkg/channel"
	apnserrors "github.com/kart-io/apnshub/pkg/errors"
)

// ErrNoConnection is the error text of a recipient no channel qualifies for.
const ErrNoConnection = "No connection available"

// Payload is the caller's send request body.
type Payload struct {
	Data           map[string]any `json:"data"`
	ExpirationTime *int64         `json:"expiration_time,omitempty"`
}

// Result is the terminal outcome for one recipient.
type Result struct {
	Transmitted bool              `json:"transmitted"`
	Recipient   channel.Recipient `json:"recipient"`
	// Channel is the pool index that transmitted or last failed, -1 when no
	// channel qualified.
	Channel  int    `json:"channel"`
	BundleID string `json:"bundle_id,omitempty"`
	Error    string `json:"error,omitempty"`
	// ErrorCode classifies a failure: PLT001 when no channel qualified, PLT002 when
	// every eligible channel rejected the notification, SYS002 when cancelled.
	ErrorCode apnserrors.Code `json:"error_code,omitempty"`
	Code      int             `json:"code,omitempty"`
	Status    int             `json:"status,omitempty"`
	Attempts  int             `json:"attempts"`
	// Retryable reports whether a later send may succeed. It is false for a token
	// every eligible channel rejected as invalid.
	Retryable bool `json:"retryable"`
}

// BatchResult aggregates the results of one Send in recipient order.
type BatchResult struct {
	ID       string        `json:"id"`
	Results  []Result      `json:"results"`
	Duration time.Duration `json:"duration"`
}

// Transmitted returns how many recipients were transmitted.
func (b *BatchResult) Transmitted() int {
	n := 0
	for _, r := range b.Results {
		if r.Transmitted {
			n++
		}
	}
	return n
}

// Failed returns how many recipients were not transmitted.
func (b *BatchResult) Failed() int {
	return len(b.Results) - b.Transmitted()
}

// Retryable returns the recipients whose failure may succeed on a later send.
func (b *BatchResult) Retryable() []channel.Recipient {
	var out []channel.Recipient
	for _, r := range b.Results {
		if !r.Transmitted && r.Retryable {
			out = append(out, r.Recipient)
		}
	}
	return out
}
