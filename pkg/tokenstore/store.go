// Package tokenstore records device tokens that APNs rejected as invalid on every
// eligible connection, so callers can prune them from their installations.
package tokenstore

import (
	"context"
	"time"
)

// Entry describes one rejected token.
type Entry struct {
	Token    string    `json:"token"`
	BundleID string    `json:"bundle_id,omitempty"`
	Code     int       `json:"code"`
	MarkedAt time.Time `json:"marked_at"`
}

// Store is an invalid-token registry.
type Store interface {
	// MarkInvalid records e, replacing any previous entry for the same token.
	MarkInvalid(ctx context.Context, e Entry) error
	// Get returns the entry for token, or nil when the token is not marked.
	Get(ctx context.Context, token string) (*Entry, error)
	// Remove forgets token, typically after the device registered again.
	Remove(ctx context.Context, token string) error
	// List returns every current entry.
	List(ctx context.Context) ([]Entry, error)
	Close() error
}
