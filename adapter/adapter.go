// Package adapter implements the printer backends: a raw TCP socket, a
// USB bulk-transfer endpoint, and a virtual backend that relays to a
// label-rendering HTTP API and saves the result locally.
package adapter

import (
	"context"
	"time"
)

// Adapter is the uniform contract over the three transports. Each Send is
// a one-shot delivery against fresh transport resources; there is no
// session to keep open between calls.
type Adapter interface {
	// Kind reports which backend this is ("tcp", "usb" or "virtual").
	Kind() string

	// Send delivers the raw payload to the printer or rendering service.
	// The payload is opaque; it is never parsed.
	Send(ctx context.Context, payload []byte) (*Result, error)

	// Close releases any resources held across sends.
	Close() error
}

// Result is the outcome of a successful send. TCP fills Response or Note;
// the virtual backend fills the label fields.
type Result struct {
	// Response holds any bytes the printer sent back, as text.
	Response string `json:"response,omitempty"`

	// Note annotates soft successes, e.g. "timeout" when the payload was
	// written but the printer never answered.
	Note string `json:"note,omitempty"`

	Labels   int       `json:"labels,omitempty"`
	Format   Format    `json:"format,omitempty"`
	Bytes    int       `json:"bytes,omitempty"`
	Filename string    `json:"filename,omitempty"`
	Path     string    `json:"path,omitempty"`
	SavedAt  time.Time `json:"savedAt,omitzero"`
}
