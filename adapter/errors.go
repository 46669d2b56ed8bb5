package adapter

import (
	"errors"
	"fmt"
)

// Sentinel errors for the backend failure taxonomy. Callers match with
// errors.Is; each failure wraps the underlying cause.
var (
	// ErrConfiguration covers unknown backend kinds and missing
	// kind-required fields.
	ErrConfiguration = errors.New("invalid printer configuration")

	// ErrDeviceNotFound means no attached USB device matched the
	// configured vendor/product identifiers.
	ErrDeviceNotFound = errors.New("usb device not found")

	// ErrNoOutputEndpoint means the matched USB interface has no
	// host-to-device endpoint to write to.
	ErrNoOutputEndpoint = errors.New("usb interface has no output endpoint")

	// ErrTransfer wraps a failed USB bulk transfer.
	ErrTransfer = errors.New("usb transfer failed")

	// ErrTransport wraps network-level failures on any backend.
	ErrTransport = errors.New("transport failure")

	// ErrTimeout means the rendering service did not answer within the
	// request timeout. The TCP backend never returns this; its own
	// timeout is a soft success.
	ErrTimeout = errors.New("render request timed out")

	// ErrNotFound means the named artifact does not exist in the save
	// directory, or the name was rejected by the path guard.
	ErrNotFound = errors.New("artifact not found")
)

// RenderServiceError is a non-2xx answer from the rendering service.
type RenderServiceError struct {
	Status int
	Body   string
}

func (e *RenderServiceError) Error() string {
	return fmt.Sprintf("render service returned %d: %s", e.Status, e.Body)
}
