package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/zpl-print-server/config"
)

type fakePort struct {
	link   *fakeLink
	err    error
	opened int
}

func (p *fakePort) open(vendor, product uint16) (usbLink, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.opened++
	return p.link, nil
}

type fakeLink struct {
	written  []byte
	writeErr error
	closed   int
}

func (l *fakeLink) write(data []byte) (int, error) {
	if l.writeErr != nil {
		return 0, l.writeErr
	}
	l.written = append(l.written, data...)
	return len(data), nil
}

func (l *fakeLink) close() error {
	l.closed++
	return nil
}

func newUSBForTest(t *testing.T, port usbPort) *USBAdapter {
	t.Helper()
	a, err := NewUSB(config.USB{VendorID: 0x0a5f})
	require.NoError(t, err)
	a.port = port
	return a
}

func TestNewUSBRequiresVendorID(t *testing.T) {
	_, err := NewUSB(config.USB{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestUSBSendWritesAndReleases(t *testing.T) {
	link := &fakeLink{}
	port := &fakePort{link: link}
	a := newUSBForTest(t, port)

	payload := []byte("^XA^FDhello^FS^XZ")
	result, err := a.Send(context.Background(), payload)

	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, payload, link.written)
	assert.Equal(t, 1, link.closed)
}

func TestUSBSendDeviceNotFound(t *testing.T) {
	port := &fakePort{err: fmt.Errorf("%w: vendor 0a5f product 0000", ErrDeviceNotFound)}
	a := newUSBForTest(t, port)

	_, err := a.Send(context.Background(), []byte("^XA^XZ"))

	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Zero(t, port.opened)
}

func TestUSBSendTransferFailureStillReleases(t *testing.T) {
	link := &fakeLink{writeErr: errors.New("pipe stalled")}
	port := &fakePort{link: link}
	a := newUSBForTest(t, port)

	_, err := a.Send(context.Background(), []byte("^XA^XZ"))

	assert.ErrorIs(t, err, ErrTransfer)
	assert.Contains(t, err.Error(), "pipe stalled")
	assert.Equal(t, 1, link.closed, "device must be released after a failed transfer")
}

func TestUSBSendNoOutputEndpoint(t *testing.T) {
	port := &fakePort{err: ErrNoOutputEndpoint}
	a := newUSBForTest(t, port)

	_, err := a.Send(context.Background(), []byte("^XA^XZ"))

	assert.ErrorIs(t, err, ErrNoOutputEndpoint)
}

func TestUSBSendCanceledContext(t *testing.T) {
	link := &fakeLink{}
	port := &fakePort{link: link}
	a := newUSBForTest(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Send(ctx, []byte("^XA^XZ"))

	assert.ErrorIs(t, err, ErrTransport)
	assert.Zero(t, port.opened, "canceled sends must not claim the device")
}

func TestMatchDevice(t *testing.T) {
	desc := &gousb.DeviceDesc{Vendor: gousb.ID(0x0a5f), Product: gousb.ID(0x0164)}

	t.Run("VendorOnly", func(t *testing.T) {
		assert.True(t, matchDevice(desc, 0x0a5f, 0))
	})

	t.Run("ExactMatch", func(t *testing.T) {
		assert.True(t, matchDevice(desc, 0x0a5f, 0x0164))
	})

	t.Run("WrongProduct", func(t *testing.T) {
		assert.False(t, matchDevice(desc, 0x0a5f, 0x0165))
	})

	t.Run("WrongVendor", func(t *testing.T) {
		assert.False(t, matchDevice(desc, 0x04b8, 0))
	})
}
