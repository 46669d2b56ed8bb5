package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/nixxel-company-limited/zpl-print-server/config"
)

// DefaultTCPTimeout bounds how long a send waits for the printer to
// answer after the payload is on the wire.
const DefaultTCPTimeout = 5 * time.Second

// TCPAdapter delivers payloads to a network printer over a raw socket,
// one connection per send.
type TCPAdapter struct {
	addr    string
	timeout time.Duration
}

// NewTCP validates the tcp section and builds the adapter. Host and port
// are both required.
func NewTCP(cfg config.TCP) (*TCPAdapter, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("%w: tcp backend requires host and port", ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTCPTimeout
	}
	return &TCPAdapter{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		timeout: timeout,
	}, nil
}

// Kind implements Adapter.
func (a *TCPAdapter) Kind() string { return "tcp" }

// Close implements Adapter. Sockets are per-send, so there is nothing to
// release here.
func (a *TCPAdapter) Close() error { return nil }

// Send writes the full payload, then waits for whichever comes first:
// response bytes, the peer closing the connection, or the timeout. A
// timeout is a soft success; once the bytes are on the wire the job is
// considered fire-and-forget.
func (a *TCPAdapter) Send(ctx context.Context, payload []byte) (*Result, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", a.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, a.addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: write: %v", ErrTransport, err)
	}

	if deadline, ok := ctx.Deadline(); ok && deadline.Before(time.Now().Add(a.timeout)) {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(a.timeout))
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	switch {
	case n > 0:
		return &Result{Response: string(buf[:n])}, nil
	case errors.Is(err, io.EOF):
		// Printer accepted the payload and hung up without answering.
		return &Result{}, nil
	case isTimeout(err):
		return &Result{Note: "timeout"}, nil
	case err != nil:
		return nil, fmt.Errorf("%w: read: %v", ErrTransport, err)
	}
	return &Result{}, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
