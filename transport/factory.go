package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Factory creates the byte-stream connection a RawSocket frames. It is
// the narrow interface the Session depends on instead of depending on
// "which backing transport is in use" — grounded on the teacher's
// TransportFactory/Transport split, generalized from a single hardcoded
// TCP implementation to a pluggable one.
type Factory interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

// TCPFactory dials a plain TCP connection.
type TCPFactory struct {
	// DialTimeout bounds the TCP handshake. Zero means no timeout beyond
	// ctx's own deadline.
	DialTimeout time.Duration
	// KeepAlive, if positive, enables TCP keepalives at this interval.
	KeepAlive time.Duration
}

// Dial implements Factory.
func (f TCPFactory) Dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: f.DialTimeout, KeepAlive: f.KeepAlive}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	return conn, nil
}

// TLSFactory dials a TCP connection and performs a TLS handshake over
// it. Certificate configuration is entirely the embedder's
// responsibility (see Out of scope): Config is passed through verbatim.
type TLSFactory struct {
	Config      *tls.Config
	DialTimeout time.Duration
}

// Dial implements Factory.
func (f TLSFactory) Dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: f.DialTimeout}
	tlsDialer := tls.Dialer{NetDialer: dialer, Config: f.Config}
	conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	return conn, nil
}

// UnixFactory dials a Unix domain socket at the given path (addr is the
// filesystem path, not a host:port pair).
type UnixFactory struct {
	DialTimeout time.Duration
}

// Dial implements Factory.
func (f UnixFactory) Dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: f.DialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	return conn, nil
}
