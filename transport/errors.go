package transport

import (
	"errors"
	"fmt"
)

// Errors returned by the rawsocket transport. All of them are terminal:
// the transport does not attempt to auto-reconnect.
var (
	// ErrConnectFailed wraps a failure to establish the underlying
	// byte-stream connection.
	ErrConnectFailed = errors.New("transport: connect failed")
	// ErrReadFailed wraps a failure reading from the underlying connection.
	ErrReadFailed = errors.New("transport: read failed")
	// ErrWriteFailed wraps a failure writing to the underlying connection.
	ErrWriteFailed = errors.New("transport: write failed")
	// ErrFrameTooLarge is returned when a decoded frame header declares a
	// payload length larger than the peer-advertised maximum.
	ErrFrameTooLarge = errors.New("transport: frame exceeds negotiated maximum")
	// ErrClosed is returned by Send and Err once the transport has been
	// closed, locally or by the peer.
	ErrClosed = errors.New("transport: closed")
)

// HandshakeRejectedError is returned when the peer's handshake reply is
// not an acceptance: it carries an error code instead of a negotiated
// configuration, names a serializer other than MessagePack, or starts
// with the wrong magic byte (Code 0).
type HandshakeRejectedError struct {
	Code byte
}

func (e *HandshakeRejectedError) Error() string {
	return fmt.Sprintf("transport: handshake rejected, code %d", e.Code)
}

// Handshake rejection codes defined by the rawsocket handshake protocol.
const (
	RejectSerializerUnsupported byte = 1
	RejectMaxFrameExceeded      byte = 2
	RejectUseOfReservedBits     byte = 3
	RejectMaxConnections        byte = 4
)
