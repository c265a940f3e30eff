// Package transport implements the WAMP rawsocket handshake and framing
// over an arbitrary full-duplex byte stream.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/n1/wampc/wlog"
)

const (
	handshakeMagic    byte = 0x7f
	serializerMsgPack byte = 2

	frameTypeRegular byte = 0
	frameTypePing    byte = 1
	frameTypePong    byte = 2

	frameHeaderSize = 4
)

// Config configures handshake negotiation and outbound queueing for a
// RawSocket.
type Config struct {
	// MaxFrameExponent is the exponent the client offers in the
	// handshake; the accepted frame size is 2^(9+exp) bytes. Valid
	// range is 0-15.
	MaxFrameExponent byte
	// HandshakeTimeout bounds how long Open waits for the peer's
	// handshake reply.
	HandshakeTimeout time.Duration
	// SendQueueSize bounds the number of frames buffered for the writer
	// goroutine before Send blocks (backpressure).
	SendQueueSize int
}

// DefaultConfig returns the default rawsocket configuration: a 16 MiB
// max frame (exponent 0xF) and a 10s handshake timeout.
func DefaultConfig() Config {
	return Config{
		MaxFrameExponent: 0xF,
		HandshakeTimeout: 10 * time.Second,
		SendQueueSize:    64,
	}
}

// RawSocket is a full-duplex frame channel over a net.Conn: after a
// successful handshake it delivers whole message payloads to Inbound()
// in the order received, and accepts whole payloads for transmission
// via Send. It owns one reader goroutine and one writer goroutine.
type RawSocket struct {
	conn         net.Conn
	cfg          Config
	peerMaxFrame uint32

	sendCh  chan []byte
	inbound chan []byte
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex

	wg sync.WaitGroup
}

// Open performs the rawsocket handshake over conn and, on success,
// starts the reader and writer goroutines. The caller retains ownership
// of conn's lifecycle via the returned RawSocket's Close method.
func Open(ctx context.Context, conn net.Conn, cfg Config) (*RawSocket, error) {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 64
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else if cfg.HandshakeTimeout > 0 {
		conn.SetDeadline(time.Now().Add(cfg.HandshakeTimeout))
	}
	defer conn.SetDeadline(time.Time{})

	peerMaxFrame, err := handshake(conn, cfg)
	if err != nil {
		return nil, err
	}

	r := &RawSocket{
		conn:         conn,
		cfg:          cfg,
		peerMaxFrame: peerMaxFrame,
		sendCh:       make(chan []byte, cfg.SendQueueSize),
		inbound:      make(chan []byte, cfg.SendQueueSize),
		done:         make(chan struct{}),
	}
	r.wg.Add(2)
	go r.writeLoop()
	go r.readLoop()
	return r, nil
}

// handshake exchanges the 4-byte rawsocket handshake and returns the
// peer's advertised max frame size in bytes.
func handshake(conn net.Conn, cfg Config) (uint32, error) {
	out := [4]byte{
		handshakeMagic,
		(cfg.MaxFrameExponent << 4) | serializerMsgPack,
		0, 0,
	}
	if _, err := conn.Write(out[:]); err != nil {
		return 0, fmt.Errorf("%w: writing handshake: %v", ErrWriteFailed, err)
	}

	var in [4]byte
	if _, err := io.ReadFull(conn, in[:]); err != nil {
		return 0, fmt.Errorf("%w: reading handshake reply: %v", ErrReadFailed, err)
	}
	if in[0] != handshakeMagic {
		return 0, fmt.Errorf("bad magic byte 0x%02x: %w", in[0], &HandshakeRejectedError{})
	}
	serializer := in[1] & 0x0f
	if serializer == 0 {
		// Low nibble zero with a nonzero high nibble signals rejection;
		// the high nibble carries the error code.
		code := in[1] >> 4
		return 0, &HandshakeRejectedError{Code: code}
	}
	if serializer != serializerMsgPack {
		return 0, &HandshakeRejectedError{Code: RejectSerializerUnsupported}
	}
	exp := in[1] >> 4
	maxFrame := uint32(1) << (9 + exp)
	return maxFrame, nil
}

// Send enqueues payload for transmission, blocking until there is room
// in the send queue, the transport closes, or ctx is cancelled.
func (r *RawSocket) Send(ctx context.Context, payload []byte) error {
	select {
	case <-r.done:
		return r.Err()
	default:
	}
	select {
	case r.sendCh <- payload:
		return nil
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inbound returns the channel of decoded regular-frame payloads. It is
// closed when the transport ends, after which Err reports the cause.
func (r *RawSocket) Inbound() <-chan []byte {
	return r.inbound
}

// Err returns the error that ended the transport, or ErrClosed if it
// was closed locally without a prior error.
func (r *RawSocket) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr != nil {
		return r.closeErr
	}
	return ErrClosed
}

// Close shuts down the connection and both goroutines, and waits for
// them to exit.
func (r *RawSocket) Close() error {
	r.closeOnce.Do(func() {
		r.setErr(ErrClosed)
		close(r.done)
		r.conn.Close()
	})
	r.wg.Wait()
	return nil
}

func (r *RawSocket) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr == nil {
		r.closeErr = err
	}
}

func (r *RawSocket) fail(err error) {
	r.setErr(err)
	r.closeOnce.Do(func() {
		close(r.done)
		r.conn.Close()
	})
}

func (r *RawSocket) writeLoop() {
	defer r.wg.Done()
	for {
		select {
		case payload := <-r.sendCh:
			if err := writeFrame(r.conn, frameTypeRegular, payload); err != nil {
				r.fail(fmt.Errorf("%w: %v", ErrWriteFailed, err))
				return
			}
		case <-r.done:
			return
		}
	}
}

func (r *RawSocket) readLoop() {
	defer r.wg.Done()
	defer close(r.inbound)
	for {
		ftype, payload, err := readFrame(r.conn, r.peerMaxFrame)
		if err != nil {
			r.fail(err)
			return
		}
		switch ftype {
		case frameTypeRegular:
			select {
			case r.inbound <- payload:
			case <-r.done:
				return
			}
		case frameTypePing:
			if err := writeFrame(r.conn, frameTypePong, payload); err != nil {
				r.fail(fmt.Errorf("%w: %v", ErrWriteFailed, err))
				return
			}
		case frameTypePong:
			// Unsolicited pongs are not meaningful to the client side;
			// ignore.
		default:
			wlog.Debug().Int("frame_type", int(ftype)).Msg("rawsocket: ignoring unknown frame type")
		}
	}
}

func writeFrame(w io.Writer, ftype byte, payload []byte) error {
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	header[0] = ftype
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(rd io.Reader, maxFrame uint32) (byte, []byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(rd, header[:]); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	ftype := header[0]
	length := binary.BigEndian.Uint32(header[:]) & 0x00ffffff
	if length > maxFrame {
		return 0, nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(rd, payload); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
		}
	}
	return ftype, payload, nil
}
