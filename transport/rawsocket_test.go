package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/n1/wampc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPeer performs the server side of the rawsocket handshake
// (the same shape a router would) over one end of a net.Pipe.
func scriptedPeer(t *testing.T, conn net.Conn, maxFrameExp byte) {
	t.Helper()
	var in [4]byte
	_, err := conn.Read(in[:])
	require.NoError(t, err)
	reply := [4]byte{0x7f, (maxFrameExp << 4) | 2, 0, 0}
	_, err = conn.Write(reply[:])
	require.NoError(t, err)
}

func TestHandshakeNegotiatesMaxFrame(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	go scriptedPeer(t, serverConn, 0x9) // 2^18 = 256KiB

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rs, err := transport.Open(ctx, clientConn, transport.DefaultConfig())
	require.NoError(t, err)
	defer rs.Close()
}

func TestHandshakeRejected(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	go func() {
		var in [4]byte
		serverConn.Read(in[:])
		// code 1 (serializer unsupported) in the high nibble, low nibble zero.
		reply := [4]byte{0x7f, 1 << 4, 0, 0}
		serverConn.Write(reply[:])
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := transport.Open(ctx, clientConn, transport.DefaultConfig())
	require.Error(t, err)
	var rejected *transport.HandshakeRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, byte(1), rejected.Code)
}

func TestSendAndReceiveFrames(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	go scriptedPeer(t, serverConn, 0xf)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rs, err := transport.Open(ctx, clientConn, transport.DefaultConfig())
	require.NoError(t, err)
	defer rs.Close()

	// Client -> server: the test reads the raw frame back off the wire.
	done := make(chan struct{})
	var gotHeader [4]byte
	var gotPayload []byte
	go func() {
		defer close(done)
		serverConn.Read(gotHeader[:])
		length := int(gotHeader[1])<<16 | int(gotHeader[2])<<8 | int(gotHeader[3])
		gotPayload = make([]byte, length)
		serverConn.Read(gotPayload)
	}()

	require.NoError(t, rs.Send(ctx, []byte("hello")))
	<-done
	assert.Equal(t, []byte("hello"), gotPayload)

	// Server -> client: write a regular frame and read it from Inbound().
	go func() {
		header := [4]byte{0, 0, 0, 5}
		serverConn.Write(header[:])
		serverConn.Write([]byte("world"))
	}()

	select {
	case payload := <-rs.Inbound():
		assert.Equal(t, []byte("world"), payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
	}
}

func TestFrameTooLargeIsFatal(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	go scriptedPeer(t, serverConn, 0x0) // 2^9 = 512 bytes max

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rs, err := transport.Open(ctx, clientConn, transport.DefaultConfig())
	require.NoError(t, err)
	defer rs.Close()

	go func() {
		header := [4]byte{0, 0xff, 0xff, 0xff} // huge declared length
		serverConn.Write(header[:])
	}()

	select {
	case _, ok := <-rs.Inbound():
		assert.False(t, ok, "inbound channel should close on fatal frame error")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound channel to close")
	}
	assert.ErrorIs(t, rs.Err(), transport.ErrFrameTooLarge)
}
