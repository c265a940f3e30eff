package session_test

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/n1/wampc/auth"
	"github.com/n1/wampc/codec"
	"github.com/n1/wampc/session"
	"github.com/n1/wampc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// pipeFactory hands out a pre-connected net.Conn, letting tests drive a
// scripted router over the other end of a net.Pipe instead of a real
// socket.
type pipeFactory struct{ conn net.Conn }

func (f pipeFactory) Dial(ctx context.Context, addr string) (net.Conn, error) { return f.conn, nil }

// routerHandshake performs the server side of the rawsocket handshake.
func routerHandshake(t *testing.T, conn net.Conn) {
	t.Helper()
	var in [4]byte
	_, err := conn.Read(in[:])
	require.NoError(t, err)
	reply := [4]byte{0x7f, (0xf << 4) | 2, 0, 0}
	_, err = conn.Write(reply[:])
	require.NoError(t, err)
}

// routerRead reads one framed, decoded message from conn.
func routerRead(t *testing.T, conn net.Conn) codec.Message {
	t.Helper()
	var header [4]byte
	_, err := conn.Read(header[:])
	require.NoError(t, err)
	length := binary.BigEndian.Uint32(header[:]) & 0x00ffffff
	payload := make([]byte, length)
	if length > 0 {
		_, err = conn.Read(payload)
		require.NoError(t, err)
	}
	msg, err := codec.Decode(payload)
	require.NoError(t, err)
	return msg
}

// routerWrite frames and writes a message to conn.
func routerWrite(t *testing.T, conn net.Conn, msg codec.Message) {
	t.Helper()
	b, err := codec.Encode(msg)
	require.NoError(t, err)
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(b)))
	header[0] = 0
	_, err = conn.Write(header[:])
	require.NoError(t, err)
	_, err = conn.Write(b)
	require.NoError(t, err)
}

func newTestSession(t *testing.T) (*session.Session, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	sess := session.New(pipeFactory{clientConn}, session.DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		routerHandshake(t, serverConn)
		close(done)
	}()
	require.NoError(t, sess.Start(ctx, "pipe", transport.DefaultConfig()))
	<-done
	return sess, serverConn
}

func TestTicketAuthThenPubSub(t *testing.T) {
	sess, router := newTestSession(t)
	defer sess.Stop()
	sess.OnChallenge(auth.Ticket("my-ticket"))

	received := make(chan string, 1)

	go func() {
		hello := routerRead(t, router)
		realm, details := codec.HelloFields(hello)
		assert.Equal(t, "realm1", realm)
		assert.Equal(t, "client1", details["authid"])

		routerWrite(t, router, codec.NewChallenge("ticket", map[string]interface{}{}))

		authMsg := routerRead(t, router)
		sig, _ := codec.AuthenticateFields(authMsg)
		assert.Equal(t, "my-ticket", sig)

		routerWrite(t, router, codec.NewWelcome(42, map[string]interface{}{
			"roles": map[string]interface{}{"broker": map[string]interface{}{}, "dealer": map[string]interface{}{}},
		}))

		sub := routerRead(t, router)
		reqID, _, topic := codec.SubscribeFields(sub)
		assert.Equal(t, "com.example.topic", topic)
		routerWrite(t, router, codec.NewSubscribed(reqID, 77))

		routerWrite(t, router, codec.NewEvent(77, 1, map[string]interface{}{}, []interface{}{"data='1'"}, nil))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	welcome, err := sess.Join(ctx, "realm1", []string{"ticket"}, "client1")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), welcome.SessionID)

	_, err = sess.Subscribe(ctx, "com.example.topic", func(ev session.Event) {
		received <- ev.ArgString(0, "")
	}, session.SubscribeOptions{})
	require.NoError(t, err)

	select {
	case data := <-received:
		assert.Equal(t, "data='1'", data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func establishedSession(t *testing.T) (*session.Session, net.Conn) {
	t.Helper()
	sess, router := newTestSession(t)
	sess.OnChallenge(auth.Ticket("secret"))

	done := make(chan struct{})
	go func() {
		routerRead(t, router) // HELLO
		routerWrite(t, router, codec.NewChallenge("ticket", map[string]interface{}{}))
		routerRead(t, router) // AUTHENTICATE
		routerWrite(t, router, codec.NewWelcome(1, map[string]interface{}{}))
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := sess.Join(ctx, "realm1", []string{"ticket"}, "")
	require.NoError(t, err)
	<-done
	return sess, router
}

func TestCallWithPositionalArgs(t *testing.T) {
	sess, router := establishedSession(t)
	defer sess.Stop()

	go func() {
		call := routerRead(t, router)
		reqID, _, proc, args, _ := codec.CallFields(call)
		assert.Equal(t, "com.example.add", proc)
		assert.Equal(t, int64(2), args[0].(int64))
		routerWrite(t, router, codec.NewResult(reqID, map[string]interface{}{}, []interface{}{int64(5)}, nil))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := sess.Call(ctx, "com.example.add", []interface{}{int64(2), int64(3)}, nil, session.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.ArgInt(0, -1))
}

func TestCallError(t *testing.T) {
	sess, router := establishedSession(t)
	defer sess.Stop()

	go func() {
		call := routerRead(t, router)
		reqID, _, _, _, _ := codec.CallFields(call)
		routerWrite(t, router, codec.NewError(codec.TypeCall, reqID, map[string]interface{}{}, "com.example.bad", nil, nil))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := sess.Call(ctx, "com.example.fail", nil, nil, session.CallOptions{})
	require.Error(t, err)
	var appErr *session.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "com.example.bad", appErr.URI)
}

func TestUnknownTypeCodeIsIgnored(t *testing.T) {
	sess, router := establishedSession(t)
	defer sess.Stop()

	callDone := make(chan struct{})
	go func() {
		// Send an unrecognized message type (999) before replying to the
		// CALL, to prove dispatch continues unharmed.
		routerWrite(t, router, codec.Message{int64(999), "whatever"})
		call := routerRead(t, router)
		reqID, _, _, _, _ := codec.CallFields(call)
		routerWrite(t, router, codec.NewResult(reqID, map[string]interface{}{}, []interface{}{int64(1)}, nil))
		close(callDone)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := sess.Call(ctx, "com.example.ping", nil, nil, session.CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ArgInt(0, -1))
	<-callDone
}

func TestDisconnectMidCallFailsPending(t *testing.T) {
	sess, router := establishedSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errs := make(chan error, 2)
	go func() {
		_, err := sess.Call(ctx, "com.example.a", nil, nil, session.CallOptions{})
		errs <- err
	}()
	go func() {
		_, err := sess.Call(ctx, "com.example.b", nil, nil, session.CallOptions{})
		errs <- err
	}()

	// Drain both CALLs off the wire so dispatch has registered them, then
	// sever the transport.
	routerRead(t, router)
	routerRead(t, router)
	router.Close()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, session.ErrDisconnected)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for call to fail")
		}
	}

	assert.Eventually(t, func() bool { return sess.State() == session.StateClosed }, 2*time.Second, 10*time.Millisecond)
}

func TestRegisterAndInvoke(t *testing.T) {
	sess, router := establishedSession(t)
	defer sess.Stop()

	registered := make(chan struct{})
	go func() {
		reg := routerRead(t, router)
		reqID, _, proc := codec.RegisterFields(reg)
		assert.Equal(t, "com.example.echo", proc)
		routerWrite(t, router, codec.NewRegistered(reqID, 99))
		close(registered)

		routerWrite(t, router, codec.NewInvocation(1, 99, map[string]interface{}{}, []interface{}{"hi"}, nil))

		yield := routerRead(t, router)
		yReq, _, args, _ := codec.YieldFields(yield)
		assert.Equal(t, uint64(1), yReq)
		assert.Equal(t, "hi", args[0])
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reg, err := sess.Register(ctx, "com.example.echo", func(inv session.Invocation) (session.Yield, error) {
		return session.Yield{Args: []interface{}{inv.ArgString(0, "")}}, nil
	}, session.ProvideOptions{})
	require.NoError(t, err)
	<-registered
	assert.Equal(t, uint64(99), reg.ID)

	time.Sleep(100 * time.Millisecond)
}

func TestWAMPCRAAuth(t *testing.T) {
	sess, router := newTestSession(t)
	defer sess.Stop()
	sess.OnChallenge(auth.WAMPCRA("s3cr3t"))

	const challengeStr = `{"nonce":"abc"}`
	const salt = "saltsalt"
	const iterations = 1000
	const keylen = 32

	go func() {
		routerRead(t, router) // HELLO
		routerWrite(t, router, codec.NewChallenge("wampcra", map[string]interface{}{
			"challenge":  challengeStr,
			"salt":       salt,
			"iterations": int64(iterations),
			"keylen":     int64(keylen),
		}))
		authMsg := routerRead(t, router)
		sig, _ := codec.AuthenticateFields(authMsg)

		key := pbkdf2.Key([]byte("s3cr3t"), []byte(salt), iterations, keylen, sha256.New)
		mac := hmac.New(sha256.New, key)
		mac.Write([]byte(challengeStr))
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, sig)

		routerWrite(t, router, codec.NewWelcome(7, map[string]interface{}{}))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	welcome, err := sess.Join(ctx, "realm1", []string{"wampcra"}, "client1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), welcome.SessionID)
}

func TestUnregister(t *testing.T) {
	sess, router := establishedSession(t)
	defer sess.Stop()

	go func() {
		reg := routerRead(t, router)
		reqID, _, _ := codec.RegisterFields(reg)
		routerWrite(t, router, codec.NewRegistered(reqID, 55))

		unreg := routerRead(t, router)
		uReqID, _ := codec.UnregisterFields(unreg)
		routerWrite(t, router, codec.NewUnregistered(uReqID))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reg, err := sess.Register(ctx, "com.example.echo", func(inv session.Invocation) (session.Yield, error) {
		return session.Yield{}, nil
	}, session.ProvideOptions{})
	require.NoError(t, err)

	err = sess.Unregister(ctx, reg)
	require.NoError(t, err)
}

func TestPublishWithExcludeAndEligible(t *testing.T) {
	sess, router := establishedSession(t)
	defer sess.Stop()

	go func() {
		pub := routerRead(t, router)
		reqID, options, topic, _, _ := codec.PublishFields(pub)
		assert.Equal(t, "com.example.topic", topic)
		exclude, _ := options["exclude"].([]interface{})
		require.Len(t, exclude, 2)
		assert.Equal(t, int64(10), exclude[0])
		assert.Equal(t, int64(20), exclude[1])
		eligible, _ := options["eligible"].([]interface{})
		require.Len(t, eligible, 1)
		assert.Equal(t, int64(30), eligible[0])
		routerWrite(t, router, codec.NewPublished(reqID, 99))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pubID, err := sess.Publish(ctx, "com.example.topic", nil, nil, session.PublishOptions{
		Acknowledge: true,
		Exclude:     []uint64{10, 20},
		Eligible:    []uint64{30},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(99), pubID)
}

func TestLeaveRoundTrip(t *testing.T) {
	sess, router := establishedSession(t)
	defer sess.Stop()

	go func() {
		goodbye := routerRead(t, router)
		_, reason := codec.GoodbyeFields(goodbye)
		assert.Equal(t, "wamp.close.normal", reason)
		routerWrite(t, router, codec.NewGoodbye(map[string]interface{}{}, "wamp.close.goodbye_and_out"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reason, err := sess.Leave(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "wamp.close.goodbye_and_out", reason)
	assert.Eventually(t, func() bool { return sess.State() == session.StateClosed }, 2*time.Second, 10*time.Millisecond)
}
