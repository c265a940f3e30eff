package codec_test

import (
	"testing"

	"github.com/n1/wampc/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRoundTrip(t *testing.T) {
	cases := []interface{}{
		nil,
		true,
		false,
		int64(0),
		int64(127),
		int64(-1),
		int64(-33),
		int64(1 << 40),
		int64(-(1 << 40)),
		"hello",
		"",
		[]byte{1, 2, 3},
		[]interface{}{int64(1), "two", float64(3.5)},
		map[string]interface{}{"a": int64(1), "b": "two"},
	}
	for _, c := range cases {
		b, err := codec.Marshal(c)
		require.NoError(t, err)
		got, n, err := codec.Unmarshal(b)
		require.NoError(t, err)
		assert.Equal(t, len(b), n)
		assert.Equal(t, normalize(c), normalize(got))
	}
}

// normalize collapses the distinct integer representations produced by
// decode (uint64 for the 8-byte unsigned form, i.e. any non-negative
// value above math.MaxUint32; int64 for everything else)
// so equality checks don't have to care which one came out.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case int64:
		return x
	case uint64:
		return int64(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msgs := []codec.Message{
		codec.NewHello("realm1", map[string]interface{}{"roles": map[string]interface{}{"caller": map[string]interface{}{}}}),
		codec.NewWelcome(42, map[string]interface{}{"authid": "client1"}),
		codec.NewAbort(map[string]interface{}{}, "wamp.error.no_such_realm"),
		codec.NewChallenge("wampcra", map[string]interface{}{"challenge": "xyz"}),
		codec.NewAuthenticate("sig", map[string]interface{}{}),
		codec.NewGoodbye(map[string]interface{}{}, "wamp.error.close_realm"),
		codec.NewError(codec.TypeCall, 1, map[string]interface{}{}, "com.example.bad", nil, nil),
		codec.NewPublish(1, map[string]interface{}{}, "com.example.topic", []interface{}{"data='1'"}, nil),
		codec.NewPublished(1, 100),
		codec.NewSubscribe(1, map[string]interface{}{}, "com.example.topic"),
		codec.NewSubscribed(1, 77),
		codec.NewUnsubscribe(1, 77),
		codec.NewUnsubscribed(1),
		codec.NewEvent(77, 100, map[string]interface{}{}, []interface{}{"data='1'"}, nil),
		codec.NewCall(1, map[string]interface{}{}, "com.example.add", []interface{}{int64(2), int64(3)}, nil),
		codec.NewResult(1, map[string]interface{}{}, []interface{}{int64(5)}, nil),
		codec.NewRegister(1, map[string]interface{}{}, "com.example.echo"),
		codec.NewRegistered(1, 9001),
		codec.NewUnregister(1, 9001),
		codec.NewUnregistered(1),
		codec.NewInvocation(1, 9001, map[string]interface{}{}, []interface{}{"hi"}, nil),
		codec.NewYield(1, map[string]interface{}{}, []interface{}{"hi"}, nil),
	}
	for _, m := range msgs {
		b, err := codec.Encode(m)
		require.NoError(t, err)
		got, err := codec.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, m.Type(), got.Type())
		assert.Equal(t, len(m), len(got))
	}
}

func TestPublishOmitsEmptyTrailingFields(t *testing.T) {
	m := codec.NewPublish(1, map[string]interface{}{}, "com.example.topic", nil, nil)
	assert.Len(t, m, 4, "both args and kwargs empty: neither field encoded")

	m = codec.NewPublish(1, map[string]interface{}{}, "com.example.topic", nil, map[string]interface{}{"k": "v"})
	assert.Len(t, m, 6, "kwargs present: an empty positional array must still be emitted")
	_, _, _, args, kwargs := codec.PublishFields(m)
	assert.Equal(t, []interface{}{}, args)
	assert.Equal(t, map[string]interface{}{"k": "v"}, kwargs)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := codec.Decode([]byte{0xc0}) // nil, not an array
	require.Error(t, err)

	_, err = codec.Decode([]byte{0x90}) // empty fixarray: no leading type code
	require.Error(t, err)

	_, err = codec.Decode([]byte{0x91, 0xa1, 'x'}) // one-element array whose element is a string, not an int
	require.Error(t, err)
}
