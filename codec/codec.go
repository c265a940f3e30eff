package codec

import (
	"errors"
	"fmt"
)

// ErrUnknownMessageType is not returned by Decode itself (the codec
// decodes any well-formed array regardless of its leading type code);
// it is raised by callers that want to distinguish a structurally valid
// but protocol-unknown message, per the session's forward-compatibility
// policy of logging and ignoring such frames.
var ErrUnknownMessageType = errors.New("codec: unknown message type")

// Encode serializes a Message to the binary object model, ready to be
// handed to the rawsocket transport as a single frame payload.
func Encode(m Message) ([]byte, error) {
	b, err := Marshal([]interface{}(m))
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return b, nil
}

// Decode parses a single frame payload into a Message. The payload must
// decode as a MessagePack array whose first element is an integer type
// code; anything else is ErrMalformedFrame.
func Decode(b []byte) (Message, error) {
	v, n, err := Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	if n != len(b) {
		return nil, fmt.Errorf("codec: decode: %w: %d trailing bytes", ErrMalformedFrame, len(b)-n)
	}
	arr, ok := v.([]interface{})
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("codec: decode: %w: not a non-empty array", ErrMalformedFrame)
	}
	switch arr[0].(type) {
	case int64, uint64:
	default:
		return nil, fmt.Errorf("codec: decode: %w: leading element is not an integer", ErrMalformedFrame)
	}
	return Message(arr), nil
}
