package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Errors returned by the binary object model encoder/decoder.
var (
	// ErrMalformedFrame is returned when a byte sequence is truncated or
	// has an invalid outer shape for the binary object model.
	ErrMalformedFrame = errors.New("codec: malformed frame")
	// ErrTypeMismatch is returned by Marshal when a value's Go type has
	// no encoding in the binary object model. Arena's typed accessors do
	// not return it; they return their fallback instead.
	ErrTypeMismatch = errors.New("codec: type mismatch")
)

// Marshal encodes a single value (nil, bool, any Go integer type,
// float32/float64, string, []byte, []interface{}, or map[string]interface{})
// into the MessagePack-style binary object model WAMP's rawsocket transport
// carries. It is the building block Encode uses to serialize a Message.
func Marshal(v interface{}) ([]byte, error) {
	var buf []byte
	buf, err := appendValue(buf, v)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Unmarshal decodes a single binary-object-model value from b, returning
// the decoded value and the number of bytes consumed. Decoded arrays and
// maps are returned as []interface{} and map[string]interface{}; decoded
// binary strings are returned as []byte slices of b itself (no copy);
// decoded text strings are returned as freshly-allocated Go strings.
func Unmarshal(b []byte) (interface{}, int, error) {
	return readValue(b)
}

func appendValue(buf []byte, v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return append(buf, 0xc0), nil
	case bool:
		if x {
			return append(buf, 0xc3), nil
		}
		return append(buf, 0xc2), nil
	case int:
		return appendInt(buf, int64(x)), nil
	case int8:
		return appendInt(buf, int64(x)), nil
	case int16:
		return appendInt(buf, int64(x)), nil
	case int32:
		return appendInt(buf, int64(x)), nil
	case int64:
		return appendInt(buf, x), nil
	case uint:
		return appendUint(buf, uint64(x)), nil
	case uint8:
		return appendUint(buf, uint64(x)), nil
	case uint16:
		return appendUint(buf, uint64(x)), nil
	case uint32:
		return appendUint(buf, uint64(x)), nil
	case uint64:
		return appendUint(buf, x), nil
	case float32:
		return appendFloat32(buf, x), nil
	case float64:
		return appendFloat64(buf, x), nil
	case string:
		return appendString(buf, x), nil
	case []byte:
		return appendBin(buf, x), nil
	case []interface{}:
		return appendArray(buf, x)
	case map[string]interface{}:
		return appendMap(buf, x)
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrTypeMismatch, v)
	}
}

func appendInt(buf []byte, n int64) []byte {
	if n >= 0 {
		return appendUint(buf, uint64(n))
	}
	switch {
	case n >= -32:
		return append(buf, byte(int8(n)))
	case n >= math.MinInt8:
		return append(buf, 0xd0, byte(int8(n)))
	case n >= math.MinInt16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(int16(n)))
		return append(append(buf, 0xd1), b...)
	case n >= math.MinInt32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(int32(n)))
		return append(append(buf, 0xd2), b...)
	default:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(n))
		return append(append(buf, 0xd3), b...)
	}
}

func appendUint(buf []byte, n uint64) []byte {
	switch {
	case n <= 0x7f:
		return append(buf, byte(n))
	case n <= math.MaxUint8:
		return append(buf, 0xcc, byte(n))
	case n <= math.MaxUint16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(n))
		return append(append(buf, 0xcd), b...)
	case n <= math.MaxUint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(n))
		return append(append(buf, 0xce), b...)
	default:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, n)
		return append(append(buf, 0xcf), b...)
	}
}

func appendFloat32(buf []byte, f float32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(f))
	return append(append(buf, 0xca), b...)
}

func appendFloat64(buf []byte, f float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(f))
	return append(append(buf, 0xcb), b...)
}

func appendString(buf []byte, s string) []byte {
	n := len(s)
	switch {
	case n <= 31:
		buf = append(buf, 0xa0|byte(n))
	case n <= math.MaxUint8:
		buf = append(buf, 0xd9, byte(n))
	case n <= math.MaxUint16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(n))
		buf = append(append(buf, 0xda), b...)
	default:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(n))
		buf = append(append(buf, 0xdb), b...)
	}
	return append(buf, s...)
}

func appendBin(buf []byte, data []byte) []byte {
	n := len(data)
	switch {
	case n <= math.MaxUint8:
		buf = append(buf, 0xc4, byte(n))
	case n <= math.MaxUint16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(n))
		buf = append(append(buf, 0xc5), b...)
	default:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(n))
		buf = append(append(buf, 0xc6), b...)
	}
	return append(buf, data...)
}

func appendArray(buf []byte, arr []interface{}) ([]byte, error) {
	n := len(arr)
	switch {
	case n <= 15:
		buf = append(buf, 0x90|byte(n))
	case n <= math.MaxUint16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(n))
		buf = append(append(buf, 0xdc), b...)
	default:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(n))
		buf = append(append(buf, 0xdd), b...)
	}
	var err error
	for _, v := range arr {
		buf, err = appendValue(buf, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendMap(buf []byte, m map[string]interface{}) ([]byte, error) {
	n := len(m)
	switch {
	case n <= 15:
		buf = append(buf, 0x80|byte(n))
	case n <= math.MaxUint16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(n))
		buf = append(append(buf, 0xde), b...)
	default:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(n))
		buf = append(append(buf, 0xdf), b...)
	}
	var err error
	for k, v := range m {
		buf = appendString(buf, k)
		buf, err = appendValue(buf, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func readValue(b []byte) (interface{}, int, error) {
	if len(b) == 0 {
		return nil, 0, fmt.Errorf("%w: empty input", ErrMalformedFrame)
	}
	lead := b[0]
	switch {
	case lead <= 0x7f:
		return int64(lead), 1, nil
	case lead >= 0xe0:
		return int64(int8(lead)), 1, nil
	case lead >= 0x80 && lead <= 0x8f:
		return readMap(b, 1, int(lead&0x0f))
	case lead >= 0x90 && lead <= 0x9f:
		return readArray(b, 1, int(lead&0x0f))
	case lead >= 0xa0 && lead <= 0xbf:
		return readString(b, 1, int(lead&0x1f))
	}
	switch lead {
	case 0xc0:
		return nil, 1, nil
	case 0xc2:
		return false, 1, nil
	case 0xc3:
		return true, 1, nil
	case 0xc4:
		return readBinSized(b, 1, 1)
	case 0xc5:
		return readBinSized(b, 1, 2)
	case 0xc6:
		return readBinSized(b, 1, 4)
	case 0xca:
		if len(b) < 5 {
			return nil, 0, fmt.Errorf("%w: truncated float32", ErrMalformedFrame)
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b[1:5]))), 5, nil
	case 0xcb:
		if len(b) < 9 {
			return nil, 0, fmt.Errorf("%w: truncated float64", ErrMalformedFrame)
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b[1:9])), 9, nil
	case 0xcc:
		if len(b) < 2 {
			return nil, 0, fmt.Errorf("%w: truncated uint8", ErrMalformedFrame)
		}
		return int64(b[1]), 2, nil
	case 0xcd:
		if len(b) < 3 {
			return nil, 0, fmt.Errorf("%w: truncated uint16", ErrMalformedFrame)
		}
		return int64(binary.BigEndian.Uint16(b[1:3])), 3, nil
	case 0xce:
		if len(b) < 5 {
			return nil, 0, fmt.Errorf("%w: truncated uint32", ErrMalformedFrame)
		}
		return int64(binary.BigEndian.Uint32(b[1:5])), 5, nil
	case 0xcf:
		if len(b) < 9 {
			return nil, 0, fmt.Errorf("%w: truncated uint64", ErrMalformedFrame)
		}
		return binary.BigEndian.Uint64(b[1:9]), 9, nil
	case 0xd0:
		if len(b) < 2 {
			return nil, 0, fmt.Errorf("%w: truncated int8", ErrMalformedFrame)
		}
		return int64(int8(b[1])), 2, nil
	case 0xd1:
		if len(b) < 3 {
			return nil, 0, fmt.Errorf("%w: truncated int16", ErrMalformedFrame)
		}
		return int64(int16(binary.BigEndian.Uint16(b[1:3]))), 3, nil
	case 0xd2:
		if len(b) < 5 {
			return nil, 0, fmt.Errorf("%w: truncated int32", ErrMalformedFrame)
		}
		return int64(int32(binary.BigEndian.Uint32(b[1:5]))), 5, nil
	case 0xd3:
		if len(b) < 9 {
			return nil, 0, fmt.Errorf("%w: truncated int64", ErrMalformedFrame)
		}
		return int64(binary.BigEndian.Uint64(b[1:9])), 9, nil
	case 0xd9:
		return readStringSized(b, 1, 1)
	case 0xda:
		return readStringSized(b, 1, 2)
	case 0xdb:
		return readStringSized(b, 1, 4)
	case 0xdc:
		return readArraySized(b, 1, 2)
	case 0xdd:
		return readArraySized(b, 1, 4)
	case 0xde:
		return readMapSized(b, 1, 2)
	case 0xdf:
		return readMapSized(b, 1, 4)
	}
	return nil, 0, fmt.Errorf("%w: unsupported lead byte 0x%02x", ErrMalformedFrame, lead)
}

func readLen(b []byte, off, width int) (int, int, error) {
	if len(b) < off+width {
		return 0, 0, fmt.Errorf("%w: truncated length", ErrMalformedFrame)
	}
	switch width {
	case 1:
		return int(b[off]), off + 1, nil
	case 2:
		return int(binary.BigEndian.Uint16(b[off : off+2])), off + 2, nil
	case 4:
		return int(binary.BigEndian.Uint32(b[off : off+4])), off + 4, nil
	default:
		return 0, 0, fmt.Errorf("%w: invalid length width", ErrMalformedFrame)
	}
}

func readStringSized(b []byte, off, width int) (interface{}, int, error) {
	n, off, err := readLen(b, off, width)
	if err != nil {
		return nil, 0, err
	}
	return readString(b, off, n)
}

func readString(b []byte, off, n int) (interface{}, int, error) {
	if len(b) < off+n {
		return nil, 0, fmt.Errorf("%w: truncated string", ErrMalformedFrame)
	}
	return string(b[off : off+n]), off + n, nil
}

func readBinSized(b []byte, off, width int) (interface{}, int, error) {
	n, off, err := readLen(b, off, width)
	if err != nil {
		return nil, 0, err
	}
	if len(b) < off+n {
		return nil, 0, fmt.Errorf("%w: truncated bin", ErrMalformedFrame)
	}
	return b[off : off+n], off + n, nil
}

func readArraySized(b []byte, off, width int) (interface{}, int, error) {
	n, off, err := readLen(b, off, width)
	if err != nil {
		return nil, 0, err
	}
	return readArray(b, off, n)
}

func readArray(b []byte, off, n int) (interface{}, int, error) {
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		v, consumed, err := readValue(b[off:])
		if err != nil {
			return nil, 0, err
		}
		out[i] = v
		off += consumed
	}
	return out, off, nil
}

func readMapSized(b []byte, off, width int) (interface{}, int, error) {
	n, off, err := readLen(b, off, width)
	if err != nil {
		return nil, 0, err
	}
	return readMap(b, off, n)
}

func readMap(b []byte, off, n int) (interface{}, int, error) {
	out := make(map[string]interface{}, n)
	for i := 0; i < n; i++ {
		kv, consumed, err := readValue(b[off:])
		if err != nil {
			return nil, 0, err
		}
		key, ok := kv.(string)
		if !ok {
			return nil, 0, fmt.Errorf("%w: non-string map key", ErrMalformedFrame)
		}
		off += consumed
		v, consumed, err := readValue(b[off:])
		if err != nil {
			return nil, 0, err
		}
		out[key] = v
		off += consumed
	}
	return out, off, nil
}

func toInt64(v interface{}) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case uint64:
		return int64(x)
	case int:
		return int64(x)
	case float64:
		return int64(x)
	default:
		return 0
	}
}
