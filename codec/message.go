// Package codec implements the WAMP wire message model and its binary
// (MessagePack-style) encoding, against the rawsocket transport's framing.
package codec

import "fmt"

// MessageType is the WAMP message type code occupying element zero of
// every protocol message.
type MessageType int64

// Message type codes handled by the session, per the WAMP basic profile.
const (
	TypeHello        MessageType = 1
	TypeWelcome      MessageType = 2
	TypeAbort        MessageType = 3
	TypeChallenge    MessageType = 4
	TypeAuthenticate MessageType = 5
	TypeGoodbye      MessageType = 6
	TypeError        MessageType = 8
	TypePublish      MessageType = 16
	TypePublished    MessageType = 17
	TypeSubscribe    MessageType = 32
	TypeSubscribed   MessageType = 33
	TypeUnsubscribe  MessageType = 34
	TypeUnsubscribed MessageType = 35
	TypeEvent        MessageType = 36
	TypeCall         MessageType = 48
	TypeResult       MessageType = 50
	TypeRegister     MessageType = 64
	TypeRegistered   MessageType = 65
	TypeUnregister   MessageType = 66
	TypeUnregistered MessageType = 67
	TypeInvocation   MessageType = 68
	TypeYield        MessageType = 70
)

// String returns a short human-readable name for the type code, or
// "UNKNOWN(n)" for a code the session does not interpret.
func (t MessageType) String() string {
	switch t {
	case TypeHello:
		return "HELLO"
	case TypeWelcome:
		return "WELCOME"
	case TypeAbort:
		return "ABORT"
	case TypeChallenge:
		return "CHALLENGE"
	case TypeAuthenticate:
		return "AUTHENTICATE"
	case TypeGoodbye:
		return "GOODBYE"
	case TypeError:
		return "ERROR"
	case TypePublish:
		return "PUBLISH"
	case TypePublished:
		return "PUBLISHED"
	case TypeSubscribe:
		return "SUBSCRIBE"
	case TypeSubscribed:
		return "SUBSCRIBED"
	case TypeUnsubscribe:
		return "UNSUBSCRIBE"
	case TypeUnsubscribed:
		return "UNSUBSCRIBED"
	case TypeEvent:
		return "EVENT"
	case TypeCall:
		return "CALL"
	case TypeResult:
		return "RESULT"
	case TypeRegister:
		return "REGISTER"
	case TypeRegistered:
		return "REGISTERED"
	case TypeUnregister:
		return "UNREGISTER"
	case TypeUnregistered:
		return "UNREGISTERED"
	case TypeInvocation:
		return "INVOCATION"
	case TypeYield:
		return "YIELD"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int64(t))
	}
}

// Message is a single WAMP protocol message: an ordered sequence whose
// first element is the type code and whose remaining elements are
// type-specific. It is the unit the codec encodes to and decodes from
// the binary object model.
type Message []interface{}

// Type returns the message's type code. It panics if the message is
// empty, which cannot happen for anything produced by Decode or the
// New* constructors.
func (m Message) Type() MessageType {
	return MessageType(toInt64(m[0]))
}

// field returns the i'th element of the message, or nil if the message
// is not long enough to contain it (used for optional trailing fields).
func (m Message) field(i int) interface{} {
	if i < 0 || i >= len(m) {
		return nil
	}
	return m[i]
}
