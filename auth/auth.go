// Package auth provides the WAMP challenge-response scaffolding and
// ready-made signature helpers for the methods the session passes
// through to user code: ticket, wampcra, and cryptosign.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/n1/wampc/codec"
	"golang.org/x/crypto/hkdf"
)

// Challenge is the router's CHALLENGE payload, handed to a Hook.
type Challenge struct {
	// AuthMethod names the method the router chose from the client's
	// offered authmethods (e.g. "ticket", "wampcra", "cryptosign").
	AuthMethod string
	// Challenge is the method-specific challenge string. For wampcra
	// this is typically a JSON-encoded object the signature is computed
	// over; for cryptosign it is a hex-encoded nonce.
	Challenge string
	// Salt, Iterations and Keylen are present for wampcra when the
	// secret is stored as a derived key rather than a plaintext
	// password; Iterations/Keylen are -1 when absent.
	Salt       string
	Iterations int
	Keylen     int
	// Extra carries any additional fields the router sent in CHALLENGE.extra.
	Extra map[string]interface{}
}

// FromMessage extracts a Challenge from a decoded CHALLENGE message.
func FromMessage(m codec.Message) Challenge {
	method, extra := codec.ChallengeFields(m)
	a := NewArena(extra)
	return Challenge{
		AuthMethod: method,
		Challenge:  a.String("challenge", ""),
		Salt:       a.String("salt", ""),
		Iterations: a.Int("iterations", -1),
		Keylen:     a.Int("keylen", -1),
		Extra:      extra,
	}
}

// Authenticate is the client's AUTHENTICATE response to a Challenge.
type Authenticate struct {
	Signature string
	Extra     map[string]interface{}
}

// Hook is the user-overridable challenge handler the Session invokes
// whenever the router sends CHALLENGE during Join. Returning an error
// causes the session to send ABORT and fail the join.
type Hook func(Challenge) (Authenticate, error)

// Arena is a tiny read-only accessor over a CHALLENGE's extra map; it
// mirrors codec.Arena's never-throw-the-fallback contract without
// depending on positional-argument semantics that don't apply here.
type Arena struct {
	m map[string]interface{}
}

// NewArena wraps a decoded extra/details map for typed field access.
func NewArena(m map[string]interface{}) *Arena { return &Arena{m: m} }

// String returns the named field as a string, or fallback if absent or
// not a string.
func (a *Arena) String(key, fallback string) string {
	v, ok := a.m[key]
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

// Int returns the named field as an int, or fallback if absent or not
// a numeric type.
func (a *Arena) Int(key string, fallback int) int {
	v, ok := a.m[key]
	if !ok {
		return fallback
	}
	switch x := v.(type) {
	case int64:
		return int(x)
	case uint64:
		return int(x)
	case float64:
		return int(x)
	default:
		return fallback
	}
}

// redactedTag returns an 8-byte HKDF-derived tag for logging a secret's
// identity without logging the secret itself, grounded on the teacher's
// HKDF-based key derivation helper.
func redactedTag(secret []byte, label string) string {
	r := hkdf.New(sha256.New, secret, nil, []byte(label))
	out := make([]byte, 8)
	if _, err := io.ReadFull(r, out); err != nil {
		return "?"
	}
	return hex.EncodeToString(out)
}
