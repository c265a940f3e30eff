package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/n1/wampc/wlog"
)

// CryptoSign returns a Hook implementing the "cryptosign" authmethod:
// the hex-encoded challenge nonce is signed with privateKey and the
// raw signature is returned hex-encoded, per the cryptosign convention
// of carrying everything as hex rather than base64.
func CryptoSign(privateKey ed25519.PrivateKey) Hook {
	return func(c Challenge) (Authenticate, error) {
		nonce, err := hex.DecodeString(c.Challenge)
		if err != nil {
			return Authenticate{}, fmt.Errorf("auth: cryptosign: decoding challenge: %w", err)
		}
		sig := ed25519.Sign(privateKey, nonce)
		wlog.Debug().Str("key_tag", redactedTag(privateKey.Seed(), "cryptosign")).Msg("auth: signing cryptosign challenge")
		return Authenticate{Signature: hex.EncodeToString(sig)}, nil
	}
}
