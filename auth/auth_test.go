package auth_test

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/n1/wampc/auth"
	"github.com/n1/wampc/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

func TestTicketEchoesSecret(t *testing.T) {
	hook := auth.Ticket("s3cr3t")
	resp, err := hook(auth.Challenge{AuthMethod: "ticket"})
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", resp.Signature)
}

func TestWAMPCRAPlainSecret(t *testing.T) {
	hook := auth.WAMPCRA("s3cr3t")
	resp, err := hook(auth.Challenge{Challenge: `{"nonce":"abc"}`})
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("s3cr3t"))
	mac.Write([]byte(`{"nonce":"abc"}`))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, resp.Signature)
}

func TestWAMPCRADerivedKey(t *testing.T) {
	hook := auth.WAMPCRA("s3cr3t")
	c := auth.Challenge{
		Challenge:  `{"nonce":"abc"}`,
		Salt:       "saltvalue",
		Iterations: 100,
		Keylen:     16,
	}
	resp, err := hook(c)
	require.NoError(t, err)

	key := pbkdf2.Key([]byte("s3cr3t"), []byte("saltvalue"), 100, 16, sha256.New)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(c.Challenge))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, resp.Signature)
}

func TestCryptoSignSignsNonce(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_ = pub

	hook := auth.CryptoSign(priv)
	nonce := []byte{1, 2, 3, 4}
	resp, err := hook(auth.Challenge{Challenge: hex.EncodeToString(nonce)})
	require.NoError(t, err)

	sig, err := hex.DecodeString(resp.Signature)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, nonce, sig))
}

func TestCryptoSignRejectsBadHex(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	hook := auth.CryptoSign(priv)
	_, err = hook(auth.Challenge{Challenge: "not-hex!"})
	assert.Error(t, err)
}

func TestFromMessageExtractsFields(t *testing.T) {
	m := codec.NewChallenge("wampcra", map[string]interface{}{
		"challenge":  "chal-string",
		"salt":       "pepper",
		"iterations": int64(500),
		"keylen":     int64(24),
	})
	c := auth.FromMessage(m)
	assert.Equal(t, "wampcra", c.AuthMethod)
	assert.Equal(t, "chal-string", c.Challenge)
	assert.Equal(t, "pepper", c.Salt)
	assert.Equal(t, 500, c.Iterations)
	assert.Equal(t, 24, c.Keylen)
}

func TestFromMessageDefaultsMissingFields(t *testing.T) {
	m := codec.NewChallenge("ticket", map[string]interface{}{})
	c := auth.FromMessage(m)
	assert.Equal(t, "ticket", c.AuthMethod)
	assert.Equal(t, -1, c.Iterations)
	assert.Equal(t, -1, c.Keylen)
}
