package kprotocol

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"
)

func signMessage(t *testing.T, priv *btcec.PrivateKey, message string) (sigHex, pubHex string) {
	t.Helper()
	hash := sha256.Sum256([]byte(message))
	sig, err := schnorr.Sign(priv, hash[:])
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	return hex.EncodeToString(sig.Serialize()), hex.EncodeToString(pub)
}

func TestVerify_ValidSignature_CompressedPubkey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	sigHex, pubHex := signMessage(t, priv, "hello:world")

	ok := Verify("hello:world", sigHex, pubHex)
	require.True(t, ok)
}

func TestVerify_ValidSignature_XOnlyPubkey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	sigHex, pubHex := signMessage(t, priv, "a:b:c")

	compressed, err := hex.DecodeString(pubHex)
	require.NoError(t, err)
	xOnlyHex := hex.EncodeToString(compressed[1:])

	ok := Verify("a:b:c", sigHex, xOnlyHex)
	require.True(t, ok)
}

func TestVerify_WrongMessage(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	sigHex, pubHex := signMessage(t, priv, "original")

	ok := Verify("tampered", sigHex, pubHex)
	require.False(t, ok)
}

func TestVerify_WrongKey(t *testing.T) {
	priv1, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	priv2, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	sigHex, _ := signMessage(t, priv1, "message")
	_, otherPubHex := signMessage(t, priv2, "message")

	ok := Verify("message", sigHex, otherPubHex)
	require.False(t, ok)
}

func TestVerify_InvalidHexSignature(t *testing.T) {
	require.False(t, Verify("msg", "not-hex", "aa"))
}

func TestVerify_WrongSignatureLength(t *testing.T) {
	require.False(t, Verify("msg", "aabb", "aa"))
}

func TestVerify_InvalidPubkeyLength(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	sigHex, _ := signMessage(t, priv, "msg")
	require.False(t, Verify("msg", sigHex, "aabbcc"))
}
