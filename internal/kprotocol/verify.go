package kprotocol

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Verify checks the Schnorr signature of message under pubkeyHex, following
// §4.1: the pubkey is accepted in 33-byte compressed form (first byte
// discarded) or 32-byte x-only form; the signature must decode to exactly
// 64 bytes; the signed hash is sha256 of the literal UTF-8 message bytes.
// Any decode failure, length mismatch, or verification failure returns
// false — no error is ever propagated out of this function, per §4.1's
// failure semantics ("the caller treats this as skip this action silently").
func Verify(message string, signatureHex string, pubkeyHex string) bool {
	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil || len(sigBytes) != 64 {
		return false
	}

	xOnly, err := xOnlyPubkeyBytes(pubkeyHex)
	if err != nil {
		return false
	}

	pubKey, err := schnorr.ParsePubKey(xOnly)
	if err != nil {
		return false
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}

	hash := sha256.Sum256([]byte(message))
	return sig.Verify(hash[:], pubKey)
}

// xOnlyPubkeyBytes normalizes a hex-encoded pubkey to its 32-byte x-only
// form, accepting either a 33-byte compressed key (dropping the leading
// parity byte) or an already-x-only 32-byte key.
func xOnlyPubkeyBytes(pubkeyHex string) ([]byte, error) {
	raw, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return nil, err
	}
	switch len(raw) {
	case 33:
		return raw[1:], nil
	case 32:
		return raw, nil
	default:
		return nil, errInvalidPubkeyLength
	}
}
