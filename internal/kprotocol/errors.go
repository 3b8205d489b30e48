package kprotocol

import "errors"

var errInvalidPubkeyLength = errors.New("kprotocol: pubkey must be 32 or 33 bytes")
