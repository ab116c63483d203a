package domain

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	dErrors "provenance/pkg/domain-errors"
)

// HashSize is the required length of a batch content hash in bytes.
const HashSize = 32

// ParseHash decodes a hex-encoded content hash. Length is validated here so
// that transport code never hands the core a hash of the wrong size by
// accident; the core re-checks length anyway because it is an ordered
// registration precondition.
func ParseHash(raw string) ([]byte, error) {
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "hash must be hex encoded")
	}
	if len(b) != HashSize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "hash must be exactly 32 bytes")
	}
	return b, nil
}

// HashBytes computes the canonical content hash of a batch payload.
// SHA3-256 yields the 32-byte digests the registry indexes by.
func HashBytes(payload []byte) []byte {
	sum := sha3.Sum256(payload)
	return sum[:]
}

// HashKey renders a hash as the lowercase hex string used as index key and
// wire representation.
func HashKey(hash []byte) string {
	return hex.EncodeToString(hash)
}
