package domain

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Checksum is the hex BLAKE2b-256 digest recordings are deduplicated on
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
