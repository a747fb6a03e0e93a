package util

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// EncodeDigest renders a 32-byte digest as a lowercase hexadecimal string.
// This is the representation used at every text boundary (logs, reports,
// CLI output); the internal representation stays binary.
func EncodeDigest(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}

// DecodeDigest parses a hexadecimal digest string back into its binary form.
// Accepts upper- or lowercase input and an optional "0x" prefix.
func DecodeDigest(s string) ([32]byte, error) {
	var digest [32]byte

	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(s) != 64 {
		return digest, errors.Errorf("digest must be 64 hex chars, got %d", len(s))
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return digest, errors.Wrap(err, "invalid hex digest")
	}

	copy(digest[:], raw)
	return digest, nil
}
