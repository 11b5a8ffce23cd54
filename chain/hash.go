// Package chain contains the Substrate primitives needed to address storage
// at a given block.
package chain

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// HashSize is the size of a block hash in bytes
const HashSize = 32

// ErrInvalidHash is returned when a block hash cannot be parsed
var ErrInvalidHash = errors.New("invalid block hash")

// Hash identifies a block, and thereby the state checkpoint to read from.
type Hash [HashSize]byte

// ParseHash parses a hex encoded block hash with an optional 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := DecodeHex(s)
	if err != nil {
		return h, errors.Wrapf(ErrInvalidHash, "%q: %v", s, err)
	}
	if len(b) != HashSize {
		return h, errors.Wrapf(ErrInvalidHash, "%q: got %d bytes, expected %d",
			s, len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// MustParseHash is like ParseHash, but panics on error.
// Only use this for constants and in tests.
func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// String returns the 0x prefixed lowercase hex representation, as used by
// the node RPC.
func (h Hash) String() string {
	return EncodeHex(h[:])
}

// IsZero reports if this is the zero hash
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// EncodeHex encodes bytes as 0x prefixed hex
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeHex decodes hex with an optional 0x prefix
func DecodeHex(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
