package hashutil

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

var registry = map[string]func() hash.Hash{
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// GetHasher returns a new hash for a registered algorithm name.
func GetHasher(name string) (hash.Hash, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unsupported hash algorithm: %s", name)
	}
	return factory(), nil
}

// Hex returns the lowercase hex digest of h.
func Hex(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// ValidHex reports whether s is a well-formed hex digest for algo.
func ValidHex(algo, s string) bool {
	h, err := GetHasher(algo)
	if err != nil {
		return false
	}
	b, err := hex.DecodeString(s)
	return err == nil && len(b) == h.Size()
}

// Equal compares two hex digests case-insensitively in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(a)), []byte(strings.ToLower(b))) == 1
}
