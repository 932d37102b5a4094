package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// TokenFingerprint derives a cache key from a bearer token so raw tokens never
// reach Redis. With a key the digest is a keyed MAC.
func TokenFingerprint(key []byte, token string) string {
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}

	h, err := blake2b.New256(key)
	if err != nil {
		sum := blake2b.Sum256([]byte(token))
		return hex.EncodeToString(sum[:16])
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
