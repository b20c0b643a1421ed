package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const tokenByteLength = 32

// GenerateToken returns a hex-encoded random token carrying 256 bits of
// entropy (64 characters).
func GenerateToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// DigestToken returns the SHA-256 digest of a token plaintext. High-entropy
// tokens do not need a slow hash; the deterministic digest doubles as the
// lookup key.
func DigestToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
