package rounds

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// SaltLength is the size of the per-round salt handed to clients.
const SaltLength = 12

// saltAlphabet drops look-alikes (0/O, 1/I/L) so a salt can be read aloud.
const saltAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// saltCutoff is the largest multiple of the alphabet size that fits in a
// byte; higher bytes are redrawn so every symbol is equally likely.
const saltCutoff = 256 / len(saltAlphabet) * len(saltAlphabet)

// NewSalt returns n symbols drawn from crypto/rand.
func NewSalt(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("salt length %d must be positive", n)
	}
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/4+1)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= saltCutoff {
				continue
			}
			out = append(out, saltAlphabet[int(b)%len(saltAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// saltMatches compares a client echo to the stored salt in constant time.
func saltMatches(echo, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(echo), []byte(stored)) == 1
}
