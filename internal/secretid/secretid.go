package secretid

import (
	"crypto/rand"
	"fmt"
)

// Alphabet is the set of symbols a secret id may contain. Lowercase letters
// plus digits gives 36^10 possible ids at the fixed length of 10, which is
// large enough that the id doubles as a bearer capability for the worry.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Length is the exact number of characters in every secret id.
const Length = 10

// Generate returns a new secret id drawn uniformly at random from Alphabet
// using crypto/rand. It never consults the store; a collision on insert is
// surfaced by the repository as a distinct error.
func Generate() (string, error) {
	// 256 is not a multiple of 36, so bytes >= 252 are rejected to keep the
	// per-symbol distribution uniform.
	const maxAcceptable = byte(252) // 7 * 36

	id := make([]byte, Length)
	buf := make([]byte, Length*2)
	filled := 0
	for filled < Length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("secretid: read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxAcceptable {
				continue
			}
			id[filled] = Alphabet[int(b)%len(Alphabet)]
			filled++
			if filled == Length {
				break
			}
		}
	}
	return string(id), nil
}

// IsValid reports whether candidate has the exact shape of a secret id:
// length 10, every character in [0-9a-z]. It performs no store lookup and
// is used to reject malformed input before any I/O.
func IsValid(candidate string) bool {
	if len(candidate) != Length {
		return false
	}
	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
