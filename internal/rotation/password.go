package rotation

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// passwordAlphabet matches what the managed databases accept without
// quoting trouble: ASCII letters and digits, no character-class exclusions.
const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratePassword returns a uniformly random password of the given length,
// each character drawn independently from the alphabet using a
// cryptographically secure source.
func GeneratePassword(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("password length must be positive, got %d", length)
	}

	max := big.NewInt(int64(len(passwordAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}
