package secrets

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphanumeric only: generated values end up inside SQL statements, shell
// invocations and rendered config files, so anything needing escaping is out.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	MinLength = 16
	MaxLength = 24

	// PasswordLength is what a fresh run generates for the database user.
	PasswordLength = 20
)

// Generate returns a random alphanumeric string of the given length from a
// cryptographically secure source.
func Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("secret length %d outside allowed range %d-%d", length, MinLength, MaxLength)
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random source: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// GeneratePassword returns a database-grade secret of the default length.
func GeneratePassword() (string, error) {
	return Generate(PasswordLength)
}
