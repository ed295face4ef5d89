// Package shortcode generates the compact identifiers short links live under
// and enforces the syntactic policy for caller-supplied aliases. Uniqueness is
// the store's job; Generate only promises a well-formed candidate.
package shortcode

import (
	"crypto/rand"
	"fmt"
)

const (
	// CodeLength is the length of generated codes. 62^6 candidates keep the
	// collision rate negligible at the expected load.
	CodeLength = 6

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	aliasMinLength = 3
	aliasMaxLength = 20
)

// Generate returns a CodeLength-character identifier drawn from [A-Za-z0-9]
// using the platform CSPRNG.
func Generate() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("shortcode: read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// ValidAlias reports whether a caller-supplied alias satisfies the syntactic
// policy: 3-20 characters from [A-Za-z0-9-_].
func ValidAlias(alias string) bool {
	if len(alias) < aliasMinLength || len(alias) > aliasMaxLength {
		return false
	}
	for _, c := range alias {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
