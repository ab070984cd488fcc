package id

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random request token. Tokens key every upload and derived
// asset so concurrent requests never share a path.
func New() string {
	return uuid.NewString()
}

// Valid reports whether token has the canonical form produced by New.
func Valid(token string) bool {
	token = strings.TrimSpace(token)
	if len(token) != 36 {
		return false
	}
	_, err := uuid.Parse(token)
	return err == nil
}
