// token.go - Opaque bearer tokens for sessions

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewSessionToken returns a random 64-character hex token.
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
