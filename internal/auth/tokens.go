package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the entropy of every bearer token: 32 bytes (256 bits),
// hex encoded to 64 characters.
const TokenBytes = 32

// TokenGenerator abstracts the entropy source for testability.
type TokenGenerator interface {
	GenerateToken() (string, error)
}

// CryptoTokenGenerator draws tokens from crypto/rand.
type CryptoTokenGenerator struct{}

func (CryptoTokenGenerator) GenerateToken() (string, error) {
	return GenerateToken()
}

// GenerateToken returns a new 256-bit random token, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 of token. Sessions store only this form.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
