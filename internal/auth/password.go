package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used when a hasher is built with cost 0.
const DefaultBcryptCost = 12

// PasswordHasher abstracts bcrypt for testability.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
	GenerateFromPassword(password string) (string, error)
}

// BcryptHasher is the production PasswordHasher.
type BcryptHasher struct {
	Cost int
}

func (b BcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (b BcryptHasher) GenerateFromPassword(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
