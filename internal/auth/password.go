package auth

import (
	"errors"
	"strings"

	"adaptive-quiz-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password with bcrypt at the given cost. A cost of 0
// uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

// CheckPassword reports ErrInvalidCredentials when password does not match hash.
func CheckPassword(hash []byte, password string) error {
	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrInvalidCredentials
	}
	return err
}

// ValidateCredentials rejects blank usernames and passwords before they reach a store.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return domain.ErrInvalidCredentials
	}
	return nil
}
