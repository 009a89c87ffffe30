// Package identity provides account management, password authentication with
// progressive lockout, and bearer token session handling.
package identity

import (
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore handles password hashing and verification.
// bcrypt salts internally, so two hashes of the same secret differ.
type CredentialStore struct {
	cost int // bcrypt cost factor
}

// NewCredentialStore creates a new CredentialStore with the given bcrypt cost.
// Cost should be at least 10 for production.
func NewCredentialStore(cost int) *CredentialStore {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialStore{cost: cost}
}

// Hash creates a bcrypt hash of the secret.
func (c *CredentialStore) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), c.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify checks if the secret matches the stored digest.
// Returns ErrWrongCredentials if it doesn't match.
func (c *CredentialStore) Verify(digest, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	if err != nil {
		return ErrWrongCredentials
	}
	return nil
}
