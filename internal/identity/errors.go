package identity

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmailRequired    = errors.New("email is required")
	ErrSecretRequired   = errors.New("password is required")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountExists    = errors.New("account already exists")
	ErrWrongCredentials = errors.New("wrong credentials")
	ErrInvalidToken     = errors.New("invalid token")
)

// LockedOutError is returned when authentication is refused because the
// account is temporarily locked. Remaining is how long the lock still holds;
// it never exposes the failure count.
type LockedOutError struct {
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.Remaining.Round(time.Second))
}

// IsAuthFailure reports whether err is one of the two credential failures
// that must be indistinguishable at the transport boundary.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrWrongCredentials)
}
