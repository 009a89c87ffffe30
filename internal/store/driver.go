// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string

	AccountStore
	PatientStore
	ShareStore
}

// AccountStore defines operations for account persistence.
type AccountStore interface {
	// CreateAccount creates a new account. Returns ErrAlreadyExists if the
	// email is already registered.
	CreateAccount(ctx context.Context, account *Account) error

	// GetAccount retrieves an account by id. Returns ErrNotFound if absent.
	GetAccount(ctx context.Context, id string) (*Account, error)

	// GetAccountByEmail retrieves an account by exact email match.
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)

	// GetAccountByToken retrieves the account whose active token list
	// contains the given token. Returns ErrNotFound if no account holds it.
	GetAccountByToken(ctx context.Context, token string) (*Account, error)

	// UpdateAccount persists changes to an existing account.
	UpdateAccount(ctx context.Context, account *Account) error

	// DeleteAccount removes an account by id.
	DeleteAccount(ctx context.Context, id string) error
}

// PatientStore defines operations for patient record persistence.
type PatientStore interface {
	CreatePatient(ctx context.Context, patient *Patient) error
	GetPatient(ctx context.Context, id string) (*Patient, error)
	UpdatePatient(ctx context.Context, patient *Patient) error
	DeletePatient(ctx context.Context, id string) error
}

// ShareStore defines operations for share persistence.
type ShareStore interface {
	CreateShare(ctx context.Context, share *Share) error
	GetShare(ctx context.Context, id string) (*Share, error)
	UpdateShare(ctx context.Context, share *Share) error
	DeleteShare(ctx context.Context, id string) error

	// ListSharesByPatient returns shares for a patient ordered by id.
	// UUIDv7 ids make that order match creation order. limit <= 0 means
	// no limit.
	ListSharesByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Share, error)

	// ListSharesByGrantee returns resolved shares held by an account.
	ListSharesByGrantee(ctx context.Context, granteeID string) ([]*Share, error)

	// ListPendingSharesByEmail returns unresolved shares granted to an
	// email that has not registered yet.
	ListPendingSharesByEmail(ctx context.Context, email string) ([]*Share, error)

	// DeleteSharesByPatient removes all shares for a patient. Used when the
	// record itself is deleted.
	DeleteSharesByPatient(ctx context.Context, patientID string) error
}

// TokenList is an ordered list of bearer tokens, oldest first.
// Stored as a JSON array column by the sqlite driver.
type TokenList []string

// Account represents a registered credential holder.
type Account struct {
	ID             string     `json:"id" gorm:"primaryKey"`     // UUIDv7
	Email          string     `json:"email" gorm:"uniqueIndex"` // login identity, exact match
	PasswordHash   string     `json:"-"`                        // bcrypt digest, never serialized
	FailedAttempts int        `json:"failed_attempts"`          // failures in the current lock cycle
	LockUntil      *time.Time `json:"lock_until,omitempty"`     // nil or past means unlocked
	ActiveTokens   TokenList  `json:"-" gorm:"serializer:json"` // oldest first, capacity-bounded
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Patient is the protected record shares grant access to.
type Patient struct {
	ID          string    `json:"id" gorm:"primaryKey"` // UUIDv7
	Name        string    `json:"name"`
	DateOfBirth string    `json:"date_of_birth"` // ISO 8601 date, no time component
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Share grants one grantee an access level over one patient record.
type Share struct {
	ID           string    `json:"id" gorm:"primaryKey"` // UUIDv7
	PatientID    string    `json:"patient_id" gorm:"index"`
	GranteeEmail string    `json:"grantee_email" gorm:"index"` // grant target, may predate registration
	GranteeID    string    `json:"grantee_id" gorm:"index"`    // set once Resolved
	Access       string    `json:"access"`                     // none, read, write, default
	Group        string    `json:"group"`                      // free-form label; "owner" is reserved
	Resolved     bool      `json:"resolved"`                   // true once grantee email matched an account
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
