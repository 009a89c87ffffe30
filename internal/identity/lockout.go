package identity

import (
	"context"
	"time"

	"github.com/openmedrec/medrec-go/internal/store"
)

// Documented lockout defaults. Constructors treat zero values as "use default"
// so callers can externalize both knobs through configuration.
const (
	DefaultMaxFailedAttempts = 10
	DefaultLockDuration      = time.Hour
)

// LockStatus is the lock state of an account at a point in time.
type LockStatus struct {
	Locked bool
	Until  time.Time // zero unless Locked
}

// Remaining returns how long the lock still holds. Zero when unlocked.
func (s LockStatus) Remaining(now time.Time) time.Duration {
	if !s.Locked {
		return 0
	}
	return s.Until.Sub(now)
}

// LockoutPolicy tracks failed-attempt counters and temporary lock windows
// per account. Lock expiry is lazy: nothing clears a stale lock until the
// next attempt observes it.
type LockoutPolicy struct {
	accounts    store.AccountStore
	maxAttempts int
	lockFor     time.Duration
}

// NewLockoutPolicy creates a lockout policy over the given account store.
// maxAttempts <= 0 and lockFor <= 0 select the documented defaults.
func NewLockoutPolicy(accounts store.AccountStore, maxAttempts int, lockFor time.Duration) *LockoutPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxFailedAttempts
	}
	if lockFor <= 0 {
		lockFor = DefaultLockDuration
	}
	return &LockoutPolicy{
		accounts:    accounts,
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
	}
}

// Status reports the lock state of an account. Every caller that needs to
// know whether an account is locked goes through here, so expiry logic lives
// in exactly one place.
func (p *LockoutPolicy) Status(account *store.Account) LockStatus {
	if account.LockUntil == nil || !account.LockUntil.After(time.Now()) {
		return LockStatus{}
	}
	return LockStatus{Locked: true, Until: *account.LockUntil}
}

// RecordFailure counts a failed authentication attempt and locks the account
// once the threshold is reached. A stale lock (expired but never cleared) is
// reset before counting so it cannot mask the real state. An already active
// lock is never extended.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, account *store.Account) error {
	now := time.Now()

	if account.LockUntil != nil && !account.LockUntil.After(now) {
		account.FailedAttempts = 0
		account.LockUntil = nil
	}

	account.FailedAttempts++

	if account.FailedAttempts >= p.maxAttempts && account.LockUntil == nil {
		until := now.Add(p.lockFor)
		account.LockUntil = &until
	}

	return p.accounts.UpdateAccount(ctx, account)
}

// Reset clears the failure counter and any lock, regardless of lock state.
// Called after a successful authentication.
func (p *LockoutPolicy) Reset(ctx context.Context, account *store.Account) error {
	if account.FailedAttempts == 0 && account.LockUntil == nil {
		return nil
	}
	account.FailedAttempts = 0
	account.LockUntil = nil
	return p.accounts.UpdateAccount(ctx, account)
}
