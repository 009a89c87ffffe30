package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/openmedrec/medrec-go/internal/logutil"
	"github.com/openmedrec/medrec-go/internal/store"
)

// PasswordAuthenticator orchestrates email+password verification, consulting
// the lockout policy before and after each attempt.
type PasswordAuthenticator struct {
	accounts store.AccountStore
	creds    *CredentialStore
	lockout  *LockoutPolicy
	logger   *slog.Logger
}

// NewPasswordAuthenticator creates a new authenticator.
func NewPasswordAuthenticator(accounts store.AccountStore, creds *CredentialStore, lockout *LockoutPolicy, logger *slog.Logger) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		accounts: accounts,
		creds:    creds,
		lockout:  lockout,
		logger:   logutil.NoopIfNil(logger),
	}
}

// Authenticate verifies an email+secret pair.
//
// Failure modes, in checking order:
//   - ErrEmailRequired / ErrSecretRequired for blank input, before any lookup
//   - ErrAccountNotFound when no account matches the email
//   - *LockedOutError while a lock window is active; the secret is never
//     compared in that state, but the attempt is still counted
//   - ErrWrongCredentials on hash mismatch, after recording the failure
//
// On success the failure counter and any lock are cleared and the account is
// returned. Every call, success or failure, may mutate persisted lockout
// state.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, secret string) (*store.Account, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrEmailRequired
	}
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}

	account, err := a.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.logger.Info("authentication failed", "reason", "unknown email")
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if status := a.lockout.Status(account); status.Locked {
		// Count the attempt for observability; the lock is not extended.
		if err := a.lockout.RecordFailure(ctx, account); err != nil {
			return nil, err
		}
		a.logger.Info("authentication refused", "reason", "locked", "account_id", account.ID)
		return nil, &LockedOutError{Remaining: status.Remaining(time.Now())}
	}

	if err := a.creds.Verify(account.PasswordHash, secret); err != nil {
		if recErr := a.lockout.RecordFailure(ctx, account); recErr != nil {
			return nil, recErr
		}
		a.logger.Info("authentication failed", "reason", "wrong password", "account_id", account.ID)
		return nil, ErrWrongCredentials
	}

	if err := a.lockout.Reset(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}
