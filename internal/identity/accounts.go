package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openmedrec/medrec-go/internal/logutil"
	"github.com/openmedrec/medrec-go/internal/store"
)

var validate = validator.New()

// ValidEmail reports whether s is a syntactically valid email address.
func ValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// AccountService handles account registration and credential changes.
type AccountService struct {
	accounts store.AccountStore
	creds    *CredentialStore
	tokens   *AccessTokenManager
	logger   *slog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(accounts store.AccountStore, creds *CredentialStore, tokens *AccessTokenManager, logger *slog.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		creds:    creds,
		tokens:   tokens,
		logger:   logutil.NoopIfNil(logger),
	}
}

// Register creates a new account with a hashed secret. The email is the
// account's immutable identity, matched case-sensitively on login.
func (s *AccountService) Register(ctx context.Context, email, secret string) (*store.Account, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrEmailRequired
	}
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}

	hash, err := s.creds.Hash(secret)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	account := &store.Account{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	s.logger.Info("account registered", "account_id", account.ID)
	return account, nil
}

// ChangeSecret verifies the current secret, re-hashes the new one, and
// revokes every active token so all sessions must re-authenticate.
func (s *AccountService) ChangeSecret(ctx context.Context, account *store.Account, current, next string) error {
	if strings.TrimSpace(next) == "" {
		return ErrSecretRequired
	}
	if err := s.creds.Verify(account.PasswordHash, current); err != nil {
		return err
	}

	hash, err := s.creds.Hash(next)
	if err != nil {
		return err
	}
	account.PasswordHash = hash

	if err := s.accounts.UpdateAccount(ctx, account); err != nil {
		return err
	}

	// Revocation point: tokens issued before this are invalid from here on.
	return s.tokens.RevokeAll(ctx, account)
}

// Delete destroys the account. Token invalidation is implied: resolving any
// of its tokens fails once the row is gone. Share cleanup is the caller's
// job, via the share registry.
func (s *AccountService) Delete(ctx context.Context, account *store.Account) error {
	if err := s.accounts.DeleteAccount(ctx, account.ID); err != nil {
		return err
	}
	s.logger.Info("account deleted", "account_id", account.ID)
	return nil
}
