package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/openmedrec/medrec-go/internal/logutil"
	"github.com/openmedrec/medrec-go/internal/store"
)

// DefaultMaxActiveTokens bounds how many bearer tokens an account may hold.
// The cap limits the blast radius of a leaked token set while still allowing
// multiple concurrent devices.
const DefaultMaxActiveTokens = 5

// GenerateToken creates an opaque 256-bit token rendered as hex. Uniqueness
// is by construction; collisions are treated as negligible and not checked
// against storage.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// AccessTokenManager issues, resolves, and revokes bearer tokens bound to an
// account. Tokens carry no embedded expiry: a token is valid exactly while it
// is present in the account's active list.
type AccessTokenManager struct {
	accounts  store.AccountStore
	maxTokens int
	logger    *slog.Logger
}

// NewAccessTokenManager creates a token manager. maxTokens <= 0 selects the
// documented default cap.
func NewAccessTokenManager(accounts store.AccountStore, maxTokens int, logger *slog.Logger) *AccessTokenManager {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxActiveTokens
	}
	return &AccessTokenManager{
		accounts:  accounts,
		maxTokens: maxTokens,
		logger:    logutil.NoopIfNil(logger),
	}
}

// Issue generates a fresh token, appends it to the account's active list, and
// evicts from the front (oldest first) until the list fits the cap. Eviction
// is strictly FIFO by insertion order and never removes more than needed.
func (m *AccessTokenManager) Issue(ctx context.Context, account *store.Account) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}

	account.ActiveTokens = append(account.ActiveTokens, token)
	for len(account.ActiveTokens) > m.maxTokens {
		account.ActiveTokens = account.ActiveTokens[1:]
	}

	if err := m.accounts.UpdateAccount(ctx, account); err != nil {
		return "", err
	}

	m.logger.Debug("token issued", "account_id", account.ID, "active", len(account.ActiveTokens))
	return token, nil
}

// Resolve looks up the account holding the token. Returns ErrInvalidToken
// whether the token was never valid or has since been evicted or revoked;
// the two cases are deliberately indistinguishable. Side-effect-free.
func (m *AccessTokenManager) Resolve(ctx context.Context, token string) (*store.Account, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	account, err := m.accounts.GetAccountByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return account, nil
}

// Revoke removes a single token from the account's active list (logout).
// Revoking a token that is not present is not an error.
func (m *AccessTokenManager) Revoke(ctx context.Context, account *store.Account, token string) error {
	kept := account.ActiveTokens[:0]
	for _, t := range account.ActiveTokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(account.ActiveTokens) {
		return nil
	}
	account.ActiveTokens = kept
	return m.accounts.UpdateAccount(ctx, account)
}

// RevokeAll clears the account's token list, forcing re-authentication
// everywhere. Called when the secret changes.
func (m *AccessTokenManager) RevokeAll(ctx context.Context, account *store.Account) error {
	if len(account.ActiveTokens) == 0 {
		return nil
	}
	account.ActiveTokens = nil
	if err := m.accounts.UpdateAccount(ctx, account); err != nil {
		return err
	}
	m.logger.Info("all tokens revoked", "account_id", account.ID)
	return nil
}
