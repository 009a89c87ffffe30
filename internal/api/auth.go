package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/openmedrec/medrec-go/internal/appctx"
	"github.com/openmedrec/medrec-go/internal/identity"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authenticator *identity.PasswordAuthenticator
	tokens        *identity.AccessTokenManager
	accounts      *identity.AccountService
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(authenticator *identity.PasswordAuthenticator, tokens *identity.AccessTokenManager, accounts *identity.AccountService) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		tokens:        tokens,
		accounts:      accounts,
	}
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the response for a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	Account struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"account"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctx := r.Context()

	account, err := h.authenticator.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	token, err := h.tokens.Issue(ctx, account)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := LoginResponse{Token: token}
	resp.Account.ID = account.ID
	resp.Account.Email = account.Email

	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/auth/logout. It revokes only the presented token;
// other sessions stay valid.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	account, ok := appctx.AccountFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	if err := h.tokens.Revoke(r.Context(), account, BearerToken(r)); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles POST /api/accounts/password. On success every
// active token is revoked, the one presented with this request included.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	account, ok := appctx.AccountFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.accounts.ChangeSecret(r.Context(), account, req.CurrentPassword, req.NewPassword); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

// BearerToken extracts the bearer token from the Authorization header.
// Returns "" when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
