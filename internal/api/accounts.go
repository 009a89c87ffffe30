package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openmedrec/medrec-go/internal/appctx"
	"github.com/openmedrec/medrec-go/internal/identity"
	"github.com/openmedrec/medrec-go/internal/sharing"
	"github.com/openmedrec/medrec-go/internal/store"
)

// AccountHandler handles account registration and deletion.
type AccountHandler struct {
	accounts *identity.AccountService
	registry *sharing.Registry
	patients store.PatientStore
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(accounts *identity.AccountService, registry *sharing.Registry, patients store.PatientStore) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		registry: registry,
		patients: patients,
	}
}

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/accounts. After the account is created, any
// share that was granted to this email before registration resolves to it.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctx := r.Context()

	account, err := h.accounts.Register(ctx, req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if _, err := h.registry.ResolvePending(ctx, account); err != nil {
		// The account exists; pending grants will resolve on retry paths.
		appctx.GetLogger(ctx).Warn("resolving pending shares failed", "account_id", account.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":    account.ID,
		"email": account.Email,
	})
}

// Delete handles DELETE /api/accounts/me. Destroys the account, the records
// it owns, and, as grantee, its shares. Tokens die with the account row.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account, ok := appctx.AccountFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	ctx := r.Context()

	owned, err := h.registry.OwnedPatientIDs(ctx, account.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	for _, patientID := range owned {
		if err := h.registry.DeleteForPatient(ctx, patientID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		if err := h.patients.DeletePatient(ctx, patientID); err != nil && !errors.Is(err, store.ErrNotFound) {
			writeDomainError(w, r, err)
			return
		}
	}

	if err := h.registry.DeleteForGrantee(ctx, account.ID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.accounts.Delete(ctx, account); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
