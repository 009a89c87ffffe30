package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openmedrec/medrec-go/internal/appctx"
	"github.com/openmedrec/medrec-go/internal/sharing"
	"github.com/openmedrec/medrec-go/internal/store"
)

// ShareHandler handles share management endpoints. Managing shares on a
// record requires owner access to that record.
type ShareHandler struct {
	registry *sharing.Registry
	resolver *sharing.Resolver
}

// NewShareHandler creates a new share handler.
func NewShareHandler(registry *sharing.Registry, resolver *sharing.Resolver) *ShareHandler {
	return &ShareHandler{
		registry: registry,
		resolver: resolver,
	}
}

// CreateShareRequest is the request body for granting access.
type CreateShareRequest struct {
	GranteeEmail string `json:"grantee_email"`
	Access       string `json:"access"`
	Group        string `json:"group"`
}

// Create handles POST /api/patients/{patientID}/shares.
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := appctx.AccountFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	var req CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")

	if err := h.resolver.Authorize(ctx, account, patientID, sharing.AccessOwner); err != nil {
		writeDomainError(w, r, err)
		return
	}

	share, err := h.registry.Create(ctx, patientID, req.GranteeEmail, req.Access, req.Group)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, share)
}

// List handles GET /api/patients/{patientID}/shares with limit/offset
// pagination. Requires read access to the record.
func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	account, ok := appctx.AccountFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")

	if err := h.resolver.Authorize(ctx, account, patientID, sharing.AccessRead); err != nil {
		writeDomainError(w, r, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	shares, err := h.registry.List(ctx, patientID, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if shares == nil {
		shares = []*store.Share{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"shares": shares,
		"offset": offset,
	})
}

// UpdateShareRequest is the request body for changing a grant. nil fields
// keep their current values.
type UpdateShareRequest struct {
	Access *string `json:"access"`
	Group  *string `json:"group"`
}

// Update handles PUT /api/shares/{shareID}.
func (h *ShareHandler) Update(w http.ResponseWriter, r *http.Request) {
	account, ok := appctx.AccountFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	var req UpdateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctx := r.Context()
	shareID := chi.URLParam(r, "shareID")

	share, err := h.registry.Get(ctx, shareID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.resolver.Authorize(ctx, account, share.PatientID, sharing.AccessOwner); err != nil {
		writeDomainError(w, r, err)
		return
	}

	updated, err := h.registry.Update(ctx, shareID, req.Access, req.Group)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/shares/{shareID}.
func (h *ShareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account, ok := appctx.AccountFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	ctx := r.Context()
	shareID := chi.URLParam(r, "shareID")

	share, err := h.registry.Get(ctx, shareID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.resolver.Authorize(ctx, account, share.PatientID, sharing.AccessOwner); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := h.registry.Delete(ctx, shareID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
