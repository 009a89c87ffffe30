// Package api provides the thin HTTP handlers over the trust and access
// core, including the mapping from domain errors to transport responses.
package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/openmedrec/medrec-go/internal/appctx"
	"github.com/openmedrec/medrec-go/internal/identity"
	"github.com/openmedrec/medrec-go/internal/sharing"
	"github.com/openmedrec/medrec-go/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

// writeDomainError maps a typed domain failure to its transport response.
// Account-not-found and wrong-credentials produce byte-identical responses
// so callers cannot enumerate accounts. Lockout reports a Retry-After but
// never the failure count.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *identity.LockedOutError

	switch {
	case errors.Is(err, identity.ErrEmailRequired),
		errors.Is(err, identity.ErrSecretRequired),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, sharing.ErrInvalidAccessLevel),
		errors.Is(err, sharing.ErrInvalidGroup),
		errors.Is(err, sharing.ErrInvalidEmail):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case identity.IsAuthFailure(err):
		writeJSONError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")

	case errors.As(err, &locked):
		seconds := int(math.Ceil(locked.Remaining.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSONError(w, http.StatusLocked, "locked", "account temporarily locked")

	case errors.Is(err, identity.ErrInvalidToken):
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired token")

	case errors.Is(err, identity.ErrAccountExists):
		writeJSONError(w, http.StatusConflict, "account_exists", "account already exists")

	case errors.Is(err, sharing.ErrOwnerShareImmutable):
		writeJSONError(w, http.StatusConflict, "owner_share_immutable", "the owner share cannot be modified or deleted")

	case errors.Is(err, sharing.ErrUnauthorizedAccess):
		writeJSONError(w, http.StatusForbidden, "forbidden", "insufficient access to this record")

	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", "resource not found")

	default:
		appctx.GetLogger(r.Context()).Error("request failed", "error", err, "path", r.URL.Path)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
