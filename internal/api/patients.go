package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openmedrec/medrec-go/internal/appctx"
	"github.com/openmedrec/medrec-go/internal/sharing"
	"github.com/openmedrec/medrec-go/internal/store"
)

// PatientHandler handles patient record endpoints. Every operation is gated
// by the caller's effective access over the record.
type PatientHandler struct {
	patients store.PatientStore
	registry *sharing.Registry
	resolver *sharing.Resolver
}

// NewPatientHandler creates a new patient handler.
func NewPatientHandler(patients store.PatientStore, registry *sharing.Registry, resolver *sharing.Resolver) *PatientHandler {
	return &PatientHandler{
		patients: patients,
		registry: registry,
		resolver: resolver,
	}
}

// PatientRequest is the request body for creating or updating a patient.
type PatientRequest struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
}

// Create handles POST /api/patients. The owner share is created with the
// record; a record without an owner share must not survive.
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := appctx.AccountFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	var req PatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	ctx := r.Context()

	id, err := uuid.NewV7()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	patient := &store.Patient{
		ID:          id.String(),
		Name:        req.Name,
		DateOfBirth: req.DateOfBirth,
	}

	if err := h.patients.CreatePatient(ctx, patient); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if _, err := h.registry.CreateOwnerShare(ctx, patient.ID, account); err != nil {
		// Roll back the orphaned record.
		if delErr := h.patients.DeletePatient(ctx, patient.ID); delErr != nil {
			appctx.GetLogger(ctx).Error("orphaned patient record", "patient_id", patient.ID, "error", delErr)
		}
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, patient)
}

// Get handles GET /api/patients/{patientID}. Requires read access.
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withPatient(w, r, sharing.AccessRead, func(patient *store.Patient) {
		writeJSON(w, http.StatusOK, patient)
	})
}

// Update handles PUT /api/patients/{patientID}. Requires write access.
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req PatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	h.withPatient(w, r, sharing.AccessWrite, func(patient *store.Patient) {
		if req.Name != "" {
			patient.Name = req.Name
		}
		if req.DateOfBirth != "" {
			patient.DateOfBirth = req.DateOfBirth
		}
		if err := h.patients.UpdatePatient(r.Context(), patient); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, patient)
	})
}

// Delete handles DELETE /api/patients/{patientID}. Deleting the record is
// denied to mere write access; only the owner may, and every share on the
// record goes with it.
func (h *PatientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.withPatient(w, r, sharing.AccessOwner, func(patient *store.Patient) {
		ctx := r.Context()
		if err := h.registry.DeleteForPatient(ctx, patient.ID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		if err := h.patients.DeletePatient(ctx, patient.ID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// withPatient loads the record, checks the caller's effective access against
// required, and runs fn. 404 before 403: an unauthorized caller learns
// nothing about whether the record exists only when it doesn't.
func (h *PatientHandler) withPatient(w http.ResponseWriter, r *http.Request, required string, fn func(*store.Patient)) {
	account, ok := appctx.AccountFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")

	patient, err := h.patients.GetPatient(ctx, patientID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := h.resolver.Authorize(ctx, account, patient.ID, required); err != nil {
		writeDomainError(w, r, err)
		return
	}

	fn(patient)
}
