package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentpppp/medRec/internal/patient"
)

// Messages shown to the presentation layer on failure.
const (
	msgRegisterFailed = "Failed to register patient. Please try again."
	msgLoadFailed     = "Failed to load patients"
)

// handleRegisterPatient stores a new patient.
//
// Body: patient.Input as JSON. Responds 201 with the generated id.
func (s *Server) handleRegisterPatient(w http.ResponseWriter, r *http.Request) {
	var in patient.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id, err := s.patients.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, patient.ErrMissingField) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, validationMessage(err))
			return
		}
		s.logger.Error("registering patient failed",
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, msgRegisterFailed)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleListPatients returns every patient ordered by name.
func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := s.patients.ListAll(r.Context())
	if err != nil {
		s.logger.Error("listing patients failed",
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, msgLoadFailed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"patients": patients, "count": len(patients)})
}

// validationMessage extracts the missing-field cause from a Register error,
// dropping the write failure category.
func validationMessage(err error) string {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, cause := range multi.Unwrap() {
			if errors.Is(cause, patient.ErrMissingField) {
				return cause.Error()
			}
		}
	}
	return err.Error()
}
