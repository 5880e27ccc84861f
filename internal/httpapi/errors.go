package httpapi

import (
	"encoding/json"
	"net/http"

	"imaged/internal/dicom"
	"imaged/internal/registration"
	"imaged/internal/wizard"
	"imaged/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusForError maps the wizard error taxonomy to HTTP status codes.
func statusForError(err error) int {
	switch {
	case wizard.IsUninitialized(err):
		return http.StatusConflict
	case wizard.IsRegistrationPrecondition(err), registration.IsAlreadyRunning(err):
		return http.StatusConflict
	case wizard.IsValidation(err):
		return http.StatusUnprocessableEntity
	case wizard.IsDecode(err), wizard.IsEncode(err):
		return http.StatusUnprocessableEntity
	case dicom.IsDirectoryRead(err):
		return http.StatusNotFound
	case dicom.IsIndexOutOfRange(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err and writes the payload.
func writeError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusForError(err), err.Error())
}
