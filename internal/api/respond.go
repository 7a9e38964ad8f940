package api

import (
	"encoding/json"
	"net/http"

	"github.com/gosiva/archive-ui/internal/archive"
)

// Error codes carried in ErrorResponse.Error.
const (
	codeValidation = "validation_error"
	codeBadRequest = "bad_request"
	codeNotFound   = "not_found"
	codeAuth       = "unauthorized"
	codeForbidden  = "forbidden"
	codeLocked     = "too_many_attempts"
	codeInternal   = "internal_error"
)

// JSONResponse sends a JSON response
func JSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// JSONError sends an ErrorResponse tagged with the request ID
func JSONError(w http.ResponseWriter, r *http.Request, status int, code, message string, details ...archive.ErrorDetail) {
	JSONResponse(w, status, archive.ErrorResponse{
		Success:   false,
		Error:     code,
		Message:   message,
		Details:   details,
		RequestID: GetRequestID(r),
	})
}

// JSONData wraps data in a success envelope
func JSONData(w http.ResponseWriter, data interface{}) {
	JSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}
