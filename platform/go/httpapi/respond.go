package httpapi

import (
	"encoding/json"
	"net/http"
)

// Stable machine-readable error codes carried in every error response.
const (
	CodeValidationError    = "validation_error"
	CodeInvalidCredentials = "invalid_credentials"
	CodeTokenInvalid       = "token_invalid_or_expired"
	CodeTenantMismatch     = "tenant_mismatch"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeInsufficientFunds  = "insufficient_funds"
	CodeRecipientNotFound  = "recipient_not_found"
	CodeInternal           = "internal_error"
)

// ErrorBody is the error payload shape shared by every endpoint.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON serializes body with the given status. A nil body writes only
// headers.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: ErrorBody{Code: code, Message: message}})
}

// WriteValidation writes a 400 validation envelope with per-field issues.
func WriteValidation(w http.ResponseWriter, fields map[string][]string) {
	WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: ErrorBody{
		Code:    CodeValidationError,
		Message: "validation error",
		Fields:  fields,
	}})
}
