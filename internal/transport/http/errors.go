package http

import (
	"encoding/json"
	"log"
	"net/http"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidID            = "invalid_id"
	codeInvalidQuantity      = "invalid_quantity"
	codeInvalidPrice         = "invalid_price"
	codeOrderNotFound        = "order_not_found"
	codeInvalidSignature     = "invalid_signature"
	codeInvalidPayload       = "invalid_payload"
	codePayloadTooLarge      = "payload_too_large"
	codeWebhookNotConfigured = "webhook_not_configured"
	codeUnavailable          = "unavailable"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError sends the JSON error body every route shares.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: encode response status=%d err=%v", status, err)
	}
}
