// Package shared centralizes JSON response and error envelope writing so
// every handler returns the same shapes.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "datex/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope. Code is machine-readable; Reason
// tells a human operator what to do next.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its HTTP envelope. Errors without
// a domain code map to a plain 500 so internals do not leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.Reason = dErrors.ReasonOf(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}
