package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dbpranger/delay-api/history"
)

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps parameter errors to 400 and everything else to 500
func writeError(w http.ResponseWriter, err error, message string) {
	var pe *history.ParamError
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: pe.Error(),
			Details: map[string]interface{}{
				"param":  pe.Param,
				"reason": pe.Reason,
			},
		})
		return
	}

	slog.Error(message, "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: message,
		Details: map[string]interface{}{
			"internal": err.Error(),
		},
	})
}

// queryInt parses an optional integer query parameter; absent means nil
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &history.ParamError{Param: name, Reason: "must be an integer"}
	}
	return &v, nil
}

// queryString returns nil when the parameter is absent or empty
func queryString(r *http.Request, name string) *string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	return &raw
}
