package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chartcrafter/chartcrafter"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// validationErrors maps each validation sentinel to its error code and the
// message returned to the client. Order matters: the first match wins.
var validationErrors = []struct {
	err     error
	code    string
	message string
}{
	{chartcrafter.ErrMissingFields, "missing_fields", "Missing required fields"},
	{chartcrafter.ErrInvalidExpiryFormat, "invalid_expiry_format", "Invalid expiry format. Use a number followed by h or d, e.g. 12h or 7d"},
	{chartcrafter.ErrExpiryOutOfRange, "expiry_out_of_range", "Expiry must be between 1h and 30d"},
}

// HandleError writes appropriate error response based on error type.
// Internal details never reach the client.
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chartcrafter.ErrInvalidInput):
		slog.Debug("rejected request", "error", err)
		for _, v := range validationErrors {
			if errors.Is(err, v.err) {
				WriteError(w, http.StatusBadRequest, v.code, v.message)
				return
			}
		}
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request")

	case errors.Is(err, chartcrafter.ErrUnauthorized):
		slog.Debug("unauthorized request", "error", err)
		w.Header().Set("WWW-Authenticate", "Bearer")
		message := "Invalid credentials"
		if errors.Is(err, chartcrafter.ErrCredentialRequired) {
			message = "Credentials required"
		}
		WriteError(w, http.StatusUnauthorized, "unauthorized", message)

	case errors.Is(err, chartcrafter.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "Chart not found")

	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
