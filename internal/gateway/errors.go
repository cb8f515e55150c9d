package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"family-ledger-go/internal/domain/ledger"
)

// ErrUnauthenticated is returned when the session is missing or a token
// refresh failed. The session has been cleared when it is returned.
var ErrUnauthenticated = ledger.ErrUnauthenticated

// APIError is a non-2xx gateway response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: %d %s", e.Status, e.Message)
}

func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// newAPIError prefers the server's message, then its error field, then a
// generic text.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		message = strings.TrimSpace(payload.Message)
		if message == "" && len(payload.Error) > 0 {
			var text string
			if err := json.Unmarshal(payload.Error, &text); err == nil {
				message = strings.TrimSpace(text)
			} else {
				var nested struct {
					Message string `json:"message"`
				}
				if err := json.Unmarshal(payload.Error, &nested); err == nil {
					message = strings.TrimSpace(nested.Message)
				}
			}
		}
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}
	return &APIError{Status: status, Message: message}
}
