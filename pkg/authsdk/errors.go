package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
)

// ============================================================================
// APIError - failure envelope as an error
// ============================================================================

// APIError is a failure envelope paired with its HTTP status. The server
// writes it; the SDK parses it back.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Is matches on status and message so parsed errors compare equal to the
// predefined ones.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Message == t.Message
}

// WriteError writes e as a failure envelope.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Message)
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrInvalidToken is returned when the bearer token is missing, malformed,
	// expired or signed by someone else.
	ErrInvalidToken = &APIError{StatusCode: http.StatusUnauthorized, Message: httpx.MsgInvalidToken}

	// ErrTokenOutdated is returned when the token is well formed but its
	// version has been superseded.
	ErrTokenOutdated = &APIError{StatusCode: http.StatusUnauthorized, Message: httpx.MsgTokenOutdated}

	// ErrUnauthorized is returned for rejected Basic credentials.
	ErrUnauthorized = &APIError{StatusCode: http.StatusUnauthorized, Message: httpx.MsgUnauthorized}

	// ErrInvalidRefresh is returned when the refresh token in the body is
	// not current.
	ErrInvalidRefresh = &APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid refresh token"}

	ErrBadRequest    = &APIError{StatusCode: http.StatusBadRequest, Message: "Bad Request"}
	ErrInvalidJSON   = &APIError{StatusCode: http.StatusBadRequest, Message: "Invalid JSON format received"}
	ErrEmptyPayload  = &APIError{StatusCode: http.StatusBadRequest, Message: "Empty payload received"}
	ErrRefreshNeeded = &APIError{StatusCode: http.StatusBadRequest, Message: "refreshToken is required"}

	ErrUserExists = &APIError{StatusCode: http.StatusConflict, Message: "User already exists"}

	ErrServerError = &APIError{StatusCode: http.StatusInternalServerError, Message: "Internal server error"}

	// ErrUpstreamUnavailable is returned when a third-party call kept
	// failing after every retry.
	ErrUpstreamUnavailable = &APIError{StatusCode: http.StatusBadGateway, Message: "Upstream service unavailable"}

	// ErrUpstreamTimeout is returned when a third-party call ran out of time.
	ErrUpstreamTimeout = &APIError{StatusCode: http.StatusGatewayTimeout, Message: "Upstream service timed out"}
)

// NewAPIError builds an error for a message that has no predefined value,
// such as a field validation failure.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{StatusCode: statusCode, Message: message}
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-success response into an *APIError. Bodies
// that are not envelopes fall back to the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
