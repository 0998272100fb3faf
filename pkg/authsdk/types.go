package authsdk

import "encoding/json"

// ============================================================================
// Envelope
// ============================================================================

// Envelope is the body of every API response except the health probes.
// Status is 1 on success and -1 on failure.
type Envelope struct {
	Status int             `json:"status" example:"1"`
	Data   json.RawMessage `json:"data,omitempty" swaggertype:"object"`
	Error  string          `json:"error,omitempty" example:"Invalid authentication token"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenPair is returned by user creation, login and token exchange.
// Both tokens are HS256 JWTs carrying the same claims; the refresh token
// simply lives longer.
type TokenPair struct {
	// AuthToken is the short-lived bearer token for API calls.
	AuthToken string `json:"authToken" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`

	// RefreshToken is exchanged at POST /user/generate-new-token.
	RefreshToken string `json:"refreshToken" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// RefreshRequest is the body of POST /user/generate-new-token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// ============================================================================
// User Types
// ============================================================================

// CreateUserRequest is the body of POST /user.
type CreateUserRequest struct {
	// Username is at most 14 characters.
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"correct horse battery staple"`
}

// UserResponse describes the authenticated caller.
type UserResponse struct {
	ID       string `json:"id,omitempty" example:"01HZX3J5V8Q6M8K7Z3W2T9Y4RB"`
	Username string `json:"username,omitempty" example:"alice"`
	Email    string `json:"email" example:"alice@example.com"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`

	// Versions reports unsynced revocation versions, "ok" when none are pending.
	Versions string `json:"versions"`
}
