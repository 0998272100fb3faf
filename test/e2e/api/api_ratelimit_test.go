//go:build e2e

package api_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestLoginRateLimit runs with production limits and expects the strict
// profile to cut off repeated failed logins.
func TestLoginRateLimit(t *testing.T) {
	baseURL := setupAPIContainer(t, map[string]string{
		"RATE_LIMIT_STRICT_REQUESTS": "5",
		"RATE_LIMIT_STRICT_BURST":    "5",
	})
	client := authsdk.NewSDKClient(baseURL)
	errLimited := authsdk.NewAPIError(http.StatusTooManyRequests, "Too many requests. Please try again later.")

	var limited bool
	for range 10 {
		_, err := client.Login(t.Context(), "mallory", "guess")
		if errors.Is(err, errLimited) {
			limited = true
			break
		}
		require.ErrorIs(t, err, authsdk.ErrUnauthorized)
	}
	require.True(t, limited, "login should be rate limited after the burst")
}
