//go:build e2e

package api_test

import (
	"testing"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRefreshRevokesOtherSessions checks that a refresh exchange bumps the
// user's version so every earlier token, in any session, stops working.
func TestRefreshRevokesOtherSessions(t *testing.T) {
	baseURL := setupAPIContainer(t, nil)
	client := authsdk.NewSDKClient(baseURL)

	first := createUser(t, client, "carol")
	second, err := client.Login(t.Context(), "carol", testPassword)
	require.NoError(t, err)

	stale := second.Tokens()

	require.NoError(t, first.Refresh(t.Context()))

	// A session holding only the old pair cannot recover: its refresh token
	// carries the superseded version too.
	orphan := client.NewSessionFromTokens(stale)
	_, err = orphan.GetUser(t.Context())
	require.ErrorIs(t, err, authsdk.ErrTokenOutdated)

	user, err := first.GetUser(t.Context())
	require.NoError(t, err)
	require.Equal(t, "carol@example.com", user.Email)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	baseURL := setupAPIContainer(t, nil)
	client := authsdk.NewSDKClient(baseURL)

	session := createUser(t, client, "dave")
	old := session.Tokens()

	pair, err := client.GenerateNewToken(t.Context(), old.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, old.RefreshToken, pair.RefreshToken)

	_, err = client.GenerateNewToken(t.Context(), old.RefreshToken)
	require.ErrorIs(t, err, authsdk.ErrTokenOutdated, "the gate rejects the consumed token presented as bearer")
}
