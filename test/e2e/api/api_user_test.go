//go:build e2e

package api_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestCreateUserAndLogin(t *testing.T) {
	baseURL := setupAPIContainer(t, nil)
	client := authsdk.NewSDKClient(baseURL)

	session := createUser(t, client, "alice")

	user, err := session.GetUser(t.Context())
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "alice@example.com", user.Email)

	login, err := client.Login(t.Context(), "alice", testPassword)
	require.NoError(t, err)
	require.NotEqual(t, session.Tokens().AuthToken, login.Tokens().AuthToken)

	_, err = client.Login(t.Context(), "alice", "wrong")
	require.ErrorIs(t, err, authsdk.ErrUnauthorized)
}

func TestCreateUserValidation(t *testing.T) {
	baseURL := setupAPIContainer(t, nil)
	client := authsdk.NewSDKClient(baseURL)

	createUser(t, client, "bob")

	_, err := client.CreateUser(t.Context(), authsdk.CreateUserRequest{
		Username: "bob",
		Email:    "bob@example.com",
		Password: testPassword,
	})
	require.ErrorIs(t, err, authsdk.ErrUserExists)

	_, err = client.CreateUser(t.Context(), authsdk.CreateUserRequest{
		Username: "a-very-long-username",
		Email:    "long@example.com",
		Password: testPassword,
	})
	require.ErrorIs(t, err, authsdk.NewAPIError(http.StatusBadRequest, "User name cannot be more than 14 characters"))
}
