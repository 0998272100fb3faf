/*
Package authsdk provides a client SDK for the gatekeep API.

# Overview

The API issues HS256 access and refresh tokens and invalidates them by
bumping a per-user version number. The SDK is organized around two types:

  - SDKClient: unauthenticated operations and the calls that create sessions
  - Session: authenticated operations with automatic token refresh

Create an SDKClient and open a session:

	client := authsdk.NewSDKClient("https://api.example.com")

	// Register and get a session in one step
	session, err := client.CreateUser(ctx, authsdk.CreateUserRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse battery staple",
	})

	// Or log in with Basic credentials
	session, err = client.Login(ctx, "alice", "correct horse battery staple")

	user, err := session.GetUser(ctx)

# Transport

Every request goes through pkg/transportx: a 503 is retried with
exponential backoff and the whole call is bounded by an overall timeout.
Pass transportx options to NewSDKClient to observe retries:

	client := authsdk.NewSDKClient(baseURL,
		transportx.WithRetryHook(func(ctx context.Context, e transportx.RetryEvent) {
			log.Printf("retrying %s: %s", e.URL, e.Reason())
		}),
	)

# Token Refresh

When a Session call is rejected with "Token is outdated" or "Invalid
authentication token" the session exchanges its refresh token once and
replays the call. Refreshing bumps the user's version on the server, so
every other session of the same user is logged out by it.

# Error Handling

Failure envelopes are returned as *APIError. Compare against the predefined
values with errors.Is:

	_, err := session.GetUser(ctx)
	if errors.Is(err, authsdk.ErrTokenOutdated) {
		// log in again
	}

Transport failures wrap transportx.ErrExhausted or transportx.ErrTimeout.

# Thread Safety

Sessions are safe for concurrent use. Concurrent calls that all see an
outdated token trigger a single refresh.
*/
package authsdk
