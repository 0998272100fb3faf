package authsdk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// CreateUser registers a new account and opens a session for it.
func (c *SDKClient) CreateUser(ctx context.Context, req CreateUserRequest) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/user", req, nil)
	if err != nil {
		return nil, err
	}

	var pair TokenPair
	if err := decodeEnvelope(resp, &pair, http.StatusOK); err != nil {
		return nil, err
	}

	return newSession(c, &pair), nil
}

// Login exchanges a username and password for a session.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*Session, error) {
	creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	header := http.Header{"Authorization": []string{"Basic " + creds}}

	resp, err := c.doRequest(ctx, http.MethodPost, "/user/login", nil, header)
	if err != nil {
		return nil, err
	}

	var pair TokenPair
	if err := decodeEnvelope(resp, &pair, http.StatusOK); err != nil {
		return nil, err
	}

	return newSession(c, &pair), nil
}

// GenerateNewToken exchanges refreshToken for a new pair. The endpoint wants
// a bearer credential as well; refresh tokens have the access token's shape,
// so the refresh token itself is presented. The exchange bumps the
// principal's version: every token issued before it stops working.
func (c *SDKClient) GenerateNewToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/user/generate-new-token",
		RefreshRequest{RefreshToken: refreshToken},
		bearer(refreshToken),
	)
	if err != nil {
		return nil, err
	}

	var pair TokenPair
	if err := decodeEnvelope(resp, &pair, http.StatusOK); err != nil {
		return nil, err
	}

	return &pair, nil
}

// GetCatFact returns the upstream fact document as-is.
func (c *SDKClient) GetCatFact(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/misc/cat-facts", nil, nil)
	if err != nil {
		return nil, err
	}

	var fact json.RawMessage
	if err := decodeEnvelope(resp, &fact, http.StatusOK); err != nil {
		return nil, err
	}

	return fact, nil
}
