package authsdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Session holds a token pair and refreshes it when the API reports the
// access token as expired or outdated.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	authToken    string
	refreshToken string
}

func newSession(client *SDKClient, pair *TokenPair) *Session {
	return &Session{
		client:       client,
		authToken:    pair.AuthToken,
		refreshToken: pair.RefreshToken,
	}
}

// Tokens returns a copy of the current pair.
func (s *Session) Tokens() TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TokenPair{AuthToken: s.authToken, RefreshToken: s.refreshToken}
}

// AuthToken returns the current access token.
func (s *Session) AuthToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authToken
}

// Refresh exchanges the refresh token for a new pair. Every token issued to
// this principal before the call, including those held by other sessions,
// stops working.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return fmt.Errorf("no refresh token available")
	}

	pair, err := s.client.GenerateNewToken(ctx, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	s.authToken = pair.AuthToken
	s.refreshToken = pair.RefreshToken
	return nil
}

// refreshIfStale refreshes unless another goroutine already replaced stale.
func (s *Session) refreshIfStale(ctx context.Context, stale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authToken != stale {
		return nil
	}
	return s.refreshLocked(ctx)
}

// doAuthRequest sends an authenticated request. A 401 for an invalid or
// outdated token triggers one refresh and one replay.
func (s *Session) doAuthRequest(
	ctx context.Context,
	method, path string,
	body any,
) (*http.Response, error) {
	token := s.AuthToken()

	resp, err := s.client.doRequest(ctx, method, path, body, bearer(token))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	apiErr := parseErrorResponse(resp, bodyBytes)
	if !errors.Is(apiErr, ErrTokenOutdated) && !errors.Is(apiErr, ErrInvalidToken) {
		return nil, apiErr
	}

	if err := s.refreshIfStale(ctx, token); err != nil {
		return nil, errors.Join(apiErr, err)
	}

	return s.client.doRequest(ctx, method, path, body, bearer(s.AuthToken()))
}
