package authsdk

import (
	"context"
	"net/http"
)

// GetUser returns the principal the session's token speaks for.
func (s *Session) GetUser(ctx context.Context) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeEnvelope(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}

	return &user, nil
}
