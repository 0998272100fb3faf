package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/api/domain"
	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeep/pkg/revocation"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

var (
	ErrTokenGeneration = errors.New("token_generation_failed")
	ErrInvalidToken    = errors.New("invalid_token")
	ErrInvalidRefresh  = errors.New("invalid_refresh_token")
)

// TokenService issues and validates the HS256 access and refresh tokens.
// Both kinds carry the same claims; only the lifetime differs.
type TokenService struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Versions revocation.Versions

	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Validation is the result of checking a presented token. The principal is
// read from here instead of from state kept on the service.
type Validation struct {
	Claims    jwtx.Claims
	Principal string

	// Err is nil, ErrInvalidToken or revocation.ErrTokenOutdated.
	Err error

	// Cause is the underlying verifier error, for logs only.
	Cause error
}

func (v Validation) Valid() bool { return v.Err == nil }

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IssueAccessToken signs a short-lived token stamped with the principal's
// current version.
func (s *TokenService) IssueAccessToken(ctx context.Context, principal string) (string, error) {
	return s.issue(ctx, principal, s.accessTTL())
}

// IssueRefreshToken is IssueAccessToken with the refresh lifetime.
func (s *TokenService) IssueRefreshToken(ctx context.Context, principal string) (string, error) {
	return s.issue(ctx, principal, s.refreshTTL())
}

// IssuePair returns a fresh access and refresh token for principal.
func (s *TokenService) IssuePair(ctx context.Context, principal string) (*domain.TokenPair, error) {
	access, err := s.IssueAccessToken(ctx, principal)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(ctx, principal)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AuthToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) issue(ctx context.Context, principal string, ttl time.Duration) (string, error) {
	if principal == "" {
		return "", fmt.Errorf("%w: empty principal", ErrTokenGeneration)
	}

	version := s.Versions.GetVersion(ctx, principal)
	claims := jwtx.NewTokenClaims(principal, version, ttl, s.Issuer, s.Audience, s.now())

	token, err := s.Signer.Sign(claims)
	if err != nil {
		slogx.FromContext(ctx).Error("token signing failed", "email", principal, "err", err)
		return "", fmt.Errorf("%w: %w", ErrTokenGeneration, err)
	}
	if token == "" {
		return "", fmt.Errorf("%w: signer returned an empty token", ErrTokenGeneration)
	}
	return token, nil
}

// ValidateToken checks signature, lifetime, issuer and audience, then the
// version claim against the registry. It never panics and never hands back
// raw parser errors in Err.
func (s *TokenService) ValidateToken(ctx context.Context, raw string) Validation {
	claims, err := s.Verifier.Verify(raw)
	if err != nil {
		return Validation{Err: ErrInvalidToken, Cause: err}
	}
	if claims.Email == "" || claims.Version == "" {
		return Validation{Claims: claims, Err: ErrInvalidToken, Cause: jwtx.ErrInvalidClaim}
	}

	v := Validation{Claims: claims, Principal: claims.Email}
	if err := revocation.Check(ctx, s.Versions, claims.Email, claims.Version); err != nil {
		v.Err = err
	}
	return v
}

// ValidateRefreshToken applies the same checks as ValidateToken. Refresh
// tokens share the access token's shape.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, raw string) Validation {
	v := s.ValidateToken(ctx, raw)
	if !v.Valid() {
		slogx.FromContext(ctx).Info("refresh token rejected",
			"email", v.Principal,
			"token_fp", cryptox.FingerprintToken(raw),
			"err", v.Err,
			"cause", v.Cause,
		)
	}
	return v
}

// IncrementUserVersion invalidates every token issued to principal so far.
func (s *TokenService) IncrementUserVersion(ctx context.Context, principal string) {
	s.Versions.IncrementVersion(ctx, principal)
}

// UserVersion returns the version new tokens for principal will carry.
func (s *TokenService) UserVersion(ctx context.Context, principal string) string {
	return s.Versions.GetVersion(ctx, principal)
}

// ExchangeRefreshToken consumes a refresh token: the principal's version is
// bumped, which retires the presented token and every sibling, and a new
// pair is issued at the new version.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, raw string) (*domain.TokenPair, error) {
	v := s.ValidateRefreshToken(ctx, raw)
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefresh, v.Err)
	}

	s.IncrementUserVersion(ctx, v.Principal)

	pair, err := s.IssuePair(ctx, v.Principal)
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("refresh token exchanged",
		"email", v.Principal,
		"version", s.UserVersion(ctx, v.Principal),
	)
	return pair, nil
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}
