package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeep/internal/api/service"
	"github.com/aussiebroadwan/gatekeep/internal/api/store"
	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// UserHandler serves the /user endpoints.
type UserHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

// HandleCreate handles POST /user
//
//	@Summary		Create User
//	@Description	Registers a user and returns an access and refresh token for it.
//	@Description	Usernames are at most 14 characters; emails must be a bare address.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CreateUserRequest	true	"New user"
//	@Success		200		{object}	authsdk.Envelope{data=authsdk.TokenPair}
//	@Failure		400		{object}	authsdk.Envelope	"validation failure"
//	@Failure		409		{object}	authsdk.Envelope	"username or email taken"
//	@Failure		429		{object}	authsdk.Envelope
//	@Failure		500		{object}	authsdk.Envelope
//	@Router			/user [post].
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.CreateUserRequest
	if apiErr := decodeBody(w, r, &req); apiErr != nil {
		apiErr.WriteError(w)
		return
	}

	u, err := h.UserService.Create(ctx, service.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.WriteError(w, http.StatusBadRequest, verr.Message)
		case errors.Is(err, service.ErrUserExists):
			authsdk.ErrUserExists.WriteError(w)
		default:
			log.Error("failed to create user", "error", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	h.writePair(w, r, u.Email)
}

// HandleLogin handles POST /user/login
//
//	@Summary		Log In
//	@Description	Checks HTTP Basic credentials and returns a fresh token pair.
//	@Tags			Users
//	@Produce		json
//	@Security		BasicAuth
//	@Success		200	{object}	authsdk.Envelope{data=authsdk.TokenPair}
//	@Failure		401	{object}	authsdk.Envelope	"Unauthorized"
//	@Failure		429	{object}	authsdk.Envelope
//	@Failure		500	{object}	authsdk.Envelope
//	@Router			/user/login [post].
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}
	h.writePair(w, r, p.Email)
}

// HandleRead handles GET /user
//
//	@Summary		Current User
//	@Description	Returns the user the bearer token belongs to.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.Envelope{data=authsdk.UserResponse}
//	@Failure		401	{object}	authsdk.Envelope	"Invalid authentication token, or Token is outdated"
//	@Failure		500	{object}	authsdk.Envelope
//	@Router			/user [get].
func (h *UserHandler) HandleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	resp := authsdk.UserResponse{Email: p.Email}

	u, err := h.UserService.GetUserByEmail(ctx, p.Email)
	switch {
	case err == nil:
		resp.ID = u.ID
		resp.Username = u.Username
	case errors.Is(err, store.ErrNotFound):
		// Tokens minted from the CLI may name principals with no account.
	default:
		slogx.FromContext(ctx).Error("failed to load user", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteOK(w, http.StatusOK, resp)
}

// HandleGenerateNewToken handles POST /user/generate-new-token
//
//	@Summary		Exchange Refresh Token
//	@Description	Exchanges a current refresh token for a new pair. The exchange bumps the
//	@Description	user's version, so every token issued before it (this refresh token included)
//	@Description	is rejected from now on.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.Envelope{data=authsdk.TokenPair}
//	@Failure		400		{object}	authsdk.Envelope	"refreshToken is required"
//	@Failure		401		{object}	authsdk.Envelope	"Invalid refresh token"
//	@Failure		500		{object}	authsdk.Envelope
//	@Router			/user/generate-new-token [post].
func (h *UserHandler) HandleGenerateNewToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RefreshRequest
	if apiErr := decodeBody(w, r, &req); apiErr != nil {
		apiErr.WriteError(w)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		authsdk.ErrRefreshNeeded.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			authsdk.ErrInvalidRefresh.WriteError(w)
			return
		}
		log.Error("failed to exchange refresh token", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteOK(w, http.StatusOK, authsdk.TokenPair{
		AuthToken:    pair.AuthToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *UserHandler) writePair(w http.ResponseWriter, r *http.Request, email string) {
	pair, err := h.TokenService.IssuePair(r.Context(), email)
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to issue tokens", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteOK(w, http.StatusOK, authsdk.TokenPair{
		AuthToken:    pair.AuthToken,
		RefreshToken: pair.RefreshToken,
	})
}
