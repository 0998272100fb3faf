package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/gatekeep/internal/api/domain"
	"github.com/aussiebroadwan/gatekeep/internal/api/store"
	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/idx"
	"github.com/aussiebroadwan/gatekeep/pkg/revocation"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// MaxUsernameLength bounds usernames in characters.
const MaxUsernameLength = 14

var (
	ErrUserExists         = errors.New("user_exists")
	ErrInvalidCredentials = errors.New("invalid_credentials")
)

// ValidationError carries a message that is safe to show the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CreateUserInput is what POST /user accepts.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
}

// Validate returns the first problem found, in field order.
func (in CreateUserInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Username) == "":
		return &ValidationError{Field: "username", Message: "User name is required"}
	case utf8.RuneCountInString(in.Username) > MaxUsernameLength:
		return &ValidationError{Field: "username", Message: fmt.Sprintf("User name cannot be more than %d characters", MaxUsernameLength)}
	case strings.TrimSpace(in.Email) == "":
		return &ValidationError{Field: "email", Message: "User email is required"}
	case !validEmail(in.Email):
		return &ValidationError{Field: "email", Message: "The Email field is not a valid e-mail address."}
	case in.Password == "":
		return &ValidationError{Field: "password", Message: "Password is required"}
	}
	return nil
}

// validEmail accepts a bare addr-spec only, no display name.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

type UserService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
}

// Create stores a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return domain.User{}, err
	}
	// The email is the token principal; keep one spelling of it.
	in.Email = strings.ToLower(in.Email)

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		return tx.TokenVersions().SaveVersion(ctx, u.Email, revocation.InitialVersion)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user created", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// GetUserByEmail fetches a user by the principal carried in tokens.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.Store.Users().GetUserByEmail(ctx, email)
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a hash so response time does not reveal unknown users.
			_, _ = s.Hasher.Hash(password)
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := s.Hasher.Verify(password, u.PasswordHash); err != nil {
		slogx.FromContext(ctx).Info("password verification failed", "user_id", u.ID)
		return domain.User{}, ErrInvalidCredentials
	}

	if s.Hasher.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u, password)
	}
	return u, nil
}

// rehash upgrades a hash made with older Argon2 parameters. Failure only
// costs the upgrade, never the login.
func (s *UserService) rehash(ctx context.Context, u domain.User, password string) {
	log := slogx.FromContext(ctx)

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		log.Warn("password rehash failed", "user_id", u.ID, "error", err)
		return
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		log.Warn("password rehash failed", "user_id", u.ID, "error", err)
		return
	}
	log.Info("password hash upgraded", "user_id", u.ID)
}

// Lookup resolves a user by ID when ref is a ULID and by email otherwise.
func (s *UserService) Lookup(ctx context.Context, ref string) (domain.User, error) {
	if id, err := idx.Parse(ref); err == nil {
		return s.Store.Users().GetUserByID(ctx, id.String())
	}
	return s.Store.Users().GetUserByEmail(ctx, ref)
}

// CountUsers reports how many users are registered.
func (s *UserService) CountUsers(ctx context.Context) (int64, error) {
	return s.Store.Users().CountUsers(ctx)
}

// CheckCredentials adapts Authenticate to httpx.CredentialChecker.
func (s *UserService) CheckCredentials(ctx context.Context, username, password string) (httpx.Principal, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return httpx.Principal{}, err
	}
	return httpx.Principal{Email: u.Email, Username: u.Username}, nil
}
