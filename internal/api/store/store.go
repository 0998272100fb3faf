package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeep/internal/api/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so a Tx can hand out the same repos bound to the
// transaction.
type Store interface {
	Users() Users
	TokenVersions() TokenVersions

	ApplyMigrations() error

	// WithTx runs fn inside a read/write transaction. A non-nil error from fn
	// rolls back; nil commits.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped view of the store.
type Tx interface {
	Users() Users
	TokenVersions() TokenVersions
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername backs the Basic credential path.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u. Duplicate username or email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	CountUsers(ctx context.Context) (int64, error)
}

type TokenVersions interface {
	// SaveVersion stores version for principal unless a higher one is already
	// stored, so late writes never move a counter backwards.
	SaveVersion(ctx context.Context, principal string, version uint64) error

	GetVersion(ctx context.Context, principal string) (domain.TokenVersion, error)

	// ListVersions returns every stored counter. Used to warm the registry.
	ListVersions(ctx context.Context) ([]domain.TokenVersion, error)
}
