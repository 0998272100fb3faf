package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aussiebroadwan/gatekeep/internal/api/domain"
	"github.com/aussiebroadwan/gatekeep/internal/api/store"
	"github.com/aussiebroadwan/gatekeep/internal/api/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeep/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, st.Ping(context.Background()))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	users := st.Users()

	u := domain.User{
		ID:           idx.New().String(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$fake",
	}
	require.NoError(t, users.CreateUser(ctx, u))

	byID, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Username, byID.Username)
	require.Equal(t, u.Email, byID.Email)
	require.False(t, byID.CreatedAt.IsZero())

	byName, err := users.GetUserByUsername(ctx, "ALICE")
	require.NoError(t, err, "usernames compare case-insensitively")
	require.Equal(t, u.ID, byName.ID)

	byEmail, err := users.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	_, err = users.GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, users.UpdatePasswordHash(ctx, u.ID, "$argon2id$other"))
	byID, err = users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "$argon2id$other", byID.PasswordHash)

	n, err := users.CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestCreateUserDuplicates(t *testing.T) {
	ctx := context.Background()
	users := newStore(t).Users()

	require.NoError(t, users.CreateUser(ctx, domain.User{ID: idx.New().String(), Username: "bob", Email: "bob@example.com", PasswordHash: "h"}))

	err := users.CreateUser(ctx, domain.User{ID: idx.New().String(), Username: "bob", Email: "other@example.com", PasswordHash: "h"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	err = users.CreateUser(ctx, domain.User{ID: idx.New().String(), Username: "robert", Email: "BOB@example.com", PasswordHash: "h"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestTokenVersionsNeverDecrease(t *testing.T) {
	ctx := context.Background()
	versions := newStore(t).TokenVersions()

	_, err := versions.GetVersion(ctx, "alice@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, versions.SaveVersion(ctx, "alice@example.com", 3))
	require.NoError(t, versions.SaveVersion(ctx, "alice@example.com", 2))

	v, err := versions.GetVersion(ctx, "alice@example.com")
	require.NoError(t, err)
	require.EqualValues(t, 3, v.Version)

	require.NoError(t, versions.SaveVersion(ctx, "alice@example.com", 5))
	require.NoError(t, versions.SaveVersion(ctx, "bob@example.com", 2))

	all, err := versions.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "alice@example.com", all[0].Principal)
	require.EqualValues(t, 5, all[0].Version)
	require.EqualValues(t, 2, all[1].Version)

	require.Error(t, versions.SaveVersion(ctx, "zero@example.com", 0))
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.TokenVersions().SaveVersion(ctx, "rollback@example.com", 4))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.TokenVersions().GetVersion(ctx, "rollback@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.TokenVersions().SaveVersion(ctx, "commit@example.com", 4)
	}))

	v, err := st.TokenVersions().GetVersion(ctx, "commit@example.com")
	require.NoError(t, err)
	require.EqualValues(t, 4, v.Version)
}

func TestTokenVersionPrincipalsAreCaseSensitive(t *testing.T) {
	ctx := context.Background()
	versions := newStore(t).TokenVersions()

	require.NoError(t, versions.SaveVersion(ctx, "alice@example.com", 3))
	require.NoError(t, versions.SaveVersion(ctx, "Alice@example.com", 1))

	all, err := versions.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	v, err := versions.GetVersion(ctx, "Alice@example.com")
	require.NoError(t, err)
	require.EqualValues(t, 1, v.Version)
}
