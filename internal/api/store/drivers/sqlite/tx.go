package sqlite

import (
	"github.com/aussiebroadwan/gatekeep/internal/api/store"
	"github.com/aussiebroadwan/gatekeep/internal/api/store/drivers/sqlite/gen"
)

type txStore struct {
	q *gen.Queries
}

func newTx(q *gen.Queries) *txStore { return &txStore{q: q} }

func (t *txStore) Users() store.Users                 { return &usersRepo{q: t.q} }
func (t *txStore) TokenVersions() store.TokenVersions { return &tokenVersionsRepo{q: t.q} }
