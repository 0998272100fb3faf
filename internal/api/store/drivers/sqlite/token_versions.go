package sqlite

import (
	"context"
	"fmt"
	"math"

	"github.com/aussiebroadwan/gatekeep/internal/api/domain"
	"github.com/aussiebroadwan/gatekeep/internal/api/store/drivers/sqlite/gen"
)

type tokenVersionsRepo struct {
	q *gen.Queries
}

func (r *tokenVersionsRepo) SaveVersion(ctx context.Context, principal string, version uint64) error {
	if version == 0 || version > math.MaxInt64 {
		return fmt.Errorf("sqlite: token version %d out of range", version)
	}
	return r.q.UpsertTokenVersion(ctx, gen.UpsertTokenVersionParams{
		Principal: principal,
		Version:   int64(version),
	})
}

func (r *tokenVersionsRepo) GetVersion(ctx context.Context, principal string) (domain.TokenVersion, error) {
	row, err := r.q.GetTokenVersion(ctx, principal)
	if err != nil {
		return domain.TokenVersion{}, mapNotFound(err)
	}
	return mapTokenVersion(row), nil
}

func (r *tokenVersionsRepo) ListVersions(ctx context.Context) ([]domain.TokenVersion, error) {
	rows, err := r.q.ListTokenVersions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TokenVersion, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapTokenVersion(row))
	}
	return out, nil
}
