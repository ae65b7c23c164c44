package featureflags

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertFlagSQL = `
	INSERT INTO feature_flags (key, enabled, updated_at, updated_by)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (key) DO UPDATE SET
		enabled = EXCLUDED.enabled,
		updated_at = EXCLUDED.updated_at,
		updated_by = EXCLUDED.updated_by
`

// PostgresRepository stores switches in the feature_flags table so every
// API and worker instance sees the same state.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL feature flags repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Load(ctx context.Context) ([]Flag, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, enabled, updated_at, updated_by FROM feature_flags`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Flag, error) {
		var f Flag
		err := row.Scan(&f.Key, &f.Enabled, &f.UpdatedAt, &f.UpdatedBy)
		return f, err
	})
}

func (r *PostgresRepository) Save(ctx context.Context, flags ...Flag) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, f := range flags {
			batch.Queue(upsertFlagSQL, f.Key, f.Enabled, f.UpdatedAt, f.UpdatedBy)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

var _ Repository = (*PostgresRepository)(nil)
