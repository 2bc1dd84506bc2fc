package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/token-gate/internal/models"
)

// ErrPoolNotFound is returned when the singleton pool row is missing.
var ErrPoolNotFound = errors.New("pool not found")

// PoolRepository persists the singleton staking pool row.
type PoolRepository struct {
	db *PostgresDB
}

// NewPoolRepository creates a new pool repository
func NewPoolRepository(db *PostgresDB) *PoolRepository {
	return &PoolRepository{db: db}
}

// Save upserts the pool row.
func (r *PoolRepository) Save(ctx context.Context, pool *models.Pool) error {
	pool.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO staking_pool (id, apy_basis_points, total_staked, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			apy_basis_points = EXCLUDED.apy_basis_points,
			total_staked = EXCLUDED.total_staked,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query, pool.APYBasisPoints, pool.TotalStaked, pool.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save pool: %w", err)
	}

	return nil
}

// Get loads the pool row.
func (r *PoolRepository) Get(ctx context.Context) (*models.Pool, error) {
	query := `SELECT apy_basis_points, total_staked, updated_at FROM staking_pool WHERE id = 1`

	var pool models.Pool
	err := r.db.Pool().QueryRow(ctx, query).Scan(&pool.APYBasisPoints, &pool.TotalStaked, &pool.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to load pool: %w", err)
	}

	return &pool, nil
}
