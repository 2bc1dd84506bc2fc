package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/token-gate/internal/models"
)

// ErrConfigNotFound is returned when no snapshot has been committed yet.
var ErrConfigNotFound = errors.New("config snapshot not found")

// ConfigRepository persists versioned configuration snapshots. Each
// update inserts a new version; readers load the highest one.
type ConfigRepository struct {
	db *PostgresDB
}

// NewConfigRepository creates a new config repository
func NewConfigRepository(db *PostgresDB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Save commits a new snapshot version inside a transaction and fills in
// the assigned version number.
func (r *ConfigRepository) Save(ctx context.Context, snapshot *models.ConfigSnapshot) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin config tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	snapshot.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO config_snapshots (
			price_fiat_minor, min_unlock_fiat_minor, payout_accounts,
			community_invite_link, default_apy_basis_points, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING version
	`

	err = tx.QueryRow(ctx, query,
		snapshot.PriceFiatMinorUnits,
		snapshot.MinUnlockFiatMinor,
		snapshot.PayoutAccounts,
		snapshot.CommunityInviteLink,
		snapshot.DefaultAPYBasisPoints,
		snapshot.UpdatedAt,
	).Scan(&snapshot.Version)
	if err != nil {
		return fmt.Errorf("failed to insert config snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit config snapshot: %w", err)
	}

	return nil
}

// GetLatest loads the most recently committed snapshot.
func (r *ConfigRepository) GetLatest(ctx context.Context) (*models.ConfigSnapshot, error) {
	query := `
		SELECT version, price_fiat_minor, min_unlock_fiat_minor, payout_accounts,
		       community_invite_link, default_apy_basis_points, updated_at
		FROM config_snapshots
		ORDER BY version DESC
		LIMIT 1
	`

	var snapshot models.ConfigSnapshot
	err := r.db.Pool().QueryRow(ctx, query).Scan(
		&snapshot.Version,
		&snapshot.PriceFiatMinorUnits,
		&snapshot.MinUnlockFiatMinor,
		&snapshot.PayoutAccounts,
		&snapshot.CommunityInviteLink,
		&snapshot.DefaultAPYBasisPoints,
		&snapshot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to load config snapshot: %w", err)
	}

	if snapshot.PayoutAccounts == nil {
		snapshot.PayoutAccounts = []string{}
	}

	return &snapshot, nil
}
