package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/token-gate/internal/models"
	"github.com/token-gate/internal/types"
)

// ErrAccountNotFound is returned when no row exists for the requested id.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository persists accounts and their embedded stake positions
type AccountRepository struct {
	db *PostgresDB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *PostgresDB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
	id, state, wallet_address, pending_reference,
	pending_since, approved_at, revoked_at,
	principal, staked_since, last_accrual_at, unclaimed_rewards,
	created_at, updated_at
`

// Save upserts the full account record. The registry calls this before
// committing any in-memory mutation, so a failed write leaves the
// committed state untouched.
func (r *AccountRepository) Save(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			wallet_address = EXCLUDED.wallet_address,
			pending_reference = EXCLUDED.pending_reference,
			pending_since = EXCLUDED.pending_since,
			approved_at = EXCLUDED.approved_at,
			revoked_at = EXCLUDED.revoked_at,
			principal = EXCLUDED.principal,
			staked_since = EXCLUDED.staked_since,
			last_accrual_at = EXCLUDED.last_accrual_at,
			unclaimed_rewards = EXCLUDED.unclaimed_rewards,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		account.ID,
		string(account.State),
		nullIfEmpty(account.WalletAddress),
		nullIfEmpty(account.PendingReference),
		account.PendingSince,
		account.ApprovedAt,
		account.RevokedAt,
		account.Stake.Principal,
		account.Stake.StakedSince,
		account.Stake.LastAccrualAt,
		account.Stake.UnclaimedRewards,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.ID, err)
	}

	return nil
}

// GetByID retrieves an account by id, returning ErrAccountNotFound when
// no row exists.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}

	return account, nil
}

// ListStaked returns every account with a non-zero principal, ordered by
// id so settlement passes are deterministic.
func (r *AccountRepository) ListStaked(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE principal > 0 ORDER BY id`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list staked accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staked account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// CountStaked returns the number of accounts with a non-zero principal.
func (r *AccountRepository) CountStaked(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE principal > 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count staked accounts: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account       models.Account
		state         string
		wallet        *string
		reference     *string
		principal     decimal.Decimal
		unclaimed     decimal.Decimal
		stakedSince   *time.Time
		lastAccrualAt *time.Time
	)

	err := row.Scan(
		&account.ID,
		&state,
		&wallet,
		&reference,
		&account.PendingSince,
		&account.ApprovedAt,
		&account.RevokedAt,
		&principal,
		&stakedSince,
		&lastAccrualAt,
		&unclaimed,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.State = types.MembershipState(state)
	if wallet != nil {
		account.WalletAddress = *wallet
	}
	if reference != nil {
		account.PendingReference = *reference
	}
	account.Stake = models.StakePosition{
		Principal:        principal,
		StakedSince:      stakedSince,
		LastAccrualAt:    lastAccrualAt,
		UnclaimedRewards: unclaimed,
	}

	return &account, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
