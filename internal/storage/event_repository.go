package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/token-gate/internal/models"
	"github.com/token-gate/internal/types"
)

// EventRepository appends staking events to ClickHouse and serves history
// queries. Amounts are stored as strings to keep full decimal precision.
type EventRepository struct {
	db *ClickHouseDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *ClickHouseDB) *EventRepository {
	return &EventRepository{db: db}
}

// Append writes one event row. Events are written best-effort after the
// owning mutation has committed; the caller logs failures instead of
// rolling back.
func (r *EventRepository) Append(ctx context.Context, event *models.StakingEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO staking_events
			(id, account_id, kind, amount, principal_after, apy_basis_points, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		event.ID,
		event.AccountID,
		string(event.Kind),
		event.Amount.String(),
		event.PrincipalAfter.String(),
		event.APYBasisPoints,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append staking event: %w", err)
	}

	return nil
}

// ListByAccount returns the most recent events for one account, newest
// first, capped at limit.
func (r *EventRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.StakingEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, account_id, kind, amount, principal_after, apy_basis_points, occurred_at
		FROM staking_events
		WHERE account_id = ?
		ORDER BY occurred_at DESC
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query staking events: %w", err)
	}
	defer rows.Close()

	var events []*models.StakingEvent
	for rows.Next() {
		var (
			event          models.StakingEvent
			kind           string
			amount         string
			principalAfter string
		)
		if err := rows.Scan(
			&event.ID,
			&event.AccountID,
			&kind,
			&amount,
			&principalAfter,
			&event.APYBasisPoints,
			&event.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan staking event: %w", err)
		}

		event.Kind = types.StakingEventKind(kind)
		if event.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount in event %s: %w", event.ID, err)
		}
		if event.PrincipalAfter, err = decimal.NewFromString(principalAfter); err != nil {
			return nil, fmt.Errorf("bad principal in event %s: %w", event.ID, err)
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}
