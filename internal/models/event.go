package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/token-gate/internal/types"
)

// StakingEvent is one append-only history row for a staking mutation.
// For apy_change events AccountID is empty and Amount carries the new
// rate in basis points.
type StakingEvent struct {
	ID             string                 `json:"id"`
	AccountID      string                 `json:"accountId,omitempty"`
	Kind           types.StakingEventKind `json:"kind"`
	Amount         decimal.Decimal        `json:"amount"`
	PrincipalAfter decimal.Decimal        `json:"principalAfter"`
	APYBasisPoints int64                  `json:"apyBasisPoints"`
	OccurredAt     time.Time              `json:"occurredAt"`
}
