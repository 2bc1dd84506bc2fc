// Package models defines the persistence models for accounts, the staking
// pool, configuration snapshots and the staking event history.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/token-gate/internal/types"
)

// Account is the internal record for one external chat identity. It owns
// the membership state and the embedded staking position. All mutation
// goes through the membership state machine or the staking ledger while
// the registry holds the account's lock.
type Account struct {
	ID               string                `json:"id"`
	State            types.MembershipState `json:"state"`
	WalletAddress    string                `json:"walletAddress,omitempty"`
	PendingReference string                `json:"pendingReference,omitempty"`
	PendingSince     *time.Time            `json:"pendingSince,omitempty"`
	ApprovedAt       *time.Time            `json:"approvedAt,omitempty"`
	RevokedAt        *time.Time            `json:"revokedAt,omitempty"`
	Stake            StakePosition         `json:"stake"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// StakePosition tracks the staked principal and reward accrual state for
// one account. StakedSince is nil while principal is zero.
type StakePosition struct {
	Principal        decimal.Decimal `json:"principal"`
	StakedSince      *time.Time      `json:"stakedSince,omitempty"`
	LastAccrualAt    *time.Time      `json:"lastAccrualAt,omitempty"`
	UnclaimedRewards decimal.Decimal `json:"unclaimedRewards"`
}

// NewAccount creates an unregistered account with an empty position.
func NewAccount(id string, now time.Time) *Account {
	return &Account{
		ID:    id,
		State: types.StateUnregistered,
		Stake: StakePosition{
			Principal:        decimal.Zero,
			UnclaimedRewards: decimal.Zero,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers outside the account's lock never
// alias the registry's record.
func (a *Account) Clone() *Account {
	clone := *a
	clone.PendingSince = cloneTime(a.PendingSince)
	clone.ApprovedAt = cloneTime(a.ApprovedAt)
	clone.RevokedAt = cloneTime(a.RevokedAt)
	clone.Stake.StakedSince = cloneTime(a.Stake.StakedSince)
	clone.Stake.LastAccrualAt = cloneTime(a.Stake.LastAccrualAt)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
