// Package types provides common type definitions for the token gate service.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// MembershipState represents where an account sits in the gating lifecycle
type MembershipState string

const (
	// StateUnregistered represents an account that has never requested verification
	StateUnregistered MembershipState = "unregistered"
	// StatePending represents an account awaiting admin approval
	StatePending MembershipState = "pending"
	// StateApproved represents an account admitted to the community
	StateApproved MembershipState = "approved"
	// StateRevoked represents an account whose membership was withdrawn
	StateRevoked MembershipState = "revoked"
)

// Valid reports whether s is one of the known membership states.
func (s MembershipState) Valid() bool {
	switch s {
	case StateUnregistered, StatePending, StateApproved, StateRevoked:
		return true
	}
	return false
}

// StakingEventKind classifies entries in the staking event history
type StakingEventKind string

const (
	// EventStake represents principal being added to a position
	EventStake StakingEventKind = "stake"
	// EventUnstake represents principal being withdrawn from a position
	EventUnstake StakingEventKind = "unstake"
	// EventClaim represents accrued rewards being claimed
	EventClaim StakingEventKind = "claim"
	// EventAPYChange represents an admin change of the pool rate
	EventAPYChange StakingEventKind = "apy_change"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Error codes used across the core. ALREADY_PENDING and ALREADY_APPROVED
// are success-with-info signals; the transport layer maps them to 200.
const (
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidValue          = "INVALID_VALUE"
	CodeInvalidAmount         = "INVALID_AMOUNT"
	CodeIllegalTransition     = "ILLEGAL_TRANSITION"
	CodeAlreadyPending        = "ALREADY_PENDING"
	CodeAlreadyApproved       = "ALREADY_APPROVED"
	CodeInsufficientPrincipal = "INSUFFICIENT_PRINCIPAL"
	CodeStorageUnavailable    = "STORAGE_UNAVAILABLE"
	CodeUpstreamUnavailable   = "UPSTREAM_UNAVAILABLE"
)

// IsCode reports whether err is a ServiceError carrying the given code.
func IsCode(err error, code string) bool {
	serviceErr, ok := err.(*ServiceError)
	return ok && serviceErr.Code == code
}

// MembershipStatus is the read-only projection returned by status lookups
type MembershipStatus struct {
	AccountID     string          `json:"accountId"`
	State         MembershipState `json:"state"`
	WalletAddress string          `json:"walletAddress,omitempty"`
	PendingSince  *time.Time      `json:"pendingSince,omitempty"`
	ApprovedAt    *time.Time      `json:"approvedAt,omitempty"`
	RevokedAt     *time.Time      `json:"revokedAt,omitempty"`
}

// PositionSnapshot is the read-only projection of a staking position.
// UnclaimedRewards includes accrual up to the snapshot instant even
// though the underlying position has not been settled.
type PositionSnapshot struct {
	AccountID        string          `json:"accountId"`
	Principal        decimal.Decimal `json:"principal"`
	UnclaimedRewards decimal.Decimal `json:"unclaimedRewards"`
	APYBasisPoints   int64           `json:"apyBasisPoints"`
	StakedSince      *time.Time      `json:"stakedSince,omitempty"`
	LastAccrualAt    *time.Time      `json:"lastAccrualAt,omitempty"`
}

// PoolInfo aggregates pool-wide staking figures
type PoolInfo struct {
	TotalStaked    decimal.Decimal `json:"totalStaked"`
	APYBasisPoints int64           `json:"apyBasisPoints"`
	ActiveStakers  int             `json:"activeStakers"`
}

// WalletBalance is the oracle's view of an address
type WalletBalance struct {
	Address      string           `json:"address"`
	ChainID      int64            `json:"chainId"`
	Native       decimal.Decimal  `json:"native"`
	Token        *decimal.Decimal `json:"token,omitempty"`
	TokenAddress string           `json:"tokenAddress,omitempty"`
	TokenSymbol  string           `json:"tokenSymbol,omitempty"`
	FetchedAt    time.Time        `json:"fetchedAt"`
}
