package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/token-gate/internal/gate"
	"github.com/token-gate/internal/models"
	"github.com/token-gate/internal/registry"
	"github.com/token-gate/internal/types"
)

// MembershipService advances accounts through the gating state machine:
// Unregistered -> Pending -> Approved -> Revoked -> Pending again. A
// revoked account must pass through Pending before it can be approved
// again.
type MembershipService struct {
	registry *registry.Registry
	now      func() time.Time
}

// NewMembershipService creates a new membership service
func NewMembershipService(reg *registry.Registry) *MembershipService {
	return &MembershipService{
		registry: reg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the service clock, used by tests.
func (s *MembershipService) SetNowFunc(now func() time.Time) {
	s.now = now
}

// RequestVerification moves an unregistered or revoked account to
// Pending, recording the wallet and the payment reference. Repeating the
// request while Pending keeps the original reference and signals
// ALREADY_PENDING; while Approved it mutates nothing and signals
// ALREADY_APPROVED. Both are success-with-info, not failures.
func (s *MembershipService) RequestVerification(ctx context.Context, accountID, walletAddress, reference string) (*types.MembershipStatus, error) {
	if walletAddress != "" && !common.IsHexAddress(walletAddress) {
		return nil, &types.ServiceError{
			Code:    types.CodeInvalidValue,
			Message: "invalid wallet address",
			Details: map[string]interface{}{"walletAddress": walletAddress},
		}
	}

	var status *types.MembershipStatus
	var infoErr error
	err := s.registry.WithAccount(ctx, accountID, true, func(account *models.Account) (bool, error) {
		switch account.State {
		case types.StatePending:
			status = statusOf(account)
			infoErr = &types.ServiceError{
				Code:    types.CodeAlreadyPending,
				Message: "verification already pending",
			}
			return false, nil
		case types.StateApproved:
			status = statusOf(account)
			infoErr = &types.ServiceError{
				Code:    types.CodeAlreadyApproved,
				Message: "account is already approved",
			}
			return false, nil
		}

		now := s.now()
		account.State = types.StatePending
		if walletAddress != "" {
			account.WalletAddress = walletAddress
		}
		account.PendingReference = reference
		account.PendingSince = &now
		status = statusOf(account)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return status, infoErr
}

// Grant approves a pending account. Granting an already approved account
// is a no-op success so admin retries are harmless; any other state is an
// illegal transition.
func (s *MembershipService) Grant(ctx context.Context, capability gate.Capability, accountID string) (*types.MembershipStatus, error) {
	if !capability.Valid() {
		return nil, &types.ServiceError{
			Code:    types.CodeUnauthorized,
			Message: "grant requires admin authorization",
		}
	}

	var status *types.MembershipStatus
	err := s.registry.WithAccount(ctx, accountID, false, func(account *models.Account) (bool, error) {
		switch account.State {
		case types.StateApproved:
			status = statusOf(account)
			return false, nil
		case types.StatePending:
			now := s.now()
			account.State = types.StateApproved
			account.ApprovedAt = &now
			account.PendingReference = ""
			account.PendingSince = nil
			status = statusOf(account)
			return true, nil
		default:
			return false, &types.ServiceError{
				Code:    types.CodeIllegalTransition,
				Message: "account is not pending",
				Details: map[string]interface{}{"state": string(account.State)},
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// Revoke withdraws membership from an approved account. The staking
// position is untouched: membership and staking are orthogonal.
func (s *MembershipService) Revoke(ctx context.Context, capability gate.Capability, accountID string) (*types.MembershipStatus, error) {
	if !capability.Valid() {
		return nil, &types.ServiceError{
			Code:    types.CodeUnauthorized,
			Message: "revoke requires admin authorization",
		}
	}

	var status *types.MembershipStatus
	err := s.registry.WithAccount(ctx, accountID, false, func(account *models.Account) (bool, error) {
		if account.State != types.StateApproved {
			return false, &types.ServiceError{
				Code:    types.CodeIllegalTransition,
				Message: "account is not approved",
				Details: map[string]interface{}{"state": string(account.State)},
			}
		}

		now := s.now()
		account.State = types.StateRevoked
		account.RevokedAt = &now
		status = statusOf(account)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// Status reports the membership state. Unknown accounts read as
// Unregistered; the lookup never creates a record.
func (s *MembershipService) Status(ctx context.Context, accountID string) (*types.MembershipStatus, error) {
	account, err := s.registry.Get(ctx, accountID)
	if err != nil {
		if types.IsCode(err, types.CodeNotFound) {
			return &types.MembershipStatus{
				AccountID: accountID,
				State:     types.StateUnregistered,
			}, nil
		}
		return nil, err
	}
	return statusOf(account), nil
}

func statusOf(account *models.Account) *types.MembershipStatus {
	return &types.MembershipStatus{
		AccountID:     account.ID,
		State:         account.State,
		WalletAddress: account.WalletAddress,
		PendingSince:  account.PendingSince,
		ApprovedAt:    account.ApprovedAt,
		RevokedAt:     account.RevokedAt,
	}
}
