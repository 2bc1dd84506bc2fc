// Package service implements the core of the token gate: the membership
// state machine, the staking ledger and the config store.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/token-gate/internal/config"
	"github.com/token-gate/internal/gate"
	"github.com/token-gate/internal/models"
	"github.com/token-gate/internal/storage"
	"github.com/token-gate/internal/types"
)

// ConfigRepository interface for config snapshot persistence
type ConfigRepository interface {
	Save(ctx context.Context, snapshot *models.ConfigSnapshot) error
	GetLatest(ctx context.Context) (*models.ConfigSnapshot, error)
}

// ConfigStore holds the current operational parameters. Readers always
// see one committed snapshot; updates persist the new version before it
// becomes visible, so a crash mid-update leaves the previous snapshot.
type ConfigStore struct {
	repo ConfigRepository

	mu       sync.RWMutex
	snapshot *models.ConfigSnapshot
}

// NewConfigStore loads the latest committed snapshot, seeding one from
// the process defaults when the store is empty.
func NewConfigStore(ctx context.Context, repo ConfigRepository, defaults config.DefaultsConfig) (*ConfigStore, error) {
	snapshot, err := repo.GetLatest(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrConfigNotFound) {
			return nil, &types.ServiceError{
				Code:    types.CodeStorageUnavailable,
				Message: "failed to load config snapshot",
			}
		}
		snapshot = &models.ConfigSnapshot{
			PriceFiatMinorUnits:   defaults.PriceFiatMinorUnits,
			MinUnlockFiatMinor:    defaults.MinUnlockFiatMinor,
			PayoutAccounts:        []string{},
			CommunityInviteLink:   defaults.CommunityInviteLink,
			DefaultAPYBasisPoints: defaults.APYBasisPoints,
		}
		if err := repo.Save(ctx, snapshot); err != nil {
			return nil, &types.ServiceError{
				Code:    types.CodeStorageUnavailable,
				Message: "failed to seed config snapshot",
			}
		}
	}

	return &ConfigStore{repo: repo, snapshot: snapshot}, nil
}

// Get returns the current snapshot. Never fails.
func (s *ConfigStore) Get() *models.ConfigSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Update applies an admin patch atomically: the candidate snapshot is
// validated and persisted before the visible snapshot is swapped, so a
// reader never observes a half-applied update.
func (s *ConfigStore) Update(ctx context.Context, capability gate.Capability, patch *models.ConfigPatch) (*models.ConfigSnapshot, error) {
	if !capability.Valid() {
		return nil, &types.ServiceError{
			Code:    types.CodeUnauthorized,
			Message: "config update requires admin authorization",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.snapshot.Clone()
	if err := applyPatch(candidate, patch); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, candidate); err != nil {
		return nil, &types.ServiceError{
			Code:    types.CodeStorageUnavailable,
			Message: "failed to persist config snapshot",
		}
	}

	s.snapshot = candidate
	return candidate.Clone(), nil
}

func applyPatch(snapshot *models.ConfigSnapshot, patch *models.ConfigPatch) error {
	if patch.PriceFiatMinorUnits != nil {
		if *patch.PriceFiatMinorUnits < 0 {
			return invalidValue("priceFiatMinorUnits must not be negative")
		}
		snapshot.PriceFiatMinorUnits = *patch.PriceFiatMinorUnits
	}
	if patch.MinUnlockFiatMinor != nil {
		if *patch.MinUnlockFiatMinor < 0 {
			return invalidValue("minUnlockFiatMinorUnits must not be negative")
		}
		snapshot.MinUnlockFiatMinor = *patch.MinUnlockFiatMinor
	}
	if patch.PayoutAccounts != nil {
		accounts := make([]string, 0, len(*patch.PayoutAccounts))
		for _, account := range *patch.PayoutAccounts {
			account = strings.TrimSpace(account)
			if account == "" {
				return invalidValue("payoutAccounts must not contain empty entries")
			}
			accounts = append(accounts, account)
		}
		snapshot.PayoutAccounts = accounts
	}
	if patch.CommunityInviteLink != nil {
		snapshot.CommunityInviteLink = *patch.CommunityInviteLink
	}
	if patch.DefaultAPYBasisPoints != nil {
		if *patch.DefaultAPYBasisPoints < 0 {
			return invalidValue("defaultApyBasisPoints must not be negative")
		}
		snapshot.DefaultAPYBasisPoints = *patch.DefaultAPYBasisPoints
	}
	return nil
}

func invalidValue(message string) error {
	return &types.ServiceError{Code: types.CodeInvalidValue, Message: message}
}
