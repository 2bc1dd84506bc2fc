package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/token-gate/internal/gate"
	"github.com/token-gate/internal/logging"
	"github.com/token-gate/internal/models"
	"github.com/token-gate/internal/registry"
	"github.com/token-gate/internal/storage"
	"github.com/token-gate/internal/types"
)

// secondsPerYear is the fixed accrual year. Leap years are not
// special-cased.
const secondsPerYear = 365 * 24 * 3600

// PoolRepository interface for pool persistence
type PoolRepository interface {
	Save(ctx context.Context, pool *models.Pool) error
	Get(ctx context.Context) (*models.Pool, error)
}

// EventAppender interface for the staking event history. Appends are
// best-effort: a history failure never rolls back a committed mutation.
type EventAppender interface {
	Append(ctx context.Context, event *models.StakingEvent) error
}

// StakingLedger records stake, unstake and claim operations and accrues
// time-weighted rewards in fixed-point arithmetic. The pool rate and
// total are guarded by their own mutex, separate from the per-account
// locks the registry holds during settlements.
type StakingLedger struct {
	registry *registry.Registry
	poolRepo PoolRepository
	events   EventAppender
	logger   *logging.Logger

	poolMu sync.Mutex
	pool   *models.Pool

	now func() time.Time
}

// NewStakingLedger loads the pool, seeding it at defaultAPY basis points
// when none exists yet. The durable total is recomputed from account
// principals so a stale pool row cannot survive a restart.
func NewStakingLedger(
	ctx context.Context,
	reg *registry.Registry,
	poolRepo PoolRepository,
	events EventAppender,
	logger *logging.Logger,
	defaultAPY int64,
) (*StakingLedger, error) {
	pool, err := poolRepo.Get(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrPoolNotFound) {
			return nil, &types.ServiceError{
				Code:    types.CodeStorageUnavailable,
				Message: "failed to load staking pool",
			}
		}
		pool = &models.Pool{
			APYBasisPoints: defaultAPY,
			TotalStaked:    decimal.Zero,
		}
		if err := poolRepo.Save(ctx, pool); err != nil {
			return nil, &types.ServiceError{
				Code:    types.CodeStorageUnavailable,
				Message: "failed to seed staking pool",
			}
		}
	}

	ledger := &StakingLedger{
		registry: reg,
		poolRepo: poolRepo,
		events:   events,
		logger:   logger,
		pool:     pool,
		now:      func() time.Time { return time.Now().UTC() },
	}

	if err := ledger.rebuildTotal(ctx); err != nil {
		return nil, err
	}

	return ledger, nil
}

// SetNowFunc overrides the ledger clock, used by tests.
func (l *StakingLedger) SetNowFunc(now func() time.Time) {
	l.now = now
}

// rebuildTotal recomputes TotalStaked from the per-account principals,
// which are the durable source of truth.
func (l *StakingLedger) rebuildTotal(ctx context.Context) error {
	ids, err := l.registry.StakedAccountIDs(ctx)
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, id := range ids {
		account, err := l.registry.Get(ctx, id)
		if err != nil {
			return err
		}
		total = total.Add(account.Stake.Principal)
	}

	l.poolMu.Lock()
	l.pool.TotalStaked = total
	l.poolMu.Unlock()
	return nil
}

// Stake settles pending rewards at the current rate, then adds amount to
// the principal and the pool total.
func (l *StakingLedger) Stake(ctx context.Context, accountID string, amount decimal.Decimal) (*types.PositionSnapshot, error) {
	if !amount.IsPositive() {
		return nil, invalidAmount("stake amount must be positive")
	}

	var apy int64
	var snapshot *types.PositionSnapshot
	err := l.registry.WithAccount(ctx, accountID, true, func(account *models.Account) (bool, error) {
		// Rate is read under the account lock so settlement uses the
		// rate in effect at the settlement instant.
		apy = l.apy()
		now := l.now()
		settle(&account.Stake, apy, now)

		account.Stake.Principal = account.Stake.Principal.Add(amount)
		if account.Stake.StakedSince == nil {
			stakedSince := now
			account.Stake.StakedSince = &stakedSince
		}

		snapshot = positionOf(account, apy, now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	l.adjustTotal(ctx, amount)
	l.appendEvent(ctx, accountID, types.EventStake, amount, snapshot.Principal, apy)
	return snapshot, nil
}

// Unstake settles pending rewards, then withdraws amount from the
// principal and the pool total. The accrued rewards stay claimable.
func (l *StakingLedger) Unstake(ctx context.Context, accountID string, amount decimal.Decimal) (*types.PositionSnapshot, error) {
	if !amount.IsPositive() {
		return nil, invalidAmount("unstake amount must be positive")
	}

	var apy int64
	var snapshot *types.PositionSnapshot
	err := l.registry.WithAccount(ctx, accountID, false, func(account *models.Account) (bool, error) {
		apy = l.apy()
		if amount.GreaterThan(account.Stake.Principal) {
			return false, &types.ServiceError{
				Code:    types.CodeInsufficientPrincipal,
				Message: "unstake amount exceeds staked principal",
				Details: map[string]interface{}{
					"principal": account.Stake.Principal.String(),
					"requested": amount.String(),
				},
			}
		}

		now := l.now()
		settle(&account.Stake, apy, now)

		account.Stake.Principal = account.Stake.Principal.Sub(amount)
		if account.Stake.Principal.IsZero() {
			account.Stake.StakedSince = nil
		}

		snapshot = positionOf(account, apy, now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	l.adjustTotal(ctx, amount.Neg())
	l.appendEvent(ctx, accountID, types.EventUnstake, amount, snapshot.Principal, apy)
	return snapshot, nil
}

// ClaimResult reports what a claim paid out
type ClaimResult struct {
	AccountID string          `json:"accountId"`
	Claimed   decimal.Decimal `json:"claimed"`
}

// Claim settles pending rewards and zeroes them out. Claiming with
// nothing accrued returns zero, not an error.
func (l *StakingLedger) Claim(ctx context.Context, accountID string) (*ClaimResult, error) {
	var apy int64
	result := &ClaimResult{AccountID: accountID, Claimed: decimal.Zero}
	var principalAfter decimal.Decimal

	err := l.registry.WithAccount(ctx, accountID, true, func(account *models.Account) (bool, error) {
		apy = l.apy()
		now := l.now()
		settle(&account.Stake, apy, now)

		result.Claimed = account.Stake.UnclaimedRewards
		principalAfter = account.Stake.Principal
		if result.Claimed.IsZero() {
			// Settlement may still have advanced lastAccrualAt.
			return account.Stake.LastAccrualAt != nil, nil
		}

		account.Stake.UnclaimedRewards = decimal.Zero
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if result.Claimed.IsPositive() {
		l.appendEvent(ctx, accountID, types.EventClaim, result.Claimed, principalAfter, apy)
	}
	return result, nil
}

// PositionOf projects the position as of now, including unsettled
// accrual, without mutating any state. Unknown accounts read as an empty
// position.
func (l *StakingLedger) PositionOf(ctx context.Context, accountID string) (*types.PositionSnapshot, error) {
	apy := l.apy()

	account, err := l.registry.Get(ctx, accountID)
	if err != nil {
		if types.IsCode(err, types.CodeNotFound) {
			return &types.PositionSnapshot{
				AccountID:        accountID,
				Principal:        decimal.Zero,
				UnclaimedRewards: decimal.Zero,
				APYBasisPoints:   apy,
			}, nil
		}
		return nil, err
	}

	return positionOf(account, apy, l.now()), nil
}

// SetAPY installs a new pool rate. Every account with principal > 0 is
// settled at the old rate first, each under its own lock, so no accrual
// interval straddles the rate change.
func (l *StakingLedger) SetAPY(ctx context.Context, capability gate.Capability, basisPoints int64) error {
	if !capability.Valid() {
		return &types.ServiceError{
			Code:    types.CodeUnauthorized,
			Message: "setting the pool APY requires admin authorization",
		}
	}
	if basisPoints < 0 {
		return &types.ServiceError{
			Code:    types.CodeInvalidValue,
			Message: "apy basis points must not be negative",
		}
	}

	oldAPY := l.apy()

	ids, err := l.registry.StakedAccountIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		err := l.registry.WithAccount(ctx, id, false, func(account *models.Account) (bool, error) {
			settle(&account.Stake, oldAPY, l.now())
			return true, nil
		})
		if err != nil {
			return err
		}
	}

	l.poolMu.Lock()
	defer l.poolMu.Unlock()

	updated := *l.pool
	updated.APYBasisPoints = basisPoints
	if err := l.poolRepo.Save(ctx, &updated); err != nil {
		return &types.ServiceError{
			Code:    types.CodeStorageUnavailable,
			Message: "failed to persist pool rate",
		}
	}
	l.pool = &updated

	l.appendEvent(ctx, "", types.EventAPYChange, decimal.NewFromInt(basisPoints), decimal.Zero, basisPoints)
	return nil
}

// PoolInfo reports pool-wide figures.
func (l *StakingLedger) PoolInfo(ctx context.Context) (*types.PoolInfo, error) {
	stakers, err := l.registry.StakedCount(ctx)
	if err != nil {
		return nil, err
	}

	l.poolMu.Lock()
	defer l.poolMu.Unlock()
	return &types.PoolInfo{
		TotalStaked:    l.pool.TotalStaked,
		APYBasisPoints: l.pool.APYBasisPoints,
		ActiveStakers:  stakers,
	}, nil
}

// apy reads the current rate under the pool mutex.
func (l *StakingLedger) apy() int64 {
	l.poolMu.Lock()
	defer l.poolMu.Unlock()
	return l.pool.APYBasisPoints
}

// adjustTotal applies a principal delta to the pool total. The durable
// pool row is a projection of the per-account principals; a failed save
// is logged and repaired by rebuildTotal on the next restart.
func (l *StakingLedger) adjustTotal(ctx context.Context, delta decimal.Decimal) {
	l.poolMu.Lock()
	defer l.poolMu.Unlock()

	l.pool.TotalStaked = l.pool.TotalStaked.Add(delta)
	if err := l.poolRepo.Save(ctx, l.pool); err != nil && l.logger != nil {
		l.logger.WithError(err).Warn("failed to persist pool total")
	}
}

func (l *StakingLedger) appendEvent(ctx context.Context, accountID string, kind types.StakingEventKind, amount, principalAfter decimal.Decimal, apy int64) {
	if l.events == nil {
		return
	}

	event := &models.StakingEvent{
		AccountID:      accountID,
		Kind:           kind,
		Amount:         amount,
		PrincipalAfter: principalAfter,
		APYBasisPoints: apy,
		OccurredAt:     l.now(),
	}
	if err := l.events.Append(ctx, event); err != nil && l.logger != nil {
		l.logger.WithError(err).WithFields(map[string]interface{}{
			"accountId": accountID,
			"kind":      string(kind),
		}).Warn("failed to append staking event")
	}
}

// settle converts elapsed time into accrued rewards and advances the
// accrual reference point. Rewards accrue only while principal > 0.
func settle(position *models.StakePosition, apyBasisPoints int64, now time.Time) {
	if position.LastAccrualAt != nil && position.Principal.IsPositive() {
		elapsed := now.Sub(*position.LastAccrualAt)
		accrued := accrue(position.Principal, apyBasisPoints, elapsed)
		position.UnclaimedRewards = position.UnclaimedRewards.Add(accrued)
	}
	accrualAt := now
	position.LastAccrualAt = &accrualAt
}

// accrue computes principal * (bps/10000) * (elapsed/secondsPerYear) as a
// single fixed-point division so no precision is lost to intermediate
// rounding.
func accrue(principal decimal.Decimal, apyBasisPoints int64, elapsed time.Duration) decimal.Decimal {
	if elapsed <= 0 || apyBasisPoints == 0 || !principal.IsPositive() {
		return decimal.Zero
	}

	// Exact decimal seconds: nanoseconds scaled by 10^-9.
	seconds := decimal.New(elapsed.Nanoseconds(), -9)
	numerator := principal.Mul(decimal.NewFromInt(apyBasisPoints)).Mul(seconds)
	denominator := decimal.NewFromInt(10000 * secondsPerYear)
	return numerator.Div(denominator)
}

// positionOf projects a position as of now without touching the account.
func positionOf(account *models.Account, apyBasisPoints int64, now time.Time) *types.PositionSnapshot {
	stake := account.Stake
	unclaimed := stake.UnclaimedRewards
	if stake.LastAccrualAt != nil && stake.Principal.IsPositive() {
		unclaimed = unclaimed.Add(accrue(stake.Principal, apyBasisPoints, now.Sub(*stake.LastAccrualAt)))
	}

	return &types.PositionSnapshot{
		AccountID:        account.ID,
		Principal:        stake.Principal,
		UnclaimedRewards: unclaimed,
		APYBasisPoints:   apyBasisPoints,
		StakedSince:      stake.StakedSince,
		LastAccrualAt:    stake.LastAccrualAt,
	}
}

func invalidAmount(message string) error {
	return &types.ServiceError{Code: types.CodeInvalidAmount, Message: message}
}
