// Package registry implements the account registry: the exclusive owner
// of all account records, with per-account serialization and write-through
// persistence.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/token-gate/internal/models"
	"github.com/token-gate/internal/storage"
	"github.com/token-gate/internal/types"
)

// AccountRepository is the persistence contract the registry depends on.
type AccountRepository interface {
	Save(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	ListStaked(ctx context.Context) ([]*models.Account, error)
	CountStaked(ctx context.Context) (int, error)
}

// Registry owns the in-memory account records. Every operation on one
// account runs under that account's mutex; operations on different
// accounts proceed in parallel. Mutations are persisted before the
// in-memory record is replaced, so a storage failure leaves the
// committed state untouched.
type Registry struct {
	repo AccountRepository

	mu       sync.RWMutex
	accounts map[string]*models.Account
	locks    map[string]*sync.Mutex

	now func() time.Time
}

// NewRegistry creates an empty registry backed by repo.
func NewRegistry(repo AccountRepository) *Registry {
	return &Registry{
		repo:     repo,
		accounts: make(map[string]*models.Account),
		locks:    make(map[string]*sync.Mutex),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the registry clock, used by tests.
func (r *Registry) SetNowFunc(now func() time.Time) {
	r.now = now
}

// lockFor returns the mutex for one account, creating it on first use.
// Double-checked the way the API rate limiter manages its per-user map.
func (r *Registry) lockFor(id string) *sync.Mutex {
	r.mu.RLock()
	lock, exists := r.locks[id]
	r.mu.RUnlock()
	if exists {
		return lock
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if lock, exists := r.locks[id]; exists {
		return lock
	}
	lock = &sync.Mutex{}
	r.locks[id] = lock
	return lock
}

// loadLocked fetches the account into memory, creating it when create is
// set. Caller must hold the account's mutex.
func (r *Registry) loadLocked(ctx context.Context, id string, create bool) (*models.Account, error) {
	r.mu.RLock()
	account, cached := r.accounts[id]
	r.mu.RUnlock()
	if cached {
		return account, nil
	}

	account, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrAccountNotFound) {
			return nil, &types.ServiceError{
				Code:    types.CodeStorageUnavailable,
				Message: "account storage unavailable",
				Details: map[string]interface{}{"accountId": id},
			}
		}
		if !create {
			return nil, &types.ServiceError{
				Code:    types.CodeNotFound,
				Message: "account not found",
				Details: map[string]interface{}{"accountId": id},
			}
		}
		account = models.NewAccount(id, r.now())
		if err := r.repo.Save(ctx, account); err != nil {
			return nil, &types.ServiceError{
				Code:    types.CodeStorageUnavailable,
				Message: "failed to persist new account",
				Details: map[string]interface{}{"accountId": id},
			}
		}
	}

	r.mu.Lock()
	r.accounts[id] = account
	r.mu.Unlock()
	return account, nil
}

// WithAccount runs fn against a working copy of the account under the
// account's lock. When fn reports a mutation, the copy is persisted and
// then committed to memory; when persistence fails, the mutation is
// rejected and the committed record survives unchanged.
func (r *Registry) WithAccount(ctx context.Context, id string, create bool, fn func(account *models.Account) (mutated bool, err error)) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := r.loadLocked(ctx, id, create)
	if err != nil {
		return err
	}

	working := current.Clone()
	mutated, err := fn(working)
	if err != nil {
		return err
	}
	if !mutated {
		return nil
	}

	if err := r.repo.Save(ctx, working); err != nil {
		return &types.ServiceError{
			Code:    types.CodeStorageUnavailable,
			Message: "failed to persist account mutation",
			Details: map[string]interface{}{"accountId": id},
		}
	}

	r.mu.Lock()
	r.accounts[id] = working
	r.mu.Unlock()
	return nil
}

// GetOrCreate returns a copy of the account, creating it lazily on first
// interaction.
func (r *Registry) GetOrCreate(ctx context.Context, id string) (*models.Account, error) {
	var snapshot *models.Account
	err := r.WithAccount(ctx, id, true, func(account *models.Account) (bool, error) {
		snapshot = account.Clone()
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Get returns a copy of the account or NOT_FOUND.
func (r *Registry) Get(ctx context.Context, id string) (*models.Account, error) {
	var snapshot *models.Account
	err := r.WithAccount(ctx, id, false, func(account *models.Account) (bool, error) {
		snapshot = account.Clone()
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// StakedAccountIDs returns the ids of every account with principal > 0,
// merging storage with records only present in memory.
func (r *Registry) StakedAccountIDs(ctx context.Context) ([]string, error) {
	staked, err := r.repo.ListStaked(ctx)
	if err != nil {
		return nil, &types.ServiceError{
			Code:    types.CodeStorageUnavailable,
			Message: "failed to list staked accounts",
		}
	}

	seen := make(map[string]bool, len(staked))
	ids := make([]string, 0, len(staked))
	for _, account := range staked {
		seen[account.ID] = true
		ids = append(ids, account.ID)
	}

	r.mu.RLock()
	for id, account := range r.accounts {
		if !seen[id] && account.Stake.Principal.IsPositive() {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	return ids, nil
}

// StakedCount reports how many accounts hold a non-zero principal.
// Mutations persist before they commit to memory, so the storage count
// is authoritative.
func (r *Registry) StakedCount(ctx context.Context) (int, error) {
	count, err := r.repo.CountStaked(ctx)
	if err != nil {
		return 0, &types.ServiceError{
			Code:    types.CodeStorageUnavailable,
			Message: "failed to count staked accounts",
		}
	}
	return count, nil
}
