package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/token-gate/internal/models"
	"github.com/token-gate/internal/registry"
	"github.com/token-gate/internal/storage"
)

// Mock repositories shared by the core service tests.

type mockAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	failSave bool
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[string]*models.Account)}
}

func (m *mockAccountRepo) Save(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return fmt.Errorf("save failed")
	}
	m.accounts[account.ID] = account.Clone()
	return nil
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		return account.Clone(), nil
	}
	return nil, storage.ErrAccountNotFound
}

func (m *mockAccountRepo) ListStaked(ctx context.Context) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var staked []*models.Account
	for _, account := range m.accounts {
		if account.Stake.Principal.IsPositive() {
			staked = append(staked, account.Clone())
		}
	}
	return staked, nil
}

func (m *mockAccountRepo) CountStaked(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, account := range m.accounts {
		if account.Stake.Principal.IsPositive() {
			count++
		}
	}
	return count, nil
}

type mockConfigRepo struct {
	mu        sync.Mutex
	snapshots []*models.ConfigSnapshot
	failSave  bool
}

func (m *mockConfigRepo) Save(ctx context.Context, snapshot *models.ConfigSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return fmt.Errorf("save failed")
	}
	snapshot.Version = int64(len(m.snapshots) + 1)
	m.snapshots = append(m.snapshots, snapshot.Clone())
	return nil
}

func (m *mockConfigRepo) GetLatest(ctx context.Context) (*models.ConfigSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return nil, storage.ErrConfigNotFound
	}
	return m.snapshots[len(m.snapshots)-1].Clone(), nil
}

type mockPoolRepo struct {
	mu       sync.Mutex
	pool     *models.Pool
	failSave bool
}

func (m *mockPoolRepo) Save(ctx context.Context, pool *models.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return fmt.Errorf("save failed")
	}
	saved := *pool
	m.pool = &saved
	return nil
}

func (m *mockPoolRepo) Get(ctx context.Context) (*models.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool == nil {
		return nil, storage.ErrPoolNotFound
	}
	saved := *m.pool
	return &saved, nil
}

type mockEventAppender struct {
	mu     sync.Mutex
	events []*models.StakingEvent
}

func (m *mockEventAppender) Append(ctx context.Context, event *models.StakingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

func (m *mockEventAppender) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kinds []string
	for _, event := range m.events {
		kinds = append(kinds, string(event.Kind))
	}
	return kinds
}

// fakeClock provides a controllable time source for accrual tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestRegistry wires a registry over the mock repo with the fake clock.
func newTestRegistry(repo *mockAccountRepo, clock *fakeClock) *registry.Registry {
	reg := registry.NewRegistry(repo)
	if clock != nil {
		reg.SetNowFunc(clock.Now)
	}
	return reg
}
