package service

import (
	"context"
	"testing"

	"github.com/token-gate/internal/config"
	"github.com/token-gate/internal/gate"
	"github.com/token-gate/internal/models"
	"github.com/token-gate/internal/types"
)

var testDefaults = config.DefaultsConfig{
	PriceFiatMinorUnits: 44400,
	MinUnlockFiatMinor:  3900,
	CommunityInviteLink: "https://t.me/+invite",
	APYBasisPoints:      1500,
}

func newTestConfigStore(t *testing.T) (*ConfigStore, *mockConfigRepo, gate.Capability) {
	t.Helper()

	repo := &mockConfigRepo{}
	store, err := NewConfigStore(context.Background(), repo, testDefaults)
	if err != nil {
		t.Fatalf("NewConfigStore() error = %v", err)
	}

	adminGate, err := gate.NewAdminGate("test-admin")
	if err != nil {
		t.Fatalf("NewAdminGate() error = %v", err)
	}
	capability, err := adminGate.Authorize("test-admin")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	return store, repo, capability
}

func TestConfigStoreSeedsDefaults(t *testing.T) {
	store, repo, _ := newTestConfigStore(t)

	snapshot := store.Get()
	if snapshot.PriceFiatMinorUnits != 44400 {
		t.Errorf("price = %d, want seeded default", snapshot.PriceFiatMinorUnits)
	}
	if snapshot.Version == 0 {
		t.Error("seeded snapshot should have been persisted with a version")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.snapshots) != 1 {
		t.Errorf("persisted snapshots = %d, want 1", len(repo.snapshots))
	}
}

func TestConfigStoreLoadsExistingSnapshot(t *testing.T) {
	repo := &mockConfigRepo{}
	existing := &models.ConfigSnapshot{
		PriceFiatMinorUnits:   100,
		MinUnlockFiatMinor:    10,
		PayoutAccounts:        []string{"bank:1"},
		DefaultAPYBasisPoints: 500,
	}
	if err := repo.Save(context.Background(), existing); err != nil {
		t.Fatalf("seed Save() error = %v", err)
	}

	store, err := NewConfigStore(context.Background(), repo, testDefaults)
	if err != nil {
		t.Fatalf("NewConfigStore() error = %v", err)
	}

	if got := store.Get().PriceFiatMinorUnits; got != 100 {
		t.Errorf("price = %d, want the persisted 100, not the default", got)
	}
}

func TestConfigUpdate(t *testing.T) {
	store, _, capability := newTestConfigStore(t)

	price := int64(50000)
	payouts := []string{"bank:il:123", "wallet:0xabc"}
	updated, err := store.Update(context.Background(), capability, &models.ConfigPatch{
		PriceFiatMinorUnits: &price,
		PayoutAccounts:      &payouts,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.PriceFiatMinorUnits != 50000 {
		t.Errorf("price = %d, want 50000", updated.PriceFiatMinorUnits)
	}
	// Untouched fields survive the patch.
	if updated.MinUnlockFiatMinor != 3900 {
		t.Errorf("minUnlock = %d, want untouched 3900", updated.MinUnlockFiatMinor)
	}
	if len(updated.PayoutAccounts) != 2 {
		t.Errorf("payoutAccounts = %v, want 2 entries", updated.PayoutAccounts)
	}
}

func TestConfigUpdateRequiresCapability(t *testing.T) {
	store, _, _ := newTestConfigStore(t)

	var forged gate.Capability
	price := int64(1)
	_, err := store.Update(context.Background(), forged, &models.ConfigPatch{PriceFiatMinorUnits: &price})
	if !types.IsCode(err, types.CodeUnauthorized) {
		t.Errorf("Update() error = %v, want UNAUTHORIZED", err)
	}
}

func TestConfigUpdateRejectsNegativeAndKeepsSnapshotIntact(t *testing.T) {
	store, _, capability := newTestConfigStore(t)
	before := store.Get()

	minUnlock := int64(-1)
	price := int64(99999)
	_, err := store.Update(context.Background(), capability, &models.ConfigPatch{
		PriceFiatMinorUnits: &price,
		MinUnlockFiatMinor:  &minUnlock,
	})
	if !types.IsCode(err, types.CodeInvalidValue) {
		t.Fatalf("Update() error = %v, want INVALID_VALUE", err)
	}

	// Every field of the prior snapshot survives, including the ones the
	// rejected patch tried to change.
	after := store.Get()
	if after.Version != before.Version {
		t.Errorf("version changed: %d -> %d", before.Version, after.Version)
	}
	if after.PriceFiatMinorUnits != before.PriceFiatMinorUnits {
		t.Errorf("price changed: %d -> %d", before.PriceFiatMinorUnits, after.PriceFiatMinorUnits)
	}
	if after.MinUnlockFiatMinor != before.MinUnlockFiatMinor {
		t.Errorf("minUnlock changed: %d -> %d", before.MinUnlockFiatMinor, after.MinUnlockFiatMinor)
	}
	if after.CommunityInviteLink != before.CommunityInviteLink {
		t.Error("communityInviteLink changed on rejected update")
	}
	if after.DefaultAPYBasisPoints != before.DefaultAPYBasisPoints {
		t.Error("defaultApyBasisPoints changed on rejected update")
	}
}

func TestConfigUpdateRejectedWhenPersistenceFails(t *testing.T) {
	store, repo, capability := newTestConfigStore(t)
	before := store.Get()

	repo.mu.Lock()
	repo.failSave = true
	repo.mu.Unlock()

	price := int64(1)
	_, err := store.Update(context.Background(), capability, &models.ConfigPatch{PriceFiatMinorUnits: &price})
	if !types.IsCode(err, types.CodeStorageUnavailable) {
		t.Fatalf("Update() error = %v, want STORAGE_UNAVAILABLE", err)
	}

	if got := store.Get().PriceFiatMinorUnits; got != before.PriceFiatMinorUnits {
		t.Errorf("price = %d, want prior snapshot after failed persistence", got)
	}
}

func TestConfigUpdateRejectsEmptyPayoutEntry(t *testing.T) {
	store, _, capability := newTestConfigStore(t)

	payouts := []string{"bank:1", "  "}
	_, err := store.Update(context.Background(), capability, &models.ConfigPatch{PayoutAccounts: &payouts})
	if !types.IsCode(err, types.CodeInvalidValue) {
		t.Errorf("Update() error = %v, want INVALID_VALUE", err)
	}
}
