package service

import (
	"context"
	"testing"
	"time"

	"github.com/token-gate/internal/gate"
	"github.com/token-gate/internal/types"
)

const testWallet = "0xACb0A09414CEA1C879c67bB7A877E4e19480f022"

func newTestMembership(t *testing.T) (*MembershipService, gate.Capability, *fakeClock) {
	t.Helper()

	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewMembershipService(newTestRegistry(newMockAccountRepo(), clock))
	svc.SetNowFunc(clock.Now)

	adminGate, err := gate.NewAdminGate("test-admin")
	if err != nil {
		t.Fatalf("NewAdminGate() error = %v", err)
	}
	capability, err := adminGate.Authorize("test-admin")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	return svc, capability, clock
}

func TestRequestVerification(t *testing.T) {
	svc, _, _ := newTestMembership(t)
	ctx := context.Background()

	status, err := svc.RequestVerification(ctx, "chat-1", testWallet, "ref-1")
	if err != nil {
		t.Fatalf("RequestVerification() error = %v", err)
	}
	if status.State != types.StatePending {
		t.Errorf("state = %s, want pending", status.State)
	}
	if status.PendingSince == nil {
		t.Error("pendingSince should be set while pending")
	}
	if status.WalletAddress != testWallet {
		t.Errorf("walletAddress = %s, want %s", status.WalletAddress, testWallet)
	}
}

func TestRequestVerificationRejectsBadWallet(t *testing.T) {
	svc, _, _ := newTestMembership(t)

	_, err := svc.RequestVerification(context.Background(), "chat-1", "not-an-address", "ref")
	if !types.IsCode(err, types.CodeInvalidValue) {
		t.Errorf("error = %v, want INVALID_VALUE", err)
	}
}

func TestRequestVerificationIdempotentWhilePending(t *testing.T) {
	svc, _, _ := newTestMembership(t)
	ctx := context.Background()

	if _, err := svc.RequestVerification(ctx, "chat-1", testWallet, "ref-first"); err != nil {
		t.Fatalf("first RequestVerification() error = %v", err)
	}

	status, err := svc.RequestVerification(ctx, "chat-1", testWallet, "ref-second")
	if !types.IsCode(err, types.CodeAlreadyPending) {
		t.Fatalf("second RequestVerification() error = %v, want ALREADY_PENDING", err)
	}
	if status == nil || status.State != types.StatePending {
		t.Fatal("ALREADY_PENDING should carry the current pending status")
	}

	// The original reference must survive the repeat request.
	account, err := svc.registry.Get(ctx, "chat-1")
	if err != nil {
		t.Fatalf("registry.Get() error = %v", err)
	}
	if account.PendingReference != "ref-first" {
		t.Errorf("pendingReference = %s, want ref-first", account.PendingReference)
	}
}

func TestGrantLifecycle(t *testing.T) {
	svc, capability, _ := newTestMembership(t)
	ctx := context.Background()

	if _, err := svc.RequestVerification(ctx, "chat-1", testWallet, "ref"); err != nil {
		t.Fatalf("RequestVerification() error = %v", err)
	}

	status, err := svc.Grant(ctx, capability, "chat-1")
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if status.State != types.StateApproved {
		t.Errorf("state = %s, want approved", status.State)
	}
	if status.ApprovedAt == nil {
		t.Fatal("approvedAt should be set after grant")
	}

	account, err := svc.registry.Get(ctx, "chat-1")
	if err != nil {
		t.Fatalf("registry.Get() error = %v", err)
	}
	if account.PendingReference != "" {
		t.Error("pendingReference must be cleared on grant")
	}
}

func TestGrantIsIdempotentFromApproved(t *testing.T) {
	svc, capability, clock := newTestMembership(t)
	ctx := context.Background()

	if _, err := svc.RequestVerification(ctx, "chat-1", testWallet, "ref"); err != nil {
		t.Fatalf("RequestVerification() error = %v", err)
	}
	first, err := svc.Grant(ctx, capability, "chat-1")
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	clock.Advance(time.Hour)

	second, err := svc.Grant(ctx, capability, "chat-1")
	if err != nil {
		t.Fatalf("second Grant() error = %v", err)
	}
	if !second.ApprovedAt.Equal(*first.ApprovedAt) {
		t.Errorf("approvedAt changed on retry: %v -> %v", first.ApprovedAt, second.ApprovedAt)
	}
}

func TestGrantRequiresPending(t *testing.T) {
	svc, capability, _ := newTestMembership(t)
	ctx := context.Background()

	if _, err := svc.Grant(ctx, capability, "ghost"); !types.IsCode(err, types.CodeNotFound) {
		t.Errorf("Grant(unknown) error = %v, want NOT_FOUND", err)
	}

	// An account that exists but never requested verification.
	if _, err := svc.registry.GetOrCreate(ctx, "chat-1"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if _, err := svc.Grant(ctx, capability, "chat-1"); !types.IsCode(err, types.CodeIllegalTransition) {
		t.Errorf("Grant(unregistered) error = %v, want ILLEGAL_TRANSITION", err)
	}
}

func TestGrantRequiresCapability(t *testing.T) {
	svc, _, _ := newTestMembership(t)

	var forged gate.Capability
	if _, err := svc.Grant(context.Background(), forged, "chat-1"); !types.IsCode(err, types.CodeUnauthorized) {
		t.Errorf("Grant(zero capability) error = %v, want UNAUTHORIZED", err)
	}
}

func TestRevokeRequiresApproved(t *testing.T) {
	svc, capability, _ := newTestMembership(t)
	ctx := context.Background()

	if _, err := svc.RequestVerification(ctx, "chat-1", testWallet, "ref"); err != nil {
		t.Fatalf("RequestVerification() error = %v", err)
	}
	if _, err := svc.Revoke(ctx, capability, "chat-1"); !types.IsCode(err, types.CodeIllegalTransition) {
		t.Errorf("Revoke(pending) error = %v, want ILLEGAL_TRANSITION", err)
	}
}

func TestRevokeAndReverifyCycle(t *testing.T) {
	svc, capability, _ := newTestMembership(t)
	ctx := context.Background()

	if _, err := svc.RequestVerification(ctx, "chat-1", testWallet, "ref"); err != nil {
		t.Fatalf("RequestVerification() error = %v", err)
	}
	if _, err := svc.Grant(ctx, capability, "chat-1"); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	status, err := svc.Revoke(ctx, capability, "chat-1")
	if err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if status.State != types.StateRevoked {
		t.Errorf("state = %s, want revoked", status.State)
	}
	if status.RevokedAt == nil {
		t.Error("revokedAt should be set after revoke")
	}

	// A revoked account cannot be re-approved without passing through
	// Pending again.
	if _, err := svc.Grant(ctx, capability, "chat-1"); !types.IsCode(err, types.CodeIllegalTransition) {
		t.Errorf("Grant(revoked) error = %v, want ILLEGAL_TRANSITION", err)
	}

	// Re-verification with an empty wallet keeps the previous address.
	status, err = svc.RequestVerification(ctx, "chat-1", "", "ref-2")
	if err != nil {
		t.Fatalf("re-RequestVerification() error = %v", err)
	}
	if status.State != types.StatePending {
		t.Errorf("state = %s, want pending", status.State)
	}
	if status.WalletAddress != testWallet {
		t.Errorf("walletAddress = %s, want previous address retained", status.WalletAddress)
	}

	status, err = svc.Grant(ctx, capability, "chat-1")
	if err != nil {
		t.Fatalf("re-Grant() error = %v", err)
	}
	if status.State != types.StateApproved {
		t.Errorf("state = %s, want approved after re-verification", status.State)
	}
}

func TestStatusUnknownAccount(t *testing.T) {
	svc, _, _ := newTestMembership(t)

	status, err := svc.Status(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.State != types.StateUnregistered {
		t.Errorf("state = %s, want unregistered defaults", status.State)
	}

	// A status lookup must not create the account.
	if _, err := svc.registry.Get(context.Background(), "nobody"); !types.IsCode(err, types.CodeNotFound) {
		t.Errorf("registry.Get() after Status error = %v, want NOT_FOUND", err)
	}
}
