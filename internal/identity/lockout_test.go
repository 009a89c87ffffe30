package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/openmedrec/medrec-go/internal/identity"
	"github.com/openmedrec/medrec-go/internal/store"
	"github.com/openmedrec/medrec-go/internal/store/memory"
)

func newMemoryDriver(t *testing.T) store.Driver {
	t.Helper()
	driver, err := memory.NewDriver(&store.DriverConfig{})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	return driver
}

func createAccount(t *testing.T, driver store.Driver, email, secret string) *store.Account {
	t.Helper()
	creds := identity.NewCredentialStore(4)
	hash, err := creds.Hash(secret)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	account := &store.Account{
		ID:           "acct-" + email,
		Email:        email,
		PasswordHash: hash,
	}
	if err := driver.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return account
}

func TestLockoutPolicy_Status(t *testing.T) {
	driver := newMemoryDriver(t)
	policy := identity.NewLockoutPolicy(driver, 10, time.Hour)

	account := &store.Account{ID: "a1", Email: "a@x.com"}

	if status := policy.Status(account); status.Locked {
		t.Error("account with no lock should be unlocked")
	}

	future := time.Now().Add(30 * time.Minute)
	account.LockUntil = &future
	status := policy.Status(account)
	if !status.Locked {
		t.Fatal("account with future lockUntil should be locked")
	}
	if !status.Until.Equal(future) {
		t.Errorf("expected Until %v, got %v", future, status.Until)
	}

	// An expired lock is logically unlocked.
	past := time.Now().Add(-time.Minute)
	account.LockUntil = &past
	if status := policy.Status(account); status.Locked {
		t.Error("account with past lockUntil should be unlocked")
	}
}

func TestLockoutPolicy_RecordFailure_LocksAtThreshold(t *testing.T) {
	driver := newMemoryDriver(t)
	policy := identity.NewLockoutPolicy(driver, 3, time.Hour)
	ctx := context.Background()

	account := createAccount(t, driver, "lock@x.com", "pw")

	for i := 1; i <= 2; i++ {
		if err := policy.RecordFailure(ctx, account); err != nil {
			t.Fatalf("RecordFailure %d failed: %v", i, err)
		}
		if account.LockUntil != nil {
			t.Fatalf("locked after %d failures, threshold is 3", i)
		}
	}

	if err := policy.RecordFailure(ctx, account); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if account.LockUntil == nil {
		t.Fatal("expected lock after reaching threshold")
	}
	if remaining := time.Until(*account.LockUntil); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("lock window should be about an hour, got %v", remaining)
	}

	// The failure is persisted, not just in memory.
	stored, err := driver.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if stored.FailedAttempts != 3 {
		t.Errorf("expected 3 persisted failures, got %d", stored.FailedAttempts)
	}
	if stored.LockUntil == nil {
		t.Error("expected persisted lockUntil")
	}
}

func TestLockoutPolicy_RecordFailure_DoesNotExtendActiveLock(t *testing.T) {
	driver := newMemoryDriver(t)
	policy := identity.NewLockoutPolicy(driver, 3, time.Hour)
	ctx := context.Background()

	account := createAccount(t, driver, "extend@x.com", "pw")
	until := time.Now().Add(10 * time.Minute)
	account.FailedAttempts = 3
	account.LockUntil = &until

	if err := policy.RecordFailure(ctx, account); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	if account.FailedAttempts != 4 {
		t.Errorf("expected counter to advance during lock, got %d", account.FailedAttempts)
	}
	if !account.LockUntil.Equal(until) {
		t.Errorf("active lock must not be extended: was %v, now %v", until, account.LockUntil)
	}
}

func TestLockoutPolicy_RecordFailure_ResetsStaleLock(t *testing.T) {
	driver := newMemoryDriver(t)
	policy := identity.NewLockoutPolicy(driver, 3, time.Hour)
	ctx := context.Background()

	account := createAccount(t, driver, "stale@x.com", "pw")
	past := time.Now().Add(-time.Minute)
	account.FailedAttempts = 7
	account.LockUntil = &past

	if err := policy.RecordFailure(ctx, account); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	// The stale lock is cleared before counting: fresh cycle at 1.
	if account.FailedAttempts != 1 {
		t.Errorf("expected fresh count of 1 after stale lock, got %d", account.FailedAttempts)
	}
	if account.LockUntil != nil {
		t.Error("stale lock should have been cleared")
	}
}

func TestLockoutPolicy_Reset(t *testing.T) {
	driver := newMemoryDriver(t)
	policy := identity.NewLockoutPolicy(driver, 3, time.Hour)
	ctx := context.Background()

	account := createAccount(t, driver, "reset@x.com", "pw")
	until := time.Now().Add(time.Hour)
	account.FailedAttempts = 5
	account.LockUntil = &until

	if err := policy.Reset(ctx, account); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if account.FailedAttempts != 0 || account.LockUntil != nil {
		t.Error("Reset should clear counter and lock")
	}

	stored, err := driver.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if stored.FailedAttempts != 0 || stored.LockUntil != nil {
		t.Error("Reset should persist the cleared state")
	}
}

func TestLockoutPolicy_Defaults(t *testing.T) {
	driver := newMemoryDriver(t)
	policy := identity.NewLockoutPolicy(driver, 0, 0)
	ctx := context.Background()

	account := createAccount(t, driver, "defaults@x.com", "pw")

	for i := 0; i < identity.DefaultMaxFailedAttempts-1; i++ {
		if err := policy.RecordFailure(ctx, account); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if account.LockUntil != nil {
		t.Fatal("locked one failure early")
	}
	if err := policy.RecordFailure(ctx, account); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if account.LockUntil == nil {
		t.Fatal("expected lock at the default threshold")
	}
}
