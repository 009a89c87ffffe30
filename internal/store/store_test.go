package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/openmedrec/medrec-go/internal/store"
	_ "github.com/openmedrec/medrec-go/internal/store/json"
	_ "github.com/openmedrec/medrec-go/internal/store/memory"
	_ "github.com/openmedrec/medrec-go/internal/store/sqlite"
)

// newTestDriver creates an initialized driver of the given kind backed by a
// temp directory and tears it down with the test.
func newTestDriver(t *testing.T, name string) store.Driver {
	t.Helper()

	driver, err := store.New(&store.DriverConfig{Driver: name, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New(%s) failed: %v", name, err)
	}
	if err := driver.Init(context.Background()); err != nil {
		t.Fatalf("Init(%s) failed: %v", name, err)
	}
	t.Cleanup(func() { driver.Close() })
	return driver
}

func forEachDriver(t *testing.T, fn func(t *testing.T, driver store.Driver)) {
	for _, name := range []string{"memory", "json", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			fn(t, newTestDriver(t, name))
		})
	}
}

func TestUnknownDriver(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "etcd"}); err == nil {
		t.Fatal("expected error for unregistered driver")
	}
}

func TestAccountLifecycle(t *testing.T) {
	forEachDriver(t, func(t *testing.T, driver store.Driver) {
		ctx := context.Background()

		lock := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
		account := &store.Account{
			ID:             "a1",
			Email:          "alice@example.com",
			PasswordHash:   "hash",
			FailedAttempts: 2,
			LockUntil:      &lock,
			ActiveTokens:   store.TokenList{"tok-one", "tok-two"},
		}
		if err := driver.CreateAccount(ctx, account); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}

		got, err := driver.GetAccount(ctx, "a1")
		if err != nil {
			t.Fatalf("GetAccount failed: %v", err)
		}
		if got.Email != "alice@example.com" || got.FailedAttempts != 2 {
			t.Errorf("unexpected account: %+v", got)
		}
		if got.LockUntil == nil || !got.LockUntil.Equal(lock) {
			t.Errorf("lock timestamp not preserved: %v", got.LockUntil)
		}
		if len(got.ActiveTokens) != 2 || got.ActiveTokens[0] != "tok-one" {
			t.Errorf("token list not preserved: %v", got.ActiveTokens)
		}

		byEmail, err := driver.GetAccountByEmail(ctx, "alice@example.com")
		if err != nil || byEmail.ID != "a1" {
			t.Errorf("GetAccountByEmail: %v %v", byEmail, err)
		}
		if _, err := driver.GetAccountByEmail(ctx, "ALICE@example.com"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("email lookup must be exact match, got %v", err)
		}

		byToken, err := driver.GetAccountByToken(ctx, "tok-two")
		if err != nil || byToken.ID != "a1" {
			t.Errorf("GetAccountByToken: %v %v", byToken, err)
		}
		if _, err := driver.GetAccountByToken(ctx, "tok"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("partial token must not match, got %v", err)
		}

		// Duplicate email rejected.
		dupe := &store.Account{ID: "a2", Email: "alice@example.com", PasswordHash: "x"}
		if err := driver.CreateAccount(ctx, dupe); !errors.Is(err, store.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}

		got.FailedAttempts = 0
		got.LockUntil = nil
		got.ActiveTokens = nil
		if err := driver.UpdateAccount(ctx, got); err != nil {
			t.Fatalf("UpdateAccount failed: %v", err)
		}
		updated, err := driver.GetAccount(ctx, "a1")
		if err != nil {
			t.Fatalf("GetAccount after update failed: %v", err)
		}
		if updated.FailedAttempts != 0 || updated.LockUntil != nil || len(updated.ActiveTokens) != 0 {
			t.Errorf("update not persisted: %+v", updated)
		}

		if err := driver.DeleteAccount(ctx, "a1"); err != nil {
			t.Fatalf("DeleteAccount failed: %v", err)
		}
		if _, err := driver.GetAccount(ctx, "a1"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := driver.DeleteAccount(ctx, "a1"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("double delete should report ErrNotFound, got %v", err)
		}
	})
}

func TestPatientLifecycle(t *testing.T) {
	forEachDriver(t, func(t *testing.T, driver store.Driver) {
		ctx := context.Background()

		patient := &store.Patient{ID: "p1", Name: "Jane Doe", DateOfBirth: "1984-02-11"}
		if err := driver.CreatePatient(ctx, patient); err != nil {
			t.Fatalf("CreatePatient failed: %v", err)
		}

		got, err := driver.GetPatient(ctx, "p1")
		if err != nil {
			t.Fatalf("GetPatient failed: %v", err)
		}
		if got.Name != "Jane Doe" || got.DateOfBirth != "1984-02-11" {
			t.Errorf("unexpected patient: %+v", got)
		}

		got.Name = "Jane Roe"
		if err := driver.UpdatePatient(ctx, got); err != nil {
			t.Fatalf("UpdatePatient failed: %v", err)
		}
		updated, _ := driver.GetPatient(ctx, "p1")
		if updated.Name != "Jane Roe" {
			t.Errorf("update not persisted: %+v", updated)
		}

		if err := driver.DeletePatient(ctx, "p1"); err != nil {
			t.Fatalf("DeletePatient failed: %v", err)
		}
		if _, err := driver.GetPatient(ctx, "p1"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestJSONDriverSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	open := func() store.Driver {
		driver, err := store.New(&store.DriverConfig{Driver: "json", DataDir: dataDir})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := driver.Init(ctx); err != nil {
			t.Fatalf("Init failed: %v", err)
		}
		return driver
	}

	driver := open()
	account := &store.Account{
		ID:           "a1",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		ActiveTokens: store.TokenList{"tok-one"},
	}
	if err := driver.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if err := driver.CreateShare(ctx, &store.Share{
		ID: "s1", PatientID: "p1", GranteeEmail: "alice@example.com",
		GranteeID: "a1", Access: "read", Group: "anyone", Resolved: true,
	}); err != nil {
		t.Fatalf("CreateShare failed: %v", err)
	}
	if err := driver.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := open()
	defer reopened.Close()

	got, err := reopened.GetAccountByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("account lost across restart: %v", err)
	}
	if got.ID != "a1" || got.PasswordHash != "hash" || len(got.ActiveTokens) != 1 {
		t.Errorf("account state not preserved: %+v", got)
	}
	if _, err := reopened.GetAccountByToken(ctx, "tok-one"); err != nil {
		t.Errorf("token lookup lost across restart: %v", err)
	}
	shares, err := reopened.ListSharesByGrantee(ctx, "a1")
	if err != nil || len(shares) != 1 {
		t.Errorf("shares lost across restart: %v %v", shares, err)
	}
}

func TestShareQueries(t *testing.T) {
	forEachDriver(t, func(t *testing.T, driver store.Driver) {
		ctx := context.Background()

		for i := 1; i <= 5; i++ {
			share := &store.Share{
				ID:           fmt.Sprintf("s%d", i),
				PatientID:    "p1",
				GranteeEmail: fmt.Sprintf("g%d@example.com", i),
				Access:       "read",
				Group:        "anyone",
			}
			if i <= 2 {
				share.GranteeID = "acct-1"
				share.Resolved = true
			}
			if err := driver.CreateShare(ctx, share); err != nil {
				t.Fatalf("CreateShare failed: %v", err)
			}
		}
		other := &store.Share{ID: "zz", PatientID: "p2", GranteeEmail: "g1@example.com", Access: "write", Group: "anyone"}
		if err := driver.CreateShare(ctx, other); err != nil {
			t.Fatalf("CreateShare failed: %v", err)
		}

		all, err := driver.ListSharesByPatient(ctx, "p1", 0, 0)
		if err != nil {
			t.Fatalf("ListSharesByPatient failed: %v", err)
		}
		if len(all) != 5 {
			t.Fatalf("expected 5 shares, got %d", len(all))
		}
		for i, share := range all {
			if want := fmt.Sprintf("s%d", i+1); share.ID != want {
				t.Fatalf("expected id %s at position %d, got %s", want, i, share.ID)
			}
		}

		page, err := driver.ListSharesByPatient(ctx, "p1", 2, 3)
		if err != nil {
			t.Fatalf("ListSharesByPatient failed: %v", err)
		}
		if len(page) != 2 || page[0].ID != "s4" || page[1].ID != "s5" {
			t.Errorf("unexpected page: %+v", page)
		}

		held, err := driver.ListSharesByGrantee(ctx, "acct-1")
		if err != nil {
			t.Fatalf("ListSharesByGrantee failed: %v", err)
		}
		if len(held) != 2 {
			t.Errorf("expected 2 resolved shares for grantee, got %d", len(held))
		}

		// Pending lookup only sees unresolved shares for that exact email.
		pending, err := driver.ListPendingSharesByEmail(ctx, "g3@example.com")
		if err != nil {
			t.Fatalf("ListPendingSharesByEmail failed: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != "s3" {
			t.Errorf("unexpected pending shares: %+v", pending)
		}
		resolvedEmail, err := driver.ListPendingSharesByEmail(ctx, "g1@example.com")
		if err != nil {
			t.Fatalf("ListPendingSharesByEmail failed: %v", err)
		}
		for _, share := range resolvedEmail {
			if share.Resolved {
				t.Errorf("resolved share %s returned as pending", share.ID)
			}
		}

		if err := driver.DeleteSharesByPatient(ctx, "p1"); err != nil {
			t.Fatalf("DeleteSharesByPatient failed: %v", err)
		}
		remaining, err := driver.ListSharesByPatient(ctx, "p1", 0, 0)
		if err != nil {
			t.Fatalf("ListSharesByPatient failed: %v", err)
		}
		if len(remaining) != 0 {
			t.Errorf("expected no shares left on p1, got %d", len(remaining))
		}
		if _, err := driver.GetShare(ctx, "zz"); err != nil {
			t.Errorf("share on another record must survive: %v", err)
		}
	})
}
