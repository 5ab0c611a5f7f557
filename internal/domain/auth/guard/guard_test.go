package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"authgate/internal/domain/auth/model"
	"authgate/internal/domain/auth/store"
	platformtesting "authgate/internal/platform/testing"
)

type fakeAccounts struct {
	mu       sync.Mutex
	byName   map[string]*model.Account
	saveErr  error
	saved    int
}

func newFakeAccounts(accounts ...*model.Account) *fakeAccounts {
	f := &fakeAccounts{byName: make(map[string]*model.Account)}
	for _, a := range accounts {
		copy := *a
		f.byName[a.Username] = &copy
	}
	return f
}

func (f *fakeAccounts) FindByUsername(_ context.Context, username string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.byName[username]
	if !ok {
		return nil, nil
	}
	copy := *acct
	return &copy, nil
}

func (f *fakeAccounts) FindByID(_ context.Context, id uint) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acct := range f.byName {
		if acct.ID == id {
			copy := *acct
			return &copy, nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) Create(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *account
	f.byName[account.Username] = &copy
	return nil
}

func (f *fakeAccounts) Save(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	copy := *account
	f.byName[account.Username] = &copy
	f.saved++
	return nil
}

func (f *fakeAccounts) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byName)), nil
}

func newGuardUnderTest(t *testing.T, accounts *fakeAccounts) (*Guard, store.Store) {
	t.Helper()

	kv := store.NewMemory(store.Config{})
	t.Cleanup(func() {
		_ = kv.Close(context.Background())
	})

	g, err := New(Options{
		Store:    kv,
		Accounts: accounts,
		Logger:   platformtesting.NopLogger{},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return g, kv
}

func TestRateLimitBlocksSixthAttempt(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuardUnderTest(t, newFakeAccounts())

	for i := 0; i < 5; i++ {
		if err := g.CheckRateLimit(ctx, "10.0.0.9"); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i+1, err)
		}
		if err := g.RecordFailure(ctx, "10.0.0.9", nil); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}

	if err := g.CheckRateLimit(ctx, "10.0.0.9"); !errors.Is(err, model.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 6th attempt, got %v", err)
	}

	// Other addresses remain unaffected.
	if err := g.CheckRateLimit(ctx, "10.0.0.10"); err != nil {
		t.Fatalf("unrelated address limited: %v", err)
	}
}

func TestCheckRateLimitIsReadOnly(t *testing.T) {
	ctx := context.Background()
	g, kv := newGuardUnderTest(t, newFakeAccounts())

	for i := 0; i < 10; i++ {
		if err := g.CheckRateLimit(ctx, "10.1.1.1"); err != nil {
			t.Fatalf("read-only check unexpectedly limited: %v", err)
		}
	}
	if ok, _ := kv.Exists(ctx, "rate_limit:10.1.1.1"); ok {
		t.Fatal("CheckRateLimit must not create the counter")
	}
}

func TestLockoutAfterFiveFailures(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(&model.Account{ID: 1, Username: "alice"})
	g, _ := newGuardUnderTest(t, accounts)

	// Spread the failures over distinct addresses: lockout is cumulative
	// per account regardless of the attacker's vantage point.
	for i := 0; i < 5; i++ {
		acct, _ := accounts.FindByUsername(ctx, "alice")
		addr := fmt.Sprintf("172.16.0.%d", i)
		if err := g.RecordFailure(ctx, addr, acct); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}

	acct, _ := accounts.FindByUsername(ctx, "alice")
	if !acct.Locked {
		t.Fatal("expected account locked after 5 failures")
	}
	if acct.FailedLoginAttempts != 5 {
		t.Fatalf("expected 5 recorded failures, got %d", acct.FailedLoginAttempts)
	}
	if err := g.CheckLockout(acct); !errors.Is(err, model.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestFourFailuresDoNotLock(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(&model.Account{ID: 1, Username: "alice"})
	g, _ := newGuardUnderTest(t, accounts)

	for i := 0; i < 4; i++ {
		acct, _ := accounts.FindByUsername(ctx, "alice")
		if err := g.RecordFailure(ctx, "10.0.0.1", acct); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}

	acct, _ := accounts.FindByUsername(ctx, "alice")
	if acct.Locked {
		t.Fatal("account must not lock before the threshold")
	}
	if err := g.CheckLockout(acct); err != nil {
		t.Fatalf("unexpected lockout: %v", err)
	}
}

func TestRecordSuccessResetsCounter(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(&model.Account{ID: 1, Username: "alice", FailedLoginAttempts: 4})
	g, _ := newGuardUnderTest(t, accounts)

	acct, _ := accounts.FindByUsername(ctx, "alice")
	if err := g.RecordSuccess(ctx, acct); err != nil {
		t.Fatalf("RecordSuccess error: %v", err)
	}

	acct, _ = accounts.FindByUsername(ctx, "alice")
	if acct.FailedLoginAttempts != 0 {
		t.Fatalf("expected counter reset, got %d", acct.FailedLoginAttempts)
	}
	if acct.LastLogin == nil {
		t.Fatal("expected last login stamped")
	}

	// A single subsequent failure must not trigger lockout.
	if err := g.RecordFailure(ctx, "10.0.0.1", acct); err != nil {
		t.Fatalf("RecordFailure error: %v", err)
	}
	acct, _ = accounts.FindByUsername(ctx, "alice")
	if acct.Locked {
		t.Fatal("single failure after success must not lock")
	}
}

func TestStoreFailureFailsClosed(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts()

	g, err := New(Options{
		Store:    failingStore{},
		Accounts: accounts,
		Logger:   platformtesting.NopLogger{},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if err := g.CheckRateLimit(ctx, "10.0.0.1"); !errors.Is(err, model.ErrServiceDegraded) {
		t.Fatalf("expected ErrServiceDegraded, got %v", err)
	}
	if err := g.RecordFailure(ctx, "10.0.0.1", nil); !errors.Is(err, model.ErrServiceDegraded) {
		t.Fatalf("expected ErrServiceDegraded, got %v", err)
	}
}

func TestAccountSaveFailureIsDegraded(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(&model.Account{ID: 1, Username: "alice"})
	accounts.saveErr = errors.New("connection reset")
	g, _ := newGuardUnderTest(t, accounts)

	acct, _ := accounts.FindByUsername(ctx, "alice")
	if err := g.RecordFailure(ctx, "10.0.0.1", acct); !errors.Is(err, model.ErrServiceDegraded) {
		t.Fatalf("expected ErrServiceDegraded, got %v", err)
	}
	if err := g.RecordSuccess(ctx, acct); !errors.Is(err, model.ErrServiceDegraded) {
		t.Fatalf("expected ErrServiceDegraded, got %v", err)
	}
}

// failingStore simulates an unreachable ephemeral backend.
type failingStore struct{}

var errStoreDown = errors.New("connection refused")

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errStoreDown
}
func (failingStore) SetWithTTL(context.Context, string, string, time.Duration) error {
	return errStoreDown
}
func (failingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errStoreDown
}
func (failingStore) Delete(context.Context, string) error  { return errStoreDown }
func (failingStore) Exists(context.Context, string) (bool, error) {
	return false, errStoreDown
}
func (failingStore) Ping(context.Context) error { return errStoreDown }
func (failingStore) Stats(context.Context) (map[string]any, error) {
	return nil, errStoreDown
}
func (failingStore) Close(context.Context) error { return nil }
