package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"authgate/internal/domain/auth/credential"
	"authgate/internal/domain/auth/guard"
	"authgate/internal/domain/auth/model"
	"authgate/internal/domain/auth/session"
	"authgate/internal/domain/auth/store"
	"authgate/internal/domain/auth/token"
	platformtesting "authgate/internal/platform/testing"
)

type fakeAccounts struct {
	mu     sync.Mutex
	byName map[string]*model.Account
	writes int
}

func newFakeAccounts(accounts ...*model.Account) *fakeAccounts {
	f := &fakeAccounts{byName: make(map[string]*model.Account)}
	for _, a := range accounts {
		clone := *a
		f.byName[a.Username] = &clone
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
	clone := *acct
	return &clone, nil
}

func (f *fakeAccounts) FindByID(_ context.Context, id uint) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acct := range f.byName {
		if acct.ID == id {
			clone := *acct
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) Create(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *account
	f.byName[account.Username] = &clone
	return nil
}

func (f *fakeAccounts) Save(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *account
	f.byName[account.Username] = &clone
	f.writes++
	return nil
}

func (f *fakeAccounts) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byName)), nil
}

type engineFixture struct {
	engine   *Engine
	accounts *fakeAccounts
	kv       store.Store
}

func newEngineUnderTest(t *testing.T, accounts *fakeAccounts) *engineFixture {
	t.Helper()
	return newEngineWithStore(t, accounts, nil)
}

func newEngineWithStore(t *testing.T, accounts *fakeAccounts, kv store.Store) *engineFixture {
	t.Helper()

	if kv == nil {
		kv = store.NewMemory(store.Config{})
		t.Cleanup(func() {
			_ = kv.Close(context.Background())
		})
	}
	logger := platformtesting.NopLogger{}

	codec, err := token.NewCodec("engine-test-secret", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}
	sessions, err := session.New(session.Options{Codec: codec, Store: kv, Logger: logger})
	if err != nil {
		t.Fatalf("session.New error: %v", err)
	}
	g, err := guard.New(guard.Options{Store: kv, Accounts: accounts, Logger: logger})
	if err != nil {
		t.Fatalf("guard.New error: %v", err)
	}

	engine, err := NewEngine(Options{
		Accounts: accounts,
		Guard:    g,
		Sessions: sessions,
		Verifier: credential.NewVerifier(4),
		Store:    kv,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	return &engineFixture{engine: engine, accounts: accounts, kv: kv}
}

func seedAccount(t *testing.T, username, password string) *model.Account {
	t.Helper()
	hash, err := credential.NewVerifier(4).Hash(password)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	return &model.Account{ID: 1, Username: username, PasswordHash: hash}
}

func TestLoginSuccess(t *testing.T) {
	ctx := context.Background()
	fx := newEngineUnderTest(t, newFakeAccounts(seedAccount(t, "alice", "correct-horse")))

	sess, err := fx.engine.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if sess.UserID != 1 || sess.TokenType != "bearer" || sess.ExpiresIn != 1800 {
		t.Fatalf("unexpected session: %+v", sess)
	}

	acct, _ := fx.accounts.FindByUsername(ctx, "alice")
	if acct.FailedLoginAttempts != 0 || acct.LastLogin == nil {
		t.Fatalf("success bookkeeping missing: %+v", acct)
	}
	if ok, _ := fx.kv.Exists(ctx, "auth:alice"); !ok {
		t.Fatal("expected session key stored")
	}
}

func TestLoginUnknownUsername(t *testing.T) {
	ctx := context.Background()
	fx := newEngineUnderTest(t, newFakeAccounts(seedAccount(t, "alice", "pw")))

	_, err := fx.engine.Login(ctx, "ghost", "anything", "10.0.0.2")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// The address counter moved; no account was touched.
	val, ok, _ := fx.kv.Get(ctx, "rate_limit:10.0.0.2")
	if !ok || val != "1" {
		t.Fatalf("expected counter at 1, got %q ok=%v", val, ok)
	}
	if fx.accounts.writes != 0 {
		t.Fatalf("unknown username must not mutate accounts, saw %d writes", fx.accounts.writes)
	}
}

func TestLoginWrongPasswordMatchesUnknownUser(t *testing.T) {
	ctx := context.Background()
	fx := newEngineUnderTest(t, newFakeAccounts(seedAccount(t, "alice", "pw")))

	_, errKnown := fx.engine.Login(ctx, "alice", "nope", "10.0.0.3")
	_, errGhost := fx.engine.Login(ctx, "ghost", "nope", "10.0.0.3")

	if !errors.Is(errKnown, ErrInvalidCredentials) || !errors.Is(errGhost, ErrInvalidCredentials) {
		t.Fatalf("both outcomes must be ErrInvalidCredentials: %v / %v", errKnown, errGhost)
	}
}

func TestLockoutAfterFiveWrongPasswords(t *testing.T) {
	ctx := context.Background()
	fx := newEngineUnderTest(t, newFakeAccounts(seedAccount(t, "alice", "correct")))

	// Use distinct addresses so the IP limiter stays out of the way.
	addrs := []string{"10.1.0.1", "10.1.0.2", "10.1.0.3", "10.1.0.4", "10.1.0.5"}
	for i, addr := range addrs {
		_, err := fx.engine.Login(ctx, "alice", "wrong", addr)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	acct, _ := fx.accounts.FindByUsername(ctx, "alice")
	if !acct.Locked {
		t.Fatal("expected account locked after the 5th failure")
	}

	// The 6th attempt with the correct password is still rejected, and
	// the rejection is distinguishable from bad credentials.
	_, err := fx.engine.Login(ctx, "alice", "correct", "10.1.0.6")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestRateLimitBeatsCorrectCredentials(t *testing.T) {
	ctx := context.Background()
	fx := newEngineUnderTest(t, newFakeAccounts(seedAccount(t, "alice", "correct")))

	for i := 0; i < 5; i++ {
		if _, err := fx.engine.Login(ctx, "ghost", "x", "10.2.0.1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := fx.engine.Login(ctx, "alice", "correct", "10.2.0.1")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 6th attempt, got %v", err)
	}
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	ctx := context.Background()
	acct := seedAccount(t, "alice", "correct")
	acct.FailedLoginAttempts = 4
	fx := newEngineUnderTest(t, newFakeAccounts(acct))

	if _, err := fx.engine.Login(ctx, "alice", "correct", "10.3.0.1"); err != nil {
		t.Fatalf("Login error: %v", err)
	}

	// One more failure must not lock: the counter restarted from zero.
	if _, err := fx.engine.Login(ctx, "alice", "wrong", "10.3.0.2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	after, _ := fx.accounts.FindByUsername(ctx, "alice")
	if after.Locked {
		t.Fatal("account locked despite counter reset")
	}
	if after.FailedLoginAttempts != 1 {
		t.Fatalf("expected counter 1 after reset+failure, got %d", after.FailedLoginAttempts)
	}
}

func TestReloginInvalidatesPriorSessionPresence(t *testing.T) {
	ctx := context.Background()
	fx := newEngineUnderTest(t, newFakeAccounts(seedAccount(t, "alice", "pw")))

	first, err := fx.engine.Login(ctx, "alice", "pw", "10.4.0.1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	second, err := fx.engine.Login(ctx, "alice", "pw", "10.4.0.2")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	stored, _, _ := fx.kv.Get(ctx, "auth:alice")
	if stored != second.Token {
		t.Fatal("expected new token under the session key")
	}
	// The first token still decodes; presence is what changed.
	if _, err := fx.engine.Sessions().Decode(first.Token); err != nil {
		t.Errorf("prior token should still decode: %v", err)
	}
}

func TestLogoutFlow(t *testing.T) {
	ctx := context.Background()
	fx := newEngineUnderTest(t, newFakeAccounts(seedAccount(t, "alice", "pw")))

	if _, err := fx.engine.Logout(ctx, ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := fx.engine.Logout(ctx, "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	sess, err := fx.engine.Login(ctx, "alice", "pw", "10.5.0.1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	subject, err := fx.engine.Logout(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if subject != "alice" {
		t.Fatalf("expected subject alice, got %q", subject)
	}
	if ok, _ := fx.kv.Exists(ctx, "auth:alice"); ok {
		t.Fatal("expected session removed")
	}

	// Logging out twice with the same valid token succeeds both times.
	if _, err := fx.engine.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("repeat Logout error: %v", err)
	}
}

func TestDegradedStoreFailsClosed(t *testing.T) {
	ctx := context.Background()
	fx := newEngineWithStore(t, newFakeAccounts(seedAccount(t, "alice", "pw")), downStore{})

	_, err := fx.engine.Login(ctx, "alice", "pw", "10.6.0.1")
	if !errors.Is(err, ErrServiceDegraded) {
		t.Fatalf("expected ErrServiceDegraded, got %v", err)
	}
}

func TestHealthReportsDegraded(t *testing.T) {
	ctx := context.Background()

	healthy := newEngineUnderTest(t, newFakeAccounts())
	status := healthy.engine.Health(ctx)
	if status.Status != "ok" || status.StoreConnectivity != "connected" {
		t.Fatalf("unexpected healthy status: %+v", status)
	}

	degraded := newEngineWithStore(t, newFakeAccounts(), downStore{})
	status = degraded.engine.Health(ctx)
	if status.Status != "degraded" || status.StoreConnectivity != "disconnected" {
		t.Fatalf("unexpected degraded status: %+v", status)
	}
	if status.Timestamp.IsZero() {
		t.Fatal("expected timestamp set")
	}
}

// downStore simulates an unreachable ephemeral backend.
type downStore struct{}

var errDown = errors.New("connection refused")

func (downStore) Get(context.Context, string) (string, bool, error) { return "", false, errDown }
func (downStore) SetWithTTL(context.Context, string, string, time.Duration) error {
	return errDown
}
func (downStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errDown
}
func (downStore) Delete(context.Context, string) error         { return errDown }
func (downStore) Exists(context.Context, string) (bool, error) { return false, errDown }
func (downStore) Ping(context.Context) error                   { return errDown }
func (downStore) Stats(context.Context) (map[string]any, error) {
	return nil, errDown
}
func (downStore) Close(context.Context) error { return nil }
