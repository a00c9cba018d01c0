package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"homebudget/internal/core"
	"homebudget/internal/log"
	"homebudget/internal/storage"
)

type fakeStore struct {
	mu   sync.Mutex
	rows map[string]storage.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]storage.Session)}
}

func (f *fakeStore) Put(ctx context.Context, sess storage.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[sess.SID] = sess
	return nil
}

func (f *fakeStore) Get(ctx context.Context, sid string) (storage.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.rows[sid]
	if !ok {
		return storage.Session{}, storage.ErrNotFound
	}
	return sess, nil
}

func (f *fakeStore) Delete(ctx context.Context, sid string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[sid]; !ok {
		return 0, nil
	}
	delete(f.rows, sid)
	return 1, nil
}

type fakeBackend struct {
	loginErr    error
	meErr       error
	registerErr error
	token       string
	user        core.User
	meCalls     int
}

func (f *fakeBackend) Login(ctx context.Context, username, password string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.token, nil
}

func (f *fakeBackend) Register(ctx context.Context, username, password string) error {
	return f.registerErr
}

func (f *fakeBackend) Me(ctx context.Context, token string) (core.User, error) {
	f.meCalls++
	if f.meErr != nil {
		return core.User{}, f.meErr
	}
	return f.user, nil
}

func newTestManager(store Store, backend Backend) *Manager {
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	return NewManager(store, backend, time.Hour, logger)
}

func TestLoginPersistsTokenAndResolvesProfile(t *testing.T) {
	store := newFakeStore()
	backend := &fakeBackend{token: "abc123", user: core.User{ID: 1, Username: "alice"}}
	m := newTestManager(store, backend)

	var events []Event
	m.Subscribe(func(ev Event) { events = append(events, ev) })

	sid, user, err := m.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("user = %+v", user)
	}

	sess, err := store.Get(context.Background(), sid)
	if err != nil {
		t.Fatalf("stored session: %v", err)
	}
	if sess.Token != "abc123" {
		t.Errorf("stored token = %q, want abc123", sess.Token)
	}

	if len(events) != 2 || events[0].State != StateAuthenticating || events[1].State != StateAuthenticated {
		t.Errorf("events = %+v, want authenticating then authenticated", events)
	}
}

func TestLoginFailureLeavesPriorSessionUntouched(t *testing.T) {
	store := newFakeStore()
	prior := storage.Session{SID: "old", Token: "still-good", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	store.Put(context.Background(), prior)

	backend := &fakeBackend{loginErr: errors.New("Incorrect username or password")}
	m := newTestManager(store, backend)

	if _, _, err := m.Login(context.Background(), "alice", "wrong"); err == nil {
		t.Fatal("expected login error")
	}
	if _, err := store.Get(context.Background(), "old"); err != nil {
		t.Errorf("prior session was disturbed: %v", err)
	}
	if len(store.rows) != 1 {
		t.Errorf("rows = %d, want only the prior session", len(store.rows))
	}
}

func TestLoginProfileFailureDropsHalfOpenSession(t *testing.T) {
	store := newFakeStore()
	backend := &fakeBackend{token: "tok", meErr: errors.New("boom")}
	m := newTestManager(store, backend)

	if _, _, err := m.Login(context.Background(), "alice", "secret"); err == nil {
		t.Fatal("expected error")
	}
	if len(store.rows) != 0 {
		t.Errorf("half-open session left behind: %+v", store.rows)
	}
}

func TestResolveConfirmsPersistedToken(t *testing.T) {
	store := newFakeStore()
	store.Put(context.Background(), storage.Session{
		SID: "sid-1", Token: "abc123", Username: "alice",
		CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	})
	backend := &fakeBackend{user: core.User{ID: 1, Username: "alice"}}
	m := newTestManager(store, backend)

	user, token, err := m.Resolve(context.Background(), "sid-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if user.Username != "alice" || token != "abc123" {
		t.Errorf("resolved %+v / %q", user, token)
	}

	// Second resolve serves the cached profile without another /users/me/.
	if _, _, err := m.Resolve(context.Background(), "sid-1"); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if backend.meCalls != 1 {
		t.Errorf("meCalls = %d, want 1", backend.meCalls)
	}
}

func TestResolveRejectedTokenClearsSessionOnce(t *testing.T) {
	store := newFakeStore()
	store.Put(context.Background(), storage.Session{
		SID: "sid-1", Token: "expired",
		CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	})
	backend := &fakeBackend{meErr: errors.New("401")}
	m := newTestManager(store, backend)

	var anonymous int
	m.Subscribe(func(ev Event) {
		if ev.State == StateAnonymous {
			anonymous++
		}
	})

	if _, _, err := m.Resolve(context.Background(), "sid-1"); !errors.Is(err, ErrExpired) {
		t.Fatalf("first Resolve = %v, want ErrExpired", err)
	}
	// Repeated rejected calls: session already cleared, no second
	// anonymous transition.
	if _, _, err := m.Resolve(context.Background(), "sid-1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("second Resolve = %v, want ErrNoSession", err)
	}
	if anonymous != 1 {
		t.Errorf("anonymous transitions = %d, want exactly 1", anonymous)
	}
}

func TestResolveExpiredRowIsCleared(t *testing.T) {
	store := newFakeStore()
	store.Put(context.Background(), storage.Session{
		SID: "sid-1", Token: "tok",
		CreatedAt: time.Now().Add(-2 * time.Hour), ExpiresAt: time.Now().Add(-time.Hour),
	})
	m := newTestManager(store, &fakeBackend{})

	if _, _, err := m.Resolve(context.Background(), "sid-1"); !errors.Is(err, ErrExpired) {
		t.Fatalf("Resolve = %v, want ErrExpired", err)
	}
	if len(store.rows) != 0 {
		t.Error("expired row not cleared")
	}
}

func TestResolveWithoutSID(t *testing.T) {
	m := newTestManager(newFakeStore(), &fakeBackend{})
	if _, _, err := m.Resolve(context.Background(), ""); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Resolve(\"\") = %v, want ErrNoSession", err)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	store := newFakeStore()
	backend := &fakeBackend{token: "tok", user: core.User{ID: 1, Username: "alice"}}
	m := newTestManager(store, backend)

	sid, _, err := m.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	m.Logout(context.Background(), sid)

	if _, _, err := m.Resolve(context.Background(), sid); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Resolve after logout = %v, want ErrNoSession", err)
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	store := newFakeStore()
	backend := &fakeBackend{token: "tok", user: core.User{ID: 1, Username: "alice"}}
	m := newTestManager(store, backend)

	sid, _, err := m.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if !m.Invalidate(context.Background(), sid) {
		t.Error("first Invalidate should report the transition")
	}
	if m.Invalidate(context.Background(), sid) {
		t.Error("second Invalidate must be a no-op")
	}
}

func TestConcurrentInvalidateClearsOnce(t *testing.T) {
	store := newFakeStore()
	backend := &fakeBackend{token: "tok", user: core.User{ID: 1, Username: "alice"}}
	m := newTestManager(store, backend)

	sid, _, err := m.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	var anonymous int32
	m.Subscribe(func(ev Event) {
		if ev.State == StateAnonymous {
			atomic.AddInt32(&anonymous, 1)
		}
	})

	var cleared int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Invalidate(context.Background(), sid) {
				atomic.AddInt32(&cleared, 1)
			}
		}()
	}
	wg.Wait()

	if cleared != 1 {
		t.Errorf("cleared = %d, want exactly 1", cleared)
	}
	if anonymous != 1 {
		t.Errorf("anonymous transitions = %d, want exactly 1", anonymous)
	}
}
