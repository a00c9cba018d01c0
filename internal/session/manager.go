// Package session tracks who is logged in. Each browser gets an opaque
// session id in a cookie; the id maps to the backend bearer token in
// persistent storage, so a session survives restarts until logout or
// until the backend rejects the token.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"homebudget/internal/core"
	"homebudget/internal/log"
	"homebudget/internal/storage"
)

// State is the session lifecycle position: anonymous (no token),
// authenticating (token present, profile not yet confirmed) and
// authenticated (token and profile confirmed).
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Event describes a state transition for one browser session. All
// transitions flow through the manager's single update entry point, so
// subscribers observe every change.
type Event struct {
	SID   string
	State State
	User  *core.User
}

var (
	// ErrNoSession means the browser presented no usable session id.
	ErrNoSession = errors.New("no session")

	// ErrExpired means a persisted token exists but could not be
	// confirmed against the backend; the session has been cleared.
	ErrExpired = errors.New("session expired")
)

// Store is the subset of the session repository the manager needs.
// *storage.SessionStore satisfies it.
type Store interface {
	Put(ctx context.Context, sess storage.Session) error
	Get(ctx context.Context, sid string) (storage.Session, error)
	Delete(ctx context.Context, sid string) (int64, error)
}

// Backend is the subset of the API client used for authentication.
type Backend interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) error
	Me(ctx context.Context, token string) (core.User, error)
}

// Manager owns session state. All mutation goes through it.
type Manager struct {
	store   Store
	backend Backend
	ttl     time.Duration
	logger  *log.Logger

	mu          sync.Mutex
	profiles    map[string]core.User
	subscribers []func(Event)
}

// NewManager creates a session manager persisting sessions for ttl.
func NewManager(store Store, backend Backend, ttl time.Duration, logger *log.Logger) *Manager {
	return &Manager{
		store:    store,
		backend:  backend,
		ttl:      ttl,
		logger:   logger.WithComponent(log.ComponentSession),
		profiles: make(map[string]core.User),
	}
}

// Subscribe registers a callback invoked on every state transition.
func (m *Manager) Subscribe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// notify is the single update entry point: every transition funnels
// through here before subscribers hear about it.
func (m *Manager) notify(ev Event) {
	m.mu.Lock()
	subs := make([]func(Event), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Login exchanges credentials for a bearer token, persists it under a
// fresh session id and resolves the profile. On any failure no session
// is created and any prior session is left untouched.
func (m *Manager) Login(ctx context.Context, username, password string) (string, core.User, error) {
	token, err := m.backend.Login(ctx, username, password)
	if err != nil {
		m.logger.WarnContext(ctx, "Login rejected",
			log.FieldUsername, username,
			log.FieldOperation, log.OpLogin,
			log.FieldError, err)
		return "", core.User{}, err
	}

	sid := uuid.NewString()
	now := time.Now().UTC()
	sess := storage.Session{
		SID:       sid,
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, sess); err != nil {
		return "", core.User{}, err
	}
	m.notify(Event{SID: sid, State: StateAuthenticating})

	user, err := m.backend.Me(ctx, token)
	if err != nil {
		// Token issued but profile unresolvable: drop the half-open
		// session rather than leaving it authenticating forever.
		_, _ = m.store.Delete(ctx, sid)
		m.notify(Event{SID: sid, State: StateAnonymous})
		return "", core.User{}, err
	}

	m.mu.Lock()
	m.profiles[sid] = user
	m.mu.Unlock()
	m.notify(Event{SID: sid, State: StateAuthenticated, User: &user})

	m.logger.InfoContext(ctx, "Login succeeded",
		log.FieldUsername, user.Username,
		log.FieldSessionID, sid,
		log.FieldOperation, log.OpLogin)
	return sid, user, nil
}

// Register creates a new account. The caller routes to login on
// success; no session is created here.
func (m *Manager) Register(ctx context.Context, username, password string) error {
	if err := m.backend.Register(ctx, username, password); err != nil {
		m.logger.WarnContext(ctx, "Registration rejected",
			log.FieldUsername, username,
			log.FieldOperation, log.OpRegister,
			log.FieldError, err)
		return err
	}
	m.logger.InfoContext(ctx, "Account registered",
		log.FieldUsername, username,
		log.FieldOperation, log.OpRegister)
	return nil
}

// Resolve returns the confirmed profile and bearer token for a session
// id. A persisted token that cannot be confirmed clears the session
// and yields ErrExpired; a missing session yields ErrNoSession.
func (m *Manager) Resolve(ctx context.Context, sid string) (core.User, string, error) {
	if sid == "" {
		return core.User{}, "", ErrNoSession
	}

	sess, err := m.store.Get(ctx, sid)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, "", ErrNoSession
	}
	if err != nil {
		return core.User{}, "", err
	}
	if sess.Expired() {
		m.Invalidate(ctx, sid)
		return core.User{}, "", ErrExpired
	}

	m.mu.Lock()
	user, ok := m.profiles[sid]
	m.mu.Unlock()
	if ok {
		return user, sess.Token, nil
	}

	// Token persisted but profile not yet confirmed for this process
	// lifetime: the session is authenticating until the backend
	// vouches for it.
	user, err = m.backend.Me(ctx, sess.Token)
	if err != nil {
		m.Invalidate(ctx, sid)
		return core.User{}, "", ErrExpired
	}

	m.mu.Lock()
	m.profiles[sid] = user
	m.mu.Unlock()
	m.notify(Event{SID: sid, State: StateAuthenticated, User: &user})
	return user, sess.Token, nil
}

// Logout clears the session unconditionally. It cannot fail from the
// caller's point of view.
func (m *Manager) Logout(ctx context.Context, sid string) {
	if sid == "" {
		return
	}
	m.Invalidate(ctx, sid)
	m.logger.InfoContext(ctx, "Logged out",
		log.FieldSessionID, sid,
		log.FieldOperation, log.OpLogout)
}

// Invalidate clears the token and profile for sid. It is idempotent:
// the stored row is the single source of truth, and the delete's
// affected-row count decides which call actually cleared the session.
// Concurrent rejected requests for the same sid therefore surface the
// expiry notice exactly once.
func (m *Manager) Invalidate(ctx context.Context, sid string) bool {
	m.mu.Lock()
	delete(m.profiles, sid)
	m.mu.Unlock()

	removed, err := m.store.Delete(ctx, sid)
	if err != nil {
		m.logger.ErrorContext(ctx, "Session delete failed",
			log.FieldSessionID, sid,
			log.FieldError, err)
	}

	cleared := removed > 0
	if cleared {
		m.notify(Event{SID: sid, State: StateAnonymous})
	}
	return cleared
}
