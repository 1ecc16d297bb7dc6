// Package auth owns the session state machine: it restores a persisted
// session at startup, performs login and logout, refreshes access tokens on
// demand and tells subscribers whenever the state changes.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmcleod/lectern/client"
	"github.com/jmcleod/lectern/session"
)

// AuthAPI is the part of the remote API the manager calls.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*client.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*client.RefreshResult, error)
	Verify(ctx context.Context) (*client.User, error)
}

var _ AuthAPI = (*client.Client)(nil)

// Manager is the single writer of the session store.
type Manager struct {
	store  *session.Store
	api    AuthAPI
	logger *slog.Logger
	audit  *auditLogger
	now    func() time.Time
	alert  AlertFunc
	onEnd  []func()

	refreshes singleflight.Group

	// writeMu serializes session writes. epoch grows on every Save and
	// Clear so work that started against an older session can tell.
	writeMu sync.Mutex
	epoch   uint64

	mu    sync.RWMutex
	state State
	user  *client.User

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for operational and audit output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAlert registers fn to be told about repeated login or refresh
// failures.
func WithAlert(fn AlertFunc) Option {
	return func(m *Manager) { m.alert = fn }
}

// OnSessionEnd registers fn to run after a session is cleared, whether by
// logout or by a failed restore. The query cache resets itself here.
func OnSessionEnd(fn func()) Option {
	return func(m *Manager) { m.onEnd = append(m.onEnd, fn) }
}

// NewManager creates a manager in StateInitializing. Call Initialize before
// relying on the state.
func NewManager(store *session.Store, api AuthAPI, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		api:    api,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		state:  StateInitializing,
		subs:   make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.audit = newAuditLogger(m.logger, m.now)
	m.audit.monitor = newFailureMonitor(m.alert, m.now)
	m.logger = m.logger.With("component", "auth")
	return m
}

// Initialize restores the persisted session. A stored session is verified
// with the API; if that fails, one refresh is attempted before the session
// is discarded. Subscribers only see the final state. If Login or Logout
// runs meanwhile, their outcome stands and Initialize returns it.
func (m *Manager) Initialize(ctx context.Context) State {
	m.writeMu.Lock()
	epoch := m.epoch
	sess, ok, err := m.store.Load()
	if err != nil {
		m.logger.Error("loading session", "error", err)
		m.clearSessionLocked(ctx, "unreadable session")
	}
	if err != nil || !ok {
		m.commit(StateUnauthenticated, nil)
		m.writeMu.Unlock()
		m.notify(StateUnauthenticated)
		return StateUnauthenticated
	}
	m.writeMu.Unlock()

	user, err := m.api.Verify(ctx)
	if err == nil {
		return m.settle(epoch, func() (State, *client.User) {
			// The backend may confirm the token without echoing the user.
			if user == nil {
				return StateAuthenticated, sess.User
			}
			if err := m.store.SetUser(*user); err != nil {
				m.logger.Warn("persisting verified user", "error", err)
			}
			return StateAuthenticated, user
		})
	}
	m.audit.logFailure(ctx, AuditVerifyFailure, errorReason(err), slog.String("username", sess.User.Username))

	refreshed := sess.RefreshToken != "" && m.RefreshAccessToken(ctx)
	return m.settle(epoch, func() (State, *client.User) {
		if refreshed {
			return StateAuthenticated, sess.User
		}
		m.clearSessionLocked(ctx, "session could not be restored")
		return StateUnauthenticated, nil
	})
}

// settle runs fn and publishes its state unless the session was replaced
// or cleared since epoch, in which case the current state is returned
// untouched.
func (m *Manager) settle(epoch uint64, fn func() (State, *client.User)) State {
	m.writeMu.Lock()
	if m.epoch != epoch {
		m.writeMu.Unlock()
		return m.State()
	}
	state, user := fn()
	m.commit(state, user)
	m.writeMu.Unlock()
	m.notify(state)
	return state
}

// Login exchanges credentials for a session. It reports success only; the
// cause of a failure goes to the audit log. On failure neither the state
// nor storage changes. Signing in as a different user ends the previous
// session first.
func (m *Manager) Login(ctx context.Context, username, password string) bool {
	if username == "" || password == "" {
		m.audit.logFailure(ctx, AuditLoginFailure, "missing credentials", slog.String("username", username))
		return false
	}

	res, err := m.api.Login(ctx, username, password)
	if err != nil {
		m.audit.logFailure(ctx, AuditLoginFailure, errorReason(err), slog.String("username", username))
		return false
	}
	if res == nil || res.Token == "" || res.User == nil {
		m.audit.logFailure(ctx, AuditLoginFailure, "incomplete login response", slog.String("username", username))
		return false
	}

	m.writeMu.Lock()
	prev := m.store.Current().User
	if prev == nil {
		prev = m.User()
	}
	sess := session.Session{AccessToken: res.Token, RefreshToken: res.RefreshToken, User: res.User}
	if err := m.store.Save(sess); err != nil {
		m.writeMu.Unlock()
		m.logger.Error("persisting session", "error", err)
		m.audit.logFailure(ctx, AuditLoginFailure, "session not persisted", slog.String("username", username))
		return false
	}
	m.epoch++
	if prev != nil && prev.Username != res.User.Username {
		m.audit.logFailure(ctx, AuditSessionCleared, "replaced by another user", slog.String("username", prev.Username))
		m.runEndHooks()
	}
	m.commit(StateAuthenticated, res.User)
	m.writeMu.Unlock()

	m.audit.logEvent(ctx, AuditLoginSuccess, res.User.Username, slog.String("role", res.User.Role))
	m.notify(StateAuthenticated)
	return true
}

// RefreshAccessToken trades the stored refresh token for a new pair.
// Concurrent callers share one request. On failure nothing is mutated. It
// matches client.RefreshFunc and is installed as the client's 401 hook.
func (m *Manager) RefreshAccessToken(ctx context.Context) bool {
	ch := m.refreshes.DoChan("refresh", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx)), nil
	})
	select {
	case <-ctx.Done():
		return false
	case res := <-ch:
		return res.Val.(bool)
	}
}

// refresh drops its result when the session was cleared or replaced while
// the request was in flight.
func (m *Manager) refresh(ctx context.Context) bool {
	m.writeMu.Lock()
	epoch := m.epoch
	rt := m.store.RefreshToken()
	m.writeMu.Unlock()

	if rt == "" {
		m.audit.logFailure(ctx, AuditRefreshFailure, "no refresh token")
		return false
	}
	res, err := m.api.Refresh(ctx, rt)
	if err != nil {
		m.audit.logFailure(ctx, AuditRefreshFailure, errorReason(err))
		return false
	}
	if res == nil || res.Token == "" {
		m.audit.logFailure(ctx, AuditRefreshFailure, "incomplete refresh response")
		return false
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.epoch != epoch {
		m.audit.logFailure(ctx, AuditRefreshFailure, "session changed during refresh")
		return false
	}
	if err := m.store.UpdateTokens(res.Token, res.RefreshToken); err != nil {
		m.logger.Error("persisting refreshed tokens", "error", err)
		m.audit.logFailure(ctx, AuditRefreshFailure, "tokens not persisted")
		return false
	}
	m.audit.log(ctx, AuditRefreshSuccess)
	return true
}

// Logout asks the API to revoke the refresh token, then clears the local
// session whatever the outcome.
func (m *Manager) Logout(ctx context.Context) {
	username := ""
	if u := m.User(); u != nil {
		username = u.Username
	}
	if rt := m.store.RefreshToken(); rt != "" {
		if err := m.api.Logout(ctx, rt); err != nil {
			m.logger.Warn("server logout failed", "error", err)
		}
	}

	m.writeMu.Lock()
	m.clearSessionLocked(ctx, "logout")
	m.commit(StateUnauthenticated, nil)
	m.writeMu.Unlock()

	m.audit.logEvent(ctx, AuditLogout, username)
	m.notify(StateUnauthenticated)
}

// clearSessionLocked must be called with writeMu held.
func (m *Manager) clearSessionLocked(ctx context.Context, reason string) {
	m.epoch++
	if err := m.store.Clear(); err != nil {
		m.logger.Error("clearing session", "error", err)
	}
	m.audit.logFailure(ctx, AuditSessionCleared, reason)
	m.runEndHooks()
}

func (m *Manager) runEndHooks() {
	for _, fn := range m.onEnd {
		fn()
	}
}

func (m *Manager) commit(s State, u *client.User) {
	if u != nil {
		cp := *u
		u = &cp
	}
	m.mu.Lock()
	m.state = s
	m.user = u
	m.mu.Unlock()
	m.logger.Debug("state changed", "state", s.String())
}

// notify runs outside writeMu so subscribers may call back into the
// manager.
func (m *Manager) notify(s State) {
	m.subMu.Lock()
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

// Subscribe registers fn to receive every state change. The returned
// function removes the subscription.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsAuthenticated reports whether a verified session is active.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *client.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// errorReason renders err for the audit log without leaking request
// details.
func errorReason(err error) string {
	if err == nil {
		return "empty response"
	}
	if envErr, ok := errors.AsType[*client.EnvelopeError](err); ok {
		return envErr.Message
	}
	if errors.Is(err, client.ErrInvalidInput) {
		return "invalid input"
	}
	if errors.Is(err, client.ErrTransport) {
		return "transport failure"
	}
	return err.Error()
}
