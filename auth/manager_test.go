package auth

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/lectern/client"
	"github.com/jmcleod/lectern/internal/apitest"
	"github.com/jmcleod/lectern/session"
	"github.com/jmcleod/lectern/storage"
	"github.com/jmcleod/lectern/storage/memory"
)

// recordingSlots counts every write that reaches storage.
type recordingSlots struct {
	storage.Slots
	writes atomic.Int32
}

func (r *recordingSlots) Put(name, value string) error {
	r.writes.Add(1)
	return r.Slots.Put(name, value)
}

func (r *recordingSlots) Delete(name string) error {
	r.writes.Add(1)
	return r.Slots.Delete(name)
}

func (r *recordingSlots) Batch(fn func(tx storage.BatchTx) error) error {
	return r.Slots.Batch(func(tx storage.BatchTx) error {
		return fn(&recordingTx{BatchTx: tx, writes: &r.writes})
	})
}

type recordingTx struct {
	storage.BatchTx
	writes *atomic.Int32
}

func (tx *recordingTx) Put(name, value string) error {
	tx.writes.Add(1)
	return tx.BatchTx.Put(name, value)
}

func (tx *recordingTx) Delete(name string) error {
	tx.writes.Add(1)
	return tx.BatchTx.Delete(name)
}

type harness struct {
	srv    *apitest.Server
	slots  *recordingSlots
	store  *session.Store
	client *client.Client
	mgr    *Manager

	mu     sync.Mutex
	states []State
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		srv:   apitest.New(t),
		slots: &recordingSlots{Slots: memory.NewRepository()},
	}
	h.store = session.NewStore(h.slots)
	c, err := client.New(h.srv.URL, client.WithTokenSource(h.store))
	require.NoError(t, err)
	h.client = c
	h.mgr = NewManager(h.store, c, opts...)
	c.SetRefresher(h.mgr.RefreshAccessToken)
	h.mgr.Subscribe(func(s State) {
		h.mu.Lock()
		h.states = append(h.states, s)
		h.mu.Unlock()
	})
	return h
}

// seed persists a session for username as if from an earlier run.
func (h *harness) seed(t *testing.T, username, role string) (access, refresh string) {
	t.Helper()
	access, refresh = h.srv.IssueTokens(username)
	require.NoError(t, session.NewStore(h.slots.Slots).Save(session.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         &client.User{Username: username, Role: role},
	}))
	return access, refresh
}

func (h *harness) observed() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.states...)
}

func assertSlotsEmpty(t *testing.T, slots storage.Slots) {
	t.Helper()
	for _, name := range []string{storage.SlotAccessToken, storage.SlotRefreshToken, storage.SlotUser} {
		_, err := slots.Get(name)
		assert.True(t, errors.Is(err, storage.ErrNotFound), "slot %s should be empty", name)
	}
}

func TestNewManagerStartsInitializing(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, StateInitializing, h.mgr.State())
	assert.False(t, h.mgr.IsAuthenticated())
	assert.Nil(t, h.mgr.User())
}

func TestInitializeWithoutSession(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, StateUnauthenticated, h.mgr.Initialize(t.Context()))
	assert.Equal(t, []State{StateUnauthenticated}, h.observed())
	assert.Zero(t, h.srv.Calls("GET /auth/verify"))
}

func TestInitializeWithValidSession(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "admin", "stale-role")

	assert.Equal(t, StateAuthenticated, h.mgr.Initialize(t.Context()))
	assert.Equal(t, []State{StateAuthenticated}, h.observed())
	require.NotNil(t, h.mgr.User())
	assert.Equal(t, "admin", h.mgr.User().Role, "verified user replaces the stored one")
	assert.Zero(t, h.srv.Calls("POST /auth/refresh"))
}

func TestInitializeExpiredTokenRefreshesWithoutFlicker(t *testing.T) {
	h := newHarness(t)
	oldAccess, oldRefresh := h.seed(t, "reader", "reader")
	h.srv.ExpireAccessTokens()

	assert.Equal(t, StateAuthenticated, h.mgr.Initialize(t.Context()))
	assert.Equal(t, []State{StateAuthenticated}, h.observed(), "never exposes unauthenticated")
	assert.Equal(t, 1, h.srv.Calls("POST /auth/refresh"))
	assert.NotEqual(t, oldAccess, h.store.AccessToken())
	assert.False(t, h.srv.RefreshTokenValid(oldRefresh))
	assert.True(t, h.srv.RefreshTokenValid(h.store.RefreshToken()))

	// The new token works for content.
	_, err := h.client.ListTopics(t.Context(), client.TopicFilter{})
	require.NoError(t, err)
}

func TestInitializeFailedRefreshClearsSession(t *testing.T) {
	var ended atomic.Int32
	h := newHarness(t, OnSessionEnd(func() { ended.Add(1) }))
	h.seed(t, "reader", "reader")
	h.srv.ExpireAccessTokens()
	h.srv.RevokeRefreshTokens()

	assert.Equal(t, StateUnauthenticated, h.mgr.Initialize(t.Context()))
	assert.Equal(t, []State{StateUnauthenticated}, h.observed())
	assertSlotsEmpty(t, h.slots)
	assert.EqualValues(t, 1, ended.Load())
}

func TestLoginWrongPasswordWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.mgr.Initialize(t.Context())
	before := h.slots.writes.Load()

	assert.False(t, h.mgr.Login(t.Context(), "admin", "wrong"))
	assert.Equal(t, before, h.slots.writes.Load())
	assert.Equal(t, StateUnauthenticated, h.mgr.State())
	assert.Equal(t, []State{StateUnauthenticated}, h.observed())
	assertSlotsEmpty(t, h.slots)
}

func TestLoginEmptyCredentialsSkipsAPI(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.mgr.Login(t.Context(), "", "x"))
	assert.False(t, h.mgr.Login(t.Context(), "admin", ""))
	assert.Zero(t, h.srv.Calls("POST /auth/login"))
}

func TestLoginPersistsSession(t *testing.T) {
	h := newHarness(t)
	h.mgr.Initialize(t.Context())

	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	assert.True(t, h.mgr.IsAuthenticated())
	assert.True(t, h.mgr.User().IsAdmin())
	assert.Equal(t, []State{StateUnauthenticated, StateAuthenticated}, h.observed())

	got, ok, err := session.NewStore(h.slots.Slots).Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h.store.AccessToken(), got.AccessToken)
	assert.NotEmpty(t, got.RefreshToken)
	assert.Equal(t, "admin", got.User.Username)
}

func TestLoginNestedPayload(t *testing.T) {
	h := newHarness(t)
	h.srv.NestAuthPayload()
	require.True(t, h.mgr.Login(t.Context(), "reader", "secret"))
	assert.Equal(t, "reader", h.mgr.User().Username)
}

func TestLogoutClearsEvenWhenServerFails(t *testing.T) {
	var ended atomic.Int32
	h := newHarness(t, OnSessionEnd(func() { ended.Add(1) }))
	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	h.srv.Fail("POST /auth/logout", 500, "database unavailable", -1)

	h.mgr.Logout(t.Context())
	assert.Equal(t, StateUnauthenticated, h.mgr.State())
	assert.Nil(t, h.mgr.User())
	assert.Empty(t, h.store.AccessToken())
	assertSlotsEmpty(t, h.slots)
	assert.Equal(t, 1, h.srv.Calls("POST /auth/logout"))
	assert.EqualValues(t, 1, ended.Load())
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	rt := h.store.RefreshToken()

	h.mgr.Logout(t.Context())
	assert.False(t, h.srv.RefreshTokenValid(rt))
}

func TestRefreshFailureMutatesNothing(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	access, refresh := h.store.AccessToken(), h.store.RefreshToken()
	before := h.slots.writes.Load()
	h.srv.RevokeRefreshTokens()

	assert.False(t, h.mgr.RefreshAccessToken(t.Context()))
	assert.Equal(t, before, h.slots.writes.Load())
	assert.Equal(t, access, h.store.AccessToken())
	assert.Equal(t, refresh, h.store.RefreshToken())
	assert.True(t, h.mgr.IsAuthenticated())
}

func TestRefreshWithoutTokenFails(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.mgr.RefreshAccessToken(t.Context()))
	assert.Zero(t, h.srv.Calls("POST /auth/refresh"))
}

func TestConcurrentRefreshSharesOneRequest(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	release := h.srv.Hold("POST /auth/refresh")

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.mgr.RefreshAccessToken(t.Context()) {
				succeeded.Add(1)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	assert.EqualValues(t, 5, succeeded.Load())
	assert.Equal(t, 1, h.srv.Calls("POST /auth/refresh"))
}

func TestClientRetriesWithRefreshedToken(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	h.srv.SeedTopic("Go")
	h.srv.ExpireAccessTokens()

	page, err := h.client.ListTopics(t.Context(), client.TopicFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, h.srv.Calls("POST /auth/refresh"))
	assert.Equal(t, 2, h.srv.Calls("GET /topics"))
}

func TestSubscribeCancel(t *testing.T) {
	h := newHarness(t)
	var n atomic.Int32
	cancel := h.mgr.Subscribe(func(State) { n.Add(1) })
	h.mgr.Initialize(t.Context())
	cancel()
	cancel()
	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	assert.EqualValues(t, 1, n.Load())
}

func TestAuditLogOmitsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := newHarness(t, WithLogger(logger))

	assert.False(t, h.mgr.Login(t.Context(), "admin", "hunter2-wrong"))
	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	token := h.store.AccessToken()
	h.mgr.Logout(t.Context())

	out := buf.String()
	assert.Contains(t, out, `"event":"login_failure"`)
	assert.Contains(t, out, `"reason":"invalid credentials"`)
	assert.Contains(t, out, `"event":"login_success"`)
	assert.Contains(t, out, `"event":"logout"`)
	assert.Contains(t, out, `"component":"audit"`)
	assert.NotContains(t, out, "hunter2-wrong")
	assert.NotContains(t, out, "correct")
	assert.NotContains(t, out, token)
}

func TestAlertOnLoginFailureSpike(t *testing.T) {
	var alerts []AlertEvent
	h := newHarness(t, WithAlert(func(e AlertEvent) { alerts = append(alerts, e) }))
	for range defaultLoginFailureThreshold {
		h.mgr.Login(t.Context(), "admin", "nope")
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLoginFailureSpike, alerts[0].Type)
	assert.Equal(t, defaultLoginFailureThreshold, alerts[0].Count)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestInitializeVerifyWithoutUserKeepsSession(t *testing.T) {
	h := newHarness(t)
	access, refresh := h.seed(t, "reader", "reader")
	h.srv.BareVerify()

	assert.Equal(t, StateAuthenticated, h.mgr.Initialize(t.Context()))
	require.NotNil(t, h.mgr.User())
	assert.Equal(t, "reader", h.mgr.User().Username, "stored user stands")
	assert.Equal(t, access, h.store.AccessToken())
	assert.Equal(t, refresh, h.store.RefreshToken())
	assert.Zero(t, h.srv.Calls("POST /auth/refresh"))

	_, err := h.slots.Get(storage.SlotUser)
	assert.NoError(t, err)
}

func TestRefreshFinishingAfterLogoutIsDropped(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	release := h.srv.Hold("POST /auth/refresh")

	done := make(chan bool, 1)
	go func() { done <- h.mgr.RefreshAccessToken(t.Context()) }()
	require.Eventually(t, func() bool { return h.srv.Calls("POST /auth/refresh") == 1 },
		time.Second, 5*time.Millisecond)

	h.mgr.Logout(t.Context())
	release()

	select {
	case ok := <-done:
		assert.False(t, ok, "result of a refresh that outlived its session")
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not return")
	}
	assert.Equal(t, StateUnauthenticated, h.mgr.State())
	assert.Empty(t, h.store.AccessToken())
	assert.Empty(t, h.store.RefreshToken())
	assert.Nil(t, h.store.Current().User)
	assertSlotsEmpty(t, h.slots)
}

func TestInitializeDoesNotUndoConcurrentLogin(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "reader", "reader")
	h.srv.ExpireAccessTokens()
	h.srv.RevokeRefreshTokens()
	release := h.srv.Hold("GET /auth/verify")

	done := make(chan State, 1)
	go func() { done <- h.mgr.Initialize(t.Context()) }()
	require.Eventually(t, func() bool { return h.srv.Calls("GET /auth/verify") == 1 },
		time.Second, 5*time.Millisecond)

	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	release()

	select {
	case s := <-done:
		assert.Equal(t, StateAuthenticated, s)
	case <-time.After(2 * time.Second):
		t.Fatal("initialize did not return")
	}
	require.NotNil(t, h.mgr.User())
	assert.Equal(t, "admin", h.mgr.User().Username)
	assert.NotEmpty(t, h.store.AccessToken())
	_, err := h.slots.Get(storage.SlotRefreshToken)
	assert.NoError(t, err, "login survives the stale restore")
}

func TestLoginAsAnotherUserEndsPreviousSession(t *testing.T) {
	var ended atomic.Int32
	h := newHarness(t, OnSessionEnd(func() { ended.Add(1) }))

	require.True(t, h.mgr.Login(t.Context(), "reader", "secret"))
	assert.Zero(t, ended.Load())

	require.True(t, h.mgr.Login(t.Context(), "reader", "secret"))
	assert.Zero(t, ended.Load(), "same user keeps its session data")

	require.True(t, h.mgr.Login(t.Context(), "admin", "correct"))
	assert.EqualValues(t, 1, ended.Load())
	assert.Equal(t, "admin", h.mgr.User().Username)
}
