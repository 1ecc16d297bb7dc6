package guard

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/lectern/auth"
	"github.com/jmcleod/lectern/client"
	"github.com/jmcleod/lectern/internal/apitest"
	"github.com/jmcleod/lectern/session"
	"github.com/jmcleod/lectern/storage/memory"
)

func TestEvaluate(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name  string
		state auth.State
		path  string
		want  Decision
	}{
		{"initializing", auth.StateInitializing, "/topics", Decision{Action: Pending}},
		{"initializing on login", auth.StateInitializing, "/login", Decision{Action: Pending}},
		{"unauthenticated", auth.StateUnauthenticated, "/topics", Decision{Action: Redirect, Location: "/login"}},
		{"unauthenticated on login", auth.StateUnauthenticated, "/login", Decision{Action: Render}},
		{"unauthenticated on login with query", auth.StateUnauthenticated, "/login?next=%2Ftopics", Decision{Action: Render}},
		{"authenticated", auth.StateAuthenticated, "/topics", Decision{Action: Render}},
		{"authenticated on login", auth.StateAuthenticated, "/login", Decision{Action: Render}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.state, tt.path, cfg))
		})
	}
}

func TestEvaluateLoginPathWithQuery(t *testing.T) {
	cfg := Config{LoginPath: "/login?via=guard", DefaultPath: "/"}
	assert.Equal(t, Decision{Action: Redirect, Location: "/login?via=guard"},
		Evaluate(auth.StateUnauthenticated, "/topics", cfg))
	assert.Equal(t, Decision{Action: Render},
		Evaluate(auth.StateUnauthenticated, "/login?via=guard&next=%2Ftopics", cfg))
}

type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) Navigate(p string) {
	n.mu.Lock()
	n.paths = append(n.paths, p)
	n.mu.Unlock()
}

func (n *recordingNav) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func TestControllerRedirectRemembersPath(t *testing.T) {
	nav := &recordingNav{}
	c := NewController(DefaultConfig(), nav, nil)

	d := c.Sync(auth.StateUnauthenticated, "/questions/q1")
	assert.Equal(t, Redirect, d.Action)
	assert.Equal(t, []string{"/login"}, nav.visited())
	assert.Equal(t, "/questions/q1", c.AfterLogin())
	assert.Equal(t, "/", c.AfterLogin(), "intended path is consumed")
}

func TestControllerReRunsOnEveryChange(t *testing.T) {
	nav := &recordingNav{}
	c := NewController(DefaultConfig(), nav, nil)

	c.Sync(auth.StateAuthenticated, "/topics")
	assert.Empty(t, nav.visited())
	// Logout while staying on the same path redirects without a remount.
	c.Sync(auth.StateUnauthenticated, "/topics")
	assert.Equal(t, []string{"/login"}, nav.visited())
	assert.Equal(t, Redirect, c.Last().Action)
}

func TestControllerIgnoresLoginAndForeignPaths(t *testing.T) {
	c := NewController(DefaultConfig(), nil, nil)
	c.Remember("/login")
	assert.Equal(t, "/", c.AfterLogin())

	c.Remember("//evil.example/")
	assert.Equal(t, "/", c.AfterLogin())
}

func TestBindFollowsManager(t *testing.T) {
	srv := apitest.New(t)
	store := session.NewStore(memory.NewRepository())
	cl, err := client.New(srv.URL, client.WithTokenSource(store))
	require.NoError(t, err)
	mgr := auth.NewManager(store, cl)

	nav := &recordingNav{}
	c := NewController(DefaultConfig(), nav, nil)
	current := "/admin/topics"
	cancel := c.Bind(mgr, func() string { return current })
	defer cancel()
	assert.Equal(t, Pending, c.Last().Action)

	mgr.Initialize(context.Background())
	assert.Equal(t, []string{"/login"}, nav.visited())

	current = "/login"
	require.True(t, mgr.Login(context.Background(), "admin", "correct"))
	assert.Equal(t, Render, c.Last().Action)
	assert.Equal(t, "/admin/topics", c.AfterLogin())

	current = "/admin/topics"
	mgr.Logout(context.Background())
	assert.Equal(t, Redirect, c.Last().Action)
	assert.Equal(t, []string{"/login", "/login"}, nav.visited())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "redirect", Redirect.String())
	assert.Equal(t, "render", Render.String())
}
