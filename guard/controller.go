package guard

import (
	"strings"
	"sync"

	"github.com/jmcleod/lectern/auth"
)

// Navigator moves the user to another path.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// IntendedPath remembers where an unauthenticated user was headed.
type IntendedPath interface {
	Remember(path string)
	// Take returns and forgets the remembered path.
	Take() (string, bool)
}

// MemoryIntendedPath is an in-process IntendedPath.
type MemoryIntendedPath struct {
	mu   sync.Mutex
	path string
}

func (m *MemoryIntendedPath) Remember(path string) {
	m.mu.Lock()
	m.path = path
	m.mu.Unlock()
}

func (m *MemoryIntendedPath) Take() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.path
	m.path = ""
	return p, p != ""
}

// Controller applies Evaluate every time the state or the path changes.
type Controller struct {
	cfg      Config
	nav      Navigator
	intended IntendedPath

	mu   sync.Mutex
	last Decision
}

// NewController creates a controller. A nil intended store gets an
// in-memory one.
func NewController(cfg Config, nav Navigator, intended IntendedPath) *Controller {
	if intended == nil {
		intended = &MemoryIntendedPath{}
	}
	return &Controller{cfg: cfg, nav: nav, intended: intended}
}

// Config returns the controller's paths.
func (c *Controller) Config() Config { return c.cfg }

// Sync evaluates state and path and acts on the result: on a redirect it
// remembers path and navigates to the login page.
func (c *Controller) Sync(state auth.State, path string) Decision {
	d := Evaluate(state, path, c.cfg)
	c.mu.Lock()
	c.last = d
	c.mu.Unlock()

	if d.Action == Redirect {
		c.Remember(path)
		if c.nav != nil {
			c.nav.Navigate(d.Location)
		}
	}
	return d
}

// Remember stores path as the post-login destination. Empty paths and the
// login page itself are ignored.
func (c *Controller) Remember(path string) {
	if path == "" || isLoginPath(path, c.cfg.LoginPath) {
		return
	}
	c.intended.Remember(path)
}

// Last returns the most recent decision.
func (c *Controller) Last() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// AfterLogin returns where to go once logged in: the remembered path, or
// DefaultPath. The remembered path is consumed.
func (c *Controller) AfterLogin() string {
	if p, ok := c.intended.Take(); ok && isLocalPath(p) {
		return p
	}
	return c.cfg.DefaultPath
}

// isLocalPath rejects absolute and scheme-relative URLs so a remembered
// destination can never leave the site.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, `\`)
}

// StateSource is the part of auth.Manager Bind needs.
type StateSource interface {
	State() auth.State
	Subscribe(fn func(auth.State)) (cancel func())
}

var _ StateSource = (*auth.Manager)(nil)

// Bind re-syncs the controller on every auth state change, reading the
// current path from path. It syncs once immediately and returns the
// unsubscribe function.
func (c *Controller) Bind(src StateSource, path func() string) (cancel func()) {
	cancel = src.Subscribe(func(s auth.State) {
		c.Sync(s, path())
	})
	c.Sync(src.State(), path())
	return cancel
}
