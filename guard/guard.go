// Package guard decides, for a requested path and the current auth state,
// whether to render, wait or send the user to the login page.
package guard

import (
	"strings"

	"github.com/jmcleod/lectern/auth"
)

// Config names the login page and where to land after a login with no
// remembered destination.
type Config struct {
	LoginPath   string `koanf:"loginPath"`
	DefaultPath string `koanf:"defaultPath"`
}

// DefaultConfig returns the stock paths.
func DefaultConfig() Config {
	return Config{LoginPath: "/login", DefaultPath: "/"}
}

// Action is what the caller should do with the requested path.
type Action int

const (
	// Pending means the auth state is not known yet; show a placeholder.
	Pending Action = iota
	Redirect
	Render
)

func (a Action) String() string {
	switch a {
	case Pending:
		return "pending"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Evaluate. Location is set for Redirect.
type Decision struct {
	Action   Action
	Location string
}

// Evaluate maps state and path to a decision. It is pure and safe to call
// on every change.
func Evaluate(state auth.State, path string, cfg Config) Decision {
	switch state {
	case auth.StateAuthenticated:
		return Decision{Action: Render}
	case auth.StateUnauthenticated:
		if isLoginPath(path, cfg.LoginPath) {
			return Decision{Action: Render}
		}
		return Decision{Action: Redirect, Location: cfg.LoginPath}
	default:
		return Decision{Action: Pending}
	}
}

func isLoginPath(path, login string) bool {
	if login == "" {
		return false
	}
	path, _, _ = strings.Cut(path, "?")
	login, _, _ = strings.Cut(login, "?")
	return strings.TrimSuffix(path, "/") == strings.TrimSuffix(login, "/")
}
