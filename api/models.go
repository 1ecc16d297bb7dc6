package api

import "github.com/jmcleod/lectern/client"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the JSON body for POST /session/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse describes the local session.
type SessionResponse struct {
	State string       `json:"state"`
	User  *client.User `json:"user,omitempty"`
	// Next is where the caller should go after a successful login.
	Next string `json:"next,omitempty"`
	// CSRFToken echoes the lectern_csrf cookie for non-browser callers.
	CSRFToken string `json:"csrf_token,omitempty"`
}

// LoginPageResponse is returned from the login path. The server renders no
// pages; the body tells a caller how to sign in.
type LoginPageResponse struct {
	State     string `json:"state"`
	LoginURL  string `json:"login_url"`
	Next      string `json:"next,omitempty"`
	CSRFToken string `json:"csrf_token"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}
