package api

import (
	"net/http"
	"strings"
)

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", State: s.session.State().String()})
}

// SessionStatus handles GET /session. It also issues the CSRF cookie that
// mutating requests must echo.
func (s *Server) SessionStatus(w http.ResponseWriter, r *http.Request) {
	token := ensureCSRFCookie(w, r)
	writeJSON(w, http.StatusOK, SessionResponse{
		State:     s.session.State().String(),
		User:      s.session.User(),
		CSRFToken: token,
	})
}

// LoginPage handles GET on the configured login path, the target of guard
// redirects.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LoginPageResponse{
		State:     s.session.State().String(),
		LoginURL:  "/session/login",
		Next:      localNext(r.URL.Query().Get("next")),
		CSRFToken: ensureCSRFCookie(w, r),
	})
}

// Login handles POST /session/login. Failures are reported without the
// cause; the auth audit log has it.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if blocked, retryAfter := s.limiter.check(req.Username); blocked {
		writeRateLimited(w, retryAfter)
		return
	}
	if !s.session.Login(r.Context(), req.Username, req.Password) {
		s.limiter.recordFailure(req.Username)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.limiter.recordSuccess(req.Username)

	writeJSON(w, http.StatusOK, SessionResponse{
		State: s.session.State().String(),
		User:  s.session.User(),
		Next:  s.guard.AfterLogin(),
	})
}

// Logout handles POST /session/logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	writeJSON(w, http.StatusOK, SessionResponse{State: s.session.State().String()})
}

// localNext keeps next only when it is a path on this server.
func localNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return ""
	}
	return next
}
