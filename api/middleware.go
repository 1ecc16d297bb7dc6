package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/jmcleod/lectern/guard"
)

const (
	maxAuthBodySize    = 4 << 10
	maxContentBodySize = 64 << 10
	// pendingRetryAfter is the Retry-After sent while the session is being
	// restored.
	pendingRetryAfter = "1"
)

// GuardMiddleware applies the route guard to every request: 503 while the
// session is initializing, a 303 to the login page (remembering the
// destination) when unauthenticated, and pass-through otherwise.
func (s *Server) GuardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.RequestURI()
		d := s.guard.Sync(s.session.State(), target)
		switch d.Action {
		case guard.Pending:
			w.Header().Set("Retry-After", pendingRetryAfter)
			writeError(w, http.StatusServiceUnavailable, "session is initializing")
		case guard.Redirect:
			http.Redirect(w, r, loginRedirect(d.Location, target), http.StatusSeeOther)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// loginRedirect adds next=target to location, keeping any query the
// configured login path already carries.
func loginRedirect(location, target string) string {
	u, err := url.Parse(location)
	if err != nil {
		u = &url.URL{Path: location}
	}
	q := u.Query()
	q.Set("next", target)
	u.RawQuery = q.Encode()
	return u.String()
}

// RequireAdmin rejects users without the admin role. It runs after
// GuardMiddleware, so a user is always present.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.session.User().IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}

// decodeJSON reads a size-limited JSON body into T, writing a 400 on
// failure.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return v, false
	}
	return v, true
}
