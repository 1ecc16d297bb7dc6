// Package apitest runs an in-memory fake of the remote content API for tests.
// Every route counts its calls so tests can assert on cache hits.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/lectern/client"
)

type account struct {
	password string
	role     string
}

type failure struct {
	status  int
	message string
	// remaining is the number of calls left to fail; -1 fails forever.
	remaining int
}

// Server is a fake backend. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	calls     map[string]int
	failures  map[string]*failure
	delays    map[string]chan struct{}
	accounts  map[string]account
	access    map[string]string // access token -> username
	refresh   map[string]string // refresh token -> username
	topics    map[string]*client.Topic
	questions map[string]*client.Question
	seq       int
	// topLevelAuth controls where login/refresh place the token payload.
	topLevelAuth bool
	// bareVerify makes verify confirm the token without a user.
	bareVerify bool
}

// New starts a fake server with the accounts admin/correct (role admin) and
// reader/secret (role reader). It is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		calls:    make(map[string]int),
		failures: make(map[string]*failure),
		delays:   make(map[string]chan struct{}),
		accounts: map[string]account{
			"admin":  {password: "correct", role: "admin"},
			"reader": {password: "secret", role: "reader"},
		},
		access:       make(map[string]string),
		refresh:      make(map[string]string),
		topics:       make(map[string]*client.Topic),
		questions:    make(map[string]*client.Question),
		topLevelAuth: true,
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()

	s.route(r, http.MethodPost, "/auth/login", false, s.login)
	s.route(r, http.MethodPost, "/auth/logout", false, s.logout)
	s.route(r, http.MethodPost, "/auth/refresh", false, s.refreshTokens)
	s.route(r, http.MethodGet, "/auth/verify", true, s.verify)

	s.route(r, http.MethodGet, "/topics", true, s.listTopics(false))
	s.route(r, http.MethodGet, "/topics/with-counts", true, s.listTopics(true))
	s.route(r, http.MethodGet, "/topics/{id}", true, s.getTopic)
	s.route(r, http.MethodPost, "/topics", true, s.createTopic)
	s.route(r, http.MethodPut, "/topics/{id}", true, s.updateTopic)
	s.route(r, http.MethodDelete, "/topics/{id}", true, s.deleteTopic)
	s.route(r, http.MethodGet, "/admin/topics", true, s.listTopics(false))
	s.route(r, http.MethodPatch, "/admin/topics/{id}/toggle-status", true, s.toggleTopic)

	s.route(r, http.MethodGet, "/questions", true, s.listQuestions)
	s.route(r, http.MethodGet, "/questions/{id}", true, s.getQuestion)
	s.route(r, http.MethodPost, "/questions", true, s.createQuestion)
	s.route(r, http.MethodPut, "/questions/{id}", true, s.updateQuestion)
	s.route(r, http.MethodDelete, "/questions/{id}", true, s.deleteQuestion)
	s.route(r, http.MethodPost, "/questions/{id}/answers", true, s.addAnswer)
	s.route(r, http.MethodPut, "/questions/{id}/answers/{answerID}", true, s.updateAnswer)
	s.route(r, http.MethodDelete, "/questions/{id}/answers/{answerID}", true, s.deleteAnswer)
	return r
}

// route registers h under "METHOD pattern", counting calls, applying
// injected failures, and enforcing bearer auth when authRequired is set.
func (s *Server) route(r chi.Router, method, pattern string, authRequired bool, h http.HandlerFunc) {
	name := method + " " + pattern
	r.MethodFunc(method, pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		gate := s.delays[name]
		f := s.failures[name]
		var inject *failure
		if f != nil && f.remaining != 0 {
			inject = f
			if f.remaining > 0 {
				f.remaining--
			}
		}
		s.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if inject != nil {
			writeJSON(w, inject.status, map[string]any{"success": false, "error": inject.message})
			return
		}
		if authRequired {
			if _, ok := s.userFor(r); !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "token expired"})
				return
			}
		}
		h(w, r)
	})
}

// Calls returns how many times "METHOD pattern" was hit, e.g. "GET /topics".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Fail makes the next n calls to route answer with status and message.
// n < 0 fails every call until Recover.
func (s *Server) Fail(route string, status int, message string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &failure{status: status, message: message, remaining: n}
}

// Recover removes any injected failure on route.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Hold blocks calls to route until the returned release func is called.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.delays[route] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.delays, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// NestAuthPayload makes login and refresh put the token fields under data
// instead of the top level of the body.
func (s *Server) NestAuthPayload() {
	s.mu.Lock()
	s.topLevelAuth = false
	s.mu.Unlock()
}

// BareVerify makes verify answer success without echoing the user.
func (s *Server) BareVerify() {
	s.mu.Lock()
	s.bareVerify = true
	s.mu.Unlock()
}

// IssueTokens mints a valid token pair for username without a login call.
func (s *Server) IssueTokens(username string) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(username)
}

// ExpireAccessTokens revokes every access token; refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
}

// RevokeRefreshTokens invalidates every refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.refresh)
}

// RefreshTokenValid reports whether tok is still accepted by /auth/refresh.
func (s *Server) RefreshTokenValid(tok string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refresh[tok]
	return ok
}

// SeedTopic inserts a topic and returns it.
func (s *Server) SeedTopic(title string) client.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &client.Topic{ID: s.nextIDLocked("t"), Title: title, Status: "active", CreatedAt: time.Now().UTC()}
	s.topics[t.ID] = t
	return *t
}

// SeedQuestion inserts a question under topicID and returns it.
func (s *Server) SeedQuestion(topicID, title string) client.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := &client.Question{ID: s.nextIDLocked("q"), TopicID: topicID, Title: title, CreatedAt: time.Now().UTC()}
	s.questions[q.ID] = q
	return *q
}

func (s *Server) nextIDLocked(prefix string) string {
	s.seq++
	return prefix + strconv.Itoa(s.seq)
}

func (s *Server) issueLocked(username string) (string, string) {
	s.seq++
	access := fmt.Sprintf("access-%s-%d", username, s.seq)
	refresh := fmt.Sprintf("refresh-%s-%d", username, s.seq)
	s.access[access] = username
	s.refresh[refresh] = username
	return access, refresh
}

func (s *Server) userFor(r *http.Request) (client.User, bool) {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || tok == "" {
		return client.User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.access[tok]
	if !ok {
		return client.User{}, false
	}
	return client.User{Username: name, Role: s.accounts[name].role}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return v, false
	}
	return v, true
}

func (s *Server) authPayload(w http.ResponseWriter, payload map[string]any) {
	s.mu.Lock()
	top := s.topLevelAuth
	s.mu.Unlock()
	if top {
		payload["success"] = true
		writeJSON(w, http.StatusOK, payload)
		return
	}
	ok(w, http.StatusOK, payload)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	req, good := decode[client.LoginRequest](w, r)
	if !good {
		return
	}
	s.mu.Lock()
	acct, found := s.accounts[req.Username]
	if !found || acct.password != req.Password {
		s.mu.Unlock()
		fail(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	access, refresh := s.issueLocked(req.Username)
	s.mu.Unlock()
	s.authPayload(w, map[string]any{
		"token":        access,
		"refreshToken": refresh,
		"user":         client.User{Username: req.Username, Role: acct.role},
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	req, good := decode[struct {
		RefreshToken string `json:"refreshToken"`
	}](w, r)
	if !good {
		return
	}
	s.mu.Lock()
	delete(s.refresh, req.RefreshToken)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) refreshTokens(w http.ResponseWriter, r *http.Request) {
	req, good := decode[struct {
		RefreshToken string `json:"refreshToken"`
	}](w, r)
	if !good {
		return
	}
	s.mu.Lock()
	name, found := s.refresh[req.RefreshToken]
	if !found {
		s.mu.Unlock()
		fail(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	delete(s.refresh, req.RefreshToken)
	access, refresh := s.issueLocked(name)
	s.mu.Unlock()
	s.authPayload(w, map[string]any{"token": access, "refreshToken": refresh})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	u, _ := s.userFor(r)
	s.mu.Lock()
	bare := s.bareVerify
	s.mu.Unlock()
	if bare {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": u})
}

func (s *Server) listTopics(withCounts bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		search := strings.ToLower(r.URL.Query().Get("search"))
		status := r.URL.Query().Get("status")
		s.mu.Lock()
		items := make([]client.Topic, 0, len(s.topics))
		for _, t := range s.topics {
			if search != "" && !strings.Contains(strings.ToLower(t.Title), search) {
				continue
			}
			if status != "" && t.Status != status {
				continue
			}
			cp := *t
			if withCounts {
				for _, q := range s.questions {
					if q.TopicID == t.ID {
						cp.QuestionCount++
					}
				}
			}
			items = append(items, cp)
		}
		s.mu.Unlock()
		slices.SortFunc(items, func(a, b client.Topic) int { return strings.Compare(a.ID, b.ID) })
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"data":       items,
			"pagination": client.Pagination{Page: 1, Limit: len(items), Total: len(items), TotalPages: 1},
		})
	}
}

func (s *Server) getTopic(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	t, found := s.topics[chi.URLParam(r, "id")]
	var cp client.Topic
	if found {
		cp = *t
	}
	s.mu.Unlock()
	if !found {
		fail(w, http.StatusNotFound, "topic not found")
		return
	}
	ok(w, http.StatusOK, cp)
}

func (s *Server) createTopic(w http.ResponseWriter, r *http.Request) {
	in, good := decode[client.TopicInput](w, r)
	if !good {
		return
	}
	s.mu.Lock()
	t := &client.Topic{ID: s.nextIDLocked("t"), Title: in.Title, Slug: in.Slug, Description: in.Description, Status: "active", CreatedAt: time.Now().UTC()}
	s.topics[t.ID] = t
	cp := *t
	s.mu.Unlock()
	ok(w, http.StatusCreated, cp)
}

func (s *Server) updateTopic(w http.ResponseWriter, r *http.Request) {
	in, good := decode[client.TopicInput](w, r)
	if !good {
		return
	}
	s.mu.Lock()
	t, found := s.topics[chi.URLParam(r, "id")]
	var cp client.Topic
	if found {
		t.Title, t.Description = in.Title, in.Description
		if in.Status != "" {
			t.Status = in.Status
		}
		t.UpdatedAt = time.Now().UTC()
		cp = *t
	}
	s.mu.Unlock()
	if !found {
		fail(w, http.StatusNotFound, "topic not found")
		return
	}
	ok(w, http.StatusOK, cp)
}

func (s *Server) deleteTopic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, found := s.topics[id]
	delete(s.topics, id)
	for qid, q := range s.questions {
		if q.TopicID == id {
			delete(s.questions, qid)
		}
	}
	s.mu.Unlock()
	if !found {
		fail(w, http.StatusNotFound, "topic not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) toggleTopic(w http.ResponseWriter, r *http.Request) {
	u, _ := s.userFor(r)
	if u.Role != "admin" {
		fail(w, http.StatusForbidden, "admin role required")
		return
	}
	s.mu.Lock()
	t, found := s.topics[chi.URLParam(r, "id")]
	var cp client.Topic
	if found {
		if t.Status == "active" {
			t.Status = "inactive"
		} else {
			t.Status = "active"
		}
		cp = *t
	}
	s.mu.Unlock()
	if !found {
		fail(w, http.StatusNotFound, "topic not found")
		return
	}
	ok(w, http.StatusOK, cp)
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	topicID := r.URL.Query().Get("topicId")
	s.mu.Lock()
	items := make([]client.Question, 0, len(s.questions))
	for _, q := range s.questions {
		if topicID != "" && q.TopicID != topicID {
			continue
		}
		cp := *q
		cp.AnswerCount = len(q.Answers)
		cp.Answers = nil
		items = append(items, cp)
	}
	s.mu.Unlock()
	slices.SortFunc(items, func(a, b client.Question) int { return strings.Compare(a.ID, b.ID) })
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"data":       items,
		"pagination": client.Pagination{Page: 1, Limit: len(items), Total: len(items), TotalPages: 1},
	})
}

func (s *Server) getQuestion(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	q, found := s.questions[chi.URLParam(r, "id")]
	var cp client.Question
	if found {
		cp = *q
		cp.Answers = slices.Clone(q.Answers)
		cp.AnswerCount = len(q.Answers)
	}
	s.mu.Unlock()
	if !found {
		fail(w, http.StatusNotFound, "question not found")
		return
	}
	ok(w, http.StatusOK, cp)
}

func (s *Server) createQuestion(w http.ResponseWriter, r *http.Request) {
	in, good := decode[client.QuestionInput](w, r)
	if !good {
		return
	}
	u, _ := s.userFor(r)
	s.mu.Lock()
	if _, found := s.topics[in.TopicID]; !found {
		s.mu.Unlock()
		fail(w, http.StatusBadRequest, "unknown topic")
		return
	}
	q := &client.Question{ID: s.nextIDLocked("q"), TopicID: in.TopicID, Title: in.Title, Body: in.Body, Author: u.Username, CreatedAt: time.Now().UTC()}
	s.questions[q.ID] = q
	cp := *q
	s.mu.Unlock()
	ok(w, http.StatusCreated, cp)
}

func (s *Server) updateQuestion(w http.ResponseWriter, r *http.Request) {
	in, good := decode[client.QuestionInput](w, r)
	if !good {
		return
	}
	s.mu.Lock()
	q, found := s.questions[chi.URLParam(r, "id")]
	var cp client.Question
	if found {
		q.Title, q.Body = in.Title, in.Body
		q.UpdatedAt = time.Now().UTC()
		cp = *q
	}
	s.mu.Unlock()
	if !found {
		fail(w, http.StatusNotFound, "question not found")
		return
	}
	ok(w, http.StatusOK, cp)
}

func (s *Server) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, found := s.questions[id]
	delete(s.questions, id)
	s.mu.Unlock()
	if !found {
		fail(w, http.StatusNotFound, "question not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) addAnswer(w http.ResponseWriter, r *http.Request) {
	in, good := decode[client.AnswerInput](w, r)
	if !good {
		return
	}
	u, _ := s.userFor(r)
	s.mu.Lock()
	q, found := s.questions[chi.URLParam(r, "id")]
	var a client.Answer
	if found {
		a = client.Answer{ID: s.nextIDLocked("a"), QuestionID: q.ID, Body: in.Body, Author: u.Username, CreatedAt: time.Now().UTC()}
		q.Answers = append(q.Answers, a)
	}
	s.mu.Unlock()
	if !found {
		fail(w, http.StatusNotFound, "question not found")
		return
	}
	ok(w, http.StatusCreated, a)
}

func (s *Server) updateAnswer(w http.ResponseWriter, r *http.Request) {
	in, good := decode[client.AnswerInput](w, r)
	if !good {
		return
	}
	s.mu.Lock()
	q, found := s.questions[chi.URLParam(r, "id")]
	var a client.Answer
	updated := false
	if found {
		for i := range q.Answers {
			if q.Answers[i].ID == chi.URLParam(r, "answerID") {
				q.Answers[i].Body = in.Body
				q.Answers[i].UpdatedAt = time.Now().UTC()
				a = q.Answers[i]
				updated = true
			}
		}
	}
	s.mu.Unlock()
	if !updated {
		fail(w, http.StatusNotFound, "answer not found")
		return
	}
	ok(w, http.StatusOK, a)
}

func (s *Server) deleteAnswer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	q, found := s.questions[chi.URLParam(r, "id")]
	removed := false
	if found {
		n := len(q.Answers)
		q.Answers = slices.DeleteFunc(q.Answers, func(a client.Answer) bool {
			return a.ID == chi.URLParam(r, "answerID")
		})
		removed = len(q.Answers) < n
	}
	s.mu.Unlock()
	if !removed {
		fail(w, http.StatusNotFound, "answer not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
