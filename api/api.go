// Package api serves the cached content over a local HTTP interface. Every
// content route passes through the route guard, so a reader sees exactly
// what the session allows.
package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-openapi/runtime/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmcleod/lectern/auth"
	"github.com/jmcleod/lectern/client"
	"github.com/jmcleod/lectern/content"
	"github.com/jmcleod/lectern/guard"
)

// Session is the part of auth.Manager the server needs.
type Session interface {
	State() auth.State
	User() *client.User
	Login(ctx context.Context, username, password string) bool
	Logout(ctx context.Context)
}

var _ Session = (*auth.Manager)(nil)

// Content is the cached content facade.
type Content interface {
	Topics(ctx context.Context, f client.TopicFilter) (*client.Page[client.Topic], error)
	TopicsWithCounts(ctx context.Context, f client.TopicFilter) (*client.Page[client.Topic], error)
	AdminTopics(ctx context.Context, f client.TopicFilter) (*client.Page[client.Topic], error)
	Topic(ctx context.Context, id string) (*client.Topic, error)
	CreateTopic(ctx context.Context, in client.TopicInput) (*client.Topic, error)
	UpdateTopic(ctx context.Context, id string, in client.TopicInput) (*client.Topic, error)
	DeleteTopic(ctx context.Context, id string) error
	ToggleTopicStatus(ctx context.Context, id string) (*client.Topic, error)

	Questions(ctx context.Context, f client.QuestionFilter) (*client.Page[client.Question], error)
	Question(ctx context.Context, id string) (*client.Question, error)
	CreateQuestion(ctx context.Context, in client.QuestionInput) (*client.Question, error)
	UpdateQuestion(ctx context.Context, id string, in client.QuestionInput) (*client.Question, error)
	DeleteQuestion(ctx context.Context, id string) error

	AddAnswer(ctx context.Context, questionID string, in client.AnswerInput) (*client.Answer, error)
	UpdateAnswer(ctx context.Context, questionID, answerID string, in client.AnswerInput) (*client.Answer, error)
	DeleteAnswer(ctx context.Context, questionID, answerID string) error
}

var _ Content = (*content.Service)(nil)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	session Session
	content Content
	guard   *guard.Controller
	logger  *slog.Logger
	limiter *loginRateLimiter
	metrics *httpMetrics
	gather  prometheus.Gatherer
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the Server instance.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRegistry registers HTTP metrics with reg and serves everything it
// gathers on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = newHTTPMetrics(reg)
		s.gather = reg
	}
}

// WithClock overrides time.Now in the login limiter, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.limiter.now = now }
}

// New creates a Server.
func New(sess Session, svc Content, ctrl *guard.Controller, opts ...Option) *Server {
	s := &Server{
		session: sess,
		content: svc,
		guard:   ctrl,
		logger:  slog.New(slog.DiscardHandler),
		limiter: newLoginRateLimiter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		reg := prometheus.NewRegistry()
		s.metrics = newHTTPMetrics(reg)
		s.gather = reg
	}
	s.logger = s.logger.With("component", "api")
	return s
}

// Router returns a chi.Router with all routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RequestLogger(&chimw.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(s.metrics.instrument)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))
	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	r.Get("/health", s.Health)

	r.Get(s.loginPath(), s.LoginPage)
	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.SessionStatus)
		r.With(CSRFMiddleware).Post("/login", s.Login)
		r.With(CSRFMiddleware).Post("/logout", s.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.GuardMiddleware)
		r.Use(CSRFMiddleware)

		r.Get("/topics", s.ListTopics)
		r.Get("/topics/with-counts", s.TopicsWithCounts)
		r.Get("/topics/{id}", s.GetTopic)

		r.Get("/questions", s.ListQuestions)
		r.Post("/questions", s.CreateQuestion)
		r.Get("/questions/{id}", s.GetQuestion)
		r.Put("/questions/{id}", s.UpdateQuestion)
		r.Delete("/questions/{id}", s.DeleteQuestion)
		r.Post("/questions/{id}/answers", s.AddAnswer)
		r.Put("/questions/{id}/answers/{answerID}", s.UpdateAnswer)
		r.Delete("/questions/{id}/answers/{answerID}", s.DeleteAnswer)

		r.Route("/admin/topics", func(r chi.Router) {
			r.Use(s.RequireAdmin)
			r.Get("/", s.AdminListTopics)
			r.Post("/", s.CreateTopic)
			r.Put("/{id}", s.UpdateTopic)
			r.Delete("/{id}", s.DeleteTopic)
			r.Post("/{id}/toggle-status", s.ToggleTopicStatus)
		})
	})

	return r
}

// loginPath is the route the login page is mounted on. Any query in the
// configured path is dropped since routing matches paths only.
func (s *Server) loginPath() string {
	login := guard.DefaultConfig().LoginPath
	if s.guard != nil && s.guard.Config().LoginPath != "" {
		login = s.guard.Config().LoginPath
	}
	login, _, _ = strings.Cut(login, "?")
	return login
}
