package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jmcleod/lectern/auth"
	"github.com/jmcleod/lectern/client"
	"github.com/jmcleod/lectern/config"
	"github.com/jmcleod/lectern/content"
	"github.com/jmcleod/lectern/guard"
	"github.com/jmcleod/lectern/internal/logs"
	"github.com/jmcleod/lectern/query"
	"github.com/jmcleod/lectern/session"
	"github.com/jmcleod/lectern/storage"
	bboltstorage "github.com/jmcleod/lectern/storage/bbolt"
	"github.com/jmcleod/lectern/storage/memory"
)

// app is the wired object graph shared by all commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	store    *session.Store
	client   *client.Client
	auth     *auth.Manager
	cache    *query.Cache
	content  *content.Service
	guard    *guard.Controller

	closers []io.Closer
}

// newApp loads configuration and builds every component in dependency
// order. Callers must Close the result.
func newApp(flags *globalFlags, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.apiURL != "" {
		cfg.API.BaseURL = flags.apiURL
	}
	if flags.dataDir != "" {
		cfg.Storage.Path = filepath.Join(flags.dataDir, "session.db")
	}
	if flags.memory {
		cfg.Storage.Driver = config.DriverMemory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logs.New(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	slots, err := a.openStorage()
	if err != nil {
		return nil, err
	}
	a.store = session.NewStore(slots)

	a.client, err = client.New(cfg.API.BaseURL,
		client.WithTokenSource(a.store),
		client.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		client.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst),
		client.WithLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.cache = query.New(
		query.WithLogger(logger),
		query.WithMetrics(query.NewMetrics(a.registry)),
	)
	a.auth = auth.NewManager(a.store, a.client,
		auth.WithLogger(logger),
		auth.WithAlert(func(ev auth.AlertEvent) {
			logger.Warn(ev.Message, "alert", ev.Type, "count", ev.Count, "threshold", ev.Threshold)
		}),
		auth.OnSessionEnd(a.cache.Reset),
	)
	a.client.SetRefresher(a.auth.RefreshAccessToken)

	a.content = content.NewService(a.client, a.cache, content.WithStaleness(cfg.Cache))
	a.guard = guard.NewController(cfg.Guard, nil, nil)
	return a, nil
}

func (a *app) openStorage() (storage.Slots, error) {
	var slots storage.Slots
	switch a.cfg.Storage.Driver {
	case config.DriverMemory:
		slots = memory.NewRepository()
	default:
		if err := os.MkdirAll(filepath.Dir(a.cfg.Storage.Path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(a.cfg.Storage.Path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open session storage: %w", err)
		}
		a.closers = append(a.closers, repo)
		slots = repo
	}

	if a.cfg.Storage.SealSecret == "" {
		return slots, nil
	}
	sealed, err := storage.NewSealed(slots, []byte(a.cfg.Storage.SealSecret))
	if err != nil {
		a.Close()
		return nil, err
	}
	return sealed, nil
}

// Close releases storage handles.
func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// requireSession restores the persisted session and checks path against
// the route guard. Content commands call it before touching the API.
func (a *app) requireSession(ctx context.Context, path string) error {
	state := a.auth.Initialize(ctx)
	d := a.guard.Sync(state, path)
	if d.Action != guard.Render {
		return errNotLoggedIn
	}
	return nil
}
