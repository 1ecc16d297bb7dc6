package query

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads the current value for a key from the remote API.
type Fetcher func(ctx context.Context) (any, error)

// InvalidateHook is called once per Invalidate (and so once per successful
// mutation) with the prefixes that were applied.
type InvalidateHook func(prefixes []Key)

type entry struct {
	key         Key
	data        any
	has         bool
	fetchedAt   time.Time
	staleAfter  time.Duration
	invalidated bool

	// gen is bumped on every invalidation; dataGen is the gen the cached
	// data was fetched under. floor rejects results older than a Reset.
	gen     uint64
	dataGen uint64
	floor   uint64
}

func (e *entry) fresh(now time.Time) bool {
	return e.has && !e.invalidated && now.Sub(e.fetchedAt) < e.staleAfter
}

// Cache is the query cache. The zero value is not usable; call New.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group

	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics
	onInval InvalidateHook
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics attaches prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithInvalidateHook registers fn to observe invalidations.
func WithInvalidateHook(fn InvalidateHook) Option {
	return func(c *Cache) { c.onInval = fn }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "query")
	return c
}

// Read returns the cached value for key when it is younger than staleTime
// and has not been invalidated. Otherwise it runs fetch, sharing one
// in-flight call among concurrent readers of the same key. The fetch is
// detached from ctx: a caller that gives up gets ctx.Err() while the result
// still lands in the cache.
func (c *Cache) Read(ctx context.Context, key Key, staleTime time.Duration, fetch Fetcher) (any, error) {
	ks := key.String()

	c.mu.Lock()
	e, ok := c.entries[ks]
	if !ok {
		e = &entry{key: key}
		c.entries[ks] = e
	}
	e.staleAfter = staleTime
	if e.fresh(c.now()) {
		data := e.data
		c.mu.Unlock()
		c.metrics.hit(key.Domain)
		return data, nil
	}
	gen := e.gen
	c.mu.Unlock()

	c.metrics.miss(key.Domain)
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(ks+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		c.logger.Debug("fetching", "key", ks, "generation", gen)
		v, err := fetch(detached)
		c.store(key, ks, gen, v, err)
		return v, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *Cache) store(key Key, ks string, gen uint64, v any, err error) {
	if err != nil {
		c.metrics.fetchError(key.Domain)
		c.logger.Debug("fetch failed", "key", ks, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ks]
	if !ok {
		e = &entry{key: key}
		c.entries[ks] = e
	}
	if gen < e.floor || (e.has && gen < e.dataGen) {
		c.logger.Debug("discarding outdated fetch", "key", ks, "generation", gen)
		return
	}
	e.data = v
	e.has = true
	e.fetchedAt = c.now()
	e.dataGen = gen
	e.invalidated = gen != e.gen
}

// Peek returns the last successfully fetched value for key regardless of
// staleness.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || !e.has {
		return nil, false
	}
	return e.data, true
}

// Stale reports whether the next Read of key would fetch. Absent keys are
// stale.
func (c *Cache) Stale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	return !ok || !e.fresh(c.now())
}

// Invalidate marks every entry matching any prefix stale, so the next read
// refetches and in-flight fetches started earlier do not count as fresh.
// It returns the number of entries affected.
func (c *Cache) Invalidate(prefixes ...Key) int {
	if len(prefixes) == 0 {
		return 0
	}
	n := 0
	c.mu.Lock()
	for _, e := range c.entries {
		for _, p := range prefixes {
			if e.key.Matches(p) {
				e.gen++
				e.invalidated = true
				n++
				c.metrics.invalidated(e.key.Domain)
				break
			}
		}
	}
	c.mu.Unlock()

	c.logger.Debug("invalidated", "prefixes", len(prefixes), "entries", n)
	if c.onInval != nil {
		c.onInval(prefixes)
	}
	return n
}

// Reset drops all cached data, used when the session ends so one user's
// content is never served to the next. Fetches started before Reset are
// discarded when they complete.
func (c *Cache) Reset() {
	c.mu.Lock()
	for _, e := range c.entries {
		e.gen++
		e.floor = e.gen
		e.data = nil
		e.has = false
		e.invalidated = true
	}
	c.mu.Unlock()
	c.logger.Debug("reset")
}

// Mutate runs fn and, only if it succeeds, invalidates the given prefixes.
func (c *Cache) Mutate(ctx context.Context, fn Fetcher, invalidate ...Key) (any, error) {
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	c.Invalidate(invalidate...)
	return v, nil
}

// Read is the typed form of Cache.Read.
func Read[T any](ctx context.Context, c *Cache, key Key, staleTime time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	v, err := c.Read(ctx, key, staleTime, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	return cast[T](key, v, err)
}

// Mutate is the typed form of Cache.Mutate.
func Mutate[T any](ctx context.Context, c *Cache, fn func(context.Context) (T, error), invalidate ...Key) (T, error) {
	v, err := c.Mutate(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, invalidate...)
	return cast[T](Key{}, v, err)
}

func cast[T any](key Key, v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query: value for %q is %T, not %T", key.String(), v, zero)
	}
	return t, nil
}
