package querycache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads fresh data for a query key.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	data      any
	fetchedAt time.Time

	// Re-fetch cadence for polled queries (0 = only on demand).
	// The fetcher is retained so the refresher can re-run it.
	refreshEvery time.Duration
	fetch        Fetcher
}

// Cache memoizes query results by semantic key. It is the only path
// between callers and the repositories: reads go through Get, writes go
// through Mutate, and Mutate guarantees the affected keys are
// invalidated before it returns. A read issued after a mutation
// completes therefore always observes fresh data.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[string]int
	// Bumped on every invalidation of a key. A fetch that started
	// before the bump must not install its result: it may predate a
	// mutation that already completed.
	epochs map[string]uint64
	group  singleflight.Group
	now    func() time.Time
}

func New() *Cache {
	return &Cache{
		entries:  make(map[string]*entry),
		inflight: make(map[string]int),
		epochs:   make(map[string]uint64),
		now:      time.Now,
	}
}

// Option configures a single Get call.
type Option func(*entry)

// WithRefresh registers the query for periodic background re-fetch.
func WithRefresh(every time.Duration) Option {
	return func(e *entry) {
		e.refreshEvery = every
	}
}

// Get returns the cached value for key, fetching it if absent.
// Concurrent callers for the same key share one in-flight fetch.
// Errors are returned but never cached.
func (c *Cache) Get(ctx context.Context, key Key, fetch Fetcher, opts ...Option) (any, error) {
	ks := key.String()

	c.mu.Lock()
	if e, ok := c.entries[ks]; ok {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	startEpoch := c.epochs[ks]
	c.inflight[ks]++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inflight[ks]--
		if c.inflight[ks] <= 0 {
			delete(c.inflight, ks)
		}
		c.mu.Unlock()
	}()

	data, err, _ := c.group.Do(ks, func() (any, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		e := &entry{data: data, fetchedAt: c.now(), fetch: fetch}
		for _, opt := range opts {
			opt(e)
		}

		// A key invalidated while this fetch ran may already reflect a
		// completed mutation; installing would serve the pre-mutation
		// value to later reads.
		c.mu.Lock()
		if c.epochs[ks] == startEpoch {
			c.entries[ks] = e
		}
		c.mu.Unlock()

		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// InFlight reports whether a fetch for key is currently running,
// without triggering one. Drives loading indicators.
func (c *Cache) InFlight(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[key.String()] > 0
}

// Invalidate drops exact keys from the cache. The next Get re-fetches.
// In-flight fetches for the key are forgotten (late joiners start
// fresh) and barred from installing their result.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.invalidateLocked(k.String())
	}
}

// InvalidateOp drops every key under the given operation, regardless of
// parameters. Covers both installed entries and fetches still in
// flight.
func (c *Cache) InvalidateOp(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ks := range c.entries {
		if opMatches(ks, op) {
			c.invalidateLocked(ks)
		}
	}
	for ks := range c.inflight {
		if opMatches(ks, op) {
			c.invalidateLocked(ks)
		}
	}
}

func (c *Cache) invalidateLocked(ks string) {
	delete(c.entries, ks)
	c.epochs[ks]++
	c.group.Forget(ks)
}

func opMatches(ks, op string) bool {
	return ks == op || len(ks) > len(op) && ks[:len(op)+1] == op+"/"
}

// Mutation is a write operation together with the query keys it makes
// stale. Result-independent keys go in Invalidates; keys derived from
// the result (e.g. a post id) come from InvalidatesFor.
type Mutation struct {
	Do             func(ctx context.Context) (any, error)
	Invalidates    []Key
	InvalidatesFor func(result any) []Key
	InvalidatesOps []string
}

// Mutate runs the mutation and, on success, invalidates the declared
// keys before returning the result to the caller. A failed mutation
// invalidates nothing.
func (c *Cache) Mutate(ctx context.Context, m Mutation) (any, error) {
	result, err := m.Do(ctx)
	if err != nil {
		return nil, err
	}

	keys := m.Invalidates
	if m.InvalidatesFor != nil {
		keys = append(keys, m.InvalidatesFor(result)...)
	}
	c.Invalidate(keys...)
	for _, op := range m.InvalidatesOps {
		c.InvalidateOp(op)
	}

	return result, nil
}

// StartRefresher re-fetches registered polled queries on their cadence
// until ctx is canceled. granularity bounds how often staleness is
// checked; production passes ~1s.
func (c *Cache) StartRefresher(ctx context.Context, granularity time.Duration) {
	ticker := time.NewTicker(granularity)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshStale(ctx)
		}
	}
}

func (c *Cache) refreshStale(ctx context.Context) {
	type stale struct {
		ks    string
		epoch uint64
		fetch Fetcher
	}

	c.mu.Lock()
	var due []stale
	now := c.now()
	for ks, e := range c.entries {
		if e.refreshEvery > 0 && now.Sub(e.fetchedAt) >= e.refreshEvery {
			due = append(due, stale{ks: ks, epoch: c.epochs[ks], fetch: e.fetch})
		}
	}
	c.mu.Unlock()

	for _, s := range due {
		data, err := s.fetch(ctx)
		if err != nil {
			// Keep serving the previous value; the next tick retries.
			slog.Warn("query refresh failed", "key", s.ks, "error", err)
			continue
		}

		// Skip the writeback if the key was invalidated mid-fetch; the
		// refreshed data may predate a mutation that just completed.
		c.mu.Lock()
		e, ok := c.entries[s.ks]
		if ok && c.epochs[s.ks] == s.epoch {
			e.data = data
			e.fetchedAt = c.now()
		}
		c.mu.Unlock()
	}
}
