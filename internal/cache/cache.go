package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/wanderhk/tourism-ai/internal/types"
)

// Config carries the per-kind TTL knobs and the size cap.
type Config struct {
	TTLs          map[types.RequestKind]time.Duration
	SweepInterval time.Duration
	MaxEntries    int
}

// DefaultConfig matches the shipped config.yml values.
func DefaultConfig() Config {
	return Config{
		TTLs: map[types.RequestKind]time.Duration{
			types.KindChat:           6 * time.Hour,
			types.KindItinerary:      6 * time.Hour,
			types.KindTranslation:    30 * time.Minute,
			types.KindRecommendation: 30 * time.Minute,
		},
		SweepInterval: 10 * time.Minute,
		MaxEntries:    10000,
	}
}

// ResponseCache maps request fingerprints to computed responses. A
// singleflight group guarantees at most one in-flight computation per
// fingerprint; distinct fingerprints never block each other.
type ResponseCache struct {
	logger *slog.Logger
	store  *gocache.Cache
	group  singleflight.Group
	ttls   map[types.RequestKind]time.Duration
	max    int

	mu       sync.Mutex
	lastUsed map[string]time.Time
}

func New(cfg Config, logger *slog.Logger) *ResponseCache {
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = 10 * time.Minute
	}
	c := &ResponseCache{
		logger:   logger,
		store:    gocache.New(gocache.NoExpiration, sweep),
		ttls:     cfg.TTLs,
		max:      cfg.MaxEntries,
		lastUsed: make(map[string]time.Time),
	}
	c.store.OnEvicted(func(key string, _ any) {
		c.mu.Lock()
		delete(c.lastUsed, key)
		c.mu.Unlock()
	})
	return c
}

func (c *ResponseCache) ttlFor(kind types.RequestKind) time.Duration {
	if ttl, ok := c.ttls[kind]; ok && ttl > 0 {
		return ttl
	}
	return time.Hour
}

// flightResult carries the computed value together with whether it was
// read from the store rather than freshly computed.
type flightResult struct {
	value  any
	cached bool
}

// GetOrCompute returns the cached value for key, or runs compute exactly
// once for all concurrent callers sharing the fingerprint. The second
// return value reports whether the result came from the cache; callers
// that waited on a shared computation did not get a cache hit.
//
// The computation runs on a context detached from the caller: a requester
// that disconnects mid-flight does not cancel work other waiters share,
// and the result still populates the cache.
func (c *ResponseCache) GetOrCompute(ctx context.Context, key string, kind types.RequestKind, compute func(context.Context) (any, error)) (any, bool, error) {
	if value, found := c.store.Get(key); found {
		c.touch(key)
		return value, true, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// Double-check under the flight: another caller may have
		// populated the entry between our miss and the flight start.
		if value, found := c.store.Get(key); found {
			return flightResult{value: value, cached: true}, nil
		}
		value, err := compute(detached)
		if err != nil {
			return nil, err
		}
		c.store.Set(key, value, c.ttlFor(kind))
		c.touch(key)
		c.enforceLimit()
		return flightResult{value: value}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		fr := res.Val.(flightResult)
		return fr.value, fr.cached, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Len reports the current entry count, expired entries included until the
// next sweep.
func (c *ResponseCache) Len() int {
	return c.store.ItemCount()
}

func (c *ResponseCache) touch(key string) {
	c.mu.Lock()
	c.lastUsed[key] = time.Now()
	c.mu.Unlock()
}

// enforceLimit evicts least-recently-used entries once the configured
// maximum entry count is exceeded. Size is the only reason an unexpired
// entry is ever dropped.
func (c *ResponseCache) enforceLimit() {
	if c.max <= 0 {
		return
	}
	over := c.store.ItemCount() - c.max
	if over <= 0 {
		return
	}

	type usage struct {
		key string
		at  time.Time
	}
	c.mu.Lock()
	entries := make([]usage, 0, len(c.lastUsed))
	for key, at := range c.lastUsed {
		entries = append(entries, usage{key: key, at: at})
	}
	c.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	if over > len(entries) {
		over = len(entries)
	}
	for _, e := range entries[:over] {
		c.store.Delete(e.key)
	}
	if c.logger != nil {
		c.logger.Debug("evicted least-recently-used cache entries", slog.Int("count", over))
	}
}
