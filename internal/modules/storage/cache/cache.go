// Package cache memoizes expensive generation and enrichment results. Entries carry their own
// timestamp and TTL; writes sweep expired entries and evict the oldest ones so a namespace
// never grows past its configured size.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ErrMiss is returned by Get when the key is absent or its entry has expired.
var ErrMiss = errors.New("cache miss")

const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 500
)

// Entry is the stored form of a cached value.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	TTL       int64           `json:"ttl"`       // milliseconds
}

// Expired reports whether more than TTL has elapsed since the entry was written.
func (e Entry) Expired(now time.Time) bool {
	return now.UnixMilli()-e.Timestamp > e.TTL
}

// KeyedEntry pairs an entry with its key, as returned by Store.Scan.
type KeyedEntry struct {
	Key string
	Entry
}

// Store is the persistence behind a Cache. Implementations need only per-call atomicity.
type Store interface {
	Load(ctx context.Context, key string) (Entry, bool, error)
	Save(ctx context.Context, key string, entry Entry) error
	Remove(ctx context.Context, keys ...string) error
	Scan(ctx context.Context) ([]KeyedEntry, error)
	Clear(ctx context.Context) error
}

// Cache applies TTL and size bounds on top of a Store.
type Cache struct {
	store      Store
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*Cache)

// WithTTL sets the default time-to-live used by Set.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxEntries bounds the number of live entries.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:      store,
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the default time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get decodes the value stored under key into out. Expired entries are deleted and reported
// as ErrMiss.
func (c *Cache) Get(ctx context.Context, key string, out interface{}) error {
	entry, ok, err := c.store.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("cache load: %w", err)
	}
	if !ok {
		return ErrMiss
	}
	if entry.Expired(c.now()) {
		if err := c.store.Remove(ctx, key); err != nil {
			c.logger.Warn("failed to drop expired cache entry", zap.String("key", key), zap.Error(err))
		}
		return ErrMiss
	}
	if err := json.Unmarshal(entry.Data, out); err != nil {
		// A payload we cannot decode is as good as absent.
		_ = c.store.Remove(ctx, key)
		return ErrMiss
	}
	return nil
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetTTL(ctx, key, value, c.ttl)
}

// SetTTL sweeps expired entries, evicts the oldest entries until key fits under the size
// bound, and then writes value.
func (c *Cache) SetTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	now := c.now()
	if err := c.collect(ctx, now, key); err != nil {
		return err
	}
	return c.store.Save(ctx, key, Entry{
		Data:      data,
		Timestamp: now.UnixMilli(),
		TTL:       ttl.Milliseconds(),
	})
}

// collect removes expired entries and, if needed, the oldest live entries so that one more
// entry under incoming fits within maxEntries. An existing entry for incoming is replaced
// rather than counted.
func (c *Cache) collect(ctx context.Context, now time.Time, incoming string) error {
	entries, err := c.store.Scan(ctx)
	if err != nil {
		return fmt.Errorf("cache scan: %w", err)
	}

	var drop []string
	live := make([]KeyedEntry, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Expired(now):
			drop = append(drop, e.Key)
		case e.Key != incoming:
			live = append(live, e)
		}
	}

	if excess := len(live) - (c.maxEntries - 1); excess > 0 {
		sort.SliceStable(live, func(i, j int) bool { return live[i].Timestamp < live[j].Timestamp })
		for _, e := range live[:excess] {
			drop = append(drop, e.Key)
		}
	}

	if len(drop) == 0 {
		return nil
	}
	if err := c.store.Remove(ctx, drop...); err != nil {
		return fmt.Errorf("cache evict: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Remove(ctx, key)
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	entries, err := c.store.Scan(ctx)
	if err != nil {
		return 0, err
	}
	now := c.now()
	var drop []string
	for _, e := range entries {
		if e.Expired(now) {
			drop = append(drop, e.Key)
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}
	return len(drop), c.store.Remove(ctx, drop...)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len(ctx context.Context) (int, error) {
	entries, err := c.store.Scan(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}
