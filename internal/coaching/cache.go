// Package coaching caches AI-generated coaching responses and talks to the
// generator that produces them.
package coaching

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"claimb/internal/logging"
	"claimb/internal/metrics"
	"claimb/internal/store"
)

// DefaultTTL is how long a generated response stays valid.
const DefaultTTL = 24 * time.Hour

// Kind is the type of coaching response.
type Kind string

const (
	KindPostGameAnalysis Kind = "post_game_analysis"
	KindRollingSummary   Kind = "rolling_summary"
)

// Key identifies a cache entry.
type Key struct {
	PlayerID string
	Kind     Kind
	Scope    string // match id, or sample size for summaries
}

// AnalysisKey is the key of a post-game analysis.
func AnalysisKey(puuid, matchID string) Key {
	return Key{PlayerID: puuid, Kind: KindPostGameAnalysis, Scope: matchID}
}

// SummaryKey is the key of a rolling summary over sampleSize games, optionally
// restricted to one role. The scope is "20" without a role and "20_TOP" with one.
func SummaryKey(puuid string, sampleSize int, role string) Key {
	return Key{PlayerID: puuid, Kind: KindRollingSummary, Scope: SummaryScope(sampleSize, role)}
}

// SummaryScope is the scope part of a summary key.
func SummaryScope(sampleSize int, role string) string {
	scope := strconv.Itoa(sampleSize)
	if role != "" {
		scope += "_" + strings.ToUpper(role)
	}
	return scope
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.PlayerID, k.Kind, k.Scope)
}

// Entry is one cached response.
type Entry struct {
	Key       Key
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ValidAt reports whether the entry is still valid at now.
func (e Entry) ValidAt(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Store is the persistence the cache needs.
type Store interface {
	CacheRows(ctx context.Context, playerID, kind, scope string) ([]store.CacheRow, error)
	ReplaceCacheRow(ctx context.Context, r store.CacheRow) error
	DeleteExpiredCache(ctx context.Context, now time.Time) (int64, error)
	ClearCache(ctx context.Context) (int64, error)
}

// Cache is a TTL cache of serialized coaching responses.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a Cache over st.
func NewCache(st Store, opts ...Option) *Cache {
	c := &Cache{store: st, ttl: DefaultTTL, now: time.Now, log: logging.For("coaching")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the valid entry for key. Expired entries are misses.
func (c *Cache) Get(ctx context.Context, key Key) (Entry, bool, error) {
	rows, err := c.store.CacheRows(ctx, key.PlayerID, string(key.Kind), key.Scope)
	if err != nil {
		return Entry{}, false, err
	}

	now := c.now()
	for _, r := range rows {
		e := Entry{Key: key, Payload: r.Payload, CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt}
		if e.ValidAt(now) {
			metrics.CoachingCache.WithLabelValues(string(key.Kind), "hit").Inc()
			return e, true, nil
		}
	}

	result := "miss"
	if len(rows) > 0 {
		result = "expired"
	}
	metrics.CoachingCache.WithLabelValues(string(key.Kind), result).Inc()
	return Entry{}, false, nil
}

// Put replaces any entries for key with payload, valid for the TTL from now.
func (c *Cache) Put(ctx context.Context, key Key, payload []byte) (Entry, error) {
	now := c.now()
	e := Entry{Key: key, Payload: payload, CreatedAt: now, ExpiresAt: now.Add(c.ttl)}
	err := c.store.ReplaceCacheRow(ctx, store.CacheRow{
		PlayerID:  key.PlayerID,
		Kind:      string(key.Kind),
		Scope:     key.Scope,
		Payload:   payload,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
	})
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Sweep deletes every entry that expired before now.
func (c *Cache) Sweep(ctx context.Context) (int64, error) {
	n, err := c.store.DeleteExpiredCache(ctx, c.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.CoachingSwept.Add(float64(n))
		c.log.Debug().Int64("removed", n).Msg("swept expired coaching entries")
	}
	return n, nil
}

// Clear deletes every entry.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	return c.store.ClearCache(ctx)
}

// Typed is a view of a Cache that (de)serializes payloads as T.
type Typed[T any] struct {
	cache *Cache
}

// NewTyped wraps c for payload type T.
func NewTyped[T any](c *Cache) *Typed[T] {
	return &Typed[T]{cache: c}
}

// Get returns the cached value for key, if valid.
func (t *Typed[T]) Get(ctx context.Context, key Key) (*T, bool, error) {
	e, ok, err := t.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var v T
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		// an undecodable payload is treated as a miss so it gets regenerated
		t.cache.log.Warn().Err(err).Str("key", key.String()).Msg("discarding unreadable cache entry")
		return nil, false, nil
	}
	return &v, true, nil
}

// Put stores v under key.
func (t *Typed[T]) Put(ctx context.Context, key Key, v *T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key.Kind, err)
	}
	_, err = t.cache.Put(ctx, key, payload)
	return err
}
