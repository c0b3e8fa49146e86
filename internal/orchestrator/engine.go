// Package orchestrator is the entry point consumers use to read matches,
// summoners and coaching responses. It serves local data first, refreshes
// in the background and routes all work through a coordinator so concurrent
// requests for the same data share one operation.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"claimb/internal/baseline"
	"claimb/internal/champion"
	"claimb/internal/coaching"
	"claimb/internal/coordinator"
	"claimb/internal/logging"
	"claimb/internal/matchsync"
	"claimb/internal/model"
	"claimb/internal/notify"
	"claimb/internal/relevance"
	"claimb/internal/store"
	"claimb/internal/summoner"
)

// ErrStoreConflict is returned by New when another live Engine is bound to a
// different store handle.
var ErrStoreConflict = errors.New("orchestrator: another engine is bound to a different store")

// ErrNoGenerator is returned by coaching calls when no generator is configured.
var ErrNoGenerator = errors.New("orchestrator: no coaching generator configured")

// ErrNoMatches is returned when a summary is requested without analysable matches.
var ErrNoMatches = errors.New("orchestrator: no matches to summarize")

const (
	// DefaultFreshFor is how long after a sync cached matches are served without a refresh.
	DefaultFreshFor = 5 * time.Minute
	// DefaultSweepInterval is the coaching cache sweep period.
	DefaultSweepInterval = time.Hour
)

// Provider is the remote game-data source.
type Provider interface {
	summoner.Provider
	matchsync.Provider
}

// Deps are the collaborators an Engine is built from. Only Provider is required.
type Deps struct {
	Provider  Provider
	Generator coaching.Generator
	Notifier  notify.Notifier
	Champions *champion.Registry
}

// Engine composes synchronization, caching and deduplication.
type Engine struct {
	store     *store.Store
	coord     *coordinator.Coordinator
	syncer    *matchsync.Syncer
	summoners *summoner.Service
	champions *champion.Registry
	baselines *baseline.Loader
	cache     *coaching.Cache
	analyses  *coaching.Typed[coaching.Analysis]
	summaries *coaching.Typed[coaching.Summary]
	generator coaching.Generator
	notifier  notify.Notifier

	freshFor time.Duration
	now      func() time.Time
	log      zerolog.Logger

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

type options struct {
	syncCfg  *matchsync.Config
	filter   *relevance.Filter
	ttl      time.Duration
	freshFor time.Duration
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*options)

// WithSyncConfig replaces the fetch strategy.
func WithSyncConfig(cfg matchsync.Config) Option {
	return func(o *options) { o.syncCfg = &cfg }
}

// WithFilter replaces the relevance filter.
func WithFilter(f *relevance.Filter) Option {
	return func(o *options) { o.filter = f }
}

// WithCoachingTTL sets the lifetime of cached coaching responses.
func WithCoachingTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithFreshFor sets how long cached matches are served without a background refresh.
func WithFreshFor(d time.Duration) Option {
	return func(o *options) { o.freshFor = d }
}

// WithClock overrides time.Now for every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// binding tracks the store live engines use; engines may share one handle.
var binding struct {
	sync.Mutex
	store *store.Store
	refs  int
}

func bind(st *store.Store) error {
	binding.Lock()
	defer binding.Unlock()
	if binding.refs > 0 && binding.store != st {
		return ErrStoreConflict
	}
	binding.store = st
	binding.refs++
	return nil
}

func release(st *store.Store) {
	binding.Lock()
	defer binding.Unlock()
	if binding.store != st || binding.refs == 0 {
		return
	}
	if binding.refs--; binding.refs == 0 {
		binding.store = nil
	}
}

// New builds an Engine over st. Close releases it.
func New(st *store.Store, deps Deps, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.New("orchestrator: store is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("orchestrator: provider is required")
	}

	o := options{freshFor: DefaultFreshFor, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if err := bind(st); err != nil {
		return nil, err
	}

	champions := deps.Champions
	if champions == nil {
		champions = champion.NewRegistry(st)
	}

	syncOpts := []matchsync.Option{matchsync.WithChampions(champions), matchsync.WithClock(o.now)}
	if o.syncCfg != nil {
		syncOpts = append(syncOpts, matchsync.WithConfig(*o.syncCfg))
	}
	if o.filter != nil {
		syncOpts = append(syncOpts, matchsync.WithFilter(o.filter))
	}

	cache := coaching.NewCache(st, coaching.WithTTL(o.ttl), coaching.WithClock(o.now))
	e := &Engine{
		store:     st,
		coord:     coordinator.New(),
		syncer:    matchsync.New(deps.Provider, st, syncOpts...),
		summoners: summoner.New(deps.Provider, st, summoner.WithClock(o.now)),
		champions: champions,
		baselines: baseline.NewLoader(st),
		cache:     cache,
		analyses:  coaching.NewTyped[coaching.Analysis](cache),
		summaries: coaching.NewTyped[coaching.Summary](cache),
		generator: deps.Generator,
		notifier:  deps.Notifier,
		freshFor:  o.freshFor,
		now:       o.now,
		log:       logging.For("orchestrator"),
		done:      make(chan struct{}),
	}
	return e, nil
}

// Close cancels pending work, waits for background tasks and releases the store binding.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		e.coord.Close()
		e.wg.Wait()
		release(e.store)
	})
}

// Wait blocks until background refreshes and regenerations have finished.
func (e *Engine) Wait() {
	e.coord.Wait()
}

// Warmup loads the bundled baselines and champion data concurrently.
func (e *Engine) Warmup(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := coordinator.Do(gctx, e.coord, coordinator.BaselineKey, e.baselines.Load)
		if err != nil {
			return err
		}
		if loaded {
			e.log.Info().Msg("baseline dataset loaded")
		}
		return nil
	})
	g.Go(func() error {
		idx, err := coordinator.Do(gctx, e.coord, coordinator.ChampionsKey, e.champions.Sync)
		if err != nil {
			return err
		}
		e.log.Info().Int("champions", len(idx)).Str("version", e.champions.Version()).Msg("champion data ready")
		return nil
	})
	return g.Wait()
}

// ClearAllCachedData cancels pending work and deletes every stored match and
// cached coaching response. Summoners and reference data are kept.
func (e *Engine) ClearAllCachedData(ctx context.Context) error {
	e.coord.CancelAll()

	var matches, responses int64
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		if matches, err = tx.DeleteAllMatches(ctx); err != nil {
			return err
		}
		responses, err = tx.ClearCache(ctx)
		return err
	})
	if err != nil {
		return err
	}

	e.log.Info().Int64("matches", matches).Int64("responses", responses).Msg("cleared cached data")
	e.publish(notify.Event{Kind: notify.CacheCleared})
	return nil
}

// CancelAllPendingWork cancels every in-flight operation and returns how many there were.
func (e *Engine) CancelAllPendingWork() int {
	return e.coord.CancelAll()
}

// StartSweeper deletes expired coaching responses every interval until ctx
// is done or the engine is closed.
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.done:
				return
			case <-ticker.C:
				if _, err := e.cache.Sweep(ctx); err != nil {
					e.log.Warn().Err(err).Msg("coaching cache sweep failed")
				}
			}
		}
	}()
}

// SweepCoaching deletes expired coaching responses now.
func (e *Engine) SweepCoaching(ctx context.Context) (int64, error) {
	return e.cache.Sweep(ctx)
}

// Champions returns the champion registry the engine links participants with.
func (e *Engine) Champions() *champion.Registry {
	return e.champions
}

func (e *Engine) publish(ev notify.Event) {
	if e.notifier == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	e.notifier.Publish(ev)
}

// withBaselines fills kpi.Baselines from the bundled dataset when the caller left them empty.
func (e *Engine) withBaselines(ctx context.Context, kpi coaching.KPIContext) coaching.KPIContext {
	if len(kpi.Baselines) > 0 || kpi.Role == "" {
		return kpi
	}
	rows, err := e.baselines.ForRole(ctx, kpi.Role, kpi.ClassTag)
	if err != nil {
		e.log.Warn().Err(err).Str("role", kpi.Role).Msg("baselines unavailable")
		return kpi
	}
	kpi.Baselines = rows
	return kpi
}

func cloneSummoner(s *model.Summoner) *model.Summoner {
	c := *s
	c.Ranks = append([]model.RankEntry(nil), s.Ranks...)
	return &c
}
