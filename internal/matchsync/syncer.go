// Package matchsync fetches a player's match history into the local store.
//
// A first sync sweeps the ranked queues over a 90-day window, widens to 180
// days when that yields too few games, and tops up from normal-draft. Later
// syncs look at a short recent window across every allowed queue and fetch
// only ids not already stored. After each batch the stored history is trimmed
// to the newest MaxStoredMatches games.
package matchsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"claimb/internal/logging"
	"claimb/internal/metrics"
	"claimb/internal/model"
	"claimb/internal/parser"
	"claimb/internal/relevance"
	"claimb/internal/riot"
	"claimb/internal/store"
)

const day = 24 * time.Hour

// Provider is the remote match history source.
type Provider interface {
	MatchIDs(ctx context.Context, puuid, region string, q riot.HistoryQuery) ([]string, error)
	Match(ctx context.Context, matchID, region string) ([]byte, error)
}

// Store is the persistence the synchronizer needs.
type Store interface {
	MatchIDs(ctx context.Context, puuid string) ([]string, error)
	OldestMatch(ctx context.Context, puuid string) (time.Time, error)
	InsertMatch(ctx context.Context, m *model.Match) (bool, error)
	WithTx(ctx context.Context, fn func(tx *store.Tx) error) error
}

// Champions supplies the champion index for a sync session.
type Champions interface {
	Index(ctx context.Context) (model.ChampionIndex, error)
}

// Config tunes the fetch strategy.
type Config struct {
	BulkWindows            []time.Duration
	BulkPerQueueCap        int
	MinAnalysisMatches     int
	TargetSampleSize       int
	RankedQueues           []int
	FillQueue              int
	IncrementalWindow      time.Duration
	IncrementalPerQueueCap int
	MaxStoredMatches       int
}

// DefaultConfig returns the standard strategy.
func DefaultConfig() Config {
	return Config{
		BulkWindows:            []time.Duration{90 * day, 180 * day},
		BulkPerQueueCap:        100,
		MinAnalysisMatches:     10,
		TargetSampleSize:       100,
		RankedQueues:           []int{riot.QueueRankedSolo, riot.QueueRankedFlex},
		FillQueue:              riot.QueueNormalDraft,
		IncrementalWindow:      90 * day,
		IncrementalPerQueueCap: 20,
		MaxStoredMatches:       100,
	}
}

// Report describes one sync run.
type Report struct {
	Mode          string
	Window        time.Duration
	Candidates    int
	Inserted      int
	AlreadyStored int
	Irrelevant    int
	NotFound      int
	BadRequest    int
	Failed        int
	Evicted       int
	NewMatchIDs   []string
}

// Skipped is every candidate that did not produce a new row.
func (r *Report) Skipped() int {
	return r.AlreadyStored + r.Irrelevant + r.NotFound + r.BadRequest + r.Failed
}

// Syncer runs match synchronization for one summoner at a time. Callers
// serialize runs per summoner.
type Syncer struct {
	provider  Provider
	store     Store
	champions Champions
	filter    *relevance.Filter
	cfg       Config
	now       func() time.Time
	log       zerolog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithConfig replaces the strategy. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *Syncer) {
		d := DefaultConfig()
		if len(cfg.BulkWindows) == 0 {
			cfg.BulkWindows = d.BulkWindows
		}
		if cfg.BulkPerQueueCap <= 0 {
			cfg.BulkPerQueueCap = d.BulkPerQueueCap
		}
		if cfg.MinAnalysisMatches <= 0 {
			cfg.MinAnalysisMatches = d.MinAnalysisMatches
		}
		if cfg.TargetSampleSize <= 0 {
			cfg.TargetSampleSize = d.TargetSampleSize
		}
		if len(cfg.RankedQueues) == 0 {
			cfg.RankedQueues = d.RankedQueues
		}
		if cfg.FillQueue == 0 {
			cfg.FillQueue = d.FillQueue
		}
		if cfg.IncrementalWindow <= 0 {
			cfg.IncrementalWindow = d.IncrementalWindow
		}
		if cfg.IncrementalPerQueueCap <= 0 {
			cfg.IncrementalPerQueueCap = d.IncrementalPerQueueCap
		}
		if cfg.MaxStoredMatches <= 0 {
			cfg.MaxStoredMatches = d.MaxStoredMatches
		}
		s.cfg = cfg
	}
}

// WithFilter replaces the relevance filter.
func WithFilter(f *relevance.Filter) Option {
	return func(s *Syncer) { s.filter = f }
}

// WithChampions sets the champion index source.
func WithChampions(c Champions) Option {
	return func(s *Syncer) { s.champions = c }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// New creates a Syncer.
func New(provider Provider, st Store, opts ...Option) *Syncer {
	s := &Syncer{
		provider: provider,
		store:    st,
		filter:   relevance.New(),
		cfg:      DefaultConfig(),
		now:      time.Now,
		log:      logging.For("matchsync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the strategy in use.
func (s *Syncer) Config() Config {
	return s.cfg
}

// BulkFetch performs a first-time acquisition for summoner.
func (s *Syncer) BulkFetch(ctx context.Context, summoner *model.Summoner) (*Report, error) {
	report := &Report{Mode: "bulk"}
	err := s.run(ctx, summoner, report, s.bulkCandidates)
	s.record(report, err)
	return report, err
}

// Incremental fetches only matches from the recent window that are not stored yet.
func (s *Syncer) Incremental(ctx context.Context, summoner *model.Summoner) (*Report, error) {
	report := &Report{Mode: "incremental"}
	err := s.run(ctx, summoner, report, s.incrementalCandidates)
	s.record(report, err)
	return report, err
}

type candidateFunc func(ctx context.Context, summoner *model.Summoner, stored *idSet, report *Report) ([]string, error)

func (s *Syncer) run(ctx context.Context, summoner *model.Summoner, report *Report, candidates candidateFunc) error {
	storedIDs, err := s.store.MatchIDs(ctx, summoner.PUUID)
	if err != nil {
		return err
	}
	stored := newIDSet(storedIDs)

	ids, err := candidates(ctx, summoner, stored, report)
	if err != nil {
		return fmt.Errorf("%s sync for %s: %w", report.Mode, summoner.PUUID, err)
	}
	report.Candidates = len(ids)

	if err := s.process(ctx, summoner, ids, stored, report); err != nil {
		return err
	}
	if err := s.finish(ctx, summoner, report); err != nil {
		return err
	}

	s.log.Info().
		Str("mode", report.Mode).
		Str("puuid", summoner.PUUID).
		Int("candidates", report.Candidates).
		Int("inserted", report.Inserted).
		Int("skipped", report.Skipped()).
		Int("evicted", report.Evicted).
		Msg("sync complete")
	return nil
}

// bulkCandidates sweeps the ranked queues over widening windows, then fills
// from the fill queue within the last window swept.
func (s *Syncer) bulkCandidates(ctx context.Context, summoner *model.Summoner, _ *idSet, report *Report) ([]string, error) {
	var ids []string
	var seen *idSet
	var window time.Duration

	for _, w := range s.cfg.BulkWindows {
		window = w
		seen = newIDSet(nil)
		ids = ids[:0]

		for _, q := range s.cfg.RankedQueues {
			if !s.filter.Allows(q) {
				continue
			}
			got, err := s.history(ctx, summoner, q, w, s.cfg.BulkPerQueueCap)
			if err != nil {
				return nil, err
			}
			ids = appendNew(ids, seen, got)
		}

		if len(ids) >= s.cfg.MinAnalysisMatches {
			break
		}
		s.log.Debug().Str("puuid", summoner.PUUID).Int("found", len(ids)).Dur("window", w).Msg("too few ranked games, widening window")
	}
	report.Window = window

	if need := s.cfg.TargetSampleSize - len(ids); need > 0 && s.filter.Allows(s.cfg.FillQueue) {
		got, err := s.history(ctx, summoner, s.cfg.FillQueue, window, need)
		if err != nil {
			return nil, err
		}
		ids = appendNew(ids, seen, got)
	}

	if len(ids) > s.cfg.TargetSampleSize {
		ids = ids[:s.cfg.TargetSampleSize]
	}
	return ids, nil
}

// incrementalCandidates returns the recent ids across every allowed queue that
// are not stored. When the store is at its cap, games older than the oldest
// retained one are not requested since eviction would drop them again.
func (s *Syncer) incrementalCandidates(ctx context.Context, summoner *model.Summoner, stored *idSet, report *Report) ([]string, error) {
	window := s.cfg.IncrementalWindow
	if stored.Len() >= s.cfg.MaxStoredMatches {
		oldest, err := s.store.OldestMatch(ctx, summoner.PUUID)
		if err != nil {
			return nil, err
		}
		if since := s.now().Sub(oldest); !oldest.IsZero() && since < window {
			window = since
		}
	}
	report.Window = window

	seen := newIDSet(nil)
	var ids []string
	for _, q := range s.filter.Queues() {
		got, err := s.history(ctx, summoner, q, window, s.cfg.IncrementalPerQueueCap)
		if err != nil {
			return nil, err
		}
		for _, id := range got {
			if stored.Has(id) {
				continue
			}
			ids = appendNew(ids, seen, []string{id})
		}
	}
	return ids, nil
}

func (s *Syncer) history(ctx context.Context, summoner *model.Summoner, queue int, window time.Duration, count int) ([]string, error) {
	return s.provider.MatchIDs(ctx, summoner.PUUID, summoner.Region, riot.HistoryQuery{
		Count:     min(count, 100),
		Queue:     queue,
		StartTime: s.now().Add(-window),
	})
}

func appendNew(dst []string, seen *idSet, ids []string) []string {
	for _, id := range ids {
		if seen.Has(id) {
			continue
		}
		seen.Add(id)
		dst = append(dst, id)
	}
	return dst
}

// process fetches, parses and stores each id in order. Single-record failures
// are counted and skipped; a store failure or cancellation aborts the batch.
func (s *Syncer) process(ctx context.Context, summoner *model.Summoner, ids []string, stored *idSet, report *Report) error {
	var index model.ChampionIndex
	if s.champions != nil {
		idx, err := s.champions.Index(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("champion index unavailable, champions stay unlinked")
		}
		index = idx
	}
	p := parser.New(s.filter, index, parser.WithClock(s.now))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if stored.Has(id) {
			report.AlreadyStored++
			continue
		}

		raw, err := s.provider.Match(ctx, id, summoner.Region)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case riot.IsSkippable(err):
				if errors.Is(err, riot.ErrNotFound) {
					report.NotFound++
				} else {
					report.BadRequest++
				}
			default:
				report.Failed++
				s.log.Warn().Err(err).Str("match_id", id).Msg("failed to fetch match, skipping")
			}
			continue
		}

		m, err := p.Parse(raw, id, summoner)
		if errors.Is(err, parser.ErrIrrelevantMatch) {
			report.Irrelevant++
			continue
		}
		if err != nil {
			report.Failed++
			s.log.Warn().Err(err).Str("match_id", id).Msg("failed to parse match, skipping")
			continue
		}

		inserted, err := s.store.InsertMatch(ctx, m)
		if err != nil {
			return err
		}
		stored.Add(id)
		if !inserted {
			report.AlreadyStored++
			continue
		}
		report.Inserted++
		report.NewMatchIDs = append(report.NewMatchIDs, id)
	}
	return nil
}

// finish evicts beyond the cap and stamps the summoner, in one transaction.
func (s *Syncer) finish(ctx context.Context, summoner *model.Summoner, report *Report) error {
	syncedAt := s.now()
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		evicted, err := tx.EvictOldest(ctx, summoner.PUUID, s.cfg.MaxStoredMatches)
		if err != nil {
			return err
		}
		report.Evicted = evicted

		err = tx.TouchSynchronized(ctx, summoner.PUUID, syncedAt)
		if errors.Is(err, store.ErrNotFound) {
			snapshot := *summoner
			snapshot.LastSynchronized = syncedAt
			return tx.UpsertSummoner(ctx, &snapshot)
		}
		return err
	})
	if err != nil {
		return err
	}
	summoner.LastSynchronized = syncedAt
	return nil
}

func (s *Syncer) record(report *Report, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.SyncRuns.WithLabelValues(report.Mode, outcome).Inc()
	metrics.SyncRecords.WithLabelValues("inserted").Add(float64(report.Inserted))
	metrics.SyncRecords.WithLabelValues("stored").Add(float64(report.AlreadyStored))
	metrics.SyncRecords.WithLabelValues("irrelevant").Add(float64(report.Irrelevant))
	metrics.SyncRecords.WithLabelValues("not_found").Add(float64(report.NotFound))
	metrics.SyncRecords.WithLabelValues("bad_request").Add(float64(report.BadRequest))
	metrics.SyncRecords.WithLabelValues("failed").Add(float64(report.Failed))
	metrics.Evicted.Add(float64(report.Evicted))
}
