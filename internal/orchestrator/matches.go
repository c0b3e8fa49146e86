package orchestrator

import (
	"context"
	"errors"

	"claimb/internal/coordinator"
	"claimb/internal/matchsync"
	"claimb/internal/model"
	"claimb/internal/notify"
	"claimb/internal/store"
)

// LoadMatches returns up to limit stored matches for s, newest first.
//
// Stored matches are returned without waiting on the network. When the last
// sync is older than the freshness window an incremental refresh is started
// in the background. Only when nothing is stored does the call block, on a
// bulk fetch.
func (e *Engine) LoadMatches(ctx context.Context, s *model.Summoner, limit int) ([]model.Match, error) {
	if limit <= 0 {
		limit = e.syncer.Config().TargetSampleSize
	}

	return coordinator.Do(ctx, e.coord, coordinator.MatchesKey(s.PUUID, limit), func(ctx context.Context) ([]model.Match, error) {
		cached, err := e.store.ListMatches(ctx, s.PUUID, limit)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			e.refreshIfStale(ctx, s)
			return cached, nil
		}

		if _, err := e.sync(ctx, s, true); err != nil {
			return nil, err
		}
		return e.store.ListMatches(ctx, s.PUUID, limit)
	})
}

// RefreshMatches runs an incremental sync regardless of freshness. When the
// sync fails but matches are stored, those are returned and the error is
// only logged.
func (e *Engine) RefreshMatches(ctx context.Context, s *model.Summoner, limit int) ([]model.Match, error) {
	if limit <= 0 {
		limit = e.syncer.Config().TargetSampleSize
	}

	_, syncErr := e.sync(ctx, s, false)
	cached, err := e.store.ListMatches(ctx, s.PUUID, limit)
	if syncErr == nil {
		return cached, err
	}
	if err == nil && len(cached) > 0 {
		e.log.Warn().Err(syncErr).Str("puuid", s.PUUID).Int("cached", len(cached)).Msg("refresh failed, serving cached matches")
		return cached, nil
	}
	return nil, syncErr
}

// refreshIfStale starts a background incremental sync when the summoner's
// last sync is outside the freshness window. Age never blocks the caller.
func (e *Engine) refreshIfStale(ctx context.Context, s *model.Summoner) {
	last := s.LastSynchronized
	stored, err := e.store.GetSummoner(ctx, s.PUUID)
	switch {
	case err == nil:
		last = stored.LastSynchronized
	case !errors.Is(err, store.ErrNotFound):
		e.log.Warn().Err(err).Str("puuid", s.PUUID).Msg("could not read sync time")
	}

	age := e.now().Sub(last)
	if !last.IsZero() && age < e.freshFor {
		return
	}
	e.log.Debug().Str("puuid", s.PUUID).Dur("age", age).Msg("cached matches stale, refreshing in background")
	coordinator.Spawn(e.coord, coordinator.SyncKey(s.PUUID), e.syncFunc(s, false))
}

// sync runs a bulk or incremental sync for s, joining one already running.
func (e *Engine) sync(ctx context.Context, s *model.Summoner, bulk bool) (*matchsync.Report, error) {
	return coordinator.Do(ctx, e.coord, coordinator.SyncKey(s.PUUID), e.syncFunc(s, bulk))
}

// syncFunc works on a copy of s so background runs never write to the caller's value.
func (e *Engine) syncFunc(s *model.Summoner, bulk bool) func(context.Context) (*matchsync.Report, error) {
	snapshot := cloneSummoner(s)
	return func(ctx context.Context) (*matchsync.Report, error) {
		var report *matchsync.Report
		var err error
		if bulk {
			report, err = e.syncer.BulkFetch(ctx, snapshot)
		} else {
			report, err = e.syncer.Incremental(ctx, snapshot)
		}
		if err != nil {
			return nil, err
		}
		if report.Inserted > 0 || report.Evicted > 0 {
			e.publish(notify.Event{Kind: notify.MatchesUpdated, PlayerID: snapshot.PUUID, Count: report.Inserted})
		}
		return report, nil
	}
}

// LookupSummoner resolves a Riot ID remotely and stores the result.
func (e *Engine) LookupSummoner(ctx context.Context, gameName, tagLine, region string) (*model.Summoner, error) {
	key := coordinator.SummonerKey(gameName, tagLine, region)
	sum, err := coordinator.Do(ctx, e.coord, key, func(ctx context.Context) (*model.Summoner, error) {
		return e.summoners.Lookup(ctx, gameName, tagLine, region)
	})
	if err != nil {
		return nil, err
	}
	e.publish(notify.Event{Kind: notify.SummonerUpdated, PlayerID: sum.PUUID})
	return cloneSummoner(sum), nil
}

// Summoners returns every stored summoner ordered by Riot ID. Ranks are not
// loaded.
func (e *Engine) Summoners(ctx context.Context) ([]model.Summoner, error) {
	return e.store.ListSummoners(ctx)
}

// ResolveSummoner returns the stored summoner for a Riot ID, looking it up
// remotely when it is not known yet.
func (e *Engine) ResolveSummoner(ctx context.Context, gameName, tagLine, region string) (*model.Summoner, error) {
	sum, err := e.summoners.Find(ctx, gameName, tagLine, region)
	if err == nil {
		return sum, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return e.LookupSummoner(ctx, gameName, tagLine, region)
}

// RefreshSummoner re-fetches profile and ranks for s.
func (e *Engine) RefreshSummoner(ctx context.Context, s *model.Summoner) (*model.Summoner, error) {
	snapshot := cloneSummoner(s)
	sum, err := coordinator.Do(ctx, e.coord, coordinator.SummonerRefreshKey(s.PUUID), func(ctx context.Context) (*model.Summoner, error) {
		return e.summoners.Refresh(ctx, snapshot)
	})
	if err != nil {
		return nil, err
	}
	e.publish(notify.Event{Kind: notify.SummonerUpdated, PlayerID: sum.PUUID})
	return cloneSummoner(sum), nil
}
