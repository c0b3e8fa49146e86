package orchestrator

import (
	"context"

	"claimb/internal/coaching"
	"claimb/internal/coordinator"
	"claimb/internal/model"
	"claimb/internal/notify"
)

// GetCachedAnalysis returns the valid cached analysis of matchID, if any.
func (e *Engine) GetCachedAnalysis(ctx context.Context, puuid, matchID string) (*coaching.Analysis, bool, error) {
	return e.analyses.Get(ctx, coaching.AnalysisKey(puuid, matchID))
}

// CacheAnalysis stores a, replacing any previous analysis of the same match.
func (e *Engine) CacheAnalysis(ctx context.Context, puuid string, a *coaching.Analysis) error {
	if err := e.analyses.Put(ctx, coaching.AnalysisKey(puuid, a.MatchID), a); err != nil {
		return err
	}
	e.publish(notify.Event{Kind: notify.AnalysisUpdated, PlayerID: puuid, Scope: a.MatchID})
	return nil
}

// GetCachedSummary returns the valid cached summary over sampleSize games for
// role, if any. An empty role is the summary over all roles.
func (e *Engine) GetCachedSummary(ctx context.Context, puuid string, sampleSize int, role string) (*coaching.Summary, bool, error) {
	return e.summaries.Get(ctx, coaching.SummaryKey(puuid, sampleSize, role))
}

// CacheSummary stores sum, replacing any previous summary over the same sample
// size and role.
func (e *Engine) CacheSummary(ctx context.Context, puuid string, sampleSize int, role string, sum *coaching.Summary) error {
	key := coaching.SummaryKey(puuid, sampleSize, role)
	if err := e.summaries.Put(ctx, key, sum); err != nil {
		return err
	}
	e.publish(notify.Event{Kind: notify.SummaryUpdated, PlayerID: puuid, Scope: key.Scope})
	return nil
}

// PostGameAnalysis returns the analysis of match for s. A cached analysis is
// returned at once while a fresh one is generated in the background; a
// background failure keeps the cached one. On a miss the call waits for
// generation.
func (e *Engine) PostGameAnalysis(ctx context.Context, s *model.Summoner, match *model.Match, kpi coaching.KPIContext) (*coaching.Analysis, error) {
	if e.generator == nil {
		return nil, ErrNoGenerator
	}

	player := cloneSummoner(s)
	m := *match
	generate := func(ctx context.Context) (*coaching.Analysis, error) {
		a, err := e.generator.PostGameAnalysis(ctx, &m, player, e.withBaselines(ctx, kpi))
		if err != nil {
			return nil, err
		}
		if a.MatchID == "" {
			a.MatchID = m.MatchID
		}
		if a.GeneratedAt.IsZero() {
			a.GeneratedAt = e.now()
		}
		if err := e.CacheAnalysis(ctx, player.PUUID, a); err != nil {
			return nil, err
		}
		return a, nil
	}

	key := coordinator.AnalysisKey(player.PUUID, m.MatchID)
	cached, ok, err := e.GetCachedAnalysis(ctx, player.PUUID, m.MatchID)
	if err != nil {
		return nil, err
	}
	if ok {
		coordinator.Spawn(e.coord, key, generate)
		return cached, nil
	}
	return coordinator.Do(ctx, e.coord, key, generate)
}

// RollingSummary returns a summary of the last sampleSize analysable games of
// s, optionally restricted to one role. It follows the same cache policy as
// PostGameAnalysis.
func (e *Engine) RollingSummary(ctx context.Context, s *model.Summoner, sampleSize int, role string, kpi coaching.KPIContext) (*coaching.Summary, error) {
	if e.generator == nil {
		return nil, ErrNoGenerator
	}
	if sampleSize <= 0 {
		sampleSize = e.syncer.Config().TargetSampleSize
	}

	player := cloneSummoner(s)
	if kpi.Role == "" {
		kpi.Role = role
	}
	generate := func(ctx context.Context) (*coaching.Summary, error) {
		matches, err := e.analysable(ctx, player.PUUID, sampleSize, role)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, ErrNoMatches
		}
		sum, err := e.generator.RollingSummary(ctx, matches, player, role, e.withBaselines(ctx, kpi))
		if err != nil {
			return nil, err
		}
		if sum.SampleSize == 0 {
			sum.SampleSize = len(matches)
		}
		if sum.Role == "" {
			sum.Role = role
		}
		if sum.GeneratedAt.IsZero() {
			sum.GeneratedAt = e.now()
		}
		if err := e.CacheSummary(ctx, player.PUUID, sampleSize, role, sum); err != nil {
			return nil, err
		}
		return sum, nil
	}

	key := coordinator.SummaryKey(player.PUUID, sampleSize, role)
	cached, ok, err := e.GetCachedSummary(ctx, player.PUUID, sampleSize, role)
	if err != nil {
		return nil, err
	}
	if ok {
		coordinator.Spawn(e.coord, key, generate)
		return cached, nil
	}
	return coordinator.Do(ctx, e.coord, key, generate)
}

// analysable returns stored matches flagged for analysis, optionally only
// those where puuid played role.
func (e *Engine) analysable(ctx context.Context, puuid string, limit int, role string) ([]model.Match, error) {
	stored, err := e.store.ListMatches(ctx, puuid, limit)
	if err != nil {
		return nil, err
	}
	out := stored[:0]
	for _, m := range stored {
		if !m.IncludedInAnalysis {
			continue
		}
		if role != "" {
			p, ok := m.Participant(puuid)
			if !ok || p.TeamPosition != role {
				continue
			}
		}
		out = append(out, m)
	}
	return out, nil
}
