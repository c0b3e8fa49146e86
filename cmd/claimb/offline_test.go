package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimb/internal/config"
	"claimb/internal/model"
	"claimb/internal/orchestrator"
	"claimb/internal/riot"
	"claimb/internal/store"
)

func TestNewProvider_OfflineWithoutKey(t *testing.T) {
	p, err := newProvider(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, offlineProvider{}, p)

	p, err = newProvider(&config.Config{RiotAPIKey: "RGAPI-test-key-0000"})
	require.NoError(t, err)
	assert.IsType(t, &riot.Client{}, p)
}

func TestOfflineProvider_ServesStoredData(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	owner := &model.Summoner{PUUID: "p-1", GameName: "Owner", TagLine: "NA1", Region: "na1", SummonerLevel: 30}
	require.NoError(t, st.UpsertSummoner(ctx, owner))
	created := time.Now().Add(-time.Hour)
	_, err = st.InsertMatch(ctx, &model.Match{
		MatchID: "NA1_1", SummonerPUUID: "p-1", GameCreation: created.UnixMilli(),
		DurationSeconds: 1800, QueueID: riot.QueueRankedSolo, MapID: riot.MapSummonersRift, IncludedInAnalysis: true,
		Participants: []model.Participant{{MatchID: "NA1_1", PUUID: "p-1", ChampionID: 103, TeamPosition: "MIDDLE", Win: true}},
	})
	require.NoError(t, err)
	require.NoError(t, st.TouchSynchronized(ctx, "p-1", time.Now()))

	engine, err := orchestrator.New(st, orchestrator.Deps{Provider: offlineProvider{}})
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	sum, err := engine.ResolveSummoner(ctx, "Owner", "NA1", "na1")
	require.NoError(t, err)
	matches, err := engine.LoadMatches(ctx, sum, 20)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "NA1_1", matches[0].MatchID)

	_, err = engine.ResolveSummoner(ctx, "Nobody", "NA1", "na1")
	assert.ErrorIs(t, err, riot.ErrMissingAPIKey)

	other := &model.Summoner{PUUID: "p-2", GameName: "Other", TagLine: "NA1", Region: "na1"}
	require.NoError(t, st.UpsertSummoner(ctx, other))
	_, err = engine.LoadMatches(ctx, other, 20)
	assert.ErrorIs(t, err, riot.ErrMissingAPIKey)

	require.NoError(t, engine.ClearAllCachedData(ctx))
}
