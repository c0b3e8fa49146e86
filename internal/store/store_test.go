package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimb/internal/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testMatch(puuid, id string, created time.Time) *model.Match {
	return &model.Match{
		MatchID:            id,
		SummonerPUUID:      puuid,
		GameCreation:       created.UnixMilli(),
		DurationSeconds:    1800,
		GameMode:           "CLASSIC",
		GameType:           "MATCHED_GAME",
		QueueID:            420,
		MapID:              11,
		GameVersion:        "14.20.1",
		IncludedInAnalysis: true,
		Participants: []model.Participant{
			{MatchID: id, PUUID: puuid, ChampionID: 103, ChampionKey: "Ahri", TeamID: 100, Kills: 7, Win: true},
			{MatchID: id, PUUID: "enemy", ChampionID: 1, TeamID: 200, Deaths: 7},
		},
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	c := &conn{postgres: true}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", c.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	c.postgres = false
	assert.Equal(t, "a = ?", c.rebind("a = ?"))
}

func TestInsertMatch_Idempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	m := testMatch("me", "NA1_1", time.Now())

	inserted, err := s.InsertMatch(ctx, m)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertMatch(ctx, m)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := s.CountMatches(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := s.HasMatch(ctx, "me", "NA1_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasMatch(ctx, "someone", "NA1_1")
	require.NoError(t, err)
	assert.False(t, ok, "matches are stored per summoner")
}

func TestListMatches_NewestFirstWithParticipants(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Now().Add(-10 * time.Hour)

	for i := 0; i < 5; i++ {
		_, err := s.InsertMatch(ctx, testMatch("me", fmt.Sprintf("NA1_%d", i), base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	all, err := s.ListMatches(ctx, "me", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "NA1_4", all[0].MatchID)
	assert.Equal(t, "NA1_0", all[4].MatchID)
	require.Len(t, all[0].Participants, 2)
	assert.Equal(t, "me", all[0].Participants[0].PUUID)
	assert.True(t, all[0].Participants[0].Win)
	assert.Equal(t, "Ahri", all[0].Participants[0].ChampionKey)

	limited, err := s.ListMatches(ctx, "me", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "NA1_3", limited[1].MatchID)

	none, err := s.ListMatches(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEvictOldest(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Now().Add(-100 * time.Hour)

	for i := 0; i < 8; i++ {
		_, err := s.InsertMatch(ctx, testMatch("me", fmt.Sprintf("NA1_%d", i), base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	_, err := s.InsertMatch(ctx, testMatch("other", "NA1_0", base))
	require.NoError(t, err)

	evicted, err := s.EvictOldest(ctx, "me", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, evicted)

	ids, err := s.MatchIDs(ctx, "me")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"NA1_3", "NA1_4", "NA1_5", "NA1_6", "NA1_7"}, ids)

	n, err := s.CountMatches(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "eviction is per summoner")

	evicted, err = s.EvictOldest(ctx, "me", 5)
	require.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestWithTx_RollsBack(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.InsertMatch(ctx, testMatch("me", "NA1_1", time.Now())); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.CountMatches(ctx, "me")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSummoners(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.GetSummoner(ctx, "p-1")
	assert.ErrorIs(t, err, ErrNotFound)

	sum := &model.Summoner{
		PUUID: "p-1", GameName: "Tester", TagLine: "NA1", Region: "NA1", SummonerLevel: 120,
		Ranks: []model.RankEntry{{QueueType: "RANKED_SOLO_5x5", Tier: "GOLD", Division: "II", LeaguePoints: 40, Wins: 10, Losses: 8}},
	}
	require.NoError(t, s.UpsertSummoner(ctx, sum))

	got, err := s.FindSummoner(ctx, "tester", "na1", "na1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.PUUID)
	assert.Equal(t, "na1", got.Region)
	assert.True(t, got.LastSynchronized.IsZero())
	rank, ok := got.Rank("RANKED_SOLO_5x5")
	require.True(t, ok)
	assert.Equal(t, "GOLD", rank.Tier)

	synced := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.TouchSynchronized(ctx, "p-1", synced))

	sum.SummonerLevel = 121
	sum.Ranks = nil
	require.NoError(t, s.UpsertSummoner(ctx, sum))

	got, err = s.GetSummoner(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 121, got.SummonerLevel)
	assert.Empty(t, got.Ranks)
	assert.True(t, synced.Equal(got.LastSynchronized), "upsert keeps last synchronized")

	assert.ErrorIs(t, s.TouchSynchronized(ctx, "missing", synced), ErrNotFound)

	_, err = s.InsertMatch(ctx, testMatch("p-1", "NA1_1", time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.DeleteSummoner(ctx, "p-1"))
	_, err = s.GetSummoner(ctx, "p-1")
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := s.CountMatches(ctx, "p-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListSummoners_OrderedByRiotID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	list, err := s.ListSummoners(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, sum := range []*model.Summoner{
		{PUUID: "p-2", GameName: "Zed", TagLine: "EUW", Region: "euw1"},
		{PUUID: "p-1", GameName: "Ahri", TagLine: "NA1", Region: "na1",
			Ranks: []model.RankEntry{{QueueType: "RANKED_SOLO_5x5", Tier: "GOLD"}}},
	} {
		require.NoError(t, s.UpsertSummoner(ctx, sum))
	}

	list, err = s.ListSummoners(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p-1", list[0].PUUID)
	assert.Equal(t, "p-2", list[1].PUUID)
	assert.Empty(t, list[0].Ranks, "ranks are not loaded")
}

func TestChampions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	v, err := s.DataVersion(ctx, VersionChampions)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.ReplaceChampions(ctx, "14.20.1", []model.Champion{
		{ID: 62, Key: "MonkeyKing", Name: "Wukong", Tags: []string{"Fighter", "Tank"}},
		{ID: 103, Key: "Ahri", Name: "Ahri", Tags: []string{"Mage"}},
	}))

	champs, err := s.Champions(ctx)
	require.NoError(t, err)
	require.Len(t, champs, 2)
	assert.Equal(t, "MonkeyKing", champs[0].Key)
	assert.Equal(t, []string{"Fighter", "Tank"}, champs[0].Tags)
	assert.Equal(t, "14.20.1", champs[1].Version)

	v, err = s.DataVersion(ctx, VersionChampions)
	require.NoError(t, err)
	assert.Equal(t, "14.20.1", v)
}

func TestLoadBaselines_Idempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	rows := []model.Baseline{
		{Role: "MIDDLE", ClassTag: "Mage", Metric: "cs_per_min", Mean: 7.1, Median: 7.0, P40: 6.6, P60: 7.4, SampleSize: 900},
		{Role: "MIDDLE", ClassTag: "Mage", Metric: "kda", Mean: 3.2, Median: 2.9, P40: 2.5, P60: 3.3, SampleSize: 900},
	}

	loaded, err := s.LoadBaselines(ctx, "v1", rows)
	require.NoError(t, err)
	assert.True(t, loaded)

	loaded, err = s.LoadBaselines(ctx, "v1", rows)
	require.NoError(t, err)
	assert.False(t, loaded)

	b, err := s.Baseline(ctx, "MIDDLE", "Mage", "kda")
	require.NoError(t, err)
	assert.InDelta(t, 2.9, b.Median, 1e-9)

	all, err := s.Baselines(ctx, "MIDDLE")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.Baseline(ctx, "TOP", "Tank", "kda")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheRows(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	put := func(payload string, created time.Time) {
		require.NoError(t, s.ReplaceCacheRow(ctx, CacheRow{
			PlayerID: "p-1", Kind: "post_game_analysis", Scope: "NA1_1",
			Payload: []byte(payload), CreatedAt: created, ExpiresAt: created.Add(time.Hour),
		}))
	}
	put(`{"v":1}`, now.Add(-2*time.Hour))
	put(`{"v":2}`, now)

	rows, err := s.CacheRows(ctx, "p-1", "post_game_analysis", "NA1_1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "replace leaves one row per key")
	assert.JSONEq(t, `{"v":2}`, string(rows[0].Payload))
	assert.True(t, now.Add(time.Hour).Equal(rows[0].ExpiresAt))

	require.NoError(t, s.ReplaceCacheRow(ctx, CacheRow{
		PlayerID: "p-1", Kind: "rolling_summary", Scope: "20",
		Payload: []byte(`{}`), CreatedAt: now.Add(-3 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))

	swept, err := s.DeleteExpiredCache(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	cleared, err := s.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)
}

func TestOldestMatch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	oldest, err := s.OldestMatch(ctx, "me")
	require.NoError(t, err)
	assert.True(t, oldest.IsZero())

	base := time.Now().Add(-5 * time.Hour).Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		_, err := s.InsertMatch(ctx, testMatch("me", fmt.Sprintf("NA1_%d", i), base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	oldest, err = s.OldestMatch(ctx, "me")
	require.NoError(t, err)
	assert.True(t, base.Equal(oldest))
}
