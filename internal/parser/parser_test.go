package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimb/internal/model"
	"claimb/internal/relevance"
	"claimb/internal/riot/fakeriot"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newParser(champs model.ChampionIndex) *Parser {
	return New(relevance.New(), champs, WithClock(func() time.Time { return now }))
}

var owner = &model.Summoner{PUUID: "owner-puuid", GameName: "Tester", TagLine: "NA1", Region: "na1"}

func TestParse_Relevant(t *testing.T) {
	champs := model.NewChampionIndex([]model.Champion{
		{ID: 103, Key: "Ahri", Name: "Ahri"},
		{ID: 2, Key: "Olaf", Name: "Olaf"},
	})
	game := fakeriot.Ranked("NA1_100", owner.PUUID, now.Add(-24*time.Hour))

	m, err := newParser(champs).Parse(game.Payload(), "NA1_100", owner)
	require.NoError(t, err)

	assert.Equal(t, "NA1_100", m.MatchID)
	assert.Equal(t, owner.PUUID, m.SummonerPUUID)
	assert.Equal(t, 1800, m.DurationSeconds)
	assert.Equal(t, 420, m.QueueID)
	assert.Equal(t, 11, m.MapID)
	assert.Equal(t, game.Creation.UnixMilli(), m.GameCreation)
	assert.True(t, m.IncludedInAnalysis)
	require.Len(t, m.Participants, 10)

	me, ok := m.Participant(owner.PUUID)
	require.True(t, ok)
	assert.Equal(t, "Ahri", me.ChampionKey)
	assert.Equal(t, 100, me.TeamID)
	assert.True(t, me.Win)
	assert.Equal(t, 192, me.CreepScore())

	assert.Equal(t, "Olaf", m.Participants[1].ChampionKey)
	assert.Empty(t, m.Participants[2].ChampionKey, "unresolved champions are left unlinked")
}

func TestParse_LegacyMillisecondDuration(t *testing.T) {
	game := fakeriot.Ranked("NA1_101", owner.PUUID, now.Add(-time.Hour))
	game.LegacyMillis = true
	game.Duration = 25 * time.Minute

	m, err := newParser(nil).Parse(game.Payload(), "NA1_101", owner)
	require.NoError(t, err)
	assert.Equal(t, 1500, m.DurationSeconds)
	assert.Zero(t, m.EndTimestamp)
}

func TestParse_Irrelevant(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *fakeriot.Game)
	}{
		{"remake", func(g *fakeriot.Game) { g.Duration = 4 * time.Minute }},
		{"nine minutes fifty nine", func(g *fakeriot.Game) { g.Duration = 599 * time.Second }},
		{"aram", func(g *fakeriot.Game) { g.Map = 12; g.Mode = "ARAM" }},
		{"arena queue", func(g *fakeriot.Game) { g.Queue = 1700 }},
		{"too old", func(g *fakeriot.Game) { g.Creation = now.Add(-400 * 24 * time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := fakeriot.Ranked("NA1_200", owner.PUUID, now.Add(-time.Hour))
			tt.mutate(&game)

			m, err := newParser(nil).Parse(game.Payload(), "NA1_200", owner)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, ErrIrrelevantMatch)
			assert.NotErrorIs(t, err, ErrDecodeFailure)
		})
	}
}

func TestParse_DurationBoundaryAccepted(t *testing.T) {
	game := fakeriot.Ranked("NA1_201", owner.PUUID, now.Add(-time.Hour))
	game.Duration = 600 * time.Second

	m, err := newParser(nil).Parse(game.Payload(), "NA1_201", owner)
	require.NoError(t, err)
	assert.Equal(t, 600, m.DurationSeconds)
}

func TestParse_DecodeFailures(t *testing.T) {
	valid := string(fakeriot.Ranked("NA1_300", owner.PUUID, now.Add(-time.Hour)).Payload())

	tests := []struct {
		name string
		raw  string
		id   string
	}{
		{"not json", `{"metadata":`, "NA1_300"},
		{"empty object", `{}`, "NA1_300"},
		{"missing queue", strings.Replace(valid, `"queueId":420`, `"queueIdX":420`, 1), "NA1_300"},
		{"missing creation", strings.Replace(valid, `"gameCreation"`, `"gameCreationX"`, 1), "NA1_300"},
		{"no participants", `{"metadata":{"matchId":"NA1_300"},"info":{"gameCreation":1,"gameDuration":1800,"gameMode":"CLASSIC","gameType":"MATCHED_GAME","mapId":11,"queueId":420,"participants":[]}}`, "NA1_300"},
		{"wrong match", valid, "NA1_999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newParser(nil).Parse([]byte(tt.raw), tt.id, owner)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecodeFailure)

			var df *DecodeFailure
			require.True(t, errors.As(err, &df))
			assert.Equal(t, tt.id, df.MatchID)
		})
	}
}

func TestParse_ExcludedFromAnalysis(t *testing.T) {
	t.Run("early surrender", func(t *testing.T) {
		game := fakeriot.Ranked("NA1_400", owner.PUUID, now.Add(-time.Hour))
		game.Surrendered = true
		m, err := newParser(nil).Parse(game.Payload(), "NA1_400", owner)
		require.NoError(t, err)
		assert.False(t, m.IncludedInAnalysis)
	})

	t.Run("owner absent", func(t *testing.T) {
		game := fakeriot.Ranked("NA1_401", "someone-else", now.Add(-time.Hour))
		m, err := newParser(nil).Parse(game.Payload(), "NA1_401", owner)
		require.NoError(t, err)
		assert.False(t, m.IncludedInAnalysis)
	})
}
