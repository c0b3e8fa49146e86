package summoner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimb/internal/riot"
	"claimb/internal/riot/fakeriot"
	"claimb/internal/store"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *fakeriot.Provider, *store.Store) {
	t.Helper()
	st, err := store.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := fakeriot.New()
	p.AddAccount("p-1", "Tester", "NA1", 150)
	p.SetRanks("p-1",
		riot.LeagueEntryResponse{QueueType: riot.QueueTypeSolo, Tier: "GOLD", Rank: "II", LeaguePoints: 55, Wins: 20, Losses: 18},
		riot.LeagueEntryResponse{QueueType: "CHERRY", Tier: "GOLD"},
	)
	return New(p, st, WithClock(func() time.Time { return now })), p, st
}

func TestParseHandle(t *testing.T) {
	tests := []struct {
		in        string
		name, tag string
		wantErr   bool
	}{
		{"Tester#NA1", "Tester", "NA1", false},
		{"  Hide on bush # KR1 ", "Hide on bush", "KR1", false},
		{"NoTag", "", "", true},
		{"#NA1", "", "", true},
		{"Name#", "", "", true},
		{"a#b#c", "", "", true},
	}
	for _, tt := range tests {
		name, tag, err := ParseHandle(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidHandle, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.name, name)
		assert.Equal(t, tt.tag, tag)
	}
}

func TestLookup(t *testing.T) {
	svc, _, st := setup(t)
	ctx := context.Background()

	sum, err := svc.Lookup(ctx, "Tester", "NA1", "NA1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", sum.PUUID)
	assert.Equal(t, "na1", sum.Region)
	assert.Equal(t, 150, sum.SummonerLevel)
	require.Len(t, sum.Ranks, 1, "non-summoner's-rift queues are dropped")
	assert.Equal(t, "II", sum.Ranks[0].Division)
	assert.Equal(t, now, sum.UpdatedAt)

	stored, err := st.FindSummoner(ctx, "tester", "na1", "na1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", stored.PUUID)

	local, err := svc.Find(ctx, "Tester", "NA1", "na1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", local.PUUID)
}

func TestLookup_Errors(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "Nobody", "NA1", "na1")
	assert.ErrorIs(t, err, riot.ErrNotFound)

	_, err = svc.Lookup(ctx, "Tester", "NA1", "atlantis")
	assert.Error(t, err)

	_, err = svc.Lookup(ctx, "", "NA1", "na1")
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestLookup_RankFailureKeepsPreviousRanks(t *testing.T) {
	svc, p, st := setup(t)
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "Tester", "NA1", "na1")
	require.NoError(t, err)
	require.NoError(t, st.TouchSynchronized(ctx, "p-1", now.Add(-time.Hour)))

	p.FailRanks(errors.New("league service down"))
	sum, err := svc.Lookup(ctx, "Tester", "NA1", "na1")
	require.NoError(t, err, "ranks are optional")
	require.Len(t, sum.Ranks, 1)
	assert.Equal(t, "GOLD", sum.Ranks[0].Tier)
	assert.True(t, now.Add(-time.Hour).Equal(sum.LastSynchronized))
}

func TestRefresh(t *testing.T) {
	svc, p, _ := setup(t)
	ctx := context.Background()

	sum, err := svc.Lookup(ctx, "Tester", "NA1", "na1")
	require.NoError(t, err)

	p.SetRanks("p-1", riot.LeagueEntryResponse{QueueType: riot.QueueTypeSolo, Tier: "PLATINUM", Rank: "IV"})
	fresh, err := svc.Refresh(ctx, sum)
	require.NoError(t, err)
	assert.Equal(t, "PLATINUM", fresh.Ranks[0].Tier)
	assert.Equal(t, "GOLD", sum.Ranks[0].Tier, "input is not mutated")

	got, err := svc.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "PLATINUM", got.Ranks[0].Tier)
}
