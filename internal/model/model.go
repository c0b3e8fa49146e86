package model

import (
	"fmt"
	"time"
)

// Summoner is a tracked player account. PUUID is stable across name changes.
type Summoner struct {
	PUUID            string
	GameName         string
	TagLine          string
	Region           string // platform routing value, e.g. na1, euw1
	SummonerLevel    int
	ProfileIconID    int
	LastSynchronized time.Time // zero until the first successful match sync
	Ranks            []RankEntry
	UpdatedAt        time.Time
}

// Handle returns the "GameName#TagLine" display form.
func (s *Summoner) Handle() string {
	return fmt.Sprintf("%s#%s", s.GameName, s.TagLine)
}

// Rank returns the standing for a queue type, if any.
func (s *Summoner) Rank(queueType string) (RankEntry, bool) {
	for _, r := range s.Ranks {
		if r.QueueType == queueType {
			return r, true
		}
	}
	return RankEntry{}, false
}

// RankEntry is a ranked-queue standing (RANKED_SOLO_5x5, RANKED_FLEX_SR)
type RankEntry struct {
	QueueType    string
	Tier         string
	Division     string
	LeaguePoints int
	Wins         int
	Losses       int
}

// Match is a stored game. Created only by the parser, never mutated after insert.
type Match struct {
	MatchID            string
	SummonerPUUID      string // owning summoner
	GameCreation       int64  // epoch ms
	DurationSeconds    int
	GameMode           string
	GameType           string
	QueueID            int
	MapID              int
	GameVersion        string
	StartTimestamp     int64 // epoch ms, 0 if unknown
	EndTimestamp       int64 // epoch ms, 0 if unknown
	IncludedInAnalysis bool
	Participants       []Participant
}

// CreatedAt returns the game creation time.
func (m *Match) CreatedAt() time.Time {
	return time.UnixMilli(m.GameCreation)
}

// Participant returns the participant row for puuid.
func (m *Match) Participant(puuid string) (*Participant, bool) {
	for i := range m.Participants {
		if m.Participants[i].PUUID == puuid {
			return &m.Participants[i], true
		}
	}
	return nil, false
}

// Participant is one combatant in a match.
type Participant struct {
	MatchID      string
	PUUID        string
	ChampionID   int
	ChampionName string
	ChampionKey  string // resolved Data Dragon id ("MonkeyKing"); empty when unresolved
	TeamID       int
	Lane         string
	Role         string
	TeamPosition string // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY

	Kills   int
	Deaths  int
	Assists int

	GoldEarned                  int
	TotalMinionsKilled          int
	NeutralMinionsKilled        int
	TotalDamageDealtToChampions int
	VisionScore                 int
	WardsPlaced                 int
	WardsKilled                 int

	DragonKills        int
	BaronKills         int
	TurretTakedowns    int
	InhibitorTakedowns int

	Win bool
}

// CreepScore is lane minions plus neutral monsters.
func (p *Participant) CreepScore() int {
	return p.TotalMinionsKilled + p.NeutralMinionsKilled
}

// Champion is reference data from Data Dragon.
type Champion struct {
	ID      int    // numeric key, matches participant championId
	Key     string // Data Dragon id, e.g. "MonkeyKing"
	Name    string // display name, e.g. "Wukong"
	Title   string
	Tags    []string
	Version string
}

// ChampionIndex maps numeric champion id to its reference data.
type ChampionIndex map[int]Champion

// NewChampionIndex indexes champions by numeric id.
func NewChampionIndex(champs []Champion) ChampionIndex {
	idx := make(ChampionIndex, len(champs))
	for _, c := range champs {
		idx[c.ID] = c
	}
	return idx
}

// Baseline is one row of the bundled role/archetype statistics.
type Baseline struct {
	Role       string
	ClassTag   string
	Metric     string
	Mean       float64
	Median     float64
	P40        float64
	P60        float64
	SampleSize int
}
