package fakeriot

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"claimb/internal/riot"
)

// Game describes a match-v5 detail document to render with Payload.
type Game struct {
	ID           string
	Owner        string // puuid of the tracked player; always participant 0
	Queue        int
	Map          int
	Mode         string
	Type         string
	Creation     time.Time
	Duration     time.Duration
	LegacyMillis bool // omit gameEndTimestamp and report gameDuration in ms
	Surrendered  bool
	ChampionID   int
	Position     string // owner's teamPosition; TOP when empty
}

// Ranked returns a relevant ranked-solo game for owner.
func Ranked(id, owner string, created time.Time) Game {
	return Game{
		ID:         id,
		Owner:      owner,
		Queue:      riot.QueueRankedSolo,
		Map:        riot.MapSummonersRift,
		Mode:       "CLASSIC",
		Type:       "MATCHED_GAME",
		Creation:   created,
		Duration:   30 * time.Minute,
		ChampionID: 103,
	}
}

// Payload renders g as match-v5 JSON with ten participants.
func (g Game) Payload() []byte {
	start := g.Creation.Add(time.Minute)
	end := start.Add(g.Duration)

	info := map[string]any{
		"gameCreation":       g.Creation.UnixMilli(),
		"gameStartTimestamp": start.UnixMilli(),
		"gameMode":           g.Mode,
		"gameType":           g.Type,
		"gameVersion":        "14.20.615.1234",
		"mapId":              g.Map,
		"queueId":            g.Queue,
	}
	if g.LegacyMillis {
		info["gameDuration"] = g.Duration.Milliseconds()
	} else {
		info["gameDuration"] = int64(g.Duration.Seconds())
		info["gameEndTimestamp"] = end.UnixMilli()
	}

	puuids := make([]string, 10)
	parts := make([]map[string]any, 10)
	positions := []string{"TOP", "JUNGLE", "MIDDLE", "BOTTOM", "UTILITY"}
	for i := range parts {
		puuid := fmt.Sprintf("%s-p%d", g.ID, i)
		champ := 1 + i
		position := positions[i%5]
		if i == 0 {
			puuid = g.Owner
			champ = g.ChampionID
			if g.Position != "" {
				position = g.Position
			}
		}
		puuids[i] = puuid
		team := 100
		if i >= 5 {
			team = 200
		}
		parts[i] = map[string]any{
			"puuid":                       puuid,
			"championId":                  champ,
			"championName":                fmt.Sprintf("Champ%d", champ),
			"teamId":                      team,
			"lane":                        position,
			"role":                        "SOLO",
			"teamPosition":                position,
			"kills":                       5 + i,
			"deaths":                      3,
			"assists":                     7,
			"goldEarned":                  11000,
			"totalMinionsKilled":          180,
			"neutralMinionsKilled":        12,
			"totalDamageDealtToChampions": 21000,
			"visionScore":                 25,
			"wardsPlaced":                 10,
			"wardsKilled":                 3,
			"dragonKills":                 1,
			"baronKills":                  0,
			"turretTakedowns":             2,
			"inhibitorTakedowns":          1,
			"win":                         team == 100,
			"gameEndedInEarlySurrender":   g.Surrendered,
		}
	}
	info["participants"] = parts

	doc := map[string]any{
		"metadata": map[string]any{"matchId": g.ID, "participants": puuids},
		"info":     info,
	}
	b, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return b
}

// Remote converts g into a history entry.
func (g Game) Remote() Match {
	return Match{ID: g.ID, Queue: g.Queue, Creation: g.Creation, Payload: g.Payload()}
}
