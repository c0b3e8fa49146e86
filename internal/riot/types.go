package riot

import "time"

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// SummonerResponse represents the response from /lol/summoner/v4/summoners/by-puuid
type SummonerResponse struct {
	PUUID         string `json:"puuid"`
	ProfileIconID int    `json:"profileIconId"`
	RevisionDate  int64  `json:"revisionDate"`
	SummonerLevel int    `json:"summonerLevel"`
}

// LeagueEntryResponse represents a ranked league entry from /lol/league/v4/entries/by-puuid
type LeagueEntryResponse struct {
	LeagueID     string `json:"leagueId"`
	PUUID        string `json:"puuid"`
	QueueType    string `json:"queueType"` // RANKED_SOLO_5x5, RANKED_FLEX_SR
	Tier         string `json:"tier"`      // IRON ... CHALLENGER
	Rank         string `json:"rank"`      // I, II, III, IV
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// HistoryQuery narrows a match-id history request. Zero values are omitted.
type HistoryQuery struct {
	Count     int // 1..100, defaults to 20 server-side
	Queue     int
	StartTime time.Time
	EndTime   time.Time
}
