package parser

// Required numeric fields are pointers so a missing field fails validation
// instead of decoding as zero.

type matchDocument struct {
	Metadata wireMetadata `json:"metadata"`
	Info     wireInfo     `json:"info"`
}

type wireMetadata struct {
	MatchID      string   `json:"matchId" validate:"required"`
	Participants []string `json:"participants"`
}

type wireInfo struct {
	GameCreation       *int64            `json:"gameCreation" validate:"required"`
	GameDuration       *int64            `json:"gameDuration" validate:"required"`
	GameStartTimestamp int64             `json:"gameStartTimestamp"`
	GameEndTimestamp   int64             `json:"gameEndTimestamp"`
	GameMode           string            `json:"gameMode" validate:"required"`
	GameType           string            `json:"gameType" validate:"required"`
	GameVersion        string            `json:"gameVersion"`
	MapID              *int              `json:"mapId" validate:"required"`
	QueueID            *int              `json:"queueId" validate:"required"`
	Participants       []wireParticipant `json:"participants" validate:"required,min=1,dive"`
}

type wireParticipant struct {
	PUUID        string `json:"puuid" validate:"required"`
	ChampionID   *int   `json:"championId" validate:"required"`
	ChampionName string `json:"championName"`
	TeamID       *int   `json:"teamId" validate:"required"`
	Lane         string `json:"lane"`
	Role         string `json:"role"`
	TeamPosition string `json:"teamPosition"`

	Kills   *int `json:"kills" validate:"required"`
	Deaths  *int `json:"deaths" validate:"required"`
	Assists *int `json:"assists" validate:"required"`

	GoldEarned                  int `json:"goldEarned"`
	TotalMinionsKilled          int `json:"totalMinionsKilled"`
	NeutralMinionsKilled        int `json:"neutralMinionsKilled"`
	TotalDamageDealtToChampions int `json:"totalDamageDealtToChampions"`
	VisionScore                 int `json:"visionScore"`
	WardsPlaced                 int `json:"wardsPlaced"`
	WardsKilled                 int `json:"wardsKilled"`
	DragonKills                 int `json:"dragonKills"`
	BaronKills                  int `json:"baronKills"`
	TurretTakedowns             int `json:"turretTakedowns"`
	InhibitorTakedowns          int `json:"inhibitorTakedowns"`

	Win                       *bool `json:"win" validate:"required"`
	GameEndedInEarlySurrender bool  `json:"gameEndedInEarlySurrender"`
}
