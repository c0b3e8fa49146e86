// Package parser turns raw match-v5 payloads into stored match entities.
package parser

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"claimb/internal/logging"
	"claimb/internal/model"
	"claimb/internal/relevance"
)

// ErrIrrelevantMatch marks a payload the relevance filter rejected. Callers skip it.
var ErrIrrelevantMatch = errors.New("irrelevant match")

// ErrDecodeFailure is matched by every *DecodeFailure.
var ErrDecodeFailure = errors.New("match decode failure")

// DecodeFailure is a malformed payload: bad JSON, a missing required field, or
// a payload for a different match.
type DecodeFailure struct {
	MatchID string
	Err     error
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("decode match %s: %v", e.MatchID, e.Err)
}

func (e *DecodeFailure) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDecodeFailure) match.
func (e *DecodeFailure) Is(target error) bool { return target == ErrDecodeFailure }

// Parser converts payloads for one sync session.
type Parser struct {
	filter    *relevance.Filter
	champions model.ChampionIndex
	validate  *validator.Validate
	now       func() time.Time
	log       zerolog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock overrides time.Now for the age rule.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// New creates a Parser. champions may be nil; every champion is then unresolved.
func New(filter *relevance.Filter, champions model.ChampionIndex, opts ...Option) *Parser {
	p := &Parser{
		filter:    filter,
		champions: champions,
		validate:  validator.New(),
		now:       time.Now,
		log:       logging.For("parser"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes raw, applies the relevance filter and builds the match owned by owner.
func (p *Parser) Parse(raw []byte, matchID string, owner *model.Summoner) (*model.Match, error) {
	var doc matchDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &DecodeFailure{MatchID: matchID, Err: err}
	}
	if err := p.validate.Struct(&doc); err != nil {
		return nil, &DecodeFailure{MatchID: matchID, Err: err}
	}
	if doc.Metadata.MatchID != matchID {
		return nil, &DecodeFailure{MatchID: matchID, Err: fmt.Errorf("payload is for match %q", doc.Metadata.MatchID)}
	}

	info := &doc.Info
	duration := normalizeDuration(*info.GameDuration, info.GameEndTimestamp)

	candidate := relevance.Candidate{
		Mode:            info.GameMode,
		Type:            info.GameType,
		Queue:           *info.QueueID,
		Map:             *info.MapID,
		DurationSeconds: duration,
		CreationMs:      *info.GameCreation,
	}
	if reason := p.filter.Reason(candidate, p.now()); reason != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrIrrelevantMatch, matchID, reason)
	}

	m := &model.Match{
		MatchID:         matchID,
		SummonerPUUID:   owner.PUUID,
		GameCreation:    *info.GameCreation,
		DurationSeconds: duration,
		GameMode:        info.GameMode,
		GameType:        info.GameType,
		QueueID:         *info.QueueID,
		MapID:           *info.MapID,
		GameVersion:     info.GameVersion,
		StartTimestamp:  info.GameStartTimestamp,
		EndTimestamp:    info.GameEndTimestamp,
		Participants:    make([]model.Participant, 0, len(info.Participants)),
	}

	ownerSeen, surrendered := false, false
	for i := range info.Participants {
		wp := &info.Participants[i]
		part := p.participant(matchID, wp)
		if part.PUUID == owner.PUUID {
			ownerSeen = true
		}
		if wp.GameEndedInEarlySurrender {
			surrendered = true
		}
		m.Participants = append(m.Participants, part)
	}
	m.IncludedInAnalysis = ownerSeen && !surrendered

	return m, nil
}

func (p *Parser) participant(matchID string, wp *wireParticipant) model.Participant {
	part := model.Participant{
		MatchID:                     matchID,
		PUUID:                       wp.PUUID,
		ChampionID:                  *wp.ChampionID,
		ChampionName:                wp.ChampionName,
		TeamID:                      *wp.TeamID,
		Lane:                        wp.Lane,
		Role:                        wp.Role,
		TeamPosition:                wp.TeamPosition,
		Kills:                       *wp.Kills,
		Deaths:                      *wp.Deaths,
		Assists:                     *wp.Assists,
		GoldEarned:                  wp.GoldEarned,
		TotalMinionsKilled:          wp.TotalMinionsKilled,
		NeutralMinionsKilled:        wp.NeutralMinionsKilled,
		TotalDamageDealtToChampions: wp.TotalDamageDealtToChampions,
		VisionScore:                 wp.VisionScore,
		WardsPlaced:                 wp.WardsPlaced,
		WardsKilled:                 wp.WardsKilled,
		DragonKills:                 wp.DragonKills,
		BaronKills:                  wp.BaronKills,
		TurretTakedowns:             wp.TurretTakedowns,
		InhibitorTakedowns:          wp.InhibitorTakedowns,
		Win:                         *wp.Win,
	}

	if champ, ok := p.champions[part.ChampionID]; ok {
		part.ChampionKey = champ.Key
		if part.ChampionName == "" {
			part.ChampionName = champ.Name
		}
	} else {
		p.log.Warn().Str("match_id", matchID).Int("champion_id", part.ChampionID).Msg("champion not in local index")
	}
	return part
}

// normalizeDuration returns seconds. Payloads without gameEndTimestamp report milliseconds.
func normalizeDuration(raw, endTimestamp int64) int {
	if endTimestamp == 0 {
		return int(raw / 1000)
	}
	return int(raw)
}
