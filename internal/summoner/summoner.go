// Package summoner resolves accounts and keeps profile and rank data current.
package summoner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"claimb/internal/logging"
	"claimb/internal/model"
	"claimb/internal/riot"
	"claimb/internal/store"
)

// ErrInvalidHandle is returned for a Riot ID that is not "name#tag".
var ErrInvalidHandle = errors.New("invalid riot id")

// Provider is the remote account source.
type Provider interface {
	AccountByHandle(ctx context.Context, gameName, tagLine, region string) (*riot.AccountResponse, error)
	SummonerByPUUID(ctx context.Context, puuid, region string) (*riot.SummonerResponse, error)
	RankEntries(ctx context.Context, puuid, region string) ([]riot.LeagueEntryResponse, error)
}

// Store is the persistence the service needs.
type Store interface {
	GetSummoner(ctx context.Context, puuid string) (*model.Summoner, error)
	FindSummoner(ctx context.Context, gameName, tagLine, region string) (*model.Summoner, error)
	UpsertSummoner(ctx context.Context, s *model.Summoner) error
}

// Service looks up and refreshes summoners.
type Service struct {
	provider Provider
	store    Store
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(p Provider, st Store, opts ...Option) *Service {
	s := &Service{provider: p, store: st, now: time.Now, log: logging.For("summoner")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseHandle splits "GameName#TAG".
func ParseHandle(handle string) (string, string, error) {
	name, tag, ok := strings.Cut(strings.TrimSpace(handle), "#")
	name, tag = strings.TrimSpace(name), strings.TrimSpace(tag)
	if !ok || name == "" || tag == "" || strings.Contains(tag, "#") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return name, tag, nil
}

// Lookup resolves a Riot ID remotely and stores the result. Rank data is
// optional: when it cannot be fetched the previously stored ranks are kept.
func (s *Service) Lookup(ctx context.Context, gameName, tagLine, region string) (*model.Summoner, error) {
	region = strings.ToLower(region)
	if err := riot.ValidateRegion(region); err != nil {
		return nil, err
	}
	if gameName == "" || tagLine == "" {
		return nil, fmt.Errorf("%w: %q#%q", ErrInvalidHandle, gameName, tagLine)
	}

	account, err := s.provider.AccountByHandle(ctx, gameName, tagLine, region)
	if err != nil {
		return nil, fmt.Errorf("lookup %s#%s: %w", gameName, tagLine, err)
	}

	sum := &model.Summoner{PUUID: account.PUUID, GameName: account.GameName, TagLine: account.TagLine, Region: region}
	existing, err := s.store.GetSummoner(ctx, account.PUUID)
	switch {
	case err == nil:
		sum.LastSynchronized = existing.LastSynchronized
		sum.Ranks = existing.Ranks
		sum.SummonerLevel = existing.SummonerLevel
		sum.ProfileIconID = existing.ProfileIconID
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if err := s.refreshRemote(ctx, sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// Refresh re-fetches profile and ranks for a known summoner.
func (s *Service) Refresh(ctx context.Context, sum *model.Summoner) (*model.Summoner, error) {
	fresh := *sum
	fresh.Ranks = append([]model.RankEntry(nil), sum.Ranks...)
	if err := s.refreshRemote(ctx, &fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}

func (s *Service) refreshRemote(ctx context.Context, sum *model.Summoner) error {
	profile, err := s.provider.SummonerByPUUID(ctx, sum.PUUID, sum.Region)
	if err != nil {
		return fmt.Errorf("fetch summoner %s: %w", sum.PUUID, err)
	}
	sum.SummonerLevel = profile.SummonerLevel
	sum.ProfileIconID = profile.ProfileIconID

	entries, err := s.provider.RankEntries(ctx, sum.PUUID, sum.Region)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn().Err(err).Str("puuid", sum.PUUID).Msg("rank fetch failed, keeping previous ranks")
	} else {
		sum.Ranks = toRanks(entries)
	}

	sum.UpdatedAt = s.now()
	return s.store.UpsertSummoner(ctx, sum)
}

// Get returns a stored summoner.
func (s *Service) Get(ctx context.Context, puuid string) (*model.Summoner, error) {
	return s.store.GetSummoner(ctx, puuid)
}

// Find returns a stored summoner by handle without touching the network.
func (s *Service) Find(ctx context.Context, gameName, tagLine, region string) (*model.Summoner, error) {
	return s.store.FindSummoner(ctx, gameName, tagLine, region)
}

func toRanks(entries []riot.LeagueEntryResponse) []model.RankEntry {
	out := make([]model.RankEntry, 0, len(entries))
	for _, e := range entries {
		if e.QueueType != riot.QueueTypeSolo && e.QueueType != riot.QueueTypeFlex {
			continue
		}
		out = append(out, model.RankEntry{
			QueueType:    e.QueueType,
			Tier:         e.Tier,
			Division:     e.Rank,
			LeaguePoints: e.LeaguePoints,
			Wins:         e.Wins,
			Losses:       e.Losses,
		})
	}
	return out
}
