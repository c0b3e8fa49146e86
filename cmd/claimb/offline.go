package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"claimb/internal/config"
	"claimb/internal/orchestrator"
	"claimb/internal/riot"
)

// offlineProvider stands in for the Riot client when no API key is set.
// Every remote call fails with riot.ErrMissingAPIKey, so reads served from
// the store keep working.
type offlineProvider struct{}

func (offlineProvider) AccountByHandle(context.Context, string, string, string) (*riot.AccountResponse, error) {
	return nil, riot.ErrMissingAPIKey
}

func (offlineProvider) SummonerByPUUID(context.Context, string, string) (*riot.SummonerResponse, error) {
	return nil, riot.ErrMissingAPIKey
}

func (offlineProvider) RankEntries(context.Context, string, string) ([]riot.LeagueEntryResponse, error) {
	return nil, riot.ErrMissingAPIKey
}

func (offlineProvider) MatchIDs(context.Context, string, string, riot.HistoryQuery) ([]string, error) {
	return nil, riot.ErrMissingAPIKey
}

func (offlineProvider) Match(context.Context, string, string) ([]byte, error) {
	return nil, riot.ErrMissingAPIKey
}

// newProvider returns the Riot client, or the offline provider when no key is configured.
func newProvider(cfg *config.Config) (orchestrator.Provider, error) {
	client, err := riot.NewClient(cfg.RiotAPIKey)
	if errors.Is(err, riot.ErrMissingAPIKey) {
		log.Warn().Msg("no Riot API key configured, serving stored data only")
		return offlineProvider{}, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}
