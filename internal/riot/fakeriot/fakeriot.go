// Package fakeriot is an in-memory game-data provider for tests.
package fakeriot

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"claimb/internal/riot"
)

// Match is one remote match: its history metadata plus the raw detail payload.
type Match struct {
	ID       string
	Queue    int
	Creation time.Time
	Payload  []byte
}

// Provider serves accounts, summoners, ranks, histories and match payloads from memory.
type Provider struct {
	mu sync.Mutex

	accounts  map[string]riot.AccountResponse // "name#tag"
	summoners map[string]riot.SummonerResponse
	ranks     map[string][]riot.LeagueEntryResponse
	history   map[string][]Match // by puuid

	matchErrs   map[string]error
	historyErr  error
	rankErr     error
	historyHits []riot.HistoryQuery
	matchHits   map[string]int
}

// New returns an empty Provider.
func New() *Provider {
	return &Provider{
		accounts:  make(map[string]riot.AccountResponse),
		summoners: make(map[string]riot.SummonerResponse),
		ranks:     make(map[string][]riot.LeagueEntryResponse),
		history:   make(map[string][]Match),
		matchErrs: make(map[string]error),
		matchHits: make(map[string]int),
	}
}

// AddAccount registers an account and its summoner profile.
func (p *Provider) AddAccount(puuid, name, tag string, level int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[name+"#"+tag] = riot.AccountResponse{PUUID: puuid, GameName: name, TagLine: tag}
	p.summoners[puuid] = riot.SummonerResponse{PUUID: puuid, SummonerLevel: level, ProfileIconID: 1}
}

// SetRanks replaces the ranked entries for puuid.
func (p *Provider) SetRanks(puuid string, entries ...riot.LeagueEntryResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ranks[puuid] = entries
}

// AddMatches appends matches to puuid's remote history.
func (p *Provider) AddMatches(puuid string, matches ...Match) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history[puuid] = append(p.history[puuid], matches...)
}

// FailMatch makes Match(id) return err.
func (p *Provider) FailMatch(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.matchErrs[id] = err
}

// FailHistory makes every MatchIDs call return err. nil clears it.
func (p *Provider) FailHistory(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.historyErr = err
}

// FailRanks makes RankEntries return err. nil clears it.
func (p *Provider) FailRanks(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rankErr = err
}

// HistoryQueries returns every history query received, in order.
func (p *Provider) HistoryQueries() []riot.HistoryQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]riot.HistoryQuery(nil), p.historyHits...)
}

// MatchFetches returns how many times a match detail was requested.
func (p *Provider) MatchFetches(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matchHits[id]
}

// TotalMatchFetches returns the number of match detail requests.
func (p *Provider) TotalMatchFetches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.matchHits {
		n += c
	}
	return n
}

func (p *Provider) AccountByHandle(ctx context.Context, name, tag, region string) (*riot.AccountResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[name+"#"+tag]
	if !ok {
		return nil, &riot.StatusError{StatusCode: http.StatusNotFound, Endpoint: "account"}
	}
	return &a, nil
}

func (p *Provider) SummonerByPUUID(ctx context.Context, puuid, region string) (*riot.SummonerResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.summoners[puuid]
	if !ok {
		return nil, &riot.StatusError{StatusCode: http.StatusNotFound, Endpoint: "summoner"}
	}
	return &s, nil
}

func (p *Provider) RankEntries(ctx context.Context, puuid, region string) ([]riot.LeagueEntryResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rankErr != nil {
		return nil, p.rankErr
	}
	return append([]riot.LeagueEntryResponse(nil), p.ranks[puuid]...), nil
}

// MatchIDs filters the history by queue and window, newest first, limited by count.
func (p *Provider) MatchIDs(ctx context.Context, puuid, region string, q riot.HistoryQuery) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.historyHits = append(p.historyHits, q)
	if p.historyErr != nil {
		return nil, p.historyErr
	}

	var hits []Match
	for _, m := range p.history[puuid] {
		if q.Queue != 0 && m.Queue != q.Queue {
			continue
		}
		// epoch-second granularity, like the real endpoint
		created := m.Creation.Unix()
		if !q.StartTime.IsZero() && created < q.StartTime.Unix() {
			continue
		}
		if !q.EndTime.IsZero() && created > q.EndTime.Unix() {
			continue
		}
		hits = append(hits, m)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Creation.After(hits[j].Creation) })

	count := q.Count
	if count <= 0 {
		count = 20
	}
	count = min(count, 100)
	if len(hits) > count {
		hits = hits[:count]
	}

	ids := make([]string, len(hits))
	for i, m := range hits {
		ids[i] = m.ID
	}
	return ids, nil
}

func (p *Provider) Match(ctx context.Context, id, region string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.matchHits[id]++
	if err, ok := p.matchErrs[id]; ok {
		return nil, err
	}
	for _, ms := range p.history {
		for _, m := range ms {
			if m.ID == id {
				return m.Payload, nil
			}
		}
	}
	return nil, &riot.StatusError{StatusCode: http.StatusNotFound, Endpoint: fmt.Sprintf("match %s", id)}
}
