package main

import (
	"errors"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"claimb/internal/model"
	"claimb/internal/orchestrator"
	"claimb/internal/riot"
	"claimb/internal/summoner"
)

// api exposes the engine's consumer contract over HTTP for UI surfaces.
type api struct {
	engine *orchestrator.Engine
	region string
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/summoners", a.handleSummoners)
	mux.HandleFunc("GET /api/summoner", a.handleSummoner)
	mux.HandleFunc("GET /api/matches", a.handleMatches)
	mux.HandleFunc("POST /api/matches/refresh", a.handleRefresh)
	mux.HandleFunc("GET /api/analysis", a.handleCachedAnalysis)
	mux.HandleFunc("POST /api/cache/clear", a.handleClear)
	mux.HandleFunc("POST /api/cancel", a.handleCancel)
}

// summoner resolves the riotId and region query parameters.
func (a *api) summoner(w http.ResponseWriter, r *http.Request) (*model.Summoner, bool) {
	name, tag, err := summoner.ParseHandle(r.URL.Query().Get("riotId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	region := r.URL.Query().Get("region")
	if region == "" {
		region = a.region
	}

	sum, err := a.engine.ResolveSummoner(r.Context(), name, tag, region)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sum, true
}

func (a *api) handleSummoner(w http.ResponseWriter, r *http.Request) {
	if sum, ok := a.summoner(w, r); ok {
		writeJSON(w, sum)
	}
}

func (a *api) handleSummoners(w http.ResponseWriter, r *http.Request) {
	list, err := a.engine.Summoners(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []model.Summoner{}
	}
	writeJSON(w, list)
}

func (a *api) handleMatches(w http.ResponseWriter, r *http.Request) {
	sum, ok := a.summoner(w, r)
	if !ok {
		return
	}
	matches, err := a.engine.LoadMatches(r.Context(), sum, queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, matches)
}

func (a *api) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sum, ok := a.summoner(w, r)
	if !ok {
		return
	}
	matches, err := a.engine.RefreshMatches(r.Context(), sum, queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, matches)
}

func (a *api) handleCachedAnalysis(w http.ResponseWriter, r *http.Request) {
	puuid, matchID := r.URL.Query().Get("puuid"), r.URL.Query().Get("matchId")
	if puuid == "" || matchID == "" {
		http.Error(w, "puuid and matchId query params required", http.StatusBadRequest)
		return
	}
	analysis, ok, err := a.engine.GetCachedAnalysis(r.Context(), puuid, matchID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "no cached analysis", http.StatusNotFound)
		return
	}
	writeJSON(w, analysis)
}

func (a *api) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.ClearAllCachedData(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleCancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]int{"cancelled": a.engine.CancelAllPendingWork()})
}

func queryInt(r *http.Request, name string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, summoner.ErrInvalidHandle), errors.Is(err, riot.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, riot.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, riot.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, riot.ErrServer):
		status = http.StatusBadGateway
	case errors.Is(err, riot.ErrMissingAPIKey):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}
