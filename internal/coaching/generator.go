package coaching

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/rs/zerolog"

	"claimb/internal/logging"
	"claimb/internal/metrics"
	"claimb/internal/model"
)

// ErrUnavailable is returned while the generator's circuit is open.
var ErrUnavailable = errors.New("coaching generator unavailable")

// Generator produces coaching text. Calls are slow, fallible and billed.
type Generator interface {
	PostGameAnalysis(ctx context.Context, match *model.Match, player *model.Summoner, kpi KPIContext) (*Analysis, error)
	RollingSummary(ctx context.Context, matches []model.Match, player *model.Summoner, role string, kpi KPIContext) (*Summary, error)
}

const breakerName = "coaching-generator"

// HTTPGenerator calls a coaching proxy over HTTP behind a circuit breaker.
type HTTPGenerator struct {
	baseURL    string
	appToken   string
	deviceID   string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
	log        zerolog.Logger
}

// GeneratorOption configures an HTTPGenerator.
type GeneratorOption func(*HTTPGenerator)

// WithGeneratorHTTPClient replaces the default client.
func WithGeneratorHTTPClient(hc *http.Client) GeneratorOption {
	return func(g *HTTPGenerator) { g.httpClient = hc }
}

// NewHTTPGenerator creates a generator posting to baseURL.
// The circuit opens after 5 consecutive failures and lets a trial request through after a minute.
func NewHTTPGenerator(baseURL, appToken, deviceID string, opts ...GeneratorOption) *HTTPGenerator {
	g := &HTTPGenerator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appToken:   appToken,
		deviceID:   deviceID,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		log:        logging.For("coaching"),
	}
	for _, opt := range opts {
		opt(g)
	}

	metrics.BreakerState.WithLabelValues(breakerName).Set(0)
	g.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about the backend
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return g
}

type postGameRequest struct {
	Match  *model.Match    `json:"match"`
	Player *model.Summoner `json:"player"`
	KPI    KPIContext      `json:"kpi"`
}

type summaryRequest struct {
	Matches []model.Match   `json:"matches"`
	Player  *model.Summoner `json:"player"`
	Role    string          `json:"role"`
	KPI     KPIContext      `json:"kpi"`
}

// PostGameAnalysis asks the backend for a single-match analysis.
func (g *HTTPGenerator) PostGameAnalysis(ctx context.Context, match *model.Match, player *model.Summoner, kpi KPIContext) (*Analysis, error) {
	var out Analysis
	if err := g.post(ctx, "/v1/coaching/post-game", postGameRequest{Match: match, Player: player, KPI: kpi}, &out); err != nil {
		return nil, err
	}
	if out.MatchID == "" {
		out.MatchID = match.MatchID
	}
	if out.GeneratedAt.IsZero() {
		out.GeneratedAt = time.Now()
	}
	return &out, nil
}

// RollingSummary asks the backend for a summary over matches.
func (g *HTTPGenerator) RollingSummary(ctx context.Context, matches []model.Match, player *model.Summoner, role string, kpi KPIContext) (*Summary, error) {
	var out Summary
	if err := g.post(ctx, "/v1/coaching/summary", summaryRequest{Matches: matches, Player: player, Role: role, KPI: kpi}, &out); err != nil {
		return nil, err
	}
	if out.SampleSize == 0 {
		out.SampleSize = len(matches)
	}
	if out.Role == "" {
		out.Role = role
	}
	if out.GeneratedAt.IsZero() {
		out.GeneratedAt = time.Now()
	}
	return &out, nil
}

func (g *HTTPGenerator) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := g.cb.Execute(func() ([]byte, error) {
		return g.do(ctx, path, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("failed to decode coaching response: %w", err)
	}
	return nil
}

func (g *HTTPGenerator) do(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Claimb-App-Token", g.appToken)
	req.Header.Set("X-Claimb-Device", g.deviceID)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coaching request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coaching backend returned status %d", resp.StatusCode)
	}
	return b, nil
}
