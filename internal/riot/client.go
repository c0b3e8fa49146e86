package riot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"claimb/internal/logging"
	"claimb/internal/metrics"
)

const (
	// Rate limits for dev key (using conservative values to be safe)
	requestsPerSecond = 15 // Actual: 20
	requestsPer2Min   = 90 // Actual: 100

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryAfter = 10 * time.Second

	maxHistoryCount = 100

	statusPath      = "/lol/status/v4/platform-data"
	keyCheckTimeout = 10 * time.Second
)

// Client is a rate-limited Riot API client.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string // overrides every routing host when set

	short *rate.Limiter
	long  *rate.Limiter

	maxRetries   uint64
	retryInitial time.Duration

	log zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIBaseURL sends every request to url instead of the per-region hosts.
func WithAPIBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimits sets the per-second and per-two-minute budgets. Zero disables a window.
func WithRateLimits(perSecond, per2Min int) Option {
	return func(c *Client) {
		c.short = newLimiter(perSecond, time.Second)
		c.long = newLimiter(per2Min, 2*time.Minute)
	}
}

// WithRetry sets how many times 429/5xx responses are retried and the first backoff interval.
func WithRetry(maxRetries uint64, initial time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryInitial = initial
	}
}

func newLimiter(n int, per time.Duration) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(per/time.Duration(n)), n)
}

// NewClient creates a new Riot API client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		short:        newLimiter(requestsPerSecond, time.Second),
		long:         newLimiter(requestsPer2Min, 2*time.Minute),
		maxRetries:   defaultMaxRetries,
		retryInitial: 500 * time.Millisecond,
		log:          logging.For("riot"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if len(apiKey) > 12 {
		c.log.Debug().Str("key", apiKey[:8]+"..."+apiKey[len(apiKey)-4:]).Msg("riot client ready")
	}
	return c, nil
}

func (c *Client) host(cluster string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + cluster + ".api.riotgames.com"
}

// AccountByHandle resolves a Riot ID (gameName#tagLine) to an account.
func (c *Client) AccountByHandle(ctx context.Context, gameName, tagLine, region string) (*AccountResponse, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.host(AccountRoute(region)), url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.getJSON(ctx, "account", u, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// SummonerByPUUID fetches the platform summoner profile.
func (c *Client) SummonerByPUUID(ctx context.Context, puuid, region string) (*SummonerResponse, error) {
	u := fmt.Sprintf("%s/lol/summoner/v4/summoners/by-puuid/%s",
		c.host(strings.ToLower(region)), url.PathEscape(puuid))

	var summoner SummonerResponse
	if err := c.getJSON(ctx, "summoner", u, &summoner); err != nil {
		return nil, err
	}
	return &summoner, nil
}

// RankEntries fetches ranked standings for a player.
func (c *Client) RankEntries(ctx context.Context, puuid, region string) ([]LeagueEntryResponse, error) {
	u := fmt.Sprintf("%s/lol/league/v4/entries/by-puuid/%s",
		c.host(strings.ToLower(region)), url.PathEscape(puuid))

	var entries []LeagueEntryResponse
	if err := c.getJSON(ctx, "league", u, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MatchIDs fetches match ids for a player, newest first.
func (c *Client) MatchIDs(ctx context.Context, puuid, region string, q HistoryQuery) ([]string, error) {
	params := url.Values{}
	if q.Count > 0 {
		params.Set("count", strconv.Itoa(min(q.Count, maxHistoryCount)))
	}
	if q.Queue > 0 {
		params.Set("queue", strconv.Itoa(q.Queue))
	}
	if !q.StartTime.IsZero() {
		params.Set("startTime", strconv.FormatInt(q.StartTime.Unix(), 10))
	}
	if !q.EndTime.IsZero() {
		params.Set("endTime", strconv.FormatInt(q.EndTime.Unix(), 10))
	}

	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids",
		c.host(MatchRoute(region)), url.PathEscape(puuid))
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var ids []string
	if err := c.getJSON(ctx, "match_ids", u, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Match fetches the raw match-v5 detail document. Parsing is left to the caller.
func (c *Client) Match(ctx context.Context, matchID, region string) ([]byte, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.host(MatchRoute(region)), url.PathEscape(matchID))
	return c.get(ctx, "match", u)
}

// ValidateKey checks the client's key against the platform status endpoint
// with a single request. A rejected key reports (false, nil). Any other
// failure leaves validity unknown and is returned.
func (c *Client) ValidateKey(ctx context.Context, region string) (bool, error) {
	if err := ValidateRegion(region); err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, keyCheckTimeout)
	defer cancel()

	if err := c.wait(ctx); err != nil {
		return false, err
	}
	_, _, err := c.do(ctx, "status", c.host(strings.ToLower(region))+statusPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUnauthorized):
		return false, nil
	default:
		return false, err
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint, u string, result any) error {
	body, err := c.get(ctx, endpoint, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecodeFailure, endpoint, err)
	}
	return nil
}

// get performs a rate-limited GET, retrying 429 and 5xx responses.
func (c *Client) get(ctx context.Context, endpoint, u string) ([]byte, error) {
	var body []byte

	op := func() error {
		if err := c.wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		b, header, err := c.do(ctx, endpoint, u)
		if err == nil {
			body = b
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			return err
		}
		if !retryable(statusErr.StatusCode) {
			return backoff.Permanent(statusErr)
		}

		if statusErr.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(header.Get("Retry-After"))
			c.log.Warn().Str("endpoint", endpoint).Dur("wait", wait).Msg("rate limited")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
		}
		return statusErr
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxElapsedTime = 0

	notify := func(err error, d time.Duration) {
		c.log.Debug().Err(err).Str("endpoint", endpoint).Dur("backoff", d).Msg("retrying")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx), notify)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do sends one GET. Non-200 responses are returned as *StatusError together
// with the response headers.
func (c *Client) do(ctx context.Context, endpoint, u string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, nil, err
	}
	defer resp.Body.Close()
	metrics.ProviderRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.Header, &StatusError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, err
	}
	return body, resp.Header, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.short.Wait(ctx); err != nil {
		return err
	}
	return c.long.Wait(ctx)
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
