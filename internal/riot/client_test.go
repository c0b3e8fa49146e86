package riot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient("RGAPI-test-key-0000",
		WithAPIBaseURL(srv.URL),
		WithRateLimits(0, 0),
		WithRetry(2, time.Millisecond),
	)
	require.NoError(t, err)
	return c
}

func TestNewClient_EmptyKey(t *testing.T) {
	_, err := NewClient("  ")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestAccountByHandle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "RGAPI-test-key-0000", r.Header.Get("X-Riot-Token"))
		assert.Equal(t, "/riot/account/v1/accounts/by-riot-id/Faker/KR1", r.URL.Path)
		w.Write([]byte(`{"puuid":"p-1","gameName":"Faker","tagLine":"KR1"}`))
	})

	acct, err := c.AccountByHandle(context.Background(), "Faker", "KR1", "kr")
	require.NoError(t, err)
	assert.Equal(t, "p-1", acct.PUUID)
	assert.Equal(t, "Faker", acct.GameName)
}

func TestMatchIDs_QueryParams(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	end := time.Unix(1_700_086_400, 0)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "100", q.Get("count"), "count is capped")
		assert.Equal(t, "420", q.Get("queue"))
		assert.Equal(t, "1700000000", q.Get("startTime"))
		assert.Equal(t, "1700086400", q.Get("endTime"))
		w.Write([]byte(`["NA1_2","NA1_1"]`))
	})

	ids, err := c.MatchIDs(context.Background(), "p-1", "na1", HistoryQuery{
		Count: 250, Queue: QueueRankedSolo, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"NA1_2", "NA1_1"}, ids)
}

func TestMatch_ReturnsRawBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lol/match/v5/matches/NA1_9", r.URL.Path)
		w.Write([]byte(`{"metadata":{"matchId":"NA1_9"}}`))
	})

	raw, err := c.Match(context.Background(), "NA1_9", "na1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{"matchId":"NA1_9"}}`, string(raw))
}

func TestTypedStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"bad request", http.StatusBadRequest, ErrBadRequest},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			})

			_, err := c.Match(context.Background(), "NA1_1", "na1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, int32(1), calls.Load(), "permanent errors are not retried")
		})
	}
}

func TestRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`["NA1_1"]`))
	})

	ids, err := c.MatchIDs(context.Background(), "p-1", "na1", HistoryQuery{Count: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"NA1_1"}, ids)
	assert.Equal(t, int32(2), calls.Load())
}

func TestServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Match(context.Background(), "NA1_1", "na1")
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestDecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	_, err := c.SummonerByPUUID(context.Background(), "p-1", "na1")
	assert.ErrorIs(t, err, ErrDecodeFailure)
}

func TestContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RankEntries(ctx, "p-1", "na1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantValid bool
		wantErr   error
	}{
		{"valid key", http.StatusOK, true, nil},
		{"expired key", http.StatusForbidden, false, nil},
		{"unauthorized", http.StatusUnauthorized, false, nil},
		{"server error", http.StatusInternalServerError, false, ErrServer},
		{"rate limited", http.StatusTooManyRequests, false, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, statusPath, r.URL.Path)
				assert.Equal(t, "RGAPI-test-key-0000", r.Header.Get("X-Riot-Token"))
				w.WriteHeader(tt.status)
			})

			valid, err := c.ValidateKey(context.Background(), "na1")
			assert.Equal(t, tt.wantValid, valid)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, int32(1), calls.Load(), "a key check is never retried")
		})
	}
}

func TestValidateKey_UnknownRegion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	valid, err := c.ValidateKey(context.Background(), "atlantis")
	assert.False(t, valid)
	assert.Error(t, err)
}

func TestValidateKey_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	valid, err := c.ValidateKey(ctx, "na1")
	require.Error(t, err)
	assert.False(t, valid)
}

func TestIsSkippable(t *testing.T) {
	assert.True(t, IsSkippable(&StatusError{StatusCode: 404}))
	assert.True(t, IsSkippable(&StatusError{StatusCode: 400}))
	assert.False(t, IsSkippable(&StatusError{StatusCode: 500}))
	assert.False(t, IsSkippable(errors.New("boom")))
}

func TestRouting(t *testing.T) {
	tests := []struct {
		region, match, account string
	}{
		{"na1", "americas", "americas"},
		{"EUW1", "europe", "europe"},
		{"kr", "asia", "asia"},
		{"oc1", "sea", "asia"},
		{"vn2", "sea", "asia"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.match, MatchRoute(tt.region), tt.region)
		assert.Equal(t, tt.account, AccountRoute(tt.region), tt.region)
	}

	assert.NoError(t, ValidateRegion("br1"))
	assert.Error(t, ValidateRegion("moon1"))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, retryAfter("3"))
	assert.Equal(t, defaultRetryAfter, retryAfter(""))
	assert.Equal(t, defaultRetryAfter, retryAfter("soon"))
}
