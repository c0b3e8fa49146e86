// Package coordinator ensures at most one in-flight operation per key.
//
// Callers asking for a key that is already running wait for the running
// operation and receive its result. Operations run on a context owned by the
// Coordinator rather than the first caller's, so one caller giving up does not
// fail the others; CancelAll cancels everything.
package coordinator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"claimb/internal/logging"
	"claimb/internal/metrics"
)

// Keys for process-wide reference data.
const (
	BaselineKey  = "baseline_data"
	ChampionsKey = "champions"
)

// MatchesKey identifies a load of limit matches for a player.
func MatchesKey(puuid string, limit int) string {
	return fmt.Sprintf("matches_%s_%d", puuid, limit)
}

// SyncKey identifies any match synchronization for a player, bulk or incremental.
func SyncKey(puuid string) string {
	return "sync_" + puuid
}

// SummonerKey identifies an account lookup by handle.
func SummonerKey(gameName, tagLine, region string) string {
	return fmt.Sprintf("summoner_%s_%s_%s", strings.ToLower(gameName), strings.ToLower(tagLine), strings.ToLower(region))
}

// SummonerRefreshKey identifies a profile and rank refresh.
func SummonerRefreshKey(puuid string) string {
	return "summoner_refresh_" + puuid
}

// AnalysisKey identifies post-game analysis generation for one match.
func AnalysisKey(puuid, matchID string) string {
	return fmt.Sprintf("analysis_%s_%s", puuid, matchID)
}

// SummaryKey identifies rolling summary generation over a sample size and
// optional role.
func SummaryKey(puuid string, sampleSize int, role string) string {
	key := "summary_" + puuid + "_" + strconv.Itoa(sampleSize)
	if role != "" {
		key += "_" + strings.ToLower(role)
	}
	return key
}

// Coordinator deduplicates concurrent operations by key.
type Coordinator struct {
	group singleflight.Group
	log   zerolog.Logger

	mu      sync.Mutex
	base    context.Context
	cancel  context.CancelFunc
	running map[string]int
	waiters map[string]int
	bg      sync.WaitGroup
}

// New creates a Coordinator.
func New() *Coordinator {
	c := &Coordinator{
		log:     logging.For("coordinator"),
		running: make(map[string]int),
		waiters: make(map[string]int),
	}
	c.base, c.cancel = context.WithCancel(context.Background())
	return c
}

// Do runs fn under key, or joins the run already in flight. fn receives the
// coordinator's context. ctx only bounds how long this caller waits.
func Do[T any](ctx context.Context, c *Coordinator, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	base := c.base
	c.waiters[key]++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.waiters[key]--; c.waiters[key] <= 0 {
			delete(c.waiters, key)
		}
		c.mu.Unlock()
	}()

	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.Lock()
		c.running[key]++
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			if c.running[key]--; c.running[key] <= 0 {
				delete(c.running, key)
			}
			c.mu.Unlock()
		}()
		return fn(base)
	})

	select {
	case res := <-ch:
		metrics.CoordinatorCalls.WithLabelValues(strconv.FormatBool(res.Shared)).Inc()
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Go runs fn under key in the background. Errors are logged, not returned.
// Background work is cancelled by CancelAll and awaited by Wait.
func (c *Coordinator) Go(key string, fn func(ctx context.Context) error) {
	Spawn(c, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// Spawn is Go for keys that foreground callers also reach through Do[T]; both
// sides must use the same T so joined callers receive a usable value.
func Spawn[T any](c *Coordinator, key string, fn func(ctx context.Context) (T, error)) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if _, err := Do(context.Background(), c, key, fn); err != nil {
			c.log.Debug().Err(err).Str("key", key).Msg("background task failed")
		}
	}()
}

// Wait blocks until every task started with Go has finished.
func (c *Coordinator) Wait() {
	c.bg.Wait()
}

// CancelAll cancels every in-flight operation and forgets their keys so the
// next call starts fresh work. Cancellation is cooperative: an operation past
// its last context check may still complete.
func (c *Coordinator) CancelAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.running)
	c.cancel()
	for key := range c.running {
		c.group.Forget(key)
	}
	c.base, c.cancel = context.WithCancel(context.Background())

	c.log.Info().Int("operations", n).Msg("cancelled pending work")
	return n
}

// Close cancels all work and waits for background tasks.
func (c *Coordinator) Close() {
	c.CancelAll()
	c.Wait()
}

// InFlight returns the number of keys with a running operation.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.running)
}

// Running reports whether key has a running operation.
func (c *Coordinator) Running(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running[key] > 0
}

// Waiters returns how many callers are waiting on key, the runner included.
func (c *Coordinator) Waiters(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiters[key]
}
