// Package relevance decides whether a fetched match is eligible for storage.
//
// Only classic matched games on Summoner's Rift in an allow-listed queue, long
// enough to not be a remake and recent enough to reflect current play, qualify.
// When the history request already constrains the queue server-side the queue
// check is redundant but harmless.
package relevance

import (
	"slices"
	"time"

	"claimb/internal/riot"
)

const (
	ModeClassic      = "CLASSIC"
	TypeMatchedGame  = "MATCHED_GAME"
	DefaultMinLength = 10 * time.Minute
	DefaultMaxAge    = 365 * 24 * time.Hour
)

// DefaultQueues are ranked-solo, ranked-flex and normal-draft.
var DefaultQueues = []int{riot.QueueRankedSolo, riot.QueueRankedFlex, riot.QueueNormalDraft}

// Candidate is the subset of a match needed to judge relevance.
type Candidate struct {
	Mode            string
	Type            string
	Queue           int
	Map             int
	DurationSeconds int
	CreationMs      int64
}

// Filter is an immutable relevance predicate.
type Filter struct {
	queues    map[int]struct{}
	minLength time.Duration
	maxAge    time.Duration
}

// Option configures a Filter.
type Option func(*Filter)

// WithQueues replaces the queue allow-list.
func WithQueues(queues ...int) Option {
	return func(f *Filter) {
		f.queues = make(map[int]struct{}, len(queues))
		for _, q := range queues {
			f.queues[q] = struct{}{}
		}
	}
}

// WithMinDuration sets the minimum game length.
func WithMinDuration(d time.Duration) Option {
	return func(f *Filter) { f.minLength = d }
}

// WithMaxAge sets how old a game may be.
func WithMaxAge(d time.Duration) Option {
	return func(f *Filter) { f.maxAge = d }
}

// New builds a Filter with the default rules, adjusted by opts.
func New(opts ...Option) *Filter {
	f := &Filter{minLength: DefaultMinLength, maxAge: DefaultMaxAge}
	WithQueues(DefaultQueues...)(f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Queues returns the allow-listed queues in priority order: ranked-solo,
// ranked-flex, normal-draft, then any others ascending.
func (f *Filter) Queues() []int {
	out := make([]int, 0, len(f.queues))
	for _, q := range DefaultQueues {
		if f.Allows(q) {
			out = append(out, q)
		}
	}
	extra := make([]int, 0)
	for q := range f.queues {
		if q != riot.QueueRankedSolo && q != riot.QueueRankedFlex && q != riot.QueueNormalDraft {
			extra = append(extra, q)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// Allows reports whether queue is allow-listed.
func (f *Filter) Allows(queue int) bool {
	_, ok := f.queues[queue]
	return ok
}

// IsRelevant reports whether c qualifies for storage as of now.
func (f *Filter) IsRelevant(c Candidate, now time.Time) bool {
	return f.Reason(c, now) == ""
}

// Reason returns the first rule c fails, or "" when it is relevant.
func (f *Filter) Reason(c Candidate, now time.Time) string {
	switch {
	case c.Map != riot.MapSummonersRift:
		return "map"
	case c.Mode != ModeClassic:
		return "mode"
	case c.Type != TypeMatchedGame:
		return "type"
	case !f.Allows(c.Queue):
		return "queue"
	case time.Duration(c.DurationSeconds)*time.Second < f.minLength:
		return "duration"
	case c.CreationMs <= 0 || time.UnixMilli(c.CreationMs).Before(now.Add(-f.maxAge)):
		return "age"
	}
	return ""
}
