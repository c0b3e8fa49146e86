package relevance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func relevant() Candidate {
	return Candidate{
		Mode:            ModeClassic,
		Type:            TypeMatchedGame,
		Queue:           420,
		Map:             11,
		DurationSeconds: 1800,
		CreationMs:      now.Add(-48 * time.Hour).UnixMilli(),
	}
}

func TestIsRelevant(t *testing.T) {
	f := New()

	tests := []struct {
		name   string
		mutate func(c *Candidate)
		want   string
	}{
		{"relevant ranked solo", func(c *Candidate) {}, ""},
		{"ranked flex", func(c *Candidate) { c.Queue = 440 }, ""},
		{"normal draft", func(c *Candidate) { c.Queue = 400 }, ""},
		{"exactly ten minutes", func(c *Candidate) { c.DurationSeconds = 600 }, ""},
		{"remake", func(c *Candidate) { c.DurationSeconds = 599 }, "duration"},
		{"zero duration", func(c *Candidate) { c.DurationSeconds = 0 }, "duration"},
		{"aram map", func(c *Candidate) { c.Map = 12 }, "map"},
		{"aram mode", func(c *Candidate) { c.Mode = "ARAM" }, "mode"},
		{"custom game", func(c *Candidate) { c.Type = "CUSTOM_GAME" }, "type"},
		{"clash queue", func(c *Candidate) { c.Queue = 700 }, "queue"},
		{"older than a year", func(c *Candidate) { c.CreationMs = now.Add(-366 * 24 * time.Hour).UnixMilli() }, "age"},
		{"missing creation", func(c *Candidate) { c.CreationMs = 0 }, "age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := relevant()
			tt.mutate(&c)
			assert.Equal(t, tt.want, f.Reason(c, now))
			assert.Equal(t, tt.want == "", f.IsRelevant(c, now))
		})
	}
}

func TestShortGameRejectedRegardlessOfOtherFields(t *testing.T) {
	f := New()
	for _, q := range []int{420, 440, 400} {
		for secs := 0; secs < 600; secs += 37 {
			c := relevant()
			c.Queue = q
			c.DurationSeconds = secs
			assert.False(t, f.IsRelevant(c, now), "queue %d duration %d", q, secs)
		}
	}
}

func TestOptions(t *testing.T) {
	f := New(WithQueues(420), WithMinDuration(15*time.Minute), WithMaxAge(30*24*time.Hour))

	c := relevant()
	c.Queue = 440
	assert.Equal(t, "queue", f.Reason(c, now))

	c = relevant()
	c.DurationSeconds = 800
	assert.Equal(t, "duration", f.Reason(c, now))

	c = relevant()
	c.CreationMs = now.Add(-31 * 24 * time.Hour).UnixMilli()
	assert.Equal(t, "age", f.Reason(c, now))
}

func TestQueuesPriorityOrder(t *testing.T) {
	assert.Equal(t, []int{420, 440, 400}, New().Queues())
	assert.Equal(t, []int{420, 400, 450, 490}, New(WithQueues(490, 400, 450, 420)).Queues())
}
