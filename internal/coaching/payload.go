package coaching

import (
	"time"

	"claimb/internal/model"
)

// Analysis is a post-game analysis for one match.
type Analysis struct {
	MatchID      string    `json:"matchId"`
	Summary      string    `json:"summary"`
	KeyTakeaways []string  `json:"keyTakeaways"`
	Improvements []string  `json:"improvements"`
	Rating       int       `json:"rating"` // 1-10
	GeneratedAt  time.Time `json:"generatedAt"`
}

// Summary is a rolling performance summary over recent games.
type Summary struct {
	Headline    string    `json:"headline"`
	Strengths   []string  `json:"strengths"`
	FocusAreas  []string  `json:"focusAreas"`
	Role        string    `json:"role"`
	SampleSize  int       `json:"sampleSize"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// KPIContext carries the player's computed metrics and the baselines they are
// graded against. Metric values are computed upstream.
type KPIContext struct {
	Role      string             `json:"role"`
	ClassTag  string             `json:"classTag,omitempty"`
	Metrics   map[string]float64 `json:"metrics"`
	Baselines []model.Baseline   `json:"baselines"`
}
