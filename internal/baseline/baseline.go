// Package baseline loads the bundled role/archetype statistics dataset.
package baseline

import (
	"context"
	_ "embed"
	"fmt"

	json "github.com/goccy/go-json"

	"claimb/internal/model"
)

//go:embed baselines.json
var bundled []byte

// Store is the persistence the loader needs.
type Store interface {
	LoadBaselines(ctx context.Context, version string, rows []model.Baseline) (bool, error)
	Baselines(ctx context.Context, role string) ([]model.Baseline, error)
	Baseline(ctx context.Context, role, classTag, metric string) (*model.Baseline, error)
}

type dataset struct {
	Version   string `json:"version"`
	Baselines []struct {
		Role    string  `json:"role"`
		Class   string  `json:"class"`
		Metric  string  `json:"metric"`
		Mean    float64 `json:"mean"`
		Median  float64 `json:"median"`
		P40     float64 `json:"p40"`
		P60     float64 `json:"p60"`
		Samples int     `json:"samples"`
	} `json:"baselines"`
}

// Decode parses a dataset document.
func Decode(raw []byte) (string, []model.Baseline, error) {
	var ds dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return "", nil, fmt.Errorf("failed to parse baselines: %w", err)
	}
	if ds.Version == "" {
		return "", nil, fmt.Errorf("baseline dataset has no version")
	}
	rows := make([]model.Baseline, 0, len(ds.Baselines))
	for _, b := range ds.Baselines {
		rows = append(rows, model.Baseline{
			Role: b.Role, ClassTag: b.Class, Metric: b.Metric,
			Mean: b.Mean, Median: b.Median, P40: b.P40, P60: b.P60, SampleSize: b.Samples,
		})
	}
	return ds.Version, rows, nil
}

// Loader puts the bundled dataset into the store.
type Loader struct {
	store Store
	raw   []byte
}

// NewLoader creates a loader for the bundled dataset.
func NewLoader(st Store) *Loader {
	return &Loader{store: st, raw: bundled}
}

// Load writes the dataset unless this version is already stored.
func (l *Loader) Load(ctx context.Context) (bool, error) {
	version, rows, err := Decode(l.raw)
	if err != nil {
		return false, err
	}
	return l.store.LoadBaselines(ctx, version, rows)
}

// ForRole returns the baselines for role, preferring rows for classTag and
// falling back to the first class present for metrics classTag lacks.
func (l *Loader) ForRole(ctx context.Context, role, classTag string) ([]model.Baseline, error) {
	rows, err := l.store.Baselines(ctx, role)
	if err != nil {
		return nil, err
	}

	byMetric := make(map[string]model.Baseline)
	var order []string
	for _, b := range rows {
		cur, seen := byMetric[b.Metric]
		if !seen {
			order = append(order, b.Metric)
			byMetric[b.Metric] = b
			continue
		}
		if cur.ClassTag != classTag && b.ClassTag == classTag {
			byMetric[b.Metric] = b
		}
	}

	out := make([]model.Baseline, 0, len(order))
	for _, m := range order {
		out = append(out, byMetric[m])
	}
	return out, nil
}

// Lookup returns the exact (role, class, metric) row.
func (l *Loader) Lookup(ctx context.Context, role, classTag, metric string) (*model.Baseline, error) {
	return l.store.Baseline(ctx, role, classTag, metric)
}
