package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"claimb/internal/model"
)

// Data version names.
const (
	VersionChampions = "champions"
	VersionBaselines = "baselines"
)

// DataVersion returns the stored version for a reference dataset, "" if never loaded.
func (c *conn) DataVersion(ctx context.Context, name string) (string, error) {
	var v string
	err := c.queryRow(ctx, `SELECT version FROM data_version WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read data version: %w", err)
	}
	return v, nil
}

func (c *conn) setDataVersion(ctx context.Context, name, version string) error {
	_, err := c.exec(ctx, `INSERT INTO data_version (name, version, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at`,
		name, version, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set data version: %w", err)
	}
	return nil
}

// ReplaceChampions swaps the champion table for a new game version.
func (c *conn) ReplaceChampions(ctx context.Context, version string, champs []model.Champion) error {
	return c.atomic(ctx, func(c *conn) error {
		if _, err := c.exec(ctx, `DELETE FROM champions`); err != nil {
			return fmt.Errorf("failed to clear champions: %w", err)
		}
		for _, ch := range champs {
			if _, err := c.exec(ctx, `INSERT INTO champions (id, champ_key, name, title, tags, version)
				VALUES (?, ?, ?, ?, ?, ?)`,
				ch.ID, ch.Key, ch.Name, ch.Title, strings.Join(ch.Tags, ","), version); err != nil {
				return fmt.Errorf("failed to insert champion %s: %w", ch.Key, err)
			}
		}
		return c.setDataVersion(ctx, VersionChampions, version)
	})
}

// Champions returns every stored champion ordered by id.
func (c *conn) Champions(ctx context.Context) ([]model.Champion, error) {
	rows, err := c.query(ctx, `SELECT id, champ_key, name, title, tags, version FROM champions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query champions: %w", err)
	}
	defer rows.Close()

	var out []model.Champion
	for rows.Next() {
		var ch model.Champion
		var tags string
		if err := rows.Scan(&ch.ID, &ch.Key, &ch.Name, &ch.Title, &tags, &ch.Version); err != nil {
			return nil, err
		}
		if tags != "" {
			ch.Tags = strings.Split(tags, ",")
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// LoadBaselines inserts the dataset once. It is a no-op when a dataset with the
// same version is already stored and returns whether rows were written.
func (c *conn) LoadBaselines(ctx context.Context, version string, rows []model.Baseline) (bool, error) {
	loaded := false
	err := c.atomic(ctx, func(c *conn) error {
		current, err := c.DataVersion(ctx, VersionBaselines)
		if err != nil {
			return err
		}
		if current == version {
			return nil
		}

		if _, err := c.exec(ctx, `DELETE FROM baselines`); err != nil {
			return fmt.Errorf("failed to clear baselines: %w", err)
		}
		for _, b := range rows {
			if _, err := c.exec(ctx, `INSERT INTO baselines
				(role, class_tag, metric, mean, median, p40, p60, sample_size)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (role, class_tag, metric) DO NOTHING`,
				b.Role, b.ClassTag, b.Metric, b.Mean, b.Median, b.P40, b.P60, b.SampleSize); err != nil {
				return fmt.Errorf("failed to insert baseline %s/%s/%s: %w", b.Role, b.ClassTag, b.Metric, err)
			}
		}
		loaded = true
		return c.setDataVersion(ctx, VersionBaselines, version)
	})
	return loaded, err
}

// Baselines returns every baseline row for role, across classes.
func (c *conn) Baselines(ctx context.Context, role string) ([]model.Baseline, error) {
	rows, err := c.query(ctx, `SELECT role, class_tag, metric, mean, median, p40, p60, sample_size
		FROM baselines WHERE role = ? ORDER BY class_tag, metric`, role)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	var out []model.Baseline
	for rows.Next() {
		var b model.Baseline
		if err := rows.Scan(&b.Role, &b.ClassTag, &b.Metric, &b.Mean, &b.Median, &b.P40, &b.P60, &b.SampleSize); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Baseline returns one row by its (role, class, metric) identity.
func (c *conn) Baseline(ctx context.Context, role, classTag, metric string) (*model.Baseline, error) {
	var b model.Baseline
	err := c.queryRow(ctx, `SELECT role, class_tag, metric, mean, median, p40, p60, sample_size
		FROM baselines WHERE role = ? AND class_tag = ? AND metric = ?`, role, classTag, metric).
		Scan(&b.Role, &b.ClassTag, &b.Metric, &b.Mean, &b.Median, &b.P40, &b.P60, &b.SampleSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query baseline: %w", err)
	}
	return &b, nil
}
