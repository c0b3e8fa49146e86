package store

import (
	"context"
	"fmt"
	"time"
)

// CacheRow is one stored coaching response.
type CacheRow struct {
	PlayerID  string
	Kind      string
	Scope     string
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CacheRows returns every row stored under the key, newest first.
func (c *conn) CacheRows(ctx context.Context, playerID, kind, scope string) ([]CacheRow, error) {
	rows, err := c.query(ctx, `SELECT payload, created_at, expires_at FROM coaching_cache
		WHERE player_id = ? AND kind = ? AND scope = ?
		ORDER BY created_at DESC`, playerID, kind, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to query coaching cache: %w", err)
	}
	defer rows.Close()

	var out []CacheRow
	for rows.Next() {
		r := CacheRow{PlayerID: playerID, Kind: kind, Scope: scope}
		var payload string
		var created, expires int64
		if err := rows.Scan(&payload, &created, &expires); err != nil {
			return nil, err
		}
		r.Payload = []byte(payload)
		r.CreatedAt = time.UnixMilli(created)
		r.ExpiresAt = time.UnixMilli(expires)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceCacheRow deletes every row for the key and inserts r, atomically.
func (c *conn) ReplaceCacheRow(ctx context.Context, r CacheRow) error {
	return c.atomic(ctx, func(c *conn) error {
		if _, err := c.exec(ctx, `DELETE FROM coaching_cache WHERE player_id = ? AND kind = ? AND scope = ?`,
			r.PlayerID, r.Kind, r.Scope); err != nil {
			return fmt.Errorf("failed to delete coaching entry: %w", err)
		}
		if _, err := c.exec(ctx, `INSERT INTO coaching_cache (player_id, kind, scope, payload, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.PlayerID, r.Kind, r.Scope, string(r.Payload), r.CreatedAt.UnixMilli(), r.ExpiresAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert coaching entry: %w", err)
		}
		return nil
	})
}

// DeleteExpiredCache removes rows whose expiry is before now.
func (c *conn) DeleteExpiredCache(ctx context.Context, now time.Time) (int64, error) {
	res, err := c.exec(ctx, `DELETE FROM coaching_cache WHERE expires_at < ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep coaching cache: %w", err)
	}
	return res.RowsAffected()
}

// ClearCache removes every coaching row.
func (c *conn) ClearCache(ctx context.Context) (int64, error) {
	res, err := c.exec(ctx, `DELETE FROM coaching_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear coaching cache: %w", err)
	}
	return res.RowsAffected()
}
