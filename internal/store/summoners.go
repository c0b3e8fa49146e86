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

type scanner interface {
	Scan(dest ...any) error
}

const summonerColumns = `puuid, game_name, tag_line, region, summoner_level, profile_icon_id, last_synchronized, updated_at`

func scanSummoner(row scanner) (*model.Summoner, error) {
	var s model.Summoner
	var lastSync, updated int64
	if err := row.Scan(&s.PUUID, &s.GameName, &s.TagLine, &s.Region, &s.SummonerLevel, &s.ProfileIconID,
		&lastSync, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.LastSynchronized = fromMillis(lastSync)
	s.UpdatedAt = fromMillis(updated)
	return &s, nil
}

// GetSummoner loads a summoner and its ranks by puuid.
func (c *conn) GetSummoner(ctx context.Context, puuid string) (*model.Summoner, error) {
	s, err := scanSummoner(c.queryRow(ctx, `SELECT `+summonerColumns+` FROM summoners WHERE puuid = ?`, puuid))
	if err != nil {
		return nil, err
	}
	if s.Ranks, err = c.ranks(ctx, puuid); err != nil {
		return nil, err
	}
	return s, nil
}

// FindSummoner loads a summoner by handle. Name and tag compare case-insensitively.
func (c *conn) FindSummoner(ctx context.Context, gameName, tagLine, region string) (*model.Summoner, error) {
	s, err := scanSummoner(c.queryRow(ctx, `SELECT `+summonerColumns+` FROM summoners
		WHERE LOWER(game_name) = ? AND LOWER(tag_line) = ? AND region = ?`,
		strings.ToLower(gameName), strings.ToLower(tagLine), strings.ToLower(region)))
	if err != nil {
		return nil, err
	}
	if s.Ranks, err = c.ranks(ctx, s.PUUID); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSummoners returns every stored summoner without ranks.
func (c *conn) ListSummoners(ctx context.Context) ([]model.Summoner, error) {
	rows, err := c.query(ctx, `SELECT `+summonerColumns+` FROM summoners ORDER BY game_name, tag_line`)
	if err != nil {
		return nil, fmt.Errorf("failed to list summoners: %w", err)
	}
	defer rows.Close()

	var out []model.Summoner
	for rows.Next() {
		s, err := scanSummoner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (c *conn) ranks(ctx context.Context, puuid string) ([]model.RankEntry, error) {
	rows, err := c.query(ctx, `SELECT queue_type, tier, division, league_points, wins, losses
		FROM summoner_ranks WHERE puuid = ? ORDER BY queue_type`, puuid)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranks: %w", err)
	}
	defer rows.Close()

	var out []model.RankEntry
	for rows.Next() {
		var r model.RankEntry
		if err := rows.Scan(&r.QueueType, &r.Tier, &r.Division, &r.LeaguePoints, &r.Wins, &r.Losses); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertSummoner writes the profile and replaces its ranks. LastSynchronized is
// never lowered by an upsert; use TouchSynchronized to move it.
func (c *conn) UpsertSummoner(ctx context.Context, s *model.Summoner) error {
	return c.atomic(ctx, func(c *conn) error {
		_, err := c.exec(ctx, `
			INSERT INTO summoners (`+summonerColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (puuid) DO UPDATE SET
				game_name = excluded.game_name,
				tag_line = excluded.tag_line,
				region = excluded.region,
				summoner_level = excluded.summoner_level,
				profile_icon_id = excluded.profile_icon_id,
				updated_at = excluded.updated_at`,
			s.PUUID, s.GameName, s.TagLine, strings.ToLower(s.Region), s.SummonerLevel, s.ProfileIconID,
			toMillis(s.LastSynchronized), toMillis(s.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to upsert summoner %s: %w", s.PUUID, err)
		}

		if _, err := c.exec(ctx, `DELETE FROM summoner_ranks WHERE puuid = ?`, s.PUUID); err != nil {
			return fmt.Errorf("failed to clear ranks: %w", err)
		}
		for _, r := range s.Ranks {
			if _, err := c.exec(ctx, `INSERT INTO summoner_ranks
				(puuid, queue_type, tier, division, league_points, wins, losses)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.PUUID, r.QueueType, r.Tier, r.Division, r.LeaguePoints, r.Wins, r.Losses); err != nil {
				return fmt.Errorf("failed to insert rank %s: %w", r.QueueType, err)
			}
		}
		return nil
	})
}

// TouchSynchronized sets the summoner's last-synchronized time.
func (c *conn) TouchSynchronized(ctx context.Context, puuid string, at time.Time) error {
	res, err := c.exec(ctx, `UPDATE summoners SET last_synchronized = ? WHERE puuid = ?`, toMillis(at), puuid)
	if err != nil {
		return fmt.Errorf("failed to update last synchronized: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSummoner removes a summoner with its ranks, matches and cached coaching.
func (c *conn) DeleteSummoner(ctx context.Context, puuid string) error {
	return c.atomic(ctx, func(c *conn) error {
		stmts := []string{
			`DELETE FROM participants WHERE summoner_puuid = ?`,
			`DELETE FROM matches WHERE summoner_puuid = ?`,
			`DELETE FROM summoner_ranks WHERE puuid = ?`,
			`DELETE FROM coaching_cache WHERE player_id = ?`,
			`DELETE FROM summoners WHERE puuid = ?`,
		}
		for _, stmt := range stmts {
			if _, err := c.exec(ctx, stmt, puuid); err != nil {
				return fmt.Errorf("failed to delete summoner %s: %w", puuid, err)
			}
		}
		return nil
	})
}
