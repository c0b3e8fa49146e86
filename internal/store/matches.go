package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"claimb/internal/model"
)

// MatchIDs returns the ids of every match stored for puuid.
func (c *conn) MatchIDs(ctx context.Context, puuid string) ([]string, error) {
	rows, err := c.query(ctx, `SELECT match_id FROM matches WHERE summoner_puuid = ?`, puuid)
	if err != nil {
		return nil, fmt.Errorf("failed to query match ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HasMatch reports whether the match is stored for puuid.
func (c *conn) HasMatch(ctx context.Context, puuid, matchID string) (bool, error) {
	var n int
	err := c.queryRow(ctx, `SELECT COUNT(*) FROM matches WHERE summoner_puuid = ? AND match_id = ?`,
		puuid, matchID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check match: %w", err)
	}
	return n > 0, nil
}

// CountMatches returns the number of matches stored for puuid.
func (c *conn) CountMatches(ctx context.Context, puuid string) (int, error) {
	var n int
	if err := c.queryRow(ctx, `SELECT COUNT(*) FROM matches WHERE summoner_puuid = ?`, puuid).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}

// InsertMatch stores m and its participants. It returns false without writing
// anything when the match is already stored for the same summoner.
func (c *conn) InsertMatch(ctx context.Context, m *model.Match) (bool, error) {
	inserted := false
	err := c.atomic(ctx, func(c *conn) error {
		res, err := c.exec(ctx, `
			INSERT INTO matches (summoner_puuid, match_id, game_creation, duration_seconds, game_mode,
				game_type, queue_id, map_id, game_version, start_timestamp, end_timestamp, included_in_analysis)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (summoner_puuid, match_id) DO NOTHING`,
			m.SummonerPUUID, m.MatchID, m.GameCreation, m.DurationSeconds, m.GameMode,
			m.GameType, m.QueueID, m.MapID, m.GameVersion, m.StartTimestamp, m.EndTimestamp, m.IncludedInAnalysis)
		if err != nil {
			return fmt.Errorf("failed to insert match %s: %w", m.MatchID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		for i := range m.Participants {
			p := &m.Participants[i]
			_, err := c.exec(ctx, `
				INSERT INTO participants (summoner_puuid, match_id, slot, puuid, champion_id, champion_name,
					champion_key, team_id, lane, role, team_position, kills, deaths, assists, gold_earned,
					total_minions_killed, neutral_minions_killed, damage_to_champions, vision_score,
					wards_placed, wards_killed, dragon_kills, baron_kills, turret_takedowns,
					inhibitor_takedowns, win)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (summoner_puuid, match_id, puuid) DO NOTHING`,
				m.SummonerPUUID, m.MatchID, i, p.PUUID, p.ChampionID, p.ChampionName,
				p.ChampionKey, p.TeamID, p.Lane, p.Role, p.TeamPosition, p.Kills, p.Deaths, p.Assists, p.GoldEarned,
				p.TotalMinionsKilled, p.NeutralMinionsKilled, p.TotalDamageDealtToChampions, p.VisionScore,
				p.WardsPlaced, p.WardsKilled, p.DragonKills, p.BaronKills, p.TurretTakedowns,
				p.InhibitorTakedowns, p.Win)
			if err != nil {
				return fmt.Errorf("failed to insert participant %s/%s: %w", m.MatchID, p.PUUID, err)
			}
		}
		inserted = true
		return nil
	})
	return inserted, err
}

// ListMatches returns up to limit matches for puuid, newest first, with
// participants in payload order. limit <= 0 returns all.
func (c *conn) ListMatches(ctx context.Context, puuid string, limit int) ([]model.Match, error) {
	q := `SELECT match_id, game_creation, duration_seconds, game_mode, game_type, queue_id, map_id,
			game_version, start_timestamp, end_timestamp, included_in_analysis
		FROM matches WHERE summoner_puuid = ?
		ORDER BY game_creation DESC, match_id DESC`
	args := []any{puuid}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := c.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}

	var matches []model.Match
	index := make(map[string]int)
	for rows.Next() {
		m := model.Match{SummonerPUUID: puuid}
		if err := rows.Scan(&m.MatchID, &m.GameCreation, &m.DurationSeconds, &m.GameMode, &m.GameType,
			&m.QueueID, &m.MapID, &m.GameVersion, &m.StartTimestamp, &m.EndTimestamp, &m.IncludedInAnalysis); err != nil {
			rows.Close()
			return nil, err
		}
		index[m.MatchID] = len(matches)
		matches = append(matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	if err := c.attachParticipants(ctx, puuid, matches, index); err != nil {
		return nil, err
	}
	return matches, nil
}

func (c *conn) attachParticipants(ctx context.Context, puuid string, matches []model.Match, index map[string]int) error {
	rows, err := c.query(ctx, `
		SELECT match_id, puuid, champion_id, champion_name, champion_key, team_id, lane, role,
			team_position, kills, deaths, assists, gold_earned, total_minions_killed,
			neutral_minions_killed, damage_to_champions, vision_score, wards_placed, wards_killed,
			dragon_kills, baron_kills, turret_takedowns, inhibitor_takedowns, win
		FROM participants WHERE summoner_puuid = ?
		ORDER BY match_id, slot`, puuid)
	if err != nil {
		return fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.MatchID, &p.PUUID, &p.ChampionID, &p.ChampionName, &p.ChampionKey, &p.TeamID,
			&p.Lane, &p.Role, &p.TeamPosition, &p.Kills, &p.Deaths, &p.Assists, &p.GoldEarned,
			&p.TotalMinionsKilled, &p.NeutralMinionsKilled, &p.TotalDamageDealtToChampions, &p.VisionScore,
			&p.WardsPlaced, &p.WardsKilled, &p.DragonKills, &p.BaronKills, &p.TurretTakedowns,
			&p.InhibitorTakedowns, &p.Win); err != nil {
			return err
		}
		if i, ok := index[p.MatchID]; ok {
			matches[i].Participants = append(matches[i].Participants, p)
		}
	}
	return rows.Err()
}

// EvictOldest deletes matches beyond the newest keep for puuid and returns how many were removed.
func (c *conn) EvictOldest(ctx context.Context, puuid string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	evicted := 0
	err := c.atomic(ctx, func(c *conn) error {
		rows, err := c.query(ctx, `
			SELECT match_id FROM matches WHERE summoner_puuid = ?
			ORDER BY game_creation DESC, match_id DESC`, puuid)
		if err != nil {
			return fmt.Errorf("failed to query matches for eviction: %w", err)
		}
		var stale []string
		n := 0
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			if n >= keep {
				stale = append(stale, id)
			}
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range stale {
			if err := c.deleteMatch(ctx, puuid, id); err != nil {
				return err
			}
		}
		evicted = len(stale)
		return nil
	})
	return evicted, err
}

func (c *conn) deleteMatch(ctx context.Context, puuid, matchID string) error {
	if _, err := c.exec(ctx, `DELETE FROM participants WHERE summoner_puuid = ? AND match_id = ?`, puuid, matchID); err != nil {
		return fmt.Errorf("failed to delete participants of %s: %w", matchID, err)
	}
	if _, err := c.exec(ctx, `DELETE FROM matches WHERE summoner_puuid = ? AND match_id = ?`, puuid, matchID); err != nil {
		return fmt.Errorf("failed to delete match %s: %w", matchID, err)
	}
	return nil
}

// DeleteAllMatches removes every stored match and participant.
func (c *conn) DeleteAllMatches(ctx context.Context) (int64, error) {
	var n int64
	err := c.atomic(ctx, func(c *conn) error {
		if _, err := c.exec(ctx, `DELETE FROM participants`); err != nil {
			return fmt.Errorf("failed to clear participants: %w", err)
		}
		res, err := c.exec(ctx, `DELETE FROM matches`)
		if err != nil {
			return fmt.Errorf("failed to clear matches: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

// OldestMatch returns the creation time of the oldest stored match for puuid,
// or the zero time when none are stored.
func (c *conn) OldestMatch(ctx context.Context, puuid string) (time.Time, error) {
	var oldest sql.NullInt64
	if err := c.queryRow(ctx, `SELECT MIN(game_creation) FROM matches WHERE summoner_puuid = ?`, puuid).Scan(&oldest); err != nil {
		return time.Time{}, fmt.Errorf("failed to query oldest match: %w", err)
	}
	if !oldest.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(oldest.Int64), nil
}
