// Package store is the local persistent store: matches, summoners, reference
// data and the coaching response cache.
//
// One schema runs on three database/sql drivers:
//
//	sqlite  modernc.org/sqlite, a local file (default) or ":memory:"
//	libsql  Turso/libsql over HTTP, DSN "libsql://..."
//	pgx     PostgreSQL through pgx's database/sql adapter
//
// The SQLite-family drivers get a single connection, so every statement and
// transaction runs on one lane and read-modify-write sequences never interleave.
// Inside WithTx only the *Tx may be used.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"claimb/internal/logging"
)

// ErrNotFound is returned when a single-row lookup has no match.
var ErrNotFound = errors.New("store: not found")

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"
	DriverPgx    = "pgx"
)

// Config selects the driver and data source.
type Config struct {
	Driver    string
	DSN       string
	AuthToken string // libsql only
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn holds every query method. Store and Tx embed it over *sql.DB and *sql.Tx.
type conn struct {
	q        querier
	postgres bool
	// atomic runs fn in a transaction, or directly when already inside one.
	atomic func(ctx context.Context, fn func(c *conn) error) error
}

// Store owns the database handle.
type Store struct {
	conn
	db  *sql.DB
	log zerolog.Logger
}

// Tx is a transaction scope handed to WithTx callbacks.
type Tx struct {
	conn
}

// Open connects, applies the schema and returns a ready Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	dsn := cfg.DSN
	if driver == "" {
		driver = DriverSQLite
	}
	if strings.HasPrefix(dsn, "libsql://") {
		driver = DriverLibSQL
	}

	switch driver {
	case DriverSQLite:
		if dsn == "" {
			return nil, fmt.Errorf("store: sqlite dsn is empty")
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create db directory: %w", err)
			}
		}
	case DriverLibSQL:
		if cfg.AuthToken != "" {
			dsn = fmt.Sprintf("%s?authToken=%s", dsn, cfg.AuthToken)
		}
	case DriverPgx:
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver != DriverPgx {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	s := &Store{db: db, log: logging.For("store")}
	s.conn = conn{q: db, postgres: driver == DriverPgx, atomic: s.atomic}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.log.Debug().Str("driver", driver).Msg("store opened")
	return s, nil
}

// OpenMemory opens a private in-memory SQLite store. Used by tests.
func OpenMemory(ctx context.Context) (*Store, error) {
	return Open(ctx, Config{Driver: DriverSQLite, DSN: ":memory:"})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.atomic(ctx, func(c *conn) error {
		return fn(&Tx{conn: *c})
	})
}

func (s *Store) atomic(ctx context.Context, fn func(c *conn) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	c := &conn{q: sqlTx, postgres: s.postgres}
	c.atomic = func(_ context.Context, fn func(c *conn) error) error { return fn(c) }

	if err := fn(c); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1..$n for PostgreSQL.
func (c *conn) rebind(query string) string {
	if !c.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c *conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS summoners (
		puuid TEXT PRIMARY KEY,
		game_name TEXT NOT NULL,
		tag_line TEXT NOT NULL,
		region TEXT NOT NULL,
		summoner_level INTEGER NOT NULL DEFAULT 0,
		profile_icon_id INTEGER NOT NULL DEFAULT 0,
		last_synchronized BIGINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_summoners_handle ON summoners (game_name, tag_line, region)`,
	`CREATE TABLE IF NOT EXISTS summoner_ranks (
		puuid TEXT NOT NULL,
		queue_type TEXT NOT NULL,
		tier TEXT NOT NULL,
		division TEXT NOT NULL,
		league_points INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (puuid, queue_type)
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		summoner_puuid TEXT NOT NULL,
		match_id TEXT NOT NULL,
		game_creation BIGINT NOT NULL,
		duration_seconds INTEGER NOT NULL,
		game_mode TEXT NOT NULL,
		game_type TEXT NOT NULL,
		queue_id INTEGER NOT NULL,
		map_id INTEGER NOT NULL,
		game_version TEXT NOT NULL,
		start_timestamp BIGINT NOT NULL DEFAULT 0,
		end_timestamp BIGINT NOT NULL DEFAULT 0,
		included_in_analysis BOOLEAN NOT NULL,
		PRIMARY KEY (summoner_puuid, match_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_creation ON matches (summoner_puuid, game_creation)`,
	`CREATE TABLE IF NOT EXISTS participants (
		summoner_puuid TEXT NOT NULL,
		match_id TEXT NOT NULL,
		slot INTEGER NOT NULL,
		puuid TEXT NOT NULL,
		champion_id INTEGER NOT NULL,
		champion_name TEXT NOT NULL,
		champion_key TEXT NOT NULL,
		team_id INTEGER NOT NULL,
		lane TEXT NOT NULL,
		role TEXT NOT NULL,
		team_position TEXT NOT NULL,
		kills INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		assists INTEGER NOT NULL,
		gold_earned INTEGER NOT NULL,
		total_minions_killed INTEGER NOT NULL,
		neutral_minions_killed INTEGER NOT NULL,
		damage_to_champions INTEGER NOT NULL,
		vision_score INTEGER NOT NULL,
		wards_placed INTEGER NOT NULL,
		wards_killed INTEGER NOT NULL,
		dragon_kills INTEGER NOT NULL,
		baron_kills INTEGER NOT NULL,
		turret_takedowns INTEGER NOT NULL,
		inhibitor_takedowns INTEGER NOT NULL,
		win BOOLEAN NOT NULL,
		PRIMARY KEY (summoner_puuid, match_id, puuid)
	)`,
	`CREATE TABLE IF NOT EXISTS champions (
		id INTEGER PRIMARY KEY,
		champ_key TEXT NOT NULL,
		name TEXT NOT NULL,
		title TEXT NOT NULL,
		tags TEXT NOT NULL,
		version TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS baselines (
		role TEXT NOT NULL,
		class_tag TEXT NOT NULL,
		metric TEXT NOT NULL,
		mean DOUBLE PRECISION NOT NULL,
		median DOUBLE PRECISION NOT NULL,
		p40 DOUBLE PRECISION NOT NULL,
		p60 DOUBLE PRECISION NOT NULL,
		sample_size INTEGER NOT NULL,
		PRIMARY KEY (role, class_tag, metric)
	)`,
	`CREATE TABLE IF NOT EXISTS data_version (
		name TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS coaching_cache (
		player_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		scope TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coaching_cache_key ON coaching_cache (player_id, kind, scope)`,
	`CREATE INDEX IF NOT EXISTS idx_coaching_cache_expiry ON coaching_cache (expires_at)`,
}
