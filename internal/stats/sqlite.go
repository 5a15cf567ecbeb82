package stats

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultSQLitePath = "flip7_stats.db"

// SQLiteStore writes matches to a local sqlite file. Single writer; WAL.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		dbPath = defaultSQLitePath
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) RecordMatch(ctx context.Context, rec MatchRecord) error {
	if len(rec.Players) == 0 {
		return fmt.Errorf("match record has no players")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	finishedAtMs := rec.FinishedAt.UTC().UnixMilli()
	res, err := tx.ExecContext(ctx, `
INSERT INTO matches (room_code, rounds, winner_name, finished_at_ms)
VALUES (?, ?, ?, ?)
`, rec.RoomCode, rec.Rounds, rec.WinnerName, finishedAtMs)
	if err != nil {
		return err
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, p := range rec.Players {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO match_players (match_id, player_id, name, score, is_ai, won)
VALUES (?, ?, ?, ?, ?, ?)
`, matchID, p.PlayerID, p.Name, p.Score, p.IsAI, p.Won); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) RecentMatches(ctx context.Context, limit int) ([]MatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT m.id, m.room_code, m.rounds, m.winner_name, m.finished_at_ms,
       COUNT(p.id),
       COALESCE(MAX(CASE WHEN p.won THEN p.score END), 0)
FROM matches AS m
LEFT JOIN match_players AS p ON p.match_id = m.id
GROUP BY m.id
ORDER BY m.finished_at_ms DESC, m.id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []MatchSummary{}
	for rows.Next() {
		var sm MatchSummary
		var finishedAtMs int64
		if err := rows.Scan(&sm.ID, &sm.RoomCode, &sm.Rounds, &sm.WinnerName,
			&finishedAtMs, &sm.PlayerCount, &sm.WinnerScore); err != nil {
			return nil, err
		}
		sm.FinishedAt = time.UnixMilli(finishedAtMs).UTC()
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS matches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    room_code TEXT NOT NULL,
    rounds INTEGER NOT NULL,
    winner_name TEXT NOT NULL,
    finished_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_finished ON matches(finished_at_ms DESC)`,
		`
CREATE TABLE IF NOT EXISTS match_players (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    match_id INTEGER NOT NULL,
    player_id TEXT NOT NULL,
    name TEXT NOT NULL,
    score INTEGER NOT NULL,
    is_ai INTEGER NOT NULL DEFAULT 0,
    won INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY(match_id) REFERENCES matches(id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_match_players_match ON match_players(match_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
