package stats

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore writes matches to postgres for multi-instance deployments.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensurePostgresSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) RecordMatch(ctx context.Context, rec MatchRecord) error {
	if len(rec.Players) == 0 {
		return fmt.Errorf("match record has no players")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var matchID int64
	if err := tx.QueryRowContext(ctx, `
INSERT INTO matches (room_code, rounds, winner_name, finished_at)
VALUES ($1, $2, $3, $4)
RETURNING id
`, rec.RoomCode, rec.Rounds, rec.WinnerName, rec.FinishedAt.UTC()).Scan(&matchID); err != nil {
		return err
	}

	for _, p := range rec.Players {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO match_players (match_id, player_id, name, score, is_ai, won)
VALUES ($1, $2, $3, $4, $5, $6)
`, matchID, p.PlayerID, p.Name, p.Score, p.IsAI, p.Won); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) RecentMatches(ctx context.Context, limit int) ([]MatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT m.id, m.room_code, m.rounds, m.winner_name, m.finished_at,
       COUNT(p.id),
       COALESCE(MAX(CASE WHEN p.won THEN p.score END), 0)
FROM matches AS m
LEFT JOIN match_players AS p ON p.match_id = m.id
GROUP BY m.id
ORDER BY m.finished_at DESC, m.id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []MatchSummary{}
	for rows.Next() {
		var sm MatchSummary
		if err := rows.Scan(&sm.ID, &sm.RoomCode, &sm.Rounds, &sm.WinnerName,
			&sm.FinishedAt, &sm.PlayerCount, &sm.WinnerScore); err != nil {
			return nil, err
		}
		sm.FinishedAt = sm.FinishedAt.UTC()
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

func ensurePostgresSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS matches (
    id BIGSERIAL PRIMARY KEY,
    room_code TEXT NOT NULL,
    rounds INTEGER NOT NULL,
    winner_name TEXT NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_finished ON matches(finished_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS match_players (
    id BIGSERIAL PRIMARY KEY,
    match_id BIGINT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
    player_id TEXT NOT NULL,
    name TEXT NOT NULL,
    score INTEGER NOT NULL,
    is_ai BOOLEAN NOT NULL DEFAULT FALSE,
    won BOOLEAN NOT NULL DEFAULT FALSE
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
