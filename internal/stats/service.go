// Package stats persists finished-match results. The default backend is a
// no-op; sqlite and postgres backends are selected through the factory.
package stats

import (
	"context"
	"time"
)

// PlayerLine is one player's final standing.
type PlayerLine struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	IsAI     bool   `json:"isAI"`
	Won      bool   `json:"won"`
}

// MatchRecord is the settlement written once per finished game.
type MatchRecord struct {
	RoomCode   string       `json:"roomCode"`
	Rounds     int          `json:"rounds"`
	WinnerName string       `json:"winnerName"`
	FinishedAt time.Time    `json:"finishedAt"`
	Players    []PlayerLine `json:"players"`
}

// MatchSummary is one row of the recent-matches listing.
type MatchSummary struct {
	ID          int64     `json:"id"`
	RoomCode    string    `json:"roomCode"`
	Rounds      int       `json:"rounds"`
	WinnerName  string    `json:"winnerName"`
	WinnerScore int       `json:"winnerScore"`
	PlayerCount int       `json:"playerCount"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Service is the persistence surface the rest of the server sees.
type Service interface {
	RecordMatch(ctx context.Context, rec MatchRecord) error
	RecentMatches(ctx context.Context, limit int) ([]MatchSummary, error)
	Close() error
}

// Noop discards everything. It keeps the server runnable with no database.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) RecordMatch(context.Context, MatchRecord) error { return nil }

func (*Noop) RecentMatches(context.Context, int) ([]MatchSummary, error) {
	return []MatchSummary{}, nil
}

func (*Noop) Close() error { return nil }
