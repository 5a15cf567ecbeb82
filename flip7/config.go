package flip7

import "fmt"

const (
	MinPlayers = 2
	MaxPlayers = 18

	DefaultTargetScore = 200

	// Flip7Bonus is added to a round score for banking seven unique numbers.
	Flip7Bonus = 15

	// HandLimit is the unique-number count that triggers the bonus.
	HandLimit = 7
)

// SeatConfig describes one player at game creation. Seat order is turn order.
type SeatConfig struct {
	ID         string
	Name       string
	AI         bool
	Difficulty string
}

// Config creates a game.
type Config struct {
	Seats       []SeatConfig
	TargetScore int
	// Seed fixes deck shuffles and second-chance transfer picks.
	// Zero means time-based.
	Seed int64
}

func (c *Config) normalize() error {
	if len(c.Seats) < MinPlayers {
		return fmt.Errorf("need at least %d players, got %d", MinPlayers, len(c.Seats))
	}
	if len(c.Seats) > MaxPlayers {
		return fmt.Errorf("at most %d players supported, got %d", MaxPlayers, len(c.Seats))
	}
	if c.TargetScore <= 0 {
		c.TargetScore = DefaultTargetScore
	}
	seen := make(map[string]bool, len(c.Seats))
	for i, s := range c.Seats {
		if s.ID == "" {
			return fmt.Errorf("seat %d has empty id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate player id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
