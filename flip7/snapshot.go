package flip7

import (
	"sort"

	"flip7-lite/card"
)

// PlayerSnapshot is one seat's public state. Flip 7 is open information, so
// every client sees every hand; only the deck order stays hidden.
type PlayerSnapshot struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	IsAI                bool        `json:"isAI"`
	Difficulty          string      `json:"difficulty,omitempty"`
	Score               int         `json:"score"`
	RoundScore          int         `json:"roundScore"`
	NumberCards         []card.Card `json:"numberCards"`
	ModifierCards       []card.Card `json:"modifierCards"`
	ActionCards         []card.Card `json:"actionCards"`
	IsActive            bool        `json:"isActive"`
	HasBusted           bool        `json:"hasBusted"`
	HasStayed           bool        `json:"hasStayed"`
	Flip7               bool        `json:"flip7"`
	FrozenBy            string      `json:"frozenBy,omitempty"`
	UsedSecondChanceIDs []string    `json:"usedSecondChanceCardIds,omitempty"`
}

// Snapshot is a full value copy of the observable game state.
type Snapshot struct {
	Status             Status           `json:"gameStatus"`
	Round              int              `json:"round"`
	TargetScore        int              `json:"targetScore"`
	DealerIndex        int              `json:"dealerIndex"`
	CurrentPlayerIndex int              `json:"currentPlayerIndex"`
	CurrentPlayerID    string           `json:"currentPlayerId,omitempty"`
	Players            []PlayerSnapshot `json:"players"`
	DeckSize           int              `json:"deckSize"`
	DiscardSize        int              `json:"discardSize"`
	PendingActionCard  *PendingAction   `json:"pendingActionCard,omitempty"`
	FlipThreeRemaining int              `json:"pendingFlipThreeRemaining,omitempty"`
	FlipThreeTargetID  string           `json:"flipThreeTargetId,omitempty"`
	RoundHistory       []RoundRecord    `json:"roundHistory,omitempty"`
	LargestRound       *BestRound       `json:"largestRound,omitempty"`
	WinnerID           string           `json:"winnerId,omitempty"`
}

// Snapshot returns a copy safe to hand to other goroutines.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:             g.status,
		Round:              g.round,
		TargetScore:        g.targetScore,
		DealerIndex:        g.dealerIdx,
		CurrentPlayerIndex: g.currentIdx,
		DeckSize:           g.deck.DrawSize(),
		DiscardSize:        g.deck.DiscardSize(),
		WinnerID:           g.winnerID,
	}
	if g.currentIdx >= 0 {
		snap.CurrentPlayerID = g.players[g.currentIdx].ID
	}
	for _, p := range g.players {
		snap.Players = append(snap.Players, snapshotPlayer(p))
	}
	if g.pending != nil {
		pending := *g.pending
		snap.PendingActionCard = &pending
	}
	if len(g.flipThree) > 0 {
		top := g.flipThree[len(g.flipThree)-1]
		snap.FlipThreeRemaining = top.remaining
		snap.FlipThreeTargetID = g.players[top.targetIdx].ID
	}
	snap.RoundHistory = append([]RoundRecord(nil), g.history...)
	if g.best != nil {
		best := *g.best
		snap.LargestRound = &best
	}
	return snap
}

func snapshotPlayer(p *Player) PlayerSnapshot {
	ps := PlayerSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		IsAI:          p.AI,
		Difficulty:    p.Difficulty,
		Score:         p.Score,
		NumberCards:   append([]card.Card(nil), p.NumberCards...),
		ModifierCards: append([]card.Card(nil), p.ModifierCards...),
		ActionCards:   append([]card.Card(nil), p.ActionCards...),
		IsActive:      p.Active,
		HasBusted:     p.Busted,
		HasStayed:     p.Stayed,
		Flip7:         p.Flip7,
		FrozenBy:      p.FrozenBy,
	}
	if p.Active {
		ps.RoundScore = p.handScore()
	} else {
		ps.RoundScore = p.RoundScore
	}
	for id := range p.UsedSecondChance {
		ps.UsedSecondChanceIDs = append(ps.UsedSecondChanceIDs, id)
	}
	sort.Strings(ps.UsedSecondChanceIDs)
	return ps
}
