package flip7

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"flip7-lite/card"
)

// FlipThreeFrame is the exported form of one forced-draw sequence.
type FlipThreeFrame struct {
	TargetID  string `json:"targetId"`
	Remaining int    `json:"remaining"`
	ReturnID  string `json:"returnId"`
}

// PlayerState is the full per-seat state for export, superset of the
// snapshot form by including the AI flag wiring needed to rebuild seats.
type PlayerState struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	AI               bool        `json:"ai"`
	Difficulty       string      `json:"difficulty,omitempty"`
	Score            int         `json:"score"`
	RoundScore       int         `json:"roundScore"`
	NumberCards      []card.Card `json:"numberCards"`
	ModifierCards    []card.Card `json:"modifierCards"`
	ActionCards      []card.Card `json:"actionCards"`
	Active           bool        `json:"active"`
	Busted           bool        `json:"busted"`
	Stayed           bool        `json:"stayed"`
	Flip7            bool        `json:"flip7"`
	FrozenBy         string      `json:"frozenBy,omitempty"`
	UsedSecondChance []string    `json:"usedSecondChanceCardIds,omitempty"`
}

// State is the complete serializable game, including the hidden deck order.
// It exists for the stateless REST mode where the client carries the state
// between requests; it must never be broadcast to game clients.
type State struct {
	TargetScore        int              `json:"targetScore"`
	Status             Status           `json:"status"`
	Round              int              `json:"round"`
	DealerIndex        int              `json:"dealerIndex"`
	CurrentPlayerIndex int              `json:"currentPlayerIndex"`
	Players            []PlayerState    `json:"players"`
	Deck               card.State       `json:"deck"`
	PendingActionCard  *PendingAction   `json:"pendingActionCard,omitempty"`
	FlipThree          []FlipThreeFrame `json:"flipThree,omitempty"`
	RoundHistory       []RoundRecord    `json:"roundHistory,omitempty"`
	LargestRound       *BestRound       `json:"largestRound,omitempty"`
	WinnerID           string           `json:"winnerId,omitempty"`
}

// Export copies out the full game state.
func (g *Game) Export() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := State{
		TargetScore:        g.targetScore,
		Status:             g.status,
		Round:              g.round,
		DealerIndex:        g.dealerIdx,
		CurrentPlayerIndex: g.currentIdx,
		Deck:               g.deck.Export(),
		WinnerID:           g.winnerID,
	}
	for _, p := range g.players {
		ps := PlayerState{
			ID:            p.ID,
			Name:          p.Name,
			AI:            p.AI,
			Difficulty:    p.Difficulty,
			Score:         p.Score,
			RoundScore:    p.RoundScore,
			NumberCards:   append([]card.Card(nil), p.NumberCards...),
			ModifierCards: append([]card.Card(nil), p.ModifierCards...),
			ActionCards:   append([]card.Card(nil), p.ActionCards...),
			Active:        p.Active,
			Busted:        p.Busted,
			Stayed:        p.Stayed,
			Flip7:         p.Flip7,
			FrozenBy:      p.FrozenBy,
		}
		for id := range p.UsedSecondChance {
			ps.UsedSecondChance = append(ps.UsedSecondChance, id)
		}
		sort.Strings(ps.UsedSecondChance)
		st.Players = append(st.Players, ps)
	}
	if g.pending != nil {
		pending := *g.pending
		st.PendingActionCard = &pending
	}
	for _, f := range g.flipThree {
		st.FlipThree = append(st.FlipThree, FlipThreeFrame{
			TargetID:  g.players[f.targetIdx].ID,
			Remaining: f.remaining,
			ReturnID:  g.players[f.returnIdx].ID,
		})
	}
	st.RoundHistory = append([]RoundRecord(nil), g.history...)
	if g.best != nil {
		best := *g.best
		st.LargestRound = &best
	}
	return st
}

// Restore rebuilds a game from an exported state. The state comes from
// untrusted clients in the REST mode, so every index is range-checked before
// the engine dereferences it.
func Restore(st State) (*Game, error) {
	if len(st.Players) < MinPlayers {
		return nil, fmt.Errorf("state has %d players, need at least %d", len(st.Players), MinPlayers)
	}
	if st.CurrentPlayerIndex < -1 || st.CurrentPlayerIndex >= len(st.Players) {
		return nil, fmt.Errorf("currentPlayerIndex %d out of range", st.CurrentPlayerIndex)
	}
	if st.DealerIndex < 0 || st.DealerIndex >= len(st.Players) {
		return nil, fmt.Errorf("dealerIndex %d out of range", st.DealerIndex)
	}
	if st.Status == StatusPlaying && st.CurrentPlayerIndex < 0 {
		return nil, fmt.Errorf("playing state has no current player")
	}
	g := &Game{
		targetScore: st.TargetScore,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		deck:        card.Restore(st.Deck),
		status:      st.Status,
		round:       st.Round,
		dealerIdx:   st.DealerIndex,
		currentIdx:  st.CurrentPlayerIndex,
		winnerID:    st.WinnerID,
	}
	if g.targetScore <= 0 {
		g.targetScore = DefaultTargetScore
	}
	index := make(map[string]int, len(st.Players))
	for i, ps := range st.Players {
		p := &Player{
			ID:               ps.ID,
			Name:             ps.Name,
			AI:               ps.AI,
			Difficulty:       ps.Difficulty,
			Score:            ps.Score,
			RoundScore:       ps.RoundScore,
			NumberCards:      append([]card.Card(nil), ps.NumberCards...),
			ModifierCards:    append([]card.Card(nil), ps.ModifierCards...),
			ActionCards:      append([]card.Card(nil), ps.ActionCards...),
			Active:           ps.Active,
			Busted:           ps.Busted,
			Stayed:           ps.Stayed,
			Flip7:            ps.Flip7,
			FrozenBy:         ps.FrozenBy,
			UsedSecondChance: make(map[string]bool, len(ps.UsedSecondChance)),
		}
		for _, id := range ps.UsedSecondChance {
			p.UsedSecondChance[id] = true
		}
		index[ps.ID] = i
		g.players = append(g.players, p)
	}
	if st.PendingActionCard != nil {
		if st.Status != StatusPlaying {
			return nil, fmt.Errorf("pending action card outside a playing state")
		}
		if _, ok := index[st.PendingActionCard.PlayerID]; !ok {
			return nil, fmt.Errorf("pending action player %q unknown", st.PendingActionCard.PlayerID)
		}
		pending := *st.PendingActionCard
		g.pending = &pending
	}
	for _, f := range st.FlipThree {
		tIdx, ok := index[f.TargetID]
		if !ok {
			return nil, fmt.Errorf("flip three target %q unknown", f.TargetID)
		}
		rIdx, ok := index[f.ReturnID]
		if !ok {
			return nil, fmt.Errorf("flip three return seat %q unknown", f.ReturnID)
		}
		if f.Remaining < 0 || f.Remaining > 3 {
			return nil, fmt.Errorf("flip three remaining %d out of range", f.Remaining)
		}
		g.flipThree = append(g.flipThree, flipThreeFrame{
			targetIdx: tIdx,
			remaining: f.Remaining,
			returnIdx: rIdx,
		})
	}
	g.history = append([]RoundRecord(nil), st.RoundHistory...)
	if st.LargestRound != nil {
		best := *st.LargestRound
		g.best = &best
	}
	return g, nil
}
