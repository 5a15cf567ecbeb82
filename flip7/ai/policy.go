// Package ai holds the deterministic seat policy for computer players.
// The engine never calls it; the room (or the REST layer) builds a View,
// asks for a Decision and feeds it back through the normal input path.
package ai

import (
	"flip7-lite/card"
	"flip7-lite/flip7"
)

// DecisionKind is the input the policy wants to submit.
type DecisionKind string

const (
	DecisionHit        DecisionKind = "hit"
	DecisionStay       DecisionKind = "stay"
	DecisionPlayAction DecisionKind = "play_action"
)

// Decision is a ready-to-submit engine input.
type Decision struct {
	Kind     DecisionKind `json:"kind"`
	CardID   string       `json:"cardId,omitempty"`
	TargetID string       `json:"targetId,omitempty"`
}

// Opponent is the per-rival projection the policy needs for targeting.
type Opponent struct {
	ID            string
	Active        bool
	RoundScore    int
	UniqueNumbers int
}

// View is everything the policy may look at. DeckValueCounts is the draw
// pile's remaining number distribution; clients never see it, the server
// builds it straight from the engine.
type View struct {
	PlayerID        string
	RoundScore      int
	UniqueNumbers   int
	HasSecondChance bool
	HasTimes2       bool
	HeldValues      []int
	DeckSize        int
	DeckValueCounts map[int]int
	Pending         *flip7.PendingAction
	Opponents       []Opponent
}

// Difficulty profiles scale the numeric stay thresholds. Conservative stays
// earlier, aggressive pushes further; unique-card counts are left alone.
const (
	DifficultyConservative = "conservative"
	DifficultyModerate     = "moderate"
	DifficultyAggressive   = "aggressive"
)

type profile struct {
	stayScore     int
	x2Score       int
	bustThreshold float64
}

func profileFor(difficulty string) profile {
	switch difficulty {
	case DifficultyConservative:
		return profile{stayScore: 40, x2Score: 24, bustThreshold: 0.24}
	case DifficultyAggressive:
		return profile{stayScore: 60, x2Score: 36, bustThreshold: 0.36}
	default:
		return profile{stayScore: 50, x2Score: 30, bustThreshold: 0.30}
	}
}

// Policy decides for one difficulty profile. The zero value is moderate.
type Policy struct {
	prof profile
}

// New returns the policy for a difficulty tag; unknown tags mean moderate.
func New(difficulty string) *Policy {
	return &Policy{prof: profileFor(difficulty)}
}

// Decide is pure: the same view always yields the same decision.
func (p *Policy) Decide(v View) Decision {
	if v.Pending != nil && v.Pending.PlayerID == v.PlayerID {
		target := PendingTarget(v)
		return Decision{Kind: DecisionPlayAction, CardID: v.Pending.CardID, TargetID: target}
	}

	prof := p.prof
	if prof.stayScore == 0 {
		prof = profileFor(DifficultyModerate)
	}

	if v.RoundScore >= prof.stayScore && v.UniqueNumbers >= 5 {
		return Decision{Kind: DecisionStay}
	}
	if v.UniqueNumbers >= 6 && !v.HasSecondChance {
		return Decision{Kind: DecisionStay}
	}
	if BustProbability(v) >= prof.bustThreshold {
		return Decision{Kind: DecisionStay}
	}
	if v.RoundScore >= prof.x2Score && v.HasTimes2 && v.UniqueNumbers >= 3 {
		return Decision{Kind: DecisionStay}
	}
	return Decision{Kind: DecisionHit}
}

// BustProbability is the share of remaining draw-pile cards whose number
// value is already held.
func BustProbability(v View) float64 {
	if v.DeckSize <= 0 {
		return 0
	}
	duplicates := 0
	for _, held := range v.HeldValues {
		duplicates += v.DeckValueCounts[held]
	}
	return float64(duplicates) / float64(v.DeckSize)
}

// PendingTarget picks the target for a pending action card. It is also the
// hard-timeout fallback, so it lives outside Decide.
func PendingTarget(v View) string {
	if v.Pending == nil {
		return v.PlayerID
	}
	if v.Pending.Action == card.ActionFlipThree {
		// Self-target prevents griefing stalls.
		return v.PlayerID
	}
	// Freeze: hit the best-positioned rival; alone means self-freeze.
	best := ""
	bestScore, bestUnique := -1, -1
	for _, o := range v.Opponents {
		if !o.Active || o.ID == v.PlayerID {
			continue
		}
		if o.RoundScore > bestScore || (o.RoundScore == bestScore && o.UniqueNumbers > bestUnique) {
			best = o.ID
			bestScore = o.RoundScore
			bestUnique = o.UniqueNumbers
		}
	}
	if best == "" {
		return v.PlayerID
	}
	return best
}

// BuildView projects the engine state for one seat. deckCounts comes from
// Game.DeckValueCounts.
func BuildView(snap flip7.Snapshot, deckCounts map[int]int, playerID string) View {
	v := View{
		PlayerID:        playerID,
		DeckSize:        snap.DeckSize,
		DeckValueCounts: deckCounts,
		Pending:         snap.PendingActionCard,
	}
	for _, ps := range snap.Players {
		if ps.ID == playerID {
			v.RoundScore = ps.RoundScore
			v.UniqueNumbers = len(ps.NumberCards)
			for _, c := range ps.NumberCards {
				v.HeldValues = append(v.HeldValues, c.Value)
			}
			for _, c := range ps.ModifierCards {
				if c.Modifier == card.ModifierTimes2 {
					v.HasTimes2 = true
				}
			}
			used := make(map[string]bool, len(ps.UsedSecondChanceIDs))
			for _, id := range ps.UsedSecondChanceIDs {
				used[id] = true
			}
			for _, c := range ps.ActionCards {
				if c.Action == card.ActionSecondChance && !used[c.ID] {
					v.HasSecondChance = true
				}
			}
			continue
		}
		v.Opponents = append(v.Opponents, Opponent{
			ID:            ps.ID,
			Active:        ps.IsActive,
			RoundScore:    ps.RoundScore,
			UniqueNumbers: len(ps.NumberCards),
		})
	}
	return v
}
