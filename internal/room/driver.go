package room

import (
	"time"

	"go.uber.org/zap"

	"flip7-lite/flip7"
	"flip7-lite/flip7/ai"
)

// scheduleAILocked arms the AI timer when the turn sits on an AI seat and
// disarms it otherwise. Overwriting the fields inside the actor is the
// cancellation: a stale timer can never fire for the wrong seat.
func (r *Room) scheduleAILocked() {
	if r.game == nil || r.closed {
		r.clearAILocked()
		return
	}
	snap := r.game.Snapshot()
	if snap.Status != flip7.StatusPlaying || snap.CurrentPlayerID == "" {
		r.clearAILocked()
		return
	}
	seat := r.seatByPlayerLocked(snap.CurrentPlayerID)
	if seat == nil || !seat.IsAI {
		r.clearAILocked()
		return
	}

	think := r.cfg.AIThink
	if snap.PendingActionCard != nil && snap.PendingActionCard.PlayerID == seat.PlayerID {
		// Target selection happens immediately; the pause already happened
		// before the card was drawn.
		think = 0
	}
	now := time.Now()
	r.aiPlayerID = seat.PlayerID
	r.aiActAt = now.Add(think)
	r.aiDeadline = now.Add(r.cfg.AIHardTimeout)
}

func (r *Room) clearAILocked() {
	r.aiPlayerID = ""
	r.aiActAt = time.Time{}
	r.aiDeadline = time.Time{}
}

func (r *Room) seatByPlayerLocked(playerID string) *Seat {
	for _, s := range r.seats {
		if s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

func (r *Room) tickAILocked(now time.Time) {
	if r.aiPlayerID == "" || r.game == nil {
		return
	}
	if now.Before(r.aiActAt) {
		return
	}
	playerID := r.aiPlayerID
	forced := !now.Before(r.aiDeadline)
	r.clearAILocked()

	snap := r.game.Snapshot()
	if snap.Status != flip7.StatusPlaying || snap.CurrentPlayerID != playerID {
		// The world moved on while the timer was armed.
		r.scheduleAILocked()
		return
	}
	r.runAILocked(snap, playerID, forced)
}

// runAILocked computes and applies one AI decision. The decision is pure;
// a rejected input falls back to the default action so an AI seat can never
// wedge the game, and a second failure is treated as an engine fault.
func (r *Room) runAILocked(snap flip7.Snapshot, playerID string, forced bool) {
	seat := r.seatByPlayerLocked(playerID)
	if seat == nil {
		return
	}
	view := ai.BuildView(snap, r.game.DeckValueCounts(), playerID)

	var decision ai.Decision
	if forced {
		decision = fallbackDecision(view)
		r.log.Warn("ai decision deadline hit, forcing fallback", zap.String("player", playerID))
	} else {
		decision = ai.New(seat.Difficulty).Decide(view)
	}

	if err := r.applyAIDecisionLocked(playerID, decision); err != nil {
		r.log.Warn("ai decision rejected",
			zap.String("player", playerID),
			zap.String("kind", string(decision.Kind)),
			zap.Error(err))
		if err := r.applyAIDecisionLocked(playerID, fallbackDecision(view)); err != nil {
			r.failRoomLocked(err)
			return
		}
	}
	r.afterGameMutationLocked()
}

// fallbackDecision is the timeout action: resolve a pending card with the
// default target, otherwise hit.
func fallbackDecision(view ai.View) ai.Decision {
	if view.Pending != nil && view.Pending.PlayerID == view.PlayerID {
		return ai.Decision{
			Kind:     ai.DecisionPlayAction,
			CardID:   view.Pending.CardID,
			TargetID: ai.PendingTarget(view),
		}
	}
	return ai.Decision{Kind: ai.DecisionHit}
}

func (r *Room) applyAIDecisionLocked(playerID string, d ai.Decision) error {
	var err error
	switch d.Kind {
	case ai.DecisionStay:
		_, err = r.game.Stay(playerID)
	case ai.DecisionPlayAction:
		_, err = r.game.PlayAction(playerID, d.CardID, d.TargetID)
	default:
		_, err = r.game.Hit(playerID)
	}
	return err
}
