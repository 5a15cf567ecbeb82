package room

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flip7-lite/flip7"
	"flip7-lite/internal/codec"
)

var botNames = []string{"Nova", "Juno", "Rex", "Milo", "Vega", "Iris", "Otto", "Fern"}

func (r *Room) handleJoin(sessionID, playerID, name string, host bool) error {
	if r.status != StatusWaiting {
		return codec.NewError(codec.CodeRoomClosed, "room is no longer accepting players")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "player_" + playerID[:8]
	}
	for _, s := range r.seats {
		if strings.EqualFold(s.Name, name) {
			return codec.NewError(codec.CodeNameInUse, fmt.Sprintf("name %q is taken", name))
		}
	}

	now := time.Now()
	r.seats = append(r.seats, &Seat{
		SessionID: sessionID,
		PlayerID:  playerID,
		Name:      name,
		IsHost:    host,
		Connected: true,
		JoinedAt:  now,
	})
	r.updateEmptySinceLocked(now)
	r.log.Info("player joined", zap.String("player", playerID), zap.String("name", name))
	r.broadcastRoomUpdateLocked()
	return nil
}

func (r *Room) handleAddBot(sessionID, difficulty string) error {
	seat := r.seatBySessionLocked(sessionID)
	if seat == nil {
		return codec.NewError(codec.CodeNotInRoom, "session has no seat in this room")
	}
	if !seat.IsHost {
		return codec.NewError(codec.CodeNotHost, "only the host may add bots")
	}
	if r.status != StatusWaiting {
		return codec.NewError(codec.CodeRoomClosed, "the game has already started")
	}

	name := botNames[r.botCounter%len(botNames)]
	if r.botCounter >= len(botNames) {
		name = fmt.Sprintf("%s %d", name, r.botCounter/len(botNames)+1)
	}
	r.botCounter++

	r.seats = append(r.seats, &Seat{
		PlayerID:   "bot-" + uuid.NewString(),
		Name:       name,
		IsAI:       true,
		Difficulty: difficulty,
		JoinedAt:   time.Now(),
	})
	r.log.Info("bot seated", zap.String("name", name), zap.String("difficulty", difficulty))
	r.broadcastRoomUpdateLocked()
	return nil
}

func (r *Room) handleLeave(sessionID string) error {
	seat := r.seatBySessionLocked(sessionID)
	if seat == nil {
		return codec.NewError(codec.CodeNotInRoom, "session has no seat in this room")
	}

	if r.status == StatusWaiting {
		for i, s := range r.seats {
			if s == seat {
				r.seats = append(r.seats[:i], r.seats[i+1:]...)
				break
			}
		}
		r.log.Info("player left", zap.String("player", seat.PlayerID))
		if seat.IsHost {
			r.migrateHostLocked(seat)
		}
		if r.connectedHumanCountLocked() == 0 {
			r.closeLocked()
			return nil
		}
		r.updateEmptySinceLocked(time.Now())
		r.broadcastRoomUpdateLocked()
		return nil
	}

	// Mid-game the seat stays; the player is just gone from the socket's
	// point of view and may restore the session later.
	return r.handleConnLost(sessionID)
}

func (r *Room) handleStartGame(sessionID string) error {
	seat := r.seatBySessionLocked(sessionID)
	if seat == nil {
		return codec.NewError(codec.CodeNotInRoom, "session has no seat in this room")
	}
	if !seat.IsHost {
		return codec.NewError(codec.CodeNotHost, "only the host may start the game")
	}
	if r.status != StatusWaiting {
		return flip7.ErrWrongPhase
	}
	if len(r.seats) < flip7.MinPlayers {
		return flip7.ErrWrongPhase
	}

	cfg := flip7.Config{TargetScore: r.cfg.TargetScore, Seed: r.cfg.Seed}
	for _, s := range r.seats {
		cfg.Seats = append(cfg.Seats, flip7.SeatConfig{
			ID:         s.PlayerID,
			Name:       s.Name,
			AI:         s.IsAI,
			Difficulty: s.Difficulty,
		})
	}
	game, err := flip7.NewGame(cfg)
	if err != nil {
		return err
	}
	if _, err := game.StartRound(); err != nil {
		return err
	}

	r.game = game
	r.status = StatusPlaying
	r.log.Info("game started", zap.Int("seats", len(r.seats)))
	r.broadcastStateLocked()
	r.scheduleAILocked()
	return nil
}

// handleGameInput authorizes the input against the seat, applies it to the
// engine and broadcasts the new state. Engine rejections go back to the
// sender only. AI seats never pass through here: the driver applies their
// decisions directly inside the actor.
func (r *Room) handleGameInput(e event, apply func() ([]flip7.Effect, error)) error {
	if r.game == nil || r.status != StatusPlaying {
		return flip7.ErrWrongPhase
	}
	seat := r.seatBySessionLocked(e.sessionID)
	if seat == nil {
		return codec.NewError(codec.CodeNotInRoom, "session has no seat in this room")
	}
	if seat.PlayerID != e.playerID {
		return flip7.ErrNotYourTurn
	}

	if _, err := apply(); err != nil {
		if re, ok := flip7.AsRuleError(err); ok {
			if re == flip7.ErrDeckExhausted {
				r.failRoomLocked(re)
			}
			return re
		}
		r.failRoomLocked(err)
		return err
	}

	r.afterGameMutationLocked()
	return nil
}

func (r *Room) handleNextRound(sessionID string) error {
	seat := r.seatBySessionLocked(sessionID)
	if seat == nil {
		return codec.NewError(codec.CodeNotInRoom, "session has no seat in this room")
	}
	// The host drives round advancement; a lone human playing against bots
	// is always allowed to.
	if !seat.IsHost && r.humanSeatCountLocked() > 1 {
		return codec.NewError(codec.CodeNotHost, "only the host may advance the round")
	}
	if r.game == nil {
		return flip7.ErrWrongPhase
	}

	if _, err := r.game.StartNextRound(); err != nil {
		if re, ok := flip7.AsRuleError(err); ok {
			return re
		}
		r.failRoomLocked(err)
		return err
	}
	r.afterGameMutationLocked()
	return nil
}

func (r *Room) humanSeatCountLocked() int {
	n := 0
	for _, s := range r.seats {
		if !s.IsAI {
			n++
		}
	}
	return n
}

// afterGameMutationLocked is the common tail of every successful engine
// call: broadcast, reschedule the AI driver, dispatch settlement hooks.
func (r *Room) afterGameMutationLocked() {
	r.broadcastStateLocked()
	snap := r.game.Snapshot()
	if snap.Status == flip7.StatusGameEnd {
		r.clearAILocked()
		r.dispatchGameEndLocked(snap)
		return
	}
	r.scheduleAILocked()
}

// failRoomLocked handles internal errors: broadcast a generic notice and
// close the room. Engine bugs are fatal to the room, not the process.
func (r *Room) failRoomLocked(err error) {
	r.log.Error("room failed", zap.Error(err))
	r.broadcastMessageLocked(codec.ServerMessage{
		Type:    codec.TypeError,
		Code:    codec.CodeInvariantViolated,
		Message: "internal error, room closed",
	})
	r.closeLocked()
}

func (r *Room) handleConnLost(sessionID string) error {
	seat := r.seatBySessionLocked(sessionID)
	if seat == nil {
		return nil
	}
	if !seat.Connected {
		return nil
	}
	seat.Connected = false
	now := time.Now()
	r.updateEmptySinceLocked(now)
	if seat.IsHost {
		r.hostGraceUntil = now.Add(r.cfg.HostGrace)
	}
	r.log.Info("connection lost", zap.String("player", seat.PlayerID))
	r.broadcastMessageLocked(codec.ServerMessage{
		Type: codec.TypePlayerDisconnected,
		Data: codec.PlayerDisconnected{SessionID: sessionID, PlayerID: seat.PlayerID},
	})
	r.broadcastRoomUpdateLocked()
	return nil
}

func (r *Room) handleConnResume(sessionID string) error {
	seat := r.seatBySessionLocked(sessionID)
	if seat == nil {
		return codec.NewError(codec.CodeSessionRestoreFailed, "session has no seat in this room")
	}
	seat.Connected = true
	r.updateEmptySinceLocked(time.Now())
	if seat.IsHost {
		r.hostGraceUntil = time.Time{}
	}
	r.log.Info("connection resumed", zap.String("player", seat.PlayerID))

	// The rejoining socket immediately gets the full picture; everyone
	// else just sees the seat flip back to connected.
	r.sendStateToLocked(sessionID)
	r.broadcastRoomUpdateLocked()
	return nil
}

func (r *Room) dispatchGameEndLocked(snap flip7.Snapshot) {
	info := GameEndInfo{
		RoomCode:   r.Code,
		Rounds:     snap.Round,
		WinnerID:   snap.WinnerID,
		FinishedAt: time.Now().UTC(),
	}
	for _, ps := range snap.Players {
		if ps.ID == snap.WinnerID {
			info.WinnerName = ps.Name
		}
		info.Players = append(info.Players, PlayerResult{
			PlayerID: ps.ID,
			Name:     ps.Name,
			Score:    ps.Score,
			IsAI:     ps.IsAI,
			Won:      ps.ID == snap.WinnerID,
		})
	}

	hooks := append([]GameEndHook(nil), r.onGameEnd...)
	log := r.log
	for _, hook := range hooks {
		go func(cb GameEndHook) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("game end hook panic", zap.Any("panic", rec))
				}
			}()
			cb(info)
		}(hook)
	}
}

// --- outbound ---

func (r *Room) nextSeqLocked() uint64 {
	r.serverSeq++
	return r.serverSeq
}

// broadcastMessageLocked marshals once and fans out to every connected
// human seat. Send failures are the gateway's problem; the seat stays.
func (r *Room) broadcastMessageLocked(msg codec.ServerMessage) {
	if r.broadcast == nil {
		return
	}
	msg.Seq = r.nextSeqLocked()
	data := codec.Marshal(msg)
	for _, s := range r.seats {
		if s.IsAI || !s.Connected || s.SessionID == "" {
			continue
		}
		r.broadcast(s.SessionID, data)
	}
}

func (r *Room) broadcastRoomUpdateLocked() {
	r.broadcastMessageLocked(codec.ServerMessage{
		Type: codec.TypeRoomUpdated,
		Data: r.infoLocked(),
	})
}

func (r *Room) broadcastStateLocked() {
	if r.game == nil {
		return
	}
	r.broadcastMessageLocked(codec.ServerMessage{
		Type: codec.TypeGameState,
		Data: codec.GameState{Room: r.infoLocked(), State: r.game.Snapshot()},
	})
}

func (r *Room) sendStateToLocked(sessionID string) {
	if r.broadcast == nil {
		return
	}
	var msg codec.ServerMessage
	if r.game != nil {
		msg = codec.ServerMessage{
			Type: codec.TypeGameState,
			Data: codec.GameState{Room: r.infoLocked(), State: r.game.Snapshot()},
		}
	} else {
		msg = codec.ServerMessage{Type: codec.TypeRoomUpdated, Data: r.infoLocked()}
	}
	msg.Seq = r.nextSeqLocked()
	r.broadcast(sessionID, codec.Marshal(msg))
}
