// Package room implements the per-game coordinator. A room owns one engine
// instance and serializes every input (human and AI) through an actor
// goroutine; observers only ever receive snapshots.
package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"flip7-lite/flip7"
	"flip7-lite/internal/codec"
	"flip7-lite/internal/logger"
)

// Status is the room lifecycle state, distinct from the game status.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusClosed  Status = "closed"
)

// Config carries the per-room tunables.
type Config struct {
	TargetScore   int
	Seed          int64
	AIThink       time.Duration
	AIHardTimeout time.Duration
	HostGrace     time.Duration
	EmptyTTL      time.Duration
}

// Seat is one member of the room. AI seats have no session.
type Seat struct {
	SessionID  string
	PlayerID   string
	Name       string
	IsHost     bool
	IsAI       bool
	Difficulty string
	Connected  bool
	JoinedAt   time.Time
}

// GameEndHook receives the final standings after a game concludes.
type GameEndHook func(info GameEndInfo)

// GameEndInfo is the settlement summary handed to game-end hooks.
type GameEndInfo struct {
	RoomCode   string
	Rounds     int
	WinnerID   string
	WinnerName string
	FinishedAt time.Time
	Players    []PlayerResult
}

// PlayerResult is one line of the final standings.
type PlayerResult struct {
	PlayerID string
	Name     string
	Score    int
	IsAI     bool
	Won      bool
}

// Event types for the actor queue.
type eventType int

const (
	eventJoin eventType = iota
	eventAddBot
	eventLeave
	eventStartGame
	eventHit
	eventStay
	eventPlayAction
	eventNextRound
	eventConnLost
	eventConnResume
	eventClose
)

type event struct {
	kind       eventType
	sessionID  string
	playerID   string
	name       string
	host       bool
	difficulty string
	cardID     string
	targetID   string
	response   chan error
}

// ErrRoomClosed is returned for any submit against a closed room.
var ErrRoomClosed = errors.New("room closed")

const tickInterval = 250 * time.Millisecond

// Room is the actor. All fields below mu are owned by the actor loop; mu
// additionally lets read-only accessors take consistent peeks.
type Room struct {
	Code string

	cfg Config
	log *zap.Logger

	mu        sync.RWMutex
	status    Status
	seats     []*Seat
	game      *flip7.Game
	closed    bool
	serverSeq uint64

	events   chan event
	done     chan struct{}
	stopOnce sync.Once

	// AI driver state, ticker-driven. aiPlayerID empty means idle.
	aiPlayerID string
	aiActAt    time.Time
	aiDeadline time.Time

	// Lifecycle timers.
	hostGraceUntil time.Time
	emptySince     time.Time

	broadcast  func(sessionID string, data []byte)
	onGameEnd  []GameEndHook
	onClosed   func(code string)
	botCounter int
}

// New creates a room and starts its actor goroutine.
func New(code string, cfg Config, broadcastFn func(sessionID string, data []byte), onClosed func(code string)) *Room {
	r := &Room{
		Code:      code,
		cfg:       cfg,
		log:       logger.Get().With(zap.String("room", code)),
		status:    StatusWaiting,
		events:    make(chan event, 256),
		done:      make(chan struct{}),
		broadcast: broadcastFn,
		onClosed:  onClosed,
	}
	go r.run()
	return r
}

// AddGameEndHook registers a post-game callback.
func (r *Room) AddGameEndHook(hook GameEndHook) {
	if hook == nil {
		return
	}
	r.mu.Lock()
	r.onGameEnd = append(r.onGameEnd, hook)
	r.mu.Unlock()
}

func (r *Room) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case e := <-r.events:
			err := r.handleEvent(e)
			if e.response != nil {
				e.response <- err
			}
		case <-ticker.C:
			r.tick()
		case <-r.done:
			r.log.Info("room actor stopped")
			return
		}
	}
}

func (r *Room) handleEvent(e event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed && e.kind != eventClose {
		return ErrRoomClosed
	}

	switch e.kind {
	case eventJoin:
		return r.handleJoin(e.sessionID, e.playerID, e.name, e.host)
	case eventAddBot:
		return r.handleAddBot(e.sessionID, e.difficulty)
	case eventLeave:
		return r.handleLeave(e.sessionID)
	case eventStartGame:
		return r.handleStartGame(e.sessionID)
	case eventHit:
		return r.handleGameInput(e, func() ([]flip7.Effect, error) {
			return r.game.Hit(e.playerID)
		})
	case eventStay:
		return r.handleGameInput(e, func() ([]flip7.Effect, error) {
			return r.game.Stay(e.playerID)
		})
	case eventPlayAction:
		return r.handleGameInput(e, func() ([]flip7.Effect, error) {
			return r.game.PlayAction(e.playerID, e.cardID, e.targetID)
		})
	case eventNextRound:
		return r.handleNextRound(e.sessionID)
	case eventConnLost:
		return r.handleConnLost(e.sessionID)
	case eventConnResume:
		return r.handleConnResume(e.sessionID)
	case eventClose:
		r.closeLocked()
		return nil
	default:
		return fmt.Errorf("unknown event kind %d", e.kind)
	}
}

// submit queues an event and waits for the actor's answer.
func (r *Room) submit(e event) error {
	if e.response == nil {
		e.response = make(chan error, 1)
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrRoomClosed
	}

	select {
	case r.events <- e:
	case <-r.done:
		return ErrRoomClosed
	}

	select {
	case err := <-e.response:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// --- public input surface, one wrapper per wire message ---

func (r *Room) Join(sessionID, playerID, name string, host bool) error {
	return r.submit(event{kind: eventJoin, sessionID: sessionID, playerID: playerID, name: name, host: host})
}

func (r *Room) AddBot(sessionID, difficulty string) error {
	return r.submit(event{kind: eventAddBot, sessionID: sessionID, difficulty: difficulty})
}

func (r *Room) Leave(sessionID string) error {
	return r.submit(event{kind: eventLeave, sessionID: sessionID})
}

func (r *Room) StartGame(sessionID string) error {
	return r.submit(event{kind: eventStartGame, sessionID: sessionID})
}

func (r *Room) Hit(sessionID, playerID string) error {
	return r.submit(event{kind: eventHit, sessionID: sessionID, playerID: playerID})
}

func (r *Room) Stay(sessionID, playerID string) error {
	return r.submit(event{kind: eventStay, sessionID: sessionID, playerID: playerID})
}

func (r *Room) PlayActionCard(sessionID, playerID, cardID, targetID string) error {
	return r.submit(event{
		kind: eventPlayAction, sessionID: sessionID,
		playerID: playerID, cardID: cardID, targetID: targetID,
	})
}

func (r *Room) NextRound(sessionID string) error {
	return r.submit(event{kind: eventNextRound, sessionID: sessionID})
}

func (r *Room) ConnLost(sessionID string) error {
	return r.submit(event{kind: eventConnLost, sessionID: sessionID})
}

func (r *Room) ConnResume(sessionID string) error {
	return r.submit(event{kind: eventConnResume, sessionID: sessionID})
}

// Close shuts the room down.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Room) closeLocked() {
	if r.closed {
		return
	}
	r.closed = true
	r.status = StatusClosed
	r.clearAILocked()
	r.stopOnce.Do(func() { close(r.done) })
	if r.onClosed != nil {
		go r.onClosed(r.Code)
	}
	r.log.Info("room closed")
}

// IsClosed reports whether the room has shut down.
func (r *Room) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// HasSession reports whether sessionID owns a seat here.
func (r *Room) HasSession(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seatBySessionLocked(sessionID) != nil
}

// Info returns the public room view.
func (r *Room) Info() codec.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.infoLocked()
}

func (r *Room) infoLocked() codec.RoomInfo {
	info := codec.RoomInfo{RoomCode: r.Code, Status: string(r.status)}
	for _, s := range r.seats {
		info.Seats = append(info.Seats, codec.SeatInfo{
			PlayerID:  s.PlayerID,
			Name:      s.Name,
			IsHost:    s.IsHost,
			IsAI:      s.IsAI,
			Connected: s.Connected || s.IsAI,
		})
	}
	return info
}

func (r *Room) seatBySessionLocked(sessionID string) *Seat {
	if sessionID == "" {
		return nil
	}
	for _, s := range r.seats {
		if s.SessionID == sessionID {
			return s
		}
	}
	return nil
}

func (r *Room) hostSeatLocked() *Seat {
	for _, s := range r.seats {
		if s.IsHost {
			return s
		}
	}
	return nil
}

func (r *Room) connectedHumanCountLocked() int {
	n := 0
	for _, s := range r.seats {
		if !s.IsAI && s.Connected {
			n++
		}
	}
	return n
}

// tick drives the AI, the host grace window and the empty-room TTL.
func (r *Room) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	now := time.Now()
	r.tickAILocked(now)
	r.tickHostGraceLocked(now)
	if !r.emptySince.IsZero() && now.Sub(r.emptySince) >= r.cfg.EmptyTTL {
		r.log.Info("empty room TTL expired")
		r.closeLocked()
	}
}

func (r *Room) tickHostGraceLocked(now time.Time) {
	if r.hostGraceUntil.IsZero() || now.Before(r.hostGraceUntil) {
		return
	}
	r.hostGraceUntil = time.Time{}

	host := r.hostSeatLocked()
	if host != nil && host.Connected {
		return
	}
	r.migrateHostLocked(host)
}

// migrateHostLocked promotes the earliest-joined connected human seat.
// With nobody connected the room stays as-is and the empty TTL decides.
func (r *Room) migrateHostLocked(old *Seat) {
	var next *Seat
	for _, s := range r.seats {
		if s.IsAI || !s.Connected || s == old {
			continue
		}
		if next == nil || s.JoinedAt.Before(next.JoinedAt) {
			next = s
		}
	}
	if next == nil {
		return
	}
	if old != nil {
		old.IsHost = false
	}
	next.IsHost = true
	r.log.Info("host migrated", zap.String("newHost", next.PlayerID))
	r.broadcastMessageLocked(codec.ServerMessage{
		Type: codec.TypeHostMigrated,
		Data: codec.HostMigrated{NewHostSessionID: next.SessionID, NewHostName: next.Name},
	})
	r.broadcastRoomUpdateLocked()
}

func (r *Room) updateEmptySinceLocked(now time.Time) {
	if r.connectedHumanCountLocked() == 0 {
		if r.emptySince.IsZero() {
			r.emptySince = now
		}
		return
	}
	r.emptySince = time.Time{}
}
