// Package lobby owns the room registry: code allocation, session-to-room
// routing, and the matchmaking queue that feeds new rooms.
package lobby

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flip7-lite/internal/codec"
	"flip7-lite/internal/config"
	"flip7-lite/internal/logger"
	"flip7-lite/internal/room"
)

// Sender delivers an encoded server message to one session's socket. The
// gateway binds it after both sides exist.
type Sender func(sessionID string, data []byte)

// Ambiguous glyphs are left out so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const codeLength = 6

// Lobby is the room registry. Rooms are actors; the lobby only routes.
type Lobby struct {
	cfg config.Config
	log *zap.Logger

	mu       sync.RWMutex
	rooms    map[string]*room.Room
	sessions map[string]string // sessionID -> room code
	rng      *rand.Rand
	hooks    []room.GameEndHook

	sendMu sync.RWMutex
	send   Sender

	done     chan struct{}
	stopOnce sync.Once
}

const janitorInterval = 30 * time.Second

// New builds an empty lobby and starts its janitor.
func New(cfg config.Config) *Lobby {
	l := &Lobby{
		cfg:      cfg,
		log:      logger.Get().Named("lobby"),
		rooms:    make(map[string]*room.Room),
		sessions: make(map[string]string),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		done:     make(chan struct{}),
	}
	go l.janitor()
	return l
}

// janitor sweeps rooms that closed without their onClosed callback landing,
// e.g. when the process raced a shutdown. Normal removal stays callback-driven.
func (l *Lobby) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweepClosed()
		case <-l.done:
			return
		}
	}
}

func (l *Lobby) sweepClosed() {
	l.mu.RLock()
	var stale []string
	for code, r := range l.rooms {
		if r.IsClosed() {
			stale = append(stale, code)
		}
	}
	l.mu.RUnlock()
	for _, code := range stale {
		l.removeRoom(code)
	}
}

// Bind installs the outbound sender. Broadcasts before Bind are dropped.
func (l *Lobby) Bind(send Sender) {
	l.sendMu.Lock()
	l.send = send
	l.sendMu.Unlock()
}

// AddGameEndHook registers a hook installed on every future room.
func (l *Lobby) AddGameEndHook(hook room.GameEndHook) {
	if hook == nil {
		return
	}
	l.mu.Lock()
	l.hooks = append(l.hooks, hook)
	l.mu.Unlock()
}

func (l *Lobby) deliver(sessionID string, data []byte) {
	l.sendMu.RLock()
	send := l.send
	l.sendMu.RUnlock()
	if send != nil {
		send(sessionID, data)
	}
}

func (l *Lobby) roomConfig() room.Config {
	return room.Config{
		TargetScore:   l.cfg.TargetScore,
		Seed:          l.cfg.RNGSeed,
		AIThink:       l.cfg.AIThink,
		AIHardTimeout: l.cfg.AIHardTimeout,
		HostGrace:     l.cfg.HostGrace,
		EmptyTTL:      l.cfg.RoomEmptyTTL,
	}
}

// newCodeLocked draws an unused room code.
func (l *Lobby) newCodeLocked() string {
	for {
		buf := make([]byte, codeLength)
		for i := range buf {
			buf[i] = codeAlphabet[l.rng.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := l.rooms[code]; !taken {
			return code
		}
	}
}

// CreateRoom allocates a room and seats hostName as its host.
func (l *Lobby) CreateRoom(hostName string) (codec.RoomWelcome, error) {
	sessionID := uuid.NewString()
	playerID := uuid.NewString()

	l.mu.Lock()
	code := l.newCodeLocked()
	r := room.New(code, l.roomConfig(), l.deliver, l.removeRoom)
	for _, hook := range l.hooks {
		r.AddGameEndHook(hook)
	}
	l.rooms[code] = r
	l.sessions[sessionID] = code
	l.mu.Unlock()

	// Join runs through the room actor outside the lobby lock: its
	// broadcasts call back into deliver.
	if err := r.Join(sessionID, playerID, hostName, true); err != nil {
		l.mu.Lock()
		delete(l.sessions, sessionID)
		l.mu.Unlock()
		r.Close()
		return codec.RoomWelcome{}, err
	}

	l.log.Info("room created", zap.String("room", code))
	return codec.RoomWelcome{
		RoomCode:  code,
		SessionID: sessionID,
		PlayerID:  playerID,
		Room:      r.Info(),
	}, nil
}

// JoinRoom seats a new player in an existing waiting room.
func (l *Lobby) JoinRoom(code, name string) (codec.RoomWelcome, error) {
	l.mu.RLock()
	r, ok := l.rooms[code]
	l.mu.RUnlock()
	if !ok || r.IsClosed() {
		return codec.RoomWelcome{}, codec.NewError(codec.CodeRoomNotFound, "no such room")
	}

	sessionID := uuid.NewString()
	playerID := uuid.NewString()
	l.mu.Lock()
	l.sessions[sessionID] = code
	l.mu.Unlock()

	if err := r.Join(sessionID, playerID, name, false); err != nil {
		l.mu.Lock()
		delete(l.sessions, sessionID)
		l.mu.Unlock()
		return codec.RoomWelcome{}, err
	}

	return codec.RoomWelcome{
		RoomCode:  code,
		SessionID: sessionID,
		PlayerID:  playerID,
		Room:      r.Info(),
	}, nil
}

// Room looks a room up by code.
func (l *Lobby) Room(code string) (*room.Room, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rooms[code]
	return r, ok
}

// FindBySession resolves a session id to its room. Session ids double as
// reconnect tokens, so the answer must survive socket churn.
func (l *Lobby) FindBySession(sessionID string) (*room.Room, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	code, ok := l.sessions[sessionID]
	if !ok {
		return nil, false
	}
	r, ok := l.rooms[code]
	return r, ok
}

// ReleaseSession forgets a session after an explicit leave.
func (l *Lobby) ReleaseSession(sessionID string) {
	l.mu.Lock()
	delete(l.sessions, sessionID)
	l.mu.Unlock()
}

// removeRoom is the room's onClosed callback.
func (l *Lobby) removeRoom(code string) {
	l.mu.Lock()
	delete(l.rooms, code)
	for sid, c := range l.sessions {
		if c == code {
			delete(l.sessions, sid)
		}
	}
	l.mu.Unlock()
	l.log.Info("room removed", zap.String("room", code))
}

// RoomCount reports the number of live rooms.
func (l *Lobby) RoomCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rooms)
}

// Close stops the janitor and shuts every room down.
func (l *Lobby) Close() {
	l.stopOnce.Do(func() { close(l.done) })
	l.mu.RLock()
	rooms := make([]*room.Room, 0, len(l.rooms))
	for _, r := range l.rooms {
		rooms = append(rooms, r)
	}
	l.mu.RUnlock()
	for _, r := range rooms {
		r.Close()
	}
}
