package lobby

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"flip7-lite/internal/codec"
)

// Matchmaking party sizes.
const (
	MinMatchSize = 2
	MaxMatchSize = 6
)

// waiter is one queued player. The key identifies the socket so a dropped
// connection can be pulled back out of the queue.
type waiter struct {
	key    string
	name   string
	notify func(codec.ServerMessage)
}

// Matchmaker runs FIFO queues, one per requested party size. A queue fills,
// a room is born; no partial matches, no timeouts.
type Matchmaker struct {
	lobby *Lobby
	log   *zap.Logger

	mu     sync.Mutex
	queues map[int][]*waiter
}

// NewMatchmaker builds a matchmaker feeding rooms into lobby.
func NewMatchmaker(l *Lobby) *Matchmaker {
	return &Matchmaker{
		lobby:  l,
		log:    l.log.Named("matchmaker"),
		queues: make(map[int][]*waiter),
	}
}

// Enqueue queues a player for a party of maxPlayers and reports their 1-based
// position. Filling the queue triggers the match immediately; the caller is
// then notified through notify like everyone else, after Enqueue returns a
// position equal to maxPlayers.
func (m *Matchmaker) Enqueue(key, name string, maxPlayers int, notify func(codec.ServerMessage)) (int, error) {
	if maxPlayers < MinMatchSize || maxPlayers > MaxMatchSize {
		return 0, codec.NewError(codec.CodeBadMessage,
			fmt.Sprintf("maxPlayers must be between %d and %d", MinMatchSize, MaxMatchSize))
	}

	m.mu.Lock()
	m.removeLocked(key)
	q := append(m.queues[maxPlayers], &waiter{key: key, name: name, notify: notify})
	position := len(q)
	var matched []*waiter
	if position >= maxPlayers {
		matched = q
		m.queues[maxPlayers] = nil
	} else {
		m.queues[maxPlayers] = q
	}
	m.mu.Unlock()

	if matched != nil {
		m.buildMatch(matched)
	}
	return position, nil
}

// Cancel pulls a player out of whatever queue they sit in.
func (m *Matchmaker) Cancel(key string) {
	m.mu.Lock()
	m.removeLocked(key)
	m.mu.Unlock()
}

func (m *Matchmaker) removeLocked(key string) {
	for size, q := range m.queues {
		for i, w := range q {
			if w.key == key {
				m.queues[size] = append(q[:i], q[i+1:]...)
				return
			}
		}
	}
}

// buildMatch creates the room, seats everyone and fans the welcome out. The
// first waiter in line becomes the host.
func (m *Matchmaker) buildMatch(waiters []*waiter) {
	names := disambiguate(waiters)

	welcome, err := m.lobby.CreateRoom(names[0])
	if err != nil {
		m.log.Error("matchmaking room creation failed", zap.Error(err))
		m.failMatch(waiters, err)
		return
	}
	welcomes := make([]codec.RoomWelcome, len(waiters))
	welcomes[0] = welcome

	for i := 1; i < len(waiters); i++ {
		w, err := m.lobby.JoinRoom(welcome.RoomCode, names[i])
		if err != nil {
			m.log.Error("matchmaking join failed", zap.Error(err))
			m.failMatch(waiters, err)
			if r, ok := m.lobby.Room(welcome.RoomCode); ok {
				r.Close()
			}
			return
		}
		welcomes[i] = w
	}

	m.log.Info("match formed",
		zap.String("room", welcome.RoomCode), zap.Int("players", len(waiters)))
	for i, w := range waiters {
		// Every welcome carries the final room view.
		welcomes[i].Room = welcomes[len(welcomes)-1].Room
		w.notify(codec.ServerMessage{Type: codec.TypeMatchmakingMatched, Data: welcomes[i]})
	}
}

func (m *Matchmaker) failMatch(waiters []*waiter, err error) {
	code := codec.CodeInvariantViolated
	if ce, ok := err.(*codec.Error); ok {
		code = ce.Code
	}
	for _, w := range waiters {
		w.notify(codec.ServerMessage{Type: codec.TypeError, Code: code, Message: "matchmaking failed"})
	}
}

// disambiguate suffixes duplicate display names so the room's name check
// cannot reject a formed match.
func disambiguate(waiters []*waiter) []string {
	names := make([]string, len(waiters))
	seen := make(map[string]int)
	for i, w := range waiters {
		name := strings.TrimSpace(w.name)
		if name == "" {
			name = fmt.Sprintf("Player %d", i+1)
		}
		key := strings.ToLower(name)
		seen[key]++
		if n := seen[key]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
			seen[strings.ToLower(name)]++
		}
		names[i] = name
	}
	return names
}
