// Package gateway terminates websockets and translates between the wire
// protocol and the lobby/room layer. One Connection per socket; sessions
// outlive sockets and are rebound on session:restore.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"flip7-lite/flip7"
	"flip7-lite/internal/codec"
	"flip7-lite/internal/lobby"
	"flip7-lite/internal/logger"
	"flip7-lite/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Gateway routes sockets to rooms.
type Gateway struct {
	lobby      *lobby.Lobby
	matchmaker *lobby.Matchmaker
	upgrader   websocket.Upgrader
	log        *zap.Logger

	mu    sync.RWMutex
	conns map[string]*Connection // by session id
}

// New builds a gateway over the given lobby.
func New(l *lobby.Lobby, m *lobby.Matchmaker) *Gateway {
	return &Gateway{
		lobby:      l,
		matchmaker: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser client is served from anywhere during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:   logger.Get().Named("gateway"),
		conns: make(map[string]*Connection),
	}
}

// Connection is one live socket. sessionID is empty until the client
// creates, joins or restores; connKey identifies the socket itself for the
// matchmaking queue. The send channel is never closed: room actors keep a
// reference while broadcasting, so shutdown is signalled through done and
// stale buffered frames are simply dropped with the connection.
type Connection struct {
	gw      *Gateway
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	connKey string

	mu        sync.Mutex
	sessionID string
	room      *room.Room

	closeOnce sync.Once
}

// HandleWS upgrades the request and runs the connection pumps.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	c := &Connection{
		gw:      g,
		ws:      ws,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		connKey: uuid.NewString(),
	}
	go c.writePump()
	c.readPump()
}

// SendToSession delivers a pre-encoded message to the session's socket, if
// any. A full send buffer marks the consumer too slow and drops the socket;
// the session survives and can restore.
func (g *Gateway) SendToSession(sessionID string, data []byte) {
	g.mu.RLock()
	c := g.conns[sessionID]
	g.mu.RUnlock()
	if c == nil {
		return
	}
	select {
	case c.send <- data:
	default:
		g.log.Warn("send buffer full, dropping connection", zap.String("session", sessionID))
		c.close()
	}
}

func (g *Gateway) register(sessionID string, c *Connection) {
	g.mu.Lock()
	old := g.conns[sessionID]
	g.conns[sessionID] = c
	g.mu.Unlock()
	if old != nil && old != c {
		// A restored session steals the seat from the previous socket.
		old.close()
	}
}

func (g *Gateway) unregister(sessionID string, c *Connection) {
	g.mu.Lock()
	if g.conns[sessionID] == c {
		delete(g.conns, sessionID)
	}
	g.mu.Unlock()
}

func (c *Connection) readPump() {
	defer c.teardown()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.log.Debug("socket read error", zap.Error(err))
			}
			return
		}
		var msg codec.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(codec.CodeBadMessage, "malformed message")
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// teardown runs once when the socket dies: the seat flips to disconnected
// but keeps its session for a later restore.
func (c *Connection) teardown() {
	c.close()
	c.gw.matchmaker.Cancel(c.connKey)

	c.mu.Lock()
	sessionID, r := c.sessionID, c.room
	c.mu.Unlock()
	if sessionID == "" {
		return
	}
	c.gw.unregister(sessionID, c)
	if r != nil {
		if err := r.ConnLost(sessionID); err != nil && !errors.Is(err, room.ErrRoomClosed) {
			c.gw.log.Warn("conn lost notification failed", zap.Error(err))
		}
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

func (c *Connection) bindSession(sessionID string, r *room.Room) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.room = r
	c.mu.Unlock()
	c.gw.register(sessionID, c)
}

func (c *Connection) session() (string, *room.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.room
}

func (c *Connection) reply(msg codec.ServerMessage) {
	select {
	case c.send <- codec.Marshal(msg):
	default:
	}
}

func (c *Connection) sendError(code, message string) {
	select {
	case c.send <- codec.MarshalError(code, message):
	default:
	}
}

func (c *Connection) sendErr(err error) {
	code, message := wireError(err)
	c.sendError(code, message)
}

// wireError maps layer errors onto the error envelope's code/message pair.
func wireError(err error) (string, string) {
	var re *flip7.RuleError
	if errors.As(err, &re) {
		return re.Code, re.Message
	}
	var ce *codec.Error
	if errors.As(err, &ce) {
		return ce.Code, ce.Message
	}
	if errors.Is(err, room.ErrRoomClosed) {
		return codec.CodeRoomClosed, "room closed"
	}
	return codec.CodeInvariantViolated, "internal error"
}

func (c *Connection) dispatch(msg codec.ClientMessage) {
	switch msg.Type {
	case codec.TypePing:
		c.reply(codec.ServerMessage{Type: codec.TypePong})
	case codec.TypeSessionRestore:
		c.handleSessionRestore(msg.Data)
	case codec.TypeRoomCreate:
		c.handleRoomCreate(msg.Data)
	case codec.TypeRoomJoin:
		c.handleRoomJoin(msg.Data)
	case codec.TypeRoomLeave:
		c.handleRoomLeave()
	case codec.TypeRoomAddBot:
		c.handleAddBot(msg.Data)
	case codec.TypeMatchmakingJoin:
		c.handleMatchmakingJoin(msg.Data)
	case codec.TypeMatchmakingCancel:
		c.gw.matchmaker.Cancel(c.connKey)
	case codec.TypeGameStart:
		c.withRoom(func(r *room.Room, sessionID string) error {
			return r.StartGame(sessionID)
		})
	case codec.TypeGameHit:
		c.handleGameAction(msg.Data, func(r *room.Room, sessionID string, req codec.GameActionRequest) error {
			return r.Hit(sessionID, req.PlayerID)
		})
	case codec.TypeGameStay:
		c.handleGameAction(msg.Data, func(r *room.Room, sessionID string, req codec.GameActionRequest) error {
			return r.Stay(sessionID, req.PlayerID)
		})
	case codec.TypeGamePlayAction:
		c.handleGameAction(msg.Data, func(r *room.Room, sessionID string, req codec.GameActionRequest) error {
			return r.PlayActionCard(sessionID, req.PlayerID, req.CardID, req.TargetPlayerID)
		})
	case codec.TypeGameNextRound:
		c.withRoom(func(r *room.Room, sessionID string) error {
			return r.NextRound(sessionID)
		})
	default:
		c.sendError(codec.CodeUnknownType, "unknown message type "+msg.Type)
	}
}

func (c *Connection) handleSessionRestore(data json.RawMessage) {
	var req codec.SessionRestoreRequest
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		c.sendError(codec.CodeSessionRestoreFailed, "missing session id")
		return
	}
	r, ok := c.gw.lobby.FindBySession(req.SessionID)
	if !ok || r.IsClosed() || !r.HasSession(req.SessionID) {
		c.sendError(codec.CodeSessionRestoreFailed, "session unknown or expired")
		return
	}
	if req.RoomCode != "" && req.RoomCode != r.Code {
		c.sendError(codec.CodeSessionRestoreFailed, "session does not belong to that room")
		return
	}

	c.bindSession(req.SessionID, r)
	// ConnResume pushes the full state back through the freshly bound socket.
	if err := r.ConnResume(req.SessionID); err != nil {
		c.sendErr(err)
	}
}

func (c *Connection) handleRoomCreate(data json.RawMessage) {
	var req codec.RoomCreateRequest
	if len(data) > 0 && json.Unmarshal(data, &req) != nil {
		c.sendError(codec.CodeBadMessage, "malformed room:create")
		return
	}
	if sid, _ := c.session(); sid != "" {
		c.sendError(codec.CodeBadMessage, "already seated; leave first")
		return
	}

	welcome, err := c.gw.lobby.CreateRoom(req.PlayerName)
	if err != nil {
		c.sendErr(err)
		return
	}
	r, _ := c.gw.lobby.Room(welcome.RoomCode)
	c.bindSession(welcome.SessionID, r)
	c.reply(codec.ServerMessage{Type: codec.TypeRoomCreated, Data: welcome})
}

func (c *Connection) handleRoomJoin(data json.RawMessage) {
	var req codec.RoomJoinRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomCode == "" {
		c.sendError(codec.CodeBadMessage, "malformed room:join")
		return
	}
	if sid, _ := c.session(); sid != "" {
		c.sendError(codec.CodeBadMessage, "already seated; leave first")
		return
	}

	welcome, err := c.gw.lobby.JoinRoom(req.RoomCode, req.PlayerName)
	if err != nil {
		c.sendErr(err)
		return
	}
	r, _ := c.gw.lobby.Room(welcome.RoomCode)
	c.bindSession(welcome.SessionID, r)
	c.reply(codec.ServerMessage{Type: codec.TypeRoomJoined, Data: welcome})
}

func (c *Connection) handleRoomLeave() {
	sessionID, r := c.session()
	if sessionID == "" || r == nil {
		c.sendError(codec.CodeNotInRoom, "not in a room")
		return
	}
	if err := r.Leave(sessionID); err != nil && !errors.Is(err, room.ErrRoomClosed) {
		c.sendErr(err)
		return
	}
	// Mid-game the room keeps the seat as disconnected; the session index
	// must survive so the player can still restore into it.
	if r.IsClosed() || !r.HasSession(sessionID) {
		c.gw.lobby.ReleaseSession(sessionID)
	}
	c.gw.unregister(sessionID, c)
	c.mu.Lock()
	c.sessionID, c.room = "", nil
	c.mu.Unlock()
}

func (c *Connection) handleAddBot(data json.RawMessage) {
	var req codec.AddBotRequest
	if len(data) > 0 && json.Unmarshal(data, &req) != nil {
		c.sendError(codec.CodeBadMessage, "malformed room:addBot")
		return
	}
	c.withRoom(func(r *room.Room, sessionID string) error {
		return r.AddBot(sessionID, req.Difficulty)
	})
}

func (c *Connection) handleMatchmakingJoin(data json.RawMessage) {
	var req codec.MatchmakingJoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError(codec.CodeBadMessage, "malformed matchmaking:join")
		return
	}
	if sid, _ := c.session(); sid != "" {
		c.sendError(codec.CodeBadMessage, "already seated; leave first")
		return
	}

	position, err := c.gw.matchmaker.Enqueue(c.connKey, req.PlayerName, req.MaxPlayers, func(msg codec.ServerMessage) {
		if msg.Type == codec.TypeMatchmakingMatched {
			if welcome, ok := msg.Data.(codec.RoomWelcome); ok {
				if r, found := c.gw.lobby.Room(welcome.RoomCode); found {
					c.bindSession(welcome.SessionID, r)
				}
			}
		}
		c.reply(msg)
	})
	if err != nil {
		c.sendErr(err)
		return
	}
	if position < req.MaxPlayers {
		c.reply(codec.ServerMessage{
			Type: codec.TypeMatchmakingQueued,
			Data: codec.MatchmakingQueued{MaxPlayers: req.MaxPlayers, Position: position},
		})
	}
}

func (c *Connection) withRoom(fn func(r *room.Room, sessionID string) error) {
	sessionID, r := c.session()
	if sessionID == "" || r == nil {
		c.sendError(codec.CodeNotInRoom, "not in a room")
		return
	}
	if err := fn(r, sessionID); err != nil {
		c.sendErr(err)
	}
}

func (c *Connection) handleGameAction(data json.RawMessage, fn func(r *room.Room, sessionID string, req codec.GameActionRequest) error) {
	var req codec.GameActionRequest
	if err := json.Unmarshal(data, &req); err != nil || req.PlayerID == "" {
		c.sendError(codec.CodeBadMessage, "malformed game action")
		return
	}
	c.withRoom(func(r *room.Room, sessionID string) error {
		return fn(r, sessionID, req)
	})
}
