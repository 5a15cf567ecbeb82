// Package codec defines the JSON wire protocol: the envelope, the message
// type tags, and the payload shapes shared by the gateway and the rooms.
package codec

import "encoding/json"

// Client-to-server message types.
const (
	TypePing              = "ping"
	TypeSessionRestore    = "session:restore"
	TypeRoomCreate        = "room:create"
	TypeRoomJoin          = "room:join"
	TypeRoomLeave         = "room:leave"
	TypeRoomAddBot        = "room:addBot"
	TypeMatchmakingJoin   = "matchmaking:join"
	TypeMatchmakingCancel = "matchmaking:cancel"
	TypeGameStart         = "game:start"
	TypeGameHit           = "game:hit"
	TypeGameStay          = "game:stay"
	TypeGamePlayAction    = "game:playActionCard"
	TypeGameNextRound     = "game:nextRound"
)

// Server-to-client message types.
const (
	TypePong               = "pong"
	TypeRoomCreated        = "room:created"
	TypeRoomJoined         = "room:joined"
	TypeRoomUpdated        = "room:updated"
	TypeMatchmakingQueued  = "matchmaking:queued"
	TypeMatchmakingMatched = "matchmaking:matched"
	TypeGameState          = "game:state"
	TypeHostMigrated       = "host:migrated"
	TypePlayerDisconnected = "player:disconnected"
	TypeError              = "error"
)

// Error codes outside the engine's own taxonomy.
const (
	CodeBadMessage           = "BadMessage"
	CodeUnknownType          = "UnknownType"
	CodeRoomNotFound         = "RoomNotFound"
	CodeRoomClosed           = "RoomClosed"
	CodeNotInRoom            = "NotInRoom"
	CodeNotHost              = "NotHost"
	CodeSessionRestoreFailed = "SessionRestoreFailed"
	CodeNameInUse            = "NameInUse"
	CodeInvariantViolated    = "InvariantViolated"
)

// ClientMessage is the inbound envelope.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the outbound envelope. Seq orders room broadcasts; Code
// and Message are only set on the error type.
type ServerMessage struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq,omitempty"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error is a coded error shared by the room, lobby and gateway layers. The
// engine has its own equivalent; both map onto the same wire envelope.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError builds a coded error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Marshal encodes a server message, swallowing the (practically impossible)
// marshal failure into an error envelope.
func Marshal(msg ServerMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		fallback, _ := json.Marshal(ServerMessage{
			Type: TypeError, Code: CodeInvariantViolated, Message: "encode failure",
		})
		return fallback
	}
	return data
}

// MarshalError encodes the error envelope for a coded error.
func MarshalError(code, message string) []byte {
	return Marshal(ServerMessage{Type: TypeError, Code: code, Message: message})
}

// --- client payloads ---

type SessionRestoreRequest struct {
	SessionID string `json:"sessionId"`
	RoomCode  string `json:"roomCode"`
}

type RoomCreateRequest struct {
	PlayerName string `json:"playerName"`
}

type RoomJoinRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type AddBotRequest struct {
	Difficulty string `json:"difficulty,omitempty"`
}

type MatchmakingJoinRequest struct {
	PlayerName string `json:"playerName"`
	MaxPlayers int    `json:"maxPlayers"`
}

type GameActionRequest struct {
	PlayerID       string `json:"playerId"`
	CardID         string `json:"cardId,omitempty"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
}

// --- server payloads ---

// SeatInfo is the public view of one seat. Session ids are capabilities and
// are never listed for other players; IsHost marks the privileged seat.
type SeatInfo struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	IsAI      bool   `json:"isAI"`
	Connected bool   `json:"connected"`
}

type RoomInfo struct {
	RoomCode string     `json:"roomCode"`
	Status   string     `json:"status"`
	Seats    []SeatInfo `json:"seats"`
}

// RoomWelcome answers room:create / room:join / matchmaking:matched with
// the caller's own credentials plus the room view.
type RoomWelcome struct {
	RoomCode  string   `json:"roomCode"`
	SessionID string   `json:"sessionId"`
	PlayerID  string   `json:"playerId"`
	Room      RoomInfo `json:"room"`
}

type MatchmakingQueued struct {
	MaxPlayers int `json:"maxPlayers"`
	Position   int `json:"position"`
}

type HostMigrated struct {
	NewHostSessionID string `json:"newHostSessionId"`
	NewHostName      string `json:"newHostName"`
}

type PlayerDisconnected struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
}

// GameState carries the room view plus the full engine snapshot. The State
// field is typed any to keep the codec free of an engine dependency.
type GameState struct {
	Room  RoomInfo `json:"room"`
	State any      `json:"state"`
}
