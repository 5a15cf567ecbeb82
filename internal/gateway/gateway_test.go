package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flip7-lite/internal/codec"
	"flip7-lite/internal/config"
	"flip7-lite/internal/lobby"
)

func newTestGateway(t *testing.T) (*Gateway, *lobby.Lobby) {
	t.Helper()
	cfg := config.Config{
		TargetScore:   200,
		AIThink:       time.Millisecond,
		AIHardTimeout: time.Second,
		HostGrace:     time.Second,
		RoomEmptyTTL:  time.Minute,
	}
	l := lobby.New(cfg)
	t.Cleanup(l.Close)
	g := New(l, lobby.NewMatchmaker(l))
	l.Bind(g.SendToSession)
	return g, l
}

// newTestConn builds a connection without a socket; dispatch only touches the
// send channel.
func newTestConn(g *Gateway, key string) *Connection {
	return &Connection{gw: g, send: make(chan []byte, 64), done: make(chan struct{}), connKey: key}
}

func (c *Connection) drain(t *testing.T) []codec.ServerMessage {
	t.Helper()
	var out []codec.ServerMessage
	for {
		select {
		case data := <-c.send:
			var msg codec.ServerMessage
			require.NoError(t, json.Unmarshal(data, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func clientMsg(t *testing.T, msgType string, payload any) codec.ClientMessage {
	t.Helper()
	msg := codec.ClientMessage{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		msg.Data = data
	}
	return msg
}

func findType(msgs []codec.ServerMessage, msgType string) *codec.ServerMessage {
	for i := range msgs {
		if msgs[i].Type == msgType {
			return &msgs[i]
		}
	}
	return nil
}

func TestPingPong(t *testing.T) {
	g, _ := newTestGateway(t)
	c := newTestConn(g, "k1")

	c.dispatch(clientMsg(t, codec.TypePing, nil))
	msgs := c.drain(t)
	require.Len(t, msgs, 1)
	require.Equal(t, codec.TypePong, msgs[0].Type)
}

func TestUnknownTypeRejected(t *testing.T) {
	g, _ := newTestGateway(t)
	c := newTestConn(g, "k1")

	c.dispatch(codec.ClientMessage{Type: "game:cheat"})
	msgs := c.drain(t)
	require.Len(t, msgs, 1)
	require.Equal(t, codec.TypeError, msgs[0].Type)
	require.Equal(t, codec.CodeUnknownType, msgs[0].Code)
}

func TestRoomCreateBindsSession(t *testing.T) {
	g, l := newTestGateway(t)
	c := newTestConn(g, "k1")

	c.dispatch(clientMsg(t, codec.TypeRoomCreate, codec.RoomCreateRequest{PlayerName: "Ada"}))
	msgs := c.drain(t)
	created := findType(msgs, codec.TypeRoomCreated)
	require.NotNil(t, created)

	var welcome codec.RoomWelcome
	remarshal(t, created.Data, &welcome)
	require.NotEmpty(t, welcome.SessionID)
	sid, r := c.session()
	require.Equal(t, welcome.SessionID, sid)
	require.NotNil(t, r)
	require.Equal(t, 1, l.RoomCount())

	// A second create on the same socket is refused.
	c.dispatch(clientMsg(t, codec.TypeRoomCreate, codec.RoomCreateRequest{PlayerName: "Ada"}))
	msgs = c.drain(t)
	require.Len(t, msgs, 1)
	require.Equal(t, codec.CodeBadMessage, msgs[0].Code)
}

func TestRoomJoinAndBroadcastRouting(t *testing.T) {
	g, _ := newTestGateway(t)
	host := newTestConn(g, "k1")
	guest := newTestConn(g, "k2")

	host.dispatch(clientMsg(t, codec.TypeRoomCreate, codec.RoomCreateRequest{PlayerName: "Ada"}))
	var hostWelcome codec.RoomWelcome
	remarshal(t, findType(host.drain(t), codec.TypeRoomCreated).Data, &hostWelcome)

	guest.dispatch(clientMsg(t, codec.TypeRoomJoin, codec.RoomJoinRequest{
		RoomCode: hostWelcome.RoomCode, PlayerName: "Grace",
	}))
	guestMsgs := guest.drain(t)
	require.NotNil(t, findType(guestMsgs, codec.TypeRoomJoined))

	// The host's socket saw the join through the room broadcast.
	hostMsgs := host.drain(t)
	updated := findType(hostMsgs, codec.TypeRoomUpdated)
	require.NotNil(t, updated)
	var info codec.RoomInfo
	remarshal(t, updated.Data, &info)
	require.Len(t, info.Seats, 2)
}

func TestGameActionWithoutRoom(t *testing.T) {
	g, _ := newTestGateway(t)
	c := newTestConn(g, "k1")

	c.dispatch(clientMsg(t, codec.TypeGameHit, codec.GameActionRequest{PlayerID: "p1"}))
	msgs := c.drain(t)
	require.Len(t, msgs, 1)
	require.Equal(t, codec.CodeNotInRoom, msgs[0].Code)
}

func TestMatchmakingFlowBindsBothSockets(t *testing.T) {
	g, _ := newTestGateway(t)
	a := newTestConn(g, "k1")
	b := newTestConn(g, "k2")

	a.dispatch(clientMsg(t, codec.TypeMatchmakingJoin, codec.MatchmakingJoinRequest{PlayerName: "Ada", MaxPlayers: 2}))
	msgs := a.drain(t)
	queued := findType(msgs, codec.TypeMatchmakingQueued)
	require.NotNil(t, queued)

	b.dispatch(clientMsg(t, codec.TypeMatchmakingJoin, codec.MatchmakingJoinRequest{PlayerName: "Grace", MaxPlayers: 2}))

	aMatched := findType(a.drain(t), codec.TypeMatchmakingMatched)
	bMatched := findType(b.drain(t), codec.TypeMatchmakingMatched)
	require.NotNil(t, aMatched)
	require.NotNil(t, bMatched)

	aSid, aRoom := a.session()
	bSid, bRoom := b.session()
	require.NotEmpty(t, aSid)
	require.NotEmpty(t, bSid)
	require.NotEqual(t, aSid, bSid)
	require.Same(t, aRoom, bRoom)
}

func TestSessionRestore(t *testing.T) {
	g, _ := newTestGateway(t)
	c := newTestConn(g, "k1")

	c.dispatch(clientMsg(t, codec.TypeRoomCreate, codec.RoomCreateRequest{PlayerName: "Ada"}))
	var welcome codec.RoomWelcome
	remarshal(t, findType(c.drain(t), codec.TypeRoomCreated).Data, &welcome)

	fresh := newTestConn(g, "k2")
	fresh.dispatch(clientMsg(t, codec.TypeSessionRestore, codec.SessionRestoreRequest{
		SessionID: welcome.SessionID, RoomCode: welcome.RoomCode,
	}))
	msgs := fresh.drain(t)
	require.Nil(t, findType(msgs, codec.TypeError))
	require.NotNil(t, findType(msgs, codec.TypeRoomUpdated))
	sid, _ := fresh.session()
	require.Equal(t, welcome.SessionID, sid)

	bogus := newTestConn(g, "k3")
	bogus.dispatch(clientMsg(t, codec.TypeSessionRestore, codec.SessionRestoreRequest{SessionID: "nope"}))
	msgs = bogus.drain(t)
	require.Len(t, msgs, 1)
	require.Equal(t, codec.CodeSessionRestoreFailed, msgs[0].Code)
}

func TestSendToSessionSurvivesOverflow(t *testing.T) {
	g, _ := newTestGateway(t)
	c := &Connection{gw: g, send: make(chan []byte, 1), done: make(chan struct{}), connKey: "k1"}
	g.register("s1", c)

	g.SendToSession("s1", []byte(`{"type":"pong"}`))
	// The buffer is full now; this send drops the connection.
	g.SendToSession("s1", []byte(`{"type":"pong"}`))
	select {
	case <-c.done:
	default:
		t.Fatal("overflow did not drop the connection")
	}

	// Later broadcasts against the dead connection must be harmless.
	g.SendToSession("s1", []byte(`{"type":"pong"}`))
	g.SendToSession("s1", []byte(`{"type":"pong"}`))
}

func TestLeaveMidGameKeepsSessionRestorable(t *testing.T) {
	g, _ := newTestGateway(t)
	host := newTestConn(g, "k1")
	guest := newTestConn(g, "k2")

	host.dispatch(clientMsg(t, codec.TypeRoomCreate, codec.RoomCreateRequest{PlayerName: "Ada"}))
	var hostWelcome codec.RoomWelcome
	remarshal(t, findType(host.drain(t), codec.TypeRoomCreated).Data, &hostWelcome)

	guest.dispatch(clientMsg(t, codec.TypeRoomJoin, codec.RoomJoinRequest{
		RoomCode: hostWelcome.RoomCode, PlayerName: "Grace",
	}))
	var guestWelcome codec.RoomWelcome
	remarshal(t, findType(guest.drain(t), codec.TypeRoomJoined).Data, &guestWelcome)

	host.dispatch(clientMsg(t, codec.TypeGameStart, nil))
	require.Nil(t, findType(host.drain(t), codec.TypeError))

	// Leaving mid-game only marks the seat disconnected; the session stays
	// restorable until the room closes.
	guest.dispatch(clientMsg(t, codec.TypeRoomLeave, nil))
	require.Nil(t, findType(guest.drain(t), codec.TypeError))

	fresh := newTestConn(g, "k3")
	fresh.dispatch(clientMsg(t, codec.TypeSessionRestore, codec.SessionRestoreRequest{
		SessionID: guestWelcome.SessionID, RoomCode: guestWelcome.RoomCode,
	}))
	msgs := fresh.drain(t)
	require.Nil(t, findType(msgs, codec.TypeError))
	require.NotNil(t, findType(msgs, codec.TypeGameState))
	sid, _ := fresh.session()
	require.Equal(t, guestWelcome.SessionID, sid)
}

func TestLeaveWhileWaitingReleasesSession(t *testing.T) {
	g, _ := newTestGateway(t)
	host := newTestConn(g, "k1")
	guest := newTestConn(g, "k2")

	host.dispatch(clientMsg(t, codec.TypeRoomCreate, codec.RoomCreateRequest{PlayerName: "Ada"}))
	var hostWelcome codec.RoomWelcome
	remarshal(t, findType(host.drain(t), codec.TypeRoomCreated).Data, &hostWelcome)

	guest.dispatch(clientMsg(t, codec.TypeRoomJoin, codec.RoomJoinRequest{
		RoomCode: hostWelcome.RoomCode, PlayerName: "Grace",
	}))
	var guestWelcome codec.RoomWelcome
	remarshal(t, findType(guest.drain(t), codec.TypeRoomJoined).Data, &guestWelcome)

	// In the waiting phase a leave removes the seat outright, so the
	// session dies with it.
	guest.dispatch(clientMsg(t, codec.TypeRoomLeave, nil))
	require.Nil(t, findType(guest.drain(t), codec.TypeError))

	fresh := newTestConn(g, "k3")
	fresh.dispatch(clientMsg(t, codec.TypeSessionRestore, codec.SessionRestoreRequest{
		SessionID: guestWelcome.SessionID, RoomCode: guestWelcome.RoomCode,
	}))
	msgs := fresh.drain(t)
	require.Len(t, msgs, 1)
	require.Equal(t, codec.CodeSessionRestoreFailed, msgs[0].Code)
}

// remarshal converts an any-typed payload back into its concrete shape.
func remarshal(t *testing.T, from any, into any) {
	t.Helper()
	data, err := json.Marshal(from)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, into))
}
