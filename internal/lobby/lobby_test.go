package lobby

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flip7-lite/internal/codec"
	"flip7-lite/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		TargetScore:   200,
		AIThink:       time.Millisecond,
		AIHardTimeout: time.Second,
		HostGrace:     time.Second,
		RoomEmptyTTL:  time.Minute,
	}
}

func TestCreateRoomIssuesCredentials(t *testing.T) {
	l := New(testConfig())
	defer l.Close()

	welcome, err := l.CreateRoom("Ada")
	require.NoError(t, err)
	require.Len(t, welcome.RoomCode, codeLength)
	for _, r := range welcome.RoomCode {
		require.True(t, strings.ContainsRune(codeAlphabet, r), "code rune %q outside alphabet", r)
	}
	require.NotEmpty(t, welcome.SessionID)
	require.NotEmpty(t, welcome.PlayerID)
	require.NotEqual(t, welcome.SessionID, welcome.PlayerID)

	require.Len(t, welcome.Room.Seats, 1)
	require.True(t, welcome.Room.Seats[0].IsHost)
	require.Equal(t, "Ada", welcome.Room.Seats[0].Name)

	r, ok := l.FindBySession(welcome.SessionID)
	require.True(t, ok)
	require.Equal(t, welcome.RoomCode, r.Code)
	require.Equal(t, 1, l.RoomCount())
}

func TestJoinRoom(t *testing.T) {
	l := New(testConfig())
	defer l.Close()

	_, err := l.JoinRoom("NOSUCH", "Grace")
	ce, ok := err.(*codec.Error)
	require.True(t, ok)
	require.Equal(t, codec.CodeRoomNotFound, ce.Code)

	host, err := l.CreateRoom("Ada")
	require.NoError(t, err)

	guest, err := l.JoinRoom(host.RoomCode, "Grace")
	require.NoError(t, err)
	require.Equal(t, host.RoomCode, guest.RoomCode)
	require.NotEqual(t, host.SessionID, guest.SessionID)
	require.Len(t, guest.Room.Seats, 2)

	// A rejected join must not leave a dangling session.
	_, err = l.JoinRoom(host.RoomCode, "ada")
	ce, ok = err.(*codec.Error)
	require.True(t, ok)
	require.Equal(t, codec.CodeNameInUse, ce.Code)
}

func TestRoomCloseEvictsSessions(t *testing.T) {
	l := New(testConfig())
	defer l.Close()

	welcome, err := l.CreateRoom("Ada")
	require.NoError(t, err)

	r, ok := l.Room(welcome.RoomCode)
	require.True(t, ok)
	r.Close()

	require.Eventually(t, func() bool {
		_, ok := l.Room(welcome.RoomCode)
		if ok {
			return false
		}
		_, ok = l.FindBySession(welcome.SessionID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestMatchmakerFormsRoomWhenQueueFills(t *testing.T) {
	l := New(testConfig())
	defer l.Close()
	m := NewMatchmaker(l)

	var first, second []codec.ServerMessage
	pos, err := m.Enqueue("c1", "Ada", 2, func(msg codec.ServerMessage) { first = append(first, msg) })
	require.NoError(t, err)
	require.Equal(t, 1, pos)

	pos, err = m.Enqueue("c2", "Grace", 2, func(msg codec.ServerMessage) { second = append(second, msg) })
	require.NoError(t, err)
	require.Equal(t, 2, pos)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	require.Equal(t, codec.TypeMatchmakingMatched, first[0].Type)
	require.Equal(t, codec.TypeMatchmakingMatched, second[0].Type)

	hostWelcome := first[0].Data.(codec.RoomWelcome)
	guestWelcome := second[0].Data.(codec.RoomWelcome)
	require.Equal(t, hostWelcome.RoomCode, guestWelcome.RoomCode)
	require.NotEqual(t, hostWelcome.SessionID, guestWelcome.SessionID)

	r, ok := l.Room(hostWelcome.RoomCode)
	require.True(t, ok)
	info := r.Info()
	require.Len(t, info.Seats, 2)
	// First in line hosts.
	require.True(t, info.Seats[0].IsHost)
	require.Equal(t, "Ada", info.Seats[0].Name)
}

func TestMatchmakerValidatesPartySize(t *testing.T) {
	l := New(testConfig())
	defer l.Close()
	m := NewMatchmaker(l)

	for _, size := range []int{0, 1, 7} {
		_, err := m.Enqueue("c1", "Ada", size, func(codec.ServerMessage) {})
		ce, ok := err.(*codec.Error)
		require.True(t, ok, "size %d", size)
		require.Equal(t, codec.CodeBadMessage, ce.Code)
	}
}

func TestMatchmakerCancelAndRequeue(t *testing.T) {
	l := New(testConfig())
	defer l.Close()
	m := NewMatchmaker(l)

	_, err := m.Enqueue("c1", "Ada", 3, func(codec.ServerMessage) {})
	require.NoError(t, err)
	m.Cancel("c1")

	// With Ada gone two more players must not form a party of three.
	_, err = m.Enqueue("c2", "Grace", 3, func(codec.ServerMessage) {})
	require.NoError(t, err)
	pos, err := m.Enqueue("c3", "Joan", 3, func(codec.ServerMessage) {})
	require.NoError(t, err)
	require.Equal(t, 2, pos)
	require.Equal(t, 0, l.RoomCount())

	// Re-joining a queue replaces the earlier entry instead of stacking.
	pos, err = m.Enqueue("c2", "Grace", 3, func(codec.ServerMessage) {})
	require.NoError(t, err)
	require.Equal(t, 2, pos)
}

func TestMatchmakerDisambiguatesNames(t *testing.T) {
	l := New(testConfig())
	defer l.Close()
	m := NewMatchmaker(l)

	var msgs []codec.ServerMessage
	capture := func(msg codec.ServerMessage) { msgs = append(msgs, msg) }
	_, err := m.Enqueue("c1", "Ada", 2, capture)
	require.NoError(t, err)
	_, err = m.Enqueue("c2", "ada", 2, capture)
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	require.Equal(t, codec.TypeMatchmakingMatched, msgs[0].Type)
	welcome := msgs[1].Data.(codec.RoomWelcome)
	r, ok := l.Room(welcome.RoomCode)
	require.True(t, ok)
	names := []string{}
	for _, s := range r.Info().Seats {
		names = append(names, s.Name)
	}
	require.ElementsMatch(t, []string{"Ada", "ada (2)"}, names)
}
