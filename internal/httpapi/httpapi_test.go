package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flip7-lite/flip7"
	"flip7-lite/internal/stats"
)

func newTestRouter(t *testing.T, statsSvc stats.Service) http.Handler {
	t.Helper()
	if statsSvc == nil {
		statsSvc = stats.NewNoop()
	}
	return New(statsSvc, nil).Router()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSoloStartAndHit(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/solo/start", soloStartRequest{
		PlayerName: "Ada",
		Bots:       []soloBot{{Difficulty: "aggressive"}},
		Seed:       42,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[soloResponse](t, rec)
	require.Len(t, created.View.Players, 2)
	require.Equal(t, flip7.StatusWaiting, created.View.Status)

	// The echoed state drives the deal and every later move.
	rec = doJSON(t, router, http.MethodPost, "/api/solo/round/start", soloMoveRequest{State: created.State})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[soloResponse](t, rec)
	require.Equal(t, flip7.StatusPlaying, resp.View.Status)
	require.Equal(t, "you", resp.View.CurrentPlayerID)

	rec = doJSON(t, router, http.MethodPost, "/api/solo/hit", soloMoveRequest{
		State: resp.State, PlayerID: "you",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode[soloResponse](t, rec)
	require.NotEmpty(t, next.Effects)
	require.NotEqual(t, resp.State.Deck, next.State.Deck)
}

// soloDeal starts a solo game and deals the first round.
func soloDeal(t *testing.T, router http.Handler, seed int64) soloResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/solo/start", soloStartRequest{Seed: seed})
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[soloResponse](t, rec)
	rec = doJSON(t, router, http.MethodPost, "/api/solo/round/start", soloMoveRequest{State: created.State})
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[soloResponse](t, rec)
}

func TestSoloRejectsOutOfTurnMove(t *testing.T) {
	router := newTestRouter(t, nil)
	resp := soloDeal(t, router, 42)

	rec := doJSON(t, router, http.MethodPost, "/api/solo/hit", soloMoveRequest{
		State: resp.State, PlayerID: "bot-1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]string](t, rec)
	require.Equal(t, flip7.ErrNotYourTurn.Code, body["code"])
}

func TestSoloAIDecision(t *testing.T) {
	router := newTestRouter(t, nil)
	resp := soloDeal(t, router, 42)

	rec := doJSON(t, router, http.MethodPost, "/api/solo/ai/decision", soloMoveRequest{
		State: resp.State, PlayerID: "bot-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decision := decode[soloDecisionResponse](t, rec)
	require.Contains(t, []string{"hit", "stay", "play_action"}, decision.Kind)

	rec = doJSON(t, router, http.MethodPost, "/api/solo/ai/decision", soloMoveRequest{
		State: resp.State, PlayerID: "nobody",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSoloMalformedBody(t *testing.T) {
	router := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/solo/hit", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecentMatches(t *testing.T) {
	store, err := stats.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.RecordMatch(context.Background(), stats.MatchRecord{
		RoomCode:   "AAAAAA",
		Rounds:     7,
		WinnerName: "Ada",
		FinishedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Players: []stats.PlayerLine{
			{PlayerID: "p1", Name: "Ada", Score: 203, Won: true},
			{PlayerID: "p2", Name: "Grace", Score: 111},
		},
	}))

	router := newTestRouter(t, store)
	rec := doJSON(t, router, http.MethodGet, "/api/matches/recent?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Matches []stats.MatchSummary `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Matches, 1)
	require.Equal(t, "AAAAAA", body.Matches[0].RoomCode)
	require.Equal(t, 203, body.Matches[0].WinnerScore)
}
