// Package httpapi serves the REST surface: health, the websocket upgrade
// path, the recent-match listing and the stateless single-player mode where
// the client carries the full game state between requests.
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flip7-lite/flip7"
	"flip7-lite/flip7/ai"
	"flip7-lite/internal/codec"
	"flip7-lite/internal/logger"
	"flip7-lite/internal/stats"
)

// API wires the REST handlers.
type API struct {
	stats stats.Service
	ws    http.HandlerFunc
	log   *zap.Logger
}

// New builds the API. ws may be nil in tests.
func New(statsSvc stats.Service, ws http.HandlerFunc) *API {
	return &API{stats: statsSvc, ws: ws, log: logger.Get().Named("httpapi")}
}

// Router assembles the gin engine.
func (a *API) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if a.ws != nil {
		r.GET("/ws", gin.WrapF(a.ws))
	}

	solo := r.Group("/api/solo")
	{
		solo.POST("/start", a.soloStart)
		solo.POST("/round/start", a.soloRoundStart)
		solo.POST("/hit", a.soloHit)
		solo.POST("/stay", a.soloStay)
		solo.POST("/action", a.soloAction)
		solo.POST("/round-next", a.soloNextRound)
		solo.POST("/ai/decision", a.soloAIDecision)
	}

	r.GET("/api/matches/recent", a.recentMatches)
	return r
}

// --- payloads ---

type soloBot struct {
	Name       string `json:"name"`
	Difficulty string `json:"difficulty"`
}

type soloStartRequest struct {
	PlayerName  string    `json:"playerName"`
	Bots        []soloBot `json:"bots"`
	TargetScore int       `json:"targetScore"`
	Seed        int64     `json:"seed"`
}

type soloMoveRequest struct {
	State          flip7.State `json:"state"`
	PlayerID       string      `json:"playerId"`
	CardID         string      `json:"cardId,omitempty"`
	TargetPlayerID string      `json:"targetPlayerId,omitempty"`
}

// soloResponse returns both forms: the opaque state the client must echo
// back, and the same view the websocket mode broadcasts.
type soloResponse struct {
	State   flip7.State    `json:"state"`
	View    flip7.Snapshot `json:"view"`
	Effects []flip7.Effect `json:"effects,omitempty"`
}

type soloDecisionResponse struct {
	Kind     string `json:"kind"`
	CardID   string `json:"cardId,omitempty"`
	TargetID string `json:"targetId,omitempty"`
}

// --- handlers ---

func (a *API) soloStart(c *gin.Context) {
	var req soloStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, codec.CodeBadMessage, "malformed request body")
		return
	}
	if len(req.Bots) == 0 {
		req.Bots = []soloBot{{Difficulty: ai.DifficultyModerate}}
	}
	name := req.PlayerName
	if name == "" {
		name = "You"
	}

	cfg := flip7.Config{TargetScore: req.TargetScore, Seed: req.Seed}
	cfg.Seats = append(cfg.Seats, flip7.SeatConfig{ID: "you", Name: name})
	for i, bot := range req.Bots {
		botName := bot.Name
		if botName == "" {
			botName = fmt.Sprintf("Bot %d", i+1)
		}
		cfg.Seats = append(cfg.Seats, flip7.SeatConfig{
			ID:         fmt.Sprintf("bot-%d", i+1),
			Name:       botName,
			AI:         true,
			Difficulty: bot.Difficulty,
		})
	}

	// start only builds the table; round/start deals the first round.
	game, err := flip7.NewGame(cfg)
	if err != nil {
		writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, soloResponse{State: game.Export(), View: game.Snapshot()})
}

func (a *API) soloRoundStart(c *gin.Context) {
	a.soloMove(c, func(g *flip7.Game, req soloMoveRequest) ([]flip7.Effect, error) {
		return g.StartRound()
	})
}

func (a *API) soloHit(c *gin.Context) {
	a.soloMove(c, func(g *flip7.Game, req soloMoveRequest) ([]flip7.Effect, error) {
		return g.Hit(req.PlayerID)
	})
}

func (a *API) soloStay(c *gin.Context) {
	a.soloMove(c, func(g *flip7.Game, req soloMoveRequest) ([]flip7.Effect, error) {
		return g.Stay(req.PlayerID)
	})
}

func (a *API) soloAction(c *gin.Context) {
	a.soloMove(c, func(g *flip7.Game, req soloMoveRequest) ([]flip7.Effect, error) {
		return g.PlayAction(req.PlayerID, req.CardID, req.TargetPlayerID)
	})
}

func (a *API) soloNextRound(c *gin.Context) {
	a.soloMove(c, func(g *flip7.Game, req soloMoveRequest) ([]flip7.Effect, error) {
		return g.StartNextRound()
	})
}

func (a *API) soloMove(c *gin.Context, apply func(*flip7.Game, soloMoveRequest) ([]flip7.Effect, error)) {
	var req soloMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, codec.CodeBadMessage, "malformed request body")
		return
	}
	game, err := flip7.Restore(req.State)
	if err != nil {
		badRequest(c, codec.CodeBadMessage, err.Error())
		return
	}
	effects, err := apply(game, req)
	if err != nil {
		writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, soloResponse{State: game.Export(), View: game.Snapshot(), Effects: effects})
}

// soloAIDecision computes what the bot would do without mutating anything;
// the client then submits the decision through the normal move endpoints.
func (a *API) soloAIDecision(c *gin.Context) {
	var req soloMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, codec.CodeBadMessage, "malformed request body")
		return
	}
	game, err := flip7.Restore(req.State)
	if err != nil {
		badRequest(c, codec.CodeBadMessage, err.Error())
		return
	}

	snap := game.Snapshot()
	playerID := req.PlayerID
	if playerID == "" {
		playerID = snap.CurrentPlayerID
	}
	var difficulty string
	found := false
	for _, p := range snap.Players {
		if p.ID == playerID {
			difficulty = p.Difficulty
			found = true
			break
		}
	}
	if !found {
		badRequest(c, codec.CodeBadMessage, "unknown player id")
		return
	}

	view := ai.BuildView(snap, game.DeckValueCounts(), playerID)
	decision := ai.New(difficulty).Decide(view)
	c.JSON(http.StatusOK, soloDecisionResponse{
		Kind:     string(decision.Kind),
		CardID:   decision.CardID,
		TargetID: decision.TargetID,
	})
}

func (a *API) recentMatches(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	summaries, err := a.stats.RecentMatches(c.Request.Context(), limit)
	if err != nil {
		a.log.Error("recent matches query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code": codec.CodeInvariantViolated, "message": "stats unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": summaries})
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": code, "message": message})
}

func writeGameError(c *gin.Context, err error) {
	if re, ok := flip7.AsRuleError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"code": re.Code, "message": re.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code": codec.CodeInvariantViolated, "message": "internal error",
	})
}
