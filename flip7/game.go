package flip7

import (
	"math/rand"
	"sync"
	"time"

	"flip7-lite/card"
)

// Game is the authoritative state machine for one match. All methods are
// safe for concurrent use; inputs are validated and rejected with a
// *RuleError, internal state is only mutated on success.
type Game struct {
	mu sync.Mutex

	targetScore int
	rng         *rand.Rand

	players []*Player
	deck    *card.Deck

	status     Status
	round      int
	dealerIdx  int
	currentIdx int

	pending   *PendingAction
	flipThree []flipThreeFrame

	history  []RoundRecord
	best     *BestRound
	winnerID string
}

// NewGame validates the config and creates a game in the Waiting phase.
func NewGame(cfg Config) (*Game, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Game{
		targetScore: cfg.TargetScore,
		rng:         rand.New(rand.NewSource(seed)),
		deck:        card.NewDeck(len(cfg.Seats), card.WithSeed(seed)),
		status:      StatusWaiting,
		currentIdx:  -1,
	}
	for _, s := range cfg.Seats {
		g.players = append(g.players, newPlayer(s))
	}
	return g, nil
}

func (g *Game) playerIndex(playerID string) int {
	for i, p := range g.players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// StartRound deals the first round. Only valid from the Waiting phase.
func (g *Game) StartRound() ([]Effect, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusWaiting {
		if g.status == StatusGameEnd {
			return nil, ErrGameAlreadyEnded
		}
		return nil, ErrWrongPhase
	}
	g.round = 1
	// The last seat deals first so the first seat opens round one.
	g.dealerIdx = len(g.players) - 1
	return g.dealRoundLocked()
}

// StartNextRound settles the previous round's standings: it either declares
// a winner when the target score is reached or deals the next round with the
// dealer button advanced.
func (g *Game) StartNextRound() ([]Effect, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.status {
	case StatusRoundEnd:
	case StatusGameEnd:
		return nil, ErrGameAlreadyEnded
	default:
		return nil, ErrWrongPhase
	}

	if winner := g.leaderAtOrAboveTargetLocked(); winner != nil {
		g.status = StatusGameEnd
		g.winnerID = winner.ID
		return []Effect{{Kind: EffectGameEnded, PlayerID: winner.ID, Value: winner.Score}}, nil
	}

	g.round++
	g.dealerIdx = (g.dealerIdx + 1) % len(g.players)
	return g.dealRoundLocked()
}

// leaderAtOrAboveTargetLocked returns the winning player, or nil if the
// target has not been reached. Ties break by seat order.
func (g *Game) leaderAtOrAboveTargetLocked() *Player {
	var winner *Player
	for _, p := range g.players {
		if p.Score < g.targetScore {
			continue
		}
		if winner == nil || p.Score > winner.Score {
			winner = p
		}
	}
	return winner
}

// dealRoundLocked sweeps the previous hands back to the deck and deals one
// number card to every seat, starting left of the dealer. Modifier and
// action cards flipped during the deal are set aside and returned under the
// draw pile, so the opening card is always a number.
func (g *Game) dealRoundLocked() ([]Effect, error) {
	for _, p := range g.players {
		p.sweepHand(g.deck)
	}
	g.pending = nil
	g.flipThree = nil

	effects := []Effect{{Kind: EffectRoundStarted, Value: g.round}}
	n := len(g.players)
	for i := 1; i <= n; i++ {
		p := g.players[(g.dealerIdx+i)%n]
		var aside []card.Card
		for {
			c, err := g.deck.Draw()
			if err != nil {
				return nil, ErrDeckExhausted
			}
			if c.Kind == card.KindNumber {
				p.NumberCards = append(p.NumberCards, c)
				effects = append(effects, Effect{Kind: EffectCardDrawn, PlayerID: p.ID, Card: &c})
				break
			}
			aside = append(aside, c)
		}
		g.deck.ReturnToBottom(aside...)
	}

	g.status = StatusPlaying
	g.currentIdx = (g.dealerIdx + 1) % n
	return effects, nil
}

// Hit draws one card for the current player and applies it. During a
// FlipThree the forced draws arrive through Hit as well, issued by the
// target seat.
func (g *Game) Hit(playerID string) ([]Effect, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkTurnLocked(playerID); err != nil {
		return nil, err
	}
	if g.pending != nil {
		return nil, ErrPendingActionCardBlocks
	}

	p := g.players[g.currentIdx]
	idx := g.currentIdx

	drawn, err := g.deck.Draw()
	if err != nil {
		return nil, ErrDeckExhausted
	}
	effects := []Effect{{Kind: EffectCardDrawn, PlayerID: p.ID, Card: &drawn}}

	inFlip := len(g.flipThree) > 0 && g.topFrame().targetIdx == idx
	if inFlip {
		g.topFrame().remaining--
	}

	switch drawn.Kind {
	case card.KindNumber:
		effects = append(effects, g.applyNumberLocked(p, idx, drawn)...)
	case card.KindModifier:
		p.ModifierCards = append(p.ModifierCards, drawn)
	case card.KindAction:
		effects = append(effects, g.applyActionDrawLocked(p, drawn)...)
	}

	// Turn resolution. A player who left the round already resolved control
	// inside applyNumberLocked; a fresh pending action pauses everything
	// until PlayAction.
	if p.Active && g.pending == nil && g.status == StatusPlaying {
		g.resumeFlipThreeLocked(idx)
	}
	if g.status == StatusRoundEnd {
		effects = append(effects, Effect{Kind: EffectRoundEnded, Value: g.round})
	}
	return effects, nil
}

func (g *Game) applyNumberLocked(p *Player, idx int, drawn card.Card) []Effect {
	if !p.hasNumberValue(drawn.Value) {
		p.NumberCards = append(p.NumberCards, drawn)
		if p.uniqueNumbers() >= HandLimit {
			p.Flip7 = true
			g.deactivateLocked(p, idx, EffectFlip7Achieved)
			return []Effect{{Kind: EffectFlip7Achieved, PlayerID: p.ID, Value: p.handScore()}}
		}
		return nil
	}

	// Duplicate value: a spendable SecondChance absorbs it, otherwise bust.
	if sc := p.unusedSecondChance(); sc != nil {
		p.UsedSecondChance[sc.ID] = true
		g.deck.Discard(drawn)
		saved := *sc
		return []Effect{{Kind: EffectSecondChanceConsumed, PlayerID: p.ID, Card: &saved, Value: drawn.Value}}
	}
	g.deck.Discard(drawn)
	p.Busted = true
	g.deactivateLocked(p, idx, EffectPlayerBusted)
	return []Effect{{Kind: EffectPlayerBusted, PlayerID: p.ID, Value: drawn.Value}}
}

func (g *Game) applyActionDrawLocked(p *Player, drawn card.Card) []Effect {
	switch drawn.Action {
	case card.ActionSecondChance:
		if p.unusedSecondChance() == nil {
			p.ActionCards = append(p.ActionCards, drawn)
			return nil
		}
		// Already covered: transfer to a random active player holding none.
		var candidates []*Player
		for _, other := range g.players {
			if other != p && other.Active && !other.holdsSecondChance() {
				candidates = append(candidates, other)
			}
		}
		if len(candidates) == 0 {
			g.deck.Discard(drawn)
			return []Effect{{Kind: EffectCardDiscarded, PlayerID: p.ID, Card: &drawn}}
		}
		receiver := candidates[g.rng.Intn(len(candidates))]
		receiver.ActionCards = append(receiver.ActionCards, drawn)
		return []Effect{{Kind: EffectSecondChancePassed, PlayerID: p.ID, TargetID: receiver.ID, Card: &drawn}}
	default:
		// Freeze and FlipThree go to the hand and must be targeted before
		// any other input is accepted.
		p.ActionCards = append(p.ActionCards, drawn)
		g.pending = &PendingAction{PlayerID: p.ID, CardID: drawn.ID, Action: drawn.Action}
		return nil
	}
}

// Stay banks the current hand and removes the player from the round.
func (g *Game) Stay(playerID string) ([]Effect, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkTurnLocked(playerID); err != nil {
		return nil, err
	}
	if g.pending != nil {
		return nil, ErrPendingActionCardBlocks
	}
	if len(g.flipThree) > 0 && g.topFrame().targetIdx == g.currentIdx {
		return nil, ErrPendingFlipThreeBlocks
	}

	p := g.players[g.currentIdx]
	idx := g.currentIdx
	p.Stayed = true
	effects := []Effect{{Kind: EffectPlayerStayed, PlayerID: p.ID, Value: p.handScore()}}
	g.deactivateLocked(p, idx, EffectPlayerStayed)
	if g.status == StatusRoundEnd {
		effects = append(effects, Effect{Kind: EffectRoundEnded, Value: g.round})
	}
	return effects, nil
}

// PlayAction resolves the pending Freeze or FlipThree against a target.
func (g *Game) PlayAction(playerID, cardID, targetID string) ([]Effect, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusPlaying {
		if g.status == StatusGameEnd {
			return nil, ErrGameAlreadyEnded
		}
		return nil, ErrWrongPhase
	}
	if g.pending == nil {
		return nil, ErrUnknownCard
	}
	if g.pending.PlayerID != playerID {
		return nil, ErrNotYourTurn
	}
	if g.pending.CardID != cardID {
		return nil, ErrUnknownCard
	}

	tIdx := g.playerIndex(targetID)
	if tIdx < 0 || !g.players[tIdx].Active {
		return nil, ErrInvalidTarget
	}

	idx := g.currentIdx
	p := g.players[idx]
	played, ok := p.takeActionCard(cardID)
	if !ok {
		return nil, ErrUnknownCard
	}
	g.deck.Discard(played)
	g.pending = nil
	t := g.players[tIdx]

	switch played.Action {
	case card.ActionFreeze:
		t.FrozenBy = p.ID
		effects := []Effect{{Kind: EffectPlayerFrozen, PlayerID: p.ID, TargetID: t.ID, Value: t.handScore()}}
		g.deactivateLocked(t, tIdx, EffectPlayerFrozen)
		// Freezing an opponent keeps the actor's turn; freezing yourself
		// already handed control on.
		if tIdx != idx && g.status == StatusPlaying {
			g.resumeFlipThreeLocked(idx)
		}
		if g.status == StatusRoundEnd {
			effects = append(effects, Effect{Kind: EffectRoundEnded, Value: g.round})
		}
		return effects, nil
	case card.ActionFlipThree:
		g.flipThree = append(g.flipThree, flipThreeFrame{
			targetIdx: tIdx,
			remaining: 3,
			returnIdx: idx,
		})
		g.currentIdx = tIdx
		return []Effect{{Kind: EffectFlipThreeBegan, PlayerID: p.ID, TargetID: t.ID, Value: 3}}, nil
	default:
		return nil, ErrUnknownCard
	}
}

// checkTurnLocked validates that playerID may act right now.
func (g *Game) checkTurnLocked(playerID string) error {
	if g.status != StatusPlaying {
		if g.status == StatusGameEnd {
			return ErrGameAlreadyEnded
		}
		return ErrWrongPhase
	}
	idx := g.playerIndex(playerID)
	if idx < 0 || idx != g.currentIdx {
		return ErrNotYourTurn
	}
	if !g.players[idx].Active {
		return ErrPlayerInactive
	}
	return nil
}

func (g *Game) topFrame() *flipThreeFrame {
	return &g.flipThree[len(g.flipThree)-1]
}

// deactivateLocked takes the player out of the round, fixes their banked
// round score, and resolves where control goes next. A zero score is banked
// for busts; everyone else banks the live hand value.
func (g *Game) deactivateLocked(p *Player, idx int, _ EffectKind) {
	p.Active = false
	p.RoundScore = p.handScore()
	g.resolveControlAfterExitLocked(idx)
}

// resolveControlAfterExitLocked handles control flow after the seat at idx
// left the round: abort FlipThree frames pointed at them, return control to
// suspended actors, or advance the turn.
func (g *Game) resolveControlAfterExitLocked(idx int) {
	returnIdx := -1
	for len(g.flipThree) > 0 && g.topFrame().targetIdx == idx {
		returnIdx = g.topFrame().returnIdx
		g.flipThree = g.flipThree[:len(g.flipThree)-1]
	}
	if g.resumeOuterFrameLocked() {
		return
	}
	if returnIdx >= 0 && returnIdx != idx && g.players[returnIdx].Active {
		g.currentIdx = returnIdx
		return
	}
	g.advanceFromLocked(idx)
}

// resumeFlipThreeLocked continues after a draw (or opponent freeze) by the
// seat at idx: keep drawing if the live frame still owes cards, pop finished
// frames and hand control back to their actors, or simply keep the turn.
func (g *Game) resumeFlipThreeLocked(idx int) {
	if len(g.flipThree) == 0 || g.topFrame().targetIdx != idx {
		g.currentIdx = idx
		return
	}
	frame := g.topFrame()
	if frame.remaining > 0 {
		g.currentIdx = idx
		return
	}
	returnIdx := frame.returnIdx
	g.flipThree = g.flipThree[:len(g.flipThree)-1]
	if g.resumeOuterFrameLocked() {
		return
	}
	if g.players[returnIdx].Active {
		g.currentIdx = returnIdx
		return
	}
	g.advanceFromLocked(returnIdx)
}

// resumeOuterFrameLocked hands control to the next live FlipThree frame on
// the stack, discarding frames whose target already left the round.
func (g *Game) resumeOuterFrameLocked() bool {
	for len(g.flipThree) > 0 {
		frame := g.topFrame()
		if g.players[frame.targetIdx].Active && frame.remaining > 0 {
			g.currentIdx = frame.targetIdx
			return true
		}
		// Finished or aborted frame: hand control back to its actor if
		// they can still play, otherwise keep unwinding.
		g.flipThree = g.flipThree[:len(g.flipThree)-1]
		if g.players[frame.returnIdx].Active {
			g.currentIdx = frame.returnIdx
			return true
		}
	}
	return false
}

// advanceFromLocked moves the turn to the next active seat after idx, or
// finishes the round when nobody is left.
func (g *Game) advanceFromLocked(idx int) {
	n := len(g.players)
	for i := 1; i <= n; i++ {
		next := (idx + i) % n
		if g.players[next].Active {
			g.currentIdx = next
			return
		}
	}
	g.finishRoundLocked()
}

// finishRoundLocked settles the round: banked scores are added to totals
// and the bookkeeping record is appended. Hands stay on the table for the
// clients until the next deal sweeps them.
func (g *Game) finishRoundLocked() {
	record := RoundRecord{Round: g.round}
	for _, p := range g.players {
		rs := p.RoundScore
		if p.Busted {
			rs = 0
		}
		p.Score += rs
		record.Results = append(record.Results, PlayerRoundResult{
			PlayerID:      p.ID,
			Name:          p.Name,
			RoundScore:    rs,
			TotalScore:    p.Score,
			Busted:        p.Busted,
			Flip7:         p.Flip7,
			UniqueNumbers: p.uniqueNumbers(),
		})
		if rs > 0 && (g.best == nil || rs > g.best.Score) {
			g.best = &BestRound{PlayerID: p.ID, Round: g.round, Score: rs}
		}
	}
	g.history = append(g.history, record)
	g.pending = nil
	g.flipThree = nil
	g.currentIdx = -1
	g.status = StatusRoundEnd
}

// DeckValueCounts exposes the remaining number-card distribution of the draw
// pile. It exists for the AI's bust-probability estimate; snapshots sent to
// clients only carry pile sizes.
func (g *Game) DeckValueCounts() map[int]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deck.ValueCounts()
}
