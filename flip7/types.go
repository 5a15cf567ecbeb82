// Package flip7 is the authoritative Flip 7 rules engine. It is pure game
// logic: no networking, no timers, no goroutines. All mutation goes through
// methods that validate the input and return the resulting effects.
package flip7

import "flip7-lite/card"

// Status is the game phase.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusRoundEnd Status = "round_end"
	StatusGameEnd  Status = "game_end"
)

// EffectKind labels an observable state transition produced by one input.
type EffectKind string

const (
	EffectRoundStarted         EffectKind = "round_started"
	EffectCardDrawn            EffectKind = "card_drawn"
	EffectCardDiscarded        EffectKind = "card_discarded"
	EffectPlayerBusted         EffectKind = "player_busted"
	EffectSecondChanceConsumed EffectKind = "second_chance_consumed"
	EffectSecondChancePassed   EffectKind = "second_chance_passed"
	EffectPlayerStayed         EffectKind = "player_stayed"
	EffectPlayerFrozen         EffectKind = "player_frozen"
	EffectFlipThreeBegan       EffectKind = "flip_three_began"
	EffectFlip7Achieved        EffectKind = "flip7_achieved"
	EffectRoundEnded           EffectKind = "round_ended"
	EffectGameEnded            EffectKind = "game_ended"
)

// Effect is one entry of the ordered transition list an input produced.
// PlayerID is the player the effect happened to; TargetID is set for effects
// one player inflicts on another (freeze, flip three, passed second chance).
type Effect struct {
	Kind     EffectKind `json:"kind"`
	PlayerID string     `json:"playerId,omitempty"`
	TargetID string     `json:"targetId,omitempty"`
	Card     *card.Card `json:"card,omitempty"`
	Value    int        `json:"value,omitempty"`
}

// PendingAction is a drawn Freeze or FlipThree awaiting a target choice.
type PendingAction struct {
	PlayerID string      `json:"playerId"`
	CardID   string      `json:"cardId"`
	Action   card.Action `json:"action"`
}

// flipThreeFrame tracks one forced-draw sequence. Nested action cards push
// further frames; the top frame is always the live one.
type flipThreeFrame struct {
	targetIdx int
	remaining int
	returnIdx int
}

// PlayerRoundResult is one player's line in a finished round.
type PlayerRoundResult struct {
	PlayerID      string `json:"playerId"`
	Name          string `json:"name"`
	RoundScore    int    `json:"roundScore"`
	TotalScore    int    `json:"totalScore"`
	Busted        bool   `json:"busted"`
	Flip7         bool   `json:"flip7"`
	UniqueNumbers int    `json:"uniqueNumbers"`
}

// RoundRecord is the bookkeeping entry appended after every round.
type RoundRecord struct {
	Round   int                 `json:"round"`
	Results []PlayerRoundResult `json:"results"`
}

// BestRound remembers the single highest-scoring round of the game.
type BestRound struct {
	PlayerID string `json:"playerId"`
	Round    int    `json:"round"`
	Score    int    `json:"score"`
}
