package flip7

import "flip7-lite/card"

// Player is one seat's in-round and cumulative state.
type Player struct {
	ID         string
	Name       string
	AI         bool
	Difficulty string

	Score int

	NumberCards   []card.Card
	ModifierCards []card.Card
	ActionCards   []card.Card

	Active   bool
	Busted   bool
	Stayed   bool
	Flip7    bool
	FrozenBy string

	// UsedSecondChance marks spent SecondChance card ids. The card itself
	// stays in ActionCards until the hand is swept at the next round start.
	UsedSecondChance map[string]bool

	// RoundScore is fixed the moment the player goes inactive.
	RoundScore int
}

func newPlayer(cfg SeatConfig) *Player {
	return &Player{
		ID:               cfg.ID,
		Name:             cfg.Name,
		AI:               cfg.AI,
		Difficulty:       cfg.Difficulty,
		UsedSecondChance: make(map[string]bool),
	}
}

// sweepHand moves every held card to the discard pile and resets the
// per-round flags.
func (p *Player) sweepHand(d *card.Deck) {
	d.Discard(p.NumberCards...)
	d.Discard(p.ModifierCards...)
	d.Discard(p.ActionCards...)
	p.NumberCards = nil
	p.ModifierCards = nil
	p.ActionCards = nil
	p.Active = true
	p.Busted = false
	p.Stayed = false
	p.Flip7 = false
	p.FrozenBy = ""
	p.UsedSecondChance = make(map[string]bool)
	p.RoundScore = 0
}

func (p *Player) hasNumberValue(v int) bool {
	for _, c := range p.NumberCards {
		if c.Value == v {
			return true
		}
	}
	return false
}

// unusedSecondChance returns the first spendable SecondChance card, if any.
func (p *Player) unusedSecondChance() *card.Card {
	for i := range p.ActionCards {
		c := &p.ActionCards[i]
		if c.Action == card.ActionSecondChance && !p.UsedSecondChance[c.ID] {
			return c
		}
	}
	return nil
}

// holdsSecondChance reports whether any SecondChance card, spent or not, is
// in the hand. Such a player cannot receive a transferred one.
func (p *Player) holdsSecondChance() bool {
	for _, c := range p.ActionCards {
		if c.Action == card.ActionSecondChance {
			return true
		}
	}
	return false
}

// takeActionCard removes the action card with the given id from the hand.
func (p *Player) takeActionCard(cardID string) (card.Card, bool) {
	for i, c := range p.ActionCards {
		if c.ID == cardID {
			p.ActionCards = append(p.ActionCards[:i], p.ActionCards[i+1:]...)
			return c, true
		}
	}
	return card.Card{}, false
}

// handScore is the provisional round score of the current hand: sum of
// numbers, doubled by x2 if held, plus additive modifiers, plus the Flip 7
// bonus for seven unique numbers. A busted hand is worth zero.
func (p *Player) handScore() int {
	if p.Busted {
		return 0
	}
	sum := 0
	for _, c := range p.NumberCards {
		sum += c.Value
	}
	bonus := 0
	for _, c := range p.ModifierCards {
		if c.Modifier == card.ModifierTimes2 {
			sum *= 2
		} else {
			bonus += c.Modifier.Bonus()
		}
	}
	score := sum + bonus
	if len(p.NumberCards) >= HandLimit {
		score += Flip7Bonus
	}
	return score
}

func (p *Player) uniqueNumbers() int {
	return len(p.NumberCards)
}
