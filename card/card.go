// Package card models the Flip 7 deck: number cards, score modifiers and
// action cards, plus the shared draw/discard pile.
package card

import "fmt"

// Kind discriminates the three card families.
type Kind string

const (
	KindNumber   Kind = "number"
	KindModifier Kind = "modifier"
	KindAction   Kind = "action"
)

// Modifier is a score bonus card. Plus bonuses are added after any doubling.
type Modifier string

const (
	ModifierNone   Modifier = ""
	ModifierPlus2  Modifier = "+2"
	ModifierPlus4  Modifier = "+4"
	ModifierPlus6  Modifier = "+6"
	ModifierPlus8  Modifier = "+8"
	ModifierPlus10 Modifier = "+10"
	ModifierTimes2 Modifier = "x2"
)

// Bonus returns the additive value of a plus modifier (0 for x2).
func (m Modifier) Bonus() int {
	switch m {
	case ModifierPlus2:
		return 2
	case ModifierPlus4:
		return 4
	case ModifierPlus6:
		return 6
	case ModifierPlus8:
		return 8
	case ModifierPlus10:
		return 10
	default:
		return 0
	}
}

// Action is one of the three action card kinds.
type Action string

const (
	ActionNone         Action = ""
	ActionFreeze       Action = "freeze"
	ActionFlipThree    Action = "flip_three"
	ActionSecondChance Action = "second_chance"
)

// Card is a tagged variant: exactly one of Value/Modifier/Action is
// meaningful depending on Kind. IDs are unique within a deck.
type Card struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Value    int      `json:"value,omitempty"`
	Modifier Modifier `json:"modifier,omitempty"`
	Action   Action   `json:"action,omitempty"`
}

func (c Card) String() string {
	switch c.Kind {
	case KindNumber:
		return fmt.Sprintf("%d", c.Value)
	case KindModifier:
		return string(c.Modifier)
	case KindAction:
		return string(c.Action)
	default:
		return "?"
	}
}
