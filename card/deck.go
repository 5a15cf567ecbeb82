package card

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrExhausted is returned by Draw when both the draw and discard piles are
// empty. With every dealt card held by some player this can actually happen.
var ErrExhausted = errors.New("deck exhausted")

// MaxNumber is the highest number card value.
const MaxNumber = 12

var plusModifiers = []Modifier{
	ModifierPlus2, ModifierPlus4, ModifierPlus6, ModifierPlus8, ModifierPlus10,
}

var actionKinds = []Action{ActionFreeze, ActionFlipThree, ActionSecondChance}

// Deck is the shared draw pile plus discard pile. It is not safe for
// concurrent use; the engine serializes access behind its own mutex.
type Deck struct {
	rng     *rand.Rand
	draw    []Card
	discard []Card
}

type deckOptions struct {
	seed int64
}

// Option configures deck construction.
type Option func(*deckOptions)

// WithSeed makes shuffles deterministic. Seed 0 keeps the time-based default.
func WithSeed(seed int64) Option {
	return func(o *deckOptions) {
		if seed != 0 {
			o.seed = seed
		}
	}
}

// NewDeck builds a shuffled deck sized for playerCount seats: one base set
// per 10 players, rounded up. A base set holds n copies of each number n
// (a single 0), three copies of each plus modifier, one x2, and three copies
// of each action card.
func NewDeck(playerCount int, opts ...Option) *Deck {
	o := deckOptions{seed: time.Now().UnixNano()}
	for _, opt := range opts {
		opt(&o)
	}

	sets := (playerCount + 9) / 10
	if sets < 1 {
		sets = 1
	}

	var cards []Card
	next := 0
	nextID := func() string {
		next++
		return fmt.Sprintf("card-%d", next)
	}
	for s := 0; s < sets; s++ {
		cards = append(cards, Card{ID: nextID(), Kind: KindNumber, Value: 0})
		for v := 1; v <= MaxNumber; v++ {
			for i := 0; i < v; i++ {
				cards = append(cards, Card{ID: nextID(), Kind: KindNumber, Value: v})
			}
		}
		for _, m := range plusModifiers {
			for i := 0; i < 3; i++ {
				cards = append(cards, Card{ID: nextID(), Kind: KindModifier, Modifier: m})
			}
		}
		cards = append(cards, Card{ID: nextID(), Kind: KindModifier, Modifier: ModifierTimes2})
		for _, a := range actionKinds {
			for i := 0; i < 3; i++ {
				cards = append(cards, Card{ID: nextID(), Kind: KindAction, Action: a})
			}
		}
	}

	d := &Deck{rng: rand.New(rand.NewSource(o.seed)), draw: cards}
	d.shuffleDraw()
	return d
}

// NewDeckFromCards builds a deck with an explicit draw pile order (front of
// the slice is drawn first). No shuffle is applied to the initial pile.
func NewDeckFromCards(draw []Card, opts ...Option) *Deck {
	o := deckOptions{seed: time.Now().UnixNano()}
	for _, opt := range opts {
		opt(&o)
	}
	d := &Deck{rng: rand.New(rand.NewSource(o.seed))}
	d.draw = append(d.draw, draw...)
	return d
}

func (d *Deck) shuffleDraw() {
	d.rng.Shuffle(len(d.draw), func(i, j int) {
		d.draw[i], d.draw[j] = d.draw[j], d.draw[i]
	})
}

// Draw removes and returns the top card, reshuffling the discard pile into a
// new draw pile on underflow.
func (d *Deck) Draw() (Card, error) {
	if len(d.draw) == 0 {
		if len(d.discard) == 0 {
			return Card{}, ErrExhausted
		}
		d.draw = d.discard
		d.discard = nil
		d.shuffleDraw()
	}
	c := d.draw[0]
	d.draw = d.draw[1:]
	return c, nil
}

// Discard moves cards onto the discard pile.
func (d *Deck) Discard(cards ...Card) {
	d.discard = append(d.discard, cards...)
}

// ReturnToBottom places cards under the draw pile, preserving order.
func (d *Deck) ReturnToBottom(cards ...Card) {
	d.draw = append(d.draw, cards...)
}

// DrawSize returns the number of cards left in the draw pile.
func (d *Deck) DrawSize() int { return len(d.draw) }

// DiscardSize returns the number of cards in the discard pile.
func (d *Deck) DiscardSize() int { return len(d.discard) }

// ValueCounts counts the number cards remaining in the draw pile by value.
func (d *Deck) ValueCounts() map[int]int {
	counts := make(map[int]int)
	for _, c := range d.draw {
		if c.Kind == KindNumber {
			counts[c.Value]++
		}
	}
	return counts
}

// State is the serializable deck contents, used for stateless round-trips.
type State struct {
	Draw    []Card `json:"draw"`
	Discard []Card `json:"discard"`
}

// Export copies out the full deck contents.
func (d *Deck) Export() State {
	return State{
		Draw:    append([]Card(nil), d.draw...),
		Discard: append([]Card(nil), d.discard...),
	}
}

// Restore rebuilds a deck from exported state.
func Restore(st State, opts ...Option) *Deck {
	d := NewDeckFromCards(st.Draw, opts...)
	d.discard = append(d.discard, st.Discard...)
	return d
}
