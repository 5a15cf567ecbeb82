package card

import "testing"

func drainAll(t *testing.T, d *Deck) []Card {
	t.Helper()
	var out []Card
	for {
		c, err := d.Draw()
		if err != nil {
			return out
		}
		out = append(out, c)
	}
}

func TestNewDeckComposition(t *testing.T) {
	d := NewDeck(4, WithSeed(1))
	cards := drainAll(t, d)

	// 79 numbers + 16 modifiers + 9 actions per base set.
	if len(cards) != 104 {
		t.Fatalf("deck size = %d, want 104", len(cards))
	}

	valueCounts := make(map[int]int)
	modCounts := make(map[Modifier]int)
	actionCounts := make(map[Action]int)
	ids := make(map[string]bool)
	for _, c := range cards {
		if ids[c.ID] {
			t.Fatalf("duplicate card id %q", c.ID)
		}
		ids[c.ID] = true
		switch c.Kind {
		case KindNumber:
			valueCounts[c.Value]++
		case KindModifier:
			modCounts[c.Modifier]++
		case KindAction:
			actionCounts[c.Action]++
		}
	}

	if valueCounts[0] != 1 {
		t.Errorf("zero count = %d, want 1", valueCounts[0])
	}
	for v := 1; v <= MaxNumber; v++ {
		if valueCounts[v] != v {
			t.Errorf("value %d count = %d, want %d", v, valueCounts[v], v)
		}
	}
	for _, m := range plusModifiers {
		if modCounts[m] != 3 {
			t.Errorf("modifier %s count = %d, want 3", m, modCounts[m])
		}
	}
	if modCounts[ModifierTimes2] != 1 {
		t.Errorf("x2 count = %d, want 1", modCounts[ModifierTimes2])
	}
	for _, a := range actionKinds {
		if actionCounts[a] != 3 {
			t.Errorf("action %s count = %d, want 3", a, actionCounts[a])
		}
	}
}

func TestNewDeckScalesWithPlayerCount(t *testing.T) {
	d := NewDeck(11, WithSeed(1))
	if got := d.DrawSize(); got != 208 {
		t.Fatalf("11-player deck size = %d, want 208 (two base sets)", got)
	}
}

func TestDeterministicShuffle(t *testing.T) {
	a := drainAll(t, NewDeck(2, WithSeed(42)))
	b := drainAll(t, NewDeck(2, WithSeed(42)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("card %d differs: %v vs %v", i, a[i], b[i])
		}
	}

	c := drainAll(t, NewDeck(2, WithSeed(43)))
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical order")
	}
}

func TestDrawReshufflesDiscard(t *testing.T) {
	d := NewDeckFromCards([]Card{
		{ID: "a", Kind: KindNumber, Value: 1},
	}, WithSeed(7))
	d.Discard(Card{ID: "b", Kind: KindNumber, Value: 2})

	first, err := d.Draw()
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if first.ID != "a" {
		t.Fatalf("first draw = %s, want a", first.ID)
	}

	second, err := d.Draw()
	if err != nil {
		t.Fatalf("Draw after reshuffle: %v", err)
	}
	if second.ID != "b" {
		t.Fatalf("reshuffled draw = %s, want b", second.ID)
	}
	if d.DiscardSize() != 0 {
		t.Fatalf("discard size = %d after reshuffle, want 0", d.DiscardSize())
	}

	if _, err := d.Draw(); err != ErrExhausted {
		t.Fatalf("Draw on empty deck: err = %v, want ErrExhausted", err)
	}
}

func TestReturnToBottomOrder(t *testing.T) {
	d := NewDeckFromCards([]Card{
		{ID: "top", Kind: KindNumber, Value: 1},
	})
	d.ReturnToBottom(
		Card{ID: "m1", Kind: KindModifier, Modifier: ModifierPlus2},
		Card{ID: "m2", Kind: KindModifier, Modifier: ModifierPlus4},
	)
	want := []string{"top", "m1", "m2"}
	for _, id := range want {
		c, err := d.Draw()
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
		if c.ID != id {
			t.Fatalf("drew %s, want %s", c.ID, id)
		}
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	d := NewDeck(3, WithSeed(9))
	c, err := d.Draw()
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	d.Discard(c)

	st := d.Export()
	r := Restore(st)
	if r.DrawSize() != d.DrawSize() || r.DiscardSize() != d.DiscardSize() {
		t.Fatalf("restored sizes %d/%d, want %d/%d",
			r.DrawSize(), r.DiscardSize(), d.DrawSize(), d.DiscardSize())
	}
	got, err := r.Draw()
	if err != nil {
		t.Fatalf("Draw restored: %v", err)
	}
	wantTop := st.Draw[0]
	if got != wantTop {
		t.Fatalf("restored top = %v, want %v", got, wantTop)
	}
}
