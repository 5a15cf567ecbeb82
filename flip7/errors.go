package flip7

// RuleError is a rejected input. Code is stable and safe to put on the wire;
// internal failures use plain errors instead.
type RuleError struct {
	Code    string
	Message string
}

func (e *RuleError) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrWrongPhase = &RuleError{"WrongPhase", "operation not allowed in the current phase"}

	ErrNotYourTurn = &RuleError{"NotYourTurn", "it is not this player's turn"}

	ErrPlayerInactive = &RuleError{"PlayerInactive", "player is no longer active this round"}

	ErrPendingActionCardBlocks = &RuleError{"PendingActionCardBlocks", "a drawn action card must be resolved first"}

	ErrPendingFlipThreeBlocks = &RuleError{"PendingFlipThreeBlocks", "forced FlipThree draws remain"}

	ErrUnknownCard = &RuleError{"UnknownCard", "card id does not match the pending action card"}

	ErrInvalidTarget = &RuleError{"InvalidTarget", "target player is unknown or inactive"}

	ErrGameAlreadyEnded = &RuleError{"GameAlreadyEnded", "the game has already ended"}

	ErrDeckExhausted = &RuleError{"DeckExhausted", "no cards left to draw"}
)

// AsRuleError unwraps err into a *RuleError if it is one.
func AsRuleError(err error) (*RuleError, bool) {
	re, ok := err.(*RuleError)
	return re, ok
}
