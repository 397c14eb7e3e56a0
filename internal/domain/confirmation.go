package domain

// ConfirmationState tracks one payment callback against an order.
type ConfirmationState string

const (
	ConfirmationCreated   ConfirmationState = "created"
	ConfirmationVerifying ConfirmationState = "verifying"
	ConfirmationCompleted ConfirmationState = "completed"
	ConfirmationFailed    ConfirmationState = "failed"
)

var confirmationTransitions = map[ConfirmationState][]ConfirmationState{
	ConfirmationCreated:   {ConfirmationVerifying, ConfirmationFailed},
	ConfirmationVerifying: {ConfirmationCompleted, ConfirmationFailed},
}

func (s ConfirmationState) IsTerminal() bool {
	return s == ConfirmationCompleted || s == ConfirmationFailed
}

// String representation (for logging)
func (s ConfirmationState) String() string {
	return string(s)
}

func CanTransitionTo(from, to ConfirmationState) bool {
	for _, next := range confirmationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
