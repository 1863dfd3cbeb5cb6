package onboard

// ApplicationStateMachine validates lifecycle transitions for
// instructor applications. The graph is intentionally tiny: pending is
// the only non-terminal state.
type ApplicationStateMachine interface {
	CanTransition(from, to ApplicationStatus) bool
	EnsureTransition(from, to ApplicationStatus) error
	CurrentStatus(app *InstructorApplication) ApplicationStatus
}

// NewApplicationStateMachine returns the default implementation.
func NewApplicationStateMachine() ApplicationStateMachine {
	return &applicationStateMachine{
		transitions: map[ApplicationStatus]map[ApplicationStatus]struct{}{
			StatusPending: {
				StatusApproved: {},
				StatusRejected: {},
			},
		},
	}
}

type applicationStateMachine struct {
	transitions map[ApplicationStatus]map[ApplicationStatus]struct{}
}

func (sm *applicationStateMachine) CanTransition(from, to ApplicationStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// EnsureTransition returns ErrTerminalState when from has no outgoing
// edges, ErrInvalidTransition for any other disallowed move.
func (sm *applicationStateMachine) EnsureTransition(from, to ApplicationStatus) error {
	if to == "" {
		return annotate(ErrInvalidTransition, map[string]any{
			"reason": "target status is empty",
		})
	}

	if _, ok := sm.transitions[from]; !ok {
		return annotate(ErrTerminalState, map[string]any{
			"from": from,
			"to":   to,
		})
	}

	if !sm.CanTransition(from, to) {
		return annotate(ErrInvalidTransition, map[string]any{
			"from": from,
			"to":   to,
		})
	}

	return nil
}

func (sm *applicationStateMachine) CurrentStatus(app *InstructorApplication) ApplicationStatus {
	if app == nil {
		return ""
	}
	app.EnsureStatus()
	return app.Status
}
