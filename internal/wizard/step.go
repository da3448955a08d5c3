package wizard

import "context"

// StepStatus tracks the lifecycle of a single step's work
type StepStatus string

const (
	StatusIdle    StepStatus = "idle"
	StatusLoading StepStatus = "loading"
	StatusErrored StepStatus = "errored"
	StatusDone    StepStatus = "done"
)

// Step describes one position in a wizard.
//
// Validate gates forward movement only: Next refuses to advance while it
// returns false, Back and JumpTo ignore it. A nil Validate always passes.
//
// Run is the step's side effect (calculate, approve, dispatch). It is
// optional; steps that only collect input leave it nil.
type Step struct {
	// Order is the 1-based position of the step
	Order int

	// Name is the machine-readable step identifier used in persistence
	// and events
	Name string

	// Title is the human-readable heading
	Title string

	// Description explains what the step does
	Description string

	// Validate reports whether the state satisfies this step's
	// requirements for moving forward
	Validate func(s *State) bool

	// Run performs the step's side effect
	Run func(ctx context.Context, s *State) error
}

// CanAdvance reports whether the step allows forward movement given the
// current state
func (st *Step) CanAdvance(s *State) bool {
	if st.Validate == nil {
		return true
	}
	return st.Validate(s)
}
