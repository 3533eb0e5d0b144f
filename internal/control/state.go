package control

import "fmt"

// State is a workflow state.
type State int

const (
	StateInit State = iota
	StateHoming
	StateIdle
	StateWaitInput
	StateMoveToPickup
	StateVerifyObject
	StatePickup
	StateMoveToDropoff
	StateRelease
	StateReturnHome
	StateError
)

var stateNames = [...]string{
	StateInit:          "INIT",
	StateHoming:        "HOMING",
	StateIdle:          "IDLE",
	StateWaitInput:     "WAIT_INPUT",
	StateMoveToPickup:  "MOVE_TO_PICKUP",
	StateVerifyObject:  "VERIFY_OBJECT",
	StatePickup:        "PICKUP",
	StateMoveToDropoff: "MOVE_TO_DROPOFF",
	StateRelease:       "RELEASE",
	StateReturnHome:    "RETURN_HOME",
	StateError:         "ERROR",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// States lists every state in workflow order.
func States() []State {
	out := make([]State, len(stateNames))
	for i := range stateNames {
		out[i] = State(i)
	}
	return out
}

// Workflow is the mutable context of the pick-and-place sequence.
type Workflow struct {
	State State

	// Selected is the chosen target, 1-based. Zero when none.
	Selected int

	// Position is the dead-reckoned rail position in mm. It is trusted to
	// equal a commanded destination only after an uninterrupted move.
	Position float64

	// Drifted is set when the rail moved without position bookkeeping
	// (manual drive or an interrupted move). Homing clears it.
	Drifted bool

	GripperClosed bool

	// CycleID identifies the current pick-and-place cycle.
	CycleID string

	moving   bool
	moveDest float64
}
