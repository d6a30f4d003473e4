package agent

// State is one node of the ask workflow. The workflow is acyclic with a
// single conditional branch at Gate, and every ask starts fresh at
// StateStart.
type State int

const (
	StateStart State = iota
	StateRetrieve
	StateGate
	StateGenerate
	StateFallback
	StateDone
)

var stateNames = map[State]string{
	StateStart:    "start",
	StateRetrieve: "retrieve",
	StateGate:     "gate",
	StateGenerate: "generate",
	StateFallback: "fallback",
	StateDone:     "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// next returns the successor of state. found is consulted only at
// StateGate, the workflow's single branch point; both terminal branches
// converge on StateDone.
func next(state State, found bool) State {
	switch state {
	case StateStart:
		return StateRetrieve
	case StateRetrieve:
		return StateGate
	case StateGate:
		if found {
			return StateGenerate
		}
		return StateFallback
	case StateGenerate, StateFallback:
		return StateDone
	default:
		return StateDone
	}
}
