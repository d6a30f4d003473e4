package agent

import "testing"

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		name  string
		state State
		found bool
		want  State
	}{
		{"start always retrieves", StateStart, false, StateRetrieve},
		{"retrieve always gates", StateRetrieve, true, StateGate},
		{"gate branches to generate", StateGate, true, StateGenerate},
		{"gate branches to fallback", StateGate, false, StateFallback},
		{"generate terminates", StateGenerate, true, StateDone},
		{"fallback terminates", StateFallback, false, StateDone},
		{"done is absorbing", StateDone, true, StateDone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := next(tc.state, tc.found); got != tc.want {
				t.Errorf("next(%s, %v) = %s, want %s", tc.state, tc.found, got, tc.want)
			}
		})
	}
}

func TestWorkflowIsAcyclic(t *testing.T) {
	for _, found := range []bool{true, false} {
		seen := map[State]bool{}
		state := StateStart
		for steps := 0; state != StateDone; steps++ {
			if seen[state] {
				t.Fatalf("state %s revisited (found=%v)", state, found)
			}
			if steps > 10 {
				t.Fatalf("workflow did not terminate (found=%v)", found)
			}
			seen[state] = true
			state = next(state, found)
		}
	}
}

func TestStateNames(t *testing.T) {
	if StateGate.String() != "gate" {
		t.Errorf("StateGate = %q", StateGate.String())
	}
	if State(99).String() != "unknown" {
		t.Errorf("unknown state = %q", State(99).String())
	}
}
