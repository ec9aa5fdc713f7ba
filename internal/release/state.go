package release

import "fmt"

// State is a state of a release run.
type State uint8

const (
	StateIdle State = iota
	StateClassifying
	StateBumping
	StateChangelogGeneration
	StatePersisting
	StateRequestingRelease
	StateDone
	StateAborted
)

var stateStrings = [...]string{
	StateIdle:                "idle",
	StateClassifying:         "classifying",
	StateBumping:             "bumping",
	StateChangelogGeneration: "changelog_generation",
	StatePersisting:          "persisting",
	StateRequestingRelease:   "requesting_release",
	StateDone:                "done",
	StateAborted:             "aborted",
}

func (s State) String() string {
	if int(s) > len(stateStrings)-1 {
		return fmt.Sprintf("unsupported State value: %d", s)
	}

	return stateStrings[s]
}

// IsTerminal returns true for StateDone and StateAborted.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}

// transitions lists the successors of a state, StateAborted is a valid
// successor of every non-terminal state.
// Persisting -> Bumping is taken when persisting failed with a conflict
// and the run is recomputed based on the new stored version.
var transitions = map[State][]State{
	StateIdle:                {StateClassifying},
	StateClassifying:         {StateBumping},
	StateBumping:             {StateChangelogGeneration},
	StateChangelogGeneration: {StatePersisting},
	StatePersisting:          {StateRequestingRelease, StateBumping},
	StateRequestingRelease:   {StateDone},
}

// CanTransitionTo returns true if next is a valid successor of s.
func (s State) CanTransitionTo(next State) bool {
	if s.IsTerminal() {
		return false
	}

	if next == StateAborted {
		return true
	}

	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}

	return false
}
