package release

import (
	"fmt"

	"github.com/simplesurance/autorelease/internal/version"
)

// ResultKind is the outcome of a release run.
type ResultKind uint8

const (
	ResultUndefined ResultKind = iota
	// Released: a release pull request was opened and merged or
	// scheduled for auto-merge.
	Released
	// SkippedNoLabel: the merged pull request had no release label.
	SkippedNoLabel
	// AbortedError: an operation failed, Result.Err contains the error.
	AbortedError
)

var resultKindStrings = [...]string{
	ResultUndefined: "undefined",
	Released:        "released",
	SkippedNoLabel:  "skipped_no_label",
	AbortedError:    "aborted_error",
}

func (k ResultKind) String() string {
	if int(k) > len(resultKindStrings)-1 {
		return fmt.Sprintf("unsupported ResultKind value: %d", k)
	}

	return resultKindStrings[k]
}

// Result describes a finished release run.
type Result struct {
	RunID string
	Kind  ResultKind
	// PreviousVersion and Version are only set if the run got past
	// StateBumping.
	PreviousVersion version.Version
	Version         version.Version
	PullRequest     *PRHandle
	// States contains the states of the run in the order they were
	// entered.
	States []State
	Err    error
}

// FinalState returns the last state of the run.
func (r *Result) FinalState() State {
	if len(r.States) == 0 {
		return StateIdle
	}

	return r.States[len(r.States)-1]
}

func (r *Result) String() string {
	switch r.Kind {
	case Released:
		return fmt.Sprintf("released %s (previous: %s)", r.Version, r.PreviousVersion)
	case AbortedError:
		return fmt.Sprintf("aborted: %s", r.Err)
	default:
		return r.Kind.String()
	}
}
