package autorelease

import "fmt"

// MatchResult represents the result of checking if an event triggers a
// release.
type MatchResult uint8

const (
	MatchResultUndefined MatchResult = iota
	// RepositoryMismatch: the event is for a repository that is not
	// configured.
	RepositoryMismatch
	// BranchMismatch: the pull request was merged into another branch
	// than the configured release branch.
	BranchMismatch
	// TriggerMismatch: the trigger query evaluated to false.
	TriggerMismatch
	Match
)

var matchResultString = [...]string{
	MatchResultUndefined: "undefined",
	RepositoryMismatch:   "repository mismatch",
	BranchMismatch:       "branch mismatch",
	TriggerMismatch:      "trigger mismatch",
	Match:                "match",
}

func (m MatchResult) String() string {
	// it can not be <0 because it's type is uint8
	if int(m) > len(matchResultString)-1 {
		return fmt.Sprintf("unsupported MatchResult value: %d", m)
	}

	return matchResultString[m]
}
