package release

import (
	"fmt"
)

// Collaborator names used in ExternalCollaboratorError.
const (
	CollaboratorSourceControl = "source_control"
	CollaboratorForge         = "forge"
	CollaboratorVersionStore  = "version_store"
)

// ExternalCollaboratorError wraps errors returned by a collaborator, e.g.
// a failed API call.
// The orchestrator does not retry failed collaborator operations, if the
// wrapped error is a releaseerr.RetryableError the caller can retry it.
type ExternalCollaboratorError struct {
	Collaborator string
	Operation    string
	Err          error
}

func newExternalErr(collaborator, op string, err error) *ExternalCollaboratorError {
	return &ExternalCollaboratorError{
		Collaborator: collaborator,
		Operation:    op,
		Err:          err,
	}
}

func (e *ExternalCollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s failed: %s", e.Collaborator, e.Operation, e.Err)
}

func (e *ExternalCollaboratorError) Unwrap() error {
	return e.Err
}

// RunError is returned when a release run was aborted because of an error.
// State is the state in that the error happened.
type RunError struct {
	RunID string
	State State
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("release run %s aborted in state %s: %s", e.RunID, e.State, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
