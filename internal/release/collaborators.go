package release

import (
	"context"
	"fmt"

	"github.com/simplesurance/autorelease/internal/changelog"
	"github.com/simplesurance/autorelease/internal/labels"
	"github.com/simplesurance/autorelease/internal/version"
	"github.com/simplesurance/autorelease/internal/versionstore"
)

//go:generate mockgen -destination mocks/mock_collaborators.go -package mocks . Store,SourceControl,Forge

// Store reads and writes the current version and changelog.
// Persist must write both or nothing and fail with
// versionstore.ErrPersistenceConflict if the stored state changed after
// base was read.
// Discard reverts a Persist operation whose release was not completed,
// afterwards the stored state equals base again.
type Store interface {
	Current(ctx context.Context, ref string) (*versionstore.Snapshot, error)
	Persist(ctx context.Context, base *versionstore.Snapshot, next version.Version, changelog string) (*versionstore.Commit, error)
	Discard(ctx context.Context, base *versionstore.Snapshot, commit *versionstore.Commit) error
}

// SourceControl provides access to the history of the repository.
type SourceControl interface {
	// MergedChangesSince returns the changes that were merged after the
	// tag was created, ordered by their merge time, oldest first.
	MergedChangesSince(ctx context.Context, tag string) ([]*changelog.ChangeRecord, error)
	// CreateTag creates a tag pointing to commitID.
	CreateTag(ctx context.Context, tag, commitID string) error
	// CommitFile commits a single file to branch. It is not used to
	// persist releases, Store.Persist writes the version and changelog
	// in one commit.
	CommitFile(ctx context.Context, branch, path, content, message string) error
}

// Forge creates, merges and closes pull requests.
type Forge interface {
	OpenPullRequest(ctx context.Context, req *Request) (*PRHandle, error)
	MergePullRequest(ctx context.Context, pr *PRHandle, method MergeMethod) (*MergeResult, error)
	// ClosePullRequest closes a pull request without merging it.
	ClosePullRequest(ctx context.Context, pr *PRHandle) error
}

// MergeEvent is the input of a release run, it describes a merged pull
// request.
type MergeEvent struct {
	// Repository is the "owner/name" of the repository, used for logging.
	Repository  string
	PullRequest int
	DeliveryID  string
	Labels      labels.LabelSet
	SourceRef   string
	TargetRef   string
}

func (e *MergeEvent) String() string {
	return fmt.Sprintf("%s#%d (%s -> %s)", e.Repository, e.PullRequest, e.SourceRef, e.TargetRef)
}

// Request is handed to the Forge to create a release pull request.
type Request struct {
	Version   version.Version
	Tag       string
	Changelog *changelog.Entry
	// SourceRef is the branch containing the release commit.
	SourceRef string
	// TargetRef is the branch the release is merged into.
	TargetRef string
}

// Title returns the pull request title.
func (r *Request) Title() string {
	return "Release " + r.Tag
}

// PRHandle identifies a pull request that was opened by the Forge.
type PRHandle struct {
	Number int
	URL    string
	// NodeID is the GraphQL ID of the pull request.
	NodeID  string
	HeadRef string
}

func (h *PRHandle) String() string {
	if h.URL != "" {
		return h.URL
	}

	return fmt.Sprintf("#%d", h.Number)
}

// MergeResult is returned by Forge.MergePullRequest.
type MergeResult struct {
	// Merged is false when the merge was scheduled, e.g. when auto-merge
	// was enabled.
	Merged bool
	// CommitID is the merge commit, it is empty if Merged is false.
	CommitID string
}

// MergeMethod defines how a release pull request is merged.
type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodSquash MergeMethod = "squash"
	MergeMethodRebase MergeMethod = "rebase"
	// MergeMethodAuto enables auto-merge for the pull request, the forge
	// merges it when all requirements are fulfilled.
	MergeMethodAuto MergeMethod = "auto"
)

func ParseMergeMethod(s string) (MergeMethod, error) {
	switch m := MergeMethod(s); m {
	case MergeMethodMerge, MergeMethodSquash, MergeMethodRebase, MergeMethodAuto:
		return m, nil
	default:
		return "", fmt.Errorf("invalid merge method: %q (must be merge, squash, rebase or auto)", s)
	}
}
