package autorelease

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/changelog"
	"github.com/simplesurance/autorelease/internal/release"
	"github.com/simplesurance/autorelease/internal/version"
	"github.com/simplesurance/autorelease/internal/versionstore"
)

// The collaborator decorators run every call of the wrapped collaborator
// via the Retryer. Errors that are not retryable, like
// versionstore.ErrPersistenceConflict, are returned immediately.

func operationField(collaborator, op string) []zap.Field {
	return []zap.Field{
		zap.String("collaborator", collaborator),
		zap.String("operation", op),
	}
}

type retryingStore struct {
	store   release.Store
	retryer *Retryer
}

// NewRetryingStore returns a release.Store that retries failed operations
// of store.
func NewRetryingStore(store release.Store, retryer *Retryer) release.Store {
	return &retryingStore{store: store, retryer: retryer}
}

func (s *retryingStore) Current(ctx context.Context, ref string) (*versionstore.Snapshot, error) {
	var result *versionstore.Snapshot

	err := s.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.store.Current(ctx, ref)
		return err
	}, operationField(release.CollaboratorVersionStore, "current"))

	return result, err
}

func (s *retryingStore) Persist(ctx context.Context, base *versionstore.Snapshot, next version.Version, changelog string) (*versionstore.Commit, error) {
	var result *versionstore.Commit

	err := s.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.store.Persist(ctx, base, next, changelog)
		return err
	}, operationField(release.CollaboratorVersionStore, "persist"))

	return result, err
}

func (s *retryingStore) Discard(ctx context.Context, base *versionstore.Snapshot, commit *versionstore.Commit) error {
	return s.retryer.Run(ctx, func(ctx context.Context) error {
		return s.store.Discard(ctx, base, commit)
	}, operationField(release.CollaboratorVersionStore, "discard"))
}

type retryingSourceControl struct {
	scm     release.SourceControl
	retryer *Retryer
}

// NewRetryingSourceControl returns a release.SourceControl that retries
// failed operations of scm.
func NewRetryingSourceControl(scm release.SourceControl, retryer *Retryer) release.SourceControl {
	return &retryingSourceControl{scm: scm, retryer: retryer}
}

func (s *retryingSourceControl) MergedChangesSince(ctx context.Context, tag string) ([]*changelog.ChangeRecord, error) {
	var result []*changelog.ChangeRecord

	err := s.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.scm.MergedChangesSince(ctx, tag)
		return err
	}, operationField(release.CollaboratorSourceControl, "merged_changes_since"))

	return result, err
}

func (s *retryingSourceControl) CreateTag(ctx context.Context, tag, commitID string) error {
	return s.retryer.Run(ctx, func(ctx context.Context) error {
		return s.scm.CreateTag(ctx, tag, commitID)
	}, operationField(release.CollaboratorSourceControl, "create_tag"))
}

func (s *retryingSourceControl) CommitFile(ctx context.Context, branch, path, content, message string) error {
	return s.retryer.Run(ctx, func(ctx context.Context) error {
		return s.scm.CommitFile(ctx, branch, path, content, message)
	}, operationField(release.CollaboratorSourceControl, "commit_file"))
}

type retryingForge struct {
	forge   release.Forge
	retryer *Retryer
}

// NewRetryingForge returns a release.Forge that retries failed operations
// of forge.
func NewRetryingForge(forge release.Forge, retryer *Retryer) release.Forge {
	return &retryingForge{forge: forge, retryer: retryer}
}

func (f *retryingForge) OpenPullRequest(ctx context.Context, req *release.Request) (*release.PRHandle, error) {
	var result *release.PRHandle

	err := f.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = f.forge.OpenPullRequest(ctx, req)
		return err
	}, operationField(release.CollaboratorForge, "open_pull_request"))

	return result, err
}

func (f *retryingForge) MergePullRequest(ctx context.Context, pr *release.PRHandle, method release.MergeMethod) (*release.MergeResult, error) {
	var result *release.MergeResult

	err := f.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = f.forge.MergePullRequest(ctx, pr, method)
		return err
	}, operationField(release.CollaboratorForge, "merge_pull_request"))

	return result, err
}

func (f *retryingForge) ClosePullRequest(ctx context.Context, pr *release.PRHandle) error {
	return f.retryer.Run(ctx, func(ctx context.Context) error {
		return f.forge.ClosePullRequest(ctx, pr)
	}, operationField(release.CollaboratorForge, "close_pull_request"))
}
