package githubrelease

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/githubclt"
	"github.com/simplesurance/autorelease/internal/logfields"
	"github.com/simplesurance/autorelease/internal/release"
	"github.com/simplesurance/autorelease/internal/releaseerr"
)

// ErrChecksFailed is returned when a release pull request can not be
// merged because required CI checks failed.
var ErrChecksFailed = errors.New("required checks failed")

// Forge opens and merges release pull requests on GitHub.
type Forge struct {
	clt  GithubClient
	repo *Repository

	labels          []string
	autoMergeMethod githubv4.PullRequestMergeMethod

	logger *zap.Logger
}

type ForgeOption func(*Forge)

// WithPullRequestLabels sets labels that are added to release pull
// requests.
func WithPullRequestLabels(labels []string) ForgeOption {
	return func(f *Forge) {
		f.labels = labels
	}
}

// WithAutoMergeMethod sets the method that github uses to merge pull
// requests when release.MergeMethodAuto is used.
func WithAutoMergeMethod(m release.MergeMethod) ForgeOption {
	return func(f *Forge) {
		f.autoMergeMethod = toGraphQLMergeMethod(m)
	}
}

func NewForge(clt GithubClient, repo *Repository, opts ...ForgeOption) *Forge {
	f := Forge{
		clt:             clt,
		repo:            repo,
		autoMergeMethod: githubv4.PullRequestMergeMethodMerge,
	}

	for _, opt := range opts {
		opt(&f)
	}

	f.logger = zap.L().Named(loggerName).With(
		logfields.RepositoryOwner(repo.Owner),
		logfields.Repository(repo.Name),
	)

	return &f
}

func toGraphQLMergeMethod(m release.MergeMethod) githubv4.PullRequestMergeMethod {
	switch m {
	case release.MergeMethodSquash:
		return githubv4.PullRequestMergeMethodSquash
	case release.MergeMethodRebase:
		return githubv4.PullRequestMergeMethodRebase
	default:
		return githubv4.PullRequestMergeMethodMerge
	}
}

// OpenPullRequest creates the release pull request, its description is the
// changelog section of the release.
func (f *Forge) OpenPullRequest(ctx context.Context, req *release.Request) (*release.PRHandle, error) {
	pr, err := f.clt.CreatePullRequest(
		ctx, f.repo.Owner, f.repo.Name,
		req.SourceRef, req.TargetRef,
		req.Title(), req.Changelog.Section(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pull request failed: %w", err)
	}

	handle := release.PRHandle{
		Number:  pr.GetNumber(),
		URL:     pr.GetHTMLURL(),
		NodeID:  pr.GetNodeID(),
		HeadRef: req.SourceRef,
	}

	if err := f.clt.AddLabels(ctx, f.repo.Owner, f.repo.Name, handle.Number, f.labels); err != nil {
		// the pull request exists, failing would cause that
		// a retry fails because of the existing pull request
		f.logger.Warn(
			"adding labels to release pull request failed",
			logfields.Event("github_release_pull_request_labeling_failed"),
			logfields.PullRequest(handle.Number),
			zap.Strings("labels", f.labels),
			zap.Error(err),
		)
	}

	return &handle, nil
}

// MergePullRequest merges the pull request when all required checks
// succeeded. If checks are pending a releaseerr.RetryableError is
// returned, if one failed an error wrapping ErrChecksFailed.
// With release.MergeMethodAuto auto-merge is enabled instead and the
// returned result has Merged set to false.
func (f *Forge) MergePullRequest(ctx context.Context, pr *release.PRHandle, method release.MergeMethod) (*release.MergeResult, error) {
	logger := f.logger.With(logfields.PullRequest(pr.Number))

	if method == release.MergeMethodAuto {
		if err := f.clt.EnableAutoMerge(ctx, pr.NodeID, f.autoMergeMethod); err != nil {
			return nil, fmt.Errorf("enabling auto-merge failed: %w", err)
		}

		logger.Debug(
			"auto-merge enabled",
			logfields.Event("github_auto_merge_enabled"),
			zap.String("auto_merge_method", string(f.autoMergeMethod)),
		)

		return &release.MergeResult{}, nil
	}

	status, err := f.clt.PullRequestCheckStatus(ctx, f.repo.Owner, f.repo.Name, pr.Number)
	if err != nil {
		return nil, fmt.Errorf("retrieving check status failed: %w", err)
	}

	switch status.CIStatus {
	case githubclt.CIStatusSuccess:
		break

	case githubclt.CIStatusPending:
		logger.Debug(
			"checks of release pull request are pending, merge is retried",
			logfields.Event("github_release_pull_request_checks_pending"),
			logfields.Commit(status.Commit),
		)

		return nil, releaseerr.NewRetryableAnytimeError(
			fmt.Errorf("checks of pull request %s are pending", pr),
		)

	case githubclt.CIStatusFailure:
		return nil, fmt.Errorf("%w: %s", ErrChecksFailed, strings.Join(status.Failed(), ", "))

	default:
		return nil, fmt.Errorf("unsupported ci status: %q", status.CIStatus)
	}

	sha, err := f.clt.MergePullRequest(ctx, f.repo.Owner, f.repo.Name, pr.Number, string(method))
	if err != nil {
		return nil, fmt.Errorf("merging pull request failed: %w", err)
	}

	return &release.MergeResult{Merged: true, CommitID: sha}, nil
}

// ClosePullRequest closes the pull request without merging it.
func (f *Forge) ClosePullRequest(ctx context.Context, pr *release.PRHandle) error {
	if err := f.clt.ClosePullRequest(ctx, f.repo.Owner, f.repo.Name, pr.Number); err != nil {
		return fmt.Errorf("closing pull request failed: %w", err)
	}

	f.logger.Info(
		"release pull request closed",
		logfields.Event("github_release_pull_request_closed"),
		logfields.PullRequest(pr.Number),
	)

	return nil
}
