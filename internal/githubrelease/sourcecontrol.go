package githubrelease

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v43/github"
	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/changelog"
	"github.com/simplesurance/autorelease/internal/githubclt"
	"github.com/simplesurance/autorelease/internal/logfields"
)

// DefaultMaxChangeRecords is the maximum number of pull requests that
// are included in a changelog entry.
const DefaultMaxChangeRecords = 250

// SourceControl retrieves merged pull requests and creates tags and
// commits in a GitHub repository.
type SourceControl struct {
	clt  GithubClient
	repo *Repository

	branchPrefix string
	maxRecords   int

	logger *zap.Logger
}

type SourceControlOption func(*SourceControl)

// WithExcludedBranchPrefix sets the prefix of head branches of pull
// requests that are not included in changelogs.
// The default is DefaultBranchPrefix, which excludes release pull requests.
func WithExcludedBranchPrefix(prefix string) SourceControlOption {
	return func(s *SourceControl) {
		s.branchPrefix = prefix
	}
}

func WithMaxChangeRecords(limit int) SourceControlOption {
	return func(s *SourceControl) {
		s.maxRecords = limit
	}
}

func NewSourceControl(clt GithubClient, repo *Repository, opts ...SourceControlOption) *SourceControl {
	s := SourceControl{
		clt:          clt,
		repo:         repo,
		branchPrefix: DefaultBranchPrefix,
		maxRecords:   DefaultMaxChangeRecords,
	}

	for _, opt := range opts {
		opt(&s)
	}

	s.logger = zap.L().Named(loggerName).With(
		logfields.RepositoryOwner(repo.Owner),
		logfields.Repository(repo.Name),
	)

	return &s
}

// MergedChangesSince returns the pull requests that were merged into the
// release branch after the commit that tag points to was created, oldest
// first.
// If the tag does not exist, the merge time of the release pull request
// for tag is used instead. Releases are only tagged optionally, the
// release pull request exists for every release that was merged.
// If neither exists, all merged pull requests are returned.
func (s *SourceControl) MergedChangesSince(ctx context.Context, tag string) ([]*changelog.ChangeRecord, error) {
	logger := s.logger.With(logfields.Tag(tag))

	var since time.Time
	// head branch of the release pull request of tag, only set when the
	// tag does not exist
	var releaseBranch string

	commit, err := s.clt.TagCommit(ctx, s.repo.Owner, s.repo.Name, tag)
	switch {
	case err == nil:
		since = commit.Date

	case errors.Is(err, githubclt.ErrNotFound):
		if s.branchPrefix != "" {
			releaseBranch = ReleaseBranch(s.branchPrefix, tag)
		}

		logger.Debug(
			"tag of previous release does not exist, searching for its release pull request",
			logfields.Event("github_previous_release_tag_not_found"),
			logfields.Branch(releaseBranch),
		)

	default:
		return nil, fmt.Errorf("resolving tag %s failed: %w", tag, err)
	}

	// merged_at <= updated_at, when sorted by updated_at the iteration
	// can stop at the first pull request updated before since
	it := s.clt.ListPullRequests(ctx, s.repo.Owner, s.repo.Name, "closed", s.repo.Branch, "updated", "desc")

	var result []*changelog.ChangeRecord
	for {
		pr, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("listing pull requests failed: %w", err)
		}

		if pr == nil {
			break
		}

		if !since.IsZero() && pr.GetUpdatedAt().Before(since) {
			break
		}

		if since.IsZero() && s.isReleasePullRequest(pr, releaseBranch) {
			since = pr.GetMergedAt()
			result = mergedAfter(result, since)

			logger.Debug(
				"found release pull request of previous release",
				logfields.Event("github_previous_release_pull_request_found"),
				logfields.PullRequest(pr.GetNumber()),
				zap.Time("merged_at", since),
			)

			continue
		}

		if !s.include(pr, since) {
			continue
		}

		result = append(result, toChangeRecord(pr))

		if len(result) >= s.maxRecords {
			logger.Warn(
				"maximum number of change records reached, older changes are omitted",
				logfields.Event("github_max_change_records_reached"),
				zap.Int("max_change_records", s.maxRecords),
			)
			break
		}
	}

	if since.IsZero() {
		logger.Info(
			"previous release not found, including all merged pull requests",
			logfields.Event("github_previous_release_not_found"),
		)
	}

	changelog.SortRecords(result)

	logger.Debug(
		"retrieved merged pull requests",
		logfields.Event("github_merged_pull_requests_retrieved"),
		zap.Int("count", len(result)),
		zap.Time("since", since),
	)

	return result, nil
}

func (s *SourceControl) isReleasePullRequest(pr *github.PullRequest, releaseBranch string) bool {
	return releaseBranch != "" && pr.MergedAt != nil && pr.GetHead().GetRef() == releaseBranch
}

// mergedAfter returns the records of recs that were merged after t.
func mergedAfter(recs []*changelog.ChangeRecord, t time.Time) []*changelog.ChangeRecord {
	result := recs[:0]

	for _, rec := range recs {
		if rec.MergedAt.After(t) {
			result = append(result, rec)
		}
	}

	return result
}

func (s *SourceControl) include(pr *github.PullRequest, since time.Time) bool {
	if pr.MergedAt == nil {
		return false
	}

	if !pr.GetMergedAt().After(since) {
		return false
	}

	if s.branchPrefix != "" && strings.HasPrefix(pr.GetHead().GetRef(), s.branchPrefix) {
		return false
	}

	return true
}

func toChangeRecord(pr *github.PullRequest) *changelog.ChangeRecord {
	return &changelog.ChangeRecord{
		ID:        fmt.Sprintf("#%d", pr.GetNumber()),
		Title:     strings.TrimSpace(pr.GetTitle()),
		AuthorRef: pr.GetUser().GetLogin(),
		MergedAt:  pr.GetMergedAt(),
		BodyText:  pr.GetBody(),
	}
}

// CreateTag creates a lightweight tag for the commit.
func (s *SourceControl) CreateTag(ctx context.Context, tag, commitID string) error {
	if err := s.clt.CreateTag(ctx, s.repo.Owner, s.repo.Name, tag, commitID); err != nil {
		return err
	}

	s.logger.Info(
		"tag created",
		logfields.Event("github_tag_created"),
		logfields.Tag(tag),
		logfields.Commit(commitID),
	)

	return nil
}

// CommitFile commits a file to the head of branch.
// If branch changed while the commit was created, an error wrapping
// githubclt.ErrNotFastForward is returned.
func (s *SourceControl) CommitFile(ctx context.Context, branch, path, content, message string) error {
	head, err := s.clt.BranchHead(ctx, s.repo.Owner, s.repo.Name, branch)
	if err != nil {
		return fmt.Errorf("retrieving head of branch %s failed: %w", branch, err)
	}

	sha, err := s.clt.CreateCommit(
		ctx, s.repo.Owner, s.repo.Name, head, message,
		[]*githubclt.File{{Path: path, Content: content}},
	)
	if err != nil {
		return fmt.Errorf("creating commit failed: %w", err)
	}

	if err := s.clt.UpdateBranch(ctx, s.repo.Owner, s.repo.Name, branch, sha); err != nil {
		return fmt.Errorf("updating branch %s to %s failed: %w", branch, sha, err)
	}

	s.logger.Debug(
		"file committed",
		logfields.Event("github_file_committed"),
		logfields.Branch(branch),
		logfields.Commit(sha),
		zap.String("path", path),
	)

	return nil
}
