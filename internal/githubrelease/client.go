// Package githubrelease implements the collaborators of the release
// orchestrator for GitHub repositories.
//
// The version and changelog files are read from the release branch of the
// repository. Releases are persisted as a single commit on a new branch
// that is merged via a pull request, the release branch itself is only
// changed when the pull request is merged.
package githubrelease

import (
	"context"
	"fmt"

	"github.com/google/go-github/v43/github"
	"github.com/shurcooL/githubv4"

	"github.com/simplesurance/autorelease/internal/githubclt"
)

const loggerName = "github_release"

// DefaultBranchPrefix is prepended to the tag name to form the name of the
// branch containing the release commit.
const DefaultBranchPrefix = "release/"

// GithubClient defines the methods of a GithubAPI Client that are used by
// the collaborators.
type GithubClient interface {
	BranchHead(ctx context.Context, owner, repo, branch string) (string, error)
	FileContent(ctx context.Context, owner, repo, ref, path string) (string, error)
	CreateCommit(ctx context.Context, owner, repo, parentSHA, message string, files []*githubclt.File) (string, error)
	CreateBranch(ctx context.Context, owner, repo, branch, commitSHA string) error
	UpdateBranch(ctx context.Context, owner, repo, branch, commitSHA string) error
	DeleteBranch(ctx context.Context, owner, repo, branch string) error
	CreateTag(ctx context.Context, owner, repo, tag, commitSHA string) error
	TagCommit(ctx context.Context, owner, repo, tag string) (*githubclt.Commit, error)
	ListPullRequests(ctx context.Context, owner, repo, state, base, sort, sortDirection string) githubclt.PRIterator
	CreatePullRequest(ctx context.Context, owner, repo, head, base, title, body string) (*github.PullRequest, error)
	AddLabels(ctx context.Context, owner, repo string, pullRequestOrIssueNumber int, labels []string) error
	MergePullRequest(ctx context.Context, owner, repo string, pullRequestNumber int, method string) (string, error)
	ClosePullRequest(ctx context.Context, owner, repo string, pullRequestNumber int) error
	EnableAutoMerge(ctx context.Context, pullRequestNodeID string, method githubv4.PullRequestMergeMethod) error
	PullRequestCheckStatus(ctx context.Context, owner, repo string, prNumber int) (*githubclt.CheckStatus, error)
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
}

// Repository identifies a GitHub repository and the branch that releases
// are created for.
type Repository struct {
	Owner  string
	Name   string
	Branch string
}

func (r *Repository) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// ReleaseBranch returns the name of the branch for the release commit of
// tag.
func ReleaseBranch(prefix, tag string) string {
	return prefix + tag
}
