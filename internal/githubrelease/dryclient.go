package githubrelease

import (
	"context"

	"github.com/google/go-github/v43/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/githubclt"
)

const dryCommitSHA = "0000000000000000000000000000000000000000"

// DryGithubClient is a github-client that does not do any changes on github.
// All operations that could cause a change are simulated and always succeed.
// All other operations are forwarded to a wrapped GithubClient.
type DryGithubClient struct {
	clt    GithubClient
	logger *zap.Logger
}

func NewDryGithubClient(clt GithubClient, logger *zap.Logger) *DryGithubClient {
	return &DryGithubClient{
		clt:    clt,
		logger: logger.Named("dry_github_client"),
	}
}

func (c *DryGithubClient) BranchHead(ctx context.Context, owner, repo, branch string) (string, error) {
	return c.clt.BranchHead(ctx, owner, repo, branch)
}

func (c *DryGithubClient) FileContent(ctx context.Context, owner, repo, ref, path string) (string, error) {
	return c.clt.FileContent(ctx, owner, repo, ref, path)
}

func (c *DryGithubClient) TagCommit(ctx context.Context, owner, repo, tag string) (*githubclt.Commit, error) {
	return c.clt.TagCommit(ctx, owner, repo, tag)
}

func (c *DryGithubClient) ListPullRequests(ctx context.Context, owner, repo, state, base, sort, sortDirection string) githubclt.PRIterator {
	return c.clt.ListPullRequests(ctx, owner, repo, state, base, sort, sortDirection)
}

func (c *DryGithubClient) CreateCommit(_ context.Context, _, _, parentSHA, message string, files []*githubclt.File) (string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}

	c.logger.Info(
		"simulated creating commit, no commit created on github",
		zap.String("parent", parentSHA),
		zap.String("message", message),
		zap.Strings("files", paths),
	)

	return dryCommitSHA, nil
}

func (c *DryGithubClient) CreateBranch(_ context.Context, _, _, branch, _ string) error {
	c.logger.Info("simulated creating branch, no branch created on github", zap.String("branch", branch))
	return nil
}

func (c *DryGithubClient) UpdateBranch(_ context.Context, _, _, branch, _ string) error {
	c.logger.Info("simulated updating branch, branch not changed on github", zap.String("branch", branch))
	return nil
}

func (c *DryGithubClient) DeleteBranch(_ context.Context, _, _, branch string) error {
	c.logger.Info("simulated deleting branch, branch not deleted on github", zap.String("branch", branch))
	return nil
}

func (c *DryGithubClient) CreateTag(_ context.Context, _, _, tag, _ string) error {
	c.logger.Info("simulated creating tag, no tag created on github", zap.String("tag", tag))
	return nil
}

func (c *DryGithubClient) CreatePullRequest(_ context.Context, _, _, head, base, title, _ string) (*github.PullRequest, error) {
	c.logger.Info(
		"simulated creating pull request, no pull request created on github",
		zap.String("head", head),
		zap.String("base", base),
		zap.String("title", title),
	)

	return &github.PullRequest{
		Number: github.Int(0),
		Title:  github.String(title),
	}, nil
}

func (c *DryGithubClient) AddLabels(context.Context, string, string, int, []string) error {
	return nil
}

func (c *DryGithubClient) MergePullRequest(context.Context, string, string, int, string) (string, error) {
	c.logger.Info("simulated merging pull request, pull request not merged on github")
	return dryCommitSHA, nil
}

func (c *DryGithubClient) ClosePullRequest(_ context.Context, _, _ string, nr int) error {
	c.logger.Info("simulated closing pull request, pull request not closed on github", zap.Int("github.pull_request", nr))
	return nil
}

func (c *DryGithubClient) EnableAutoMerge(context.Context, string, githubv4.PullRequestMergeMethod) error {
	c.logger.Info("simulated enabling auto-merge, auto-merge not enabled on github")
	return nil
}

func (c *DryGithubClient) PullRequestCheckStatus(context.Context, string, string, int) (*githubclt.CheckStatus, error) {
	c.logger.Info("simulated fetching check status, all checks successful")

	return &githubclt.CheckStatus{CIStatus: githubclt.CIStatusSuccess}, nil
}

func (c *DryGithubClient) CreateIssueComment(context.Context, string, string, int, string) error {
	c.logger.Info("simulated creating of github issue comment, no comment created on github")
	return nil
}
