package githubclt

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v43/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/logfields"
	"github.com/simplesurance/autorelease/internal/releaseerr"
)

type PRIterator interface {
	Next() (*github.PullRequest, error)
}

type PRIter struct {
	clt *Client

	ctx   context.Context
	owner string
	repo  string

	filterState   string
	filterBase    string
	sortBy        string
	sortDirection string

	unseen []*github.PullRequest

	nextPage int
	finished bool
}

// Next returns the next pullRequest.
// When the last result was returned a nil PullRequest is returned.
func (it *PRIter) Next() (*github.PullRequest, error) {
	if len(it.unseen) > 0 {
		result := it.unseen[0]
		it.unseen = it.unseen[1:]

		return result, nil
	}

	if it.finished {
		return nil, nil
	}

	prs, resp, err := it.clt.restClt.PullRequests.List(it.ctx, it.owner, it.repo, &github.PullRequestListOptions{
		State:     it.filterState,
		Base:      it.filterBase,
		Sort:      it.sortBy,
		Direction: it.sortDirection,
		ListOptions: github.ListOptions{
			Page:    it.nextPage,
			PerPage: 100,
		},
	})
	if err != nil {
		return nil, it.clt.wrapRetryableErrors(err)
	}

	if resp.NextPage == 0 || len(prs) == 0 {
		it.finished = true
	} else {
		it.nextPage = resp.NextPage
	}

	it.unseen = prs

	return it.Next()
}

// ListPullRequests returns an iterator for receiving all pull requests.
// The parameters state, base, sort, sortDirection expect the same values
// then their pendants in the struct github.PullRequestListOptions.
func (clt *Client) ListPullRequests(ctx context.Context, owner, repo, state, base, sort, sortDirection string) PRIterator { // interface is returned to make the method mockable
	return &PRIter{
		clt:           clt,
		ctx:           ctx,
		owner:         owner,
		repo:          repo,
		filterState:   state,
		filterBase:    base,
		sortBy:        sort,
		sortDirection: sortDirection,
		nextPage:      1,
	}
}

// CreatePullRequest opens a pull request to merge head into base.
func (clt *Client) CreatePullRequest(ctx context.Context, owner, repo, head, base, title, body string) (*github.PullRequest, error) {
	pr, _, err := clt.restClt.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(head),
		Base:  github.String(base),
		Body:  github.String(body),
	})
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	clt.logger.Debug(
		"pull request created",
		logfields.Event("github_pull_request_created"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(pr.GetNumber()),
		logfields.Branch(head),
		logfields.BaseBranch(base),
	)

	return pr, nil
}

// MergePullRequest merges a pull request with the given merge method
// (merge, squash, rebase) and returns the SHA of the resulting commit.
// If github does not allow to merge the pull request yet, e.g. because its
// mergeability was not computed yet, a releaseerr.RetryableError is
// returned.
func (clt *Client) MergePullRequest(ctx context.Context, owner, repo string, pullRequestNumber int, method string) (string, error) {
	res, _, err := clt.restClt.PullRequests.Merge(
		ctx, owner, repo, pullRequestNumber, "",
		&github.PullRequestOptions{MergeMethod: method},
	)
	if err != nil {
		if isStatus(err, http.StatusMethodNotAllowed) {
			return "", releaseerr.NewRetryableAnytimeError(err)
		}

		return "", clt.wrapRetryableErrors(err)
	}

	if !res.GetMerged() {
		return "", fmt.Errorf("github did not merge the pull request: %s", res.GetMessage())
	}

	return res.GetSHA(), nil
}

// ClosePullRequest closes a pull request without merging it.
func (clt *Client) ClosePullRequest(ctx context.Context, owner, repo string, pullRequestNumber int) error {
	_, _, err := clt.restClt.PullRequests.Edit(ctx, owner, repo, pullRequestNumber, &github.PullRequest{
		State: github.String("closed"),
	})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return fmt.Errorf("pull request %d: %w", pullRequestNumber, ErrNotFound)
		}

		return clt.wrapRetryableErrors(err)
	}

	return nil
}

// EnableAutoMerge enables auto-merge for a pull request, github merges it
// when all requirements are fulfilled.
// pullRequestNodeID is the GraphQL ID of the pull request, method is one
// of MERGE, SQUASH or REBASE.
func (clt *Client) EnableAutoMerge(ctx context.Context, pullRequestNodeID string, method githubv4.PullRequestMergeMethod) error {
	var m struct {
		EnablePullRequestAutoMerge struct {
			PullRequest struct {
				Number int
			}
		} `graphql:"enablePullRequestAutoMerge(input: $input)"`
	}

	input := EnablePullRequestAutoMergeInput{
		PullRequestID: githubv4.ID(pullRequestNodeID),
		MergeMethod:   &method,
	}

	err := clt.graphQLClt.Mutate(ctx, &m, input, nil)
	if err != nil {
		clt.logger.Debug(
			"enabling auto-merge failed",
			logfields.Event("github_enable_auto_merge_failed"),
			zap.String("github.pull_request_node_id", pullRequestNodeID),
			zap.Error(err),
		)

		return clt.wrapGraphQLRetryableErrors(err)
	}

	return nil
}

// EnablePullRequestAutoMergeInput is the input of the
// enablePullRequestAutoMerge mutation.
// The GraphQL variable type is derived from the struct name.
type EnablePullRequestAutoMergeInput struct {
	PullRequestID githubv4.ID                      `json:"pullRequestId"`
	MergeMethod   *githubv4.PullRequestMergeMethod `json:"mergeMethod,omitempty"`
}
