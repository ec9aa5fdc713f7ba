package githubclt

import (
	"context"
	"errors"
	"fmt"

	"github.com/shurcooL/githubv4"
)

// CIStatus abstracts the multiple result values of GitHub check runs and
// Commit statuses into a single value.
type CIStatus string

const (
	CIStatusSuccess CIStatus = "SUCCESS"
	CIStatusPending CIStatus = "PENDING"
	CIStatusFailure CIStatus = "FAILURE"
)

// CIJobStatus is the status of a CI job.
// It represents the status of GitHub CheckRuns and Commit statuses.
type CIJobStatus struct {
	Name     string
	Status   CIStatus
	Required bool
}

// CheckStatus is the combined CI status of the head commit of a pull
// request.
type CheckStatus struct {
	CIStatus CIStatus
	Jobs     []*CIJobStatus
	Commit   string
}

// Failed returns the names of required jobs that failed.
func (s *CheckStatus) Failed() []string {
	var result []string

	for _, job := range s.Jobs {
		if job.Required && job.Status == CIStatusFailure {
			result = append(result, job.Name)
		}
	}

	return result
}

// PullRequestCheckStatus returns the [status check rollup] of the head
// commit of a pull request.
//
// The returned CIStatus is CIStatusPending if one or more checks or
// statuses are pending or a required one did not report yet.
// It is CIStatusFailure if a required check or status failed.
// Failed optional checks are ignored.
//
// [status check rollup]: https://docs.github.com/en/graphql/reference/objects#statuscheckrollup
func (clt *Client) PullRequestCheckStatus(ctx context.Context, owner, repo string, prNumber int) (*CheckStatus, error) {
	res, err := clt.queryCheckStatus(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, clt.wrapGraphQLRetryableErrors(err)
	}

	jobs, err := mergeJobStatuses(res.requiredContexts, res.checkRuns, res.statusContexts)
	if err != nil {
		return nil, err
	}

	return &CheckStatus{
		CIStatus: overallCIStatus(res.rollupState, jobs),
		Jobs:     jobs,
		Commit:   res.commit,
	}, nil
}

func overallCIStatus(rollupState githubv4.StatusState, jobs []*CIJobStatus) CIStatus {
	if rollupState == githubv4.StatusStatePending {
		return CIStatusPending
	}

	result := CIStatusSuccess
	for _, job := range jobs {
		if job.Required && job.Status == CIStatusFailure {
			return CIStatusFailure
		}

		if job.Status == CIStatusPending {
			result = CIStatusPending
		}
	}

	return result
}

func mergeJobStatuses(
	requiredContexts []string,
	checkRuns []*checkRunNode,
	statusContexts []*statusContextNode,
) ([]*CIJobStatus, error) {
	size := len(checkRuns) + len(statusContexts) + len(requiredContexts)
	byName := make(map[string]*CIJobStatus, size)
	result := make([]*CIJobStatus, 0, size)

	set := func(name string, status CIStatus) {
		if job, exists := byName[name]; exists {
			job.Status = status
			return
		}

		job := CIJobStatus{Name: name, Status: status}
		byName[name] = &job
		result = append(result, &job)
	}

	for _, name := range requiredContexts {
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("required status check %q is defined multiple times", name)
		}

		// required checks that did not report yet are pending
		set(name, CIStatusPending)
		byName[name].Required = true
	}

	for _, run := range checkRuns {
		status, err := checkRunToCIStatus(run.Status, run.Conclusion)
		if err != nil {
			return nil, fmt.Errorf("check run %q: %w", run.Name, err)
		}

		set(run.Name, status)
	}

	for _, sc := range statusContexts {
		status, err := statusStateToCIStatus(sc.State)
		if err != nil {
			return nil, fmt.Errorf("status context %q: %w", sc.Context, err)
		}

		set(sc.Context, status)
	}

	return result, nil
}

func checkRunToCIStatus(status githubv4.CheckStatusState, conclusion githubv4.CheckConclusionState) (CIStatus, error) {
	switch status {
	case githubv4.CheckStatusStateInProgress,
		githubv4.CheckStatusStatePending,
		githubv4.CheckStatusStateQueued,
		githubv4.CheckStatusStateRequested,
		githubv4.CheckStatusStateWaiting:
		return CIStatusPending, nil

	case githubv4.CheckStatusStateCompleted:
		break

	default:
		return "", fmt.Errorf("unsupported status value: %q", status)
	}

	switch conclusion {
	case githubv4.CheckConclusionStateCancelled,
		githubv4.CheckConclusionStateFailure,
		githubv4.CheckConclusionStateStale,
		githubv4.CheckConclusionStateStartupFailure,
		githubv4.CheckConclusionStateTimedOut:
		return CIStatusFailure, nil

	case githubv4.CheckConclusionStateActionRequired:
		return CIStatusPending, nil

	case githubv4.CheckConclusionStateNeutral,
		githubv4.CheckConclusionStateSkipped,
		githubv4.CheckConclusionStateSuccess:
		return CIStatusSuccess, nil

	default:
		return "", fmt.Errorf("unsupported conclusion value: %q", conclusion)
	}
}

func statusStateToCIStatus(state githubv4.StatusState) (CIStatus, error) {
	switch state {
	case githubv4.StatusStateError,
		githubv4.StatusStateFailure:
		return CIStatusFailure, nil

	case githubv4.StatusStateExpected,
		githubv4.StatusStatePending:
		return CIStatusPending, nil

	case githubv4.StatusStateSuccess:
		return CIStatusSuccess, nil

	default:
		return "", fmt.Errorf("unsupported status state value: %q", state)
	}
}

type checkRunNode struct {
	Name       string
	Conclusion githubv4.CheckConclusionState
	Status     githubv4.CheckStatusState
}

type statusContextNode struct {
	State   githubv4.StatusState
	Context string
}

type checkStatusQueryResult struct {
	commit           string
	rollupState      githubv4.StatusState
	requiredContexts []string
	checkRuns        []*checkRunNode
	statusContexts   []*statusContextNode
}

type checkStatusQuery struct {
	Repository struct {
		PullRequest struct {
			BaseRef struct {
				BranchProtectionRule struct {
					// contains required commit statuses and
					// check runs
					RequiredStatusCheckContexts []string
				}
			}

			Commits struct {
				Nodes []struct {
					Commit struct {
						Oid               string
						StatusCheckRollup struct {
							State    githubv4.StatusState
							Contexts struct {
								PageInfo struct {
									EndCursor   string
									HasNextPage bool
								}
								Nodes []struct {
									CheckRun      checkRunNode      `graphql:"... on CheckRun"`
									StatusContext statusContextNode `graphql:"... on StatusContext"`
								}
							} `graphql:"contexts(first: $contextsFirst, after: $contextsAfter)"`
						}
					}
				}
			} `graphql:"commits(last: 1)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

func (clt *Client) queryCheckStatus(ctx context.Context, owner, repo string, prNumber int) (*checkStatusQueryResult, error) {
	var result checkStatusQueryResult

	vars := map[string]any{
		"owner":         githubv4.String(owner),
		"name":          githubv4.String(repo),
		"number":        githubv4.Int(prNumber),
		"contextsFirst": githubv4.Int(100),
		"contextsAfter": (*githubv4.String)(nil),
	}

	for {
		var q checkStatusQuery

		if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
			return nil, err
		}

		if len(q.Repository.PullRequest.Commits.Nodes) == 0 {
			return nil, errors.New("github returned a pull request without commits")
		}

		commit := q.Repository.PullRequest.Commits.Nodes[0].Commit

		if result.commit != "" && result.commit != commit.Oid {
			// the pull request changed while paging, start over
			result = checkStatusQueryResult{}
			vars["contextsAfter"] = (*githubv4.String)(nil)

			continue
		}

		result.commit = commit.Oid

		for _, node := range commit.StatusCheckRollup.Contexts.Nodes {
			if node.CheckRun.Name != "" {
				run := node.CheckRun
				result.checkRuns = append(result.checkRuns, &run)
				continue
			}

			sc := node.StatusContext
			result.statusContexts = append(result.statusContexts, &sc)
		}

		pageInfo := commit.StatusCheckRollup.Contexts.PageInfo
		if !pageInfo.HasNextPage {
			result.rollupState = commit.StatusCheckRollup.State
			result.requiredContexts = q.Repository.PullRequest.BaseRef.BranchProtectionRule.RequiredStatusCheckContexts

			return &result, nil
		}

		if pageInfo.EndCursor == "" {
			return nil, errors.New("retrieving all status contexts failed, github returned HasNextPage but an empty EndCursor")
		}

		vars["contextsAfter"] = githubv4.String(pageInfo.EndCursor)
	}
}
