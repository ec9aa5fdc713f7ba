package githubrelease

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/go-github/v43/github"
	"github.com/shurcooL/githubv4"

	"github.com/simplesurance/autorelease/internal/githubclt"
)

// fakeGithub is an in-memory implementation of GithubClient for a single
// repository.
type fakeGithub struct {
	mu sync.Mutex

	branches map[string]string
	// files by commit sha
	files   map[string]map[string]string
	parents map[string]string
	tags    map[string]*githubclt.Commit

	closedPRs []*github.PullRequest

	createdPRs   []*github.PullRequest
	closed       map[int]bool
	prBodies     map[int]string
	labels       map[int][]string
	mergeMethods map[int]string
	autoMerge    map[string]githubv4.PullRequestMergeMethod
	comments     map[int][]string
	checkStatus  githubclt.CIStatus
	listedBase   string

	// now returns the time that is used for tags and merged pull
	// requests.
	now func() time.Time

	shaCnt int
}

func newFakeGithub() *fakeGithub {
	return &fakeGithub{
		branches:     map[string]string{},
		files:        map[string]map[string]string{},
		parents:      map[string]string{},
		tags:         map[string]*githubclt.Commit{},
		prBodies:     map[int]string{},
		labels:       map[int][]string{},
		mergeMethods: map[int]string{},
		autoMerge:    map[string]githubv4.PullRequestMergeMethod{},
		comments:     map[int][]string{},
		closed:       map[int]bool{},
		checkStatus:  githubclt.CIStatusSuccess,
		now:          time.Now,
	}
}

func (f *fakeGithub) newSHA() string {
	f.shaCnt++
	return fmt.Sprintf("sha%d", f.shaCnt)
}

// setBranch creates a commit with files on top of the branch.
func (f *fakeGithub) setBranch(branch string, files map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	sha := f.newSHA()
	f.files[sha] = files
	f.parents[sha] = f.branches[branch]
	f.branches[branch] = sha

	return sha
}

func (f *fakeGithub) resolve(ref string) string {
	if sha, exists := f.branches[ref]; exists {
		return sha
	}

	return ref
}

func (f *fakeGithub) BranchHead(_ context.Context, _, _, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sha, exists := f.branches[branch]
	if !exists {
		return "", fmt.Errorf("branch %s: %w", branch, githubclt.ErrNotFound)
	}

	return sha, nil
}

func (f *fakeGithub) FileContent(_ context.Context, _, _, ref, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	files, exists := f.files[f.resolve(ref)]
	if !exists {
		return "", fmt.Errorf("ref %s: %w", ref, githubclt.ErrNotFound)
	}

	content, exists := files[path]
	if !exists {
		return "", fmt.Errorf("file %s: %w", path, githubclt.ErrNotFound)
	}

	return content, nil
}

func (f *fakeGithub) CreateCommit(_ context.Context, _, _, parentSHA, _ string, files []*githubclt.File) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parentFiles, exists := f.files[parentSHA]
	if !exists {
		return "", fmt.Errorf("commit %s: %w", parentSHA, githubclt.ErrNotFound)
	}

	newFiles := make(map[string]string, len(parentFiles)+len(files))
	for k, v := range parentFiles {
		newFiles[k] = v
	}

	for _, file := range files {
		newFiles[file.Path] = file.Content
	}

	sha := f.newSHA()
	f.files[sha] = newFiles
	f.parents[sha] = parentSHA

	return sha, nil
}

func (f *fakeGithub) CreateBranch(_ context.Context, _, _, branch, commitSHA string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.branches[branch]; exists {
		return fmt.Errorf("refs/heads/%s: %w", branch, githubclt.ErrRefExists)
	}

	f.branches[branch] = commitSHA

	return nil
}

func (f *fakeGithub) UpdateBranch(_ context.Context, _, _, branch, commitSHA string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.parents[commitSHA] != f.branches[branch] {
		return fmt.Errorf("branch %s: %w", branch, githubclt.ErrNotFastForward)
	}

	f.branches[branch] = commitSHA

	return nil
}

func (f *fakeGithub) DeleteBranch(_ context.Context, _, _, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.branches[branch]; !exists {
		return fmt.Errorf("branch %s: %w", branch, githubclt.ErrNotFound)
	}

	delete(f.branches, branch)

	return nil
}

func (f *fakeGithub) CreateTag(_ context.Context, _, _, tag, commitSHA string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.tags[tag]; exists {
		return fmt.Errorf("refs/tags/%s: %w", tag, githubclt.ErrRefExists)
	}

	f.tags[tag] = &githubclt.Commit{SHA: commitSHA, Date: f.now()}

	return nil
}

func (f *fakeGithub) TagCommit(_ context.Context, _, _, tag string) (*githubclt.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, exists := f.tags[tag]
	if !exists {
		return nil, fmt.Errorf("tag %s: %w", tag, githubclt.ErrNotFound)
	}

	return c, nil
}

type sliceIter struct {
	prs []*github.PullRequest
}

func (it *sliceIter) Next() (*github.PullRequest, error) {
	if len(it.prs) == 0 {
		return nil, nil
	}

	pr := it.prs[0]
	it.prs = it.prs[1:]

	return pr, nil
}

func (f *fakeGithub) ListPullRequests(_ context.Context, _, _, _, base, _, _ string) githubclt.PRIterator {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listedBase = base

	prs := append([]*github.PullRequest(nil), f.closedPRs...)
	sort.SliceStable(prs, func(i, j int) bool {
		return prs[i].GetUpdatedAt().After(prs[j].GetUpdatedAt())
	})

	return &sliceIter{prs: prs}
}

func (f *fakeGithub) CreatePullRequest(_ context.Context, _, _, head, base, title, body string) (*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	nr := 100 + len(f.createdPRs)

	pr := &github.PullRequest{
		Number:  github.Int(nr),
		NodeID:  github.String(fmt.Sprintf("PR_%d", nr)),
		HTMLURL: github.String(fmt.Sprintf("https://github.com/o/r/pull/%d", nr)),
		Title:   github.String(title),
		Head:    &github.PullRequestBranch{Ref: github.String(head)},
		Base:    &github.PullRequestBranch{Ref: github.String(base)},
	}

	f.createdPRs = append(f.createdPRs, pr)
	f.prBodies[nr] = body

	return pr, nil
}

func (f *fakeGithub) AddLabels(_ context.Context, _, _ string, nr int, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.labels[nr] = append(f.labels[nr], labels...)

	return nil
}

// MergePullRequest fast-forwards the base branch to the head of the pull
// request.
func (f *fakeGithub) MergePullRequest(_ context.Context, _, _ string, nr int, method string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, pr := range f.createdPRs {
		if pr.GetNumber() != nr {
			continue
		}

		if f.closed[nr] {
			return "", fmt.Errorf("pull request %d is closed", nr)
		}

		sha := f.branches[pr.GetHead().GetRef()]
		f.branches[pr.GetBase().GetRef()] = sha
		f.mergeMethods[nr] = method
		f.closed[nr] = true

		mergedAt := f.now()
		f.closedPRs = append(f.closedPRs, closedPR(nr, pr.GetTitle(), pr.GetHead().GetRef(), &mergedAt, &mergedAt))

		return sha, nil
	}

	return "", fmt.Errorf("pull request %d: %w", nr, githubclt.ErrNotFound)
}

func (f *fakeGithub) ClosePullRequest(_ context.Context, _, _ string, nr int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, pr := range f.createdPRs {
		if pr.GetNumber() == nr {
			f.closed[nr] = true
			return nil
		}
	}

	return fmt.Errorf("pull request %d: %w", nr, githubclt.ErrNotFound)
}

func (f *fakeGithub) EnableAutoMerge(_ context.Context, nodeID string, method githubv4.PullRequestMergeMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.autoMerge[nodeID] = method

	return nil
}

func (f *fakeGithub) PullRequestCheckStatus(context.Context, string, string, int) (*githubclt.CheckStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := githubclt.CheckStatus{CIStatus: f.checkStatus}
	if f.checkStatus == githubclt.CIStatusFailure {
		status.Jobs = []*githubclt.CIJobStatus{{Name: "build", Status: githubclt.CIStatusFailure, Required: true}}
	}

	return &status, nil
}

func (f *fakeGithub) CreateIssueComment(_ context.Context, _, _ string, nr int, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.comments[nr] = append(f.comments[nr], comment)

	return nil
}

func closedPR(nr int, title, head string, mergedAt, updatedAt *time.Time) *github.PullRequest {
	return &github.PullRequest{
		Number:    github.Int(nr),
		Title:     github.String(title),
		State:     github.String("closed"),
		User:      &github.User{Login: github.String("dev")},
		Head:      &github.PullRequestBranch{Ref: github.String(head)},
		Base:      &github.PullRequestBranch{Ref: github.String("main")},
		MergedAt:  mergedAt,
		UpdatedAt: updatedAt,
	}
}
