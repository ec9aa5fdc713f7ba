package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v43/github"

	"github.com/simplesurance/autorelease/internal/logfields"
)

const (
	fileModeBlob = "100644"
	objectBlob   = "blob"
	objectTag    = "tag"
)

// File is the content of a file that is committed.
type File struct {
	Path    string
	Content string
}

// Commit is a git commit.
type Commit struct {
	SHA  string
	Date time.Time
}

// BranchHead returns the SHA of the commit that branch points to.
// If the branch does not exist ErrNotFound is returned.
func (clt *Client) BranchHead(ctx context.Context, owner, repo, branch string) (string, error) {
	ref, _, err := clt.restClt.Git.GetRef(ctx, owner, repo, "heads/"+branch)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return "", fmt.Errorf("branch %s: %w", branch, ErrNotFound)
		}

		return "", clt.wrapRetryableErrors(err)
	}

	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("github returned ref %s with empty object sha", ref.GetRef())
	}

	return sha, nil
}

// FileContent returns the content of the file at path in the state of ref.
// ref can be a branch name, a tag or a commit SHA.
// If the file does not exist ErrNotFound is returned.
func (clt *Client) FileContent(ctx context.Context, owner, repo, ref, path string) (string, error) {
	file, _, _, err := clt.restClt.Repositories.GetContents(
		ctx, owner, repo, path,
		&github.RepositoryContentGetOptions{Ref: ref},
	)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return "", fmt.Errorf("file %s: %w", path, ErrNotFound)
		}

		return "", clt.wrapRetryableErrors(err)
	}

	if file == nil {
		return "", fmt.Errorf("%s is a directory, expected a file", path)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding content of %s failed: %w", path, err)
	}

	return content, nil
}

// CreateCommit creates a commit that changes files on top of parentSHA.
// The commit is not referenced by any branch, the SHA of the created
// commit is returned.
func (clt *Client) CreateCommit(ctx context.Context, owner, repo, parentSHA, message string, files []*File) (string, error) {
	parent, _, err := clt.restClt.Git.GetCommit(ctx, owner, repo, parentSHA)
	if err != nil {
		return "", clt.wrapRetryableErrors(err)
	}

	entries := make([]*github.TreeEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, &github.TreeEntry{
			Path:    github.String(f.Path),
			Mode:    github.String(fileModeBlob),
			Type:    github.String(objectBlob),
			Content: github.String(f.Content),
		})
	}

	tree, _, err := clt.restClt.Git.CreateTree(ctx, owner, repo, parent.GetTree().GetSHA(), entries)
	if err != nil {
		return "", clt.wrapRetryableErrors(err)
	}

	commit, _, err := clt.restClt.Git.CreateCommit(ctx, owner, repo, &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: tree.SHA},
		Parents: []*github.Commit{{SHA: github.String(parentSHA)}},
	})
	if err != nil {
		return "", clt.wrapRetryableErrors(err)
	}

	clt.logger.Debug(
		"commit created",
		logfields.Event("github_commit_created"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Commit(commit.GetSHA()),
	)

	return commit.GetSHA(), nil
}

// CreateBranch creates a branch pointing to commitSHA.
// If the branch already exists ErrRefExists is returned.
func (clt *Client) CreateBranch(ctx context.Context, owner, repo, branch, commitSHA string) error {
	return clt.createRef(ctx, owner, repo, "refs/heads/"+branch, commitSHA)
}

// CreateTag creates a lightweight tag pointing to commitSHA.
// If the tag already exists ErrRefExists is returned.
func (clt *Client) CreateTag(ctx context.Context, owner, repo, tag, commitSHA string) error {
	return clt.createRef(ctx, owner, repo, "refs/tags/"+tag, commitSHA)
}

func (clt *Client) createRef(ctx context.Context, owner, repo, ref, commitSHA string) error {
	_, _, err := clt.restClt.Git.CreateRef(ctx, owner, repo, &github.Reference{
		Ref:    github.String(ref),
		Object: &github.GitObject{SHA: github.String(commitSHA)},
	})
	if err != nil {
		if isUnprocessable(err, "already exists") {
			return fmt.Errorf("%s: %w", ref, ErrRefExists)
		}

		return clt.wrapRetryableErrors(err)
	}

	return nil
}

// UpdateBranch sets branch to commitSHA, the update must be a fast-forward.
// If it is not, ErrNotFastForward is returned.
func (clt *Client) UpdateBranch(ctx context.Context, owner, repo, branch, commitSHA string) error {
	_, _, err := clt.restClt.Git.UpdateRef(ctx, owner, repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(commitSHA)},
	}, false)
	if err != nil {
		if isUnprocessable(err, "fast forward") {
			return fmt.Errorf("branch %s: %w", branch, ErrNotFastForward)
		}

		return clt.wrapRetryableErrors(err)
	}

	return nil
}

// DeleteBranch deletes a branch.
// If the branch does not exist ErrNotFound is returned.
func (clt *Client) DeleteBranch(ctx context.Context, owner, repo, branch string) error {
	_, err := clt.restClt.Git.DeleteRef(ctx, owner, repo, "heads/"+branch)
	if err != nil {
		if isStatus(err, http.StatusNotFound) || isUnprocessable(err, "does not exist") {
			return fmt.Errorf("branch %s: %w", branch, ErrNotFound)
		}

		return clt.wrapRetryableErrors(err)
	}

	clt.logger.Debug(
		"branch deleted",
		logfields.Event("github_branch_deleted"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Branch(branch),
	)

	return nil
}

// TagCommit returns the commit that tag references, annotated tags are
// resolved to the tagged commit.
// If the tag does not exist ErrNotFound is returned.
func (clt *Client) TagCommit(ctx context.Context, owner, repo, tag string) (*Commit, error) {
	ref, _, err := clt.restClt.Git.GetRef(ctx, owner, repo, "tags/"+tag)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("tag %s: %w", tag, ErrNotFound)
		}

		return nil, clt.wrapRetryableErrors(err)
	}

	sha := ref.GetObject().GetSHA()

	if ref.GetObject().GetType() == objectTag {
		annotated, _, err := clt.restClt.Git.GetTag(ctx, owner, repo, sha)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		sha = annotated.GetObject().GetSHA()
	}

	commit, _, err := clt.restClt.Git.GetCommit(ctx, owner, repo, sha)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	return &Commit{
		SHA:  commit.GetSHA(),
		Date: commit.GetCommitter().GetDate(),
	}, nil
}

func isUnprocessable(err error, msgSubstr string) bool {
	var respErr *github.ErrorResponse
	if !errors.As(err, &respErr) {
		return false
	}

	if respErr.Response == nil || respErr.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}

	return strings.Contains(strings.ToLower(respErr.Message), msgSubstr)
}
