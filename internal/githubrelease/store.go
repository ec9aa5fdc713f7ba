package githubrelease

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/githubclt"
	"github.com/simplesurance/autorelease/internal/logfields"
	"github.com/simplesurance/autorelease/internal/version"
	"github.com/simplesurance/autorelease/internal/versionstore"
)

// Store reads the version and changelog files from a branch of a GitHub
// repository and persists new releases as a commit on a release branch.
//
// The revision of a snapshot is the SHA of the head commit of the branch.
type Store struct {
	clt  GithubClient
	repo *Repository

	versionFile   string
	changelogFile string
	branchPrefix  string
	tagPrefix     string

	logger *zap.Logger
}

type StoreOption func(*Store)

func WithFiles(versionFile, changelogFile string) StoreOption {
	return func(s *Store) {
		s.versionFile = versionFile
		s.changelogFile = changelogFile
	}
}

// WithReleaseBranch sets the prefix of release branch names and the prefix
// of tag names that is used to build them.
func WithReleaseBranch(branchPrefix, tagPrefix string) StoreOption {
	return func(s *Store) {
		s.branchPrefix = branchPrefix
		s.tagPrefix = tagPrefix
	}
}

func NewStore(clt GithubClient, repo *Repository, opts ...StoreOption) *Store {
	s := Store{
		clt:           clt,
		repo:          repo,
		versionFile:   versionstore.DefaultVersionFile,
		changelogFile: versionstore.DefaultChangelogFile,
		branchPrefix:  DefaultBranchPrefix,
		tagPrefix:     "v",
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

// Current returns the version and changelog of the head commit of branch
// ref. Missing files are interpreted as version 0.0.0 and an empty
// changelog.
func (s *Store) Current(ctx context.Context, ref string) (*versionstore.Snapshot, error) {
	head, err := s.clt.BranchHead(ctx, s.repo.Owner, s.repo.Name, ref)
	if err != nil {
		return nil, fmt.Errorf("retrieving head of branch %s failed: %w", ref, err)
	}

	versionContent, err := s.optionalFile(ctx, head, s.versionFile)
	if err != nil {
		return nil, err
	}

	ver, err := versionstore.ParseVersionFile(versionContent)
	if err != nil {
		return nil, fmt.Errorf("%s@%s: %w", s.versionFile, head, err)
	}

	changelog, err := s.optionalFile(ctx, head, s.changelogFile)
	if err != nil {
		return nil, err
	}

	return &versionstore.Snapshot{
		Ref:       ref,
		Version:   ver,
		Changelog: changelog,
		Revision:  head,
	}, nil
}

func (s *Store) optionalFile(ctx context.Context, commit, path string) (string, error) {
	content, err := s.clt.FileContent(ctx, s.repo.Owner, s.repo.Name, commit, path)
	if err != nil {
		if errors.Is(err, githubclt.ErrNotFound) {
			s.logger.Debug(
				"file does not exist, using empty content",
				logfields.Event("github_file_not_found"),
				logfields.Commit(commit),
				zap.String("path", path),
			)

			return "", nil
		}

		return "", fmt.Errorf("retrieving %s@%s failed: %w", path, commit, err)
	}

	return content, nil
}

// Persist creates a single commit containing the version and changelog
// file on top of the base revision and creates a release branch for it.
//
// If the branch moved after base was read or the release branch already
// exists, versionstore.ErrPersistenceConflict is returned. Nothing that is
// observable via Current is changed when Persist fails.
func (s *Store) Persist(ctx context.Context, base *versionstore.Snapshot, next version.Version, changelog string) (*versionstore.Commit, error) {
	head, err := s.clt.BranchHead(ctx, s.repo.Owner, s.repo.Name, base.Ref)
	if err != nil {
		return nil, fmt.Errorf("retrieving head of branch %s failed: %w", base.Ref, err)
	}

	if head != base.Revision {
		return nil, fmt.Errorf(
			"branch %s changed from %s to %s: %w",
			base.Ref, base.Revision, head, versionstore.ErrPersistenceConflict,
		)
	}

	tag := next.Tag(s.tagPrefix)
	branch := ReleaseBranch(s.branchPrefix, tag)

	sha, err := s.clt.CreateCommit(
		ctx, s.repo.Owner, s.repo.Name, base.Revision,
		"Release "+tag,
		[]*githubclt.File{
			{Path: s.versionFile, Content: versionstore.FormatVersionFile(next)},
			{Path: s.changelogFile, Content: changelog},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating release commit failed: %w", err)
	}

	err = s.clt.CreateBranch(ctx, s.repo.Owner, s.repo.Name, branch, sha)
	if err != nil {
		if errors.Is(err, githubclt.ErrRefExists) {
			return nil, fmt.Errorf("release branch %s: %w", branch, versionstore.ErrPersistenceConflict)
		}

		return nil, fmt.Errorf("creating release branch %s failed: %w", branch, err)
	}

	s.logger.Info(
		"release commit created",
		logfields.Event("github_release_commit_created"),
		logfields.Branch(branch),
		logfields.Commit(sha),
		logfields.Version(next),
	)

	return &versionstore.Commit{Ref: branch, ID: sha}, nil
}

// Discard deletes the release branch that Persist created. The branch
// that releases are made for was not changed by Persist, deleting the
// release branch restores the state of base.
func (s *Store) Discard(ctx context.Context, _ *versionstore.Snapshot, commit *versionstore.Commit) error {
	err := s.clt.DeleteBranch(ctx, s.repo.Owner, s.repo.Name, commit.Ref)
	if err != nil {
		if errors.Is(err, githubclt.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("deleting release branch %s failed: %w", commit.Ref, err)
	}

	s.logger.Info(
		"release branch deleted",
		logfields.Event("github_release_branch_deleted"),
		logfields.Branch(commit.Ref),
		logfields.Commit(commit.ID),
	)

	return nil
}
