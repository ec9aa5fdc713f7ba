package release_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/autorelease/internal/changelog"
	"github.com/simplesurance/autorelease/internal/labels"
	"github.com/simplesurance/autorelease/internal/release"
	"github.com/simplesurance/autorelease/internal/release/mocks"
	"github.com/simplesurance/autorelease/internal/releaseerr"
	"github.com/simplesurance/autorelease/internal/version"
	"github.com/simplesurance/autorelease/internal/versionstore"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store *versionstore.Mem
	scm   *mocks.MockSourceControl
	forge *mocks.MockForge
}

func newTestEnv(t *testing.T, current version.Version) *testEnv {
	ctrl := gomock.NewController(t)

	return &testEnv{
		store: versionstore.NewMem(current, ""),
		scm:   mocks.NewMockSourceControl(ctrl),
		forge: mocks.NewMockForge(ctrl),
	}
}

func newOrchestrator(t *testing.T, store release.Store, scm release.SourceControl, forge release.Forge, opts ...release.Option) *release.Orchestrator {
	opts = append([]release.Option{
		release.WithClock(func() time.Time { return testNow }),
		release.WithLogger(zaptest.NewLogger(t)),
	}, opts...)

	return release.NewOrchestrator(
		labels.DefaultClassifier(),
		changelog.NewGenerator(nil),
		store,
		scm,
		forge,
		opts...,
	)
}

func mergeEvent(lbls ...string) *release.MergeEvent {
	return &release.MergeEvent{
		Repository:  "testman/repo",
		PullRequest: 7,
		DeliveryID:  "abc",
		Labels:      labels.NewLabelSet(lbls...),
		SourceRef:   "feature",
		TargetRef:   "main",
	}
}

func twoRecords() []*changelog.ChangeRecord {
	// returned in reverse chronological order on purpose
	return []*changelog.ChangeRecord{
		{ID: "#6", Title: "Second change", MergedAt: testNow.Add(-time.Hour)},
		{ID: "#5", Title: "First change", MergedAt: testNow.Add(-2 * time.Hour)},
	}
}

func mockSuccessfulPR(forge *mocks.MockForge, method release.MergeMethod, merged bool) *release.Request {
	var req release.Request

	forge.EXPECT().
		OpenPullRequest(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r *release.Request) (*release.PRHandle, error) {
			req = *r
			return &release.PRHandle{Number: 42, HeadRef: r.SourceRef}, nil
		})

	mr := release.MergeResult{Merged: merged}
	if merged {
		mr.CommitID = "c0ffee"
	}

	forge.EXPECT().
		MergePullRequest(gomock.Any(), gomock.Any(), gomock.Eq(method)).
		Return(&mr, nil)

	return &req
}

func TestRunReleasesMinorVersion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, version.New(0, 4, 9))

	env.scm.EXPECT().
		MergedChangesSince(gomock.Any(), gomock.Eq("v0.4.9")).
		Return(twoRecords(), nil)

	req := mockSuccessfulPR(env.forge, release.MergeMethodMerge, true)

	o := newOrchestrator(t, env.store, env.scm, env.forge)

	res, err := o.Run(ctx, mergeEvent("deploy-minor"))
	require.NoError(t, err)

	assert.Equal(t, release.Released, res.Kind)
	assert.Equal(t, version.New(0, 5, 0), res.Version)
	assert.Equal(t, version.New(0, 4, 9), res.PreviousVersion)
	assert.Equal(t, release.StateDone, res.FinalState())
	assert.Equal(t, 42, res.PullRequest.Number)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t,
		[]release.State{
			release.StateIdle,
			release.StateClassifying,
			release.StateBumping,
			release.StateChangelogGeneration,
			release.StatePersisting,
			release.StateRequestingRelease,
			release.StateDone,
		},
		res.States,
	)

	snap, err := env.store.Current(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, version.New(0, 5, 0), snap.Version)

	first := strings.Index(snap.Changelog, "First change")
	second := strings.Index(snap.Changelog, "Second change")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second, "changes are not in chronological order")
	assert.Contains(t, snap.Changelog, "## [0.5.0] - 2026-10-17")

	assert.Equal(t, version.New(0, 5, 0), req.Version)
	assert.Equal(t, "v0.5.0", req.Tag)
	assert.Equal(t, "Release v0.5.0", req.Title())
	assert.Equal(t, "main", req.TargetRef)
	assert.Contains(t, req.Changelog.Body, "First change")
}

func TestRunWithoutReleaseLabelIsSkipped(t *testing.T) {
	env := newTestEnv(t, version.New(1, 0, 0))
	o := newOrchestrator(t, env.store, env.scm, env.forge)

	for _, lbls := range [][]string{nil, {"bug", "deploy"}} {
		res, err := o.Run(context.Background(), mergeEvent(lbls...))
		require.NoError(t, err)

		assert.Equal(t, release.SkippedNoLabel, res.Kind)
		assert.Equal(t,
			[]release.State{release.StateIdle, release.StateClassifying, release.StateAborted},
			res.States,
		)
	}

	snap, err := env.store.Current(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, version.New(1, 0, 0), snap.Version)
}

func TestRunMultipleLabelsUsesHighestPrecedence(t *testing.T) {
	env := newTestEnv(t, version.New(1, 2, 3))

	env.scm.EXPECT().MergedChangesSince(gomock.Any(), gomock.Any()).Return(nil, nil)
	mockSuccessfulPR(env.forge, release.MergeMethodMerge, true)

	res, err := newOrchestrator(t, env.store, env.scm, env.forge).
		Run(context.Background(), mergeEvent("deploy-patch", "deploy-major"))
	require.NoError(t, err)

	assert.Equal(t, version.New(2, 0, 0), res.Version)
}

func TestFailedPersistLeavesVersionUnchanged(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, version.New(0, 4, 9))
	env.store.FailPersist = func() error { return errors.New("write failed") }

	env.scm.EXPECT().MergedChangesSince(gomock.Any(), gomock.Any()).Return(twoRecords(), nil)

	res, err := newOrchestrator(t, env.store, env.scm, env.forge).Run(ctx, mergeEvent("deploy-minor"))
	require.Error(t, err)

	assert.Equal(t, release.AbortedError, res.Kind)
	assert.Equal(t, release.StateAborted, res.FinalState())
	assert.Equal(t, err, res.Err)

	var runErr *release.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, release.StatePersisting, runErr.State)

	var extErr *release.ExternalCollaboratorError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, release.CollaboratorVersionStore, extErr.Collaborator)

	snap, err := env.store.Current(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, version.New(0, 4, 9), snap.Version)
	assert.Empty(t, snap.Changelog)
}

func TestPersistConflictIsRetriedOnce(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	scm := mocks.NewMockSourceControl(ctrl)
	forge := mocks.NewMockForge(ctrl)

	snap1 := &versionstore.Snapshot{Ref: "main", Version: version.New(0, 4, 9), Revision: "1"}
	// another release happened concurrently
	snap2 := &versionstore.Snapshot{Ref: "main", Version: version.New(0, 5, 0), Revision: "2"}

	gomock.InOrder(
		store.EXPECT().Current(gomock.Any(), "main").Return(snap1, nil),
		scm.EXPECT().MergedChangesSince(gomock.Any(), "v0.4.9").Return(nil, nil),
		store.EXPECT().
			Persist(gomock.Any(), snap1, version.New(0, 5, 0), gomock.Any()).
			Return(nil, versionstore.ErrPersistenceConflict),
		store.EXPECT().Current(gomock.Any(), "main").Return(snap2, nil),
		scm.EXPECT().MergedChangesSince(gomock.Any(), "v0.5.0").Return(nil, nil),
		store.EXPECT().
			Persist(gomock.Any(), snap2, version.New(0, 6, 0), gomock.Any()).
			Return(&versionstore.Commit{Ref: "release/v0.6.0", ID: "abc"}, nil),
	)

	req := mockSuccessfulPR(forge, release.MergeMethodMerge, true)

	res, err := newOrchestrator(t, store, scm, forge).Run(ctx, mergeEvent("deploy-minor"))
	require.NoError(t, err)

	assert.Equal(t, version.New(0, 6, 0), res.Version)
	assert.Equal(t, version.New(0, 5, 0), res.PreviousVersion)
	assert.Equal(t, "release/v0.6.0", req.SourceRef)
	assert.Equal(t,
		[]release.State{
			release.StateIdle,
			release.StateClassifying,
			release.StateBumping,
			release.StateChangelogGeneration,
			release.StatePersisting,
			release.StateBumping,
			release.StateChangelogGeneration,
			release.StatePersisting,
			release.StateRequestingRelease,
			release.StateDone,
		},
		res.States,
	)
}

func TestSecondPersistConflictAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	scm := mocks.NewMockSourceControl(ctrl)
	forge := mocks.NewMockForge(ctrl)

	snap := &versionstore.Snapshot{Version: version.New(0, 4, 9), Revision: "1"}

	store.EXPECT().Current(gomock.Any(), gomock.Any()).Return(snap, nil).Times(2)
	scm.EXPECT().MergedChangesSince(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	store.EXPECT().
		Persist(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, versionstore.ErrPersistenceConflict).
		Times(2)

	res, err := newOrchestrator(t, store, scm, forge).Run(context.Background(), mergeEvent("deploy-patch"))
	assert.ErrorIs(t, err, versionstore.ErrPersistenceConflict)
	assert.Equal(t, release.AbortedError, res.Kind)

	var extErr *release.ExternalCollaboratorError
	assert.False(t, errors.As(err, &extErr), "conflict error must not be reported as collaborator error")
}

func TestFormatErrorAbortsWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, version.New(0, 4, 9))

	env.scm.EXPECT().MergedChangesSince(gomock.Any(), gomock.Any()).Return(twoRecords(), nil)

	formatter, err := changelog.NewTemplateFormatter("{{ .Unknown }}")
	require.NoError(t, err)

	o := release.NewOrchestrator(
		labels.DefaultClassifier(),
		changelog.NewGenerator(formatter),
		env.store,
		env.scm,
		env.forge,
		release.WithLogger(zaptest.NewLogger(t)),
	)

	res, err := o.Run(ctx, mergeEvent("deploy-patch"))
	assert.ErrorIs(t, err, changelog.ErrFormat)

	var runErr *release.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, release.StateChangelogGeneration, runErr.State)
	assert.Equal(t, release.AbortedError, res.Kind)

	snap, err := env.store.Current(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, version.New(0, 4, 9), snap.Version)
}

func TestForgeErrorIsReportedUnchanged(t *testing.T) {
	env := newTestEnv(t, version.New(0, 4, 9))
	origErr := releaseerr.NewRetryableAnytimeError(errors.New("503 service unavailable"))

	env.scm.EXPECT().MergedChangesSince(gomock.Any(), gomock.Any()).Return(nil, nil)
	env.forge.EXPECT().OpenPullRequest(gomock.Any(), gomock.Any()).Return(nil, origErr).Times(1)

	res, err := newOrchestrator(t, env.store, env.scm, env.forge).Run(context.Background(), mergeEvent("deploy-patch"))
	require.Error(t, err)

	assert.Equal(t, release.AbortedError, res.Kind)
	assert.ErrorIs(t, err, origErr)
	assert.True(t, releaseerr.IsRetryable(err))

	var extErr *release.ExternalCollaboratorError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, release.CollaboratorForge, extErr.Collaborator)

	var runErr *release.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, release.StateRequestingRelease, runErr.State)

	snap, err := env.store.Current(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, version.New(0, 4, 9), snap.Version, "persisted release was not discarded")
	assert.Empty(t, snap.Changelog)
}

func TestFailedMergeRollsBackRelease(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, version.New(0, 4, 9))
	mergeErr := errors.New("required checks failed")

	env.scm.EXPECT().MergedChangesSince(gomock.Any(), gomock.Any()).Return(twoRecords(), nil)
	pr := release.PRHandle{Number: 42}
	gomock.InOrder(
		env.forge.EXPECT().OpenPullRequest(gomock.Any(), gomock.Any()).Return(&pr, nil),
		env.forge.EXPECT().MergePullRequest(gomock.Any(), &pr, release.MergeMethodMerge).Return(nil, mergeErr),
		env.forge.EXPECT().ClosePullRequest(gomock.Any(), &pr).Return(nil),
	)

	res, err := newOrchestrator(t, env.store, env.scm, env.forge).Run(ctx, mergeEvent("deploy-minor"))
	require.ErrorIs(t, err, mergeErr)
	assert.Equal(t, release.AbortedError, res.Kind)

	snap, err := env.store.Current(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, version.New(0, 4, 9), snap.Version)
	assert.Empty(t, snap.Changelog)
}

func TestFailedRollbackIsReported(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, version.New(0, 4, 9))
	mergeErr := errors.New("required checks failed")
	closeErr := errors.New("forbidden")

	env.scm.EXPECT().MergedChangesSince(gomock.Any(), gomock.Any()).Return(nil, nil)
	env.forge.EXPECT().OpenPullRequest(gomock.Any(), gomock.Any()).Return(&release.PRHandle{Number: 42}, nil)
	env.forge.EXPECT().MergePullRequest(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, mergeErr)
	env.forge.EXPECT().ClosePullRequest(gomock.Any(), gomock.Any()).Return(closeErr)

	_, err := newOrchestrator(t, env.store, env.scm, env.forge).Run(ctx, mergeEvent("deploy-patch"))
	assert.ErrorIs(t, err, mergeErr)
	assert.ErrorIs(t, err, closeErr)

	// the store is reverted even if closing the pull request failed
	snap, err := env.store.Current(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, version.New(0, 4, 9), snap.Version)
}

func TestTagErrorAfterMergeIsNotRolledBack(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, version.New(0, 4, 9))
	tagErr := errors.New("tag exists")

	env.scm.EXPECT().MergedChangesSince(gomock.Any(), gomock.Any()).Return(nil, nil)
	mockSuccessfulPR(env.forge, release.MergeMethodMerge, true)
	env.scm.EXPECT().CreateTag(gomock.Any(), "v0.4.10", "c0ffee").Return(tagErr)
	// no ClosePullRequest call is expected, the release is merged

	res, err := newOrchestrator(t, env.store, env.scm, env.forge, release.WithCreateTag(true)).
		Run(ctx, mergeEvent("deploy-patch"))
	require.ErrorIs(t, err, tagErr)
	assert.Equal(t, release.AbortedError, res.Kind)

	snap, err := env.store.Current(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, version.New(0, 4, 10), snap.Version)
}

func TestSourceControlErrorAbortsBeforePersisting(t *testing.T) {
	env := newTestEnv(t, version.New(3, 1, 4))

	env.scm.EXPECT().MergedChangesSince(gomock.Any(), "v3.1.4").Return(nil, errors.New("unauthorized"))

	res, err := newOrchestrator(t, env.store, env.scm, env.forge).Run(context.Background(), mergeEvent("deploy-major"))
	require.Error(t, err)

	var extErr *release.ExternalCollaboratorError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, release.CollaboratorSourceControl, extErr.Collaborator)
	assert.NotContains(t, res.States, release.StatePersisting)
}

func TestTagIsCreatedForMergeCommit(t *testing.T) {
	env := newTestEnv(t, version.New(0, 4, 9))

	env.scm.EXPECT().MergedChangesSince(gomock.Any(), "release-0.4.9").Return(nil, nil)
	mockSuccessfulPR(env.forge, release.MergeMethodSquash, true)
	env.scm.EXPECT().CreateTag(gomock.Any(), "release-0.4.10", "c0ffee").Return(nil)

	res, err := newOrchestrator(
		t, env.store, env.scm, env.forge,
		release.WithCreateTag(true),
		release.WithTagPrefix("release-"),
		release.WithMergeMethod(release.MergeMethodSquash),
	).Run(context.Background(), mergeEvent("deploy-patch"))
	require.NoError(t, err)
	assert.Equal(t, release.Released, res.Kind)
}

func TestAutoMergeSkipsTagging(t *testing.T) {
	env := newTestEnv(t, version.New(0, 4, 9))

	env.scm.EXPECT().MergedChangesSince(gomock.Any(), gomock.Any()).Return(nil, nil)
	mockSuccessfulPR(env.forge, release.MergeMethodAuto, false)
	// no CreateTag call is expected

	res, err := newOrchestrator(
		t, env.store, env.scm, env.forge,
		release.WithCreateTag(true),
		release.WithMergeMethod(release.MergeMethodAuto),
	).Run(context.Background(), mergeEvent("deploy-patch"))
	require.NoError(t, err)
	assert.Equal(t, release.Released, res.Kind)
	assert.Equal(t, version.New(0, 4, 10), res.Version)
}
