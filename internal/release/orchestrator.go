package release

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/changelog"
	"github.com/simplesurance/autorelease/internal/labels"
	"github.com/simplesurance/autorelease/internal/logfields"
	"github.com/simplesurance/autorelease/internal/version"
	"github.com/simplesurance/autorelease/internal/versionstore"
)

const loggerName = "release"

// DefaultTagPrefix is prepended to versions to form tag names.
const DefaultTagPrefix = "v"

// maxPersistAttempts is the number of times persisting is tried when it
// fails with versionstore.ErrPersistenceConflict.
const maxPersistAttempts = 2

// Orchestrator runs releases for merge events.
//
// It is not safe to run multiple releases for the same repository
// concurrently, callers have to serialize calls to Run.
type Orchestrator struct {
	classifier *labels.Classifier
	generator  *changelog.Generator
	store      Store
	scm        SourceControl
	forge      Forge

	mergeMethod MergeMethod
	tagPrefix   string
	createTag   bool

	clock  func() time.Time
	logger *zap.Logger
}

type Option func(*Orchestrator)

// WithMergeMethod sets how release pull requests are merged, the default
// is MergeMethodMerge.
func WithMergeMethod(m MergeMethod) Option {
	return func(o *Orchestrator) {
		o.mergeMethod = m
	}
}

// WithTagPrefix sets the prefix of tag names, the default is
// DefaultTagPrefix.
func WithTagPrefix(prefix string) Option {
	return func(o *Orchestrator) {
		o.tagPrefix = prefix
	}
}

// WithCreateTag enables creating a tag for the merge commit of the release
// pull request.
func WithCreateTag(enabled bool) Option {
	return func(o *Orchestrator) {
		o.createTag = enabled
	}
}

// WithClock sets the function that is used to retrieve the current time.
func WithClock(fn func() time.Time) Option {
	return func(o *Orchestrator) {
		o.clock = fn
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func NewOrchestrator(
	classifier *labels.Classifier,
	generator *changelog.Generator,
	store Store,
	scm SourceControl,
	forge Forge,
	opts ...Option,
) *Orchestrator {
	o := Orchestrator{
		classifier:  classifier,
		generator:   generator,
		store:       store,
		scm:         scm,
		forge:       forge,
		mergeMethod: MergeMethodMerge,
		tagPrefix:   DefaultTagPrefix,
		clock:       time.Now,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = zap.L().Named(loggerName)
	}

	return &o
}

// run is the state of a single release run.
type run struct {
	id     string
	ev     *MergeEvent
	state  State
	states []State
	logger *zap.Logger
	result Result
}

func (o *Orchestrator) newRun(ev *MergeEvent) *run {
	id := uuid.NewString()

	r := run{
		id:     id,
		ev:     ev,
		state:  StateIdle,
		states: []State{StateIdle},
		logger: o.logger.With(
			logfields.RunID(id),
			zap.String("github.repository", ev.Repository),
			logfields.PullRequest(ev.PullRequest),
		),
	}

	r.result.RunID = id

	return &r
}

// transition moves the run to the next state, invalid transitions are
// programming errors and cause a panic.
func (r *run) transition(next State) {
	if !r.state.CanTransitionTo(next) {
		r.logger.Panic(
			"invalid release state transition",
			zap.Stringer("from", r.state),
			zap.Stringer("to", next),
		)
	}

	r.logger.Debug(
		"release state changed",
		logfields.Event("release_state_changed"),
		zap.Stringer("from", r.state),
		logfields.State(next),
	)

	r.state = next
	r.states = append(r.states, next)
}

func (r *run) finish(kind ResultKind) *Result {
	r.result.Kind = kind
	r.result.States = r.states

	return &r.result
}

func (r *run) abort(err error) *Result {
	failedState := r.state
	r.transition(StateAborted)

	r.result.Err = &RunError{
		RunID: r.id,
		State: failedState,
		Err:   err,
	}

	r.logger.Error(
		"release aborted",
		logfields.Event("release_aborted"),
		zap.Stringer("failed_state", failedState),
		zap.Error(err),
	)

	return r.finish(AbortedError)
}

// Run executes a release for the merge event.
//
// When the event has no release label, a result of kind SkippedNoLabel and
// a nil error are returned. When an operation fails the run is aborted,
// the returned error is a *RunError and equals Result.Err.
// Failures of collaborators are wrapped in an *ExternalCollaboratorError
// and are not retried. Persisting is retried once if it fails with
// versionstore.ErrPersistenceConflict.
func (o *Orchestrator) Run(ctx context.Context, ev *MergeEvent) (*Result, error) {
	startTime := time.Now()

	r := o.newRun(ev)
	res := o.run(ctx, r)

	metrics.RunFinished(ev.Repository, res, time.Since(startTime))

	return res, res.Err
}

type plan struct {
	base      *versionstore.Snapshot
	next      version.Version
	entry     *changelog.Entry
	changelog string
}

func (o *Orchestrator) run(ctx context.Context, r *run) *Result {
	r.transition(StateClassifying)

	classification := o.classifier.Classify(r.ev.Labels)
	if !classification.ShouldRelease {
		r.transition(StateAborted)

		r.logger.Info(
			"pull request has no release label, skipping release",
			logfields.Event("release_skipped_no_label"),
			zap.Stringer("labels", r.ev.Labels),
		)

		return r.finish(SkippedNoLabel)
	}

	r.logger = r.logger.With(logfields.BumpKind(classification.BumpKind))
	r.logger.Info(
		"release triggered",
		logfields.Event("release_triggered"),
		zap.Strings("release_labels", classification.Labels),
	)

	var p *plan
	var commit *versionstore.Commit

	for attempt := 1; ; attempt++ {
		var err error

		p, err = o.prepare(ctx, r, classification.BumpKind)
		if err != nil {
			return r.abort(err)
		}

		r.transition(StatePersisting)

		commit, err = o.store.Persist(ctx, p.base, p.next, p.changelog)
		if err == nil {
			break
		}

		if errors.Is(err, versionstore.ErrPersistenceConflict) {
			if attempt < maxPersistAttempts {
				r.logger.Warn(
					"persisting release failed because of a conflict, retrying",
					logfields.Event("release_persist_conflict"),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)

				continue
			}

			return r.abort(err)
		}

		return r.abort(newExternalErr(CollaboratorVersionStore, "persist", err))
	}

	r.logger.Info(
		"release version and changelog persisted",
		logfields.Event("release_persisted"),
		logfields.Version(p.next),
		zap.String("commit_ref", commit.Ref),
		zap.String("commit_id", commit.ID),
	)

	r.transition(StateRequestingRelease)

	pr, merged, err := o.requestRelease(ctx, r, p, commit)
	if err != nil {
		if !merged {
			if rbErr := o.rollback(ctx, r, p, commit, pr); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
		}

		return r.abort(err)
	}

	r.result.PullRequest = pr

	r.transition(StateDone)

	r.logger.Info(
		"release done",
		logfields.Event("release_done"),
		logfields.Version(p.next),
		logfields.PreviousVersion(p.base.Version),
	)

	return r.finish(Released)
}

// prepare executes the bumping and changelog generation steps.
func (o *Orchestrator) prepare(ctx context.Context, r *run, kind version.BumpKind) (*plan, error) {
	r.transition(StateBumping)

	snapshot, err := o.store.Current(ctx, r.ev.TargetRef)
	if err != nil {
		return nil, newExternalErr(CollaboratorVersionStore, "read current version", err)
	}

	next, err := version.Bump(snapshot.Version, kind)
	if err != nil {
		return nil, err
	}

	r.result.PreviousVersion = snapshot.Version
	r.result.Version = next

	r.logger.Debug(
		"calculated next version",
		logfields.Event("release_version_bumped"),
		logfields.PreviousVersion(snapshot.Version),
		logfields.Version(next),
	)

	r.transition(StateChangelogGeneration)

	lastTag := snapshot.Version.Tag(o.tagPrefix)

	records, err := o.scm.MergedChangesSince(ctx, lastTag)
	if err != nil {
		return nil, newExternalErr(CollaboratorSourceControl, fmt.Sprintf("retrieving changes since %s", lastTag), err)
	}

	changelog.SortRecords(records)

	entry, err := o.generator.Generate(records, next, o.clock())
	if err != nil {
		return nil, err
	}

	doc := changelog.ParseDocument(snapshot.Changelog).Prepend(entry)

	r.logger.Debug(
		"changelog generated",
		logfields.Event("release_changelog_generated"),
		zap.Int("change_records", len(records)),
		logfields.Tag(lastTag),
	)

	return &plan{
		base:      snapshot,
		next:      next,
		entry:     entry,
		changelog: doc.String(),
	}, nil
}

// requestRelease opens and merges the release pull request and creates
// the tag. merged is true when the pull request was merged, the release
// can not be reverted anymore then.
func (o *Orchestrator) requestRelease(ctx context.Context, r *run, p *plan, commit *versionstore.Commit) (pr *PRHandle, merged bool, err error) {
	req := Request{
		Version:   p.next,
		Tag:       p.next.Tag(o.tagPrefix),
		Changelog: p.entry,
		SourceRef: commit.Ref,
		TargetRef: r.ev.TargetRef,
	}

	if req.SourceRef == "" {
		req.SourceRef = r.ev.SourceRef
	}

	pr, err = o.forge.OpenPullRequest(ctx, &req)
	if err != nil {
		return nil, false, newExternalErr(CollaboratorForge, "open pull request", err)
	}

	logger := r.logger.With(zap.Stringer("release_pull_request", pr))
	logger.Info("release pull request opened", logfields.Event("release_pull_request_opened"))

	mr, err := o.forge.MergePullRequest(ctx, pr, o.mergeMethod)
	if err != nil {
		return pr, false, newExternalErr(CollaboratorForge, fmt.Sprintf("merge pull request %s", pr), err)
	}

	if !mr.Merged {
		logger.Info(
			"release pull request scheduled for merge",
			logfields.Event("release_pull_request_merge_scheduled"),
			zap.String("merge_method", string(o.mergeMethod)),
		)

		if o.createTag {
			logger.Warn(
				"release pull request is not merged yet, tag is not created",
				logfields.Event("release_tag_skipped"),
				logfields.Tag(req.Tag),
			)
		}

		return pr, false, nil
	}

	logger.Info(
		"release pull request merged",
		logfields.Event("release_pull_request_merged"),
		logfields.Commit(mr.CommitID),
	)

	if !o.createTag {
		return pr, true, nil
	}

	if err := o.scm.CreateTag(ctx, req.Tag, mr.CommitID); err != nil {
		return pr, true, newExternalErr(CollaboratorSourceControl, fmt.Sprintf("create tag %s", req.Tag), err)
	}

	logger.Info("release tag created", logfields.Event("release_tag_created"), logfields.Tag(req.Tag))

	return pr, true, nil
}

// rollback closes the release pull request, if one was opened, and
// discards the persisted release.
// It runs with a context that is not canceled together with ctx, a
// canceled run must not leave the persisted release behind.
func (o *Orchestrator) rollback(ctx context.Context, r *run, p *plan, commit *versionstore.Commit, pr *PRHandle) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error

	if pr != nil {
		if err := o.forge.ClosePullRequest(ctx, pr); err != nil {
			errs = append(errs, newExternalErr(CollaboratorForge, fmt.Sprintf("close pull request %s", pr), err))
		}
	}

	if err := o.store.Discard(ctx, p.base, commit); err != nil {
		errs = append(errs, newExternalErr(CollaboratorVersionStore, "discard", err))
	}

	if err := errors.Join(errs...); err != nil {
		r.logger.Error(
			"rolling back persisted release failed",
			logfields.Event("release_rollback_failed"),
			zap.String("commit_ref", commit.Ref),
			zap.String("commit_id", commit.ID),
			zap.Error(err),
		)

		return err
	}

	r.logger.Info(
		"persisted release rolled back",
		logfields.Event("release_rolled_back"),
		zap.String("commit_ref", commit.Ref),
		zap.String("commit_id", commit.ID),
	)

	return nil
}
