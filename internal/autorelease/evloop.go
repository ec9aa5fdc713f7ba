// Package autorelease runs releases for merged pull requests that are
// received as GitHub webhook events.
//
// Events are processed sequentially by a single go-routine. This
// serializes release runs per repository, the orchestrator must not run
// concurrently for the same repository.
package autorelease

import (
	"context"
	"strings"
	"sync"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/logfields"
	"github.com/simplesurance/autorelease/internal/notify"
	"github.com/simplesurance/autorelease/internal/provider/github"
	"github.com/simplesurance/autorelease/internal/release"
)

const DefEventChannelBufferSize = 512

const loggerName = "event-loop"

// Runner executes a release run for a merge event.
type Runner interface {
	Run(ctx context.Context, ev *release.MergeEvent) (*release.Result, error)
}

// Commenter creates comments on pull requests.
type Commenter interface {
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
}

// Notifier sends the result of a release run to an external system.
type Notifier interface {
	Notify(ctx context.Context, n *notify.Notification) error
}

// Target is a repository that releases are created for.
type Target struct {
	Owner string
	Name  string
	// Branch is the branch that release pull requests are merged into,
	// only pull requests merged into Branch trigger a release.
	Branch string
	Runner Runner
}

func (t *Target) key() string {
	return t.Owner + "/" + t.Name
}

// EvLoop receives webhook events and runs a release for every merged
// pull request of a configured Target.
type EvLoop struct {
	ch      chan *github.Event
	logger  *zap.Logger
	trigger *Trigger
	targets map[string]*Target
	retryer *Retryer
	history *History

	commenter       Commenter
	commentTemplate *template.Template
	notifiers       []Notifier

	ignoredBranchPrefix string

	wg sync.WaitGroup
}

type Option func(*EvLoop)

// WithComments enables creating a comment with the result of the release
// run on the merged pull request.
func WithComments(commenter Commenter, commentTemplate *template.Template) Option {
	return func(e *EvLoop) {
		e.commenter = commenter
		e.commentTemplate = commentTemplate
	}
}

// WithNotifiers sets notifiers that are informed about the result of
// release runs.
func WithNotifiers(notifiers ...Notifier) Option {
	return func(e *EvLoop) {
		e.notifiers = append(e.notifiers, notifiers...)
	}
}

// WithIgnoredBranchPrefix ignores pull requests with a head branch
// starting with prefix. It is used to prevent that merging a release pull
// request triggers another release.
func WithIgnoredBranchPrefix(prefix string) Option {
	return func(e *EvLoop) {
		e.ignoredBranchPrefix = prefix
	}
}

// WithHistory sets the History that finished release runs are recorded in.
func WithHistory(h *History) Option {
	return func(e *EvLoop) {
		e.history = h
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *EvLoop) {
		e.logger = logger
	}
}

// ParseCommentTemplate parses a template for comments created via
// WithComments.
// The template is executed with the fields .Event (*Event) and .Result
// (*release.Result).
func ParseCommentTemplate(text string) (*template.Template, error) {
	return parseCommentTemplate(text)
}

// NewEventLoop creates an event loop.
// The retryer is used to retry creating comments, it is stopped when the
// event loop is stopped.
func NewEventLoop(trigger *Trigger, targets []*Target, retryer *Retryer, opts ...Option) *EvLoop {
	evl := EvLoop{
		ch:      make(chan *github.Event, DefEventChannelBufferSize),
		trigger: trigger,
		targets: make(map[string]*Target, len(targets)),
		retryer: retryer,
	}

	for _, t := range targets {
		evl.targets[t.key()] = t
	}

	for _, opt := range opts {
		opt(&evl)
	}

	if evl.logger == nil {
		evl.logger = zap.L().Named(loggerName)
	}

	evl.wg.Add(1)

	return &evl
}

// C returns the event channel.
// Events sent to this channel will be processed.
// The channel is closed when Stop() is called.
func (e *EvLoop) C() chan<- *github.Event {
	return e.ch
}

// Start processes events until the event channel is closed.
// It must be called exactly once.
func (e *EvLoop) Start() {
	defer e.wg.Done()

	e.logger.Info("ready to process events", logfields.Event("eventloop_started"))

	for ev := range e.ch {
		e.processEvent(context.Background(), ev)
	}

	e.logger.Info(
		"event loop terminated, event channel was closed",
		logfields.Event("eventloop_terminated"),
	)
}

func (e *EvLoop) processEvent(ctx context.Context, providerEv *github.Event) {
	logger := e.logger.With(providerEv.LogFields...)
	logger.Debug("event received", logfields.Event("event_received"))

	ev, err := fromProviderEvent(providerEv)
	if err != nil {
		logger.Info(
			"ignoring event, extracting pull request information failed",
			logfields.Event("github_event_ignored"),
			zap.Error(err),
		)
		return
	}

	logger = e.logger.With(ev.LogFields...)

	target, match, err := e.match(ctx, ev)
	metrics.EventProcessed(match)
	if err != nil {
		logger.Error(
			"evaluating trigger failed, event ignored",
			logfields.Event("trigger_evaluation_failed"),
			zap.Error(err),
		)
		return
	}

	logger.Debug(
		"evaluated result of matching event",
		logfields.Event("trigger_match_result_evaluated"),
		zap.Stringer("match_result", match),
	)

	switch match {
	case Match:
	case RepositoryMismatch, BranchMismatch, TriggerMismatch:
		return
	default:
		logger.Panic(
			"match returned undefined MatchResult enum value",
			zap.Int("match_result_int", int(match)),
		)
	}

	startTime := time.Now()
	res, err := target.Runner.Run(ctx, ev.MergeEvent())
	if err != nil {
		logger.Error(
			"release run failed",
			logfields.Event("release_run_failed"),
			zap.Duration("duration", time.Since(startTime)),
			zap.Error(err),
		)
	} else {
		logger.Info(
			"release run finished",
			logfields.Event("release_run_finished"),
			zap.Duration("duration", time.Since(startTime)),
			zap.Stringer("result", res),
		)
	}

	if res == nil {
		res = &release.Result{Kind: release.AbortedError, Err: err}
	}

	if e.history != nil {
		e.history.Add(&HistoryEntry{
			Time:        startTime,
			Repository:  ev.RepositoryKey(),
			PullRequest: ev.PullRequestNr,
			Result:      res,
		})
	}

	if res.Kind == release.SkippedNoLabel {
		return
	}

	e.comment(ctx, logger, ev, res)
	e.notify(ctx, logger, ev, res)
}

// match returns the target of the event and Match if it triggers a release.
func (e *EvLoop) match(ctx context.Context, ev *Event) (*Target, MatchResult, error) {
	target, exist := e.targets[ev.RepositoryKey()]
	if !exist {
		return nil, RepositoryMismatch, nil
	}

	if ev.BaseBranch != target.Branch {
		return nil, BranchMismatch, nil
	}

	if e.ignoredBranchPrefix != "" && strings.HasPrefix(ev.Branch, e.ignoredBranchPrefix) {
		return nil, BranchMismatch, nil
	}

	match, err := e.trigger.Match(ctx, ev.JSON)
	if err != nil {
		return nil, MatchResultUndefined, err
	}

	return target, match, nil
}

func (e *EvLoop) comment(ctx context.Context, logger *zap.Logger, ev *Event, res *release.Result) {
	if e.commenter == nil {
		return
	}

	comment, err := renderComment(e.commentTemplate, ev, res)
	if err != nil {
		logger.Error(
			"rendering pull request comment failed",
			logfields.Event("github_comment_rendering_failed"),
			zap.Error(err),
		)
		return
	}

	err = e.retryer.Run(ctx, func(ctx context.Context) error {
		return e.commenter.CreateIssueComment(ctx, ev.RepositoryOwner, ev.Repository, ev.PullRequestNr, comment)
	}, ev.LogFields)
	if err != nil {
		logger.Error(
			"creating pull request comment failed",
			logfields.Event("github_comment_creation_failed"),
			zap.Error(err),
		)
		return
	}

	logger.Debug("pull request comment created", logfields.Event("github_comment_created"))
}

func newNotification(ev *Event, res *release.Result) *notify.Notification {
	n := notify.Notification{
		Repository:  ev.RepositoryKey(),
		PullRequest: ev.PullRequestNr,
		Result:      res.Kind.String(),
	}

	if res.Kind == release.Released {
		n.Version = res.Version.String()
		n.PreviousVersion = res.PreviousVersion.String()
	}

	if res.PullRequest != nil {
		n.ReleasePullRequest = res.PullRequest.String()
	}

	if res.Err != nil {
		n.Error = res.Err.Error()
	}

	return &n
}

func (e *EvLoop) notify(ctx context.Context, logger *zap.Logger, ev *Event, res *release.Result) {
	if len(e.notifiers) == 0 {
		return
	}

	n := newNotification(ev, res)

	for _, notifier := range e.notifiers {
		err := e.retryer.Run(ctx, func(ctx context.Context) error {
			return notifier.Notify(ctx, n)
		}, ev.LogFields)
		if err != nil {
			logger.Error(
				"sending release notification failed",
				logfields.Event("release_notification_failed"),
				zap.Error(err),
			)
			continue
		}

		logger.Debug("release notification sent", logfields.Event("release_notification_sent"))
	}
}

// Stop closes the event channel and waits until Start returned.
// Events that are already queued are processed, retries of failed
// operations are aborted.
// The event channel (Evloop.C()) will be closed.
func (e *EvLoop) Stop() {
	e.logger.Debug("event loop terminating", logfields.Event("eventloop_terminating"))
	close(e.ch)

	e.retryer.Stop()

	e.logger.Debug(
		"waiting for the release run to terminate",
		logfields.Event("eventloop_terminating"),
	)
	e.wg.Wait()

	e.logger.Info("event loop terminated", logfields.Event("eventloop_terminated"))
}
