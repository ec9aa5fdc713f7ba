package autorelease

import (
	"errors"
	"fmt"

	go_github "github.com/google/go-github/v43/github"
	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/labels"
	"github.com/simplesurance/autorelease/internal/logfields"
	"github.com/simplesurance/autorelease/internal/provider/github"
	"github.com/simplesurance/autorelease/internal/release"
)

// Event is a pull request webhook event processed by the event loop.
// Its public fields are accessible in comment templates.
type Event struct {
	JSON []byte

	DeliveryID      string
	EventType       string
	Action          string
	RepositoryOwner string
	Repository      string
	BaseBranch      string
	// Branch is the head branch of the pull request, without the
	// refs/heads/ prefix.
	Branch        string
	CommitID      string
	PullRequestNr int
	Merged        bool
	Labels        []string

	LogFields []zap.Field
}

func (e *Event) String() string {
	return fmt.Sprintf("%s/%s#%d (deliveryID: %s)", e.RepositoryOwner, e.Repository, e.PullRequestNr, e.DeliveryID)
}

// RepositoryKey returns "owner/name".
func (e *Event) RepositoryKey() string {
	return e.RepositoryOwner + "/" + e.Repository
}

// MergeEvent converts the event to the input of a release run.
func (e *Event) MergeEvent() *release.MergeEvent {
	return &release.MergeEvent{
		Repository:  e.RepositoryKey(),
		PullRequest: e.PullRequestNr,
		DeliveryID:  e.DeliveryID,
		Labels:      labels.NewLabelSet(e.Labels...),
		SourceRef:   e.Branch,
		TargetRef:   e.BaseBranch,
	}
}

// fromProviderEvent extracts the pull request information from a github
// provider event.
// An error is returned if the event is not a pull request event or
// required fields are missing.
func fromProviderEvent(event *github.Event) (*Event, error) {
	ghEv, ok := event.Event.(*go_github.PullRequestEvent)
	if !ok {
		return nil, fmt.Errorf("unsupported event type: %T", event.Event)
	}

	result := Event{
		JSON:            event.JSON,
		DeliveryID:      event.DeliveryID,
		EventType:       event.Type,
		Action:          ghEv.GetAction(),
		RepositoryOwner: ghEv.GetRepo().GetOwner().GetLogin(),
		Repository:      ghEv.GetRepo().GetName(),
	}

	if pr := ghEv.GetPullRequest(); pr != nil {
		result.PullRequestNr = pr.GetNumber()
		result.Merged = pr.GetMerged()
		result.CommitID = pr.GetMergeCommitSHA()
		// ref in PullRequestEvent contains **only** the branch name
		// without 'refs/heads/ prefix
		result.Branch = pr.GetHead().GetRef()
		result.BaseBranch = pr.GetBase().GetRef()

		for _, l := range pr.Labels {
			if name := l.GetName(); name != "" {
				result.Labels = append(result.Labels, name)
			}
		}
	}

	if result.PullRequestNr == 0 {
		result.PullRequestNr = ghEv.GetNumber()
	}

	result.LogFields = eventLogFields(event, &result)

	if err := result.validate(); err != nil {
		return &result, err
	}

	return &result, nil
}

func (e *Event) validate() error {
	var errs []error

	if e.RepositoryOwner == "" {
		errs = append(errs, errors.New("repository owner is missing"))
	}
	if e.Repository == "" {
		errs = append(errs, errors.New("repository name is missing"))
	}
	if e.BaseBranch == "" {
		errs = append(errs, errors.New("base branch is missing"))
	}
	if e.PullRequestNr <= 0 {
		errs = append(errs, errors.New("pull request number is missing"))
	}

	return errors.Join(errs...)
}

func eventLogFields(providerEvent *github.Event, ev *Event) []zap.Field {
	result := append([]zap.Field{}, providerEvent.LogFields...)

	if ev.Repository != "" {
		result = append(result, logfields.Repository(ev.Repository))
	}

	if ev.RepositoryOwner != "" {
		result = append(result, logfields.RepositoryOwner(ev.RepositoryOwner))
	}

	if ev.BaseBranch != "" {
		result = append(result, logfields.BaseBranch(ev.BaseBranch))
	}

	if ev.Branch != "" {
		result = append(result, logfields.Branch(ev.Branch))
	}

	if ev.PullRequestNr != 0 {
		result = append(result, logfields.PullRequest(ev.PullRequestNr))
	}

	if ev.Action != "" {
		result = append(result, zap.String("github.pull_request_event.action", ev.Action))
	}

	return result
}
