package autorelease

import (
	"fmt"
	"testing"

	go_github "github.com/google/go-github/v43/github"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/logfields"
	"github.com/simplesurance/autorelease/internal/provider/github"
)

const prEventTemplate = `{
  "action": %q,
  "number": 7,
  "pull_request": {
    "number": 7,
    "state": "closed",
    "title": "Add widget support",
    "merged": %t,
    "merge_commit_sha": "8ad9dec4298f6b8f020997373cf4fe22005f2c06",
    "labels": [{"name": "deploy-minor"}, {"name": "documentation"}],
    "head": {"ref": "feature", "sha": "5c3a1b4e0f3f0a6a5dbe4e0d2d6d3c1f5fe7d4a1"},
    "base": {"ref": %q, "sha": "0a7b8f9e2c5f4a0a1cbd2b5f26bd0a6d9fe3f1c2"}
  },
  "repository": {
    "name": "repo",
    "full_name": "testman/repo",
    "owner": {"login": "testman"}
  }
}`

func prEventPayload(action string, merged bool, base string) string {
	return fmt.Sprintf(prEventTemplate, action, merged, base)
}

func newProviderEvent(t *testing.T, payload string) *github.Event {
	t.Helper()

	ev, err := go_github.ParseWebHook("pull_request", []byte(payload))
	require.NoError(t, err)

	return &github.Event{
		DeliveryID: "3355fab0-b22c-11eb-9936-51d9540c0cdc",
		Type:       "pull_request",
		JSON:       []byte(payload),
		Event:      ev,
		LogFields:  []zap.Field{logfields.EventProvider("github")},
	}
}

func mergedPREvent(t *testing.T) *github.Event {
	return newProviderEvent(t, prEventPayload("closed", true, "main"))
}
