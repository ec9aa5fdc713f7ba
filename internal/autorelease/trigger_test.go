package autorelease

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/autorelease/internal/release"
	"github.com/simplesurance/autorelease/internal/version"
)

func TestDefaultTriggerQuery(t *testing.T) {
	trigger, err := NewTrigger(DefaultTriggerQuery)
	require.NoError(t, err)

	testcases := []struct {
		name    string
		payload string
		result  MatchResult
	}{
		{
			name:    "merged",
			payload: prEventPayload("closed", true, "main"),
			result:  Match,
		},
		{
			name:    "closedNotMerged",
			payload: prEventPayload("closed", false, "main"),
			result:  TriggerMismatch,
		},
		{
			name:    "labeled",
			payload: prEventPayload("labeled", false, "main"),
			result:  TriggerMismatch,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := trigger.Match(context.Background(), []byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.result, res)
		})
	}
}

func TestTriggerQueryWithNonBoolResultFails(t *testing.T) {
	trigger, err := NewTrigger(".action")
	require.NoError(t, err)

	res, err := trigger.Match(context.Background(), []byte(prEventPayload("closed", true, "main")))
	require.Error(t, err)
	assert.Equal(t, MatchResultUndefined, res)
}

func TestTriggerQueryWithMultipleResultsFails(t *testing.T) {
	trigger, err := NewTrigger(".pull_request.labels[] | .name == \"deploy-minor\"")
	require.NoError(t, err)

	_, err = trigger.Match(context.Background(), []byte(prEventPayload("closed", true, "main")))
	require.Error(t, err)
}

func TestTriggerEmptyJSONFails(t *testing.T) {
	trigger, err := NewTrigger(DefaultTriggerQuery)
	require.NoError(t, err)

	_, err = trigger.Match(context.Background(), nil)
	require.Error(t, err)
}

func TestNewTriggerInvalidQuery(t *testing.T) {
	_, err := NewTrigger(".action ==")
	require.Error(t, err)
}

func TestTemplateQueryEscape(t *testing.T) {
	templ, err := parseCommentTemplate(`{{ queryescape "a&b+c" }}`)
	require.NoError(t, err)

	res, err := renderComment(templ, &Event{}, &release.Result{})
	require.NoError(t, err)
	assert.Equal(t, "a%26b%2Bc", res)
}

func TestDefaultCommentTemplate(t *testing.T) {
	templ, err := parseCommentTemplate(DefaultCommentTemplate)
	require.NoError(t, err)

	t.Run("released", func(t *testing.T) {
		res, err := renderComment(templ, &Event{}, &release.Result{
			Kind:        release.Released,
			Version:     version.New(1, 2, 0),
			PullRequest: &release.PRHandle{Number: 12, URL: "https://github.com/testman/repo/pull/12"},
		})
		require.NoError(t, err)
		assert.Equal(t, "autorelease: released version 1.2.0 in https://github.com/testman/repo/pull/12", res)
	})

	t.Run("failed", func(t *testing.T) {
		res, err := renderComment(templ, &Event{}, &release.Result{
			Kind: release.AbortedError,
			Err:  assert.AnError,
		})
		require.NoError(t, err)
		assert.Equal(t, "autorelease: releasing failed: "+assert.AnError.Error(), res)
	})
}
