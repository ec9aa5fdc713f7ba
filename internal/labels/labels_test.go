package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/autorelease/internal/version"
)

func TestClassify(t *testing.T) {
	type testcase struct {
		name          string
		labels        LabelSet
		shouldRelease bool
		bumpKind      version.BumpKind
	}

	testcases := []testcase{
		{
			name:          "patch",
			labels:        NewLabelSet("deploy-patch"),
			shouldRelease: true,
			bumpKind:      version.BumpPatch,
		},
		{
			name:   "empty",
			labels: NewLabelSet(),
		},
		{
			name: "nil",
		},
		{
			name:   "unrelated labels",
			labels: NewLabelSet("bug", "deploy", "Deploy-Patch"),
		},
		{
			name:          "major wins over patch",
			labels:        NewLabelSet("deploy-patch", "deploy-major"),
			shouldRelease: true,
			bumpKind:      version.BumpMajor,
		},
		{
			name:          "minor wins over patch",
			labels:        NewLabelSet("enhancement", "deploy-minor", "deploy-patch"),
			shouldRelease: true,
			bumpKind:      version.BumpMinor,
		},
		{
			name:          "all",
			labels:        NewLabelSet("deploy-minor", "deploy-patch", "deploy-major"),
			shouldRelease: true,
			bumpKind:      version.BumpMajor,
		},
	}

	c := DefaultClassifier()

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			res := c.Classify(tc.labels)
			assert.Equal(t, tc.shouldRelease, res.ShouldRelease)
			assert.Equal(t, tc.bumpKind, res.BumpKind)
		})
	}
}

func TestClassifyReportsMatchedLabels(t *testing.T) {
	res := DefaultClassifier().Classify(NewLabelSet("deploy-patch", "bug", "deploy-major"))
	assert.Equal(t, []string{"deploy-major", "deploy-patch"}, res.Labels)
	assert.Equal(t, "major release (labels: deploy-major, deploy-patch)", res.String())
}

func TestCustomLabels(t *testing.T) {
	c, err := NewClassifier([]string{"release:fix"}, []string{"release:feature", "feature"}, nil)
	require.NoError(t, err)

	res := c.Classify(NewLabelSet("feature"))
	assert.True(t, res.ShouldRelease)
	assert.Equal(t, version.BumpMinor, res.BumpKind)

	res = c.Classify(NewLabelSet("deploy-major"))
	assert.False(t, res.ShouldRelease)

	assert.Equal(t, "patch: release:fix; minor: feature, release:feature", c.String())
}

func TestNewClassifierRejectsAmbiguousLabels(t *testing.T) {
	_, err := NewClassifier([]string{"x"}, []string{"x"}, nil)
	assert.Error(t, err)

	_, err = NewClassifier(nil, nil, nil)
	assert.Error(t, err)

	_, err = NewClassifier([]string{""}, nil, nil)
	assert.Error(t, err)
}
