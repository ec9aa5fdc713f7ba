// Package labels decides from the labels of a merged pull request if and
// how a release is done.
package labels

import (
	"fmt"
	"sort"
	"strings"

	"github.com/simplesurance/autorelease/internal/version"
)

// Default label names.
const (
	DefaultPatchLabel = "deploy-patch"
	DefaultMinorLabel = "deploy-minor"
	DefaultMajorLabel = "deploy-major"
)

// LabelSet is the set of labels that were attached to a pull request when
// it was merged.
type LabelSet map[string]struct{}

func NewLabelSet(labels ...string) LabelSet {
	result := make(LabelSet, len(labels))
	for _, l := range labels {
		result[l] = struct{}{}
	}

	return result
}

func (s LabelSet) Contains(label string) bool {
	_, exist := s[label]
	return exist
}

// Slice returns the labels in lexical order.
func (s LabelSet) Slice() []string {
	result := make([]string, 0, len(s))
	for l := range s {
		result = append(result, l)
	}

	sort.Strings(result)

	return result
}

func (s LabelSet) String() string {
	return strings.Join(s.Slice(), ", ")
}

// Classification is the result of classifying a LabelSet.
type Classification struct {
	ShouldRelease bool
	BumpKind      version.BumpKind
	// Labels contains the recognized release labels in lexical order.
	Labels []string
}

func (c *Classification) String() string {
	if !c.ShouldRelease {
		return "no release"
	}

	return fmt.Sprintf("%s release (labels: %s)", c.BumpKind, strings.Join(c.Labels, ", "))
}

// Classifier maps release labels to version bump kinds.
type Classifier struct {
	labels map[string]version.BumpKind
}

// NewClassifier returns a Classifier that recognizes the passed labels.
// Multiple labels can be configured per bump kind.
// An error is returned when a label is configured for multiple bump kinds
// or when no label is configured.
func NewClassifier(patch, minor, major []string) (*Classifier, error) {
	c := Classifier{labels: map[string]version.BumpKind{}}

	add := func(kind version.BumpKind, labels []string) error {
		for _, l := range labels {
			if l == "" {
				return fmt.Errorf("empty label configured for %s releases", kind)
			}

			if existing, exist := c.labels[l]; exist && existing != kind {
				return fmt.Errorf("label %q is configured for %s and %s releases", l, existing, kind)
			}

			c.labels[l] = kind
		}

		return nil
	}

	if err := add(version.BumpPatch, patch); err != nil {
		return nil, err
	}

	if err := add(version.BumpMinor, minor); err != nil {
		return nil, err
	}

	if err := add(version.BumpMajor, major); err != nil {
		return nil, err
	}

	if len(c.labels) == 0 {
		return nil, fmt.Errorf("no release labels configured")
	}

	return &c, nil
}

// DefaultClassifier returns a classifier recognizing DefaultPatchLabel,
// DefaultMinorLabel and DefaultMajorLabel.
func DefaultClassifier() *Classifier {
	c, err := NewClassifier(
		[]string{DefaultPatchLabel},
		[]string{DefaultMinorLabel},
		[]string{DefaultMajorLabel},
	)
	if err != nil {
		panic(err)
	}

	return c
}

// Classify returns if a release should be done for a pull request with the
// given labels and which version component is bumped.
// When multiple release labels are present, the one with the highest
// BumpKind precedence wins.
func (c *Classifier) Classify(labels LabelSet) *Classification {
	var result Classification

	for l := range labels {
		kind, exist := c.labels[l]
		if !exist {
			continue
		}

		result.Labels = append(result.Labels, l)
		result.BumpKind = version.MaxBumpKind(result.BumpKind, kind)
	}

	sort.Strings(result.Labels)
	result.ShouldRelease = result.BumpKind != version.BumpNone

	return &result
}

// String returns the label mapping in a stable order.
func (c *Classifier) String() string {
	kinds := make(map[version.BumpKind][]string, 3)
	for l, k := range c.labels {
		kinds[k] = append(kinds[k], l)
	}

	var sb strings.Builder
	for _, k := range []version.BumpKind{version.BumpPatch, version.BumpMinor, version.BumpMajor} {
		ls := kinds[k]
		if len(ls) == 0 {
			continue
		}

		sort.Strings(ls)

		if sb.Len() > 0 {
			sb.WriteString("; ")
		}

		fmt.Fprintf(&sb, "%s: %s", k, strings.Join(ls, ", "))
	}

	return sb.String()
}
