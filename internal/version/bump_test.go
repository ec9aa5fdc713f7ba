package version

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBump(t *testing.T) {
	current := New(1, 2, 3)

	type testcase struct {
		kind     BumpKind
		expected Version
	}

	testcases := []testcase{
		{kind: BumpPatch, expected: New(1, 2, 4)},
		{kind: BumpMinor, expected: New(1, 3, 0)},
		{kind: BumpMajor, expected: New(2, 0, 0)},
	}

	for _, tc := range testcases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			next, err := Bump(current, tc.kind)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, next)
			assert.Equal(t, New(1, 2, 3), current, "input version was modified")
		})
	}
}

func TestBumpAlwaysIncreases(t *testing.T) {
	versions := []Version{
		Zero,
		New(0, 0, 1),
		New(0, 4, 9),
		New(1, 0, 0),
		New(3, 99, 12),
		New(1, 2, math.MaxUint64),
		New(1, math.MaxUint64, 3),
		New(math.MaxUint64, 2, 3),
		New(math.MaxUint64, math.MaxUint64, math.MaxUint64),
	}

	for _, v := range versions {
		for _, k := range []BumpKind{BumpPatch, BumpMinor, BumpMajor} {
			next, err := Bump(v, k)
			if errors.Is(err, ErrVersionOverflow) {
				continue
			}

			require.NoError(t, err)
			assert.Truef(t, v.Less(next), "bump(%s, %s) = %s, is not greater", v, k, next)
		}
	}
}

func TestBumpOverflowFails(t *testing.T) {
	tcs := []struct {
		v    Version
		kind BumpKind
	}{
		{New(1, 2, math.MaxUint64), BumpPatch},
		{New(1, math.MaxUint64, 3), BumpMinor},
		{New(math.MaxUint64, 2, 3), BumpMajor},
	}

	for _, tc := range tcs {
		t.Run(tc.kind.String(), func(t *testing.T) {
			_, err := Bump(tc.v, tc.kind)
			assert.ErrorIs(t, err, ErrVersionOverflow)
		})
	}

	// only the incremented component matters
	next, err := Bump(New(1, 2, math.MaxUint64), BumpMinor)
	require.NoError(t, err)
	assert.Equal(t, New(1, 3, 0), next)
}

func TestBumpNoneFails(t *testing.T) {
	_, err := Bump(New(1, 2, 3), BumpNone)
	assert.ErrorIs(t, err, ErrInvalidBumpKind)

	_, err = Bump(New(1, 2, 3), BumpKind(42))
	assert.ErrorIs(t, err, ErrInvalidBumpKind)
}

func TestBumpKindPrecedence(t *testing.T) {
	assert.Equal(t, BumpMajor, MaxBumpKind(BumpPatch, BumpMajor, BumpMinor))
	assert.Equal(t, BumpMinor, MaxBumpKind(BumpMinor, BumpPatch))
	assert.Equal(t, BumpNone, MaxBumpKind())
}

func TestParseBumpKind(t *testing.T) {
	k, err := ParseBumpKind("minor")
	require.NoError(t, err)
	assert.Equal(t, BumpMinor, k)

	_, err = ParseBumpKind("huge")
	assert.ErrorIs(t, err, ErrInvalidBumpKind)
}
