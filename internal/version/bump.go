package version

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBumpKind is returned when Bump is called with BumpNone or an
// undefined BumpKind. Callers must not request a bump when no release
// should happen, the error indicates a programming error.
var ErrInvalidBumpKind = errors.New("invalid bump kind")

// ErrVersionOverflow is returned when the component that Bump increments
// has the maximum value already.
var ErrVersionOverflow = errors.New("version component overflow")

// BumpKind describes which version component is incremented.
// The numeric order of the values is their precedence.
type BumpKind uint8

const (
	BumpNone BumpKind = iota
	BumpPatch
	BumpMinor
	BumpMajor
)

var bumpKindStrings = [...]string{
	BumpNone:  "none",
	BumpPatch: "patch",
	BumpMinor: "minor",
	BumpMajor: "major",
}

func (k BumpKind) String() string {
	if int(k) > len(bumpKindStrings)-1 {
		return fmt.Sprintf("unsupported BumpKind value: %d", k)
	}

	return bumpKindStrings[k]
}

// ParseBumpKind converts the string representation of a BumpKind to the
// value.
func ParseBumpKind(s string) (BumpKind, error) {
	for k, str := range bumpKindStrings {
		if str == s {
			return BumpKind(k), nil
		}
	}

	return BumpNone, fmt.Errorf("%w: %q (must be none, patch, minor or major)", ErrInvalidBumpKind, s)
}

// MaxBumpKind returns the BumpKind with the highest precedence.
func MaxBumpKind(kinds ...BumpKind) BumpKind {
	result := BumpNone

	for _, k := range kinds {
		if k > result {
			result = k
		}
	}

	return result
}

// Bump returns the successor of current for the given kind.
//
// BumpMajor increments the major component and resets minor and patch,
// BumpMinor increments minor and resets patch, BumpPatch increments patch.
// If the incremented component would overflow, ErrVersionOverflow is
// returned.
func Bump(current Version, kind BumpKind) (Version, error) {
	switch kind {
	case BumpMajor:
		if current.Major == math.MaxUint64 {
			return current, overflowErr(current, kind)
		}

		return Version{Major: current.Major + 1}, nil

	case BumpMinor:
		if current.Minor == math.MaxUint64 {
			return current, overflowErr(current, kind)
		}

		return Version{Major: current.Major, Minor: current.Minor + 1}, nil

	case BumpPatch:
		if current.Patch == math.MaxUint64 {
			return current, overflowErr(current, kind)
		}

		return Version{Major: current.Major, Minor: current.Minor, Patch: current.Patch + 1}, nil

	default:
		return current, fmt.Errorf("%w: %s", ErrInvalidBumpKind, kind)
	}
}

func overflowErr(v Version, kind BumpKind) error {
	return fmt.Errorf("%w: can not bump %s component of %s", ErrVersionOverflow, kind, v)
}
