// Package version provides semantic versions and the rules for bumping
// them.
package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidVersion is returned when a version string can not be parsed.
var ErrInvalidVersion = errors.New("invalid version")

// Version is a semantic version consisting of the major, minor and patch
// component. Versions are values, operations return new Versions.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// Zero is the version that is used when no version was persisted yet.
var Zero = Version{}

func New(major, minor, patch uint64) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// Parse parses a version in the format MAJOR.MINOR.PATCH.
// A leading "v" and surrounding whitespace are ignored.
// Versions with prerelease or build-metadata suffixes are rejected.
func Parse(s string) (Version, error) {
	str := strings.TrimSpace(s)
	str = strings.TrimPrefix(str, "v")

	sv, err := semver.StrictNewVersion(str)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q: %s", ErrInvalidVersion, s, err)
	}

	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return Zero, fmt.Errorf("%w: %q: prerelease and metadata suffixes are unsupported", ErrInvalidVersion, s)
	}

	return Version{
		Major: sv.Major(),
		Minor: sv.Minor(),
		Patch: sv.Patch(),
	}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Tag returns the name of the git tag for the version, e.g. "v1.2.3" for
// the prefix "v".
func (v Version) Tag(prefix string) string {
	return prefix + v.String()
}

// Compare returns -1 if v is lower then o, 0 if both are equal and 1 if v
// is greater then o.
func (v Version) Compare(o Version) int {
	if c := cmpUint(v.Major, o.Major); c != 0 {
		return c
	}

	if c := cmpUint(v.Minor, o.Minor); c != 0 {
		return c
	}

	return cmpUint(v.Patch, o.Patch)
}

func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func (v Version) Equal(o Version) bool {
	return v == o
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
