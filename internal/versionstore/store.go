// Package versionstore persists the current version of a project together
// with its changelog document.
//
// Implementations write the version and the changelog atomically, either
// both are stored or none. Concurrent writers are detected via the
// revision of a Snapshot: Persist fails with ErrPersistenceConflict when
// the stored revision differs from the one the caller based its changes
// on.
package versionstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/simplesurance/autorelease/internal/version"
)

// Default file names.
const (
	DefaultVersionFile   = "VERSION"
	DefaultChangelogFile = "CHANGELOG.md"
)

// ErrPersistenceConflict is returned by Persist when the stored state was
// modified after the base snapshot was read.
var ErrPersistenceConflict = errors.New("persistence conflict, stored version was modified concurrently")

// Snapshot is the persisted state at a point in time.
type Snapshot struct {
	// Ref is the branch the snapshot was read from. It is empty for
	// stores that are not backed by a version control system.
	Ref       string
	Version   version.Version
	Changelog string
	// Revision identifies the state the snapshot was read from.
	Revision string
}

// Commit describes a successful Persist operation.
type Commit struct {
	// Ref is the branch that contains the persisted changes, empty if
	// the store does not use branches.
	Ref string
	// ID identifies the written state, e.g. a commit SHA.
	ID string
}

// FormatVersionFile returns the content of a version file for v.
func FormatVersionFile(v version.Version) string {
	return v.String() + "\n"
}

// ParseVersionFile parses the content of a version file.
// An empty file is interpreted as version.Zero.
func ParseVersionFile(content string) (version.Version, error) {
	if strings.TrimSpace(content) == "" {
		return version.Zero, nil
	}

	v, err := version.Parse(content)
	if err != nil {
		return version.Zero, fmt.Errorf("parsing version file failed: %w", err)
	}

	return v, nil
}
