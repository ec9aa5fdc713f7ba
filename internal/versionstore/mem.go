package versionstore

import (
	"context"
	"strconv"
	"sync"

	"github.com/simplesurance/autorelease/internal/version"
)

// Mem is an in-memory store.
type Mem struct {
	lock      sync.Mutex
	version   version.Version
	changelog string
	revision  uint64

	// FailPersist, if set, is called before a Persist operation is
	// applied. When it returns an error, Persist fails with it and the
	// state is not modified.
	FailPersist func() error
}

func NewMem(v version.Version, changelog string) *Mem {
	return &Mem{
		version:   v,
		changelog: changelog,
		revision:  1,
	}
}

func (m *Mem) Current(_ context.Context, ref string) (*Snapshot, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	return &Snapshot{
		Ref:       ref,
		Version:   m.version,
		Changelog: m.changelog,
		Revision:  strconv.FormatUint(m.revision, 10),
	}, nil
}

func (m *Mem) Persist(_ context.Context, base *Snapshot, next version.Version, changelog string) (*Commit, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if base.Revision != strconv.FormatUint(m.revision, 10) {
		return nil, ErrPersistenceConflict
	}

	if m.FailPersist != nil {
		if err := m.FailPersist(); err != nil {
			return nil, err
		}
	}

	m.version = next
	m.changelog = changelog
	m.revision++

	return &Commit{
		Ref: base.Ref,
		ID:  strconv.FormatUint(m.revision, 10),
	}, nil
}

// Discard restores the state of base if commit is still the stored
// state. Otherwise ErrPersistenceConflict is returned.
func (m *Mem) Discard(_ context.Context, base *Snapshot, commit *Commit) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if commit.ID != strconv.FormatUint(m.revision, 10) {
		return ErrPersistenceConflict
	}

	m.version = base.Version
	m.changelog = base.Changelog
	m.revision++

	return nil
}

// Set overwrites the stored state like a concurrent writer would.
func (m *Mem) Set(v version.Version, changelog string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.version = v
	m.changelog = changelog
	m.revision++
}
