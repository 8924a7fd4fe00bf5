// Package store contains the in-memory dataset that suggestions are served from.
// It is designed to be read concurrently by many queries while a single writer
// replaces the whole dataset at once.
package store

import "sync"

// Store holds the currently installed Snapshot.
// Readers share the snapshot pointer; Swap repoints it under the write lock,
// so a reader either sees the old snapshot or the new one, never a mixture.
type Store struct {
	mu      sync.RWMutex
	current *Snapshot
}

// NewStore initializes and returns a Store holding an empty snapshot.
func NewStore() *Store {
	return &Store{
		current: NewSnapshot(nil, ""),
	}
}

// Swap installs snap as the current snapshot and returns the version assigned to it.
// Versions increase by one on every swap, the initial empty snapshot being version 0.
// A nil snapshot is replaced by an empty one. The store installs its own
// shallow copy, so snap itself is never modified.
func (s *Store) Swap(snap *Snapshot) uint64 {
	if snap == nil {
		snap = NewSnapshot(nil, "")
	}
	installed := *snap

	s.mu.Lock()
	defer s.mu.Unlock()

	installed.version = s.current.version + 1
	s.current = &installed
	return installed.version
}

// Read returns the currently installed snapshot.
// The snapshot is immutable; callers may keep using it after a later Swap.
func (s *Store) Read() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Len reports the number of records in the current snapshot.
func (s *Store) Len() int {
	return s.Read().Len()
}

// Version reports the version of the current snapshot.
func (s *Store) Version() uint64 {
	return s.Read().Version()
}
