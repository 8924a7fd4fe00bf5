package store

import "time"

// Record is one catalog entry. Several records may share an ID.
type Record struct {
	ID   string
	Name string
	Cost float64
}

// Snapshot is an immutable view of the whole dataset at one point in time.
type Snapshot struct {
	records  []Record
	byID     map[string][]int
	source   string
	loadedAt time.Time
	version  uint64
}

// NewSnapshot builds a snapshot from records. The slice is copied, so the
// caller may reuse it afterwards.
func NewSnapshot(records []Record, source string) *Snapshot {
	snap := &Snapshot{
		records:  make([]Record, len(records)),
		byID:     make(map[string][]int),
		source:   source,
		loadedAt: time.Now(),
	}
	copy(snap.records, records)
	for i, r := range snap.records {
		snap.byID[r.ID] = append(snap.byID[r.ID], i)
	}
	return snap
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// Records returns a copy of all records in snapshot order.
func (s *Snapshot) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Lookup returns the records whose ID equals id exactly, in snapshot order.
// The returned slice is owned by the caller.
func (s *Snapshot) Lookup(id string) []Record {
	idx := s.byID[id]
	if len(idx) == 0 {
		return nil
	}
	out := make([]Record, len(idx))
	for i, pos := range idx {
		out[i] = s.records[pos]
	}
	return out
}

// Version is the store version this snapshot was installed as.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Source is the location the snapshot was loaded from.
func (s *Snapshot) Source() string {
	return s.source
}

// LoadedAt is the time the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}
