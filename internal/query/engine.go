// Package query turns an identifier into ranked suggestions read from the dataset store.
package query

import (
	"cmp"
	"slices"

	"github.com/ASHISH26940/suggestd/internal/store"
)

// SnapshotReader is the interface the engine needs from the storage layer.
type SnapshotReader interface {
	Read() *store.Snapshot
}

// Suggestion is one ranked entry of a result.
type Suggestion struct {
	Text     string
	Position int
}

// Result is the ordered list of suggestions for one query.
type Result []Suggestion

// Engine answers suggestion queries against the current snapshot.
type Engine struct {
	store SnapshotReader
}

// NewEngine creates an Engine reading from st.
func NewEngine(st SnapshotReader) *Engine {
	return &Engine{store: st}
}

// Suggest returns the records whose ID equals identifier, ordered by ascending
// cost. Records with equal cost keep their snapshot order. An identifier with
// no matches yields an empty, non-nil result.
func (e *Engine) Suggest(identifier string) Result {
	// One read per query: the whole query runs against a single snapshot.
	matches := e.store.Read().Lookup(identifier)

	slices.SortStableFunc(matches, func(a, b store.Record) int {
		return cmp.Compare(a.Cost, b.Cost)
	})

	result := make(Result, len(matches))
	for i, r := range matches {
		result[i] = Suggestion{Text: r.Name, Position: i}
	}
	return result
}
