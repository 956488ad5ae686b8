package pipeline

import (
	"fmt"

	"peerreview/kgraph/internal/graph"
)

// Target is one (conference, year, category) batch iteration
type Target struct {
	Conference string
	Year       int
	Category   string
}

func (t Target) String() string {
	return fmt.Sprintf("%s %d %s", t.Conference, t.Year, t.Category)
}

// RecordKey identifies one graph: the record's paper and section, the source
// it came from and its 0-based line in that source's file.
type RecordKey struct {
	PaperID   string
	Section   string
	Source    string
	LineIndex int
}

// GraphSet maps record keys to graphs, iterating in insertion order
type GraphSet struct {
	keys   []RecordKey
	graphs map[RecordKey]*graph.Graph
}

// NewGraphSet returns an empty set
func NewGraphSet() *GraphSet {
	return &GraphSet{graphs: make(map[RecordKey]*graph.Graph)}
}

// Put stores g under key. Re-putting a key replaces the graph in place.
func (s *GraphSet) Put(key RecordKey, g *graph.Graph) {
	if _, ok := s.graphs[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.graphs[key] = g
}

// Get returns the graph stored under key
func (s *GraphSet) Get(key RecordKey) (*graph.Graph, bool) {
	g, ok := s.graphs[key]
	return g, ok
}

// Keys returns the keys in insertion order
func (s *GraphSet) Keys() []RecordKey {
	out := make([]RecordKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of graphs
func (s *GraphSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// CountBySource tallies graphs per source
func (s *GraphSet) CountBySource() map[string]int {
	counts := make(map[string]int)
	for _, k := range s.keys {
		counts[k.Source]++
	}
	return counts
}
