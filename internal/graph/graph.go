package graph

import (
	"sort"
	"strings"
)

// Span is an inclusive token interval over one flattened section
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Less orders spans by start, then end
func (s Span) Less(o Span) bool {
	if s.Start != o.Start {
		return s.Start < o.Start
	}
	return s.End < o.End
}

// Entity is one predicted entity: a span with its category tag
type Entity struct {
	Span  Span
	Label string
}

// Relation is one predicted relation between two entity spans
type Relation struct {
	Head Span
	Tail Span
	Type string
}

// NodeInfo is an entity node keyed by its span
type NodeInfo struct {
	Span  Span
	Label string
	Text  string
}

// EdgeInfo is a directed relation edge
type EdgeInfo struct {
	Head     Span
	Tail     Span
	Relation string
}

// undirectedRelations are stored as a forward and a reverse edge
var undirectedRelations = map[string]bool{
	"COMPARE":     true,
	"CONJUNCTION": true,
}

// IsUndirected reports whether a relation type is symmetric
func IsUndirected(relation string) bool {
	return undirectedRelations[relation]
}

type edgeKey struct{ head, tail Span }

// Graph is a simple directed graph of entity spans. At most one edge exists
// per ordered (head, tail) pair; re-adding a pair overwrites its relation.
type Graph struct {
	Nodes  map[Span]*NodeInfo
	OutAdj map[Span][]Span // head -> tails
	InAdj  map[Span][]Span // tail -> heads

	edges     map[edgeKey]*EdgeInfo
	edgeOrder []edgeKey
}

// New returns an empty graph
func New() *Graph {
	return &Graph{
		Nodes:  make(map[Span]*NodeInfo),
		OutAdj: make(map[Span][]Span),
		InAdj:  make(map[Span][]Span),
		edges:  make(map[edgeKey]*EdgeInfo),
	}
}

// AddNode inserts a node or overwrites the attributes of an existing one
func (g *Graph) AddNode(span Span, label, text string) {
	if n, ok := g.Nodes[span]; ok {
		n.Label = label
		n.Text = text
		return
	}
	g.Nodes[span] = &NodeInfo{Span: span, Label: label, Text: text}
	g.OutAdj[span] = nil
	g.InAdj[span] = nil
}

// HasNode reports whether span is a node of the graph
func (g *Graph) HasNode(span Span) bool {
	_, ok := g.Nodes[span]
	return ok
}

// AddEdge inserts head -> tail. Returns false when either endpoint is unknown.
func (g *Graph) AddEdge(head, tail Span, relation string) bool {
	if !g.HasNode(head) || !g.HasNode(tail) {
		return false
	}
	key := edgeKey{head, tail}
	if e, ok := g.edges[key]; ok {
		e.Relation = relation
		return true
	}
	g.edges[key] = &EdgeInfo{Head: head, Tail: tail, Relation: relation}
	g.edgeOrder = append(g.edgeOrder, key)
	g.OutAdj[head] = append(g.OutAdj[head], tail)
	g.InAdj[tail] = append(g.InAdj[tail], head)
	return true
}

// HasEdge reports whether the directed edge head -> tail exists
func (g *Graph) HasEdge(head, tail Span) bool {
	_, ok := g.edges[edgeKey{head, tail}]
	return ok
}

// Edge returns the edge head -> tail, or nil
func (g *Graph) Edge(head, tail Span) *EdgeInfo {
	return g.edges[edgeKey{head, tail}]
}

// Edges returns all edges in insertion order
func (g *Graph) Edges() []EdgeInfo {
	out := make([]EdgeInfo, 0, len(g.edgeOrder))
	for _, k := range g.edgeOrder {
		out = append(out, *g.edges[k])
	}
	return out
}

// NumNodes returns the node count
func (g *Graph) NumNodes() int { return len(g.Nodes) }

// NumEdges returns the directed edge count
func (g *Graph) NumEdges() int { return len(g.edges) }

// Degree returns in-degree plus out-degree; a self-loop counts twice
func (g *Graph) Degree(span Span) int {
	return len(g.OutAdj[span]) + len(g.InAdj[span])
}

// Spans returns all node spans in (start, end) order (for deterministic output)
func (g *Graph) Spans() []Span {
	spans := make([]Span, 0, len(g.Nodes))
	for s := range g.Nodes {
		spans = append(spans, s)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Less(spans[j]) })
	return spans
}

// BuildEntityGraph builds one directed graph from entity and relation
// predictions over a flattened token sequence. Relations whose endpoints are
// not entities are dropped.
func BuildEntityGraph(entities []Entity, relations []Relation, tokens []string) *Graph {
	g := New()

	for _, ent := range entities {
		g.AddNode(ent.Span, ent.Label, SpanText(tokens, ent.Span))
	}

	for _, rel := range relations {
		if !g.AddEdge(rel.Head, rel.Tail, rel.Type) {
			continue
		}
		if IsUndirected(rel.Type) {
			g.AddEdge(rel.Tail, rel.Head, rel.Type)
		}
	}

	return g
}

// SpanText joins tokens start..end inclusive with single spaces.
// Out-of-range spans give "", an end past the last token is clamped.
func SpanText(tokens []string, span Span) string {
	start, end := span.Start, span.End
	if start < 0 || start >= len(tokens) || end < start {
		return ""
	}
	if end >= len(tokens) {
		end = len(tokens) - 1
	}
	return strings.Join(tokens[start:end+1], " ")
}
