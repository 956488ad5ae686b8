package graph

import "sort"

// HubEntity is an entity with high connectivity
type HubEntity struct {
	Span      Span   `json:"span"`
	Text      string `json:"text"`
	Label     string `json:"label"`
	Degree    int    `json:"degree"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TopologyReport describes the shape of one entity graph
type TopologyReport struct {
	Metrics           Metrics        `json:"metrics"`
	NumComponents     int            `json:"num_components"`
	LargestComponent  int            `json:"largest_component"`
	SmallestComponent int            `json:"smallest_component"`
	IsolatedCount     int            `json:"isolated_count"`
	Isolated          []Span         `json:"isolated"`
	DegreeHistogram   []DegreeBucket `json:"degree_histogram"`
	Hubs              []HubEntity    `json:"hubs"`
	LabelCounts       map[string]int `json:"label_counts"`
	RelationCounts    map[string]int `json:"relation_counts"`
}

// ComputeTopology analyzes weakly connected components, isolated entities,
// degree distribution and hubs
func ComputeTopology(g *Graph, hubThreshold, topN int) *TopologyReport {
	report := &TopologyReport{
		Metrics:         ComputeMetrics(g),
		DegreeHistogram: defaultHistogram(),
		LabelCounts:     make(map[string]int),
		RelationCounts:  make(map[string]int),
	}
	if g == nil || g.NumNodes() == 0 {
		return report
	}

	spans := g.Spans()
	uf := NewUnionFind(spans)
	for _, e := range g.Edges() {
		uf.Union(e.Head, e.Tail)
		report.RelationCounts[e.Relation]++
	}

	components := uf.Components()
	largest, smallest := 0, len(spans)
	for _, c := range components {
		if len(c) > largest {
			largest = len(c)
		}
		if len(c) < smallest {
			smallest = len(c)
		}
	}
	report.NumComponents = len(components)
	report.LargestComponent = largest
	report.SmallestComponent = smallest

	var isolated []Span
	var hubs []HubEntity
	for _, s := range spans {
		node := g.Nodes[s]
		report.LabelCounts[node.Label]++

		degree := g.Degree(s)
		report.DegreeHistogram[degreeBucket(degree)].Count++
		if degree == 0 {
			isolated = append(isolated, s)
		}
		if degree > hubThreshold {
			hubs = append(hubs, HubEntity{
				Span:      s,
				Text:      node.Text,
				Label:     node.Label,
				Degree:    degree,
				InDegree:  len(g.InAdj[s]),
				OutDegree: len(g.OutAdj[s]),
			})
		}
	}

	report.IsolatedCount = len(isolated)
	if len(isolated) > topN {
		isolated = isolated[:topN]
	}
	report.Isolated = isolated

	sort.SliceStable(hubs, func(i, j int) bool { return hubs[i].Degree > hubs[j].Degree })
	if len(hubs) > topN {
		hubs = hubs[:topN]
	}
	report.Hubs = hubs

	return report
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"},
		{Label: "4-7"}, {Label: "8-15"}, {Label: "16-31"}, {Label: "32+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	case degree <= 31:
		return 5
	default:
		return 6
	}
}
