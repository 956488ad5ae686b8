package graph

import "math"

// MetricsVersion identifies the metric key contract below. Bump it whenever
// MetricKeys changes so persisted rows can be told apart.
const MetricsVersion = 1

// MetricKeys is the fixed, ordered set of per-graph metric names
var MetricKeys = []string{"num_nodes", "num_edges", "avg_degree", "label_entropy"}

// Metrics holds the structural summary of one entity graph
type Metrics struct {
	NumNodes     int     `json:"num_nodes"`
	NumEdges     int     `json:"num_edges"`
	AvgDegree    float64 `json:"avg_degree"`
	LabelEntropy float64 `json:"label_entropy"`
}

// ComputeMetrics computes node/edge counts, average degree and label entropy
func ComputeMetrics(g *Graph) Metrics {
	if g == nil {
		return Metrics{}
	}

	totalDegree := 0
	for span := range g.Nodes {
		totalDegree += g.Degree(span)
	}
	denom := g.NumNodes()
	if denom < 1 {
		denom = 1
	}

	return Metrics{
		NumNodes:     g.NumNodes(),
		NumEdges:     g.NumEdges(),
		AvgDegree:    float64(totalDegree) / float64(denom),
		LabelEntropy: LabelEntropy(g),
	}
}

// LabelEntropy is the base-2 Shannon entropy of node labels.
// Returns 0.0 when no node carries a label.
func LabelEntropy(g *Graph) float64 {
	counts := make(map[string]int)
	total := 0
	for _, n := range g.Nodes {
		if n.Label == "" {
			continue
		}
		counts[n.Label]++
		total++
	}
	if total == 0 {
		return 0.0
	}

	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// Values returns the metric values in MetricKeys order
func (m Metrics) Values() []float64 {
	return []float64{
		float64(m.NumNodes),
		float64(m.NumEdges),
		m.AvgDegree,
		m.LabelEntropy,
	}
}

// Map returns metric name -> value
func (m Metrics) Map() map[string]float64 {
	values := m.Values()
	out := make(map[string]float64, len(MetricKeys))
	for i, k := range MetricKeys {
		out[k] = values[i]
	}
	return out
}
