package graph

import "math"

// CohesionBreakdown shows the sub-scores of the cohesion formula
type CohesionBreakdown struct {
	Connectivity float64 `json:"connectivity"`
	Components   float64 `json:"components"`
	Fragility    float64 `json:"fragility"`
}

// AnalysisReport is the full analysis of one entity graph
type AnalysisReport struct {
	CohesionScore     float64           `json:"cohesion_score"`
	CohesionBreakdown CohesionBreakdown `json:"cohesion_breakdown"`
	Topology          *TopologyReport   `json:"topology"`
	Bridges           *BridgeReport     `json:"bridges"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	HubThreshold int
	TopN         int
}

// DefaultConfig returns the defaults used by inspect
func DefaultConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		HubThreshold: 3,
		TopN:         10,
	}
}

// Analyze runs topology and bridge analysis and scores how tightly the
// extracted entities hang together. An empty graph scores 0.
func Analyze(g *Graph, config *AnalyzerConfig) *AnalysisReport {
	if config == nil {
		config = DefaultConfig()
	}
	topology := ComputeTopology(g, config.HubThreshold, config.TopN)
	bridges := ComputeBridges(g)

	total := float64(topology.Metrics.NumNodes)

	var connectivity, components, fragility float64
	if total > 0 {
		connectivity = clamp(1.0-float64(topology.IsolatedCount)/total, 0, 1)
		fragility = clamp(1.0-math.Min(float64(bridges.APCount)/total, 0.25)*4.0, 0, 1)
	}
	if topology.NumComponents > 0 {
		components = clamp(1.0/float64(topology.NumComponents), 0, 1)
	}

	return &AnalysisReport{
		CohesionScore: 0.40*connectivity + 0.35*components + 0.25*fragility,
		CohesionBreakdown: CohesionBreakdown{
			Connectivity: connectivity,
			Components:   components,
			Fragility:    fragility,
		},
		Topology: topology,
		Bridges:  bridges,
	}
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
