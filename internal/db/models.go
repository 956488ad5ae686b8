package db

import "peerreview/kgraph/internal/graph"

// Run represents a row in the runs table: one metrics batch for a target
type Run struct {
	ID             string `json:"id"`
	Conference     string `json:"conference"`
	Year           int    `json:"year"`
	Category       string `json:"category"`
	Seed           int64  `json:"seed"`
	MetricsVersion int    `json:"metrics_version"`
	StartedAt      int64  `json:"started_at"`  // Unix millis
	FinishedAt     *int64 `json:"finished_at"` // nil while running
	GraphCount     int    `json:"graph_count"`
}

// MetricRow represents a row in the graph_metrics table
type MetricRow struct {
	PaperID   string `json:"paper_id"`
	Section   string `json:"section"`
	Source    string `json:"source_type"`
	LineIndex int    `json:"line_index"`
	graph.Metrics
}
