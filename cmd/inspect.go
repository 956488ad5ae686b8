package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"peerreview/kgraph/internal/graph"
	"peerreview/kgraph/internal/record"
)

var (
	inspectJSON         bool
	inspectTopN         int
	inspectHubThreshold int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <predictions.jsonl> <line|doc_key>",
	Short: "Analyze one record's entity graph: metrics, topology, bridges, cohesion score",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := record.ReadFile(args[0])
		if err != nil {
			return err
		}
		line, err := resolveRecord(lines, args[1])
		if err != nil {
			return err
		}

		g := line.Record.Graph()
		report := graph.Analyze(g, &graph.AnalyzerConfig{
			HubThreshold: inspectHubThreshold,
			TopN:         inspectTopN,
		})

		if inspectJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				DocKey    string                `json:"doc_key"`
				LineIndex int                   `json:"line_index"`
				Report    *graph.AnalysisReport `json:"report"`
			}{line.Record.DocKey, line.Index, report})
		}

		printReport(cmd.OutOrStdout(), line, report, g)
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
	inspectCmd.Flags().IntVar(&inspectTopN, "top-n", 10, "Number of top items to show per section")
	inspectCmd.Flags().IntVar(&inspectHubThreshold, "hub-threshold", 3, "Minimum degree to consider an entity a hub")
	rootCmd.AddCommand(inspectCmd)
}

// resolveRecord finds a record by line index, exact doc_key, or doc_key prefix.
// Invalid lines are never matched.
func resolveRecord(lines []record.Line, reference string) (*record.Line, error) {
	// 1. Line index
	if idx, err := strconv.Atoi(reference); err == nil {
		for i := range lines {
			if lines[i].Index != idx {
				continue
			}
			if lines[i].Err != nil {
				return nil, fmt.Errorf("line %d is invalid: %w", idx, lines[i].Err)
			}
			return &lines[i], nil
		}
	}

	// 2. Exact doc_key, then prefix
	var matches []*record.Line
	for i := range lines {
		if lines[i].Err != nil {
			continue
		}
		key := lines[i].Record.DocKey
		if key == reference {
			return &lines[i], nil
		}
		if strings.HasPrefix(key, reference) {
			matches = append(matches, &lines[i])
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("record not found: %s", reference)
	case 1:
		return matches[0], nil
	}
	limit := 10
	if len(matches) < limit {
		limit = len(matches)
	}
	out := make([]string, limit)
	for i, m := range matches[:limit] {
		out[i] = fmt.Sprintf("  %4d %s", m.Index, m.Record.DocKey)
	}
	return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a line index or full doc_key instead.",
		reference, len(matches), strings.Join(out, "\n"))
}

func printReport(w io.Writer, line *record.Line, report *graph.AnalysisReport, g *graph.Graph) {
	t := report.Topology
	m := t.Metrics

	// Cohesion bar
	barLen := int(report.CohesionScore * 20)
	if barLen > 20 {
		barLen = 20
	}
	bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)
	fmt.Fprintf(w, "\n  %s (line %d)\n", line.Record.DocKey, line.Index)
	fmt.Fprintf(w, "  Cohesion: %.0f%%  [%s]\n", report.CohesionScore*100, bar)
	fmt.Fprintf(w, "  breakdown: connectivity=%.2f components=%.2f fragility=%.2f\n",
		report.CohesionBreakdown.Connectivity,
		report.CohesionBreakdown.Components,
		report.CohesionBreakdown.Fragility)
	fmt.Fprintf(w, "  nodes=%d edges=%d avg_degree=%.4f label_entropy=%.4f\n\n",
		m.NumNodes, m.NumEdges, m.AvgDegree, m.LabelEntropy)

	fmt.Fprintln(w, "  TOPOLOGY")
	fmt.Fprintln(w, "  ────────────────────────────────────────")
	fmt.Fprintf(w, "  Components: %d  Largest: %d  Smallest: %d\n",
		t.NumComponents, t.LargestComponent, t.SmallestComponent)

	if t.IsolatedCount > 0 {
		fmt.Fprintf(w, "  Isolated: %d entities without relations\n", t.IsolatedCount)
		limit := 5
		if len(t.Isolated) < limit {
			limit = len(t.Isolated)
		}
		for _, s := range t.Isolated[:limit] {
			fmt.Fprintf(w, "    - [%d,%d] %s\n", s.Start, s.End, truncText(g.Nodes[s].Text, 50))
		}
		if t.IsolatedCount > limit {
			fmt.Fprintf(w, "    ... and %d more\n", t.IsolatedCount-limit)
		}
	}

	fmt.Fprintln(w, "\n  Degree distribution:")
	for _, b := range t.DegreeHistogram {
		if b.Count > 0 {
			barWidth := int(math.Log2(float64(b.Count))) + 2
			fmt.Fprintf(w, "    %5s: %4d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}

	if len(t.Hubs) > 0 {
		fmt.Fprintln(w, "\n  Top hubs (degree > threshold):")
		for _, hub := range t.Hubs {
			fmt.Fprintf(w, "    [%d,%d] degree=%d (in=%d, out=%d)  %s (%s)\n",
				hub.Span.Start, hub.Span.End, hub.Degree, hub.InDegree, hub.OutDegree,
				truncText(hub.Text, 40), hub.Label)
		}
	}

	printBridges(w, report.Bridges)
	printCounts(w, "LABELS", t.LabelCounts)
	printCounts(w, "RELATIONS", t.RelationCounts)
	fmt.Fprintln(w)
}

func printBridges(w io.Writer, br *graph.BridgeReport) {
	if br.APCount == 0 && br.BridgeCount == 0 && len(br.FragileLinks) == 0 {
		return
	}
	fmt.Fprintln(w, "\n  STRUCTURAL FRAGILITY")
	fmt.Fprintln(w, "  ────────────────────────────────────────")
	if br.APCount > 0 {
		fmt.Fprintf(w, "  %d articulation entities (removal disconnects graph):\n", br.APCount)
		for _, ap := range br.ArticulationPoints[:min(10, len(br.ArticulationPoints))] {
			fmt.Fprintf(w, "    [%d,%d] (neighbors %d)  %s\n",
				ap.Span.Start, ap.Span.End, ap.Neighbors, truncText(ap.Text, 40))
		}
	}
	if br.BridgeCount > 0 {
		fmt.Fprintf(w, "  %d bridge relations (removal disconnects graph):\n", br.BridgeCount)
		for _, be := range br.BridgeEdges[:min(10, len(br.BridgeEdges))] {
			fmt.Fprintf(w, "    %s -%s-> %s\n", truncText(be.HeadText, 30), be.Relation, truncText(be.TailText, 30))
		}
	}
	if len(br.FragileLinks) > 0 {
		fmt.Fprintf(w, "  %d fragile label links (<=2 relations):\n", len(br.FragileLinks))
		for _, fl := range br.FragileLinks[:min(10, len(br.FragileLinks))] {
			s := ""
			if fl.CrossEdges != 1 {
				s = "s"
			}
			fmt.Fprintf(w, "    %s <-> %s (%d relation%s)\n", fl.LabelA, fl.LabelB, fl.CrossEdges, s)
		}
	}
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Fprintf(w, "\n  %s\n", title)
	fmt.Fprintln(w, "  ────────────────────────────────────────")
	for _, k := range keys {
		name := k
		if name == "" {
			name = "(none)"
		}
		fmt.Fprintf(w, "  %-24s %d\n", name, counts[k])
	}
}
