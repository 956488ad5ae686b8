package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"peerreview/kgraph/internal/config"
	"peerreview/kgraph/internal/db"
	"peerreview/kgraph/internal/graph"
	"peerreview/kgraph/internal/pipeline"
	"peerreview/kgraph/internal/record"
)

const predictions = `{"doc_key": "P1_intro", "sentences": [["Graph", "models", "help"]], "predicted_ner": [[[0, 0, "Method"], [1, 1, "Task"]]], "predicted_re": [[0, [[[0, 0], [1, 1], "USED-FOR"]]]]}
{"doc_key": "P1_questions", "sentences": [["Why", "this"]], "predicted_ner": [[[1, 1, "Generic"]]]}
not json
{"doc_key": "P2_intro", "sentences": [["A"]], "predicted_ner": [[]]}
`

func readPredictions(t *testing.T) []record.Line {
	t.Helper()
	lines, err := record.Read(strings.NewReader(predictions))
	require.NoError(t, err)
	return lines
}

func TestResolveRecord(t *testing.T) {
	lines := readPredictions(t)

	tests := []struct {
		name    string
		ref     string
		wantKey string
		wantErr string
	}{
		{name: "line index", ref: "3", wantKey: "P2_intro"},
		{name: "exact doc key", ref: "P1_intro", wantKey: "P1_intro"},
		{name: "unique prefix", ref: "P2", wantKey: "P2_intro"},
		{name: "ambiguous prefix", ref: "P1", wantErr: "ambiguous reference 'P1'. 2 matches"},
		{name: "invalid line", ref: "2", wantErr: "line 2 is invalid"},
		{name: "not found", ref: "P9", wantErr: "record not found: P9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveRecord(lines, tt.ref)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, got.Record.DocKey)
		})
	}
}

func TestPrintReport(t *testing.T) {
	lines := readPredictions(t)
	line, err := resolveRecord(lines, "P1_intro")
	require.NoError(t, err)

	g := line.Record.Graph()
	var buf bytes.Buffer
	printReport(&buf, line, graph.Analyze(g, &graph.AnalyzerConfig{HubThreshold: 0, TopN: 10}), g)

	out := buf.String()
	assert.Contains(t, out, "P1_intro (line 0)")
	assert.Contains(t, out, "nodes=2 edges=1")
	assert.Contains(t, out, "Components: 1")
	assert.Contains(t, out, "USED-FOR")
	assert.Contains(t, out, "Method")
	assert.Contains(t, out, "Cohesion: 100%")
	assert.Contains(t, out, "1 bridge relations")
	assert.Contains(t, out, "Graph -USED-FOR-> models")
	assert.Contains(t, out, "Method <-> Task (1 relation)")
}

func TestFilterTargets(t *testing.T) {
	all := pipeline.Targets(config.NewDefaultConfig().Pipeline)
	require.Len(t, all, 12)

	assert.Len(t, filterTargets(all, "ICLR", 0, ""), 6)
	assert.Len(t, filterTargets(all, "", 2024, ""), 6)
	assert.Equal(t, []pipeline.Target{{Conference: "NeurIPS", Year: 2023, Category: "bad"}},
		filterTargets(all, "NeurIPS", 2023, "bad"))
	assert.Empty(t, filterTargets(all, "ACL", 0, ""))
}

func TestTruncText(t *testing.T) {
	assert.Equal(t, "short", truncText("short", 10))
	assert.Equal(t, "a b c", truncText("a\n b\t c", 10))
	assert.Equal(t, "abcde...", truncText("abcdefgh", 5))
	assert.Equal(t, "ab...", truncText("abé", 3), "never splits a rune")
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "borderline: 2, bad: 0, good: 5", formatCounts(map[string]int{"good": 5, "borderline": 2}))
}

func TestMetricsBatch(t *testing.T) {
	base := t.TempDir()
	pcfg := config.NewDefaultConfig().Pipeline
	pcfg.BaseDir = base
	pcfg.OutputDir = filepath.Join(base, "out")
	pcfg.Seed = 7

	good := pipeline.Target{Conference: "ICLR", Year: 2024, Category: "good"}
	bad := pipeline.Target{Conference: "ICLR", Year: 2024, Category: "bad"}
	path := pipeline.SourcePath(base, "real", good)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(predictions), 0o644))

	store, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	defer store.Close()

	b := newMetricsBatch(pcfg, store, zap.NewNop())
	failed := b.run(context.Background(), []pipeline.Target{good, bad})
	assert.Zero(t, failed)

	csvPath := filepath.Join(base, "out", "ICLR", "2024", "good", "graph_metrics_clean.csv")
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// the degenerate reference questions record is filtered
	require.Len(t, lines, 3)
	assert.Equal(t, "paper_id,section,source_type,line_index,num_nodes,num_edges,avg_degree,label_entropy", lines[0])
	assert.Equal(t, "P1,intro,real,0,2,1,1,1", lines[1])
	assert.Equal(t, "P2,intro,real,3,0,0,0,0", lines[2])

	_, err = os.Stat(filepath.Join(base, "out", "ICLR", "2024", "bad"))
	assert.True(t, os.IsNotExist(err), "no graphs, no output")

	run, err := store.LatestRun("ICLR", 2024, "good")
	require.NoError(t, err)
	assert.Equal(t, int64(7), run.Seed)
	assert.Equal(t, 2, run.GraphCount)
	require.NotNil(t, run.FinishedAt)

	rows, err := store.MetricsForRun(run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "P2", exportRows(rows)[1].Key.PaperID)
	assert.Equal(t, lines[1], strings.Join(exportRows(rows)[0].Record(), ","))
}

func TestMetricsBatch_CancelledCountsAsFailed(t *testing.T) {
	pcfg := config.NewDefaultConfig().Pipeline
	pcfg.BaseDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := newMetricsBatch(pcfg, nil, nil)
	assert.Equal(t, 2, b.run(ctx, pipeline.Targets(pcfg)[:2]))
}

func TestPrintRun(t *testing.T) {
	var buf bytes.Buffer
	printRun(&buf, &db.Run{ID: "abc", Conference: "ICLR", Year: 2024, Category: "good", Seed: 3, MetricsVersion: 1})
	assert.Contains(t, buf.String(), "# run abc  ICLR 2024 good  seed=3  metrics_version=1")
	assert.Contains(t, buf.String(), "running")
}
