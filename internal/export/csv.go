package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"peerreview/kgraph/internal/graph"
	"peerreview/kgraph/internal/pipeline"
)

// KeyColumns precede the metric columns in every row
var KeyColumns = []string{"paper_id", "section", "source_type", "line_index"}

// Row is one exported graph: its key and metrics
type Row struct {
	Key     pipeline.RecordKey
	Metrics graph.Metrics
}

// Header returns the full column list
func Header() []string {
	return append(append([]string{}, KeyColumns...), graph.MetricKeys...)
}

// Rows computes metrics for every graph in set order
func Rows(set *pipeline.GraphSet) []Row {
	if set.Len() == 0 {
		return nil
	}
	keys := set.Keys()
	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		g, _ := set.Get(k)
		rows = append(rows, Row{Key: k, Metrics: graph.ComputeMetrics(g)})
	}
	return rows
}

// Record renders a row in Header order
func (r Row) Record() []string {
	return []string{
		r.Key.PaperID,
		r.Key.Section,
		r.Key.Source,
		strconv.Itoa(r.Key.LineIndex),
		strconv.Itoa(r.Metrics.NumNodes),
		strconv.Itoa(r.Metrics.NumEdges),
		formatFloat(r.Metrics.AvgDegree),
		formatFloat(r.Metrics.LabelEntropy),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write writes the header and rows as CSV
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes one row per graph to outputPath, creating parent
// directories. An empty set writes nothing and is not an error.
func WriteCSV(set *pipeline.GraphSet, outputPath string) error {
	rows := Rows(set)
	if len(rows) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputPath, err)
	}
	if err := Write(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", outputPath, err)
	}
	return nil
}

// OutputPath is where the metrics CSV for a target is written
func OutputPath(outputDir, fileName string, t pipeline.Target) string {
	return filepath.Join(outputDir, t.Conference, strconv.Itoa(t.Year), t.Category, fileName)
}
