package selection

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"peerreview/kgraph/internal/config"
	"peerreview/kgraph/internal/observability"
)

// ErrNoThreshold is returned when a selector cannot derive a cutoff
var ErrNoThreshold = errors.New("selection: no std_rating threshold")

// Result summarizes one labeled data set
type Result struct {
	Dataset    string
	OutputPath string
	Threshold  float64
	Counts     map[string]int
}

// Selector labels the consistent papers of each data set
type Selector struct {
	cfg    config.SelectionConfig
	logger *zap.Logger
}

// NewSelector creates a Selector
func NewSelector(cfg config.SelectionConfig, logger *zap.Logger) *Selector {
	return &Selector{cfg: cfg, logger: observability.OrNop(logger).Named("selection")}
}

// Dataset names a conference year, e.g. "ICLR2024"
func Dataset(conference string, year int) string {
	return conference + strconv.Itoa(year)
}

// InputPath is the avg-rating file of a conference year
func (s *Selector) InputPath(conference string, year int) string {
	ds := Dataset(conference, year)
	return filepath.Join(s.cfg.RootDir, conference, strconv.Itoa(year), "papers", ds+"_papers_avg_rating.csv")
}

// Process labels one avg-rating file and writes the result beside it
func (s *Selector) Process(path, dataset string) (*Result, error) {
	table, err := ReadPapers(path)
	if err != nil {
		return nil, err
	}

	stds := make([]float64, len(table.Papers))
	for i, p := range table.Papers {
		stds[i] = p.StdRating
	}
	threshold, ok := SelectorFor(s.cfg, dataset).Threshold(stds)
	if !ok {
		return nil, fmt.Errorf("%s: %w", dataset, ErrNoThreshold)
	}

	labeled := Label(table.Papers, threshold, s.cfg.LabelPercent, s.cfg.BorderlineWindow)
	out := LabeledPath(path)
	if err := WriteLabeled(out, table.Header, labeled); err != nil {
		return nil, err
	}

	res := &Result{Dataset: dataset, OutputPath: out, Threshold: threshold, Counts: CountLabels(labeled)}
	s.logger.Info("Labeled consistent papers",
		zap.String("dataset", dataset),
		zap.Float64("std_threshold", threshold),
		zap.Int(LabelBorderline, res.Counts[LabelBorderline]),
		zap.Int(LabelBad, res.Counts[LabelBad]),
		zap.Int(LabelGood, res.Counts[LabelGood]),
		zap.String("output", out))
	return res, nil
}
