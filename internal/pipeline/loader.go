package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"peerreview/kgraph/internal/align"
	"peerreview/kgraph/internal/config"
	"peerreview/kgraph/internal/observability"
	"peerreview/kgraph/internal/record"
)

// Loader builds the aligned graph set for one target across all sources
type Loader struct {
	cfg     config.PipelineConfig
	sampler *align.Sampler
	logger  *zap.Logger
}

// NewLoader creates a Loader. A nil sampler is derived from cfg.Seed, where 0
// means clock-seeded.
func NewLoader(cfg config.PipelineConfig, sampler *align.Sampler, logger *zap.Logger) *Loader {
	if sampler == nil {
		if cfg.Seed == 0 {
			sampler = align.NewRandomSampler()
		} else {
			sampler = align.NewSampler(cfg.Seed)
		}
	}
	return &Loader{
		cfg:     cfg,
		sampler: sampler,
		logger:  observability.OrNop(logger).Named("loader"),
	}
}

// Targets expands the configured conferences, years and categories
func Targets(cfg config.PipelineConfig) []Target {
	var out []Target
	for _, conf := range cfg.Conferences {
		for _, year := range conf.Years {
			for _, cat := range cfg.Categories {
				out = append(out, Target{Conference: conf.Name, Year: year, Category: cat})
			}
		}
	}
	return out
}

// SourcePath returns the prediction file of one source for a target
func SourcePath(baseDir, source string, t Target) string {
	return filepath.Join(baseDir, source, t.Conference, strconv.Itoa(t.Year),
		"merged_ent_pred_with_rel_"+t.Category+".jsonl")
}

type entry struct {
	index int
	rec   *record.Record
}

// LoadGraphs reads every source's predictions for t, aligns secondary question
// sections to the reference source and builds one graph per accepted record.
func (l *Loader) LoadGraphs(ctx context.Context, t Target) (*GraphSet, error) {
	log := l.logger.With(zap.Stringer("target", t))

	bySource := make(map[string][]entry, len(l.cfg.Sources))
	for _, source := range l.cfg.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := l.readSource(source, t, log)
		if err != nil {
			return nil, err
		}
		bySource[source] = entries
	}

	var reference []*record.Record
	for _, e := range bySource[l.cfg.ReferenceSource] {
		reference = append(reference, e.rec)
	}
	skip := align.SkipCounts(reference)

	set := NewGraphSet()
	for _, source := range l.cfg.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l.buildSource(set, source, bySource[source], skip)
	}

	log.Info("Graphs built",
		zap.Int("graphs", set.Len()),
		zap.Any("by_source", set.CountBySource()),
		zap.Int("skipped_questions_papers", len(skip)))
	return set, nil
}

func (l *Loader) readSource(source string, t Target, log *zap.Logger) ([]entry, error) {
	path := SourcePath(l.cfg.BaseDir, source, t)
	lines, err := record.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug("No predictions for source", zap.String("source", source), zap.String("path", path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s predictions: %w", source, err)
	}

	entries := make([]entry, 0, len(lines))
	for _, line := range lines {
		if line.Err != nil {
			log.Warn("Skipping invalid record",
				zap.String("path", path),
				zap.Int("line", line.Index),
				zap.Error(line.Err))
			continue
		}
		entries = append(entries, entry{index: line.Index, rec: line.Record})
	}
	return entries, nil
}

func (l *Loader) buildSource(set *GraphSet, source string, entries []entry, skip map[string]int) {
	isReference := source == l.cfg.ReferenceSource

	var papers []string
	candidates := make(map[string][]entry)

	for _, e := range entries {
		if isReference && align.IsDegenerate(e.rec) {
			continue
		}
		if !isReference && e.rec.IsQuestions() {
			paper := e.rec.PaperID()
			if _, seen := candidates[paper]; !seen {
				papers = append(papers, paper)
			}
			candidates[paper] = append(candidates[paper], e)
			continue
		}
		set.Put(keyFor(source, e), e.rec.Graph())
	}

	for _, paper := range papers {
		items := candidates[paper]
		for _, i := range l.sampler.Keep(len(items), skip[paper]) {
			set.Put(keyFor(source, items[i]), items[i].rec.Graph())
		}
	}
}

func keyFor(source string, e entry) RecordKey {
	return RecordKey{
		PaperID:   e.rec.PaperID(),
		Section:   e.rec.Section(),
		Source:    source,
		LineIndex: e.index,
	}
}
