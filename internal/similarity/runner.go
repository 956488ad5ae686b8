package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"peerreview/kgraph/internal/config"
	"peerreview/kgraph/internal/observability"
	"peerreview/kgraph/internal/review"
)

const sectionFileSuffix = "_section.json"

// Section is one mapped section of a converted paper
type Section struct {
	MappedSection string `json:"mapped_section"`
	Content       string `json:"content"`
}

// PartScores holds the ranked sections for one review part
type PartScores struct {
	Part   string
	Scores []SectionScore
}

// ReviewSimilarity is the per-part ranking of one review. It serializes as a
// JSON object whose keys keep part order.
type ReviewSimilarity []PartScores

// MarshalJSON writes an ordered object
func (r ReviewSimilarity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Part)
		if err != nil {
			return nil, err
		}
		scores := p.Scores
		if scores == nil {
			scores = []SectionScore{}
		}
		val, err := json.Marshal(scores)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the similarity output for one paper and one review source
type Result struct {
	PaperID string             `json:"paper_id"`
	Reviews []ReviewSimilarity `json:"reviews"`
}

// Stats summarizes one Run
type Stats struct {
	Papers  int
	Written int
	Skipped int
}

// Runner computes review-part to paper-section similarities for the real
// reviews and each configured model's reviews.
type Runner struct {
	cfg    config.SimilarityConfig
	enc    Encoder
	logger *zap.Logger
}

// NewRunner creates a Runner
func NewRunner(cfg config.SimilarityConfig, enc Encoder, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		enc:    enc,
		logger: observability.OrNop(logger).Named("similarity"),
	}
}

func (r *Runner) yearDir(conference string, year int) string {
	return filepath.Join(r.cfg.RootDir, conference, strconv.Itoa(year))
}

// SectionDir holds the <paper>_section.json files of a category
func (r *Runner) SectionDir(conference string, year int, category string) string {
	return filepath.Join(r.yearDir(conference, year), "md_section_paper", category)
}

// RealReviewPath is the processed human review file of a category
func (r *Runner) RealReviewPath(conference string, year int, category string) string {
	return filepath.Join(r.yearDir(conference, year), "real_review", category+"_papers", category+"_reviews.json")
}

// ModelReviewPath is one paper's generated review file
func (r *Runner) ModelReviewPath(conference string, year int, category, model, paperID string) string {
	return filepath.Join(r.yearDir(conference, year), model+"_review", category+"_papers", paperID+".json")
}

// OutputPath is where one paper's result for a review source is written
func (r *Runner) OutputPath(conference string, year int, category, source, paperID string) string {
	return filepath.Join(r.yearDir(conference, year), "similarity_results", source+"_review", category, paperID+".json")
}

// Run processes every paper of one category. Papers whose outputs already
// exist are skipped; a missing section directory skips the category.
func (r *Runner) Run(ctx context.Context, conference string, year int, category string) (Stats, error) {
	log := r.logger.With(zap.String("conference", conference), zap.Int("year", year), zap.String("category", category))

	sectionDir := r.SectionDir(conference, year, category)
	papers, err := listPapers(sectionDir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("No section directory, skipping", zap.String("path", sectionDir))
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, err
	}

	realReviews, err := loadRealReviews(r.RealReviewPath(conference, year, category))
	if err != nil {
		return Stats{}, err
	}

	var written, skipped atomic.Int64
	concurrency := r.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, paperID := range papers {
		g.Go(func() error {
			n, err := r.processPaper(gctx, log, conference, year, category, paperID, realReviews[paperID])
			if err != nil {
				return fmt.Errorf("paper %s: %w", paperID, err)
			}
			if n == 0 {
				skipped.Add(1)
			}
			written.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{Papers: len(papers), Written: int(written.Load()), Skipped: int(skipped.Load())}
	log.Info("Similarity category complete",
		zap.Int("papers", stats.Papers),
		zap.Int("written", stats.Written),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

type job struct {
	source  string
	outPath string
	reviews []review.Partitioned
}

// processPaper returns the number of result files written
func (r *Runner) processPaper(ctx context.Context, log *zap.Logger, conference string, year int, category, paperID string, reals []review.Real) (int, error) {
	var jobs []job

	realOut := r.OutputPath(conference, year, category, review.SourceReal, paperID)
	if reals != nil && !exists(realOut) {
		j := job{source: review.SourceReal, outPath: realOut}
		for i := range reals {
			j.reviews = append(j.reviews, &reals[i])
		}
		jobs = append(jobs, j)
	}

	for _, model := range r.cfg.Models {
		out := r.OutputPath(conference, year, category, model, paperID)
		in := r.ModelReviewPath(conference, year, category, model, paperID)
		if exists(out) || !exists(in) {
			continue
		}
		var file review.GeneratedFile
		if err := readJSON(in, &file); err != nil {
			log.Warn("Skipping unreadable generated reviews", zap.String("path", in), zap.Error(err))
			continue
		}
		j := job{source: model, outPath: out}
		for i := range file.Reviews {
			j.reviews = append(j.reviews, &file.Reviews[i])
		}
		jobs = append(jobs, j)
	}

	if len(jobs) == 0 {
		return 0, nil
	}

	sectionPath := filepath.Join(r.SectionDir(conference, year, category), paperID+sectionFileSuffix)
	var raw []Section
	if err := readJSON(sectionPath, &raw); err != nil {
		log.Warn("Skipping paper with unreadable sections", zap.String("path", sectionPath), zap.Error(err))
		return 0, nil
	}
	sections, err := r.encodeSections(ctx, log, raw)
	if err != nil {
		return 0, err
	}

	for _, j := range jobs {
		result := Result{PaperID: paperID, Reviews: []ReviewSimilarity{}}
		for _, rv := range j.reviews {
			sim := ReviewSimilarity{}
			for _, part := range rv.Parts() {
				if strings.TrimSpace(part.Text) == "" {
					continue
				}
				scores, err := RankSections(ctx, r.enc, part.Text, sections)
				if err != nil {
					return 0, fmt.Errorf("%s review part %s: %w", j.source, part.Name, err)
				}
				sim = append(sim, PartScores{Part: part.Name, Scores: scores})
			}
			result.Reviews = append(result.Reviews, sim)
		}
		if err := writeJSON(j.outPath, result); err != nil {
			return 0, err
		}
		log.Debug("Wrote similarity result", zap.String("source", j.source), zap.String("paper", paperID))
	}
	return len(jobs), nil
}

// encodeSections encodes each distinct mapped section. A repeated section
// name keeps its first position and its last content.
func (r *Runner) encodeSections(ctx context.Context, log *zap.Logger, sections []Section) ([]SectionEmbedding, error) {
	names := make([]string, 0, len(sections))
	content := make(map[string]string, len(sections))
	for _, s := range sections {
		names = append(names, s.MappedSection)
		content[s.MappedSection] = s.Content
	}

	var out []SectionEmbedding
	for _, name := range funk.UniqString(names) {
		text := content[name]
		if strings.TrimSpace(text) == "" {
			log.Debug("Skipping empty section", zap.String("section", name))
			continue
		}
		vec, err := r.enc.Encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("encoding section %s: %w", name, err)
		}
		out = append(out, SectionEmbedding{Section: name, Embedding: vec})
	}
	return out, nil
}

func listPapers(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var papers []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sectionFileSuffix) {
			continue
		}
		papers = append(papers, strings.TrimSuffix(e.Name(), sectionFileSuffix))
	}
	sort.Strings(papers)
	return papers, nil
}

// loadRealReviews maps paper ID to its human reviews. A missing file is empty.
func loadRealReviews(path string) (map[string][]review.Real, error) {
	var papers []review.PaperReviews
	err := readJSON(path, &papers)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]review.Real{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string][]review.Real, len(papers))
	for _, p := range papers {
		out[p.PaperID] = p.Reviews
	}
	return out, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
