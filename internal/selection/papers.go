package selection

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Labels assigned to consistent papers
const (
	LabelGood       = "good"
	LabelBorderline = "borderline"
	LabelBad        = "bad"
)

// LabelOrder is the order label counts are reported in
var LabelOrder = []string{LabelBorderline, LabelBad, LabelGood}

const (
	colAverage = "average_rating"
	colStd     = "std_rating"
	colLabel   = "label"
)

// Paper is one row of an avg-rating file. Fields keeps the raw row so that
// written output carries every input column.
type Paper struct {
	ID            string
	Title         string
	AverageRating float64
	StdRating     float64
	Label         string
	Fields        []string
}

// Table is a parsed avg-rating file
type Table struct {
	Header []string
	Papers []Paper
}

// ReadPapers parses an avg-rating CSV. Empty rating cells are read as NaN.
func ReadPapers(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := parsePapers(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

func parsePapers(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	avgCol, ok := index[colAverage]
	if !ok {
		return nil, fmt.Errorf("missing column %q", colAverage)
	}
	stdCol, ok := index[colStd]
	if !ok {
		return nil, fmt.Errorf("missing column %q", colStd)
	}
	idCol, hasID := index["id"]
	titleCol, hasTitle := index["title"]

	t := &Table{Header: header}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		p := Paper{Fields: row}
		if p.AverageRating, err = parseRating(row[avgCol]); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colAverage, err)
		}
		if p.StdRating, err = parseRating(row[stdCol]); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colStd, err)
		}
		if hasID {
			p.ID = row[idCol]
		}
		if hasTitle {
			p.Title = row[titleCol]
		}
		t.Papers = append(t.Papers, p)
	}
	return t, nil
}

func parseRating(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// Quantile returns the q-th quantile of values with linear interpolation
// between closest ranks. NaN values are ignored; the result is NaN when
// nothing remains.
func Quantile(values []float64, q float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Label keeps papers whose std rating is within stdThreshold and labels them
// by where their average rating falls in the distribution of ALL papers:
// good at or above the (1-labelPercent) quantile, bad at or below the
// labelPercent quantile, borderline inside the median window. Borderline
// wins over good and bad. Unlabeled papers are dropped.
func Label(papers []Paper, stdThreshold, labelPercent, borderlineWindow float64) []Paper {
	avgs := make([]float64, len(papers))
	for i, p := range papers {
		avgs[i] = p.AverageRating
	}
	good := Quantile(avgs, 1-labelPercent)
	bad := Quantile(avgs, labelPercent)
	borderMin := Quantile(avgs, 0.5-borderlineWindow)
	borderMax := Quantile(avgs, 0.5+borderlineWindow)

	var out []Paper
	for _, p := range papers {
		// NaN compares false and is never kept
		if !(p.StdRating <= stdThreshold) {
			continue
		}
		label := ""
		if p.AverageRating >= good {
			label = LabelGood
		}
		if p.AverageRating <= bad {
			label = LabelBad
		}
		if p.AverageRating >= borderMin && p.AverageRating <= borderMax {
			label = LabelBorderline
		}
		if label == "" {
			continue
		}
		p.Label = label
		out = append(out, p)
	}
	return out
}

// CountLabels tallies papers per label
func CountLabels(papers []Paper) map[string]int {
	counts := make(map[string]int, len(LabelOrder))
	for _, p := range papers {
		counts[p.Label]++
	}
	return counts
}

// LabeledPath is the output file next to an avg-rating file
func LabeledPath(inputPath string) string {
	name := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(filepath.Dir(inputPath), name+"_consistent_labeled.csv")
}

// WriteLabeled writes the labeled papers with every input column followed by
// a label column. An existing label column is overwritten in place.
func WriteLabeled(path string, header []string, papers []Paper) error {
	labelCol := -1
	for i, h := range header {
		if strings.TrimSpace(h) == colLabel {
			labelCol = i
		}
	}
	outHeader := header
	if labelCol < 0 {
		outHeader = append(append([]string{}, header...), colLabel)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(outHeader); err != nil {
		return err
	}
	for _, p := range papers {
		row := append([]string{}, p.Fields...)
		if labelCol >= 0 && labelCol < len(row) {
			row[labelCol] = p.Label
		} else {
			row = append(row, p.Label)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
