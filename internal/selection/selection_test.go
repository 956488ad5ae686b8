package selection

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerreview/kgraph/internal/config"
)

func TestQuantile(t *testing.T) {
	vals := []float64{4, 1, 3, 2}
	assert.InDelta(t, 1.75, Quantile(vals, 0.25), 1e-12)
	assert.InDelta(t, 2.5, Quantile(vals, 0.5), 1e-12)
	assert.InDelta(t, 4, Quantile(vals, 1), 1e-12)
	assert.InDelta(t, 1, Quantile(vals, 0), 1e-12)

	assert.InDelta(t, 2, Quantile([]float64{math.NaN(), 2}, 0.3), 1e-12, "NaN ignored")
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func papersWithAverages(avgs ...float64) []Paper {
	out := make([]Paper, len(avgs))
	for i, a := range avgs {
		out[i] = Paper{ID: fmt.Sprintf("p%d", i), AverageRating: a, StdRating: 0.1}
	}
	return out
}

func labelsByID(papers []Paper) map[string]string {
	out := map[string]string{}
	for _, p := range papers {
		out[p.ID] = p.Label
	}
	return out
}

func TestLabel_QuantilesOverFullSet(t *testing.T) {
	avgs := make([]float64, 41)
	for i := range avgs {
		avgs[i] = float64(i)
	}
	papers := papersWithAverages(avgs...)
	papers[0].StdRating = math.NaN()
	papers[40].StdRating = 0.9

	got := Label(papers, 0.6, 0.025, 0.0125)

	// excluded papers still shape the quantiles
	want := map[string]string{"p1": LabelBad, "p20": LabelBorderline, "p39": LabelGood}
	if diff := cmp.Diff(want, labelsByID(got)); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"p1", "p20", "p39"}, []string{got[0].ID, got[1].ID, got[2].ID}, "input order kept")
}

func TestLabel_BorderlineWins(t *testing.T) {
	papers := papersWithAverages(1, 2, 2, 2, 3)
	got := Label(papers, 1.0, 0.4, 0.0125)

	want := map[string]string{
		"p0": LabelBad,
		"p1": LabelBorderline,
		"p2": LabelBorderline,
		"p3": LabelBorderline,
		"p4": LabelGood,
	}
	assert.Equal(t, want, labelsByID(got))
	assert.Equal(t, map[string]int{LabelBad: 1, LabelBorderline: 3, LabelGood: 1}, CountLabels(got))
}

func TestLabel_StdThresholdInclusive(t *testing.T) {
	papers := papersWithAverages(1, 5, 9)
	papers[2].StdRating = 0.66
	got := Label(papers, 0.66, 0.1, 0.1)
	assert.Contains(t, labelsByID(got), "p2")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadPapers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.csv")
	writeFile(t, path, "id,title,average_rating,std_rating,venue\n"+
		"a,\"Title, with comma\",5.5,0.5,main\n"+
		"b,Other,6,,main\n")

	table, err := ReadPapers(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title", "average_rating", "std_rating", "venue"}, table.Header)
	require.Len(t, table.Papers, 2)

	a := table.Papers[0]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "Title, with comma", a.Title)
	assert.InDelta(t, 5.5, a.AverageRating, 1e-12)
	assert.InDelta(t, 0.5, a.StdRating, 1e-12)
	assert.Equal(t, []string{"a", "Title, with comma", "5.5", "0.5", "main"}, a.Fields)
	assert.True(t, math.IsNaN(table.Papers[1].StdRating))
}

func TestReadPapers_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadPapers(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	noStd := filepath.Join(dir, "nostd.csv")
	writeFile(t, noStd, "id,average_rating\na,5\n")
	_, err = ReadPapers(noStd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "std_rating")

	badNum := filepath.Join(dir, "bad.csv")
	writeFile(t, badNum, "id,average_rating,std_rating\na,five,0.1\n")
	_, err = ReadPapers(badNum)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	empty := filepath.Join(dir, "empty.csv")
	writeFile(t, empty, "")
	_, err = ReadPapers(empty)
	assert.Error(t, err)
}

func TestLabeledPath(t *testing.T) {
	got := LabeledPath(filepath.Join("data", "ICLR", "2024", "papers", "ICLR2024_papers_avg_rating.csv"))
	assert.Equal(t, filepath.Join("data", "ICLR", "2024", "papers", "ICLR2024_papers_avg_rating_consistent_labeled.csv"), got)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteLabeled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "labeled.csv")
	papers := []Paper{
		{Label: LabelGood, Fields: []string{"a", "T, 1", "8", "0.2"}},
		{Label: LabelBad, Fields: []string{"b", "T2", "2", "0.1"}},
	}
	require.NoError(t, WriteLabeled(path, []string{"id", "title", "average_rating", "std_rating"}, papers))

	want := [][]string{
		{"id", "title", "average_rating", "std_rating", "label"},
		{"a", "T, 1", "8", "0.2", "good"},
		{"b", "T2", "2", "0.1", "bad"},
	}
	if diff := cmp.Diff(want, readCSV(t, path)); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteLabeled_ExistingLabelColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labeled.csv")
	papers := []Paper{{Label: LabelBorderline, Fields: []string{"a", "old"}}}
	require.NoError(t, WriteLabeled(path, []string{"id", "label"}, papers))
	assert.Equal(t, [][]string{{"id", "label"}, {"a", "borderline"}}, readCSV(t, path))
}

func TestFindPeaks(t *testing.T) {
	tests := []struct {
		name     string
		x        []float64
		distance int
		want     []int
	}{
		{"two peaks", []float64{0, 1, 0, 2, 0}, 1, []int{1, 3}},
		{"distance keeps higher", []float64{0, 1, 0, 2, 0}, 3, []int{3}},
		{"plateau middle", []float64{0, 1, 1, 1, 0}, 1, []int{2}},
		{"endpoints excluded", []float64{2, 1, 0, 1, 2}, 1, nil},
		{"flat", []float64{1, 1, 1}, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findPeaks(tt.x, tt.distance))
		})
	}
}

func trimodal() []float64 {
	var vals []float64
	for _, center := range []float64{0, 1, 2} {
		for i := 0; i < 20; i++ {
			vals = append(vals, center)
		}
	}
	return vals
}

func TestKDEValley_SecondValley(t *testing.T) {
	k := NewKDEValley()
	valleys := k.Valleys(trimodal())
	require.Len(t, valleys, 2)
	assert.InDelta(t, 0.5, valleys[0], 0.05)
	assert.InDelta(t, 1.5, valleys[1], 0.05)

	th, ok := k.Threshold(trimodal())
	require.True(t, ok)
	assert.InDelta(t, 1.5, th, 0.05)
}

func TestKDEValley_NotEnoughValleys(t *testing.T) {
	k := NewKDEValley()

	_, ok := k.Threshold([]float64{0.4, 0.5, 0.5, 0.6})
	assert.False(t, ok, "unimodal")

	_, ok = k.Threshold([]float64{0.5})
	assert.False(t, ok, "single value")

	_, ok = k.Threshold([]float64{0.5, 0.5, 0.5})
	assert.False(t, ok, "no spread")
}

func TestSelectorFor(t *testing.T) {
	cfg := config.NewDefaultConfig().Selection

	th, ok := SelectorFor(cfg, "NeurIPS2024").Threshold(nil)
	assert.True(t, ok)
	assert.InDelta(t, 0.62, th, 1e-12)

	cfg.UseKDE = true
	assert.IsType(t, KDEValley{}, SelectorFor(cfg, "NeurIPS2024"))
}

func TestSelector_Process(t *testing.T) {
	cfg := config.NewDefaultConfig().Selection
	cfg.RootDir = t.TempDir()
	s := NewSelector(cfg, nil)

	path := s.InputPath("ICLR", 2024)
	assert.Equal(t, filepath.Join(cfg.RootDir, "ICLR", "2024", "papers", "ICLR2024_papers_avg_rating.csv"), path)

	var b strings.Builder
	b.WriteString("id,title,average_rating,std_rating\n")
	for i := 0; i <= 40; i++ {
		std := "0.3"
		if i == 39 {
			std = "0.7" // above the 0.66 ICLR2024 cutoff
		}
		fmt.Fprintf(&b, "p%d,T%d,%d,%s\n", i, i, i, std)
	}
	writeFile(t, path, b.String())

	res, err := s.Process(path, Dataset("ICLR", 2024))
	require.NoError(t, err)
	assert.Equal(t, "ICLR2024", res.Dataset)
	assert.InDelta(t, 0.66, res.Threshold, 1e-12)
	assert.Equal(t, map[string]int{LabelBad: 2, LabelBorderline: 1, LabelGood: 1}, res.Counts)

	rows := readCSV(t, res.OutputPath)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"id", "title", "average_rating", "std_rating", "label"}, rows[0])
	assert.Equal(t, []string{"p40", "T40", "40", "0.3", "good"}, rows[4])
}

func TestSelector_ProcessNoThreshold(t *testing.T) {
	cfg := config.NewDefaultConfig().Selection
	cfg.UseKDE = true
	path := filepath.Join(t.TempDir(), "d.csv")
	writeFile(t, path, "id,average_rating,std_rating\na,5,0.5\nb,6,0.5\n")

	_, err := NewSelector(cfg, nil).Process(path, "X2024")
	assert.ErrorIs(t, err, ErrNoThreshold)
}
