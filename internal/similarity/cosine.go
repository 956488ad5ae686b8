package similarity

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// SectionEmbedding is one encoded paper section
type SectionEmbedding struct {
	Section   string
	Embedding []float32
}

// SectionScore is a paper section with its similarity to a review part.
// It serializes as a [section, score] pair.
type SectionScore struct {
	Section string
	Score   float64
}

// MarshalJSON writes the pair form
func (s SectionScore) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Section, s.Score})
}

// UnmarshalJSON reads the pair form
func (s *SectionScore) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("section score: expected [section, score], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Section); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &s.Score)
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0.0 for zero-norm vectors or mismatched lengths.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	na := float32(math.Sqrt(float64(normA)))
	nb := float32(math.Sqrt(float64(normB)))

	if na == 0 || nb == 0 {
		return 0.0
	}

	return dot / (na * nb)
}

// round4 rounds half away from zero to 4 decimal places
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// RankSections scores every section against a review part. Results are
// sorted by descending similarity (ties keep section order) and rounded to
// 4 places. Blank text yields no scores.
func RankSections(ctx context.Context, enc Encoder, partText string, sections []SectionEmbedding) ([]SectionScore, error) {
	if strings.TrimSpace(partText) == "" {
		return nil, nil
	}
	target, err := enc.Encode(ctx, partText)
	if err != nil {
		return nil, err
	}

	results := make([]SectionScore, 0, len(sections))
	for _, s := range sections {
		results = append(results, SectionScore{
			Section: s.Section,
			Score:   float64(CosineSimilarity(target, s.Embedding)),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i := range results {
		results[i].Score = round4(results[i].Score)
	}
	return results, nil
}
