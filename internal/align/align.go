package align

import (
	"math/rand"
	"sort"
	"time"

	"peerreview/kgraph/internal/record"
)

// placeholderMaxTokens bounds the length of a "no questions" placeholder sentence
const placeholderMaxTokens = 10

// IsDegenerate reports whether a reference record is a placeholder questions
// section: a single sentence shorter than ten tokens.
func IsDegenerate(rec *record.Record) bool {
	return rec.IsQuestions() &&
		len(rec.Sentences) == 1 &&
		len(rec.Sentences[0]) < placeholderMaxTokens
}

// SkipCounts counts degenerate records per paper
func SkipCounts(records []*record.Record) map[string]int {
	skip := make(map[string]int)
	for _, rec := range records {
		if IsDegenerate(rec) {
			skip[rec.PaperID()]++
		}
	}
	return skip
}

// Sampler draws the secondary-source question records that are kept.
// Not safe for concurrent use.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a deterministic sampler for the given seed
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// NewRandomSampler returns a sampler seeded from the clock
func NewRandomSampler() *Sampler {
	return NewSampler(time.Now().UnixNano())
}

// Keep chooses which of n candidates survive when k must be discarded.
// Returns n-k distinct indices in [0, n) in ascending order, or none if k >= n.
func (s *Sampler) Keep(n, k int) []int {
	if k < 0 {
		k = 0
	}
	if n <= 0 || k >= n {
		return nil
	}
	keep := s.rng.Perm(n)[:n-k]
	sort.Ints(keep)
	return keep
}
