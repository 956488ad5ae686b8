package review

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// SourceReal is the source name of human reviews
const SourceReal = "real"

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// ParseScore extracts a numeric rating from values such as 4, "4: excellent"
// or "2 fair".
func ParseScore(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		return ParseScore(v.String())
	case string:
		m := leadingInt.FindStringSubmatch(v)
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Score is a rating that may be absent or unparseable
type Score struct {
	Value int
	Valid bool
}

// UnmarshalJSON accepts numbers and "N: label" strings
func (s *Score) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Value, s.Valid = ParseScore(raw)
	return nil
}

// MarshalJSON writes the number, or null when invalid
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(s.Value)), nil
}

// Text is review prose that may arrive as a string or a list of strings
type Text string

// UnmarshalJSON joins list forms with single spaces
func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		var other any
		if err := json.Unmarshal(data, &other); err != nil {
			return err
		}
		// numbers, objects, null: treat as absent
		*t = ""
		return nil
	}
	*t = Text(strings.Join(parts, " "))
	return nil
}

// Real is one processed human review
type Real struct {
	ReviewID      string `json:"review_id"`
	Summary       Text   `json:"summary"`
	Soundness     Score  `json:"soundness"`
	Presentation  Score  `json:"presentation"`
	Contribution  Score  `json:"contribution"`
	Strengths     Text   `json:"strengths"`
	Weaknesses    Text   `json:"weaknesses"`
	Questions     Text   `json:"questions"`
	OverallRating Score  `json:"overall_rating"`
	Confidence    Score  `json:"confidence"`
}

// Generated is one LLM-written review. Field names follow the prompt format
// the generators were given, including its misspelled variant.
type Generated struct {
	Summary           Text  `json:"summary"`
	Soundness         Score `json:"soundness"`
	Presentation      Score `json:"presentation"`
	Contribution      Score `json:"Contribution"`
	Strengths         Text  `json:"strengths"`
	Weaknesses        Text  `json:"weaknesses"`
	Questions         Text  `json:"questions"`
	OverallRating     Score `json:"overall_rating"`
	Reasons           Text  `json:"Reasons for overall_rating"`
	ReasonsMisspelled Text  `json:"Reasons for overal_rating"`
	Confidence        Score `json:"confidence"`
}

// Part is one named section of a review
type Part struct {
	Name string
	Text string
}

// Partitioned is any review that splits into comparable parts
type Partitioned interface {
	Parts() []Part
}

// Parts returns the comparable parts of a human review in fixed order
func (r *Real) Parts() []Part {
	return []Part{
		{"summary", string(r.Summary)},
		{"strengths", string(r.Strengths)},
		{"weaknesses", string(r.Weaknesses)},
		{"questions", string(r.Questions)},
	}
}

// Parts returns the comparable parts of a generated review in fixed order
func (g *Generated) Parts() []Part {
	reasons := g.Reasons
	if reasons == "" {
		reasons = g.ReasonsMisspelled
	}
	return []Part{
		{"summary", string(g.Summary)},
		{"strengths", string(g.Strengths)},
		{"weaknesses", string(g.Weaknesses)},
		{"questions", string(g.Questions)},
		{"reasons_for_overall_rating", string(reasons)},
	}
}

// PaperReviews groups the human reviews of one paper
type PaperReviews struct {
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
	Reviews []Real `json:"reviews"`
}

// GeneratedFile is one paper's file of LLM reviews
type GeneratedFile struct {
	Reviews []Generated `json:"reviews"`
}

// Producer generates a review of a paper for a conference's reviewing form.
// Implementations live outside this module.
type Producer interface {
	Review(ctx context.Context, conference, paperText string) (*Generated, error)
}
