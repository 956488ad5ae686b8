package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator"

	"peerreview/kgraph/internal/graph"
)

var (
	// ErrMissingField is returned when a required field is absent from a record
	ErrMissingField = errors.New("record: missing required field")
	// ErrMalformed is returned when a line is not a well-formed record
	ErrMalformed = errors.New("record: malformed")
)

// QuestionsSection is the section name of reviewer question lists
const QuestionsSection = "questions"

// Record is one prediction line for one (paper, section) from one source
type Record struct {
	DocKey       string        `json:"doc_key" validate:"required"`
	Sentences    [][]string    `json:"sentences" validate:"required"`
	PredictedNER [][]NERTriple `json:"predicted_ner" validate:"required"`
	PredictedRE  []REGroup     `json:"predicted_re"`
}

// NERTriple is an entity prediction encoded as [start, end, label]
type NERTriple struct {
	Start int
	End   int
	Label string
}

// UnmarshalJSON decodes the positional triple form
func (t *NERTriple) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("entity: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("entity: expected [start, end, label], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &t.Start); err != nil {
		return fmt.Errorf("entity start: %w", err)
	}
	if err := json.Unmarshal(raw[1], &t.End); err != nil {
		return fmt.Errorf("entity end: %w", err)
	}
	if err := json.Unmarshal(raw[2], &t.Label); err != nil {
		return fmt.Errorf("entity label: %w", err)
	}
	return nil
}

// RETriple is a relation prediction encoded as [[hs, he], [ts, te], type]
type RETriple struct {
	Head graph.Span
	Tail graph.Span
	Type string
}

// UnmarshalJSON decodes the positional triple form
func (t *RETriple) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("relation: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("relation: expected [head, tail, type], got %d elements", len(raw))
	}
	var err error
	if t.Head, err = decodeSpan(raw[0]); err != nil {
		return fmt.Errorf("relation head: %w", err)
	}
	if t.Tail, err = decodeSpan(raw[1]); err != nil {
		return fmt.Errorf("relation tail: %w", err)
	}
	if err := json.Unmarshal(raw[2], &t.Type); err != nil {
		return fmt.Errorf("relation type: %w", err)
	}
	return nil
}

func decodeSpan(data json.RawMessage) (graph.Span, error) {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return graph.Span{}, err
	}
	if len(pair) != 2 {
		return graph.Span{}, fmt.Errorf("expected [start, end], got %d elements", len(pair))
	}
	return graph.Span{Start: pair[0], End: pair[1]}, nil
}

// REGroup is [sentence_index, [relation, ...]]. The sentence index is unused.
type REGroup struct {
	SentenceIndex int
	Relations     []RETriple
}

// UnmarshalJSON decodes the positional pair form
func (g *REGroup) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("relation group: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("relation group: expected [sentence_index, relations], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &g.SentenceIndex); err != nil {
		return fmt.Errorf("relation group index: %w", err)
	}
	if err := json.Unmarshal(raw[1], &g.Relations); err != nil {
		return err
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Parse decodes and validates one JSONL line
func Parse(line []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(&rec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return nil, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(fields, ", "))
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &rec, nil
}

// PaperID is the first underscore-delimited segment of the doc key
func (r *Record) PaperID() string {
	return strings.SplitN(r.DocKey, "_", 2)[0]
}

// Section is the last underscore-delimited segment of the doc key
func (r *Record) Section() string {
	return r.DocKey[strings.LastIndex(r.DocKey, "_")+1:]
}

// IsQuestions reports whether the record holds a questions section
func (r *Record) IsQuestions() bool {
	return r.Section() == QuestionsSection
}

// Tokens flattens the sentence-grouped tokens into one sequence
func (r *Record) Tokens() []string {
	n := 0
	for _, s := range r.Sentences {
		n += len(s)
	}
	tokens := make([]string, 0, n)
	for _, s := range r.Sentences {
		tokens = append(tokens, s...)
	}
	return tokens
}

// Entities flattens the per-sentence entity predictions
func (r *Record) Entities() []graph.Entity {
	var out []graph.Entity
	for _, group := range r.PredictedNER {
		for _, t := range group {
			out = append(out, graph.Entity{
				Span:  graph.Span{Start: t.Start, End: t.End},
				Label: t.Label,
			})
		}
	}
	return out
}

// Relations flattens the relation groups, dropping sentence indices
func (r *Record) Relations() []graph.Relation {
	var out []graph.Relation
	for _, group := range r.PredictedRE {
		for _, t := range group.Relations {
			out = append(out, graph.Relation{Head: t.Head, Tail: t.Tail, Type: t.Type})
		}
	}
	return out
}

// Graph builds the entity graph for this record
func (r *Record) Graph() *graph.Graph {
	return graph.BuildEntityGraph(r.Entities(), r.Relations(), r.Tokens())
}
