package review

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		in     any
		want   int
		wantOK bool
	}{
		{4, 4, true},
		{float64(3), 3, true},
		{3.5, 0, false},
		{"4: excellent", 4, true},
		{"  2 fair", 2, true},
		{"10", 10, true},
		{"excellent", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{json.Number("6"), 6, true},
	}
	for _, tt := range tests {
		got, ok := ParseScore(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseScore(%#v)", tt.in)
		assert.Equal(t, tt.want, got, "ParseScore(%#v)", tt.in)
	}
}

func TestReal_Unmarshal(t *testing.T) {
	data := `{"review_id": "r1", "summary": "S", "soundness": "3: good", "presentation": 2,
		"contribution": "x", "strengths": "St", "weaknesses": "W", "questions": "Q?",
		"overall_rating": "6: marginally above", "confidence": 4}`

	var r Real
	require.NoError(t, json.Unmarshal([]byte(data), &r))
	assert.Equal(t, Score{3, true}, r.Soundness)
	assert.Equal(t, Score{2, true}, r.Presentation)
	assert.False(t, r.Contribution.Valid)
	assert.Equal(t, 6, r.OverallRating.Value)

	assert.Equal(t, []Part{
		{"summary", "S"}, {"strengths", "St"}, {"weaknesses", "W"}, {"questions", "Q?"},
	}, r.Parts())
}

func TestGenerated_PartsJoinQuestionsAndFallback(t *testing.T) {
	data := `{"summary": "S", "strengths": "St", "weaknesses": "W",
		"questions": ["Why?", "How?"], "Reasons for overal_rating": "Because",
		"overall_rating": 5}`

	var g Generated
	require.NoError(t, json.Unmarshal([]byte(data), &g))
	parts := g.Parts()
	require.Len(t, parts, 5)
	assert.Equal(t, Part{"questions", "Why? How?"}, parts[3])
	assert.Equal(t, Part{"reasons_for_overall_rating", "Because"}, parts[4])
}

func TestGenerated_PrefersCorrectReasonsKey(t *testing.T) {
	data := `{"Reasons for overall_rating": "right", "Reasons for overal_rating": "typo"}`
	var g Generated
	require.NoError(t, json.Unmarshal([]byte(data), &g))
	assert.Equal(t, "right", g.Parts()[4].Text)
}

func TestText_NonStringIsEmpty(t *testing.T) {
	var g Generated
	require.NoError(t, json.Unmarshal([]byte(`{"summary": null, "strengths": 3}`), &g))
	assert.Equal(t, Text(""), g.Summary)
	assert.Equal(t, Text(""), g.Strengths)
}

func TestScore_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Score `json:"a"`
		B Score `json:"b"`
	}{A: Score{4, true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 4, "b": null}`, string(b))
}
