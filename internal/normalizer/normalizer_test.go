package normalizer_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/normalizer"
)

func TestNormalizeType(t *testing.T) {
	tests := map[string]struct {
		raw  any
		want model.QuestionType
	}{
		"MULTIPLE_CHOICE is a single choice":   {raw: "MULTIPLE_CHOICE", want: model.QuestionTypeSingleChoice},
		"single-choice lowercase hyphenated":   {raw: "single-choice", want: model.QuestionTypeSingleChoice},
		"Single_Select mixed case":             {raw: "Single_Select", want: model.QuestionTypeSingleChoice},
		"MULTIPLE_SELECT":                      {raw: "MULTIPLE_SELECT", want: model.QuestionTypeMultipleChoice},
		"multiple-select with spaces trimmed":  {raw: "  multiple-select ", want: model.QuestionTypeMultipleChoice},
		"LONG_ANSWER":                          {raw: "LONG_ANSWER", want: model.QuestionTypeTextLong},
		"short-answer":                         {raw: "short-answer", want: model.QuestionTypeTextShort},
		"CODE":                                 {raw: "CODE", want: model.QuestionTypeCoding},
		"coding canonical":                     {raw: "coding", want: model.QuestionTypeCoding},
		"true_false":                           {raw: "true_false", want: model.QuestionTypeTrueFalse},
		"unrecognized ESSAY fails open":        {raw: "ESSAY", want: model.QuestionTypeTextShort},
		"non-string token fails open":          {raw: 42.0, want: model.QuestionTypeTextShort},
		"missing token fails open":             {raw: nil, want: model.QuestionTypeTextShort},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.want, normalizer.NormalizeType(tt.raw))
		})
	}
}

func TestNormalizeOptions_EquivalentShapes(t *testing.T) {
	var nested any
	require.NoError(t, json.Unmarshal([]byte(`{"options":["Red","Green","Blue"]}`), &nested))

	shapes := map[string]any{
		"json array string":      `["Red","Green","Blue"]`,
		"comma separated string": "Red, Green ,Blue",
		"nested object":          nested,
		"decoded array":          []any{"Red", "Green", "Blue"},
		"string slice":           []string{"Red", "Green", "Blue"},
	}

	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			opts := normalizer.NormalizeOptions(raw)
			require.Len(t, opts, 3)
			texts := []string{opts[0].Text, opts[1].Text, opts[2].Text}
			require.Equal(t, []string{"Red", "Green", "Blue"}, texts)
		})
	}
}

func TestNormalizeOptions_ItemFields(t *testing.T) {
	var raw any
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": "a", "text": "Alpha"},
		{"value": "b", "label": "Beta"},
		{"value": "Gamma"},
		{"text": ""},
		{"id": 7, "text": "Seven"},
		"Loose",
		{"id": "a", "text": "Duplicate"}
	]`), &raw))

	opts := normalizer.NormalizeOptions(raw)
	require.Equal(t, []model.Option{
		{ID: "a", Text: "Alpha"},
		{ID: "b", Text: "Beta"},
		{ID: "Gamma", Text: "Gamma"},
		{ID: "7", Text: "Seven"},
		{ID: "opt-5", Text: "Loose"},
		{ID: "a-6", Text: "Duplicate"},
	}, opts)
}

func TestNormalizeOptions_Malformed(t *testing.T) {
	tests := map[string]any{
		"nil":                 nil,
		"number":              12.5,
		"object without opts": map[string]any{"choices": []any{"x"}},
		"empty string":        "   ",
		"broken raw json":     json.RawMessage(`[{"id":`),
		"only empty items":    []any{"", map[string]any{"label": " "}},
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			require.Empty(t, normalizer.NormalizeOptions(raw))
		})
	}
}

func TestNormalizeOptions_BrokenJSONFallsBackToCSV(t *testing.T) {
	opts := normalizer.NormalizeOptions(`[Yes, No`)
	require.Len(t, opts, 2)
	require.Equal(t, "[Yes", opts[0].Text)
	require.Equal(t, "No", opts[1].Text)
}

func TestNormalizeQuestion(t *testing.T) {
	tests := map[string]struct {
		raw    string
		assert func(t *testing.T, q model.AssessmentQuestion)
	}{
		"canonical fields": {
			raw: `{"id":"q1","text":"Pick one","type":"SINGLE_CHOICE","points":2,"timeLimit":90,"options":["A","B"]}`,
			assert: func(t *testing.T, q model.AssessmentQuestion) {
				require.Equal(t, "q1", q.ID)
				require.Equal(t, "Pick one", q.Text)
				require.Equal(t, model.QuestionTypeSingleChoice, q.Type)
				require.Equal(t, 2.0, q.Points)
				require.NotNil(t, q.TimeLimit)
				require.Equal(t, 90, *q.TimeLimit)
				require.Len(t, q.Options, 2)
			},
		},
		"synonym fields and numeric id": {
			raw: `{"question_id":17,"question_text":"Explain","question_type":"LONG_ANSWER","score":"3","time_limit":"60"}`,
			assert: func(t *testing.T, q model.AssessmentQuestion) {
				require.Equal(t, "17", q.ID)
				require.Equal(t, "Explain", q.Text)
				require.Equal(t, model.QuestionTypeTextLong, q.Type)
				require.Equal(t, 3.0, q.Points)
				require.Equal(t, 60, *q.TimeLimit)
				require.Empty(t, q.Options)
			},
		},
		"ESSAY becomes text-short": {
			raw: `{"id":"e","text":"Essay","type":"ESSAY"}`,
			assert: func(t *testing.T, q model.AssessmentQuestion) {
				require.Equal(t, model.QuestionTypeTextShort, q.Type)
				require.NotNil(t, q.Options)
				require.Empty(t, q.Options)
			},
		},
		"missing id is positional": {
			raw: `{"text":"No id"}`,
			assert: func(t *testing.T, q model.AssessmentQuestion) {
				require.Equal(t, "q-4", q.ID)
				require.Equal(t, 1.0, q.Points)
				require.Nil(t, q.TimeLimit)
			},
		},
		"negative points clamp to zero and bad limit dropped": {
			raw: `{"id":"n","points":-5,"timeLimit":0}`,
			assert: func(t *testing.T, q model.AssessmentQuestion) {
				require.Equal(t, 0.0, q.Points)
				require.Nil(t, q.TimeLimit)
			},
		},
		"true-false without options gets defaults": {
			raw: `{"id":"tf","type":"TRUE_FALSE"}`,
			assert: func(t *testing.T, q model.AssessmentQuestion) {
				require.Equal(t, []model.Option{{ID: "true", Text: "True"}, {ID: "false", Text: "False"}}, q.Options)
			},
		},
		"choice without usable options degrades to text-short": {
			raw: `{"id":"c","type":"MULTIPLE_SELECT","options":"[]"}`,
			assert: func(t *testing.T, q model.AssessmentQuestion) {
				require.Equal(t, model.QuestionTypeTextShort, q.Type)
				require.Empty(t, q.Options)
			},
		},
		"free text ignores stray options": {
			raw: `{"id":"code","type":"CODE","options":["x","y"]}`,
			assert: func(t *testing.T, q model.AssessmentQuestion) {
				require.Equal(t, model.QuestionTypeCoding, q.Type)
				require.Empty(t, q.Options)
			},
		},
		"choices key with nested object string": {
			raw: `{"id":"n2","type":"multiple_select","choices":"{\"options\":[{\"value\":\"x\",\"label\":\"X\"}]}"}`,
			assert: func(t *testing.T, q model.AssessmentQuestion) {
				require.Equal(t, model.QuestionTypeMultipleChoice, q.Type)
				require.Equal(t, []model.Option{{ID: "x", Text: "X"}}, q.Options)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var raw map[string]any
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &raw))
			tt.assert(t, normalizer.NormalizeQuestion(raw, 4))
		})
	}
}

func TestNormalizeQuestions(t *testing.T) {
	raw := json.RawMessage(`[
		{"id":"a","text":"One"},
		"Bare prompt",
		42,
		{"id":"a","text":"Duplicate id"},
		{"text":"No id"}
	]`)

	qs := normalizer.NormalizeQuestions(raw)
	require.Len(t, qs, 4)
	require.Equal(t, "a", qs[0].ID)
	require.Equal(t, "q-1", qs[1].ID)
	require.Equal(t, "Bare prompt", qs[1].Text)
	require.Equal(t, "a-3", qs[2].ID)
	require.Equal(t, "q-4", qs[3].ID)
}

func TestNormalizeQuestions_Wrapped(t *testing.T) {
	qs := normalizer.NormalizeQuestions(json.RawMessage(`{"questions":[{"id":"x"}]}`))
	require.Len(t, qs, 1)

	require.Empty(t, normalizer.NormalizeQuestions(json.RawMessage(`not json`)))
	require.Empty(t, normalizer.NormalizeQuestions(nil))
}

func TestNormalizeResponse(t *testing.T) {
	tests := map[string]struct {
		raw    string
		qtype  model.QuestionType
		want   model.Response
		wantOK bool
	}{
		"single choice string": {
			raw: `"b"`, qtype: model.QuestionTypeSingleChoice,
			want: model.TextResponse("b"), wantOK: true,
		},
		"single choice from array takes first": {
			raw: `["c","d"]`, qtype: model.QuestionTypeSingleChoice,
			want: model.TextResponse("c"), wantOK: true,
		},
		"true-false bool": {
			raw: `true`, qtype: model.QuestionTypeTrueFalse,
			want: model.TextResponse("true"), wantOK: true,
		},
		"multiple choice array": {
			raw: `["a","b","a"]`, qtype: model.QuestionTypeMultipleChoice,
			want: model.MultiResponse("a", "b"), wantOK: true,
		},
		"multiple choice json string": {
			raw: `"[\"a\",\"c\"]"`, qtype: model.QuestionTypeMultipleChoice,
			want: model.MultiResponse("a", "c"), wantOK: true,
		},
		"multiple choice csv string": {
			raw: `"a, c"`, qtype: model.QuestionTypeMultipleChoice,
			want: model.MultiResponse("a", "c"), wantOK: true,
		},
		"text keeps whitespace": {
			raw: `"  hello "`, qtype: model.QuestionTypeTextLong,
			want: model.TextResponse("  hello "), wantOK: true,
		},
		"empty text is unusable": {
			raw: `""`, qtype: model.QuestionTypeTextShort, wantOK: false,
		},
		"object is unusable": {
			raw: `{"x":1}`, qtype: model.QuestionTypeCoding, wantOK: false,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := normalizer.NormalizeResponse(json.RawMessage(tt.raw), tt.qtype)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			}
		})
	}
}
