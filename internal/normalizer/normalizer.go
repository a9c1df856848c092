// Package normalizer converts question and option payloads of whatever shape
// the backend produced into the canonical model types. Nothing in this package
// returns an error: malformed input degrades to a best-effort or empty result
// so that one bad question never blocks the rest of an assessment.
package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// maxDepth bounds recursion through nested {options: ...} wrappers and
// JSON-encoded strings.
const maxDepth = 4

var (
	idKeys        = []string{"id", "_id", "questionId", "question_id"}
	textKeys      = []string{"text", "question", "questionText", "question_text", "prompt", "title"}
	typeKeys      = []string{"type", "questionType", "question_type"}
	pointsKeys    = []string{"points", "score", "marks"}
	timeLimitKeys = []string{"timeLimit", "time_limit", "timeLimitSeconds"}
	optionKeys    = []string{"options", "choices", "answers"}
)

// NormalizeType maps an upstream type token onto the closed QuestionType enum.
// Matching ignores case and treats '-', '_' and spaces alike. Unknown or
// non-string tokens become text-short.
func NormalizeType(raw any) model.QuestionType {
	s, ok := raw.(string)
	if !ok {
		return model.QuestionTypeTextShort
	}
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)

	switch key {
	case "MULTIPLE_CHOICE", "SINGLE_CHOICE", "SINGLE_SELECT":
		return model.QuestionTypeSingleChoice
	case "MULTIPLE_SELECT", "MULTI_SELECT":
		return model.QuestionTypeMultipleChoice
	case "TRUE_FALSE":
		return model.QuestionTypeTrueFalse
	case "LONG_ANSWER", "TEXT_LONG":
		return model.QuestionTypeTextLong
	case "SHORT_ANSWER", "TEXT_SHORT":
		return model.QuestionTypeTextShort
	case "CODE", "CODING":
		return model.QuestionTypeCoding
	default:
		return model.QuestionTypeTextShort
	}
}

// NormalizeOptions canonicalizes an options value. Accepted shapes, in order:
// an array of strings or objects, an object with a nested "options" field,
// a JSON-encoded string of either, and a comma-separated string.
func NormalizeOptions(raw any) []model.Option {
	return normalizeOptions(raw, 0)
}

func normalizeOptions(raw any, depth int) []model.Option {
	if depth > maxDepth {
		return nil
	}

	switch v := raw.(type) {
	case []any:
		return fromItems(v)
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return fromItems(items)
	case map[string]any:
		if inner, ok := v["options"]; ok {
			return normalizeOptions(inner, depth+1)
		}
		return nil
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return nil
		}
		return normalizeOptions(decoded, depth+1)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			switch decoded.(type) {
			case []any, map[string]any:
				return normalizeOptions(decoded, depth+1)
			}
		}
		parts := strings.Split(s, ",")
		items := make([]any, len(parts))
		for i, p := range parts {
			items[i] = p
		}
		return fromItems(items)
	default:
		return nil
	}
}

func fromItems(items []any) []model.Option {
	opts := make([]model.Option, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for i, item := range items {
		var id, text string
		switch it := item.(type) {
		case map[string]any:
			id = firstString(it, "id", "value")
			text = firstString(it, "text", "label", "value")
		default:
			text, _ = scalarString(it)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		id = strings.TrimSpace(id)
		if id == "" {
			id = fmt.Sprintf("opt-%d", i)
		}
		if _, dup := seen[id]; dup {
			id = fmt.Sprintf("%s-%d", id, i)
		}
		seen[id] = struct{}{}

		opts = append(opts, model.Option{ID: id, Text: text})
	}
	return opts
}

// NormalizeQuestion canonicalizes a single raw question record. index is the
// question's position in the assessment and feeds the fallback ID.
func NormalizeQuestion(raw map[string]any, index int) model.AssessmentQuestion {
	q := model.AssessmentQuestion{
		ID:     firstString(raw, idKeys...),
		Text:   strings.TrimSpace(firstString(raw, textKeys...)),
		Type:   NormalizeType(firstValue(raw, typeKeys...)),
		Points: 1,
	}
	if q.ID == "" {
		q.ID = fmt.Sprintf("q-%d", index)
	}

	if v := firstValue(raw, pointsKeys...); v != nil {
		if p, ok := number(v); ok {
			q.Points = math.Max(p, 0)
		}
	}

	if v := firstValue(raw, timeLimitKeys...); v != nil {
		if n, ok := number(v); ok && n >= 1 {
			secs := int(n)
			q.TimeLimit = &secs
		}
	}

	q.Options = NormalizeOptions(firstValue(raw, optionKeys...))
	repairOptions(&q)
	return q
}

// repairOptions enforces the canonical options invariant for the resolved type.
func repairOptions(q *model.AssessmentQuestion) {
	switch q.Type {
	case model.QuestionTypeTrueFalse:
		if len(q.Options) == 0 {
			q.Options = []model.Option{
				{ID: "true", Text: "True"},
				{ID: "false", Text: "False"},
			}
		}
	case model.QuestionTypeSingleChoice, model.QuestionTypeMultipleChoice:
		if len(q.Options) == 0 {
			// Nothing to choose from: let the candidate type an answer instead.
			q.Type = model.QuestionTypeTextShort
			q.Options = []model.Option{}
		}
	default:
		q.Options = []model.Option{}
	}
}

// NormalizeQuestions canonicalizes a list of raw questions. raw may be a
// decoded array, a json.RawMessage, or an object wrapping a "questions" array.
// Bare strings are treated as short-answer prompts. Question IDs are made
// unique within the result.
func NormalizeQuestions(raw any) []model.AssessmentQuestion {
	items := questionItems(raw, 0)
	out := make([]model.AssessmentQuestion, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for i, item := range items {
		var q model.AssessmentQuestion
		switch it := item.(type) {
		case map[string]any:
			q = NormalizeQuestion(it, i)
		case string:
			if strings.TrimSpace(it) == "" {
				continue
			}
			q = NormalizeQuestion(map[string]any{"text": it}, i)
		default:
			continue
		}

		if _, dup := seen[q.ID]; dup {
			q.ID = fmt.Sprintf("%s-%d", q.ID, i)
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}

func questionItems(raw any, depth int) []any {
	if depth > maxDepth {
		return nil
	}
	switch v := raw.(type) {
	case []any:
		return v
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return items
	case map[string]any:
		return questionItems(v["questions"], depth+1)
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return nil
		}
		return questionItems(decoded, depth+1)
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil
		}
		return questionItems(decoded, depth+1)
	}
	return nil
}

// firstValue returns the first non-nil value among keys.
func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// firstString returns the first key whose value renders as a non-empty string.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := scalarString(m[k]); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

func number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
