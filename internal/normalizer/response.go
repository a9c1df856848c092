package normalizer

import (
	"encoding/json"
	"strings"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// NormalizeResponse canonicalizes a previously persisted response for a
// question of type t. It reports false when nothing usable remains.
func NormalizeResponse(raw any, t model.QuestionType) (model.Response, bool) {
	if rm, ok := raw.(json.RawMessage); ok {
		var decoded any
		if err := json.Unmarshal(rm, &decoded); err != nil {
			return model.Response{}, false
		}
		raw = decoded
	}

	if t == model.QuestionTypeMultipleChoice {
		r := model.MultiResponse(responseList(raw, 0)...)
		return r, !r.IsEmpty()
	}

	var s string
	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return model.Response{}, false
		}
		s, _ = scalarString(v[0])
	default:
		s, _ = scalarString(v)
	}
	if t.IsChoice() {
		s = strings.TrimSpace(s)
	}
	r := model.TextResponse(s)
	return r, !r.IsEmpty()
}

func responseList(raw any, depth int) []string {
	if depth > maxDepth {
		return nil
	}
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := scalarString(item); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			if _, isList := decoded.([]any); isList {
				return responseList(decoded, depth+1)
			}
		}
		var out []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		if s, ok := scalarString(v); ok && s != "" {
			return []string{s}
		}
	}
	return nil
}
