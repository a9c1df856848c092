package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response is an answer value. Multiple-choice answers carry a list of option
// IDs; every other type carries a single string.
type Response struct {
	Value  string
	Values []string
	Multi  bool
}

// TextResponse builds a single-valued response.
func TextResponse(v string) Response {
	return Response{Value: v}
}

// MultiResponse builds a multiple-choice response, dropping duplicate IDs.
func MultiResponse(ids ...string) Response {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return Response{Values: out, Multi: true}
}

// IsEmpty reports whether the response carries no answer.
func (r Response) IsEmpty() bool {
	if r.Multi {
		return len(r.Values) == 0
	}
	return r.Value == ""
}

// Equal compares two responses by value.
func (r Response) Equal(o Response) bool {
	if r.Multi != o.Multi {
		return false
	}
	if !r.Multi {
		return r.Value == o.Value
	}
	if len(r.Values) != len(o.Values) {
		return false
	}
	for i := range r.Values {
		if r.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

func (r Response) String() string {
	if r.Multi {
		return fmt.Sprintf("%v", r.Values)
	}
	return r.Value
}

// MarshalJSON encodes a JSON array for multi-valued responses, a string otherwise.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Multi {
		if r.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.Values)
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts a JSON string or an array of strings.
func (r *Response) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return err
		}
		*r = MultiResponse(vs...)
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = TextResponse(v)
	return nil
}
