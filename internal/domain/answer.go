package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// AnswerKind tags the answer variant.
type AnswerKind string

const (
	AnswerSingle   AnswerKind = "single"
	AnswerMultiple AnswerKind = "multiple"
)

// Answer is a tagged variant: a single option index or a set of indices.
// The zero value is "no answer".
type Answer struct {
	Kind    AnswerKind
	Index   int
	Indices []int // sorted, deduplicated; only for AnswerMultiple
}

// Single builds a single-select answer.
func Single(index int) Answer {
	return Answer{Kind: AnswerSingle, Index: index}
}

// Multiple builds a multi-select answer. Input order and duplicates are
// irrelevant; the stored set is sorted and unique.
func Multiple(indices ...int) Answer {
	return Answer{Kind: AnswerMultiple, Indices: normalizeIndices(indices)}
}

// Empty reports whether the answer carries no selection at all.
func (a Answer) Empty() bool {
	switch a.Kind {
	case AnswerSingle:
		return false
	case AnswerMultiple:
		return len(a.Indices) == 0
	default:
		return true
	}
}

// Equal reports exact equality: same kind and same selection. For multi-select
// this is set equality, so supersets and subsets are not equal.
func (a Answer) Equal(b Answer) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case AnswerSingle:
		return a.Index == b.Index
	case AnswerMultiple:
		x := normalizeIndices(a.Indices)
		y := normalizeIndices(b.Indices)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

type answerJSON struct {
	Kind    AnswerKind `json:"kind"`
	Index   *int       `json:"index,omitempty"`
	Indices []int      `json:"indices,omitempty"`
}

// MarshalJSON encodes the variant with its tag, e.g.
// {"kind":"single","index":2} or {"kind":"multiple","indices":[0,2]}.
func (a Answer) MarshalJSON() ([]byte, error) {
	out := answerJSON{Kind: a.Kind}
	switch a.Kind {
	case AnswerSingle:
		idx := a.Index
		out.Index = &idx
	case AnswerMultiple:
		out.Indices = normalizeIndices(a.Indices)
		if out.Indices == nil {
			out.Indices = []int{}
		}
	}
	return json.Marshal(out)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var raw answerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case AnswerSingle:
		if raw.Index == nil {
			return fmt.Errorf("single answer missing index")
		}
		*a = Single(*raw.Index)
	case AnswerMultiple:
		*a = Multiple(raw.Indices...)
	case "":
		*a = Answer{}
	default:
		return fmt.Errorf("unknown answer kind %q", raw.Kind)
	}
	return nil
}

func normalizeIndices(indices []int) []int {
	if len(indices) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
