package exam

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// Answer is a captured response. Each variant matches one question kind.
type Answer interface {
	// Value is the JSON form sent to the scoring backend.
	Value() any
	answer()
}

// ChoiceAnswer is the chosen option key of an MCQ.
type ChoiceAnswer string

// SetAnswer is the sorted, de-duplicated option keys of an MSQ.
type SetAnswer []string

// NumericAnswer is the decimal literal typed for a numerical question.
type NumericAnswer string

// BoolAnswer is the response to a true/false question.
type BoolAnswer bool

func (a ChoiceAnswer) Value() any  { return string(a) }
func (a SetAnswer) Value() any     { return []string(a) }
func (a NumericAnswer) Value() any { return string(a) }
func (a BoolAnswer) Value() any    { return bool(a) }

func (ChoiceAnswer) answer()  {}
func (SetAnswer) answer()     {}
func (NumericAnswer) answer() {}
func (BoolAnswer) answer()    {}

// NewSetAnswer normalizes keys into a SetAnswer.
func NewSetAnswer(keys ...string) SetAnswer {
	seen := make(map[string]struct{}, len(keys))
	out := make(SetAnswer, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok || k == "" {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AnswerStore maps question indices to captured answers. An index that is
// absent has no answer; present entries are never empty.
type AnswerStore struct {
	answers map[int]Answer
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(map[int]Answer)}
}

func (s *AnswerStore) Get(i int) (Answer, bool) {
	a, ok := s.answers[i]
	return a, ok
}

func (s *AnswerStore) Has(i int) bool {
	_, ok := s.answers[i]
	return ok
}

func (s *AnswerStore) Set(i int, a Answer) { s.answers[i] = a }

func (s *AnswerStore) Delete(i int) { delete(s.answers, i) }

func (s *AnswerStore) Len() int { return len(s.answers) }

func (s *AnswerStore) Reset() { s.answers = make(map[int]Answer) }

// Payload renders the store keyed by decimal index strings.
func (s *AnswerStore) Payload() map[string]any {
	out := make(map[string]any, len(s.answers))
	for i, a := range s.answers {
		out[strconv.Itoa(i)] = a.Value()
	}
	return out
}

// Raw renders the store as pre-encoded JSON values.
func (s *AnswerStore) Raw() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(s.answers))
	for i, a := range s.answers {
		b, err := json.Marshal(a.Value())
		if err != nil {
			continue
		}
		out[strconv.Itoa(i)] = b
	}
	return out
}

// DecodeAnswer reads a stored answer for a question of kind k. Null, empty
// strings and empty arrays decode as no answer.
func DecodeAnswer(k Kind, raw json.RawMessage) (Answer, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}

	switch k.(type) {
	case MCQ:
		s, ok := rawString(raw)
		if !ok || s == "" {
			return nil, false
		}
		return ChoiceAnswer(s), true
	case MSQ:
		var keys []string
		if err := json.Unmarshal(raw, &keys); err != nil {
			s, ok := rawString(raw)
			if !ok || s == "" {
				return nil, false
			}
			keys = []string{s}
		}
		set := NewSetAnswer(keys...)
		if len(set) == 0 {
			return nil, false
		}
		return set, true
	case Numerical:
		s, ok := rawString(raw)
		if !ok || s == "" {
			return nil, false
		}
		return NumericAnswer(s), true
	case TrueFalse:
		b, ok := rawBool(raw)
		if !ok {
			return nil, false
		}
		return BoolAnswer(b), true
	}
	return nil, false
}
