package exam

import (
	"regexp"
	"slices"
	"strings"
)

var numericPattern = regexp.MustCompile(`^-?\d*(\.\d+)?$`)

// ValidNumeric reports whether s is an acceptable numerical answer: an
// optional leading minus, digits and an optional fractional part.
func ValidNumeric(s string) bool {
	if s == "" || s == "-" || s == "." {
		return false
	}
	return numericPattern.MatchString(s)
}

// input is the uncommitted control state of the displayed question.
type input struct {
	selected []string
	text     string
}

func inputFrom(a Answer) input {
	switch v := a.(type) {
	case ChoiceAnswer:
		return input{selected: []string{string(v)}}
	case SetAnswer:
		return input{selected: append([]string(nil), v...)}
	case NumericAnswer:
		return input{text: string(v)}
	case BoolAnswer:
		if v {
			return input{selected: []string{"true"}}
		}
		return input{selected: []string{"false"}}
	}
	return input{}
}

func (in *input) isSelected(key string) bool { return slices.Contains(in.selected, key) }

func (in *input) toggle(key string) {
	if i := slices.Index(in.selected, key); i >= 0 {
		in.selected = slices.Delete(in.selected, i, i+1)
		return
	}
	in.selected = append(in.selected, key)
}

// capture reads the input for q. The boolean is false when the input holds
// no valid answer.
func capture(q Question, in input) (Answer, bool) {
	switch q.Kind.(type) {
	case MCQ:
		if len(in.selected) == 0 {
			return nil, false
		}
		return ChoiceAnswer(in.selected[0]), true
	case MSQ:
		set := NewSetAnswer(in.selected...)
		if len(set) == 0 {
			return nil, false
		}
		return set, true
	case Numerical:
		v := strings.TrimSpace(in.text)
		if !ValidNumeric(v) {
			return nil, false
		}
		return NumericAnswer(v), true
	case TrueFalse:
		if len(in.selected) == 0 {
			return nil, false
		}
		return BoolAnswer(in.selected[0] == "true"), true
	}
	return nil, false
}

func hasOption(q Question, key string) bool {
	for _, o := range q.Options() {
		if o.Key == key {
			return true
		}
	}
	return false
}
