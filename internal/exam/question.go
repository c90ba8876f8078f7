// Package exam implements the client-side engine of a timed computer-based
// test: question rendering, the answer store, the palette status machine,
// the countdown timer, navigation, submission and answer review.
package exam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/geocatalyst/exam-engine/internal/model"
)

// DefaultDurationMinutes applies when a test does not carry a duration.
const DefaultDurationMinutes = 60

// Kind is the type-specific half of a question. The set of kinds is closed:
// only MCQ, MSQ, Numerical and TrueFalse implement it.
type Kind interface {
	Type() model.QuestionType
	kind()
}

// Option is one labelled choice of an MCQ or MSQ question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// MCQ has exactly one correct option.
type MCQ struct {
	Options []Option
	Correct string
}

// MSQ has one or more correct options.
type MSQ struct {
	Options []Option
	Correct []string
}

// Numerical is answered with a decimal literal, graded within Tolerance.
type Numerical struct {
	Correct   string
	Tolerance float64
}

// TrueFalse is answered with a boolean. HasCorrect is false when the
// correct answer was withheld.
type TrueFalse struct {
	Correct    bool
	HasCorrect bool
}

func (MCQ) Type() model.QuestionType       { return model.QuestionTypeMCQ }
func (MSQ) Type() model.QuestionType       { return model.QuestionTypeMSQ }
func (Numerical) Type() model.QuestionType { return model.QuestionTypeNumerical }
func (TrueFalse) Type() model.QuestionType { return model.QuestionTypeTrueFalse }

func (MCQ) kind()       {}
func (MSQ) kind()       {}
func (Numerical) kind() {}
func (TrueFalse) kind() {}

// Question is an immutable, validated question.
type Question struct {
	Body             string
	ImageURL         string
	Section          string
	Marks            float64
	NegativeMarks    float64
	Explanation      string
	SolutionImageURL string
	Kind             Kind
}

// Type is shorthand for q.Kind.Type().
func (q Question) Type() model.QuestionType { return q.Kind.Type() }

// Options returns the selectable options of choice questions, or nil.
func (q Question) Options() []Option {
	switch k := q.Kind.(type) {
	case MCQ:
		return k.Options
	case MSQ:
		return k.Options
	case TrueFalse:
		return trueFalseOptions
	}
	return nil
}

var trueFalseOptions = []Option{{Key: "true", Text: "True"}, {Key: "false", Text: "False"}}

// Test is the immutable content of a loaded test.
type Test struct {
	ID              string
	Title           string
	Subject         string
	DurationMinutes int
	TotalMarks      float64
	Questions       []Question
}

// DurationSeconds is the full countdown length.
func (t *Test) DurationSeconds() int { return t.DurationMinutes * 60 }

// NewTest validates a backend test. It fails with ErrNoQuestions for an
// empty test and ErrUnknownQuestionType for unsupported question types.
func NewTest(t *model.Test) (*Test, error) {
	if t == nil || len(t.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	out := &Test{
		ID:              t.ID,
		Title:           t.Title,
		Subject:         t.Subject,
		DurationMinutes: t.Duration,
		TotalMarks:      t.TotalMarks,
		Questions:       make([]Question, 0, len(t.Questions)),
	}
	if out.DurationMinutes <= 0 {
		out.DurationMinutes = DefaultDurationMinutes
	}

	var total float64
	for i := range t.Questions {
		q, err := NewQuestion(&t.Questions[i])
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		total += q.Marks
		out.Questions = append(out.Questions, q)
	}
	if out.TotalMarks <= 0 {
		out.TotalMarks = total
	}
	return out, nil
}

// NewQuestion converts a wire question into its validated form.
func NewQuestion(q *model.Question) (Question, error) {
	out := Question{
		Body:             q.Question,
		ImageURL:         q.ImageURL,
		Section:          q.Section,
		Marks:            q.Marks,
		NegativeMarks:    q.NegativeMarks,
		Explanation:      q.Explanation,
		SolutionImageURL: q.SolutionImageURL,
	}
	if out.Section == "" {
		out.Section = model.DefaultSection
	}

	switch q.Type {
	case model.QuestionTypeMCQ:
		correct, _ := rawString(q.CorrectAnswer)
		out.Kind = MCQ{Options: sortedOptions(q.Options), Correct: correct}
	case model.QuestionTypeMSQ:
		out.Kind = MSQ{Options: sortedOptions(q.Options), Correct: NewSetAnswer(q.CorrectAnswers...)}
	case model.QuestionTypeNumerical:
		correct, _ := rawString(q.CorrectAnswer)
		tol, err := parseTolerance(q.Tolerance)
		if err != nil {
			return Question{}, err
		}
		out.Kind = Numerical{Correct: correct, Tolerance: tol}
	case model.QuestionTypeTrueFalse:
		v, ok := rawBool(q.CorrectAnswer)
		out.Kind = TrueFalse{Correct: v, HasCorrect: ok}
	default:
		return Question{}, fmt.Errorf("%w: %q", ErrUnknownQuestionType, q.Type)
	}
	return out, nil
}

func sortedOptions(m map[string]string) []Option {
	opts := make([]Option, 0, len(m))
	for k, v := range m {
		opts = append(opts, Option{Key: k, Text: v})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Key < opts[j].Key })
	return opts
}

func parseTolerance(raw json.RawMessage) (float64, error) {
	s, ok := rawString(raw)
	if !ok || strings.TrimSpace(s) == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tolerance %q: %w", s, err)
	}
	if v < 0 {
		v = -v
	}
	return v, nil
}

// rawString reads a JSON string or number as text. Booleans are rendered
// as "true"/"false". Null and absent values report false.
func rawString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

func rawBool(raw json.RawMessage) (bool, bool) {
	s, ok := rawString(raw)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return false, false
	}
	return b, true
}
