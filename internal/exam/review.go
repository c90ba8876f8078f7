package exam

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/geocatalyst/exam-engine/internal/model"
)

// Verdict is the recomputed outcome of one reviewed question.
type Verdict string

const (
	VerdictCorrect     Verdict = "correct"
	VerdictWrong       Verdict = "wrong"
	VerdictUnattempted Verdict = "unattempted"
)

// NotAttempted is shown in place of a missing answer.
const NotAttempted = "Not attempted"

// Grade decides the verdict of a stored answer against q. A nil answer is
// unattempted.
func Grade(q Question, a Answer) Verdict {
	if a == nil {
		return VerdictUnattempted
	}

	ok := false
	switch k := q.Kind.(type) {
	case MCQ:
		v, isChoice := a.(ChoiceAnswer)
		ok = isChoice && string(v) == k.Correct
	case MSQ:
		v, isSet := a.(SetAnswer)
		ok = isSet && slices.Equal([]string(v), k.Correct)
	case Numerical:
		v, isNum := a.(NumericAnswer)
		ok = isNum && withinTolerance(string(v), k.Correct, k.Tolerance)
	case TrueFalse:
		v, isBool := a.(BoolAnswer)
		ok = isBool && k.HasCorrect && bool(v) == k.Correct
	}
	if ok {
		return VerdictCorrect
	}
	return VerdictWrong
}

func withinTolerance(got, want string, tol float64) bool {
	g, err := strconv.ParseFloat(strings.TrimSpace(got), 64)
	if err != nil {
		return false
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(want), 64)
	if err != nil {
		return false
	}
	return math.Abs(g-w) <= tol
}

// AnswerText renders a student's answer for display.
func AnswerText(q Question, a Answer) string {
	if a == nil {
		return NotAttempted
	}
	switch v := a.(type) {
	case ChoiceAnswer:
		return optionText(q, string(v))
	case SetAnswer:
		return optionList(q, v)
	case NumericAnswer:
		return string(v)
	case BoolAnswer:
		return boolText(bool(v))
	}
	return NotAttempted
}

// CorrectText renders the correct answer of q for display.
func CorrectText(q Question) string {
	switch k := q.Kind.(type) {
	case MCQ:
		if k.Correct == "" {
			return ""
		}
		return optionText(q, k.Correct)
	case MSQ:
		return optionList(q, k.Correct)
	case Numerical:
		if k.Tolerance > 0 {
			return fmt.Sprintf("%s (±%s)", k.Correct, FormatMarks(k.Tolerance))
		}
		return k.Correct
	case TrueFalse:
		if !k.HasCorrect {
			return ""
		}
		return boolText(k.Correct)
	}
	return ""
}

func optionText(q Question, key string) string {
	for _, o := range q.Options() {
		if o.Key == key {
			return fmt.Sprintf("Option %s: %s", key, o.Text)
		}
	}
	return "Option " + key
}

func optionList(q Question, keys []string) string {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		text := ""
		for _, o := range q.Options() {
			if o.Key == key {
				text = o.Text
				break
			}
		}
		parts = append(parts, key+": "+text)
	}
	return strings.Join(parts, ", ")
}

func boolText(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ReviewItem is one question of a reviewed attempt.
type ReviewItem struct {
	Number           int      `json:"number"`
	Type             string   `json:"type"`
	Section          string   `json:"section"`
	Marks            float64  `json:"marks"`
	Body             string   `json:"body"`
	ImageURL         string   `json:"image_url,omitempty"`
	Options          []Option `json:"options,omitempty"`
	YourAnswer       string   `json:"your_answer"`
	CorrectAnswer    string   `json:"correct_answer"`
	Explanation      string   `json:"explanation,omitempty"`
	SolutionImageURL string   `json:"solution_image_url,omitempty"`
	Verdict          Verdict  `json:"verdict"`
}

// ReviewCounts tallies recomputed verdicts.
type ReviewCounts struct {
	Correct     int `json:"correct"`
	Wrong       int `json:"wrong"`
	Unattempted int `json:"unattempted"`
}

// Review is a scored attempt with per-question verdicts recomputed from
// the stored answers.
type Review struct {
	AttemptID  string       `json:"attempt_id"`
	TestID     string       `json:"test_id"`
	Title      string       `json:"title"`
	Score      float64      `json:"score"`
	TotalMarks float64      `json:"total_marks"`
	Percentage float64      `json:"percentage"`
	TimeTaken  int          `json:"time_taken"`
	Counts     ReviewCounts `json:"counts"`
	Items      []ReviewItem `json:"items"`
}

// BuildReview recomputes every verdict of an attempt.
func BuildReview(d *model.AttemptDetail) (*Review, error) {
	r := &Review{
		AttemptID:  d.AttemptID,
		TestID:     d.TestID,
		Title:      d.TestTitle,
		Score:      d.Score,
		TotalMarks: d.TotalMarks,
		Percentage: d.Percentage,
		TimeTaken:  d.TimeTaken,
		Items:      make([]ReviewItem, 0, len(d.TestQuestions)),
	}

	for i := range d.TestQuestions {
		q, err := NewQuestion(&d.TestQuestions[i])
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}

		var a Answer
		if raw, ok := d.Answers[strconv.Itoa(i)]; ok {
			a, _ = DecodeAnswer(q.Kind, raw)
		}

		verdict := Grade(q, a)
		switch verdict {
		case VerdictCorrect:
			r.Counts.Correct++
		case VerdictWrong:
			r.Counts.Wrong++
		default:
			r.Counts.Unattempted++
		}

		item := ReviewItem{
			Number:           i + 1,
			Type:             TypeLabel(q.Type()),
			Section:          SectionLabel(q.Section),
			Marks:            q.Marks,
			Body:             q.Body,
			ImageURL:         q.ImageURL,
			YourAnswer:       AnswerText(q, a),
			CorrectAnswer:    CorrectText(q),
			Explanation:      q.Explanation,
			SolutionImageURL: q.SolutionImageURL,
			Verdict:          verdict,
		}
		if _, ok := q.Kind.(Numerical); !ok {
			item.Options = q.Options()
		}
		r.Items = append(r.Items, item)
	}
	return r, nil
}

// ResultView is the formatted post-submission result.
type ResultView struct {
	AttemptID   string `json:"attempt_id"`
	Score       string `json:"score"`
	Percentage  string `json:"percentage"`
	Correct     int    `json:"correct"`
	Wrong       int    `json:"wrong"`
	Unattempted int    `json:"unattempted"`
	TimeTaken   string `json:"time_taken"`
}

// NewResultView formats a scoring result. totalMarks is used when the
// backend omits its own total.
func NewResultView(res *model.SubmissionResult, totalMarks float64) *ResultView {
	total := res.TotalMarks
	if total <= 0 {
		total = totalMarks
	}
	return &ResultView{
		AttemptID:   res.AttemptID,
		Score:       FormatMarks(res.Score) + " / " + FormatMarks(total),
		Percentage:  strconv.FormatFloat(res.Percentage, 'f', 2, 64) + "%",
		Correct:     res.CorrectAnswers,
		Wrong:       res.WrongAnswers,
		Unattempted: res.Unattempted,
		TimeTaken:   FormatDuration(res.TimeTaken),
	}
}

// FormatDuration renders seconds as "Xm Ys".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
