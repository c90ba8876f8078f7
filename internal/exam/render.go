package exam

import (
	"strconv"
	"strings"

	"github.com/geocatalyst/exam-engine/internal/model"
)

// View is everything needed to draw one question.
type View struct {
	Index         int          `json:"index"`
	Number        int          `json:"number"`
	Type          string       `json:"type"`
	Section       string       `json:"section"`
	MarksLabel    string       `json:"marks_label"`
	NegativeLabel string       `json:"negative_label"`
	Body          string       `json:"body"`
	Image         *ImageView   `json:"image,omitempty"`
	Control       string       `json:"control"`
	Options       []OptionView `json:"options,omitempty"`
	Numeric       *NumericView `json:"numeric,omitempty"`
}

// ImageView is a question figure. Opening it shows FullSizeURL.
type ImageView struct {
	URL         string `json:"url"`
	FullSizeURL string `json:"full_size_url"`
}

type OptionView struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

type NumericView struct {
	Value      string            `json:"value"`
	Layout     [][]string        `json:"layout"`
	KeyDisplay map[string]string `json:"key_display"`
}

const (
	ControlRadio    = "radio"
	ControlCheckbox = "checkbox"
	ControlNumeric  = "numeric"
)

// TypeLabel is the upper-case badge text of a question type.
func TypeLabel(t model.QuestionType) string { return strings.ToUpper(string(t)) }

// SectionLabel shortens the default section name.
func SectionLabel(section string) string {
	if section == "" || section == model.DefaultSection {
		return "General"
	}
	return section
}

// FormatMarks renders a mark value without trailing zeros.
func FormatMarks(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Render builds the view of question index, pre-filled from saved.
func Render(index int, q Question, saved Answer) View {
	v := View{
		Index:         index,
		Number:        index + 1,
		Type:          TypeLabel(q.Type()),
		Section:       SectionLabel(q.Section),
		MarksLabel:    "+" + FormatMarks(q.Marks),
		NegativeLabel: "-" + strconv.FormatFloat(q.NegativeMarks, 'f', 2, 64),
		Body:          q.Body,
	}
	if q.ImageURL != "" {
		v.Image = &ImageView{URL: q.ImageURL, FullSizeURL: q.ImageURL}
	}
	v.fill(q, inputFrom(saved))
	return v
}

func (v *View) fill(q Question, in input) {
	switch q.Kind.(type) {
	case MSQ:
		v.Control = ControlCheckbox
	case Numerical:
		v.Control = ControlNumeric
		v.Numeric = &NumericView{Value: in.text, Layout: KeypadLayout, KeyDisplay: KeyDisplay}
		v.Options = nil
		return
	default:
		v.Control = ControlRadio
	}

	opts := q.Options()
	v.Options = make([]OptionView, len(opts))
	for i, o := range opts {
		v.Options[i] = OptionView{
			Key:      o.Key,
			Label:    optionLabel(q, i, o),
			Text:     o.Text,
			Selected: in.isSelected(o.Key),
		}
	}
}

func optionLabel(q Question, i int, o Option) string {
	if _, ok := q.Kind.(TrueFalse); ok {
		return string(rune('A' + i))
	}
	return o.Key
}
