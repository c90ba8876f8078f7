package exam

import (
	"testing"

	"github.com/geocatalyst/exam-engine/internal/model"
)

func TestRender(t *testing.T) {
	test := mixedTest(t)

	v := Render(0, test.Questions[0], ChoiceAnswer("B"))
	if v.Number != 1 || v.Type != "MCQ" || v.Section != "General" {
		t.Errorf("header = %d %s %s", v.Number, v.Type, v.Section)
	}
	if v.MarksLabel != "+1" || v.NegativeLabel != "-0.33" {
		t.Errorf("marks = %s %s", v.MarksLabel, v.NegativeLabel)
	}
	if v.Control != ControlRadio || len(v.Options) != 4 {
		t.Fatalf("control = %s options = %d", v.Control, len(v.Options))
	}
	for _, o := range v.Options {
		if o.Selected != (o.Key == "B") {
			t.Errorf("option %s selected = %v", o.Key, o.Selected)
		}
	}

	v = Render(1, test.Questions[1], NewSetAnswer("A", "D"))
	if v.Control != ControlCheckbox || !v.Options[0].Selected || !v.Options[3].Selected || v.Options[1].Selected {
		t.Errorf("msq view = %+v", v)
	}

	v = Render(2, test.Questions[2], NumericAnswer("3.5"))
	if v.Numeric == nil || v.Numeric.Value != "3.5" || v.Options != nil {
		t.Fatalf("numeric view = %+v", v)
	}
	if got := v.Numeric.Layout[3]; got[len(got)-1] != KeyBackspace || v.Numeric.KeyDisplay[KeyBackspace] != "←" {
		t.Errorf("keypad layout = %v", v.Numeric.Layout)
	}
	if v.NegativeLabel != "-0.00" {
		t.Errorf("default negative = %s", v.NegativeLabel)
	}

	v = Render(3, test.Questions[3], nil)
	if v.Type != "TRUE-FALSE" || len(v.Options) != 2 || v.Options[0].Label != "A" || v.Options[0].Text != "True" {
		t.Errorf("true-false view = %+v", v.Options)
	}
}

func TestRenderImageAndSection(t *testing.T) {
	q, err := NewQuestion(&model.Question{
		Type:     model.QuestionTypeTrueFalse,
		Question: "Figure",
		Section:  "Geology",
		ImageURL: "https://cdn.example.org/fig.png",
	})
	if err != nil {
		t.Fatal(err)
	}
	v := Render(4, q, nil)
	if v.Section != "Geology" {
		t.Errorf("section = %s", v.Section)
	}
	if v.Image == nil || v.Image.FullSizeURL != q.ImageURL {
		t.Errorf("image = %+v", v.Image)
	}
}

func TestNewQuestionUnknownType(t *testing.T) {
	if _, err := NewQuestion(&model.Question{Type: "essay"}); err == nil {
		t.Error("expected error")
	}
}

func TestBuildInstructions(t *testing.T) {
	test := mixedTest(t)
	ins := BuildInstructions(test)

	if ins.QuestionCount != 4 || ins.TotalMarks != 6 || ins.DurationMinutes != 1 {
		t.Errorf("instructions = %+v", ins)
	}
	if len(ins.Scheme) != 4 {
		t.Fatalf("scheme = %+v", ins.Scheme)
	}
	if ins.Scheme[0].Type != "MCQ" || ins.Scheme[0].Label != "+1 / -0.33" {
		t.Errorf("mcq line = %+v", ins.Scheme[0])
	}
	if ins.Scheme[1].Type != "MSQ" || ins.Scheme[1].Label != "+2 / -0" {
		t.Errorf("msq line = %+v", ins.Scheme[1])
	}
	if ins.Scheme[2].Label != "+2 / -0" || ins.Scheme[2].Negative != 0 {
		t.Errorf("numerical line = %+v", ins.Scheme[2])
	}
	if len(ins.Sections) != 1 || ins.Sections[0] != "General" {
		t.Errorf("sections = %v", ins.Sections)
	}
}

func TestSchemeIgnoresQuestionPenalties(t *testing.T) {
	test, err := NewTest(&model.Test{
		ID:       "t-pen",
		Duration: 10,
		Questions: []model.Question{
			{Type: model.QuestionTypeMCQ, Question: "Q1", Marks: 2, NegativeMarks: 1, Options: abcd(), CorrectAnswer: raw(`"A"`)},
			{Type: model.QuestionTypeMCQ, Question: "Q2", Marks: 2, Options: abcd(), CorrectAnswer: raw(`"A"`)},
			{Type: model.QuestionTypeMSQ, Question: "Q3", Marks: 2, NegativeMarks: 0.5, Options: abcd(), CorrectAnswers: []string{"A"}},
		},
	})
	if err != nil {
		t.Fatalf("NewTest: %v", err)
	}

	ins := BuildInstructions(test)
	tests := []struct {
		typ   string
		count int
		label string
	}{
		{"MCQ", 2, "+2 / -0.67"},
		{"MSQ", 1, "+2 / -0"},
	}
	if len(ins.Scheme) != len(tests) {
		t.Fatalf("scheme = %+v", ins.Scheme)
	}
	for i, tt := range tests {
		got := ins.Scheme[i]
		if got.Type != tt.typ || got.Count != tt.count || got.Label != tt.label {
			t.Errorf("line %d = %+v, want %s x%d %s", i, got, tt.typ, tt.count, tt.label)
		}
	}
}
