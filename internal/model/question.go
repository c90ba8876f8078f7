package model

import "encoding/json"

// QuestionType identifies how a question is answered and graded.
type QuestionType string

const (
	QuestionTypeMCQ       QuestionType = "mcq"
	QuestionTypeMSQ       QuestionType = "msq"
	QuestionTypeNumerical QuestionType = "numerical"
	QuestionTypeTrueFalse QuestionType = "true-false"
)

// DefaultSection is used when a question carries no section.
const DefaultSection = "General Aptitude"

// Question is the wire shape of a single question as served by the test
// backend. CorrectAnswer and Tolerance are kept raw because the backend
// emits them as either strings, numbers or booleans depending on type.
// During a live attempt the correct-answer fields are absent.
type Question struct {
	Type             QuestionType      `json:"type"`
	Question         string            `json:"question"`
	ImageURL         string            `json:"imageUrl,omitempty"`
	Section          string            `json:"section,omitempty"`
	Marks            float64           `json:"marks"`
	NegativeMarks    float64           `json:"negativeMarks"`
	Options          map[string]string `json:"options,omitempty"`
	CorrectAnswer    json.RawMessage   `json:"correctAnswer,omitempty"`
	CorrectAnswers   []string          `json:"correctAnswers,omitempty"`
	Tolerance        json.RawMessage   `json:"tolerance,omitempty"`
	Explanation      string            `json:"explanation,omitempty"`
	SolutionImageURL string            `json:"solutionImageUrl,omitempty"`
}

// Test is a timed collection of questions.
type Test struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Subject     string     `json:"subject,omitempty"`
	Description string     `json:"description,omitempty"`
	Duration    int        `json:"duration"`
	TotalMarks  float64    `json:"totalMarks"`
	IsActive    bool       `json:"isActive"`
	Questions   []Question `json:"questions"`
}
