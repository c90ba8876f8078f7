package model

import (
	"encoding/json"
	"time"
)

// Submission is the payload sent to the scoring backend when an attempt
// is finalized. Answers are keyed by the question index rendered as a
// decimal string.
type Submission struct {
	Answers     map[string]any `json:"answers"`
	TimeTaken   int            `json:"timeTaken"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// SubmissionResult is what the backend returns after scoring an attempt.
type SubmissionResult struct {
	AttemptID      string  `json:"attemptId"`
	Score          float64 `json:"score"`
	TotalMarks     float64 `json:"totalMarks"`
	Percentage     float64 `json:"percentage"`
	CorrectAnswers int     `json:"correctAnswers"`
	WrongAnswers   int     `json:"wrongAnswers"`
	Unattempted    int     `json:"unattempted"`
	TimeTaken      int     `json:"timeTaken"`
}

// AttemptCheck reports whether the caller already attempted a test.
type AttemptCheck struct {
	Attempted   bool            `json:"attempted"`
	AttemptData json.RawMessage `json:"attemptData,omitempty"`
}

// AttemptDetail is a scored attempt together with the full question set
// (including correct answers) used to build a review.
type AttemptDetail struct {
	AttemptID      string                     `json:"_id"`
	TestID         string                     `json:"testId"`
	TestTitle      string                     `json:"testTitle"`
	Score          float64                    `json:"score"`
	TotalMarks     float64                    `json:"totalMarks"`
	Percentage     float64                    `json:"percentage"`
	CorrectAnswers int                        `json:"correctAnswers"`
	WrongAnswers   int                        `json:"wrongAnswers"`
	Unattempted    int                        `json:"unattempted"`
	TimeTaken      int                        `json:"timeTaken"`
	SubmittedAt    string                     `json:"submittedAt"`
	Answers        map[string]json.RawMessage `json:"answers"`
	TestQuestions  []Question                 `json:"testQuestions"`
}

// AttemptRecord is the archived copy of a finished attempt.
type AttemptRecord struct {
	AttemptID      string         `json:"attempt_id"`
	SessionID      string         `json:"session_id"`
	Subject        string         `json:"subject"`
	TestID         string         `json:"test_id"`
	Score          float64        `json:"score"`
	TotalMarks     float64        `json:"total_marks"`
	Percentage     float64        `json:"percentage"`
	CorrectAnswers int            `json:"correct_answers"`
	WrongAnswers   int            `json:"wrong_answers"`
	Unattempted    int            `json:"unattempted"`
	TimeTaken      int            `json:"time_taken"`
	AutoSubmitted  bool           `json:"auto_submitted"`
	Answers        map[string]any `json:"answers"`
	SubmittedAt    time.Time      `json:"submitted_at"`
}
