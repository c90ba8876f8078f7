package exam

import (
	"errors"
	"fmt"
)

var (
	ErrNoQuestions         = errors.New("test has no questions")
	ErrUnknownQuestionType = errors.New("unknown question type")
	ErrInvalidIndex        = errors.New("question index out of range")
	ErrWrongKind           = errors.New("action does not apply to this question type")
	ErrUnknownOption       = errors.New("unknown option")
	ErrInvalidKey          = errors.New("invalid keypad key")
	ErrNotStarted          = errors.New("session has not started")
	ErrAlreadyStarted      = errors.New("session already started")
	ErrNotActive           = errors.New("session is not accepting answers")
	ErrNotConfirming       = errors.New("no submission awaiting confirmation")
	ErrAlreadySubmitted    = errors.New("attempt already submitted")
	ErrSessionClosed       = errors.New("session is closed")
)

// SubmitError reports a failed dispatch to the scoring backend. Resumed is
// true when the session went back to answering with the timer running.
type SubmitError struct {
	Err     error
	Auto    bool
	Resumed bool
}

func (e *SubmitError) Error() string {
	if e.Auto {
		return fmt.Sprintf("auto-submit failed: %v", e.Err)
	}
	return fmt.Sprintf("submit failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }
