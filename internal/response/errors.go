package response

// ErrCode is a typed error code for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired    ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid     ErrCode = "TOKEN_INVALID"
	ErrTokenExpired     ErrCode = "TOKEN_EXPIRED"
	ErrUpstreamRejected ErrCode = "UPSTREAM_UNAUTHORIZED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrSessionMismatch ErrCode = "SESSION_MISMATCH"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrAlreadyAttempted  ErrCode = "ALREADY_ATTEMPTED"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrUnsupportedTest   ErrCode = "UNSUPPORTED_QUESTION_TYPE"
	ErrInvalidIndex      ErrCode = "INVALID_QUESTION_INDEX"
	ErrWrongQuestionType ErrCode = "WRONG_QUESTION_TYPE"
	ErrUnknownOption     ErrCode = "UNKNOWN_OPTION"
	ErrInvalidKey        ErrCode = "INVALID_KEY"
	ErrNotStarted        ErrCode = "SESSION_NOT_STARTED"
	ErrAlreadyStarted    ErrCode = "SESSION_ALREADY_STARTED"
	ErrNotActive         ErrCode = "SESSION_NOT_ACTIVE"
	ErrNotConfirming     ErrCode = "SUBMIT_NOT_REQUESTED"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrSubmitFailed      ErrCode = "SUBMIT_FAILED"
	ErrNotSubmitted      ErrCode = "NOT_SUBMITTED"

	// ─── Upstream ──────────────────────────────────────────────────────
	ErrUpstream ErrCode = "UPSTREAM_ERROR"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."
	case ErrUpstreamRejected:
		return "The test service rejected your credentials. Please log in again."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."
	case ErrSessionMismatch:
		return "This token does not belong to the requested session."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrAlreadyAttempted:
		return "You have already attempted this test."
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrUnsupportedTest:
		return "This test contains an unsupported question type."
	case ErrInvalidIndex:
		return "Question number is out of range."
	case ErrWrongQuestionType:
		return "This action does not apply to the current question."
	case ErrUnknownOption:
		return "The selected option does not exist."
	case ErrInvalidKey:
		return "That key is not on the numeric keypad."
	case ErrNotStarted:
		return "The test has not started yet."
	case ErrAlreadyStarted:
		return "The test has already started."
	case ErrNotActive:
		return "The test is not accepting answers right now."
	case ErrNotConfirming:
		return "Request submission before confirming it."
	case ErrAlreadySubmitted:
		return "This attempt has already been submitted."
	case ErrSessionClosed:
		return "This session has ended."
	case ErrSubmitFailed:
		return "Failed to submit the test. Please try again."
	case ErrNotSubmitted:
		return "The attempt has not been submitted yet."

	// ─── Upstream ──────────────────────────────────────────────────────
	case ErrUpstream:
		return "The test service is unavailable. Please try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
