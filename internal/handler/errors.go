package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/backend"
	"github.com/geocatalyst/exam-engine/internal/exam"
	"github.com/geocatalyst/exam-engine/internal/response"
	"github.com/geocatalyst/exam-engine/internal/service"
)

type errMapping struct {
	err    error
	status int
	code   response.ErrCode
}

// errTable is checked in order; the first match wins.
var errTable = []errMapping{
	{service.ErrSessionNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrAlreadyAttempted, http.StatusConflict, response.ErrAlreadyAttempted},
	{service.ErrNotSubmitted, http.StatusConflict, response.ErrNotSubmitted},
	{service.ErrUnknownInput, http.StatusBadRequest, response.ErrValidation},
	{exam.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{exam.ErrUnknownQuestionType, http.StatusUnprocessableEntity, response.ErrUnsupportedTest},
	{exam.ErrInvalidIndex, http.StatusBadRequest, response.ErrInvalidIndex},
	{exam.ErrWrongKind, http.StatusConflict, response.ErrWrongQuestionType},
	{exam.ErrUnknownOption, http.StatusBadRequest, response.ErrUnknownOption},
	{exam.ErrInvalidKey, http.StatusBadRequest, response.ErrInvalidKey},
	{exam.ErrNotStarted, http.StatusConflict, response.ErrNotStarted},
	{exam.ErrAlreadyStarted, http.StatusConflict, response.ErrAlreadyStarted},
	{exam.ErrNotActive, http.StatusConflict, response.ErrNotActive},
	{exam.ErrNotConfirming, http.StatusConflict, response.ErrNotConfirming},
	{exam.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
	{exam.ErrSessionClosed, http.StatusGone, response.ErrSessionClosed},
	{backend.ErrAlreadyAttempted, http.StatusConflict, response.ErrAlreadyAttempted},
	{backend.ErrUnauthorized, http.StatusUnauthorized, response.ErrUpstreamRejected},
	{backend.ErrForbidden, http.StatusForbidden, response.ErrForbidden},
	{backend.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
}

// classify maps a service error onto an HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	var serr *exam.SubmitError
	if errors.As(err, &serr) {
		if errors.Is(err, backend.ErrAlreadyAttempted) {
			return http.StatusConflict, response.ErrAlreadyAttempted
		}
		return http.StatusBadGateway, response.ErrSubmitFailed
	}
	for _, m := range errTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, response.ErrUpstream
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes err as an error envelope. Upstream messages are passed on as
// detail; internal errors are logged and hidden.
func fail(c *gin.Context, err error) {
	failWithData(c, err, nil)
}

func failWithData(c *gin.Context, err error, data interface{}) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && code == response.ErrInternal {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.FailWithDetail(c, status, code, "", data)
		return
	}

	detail := ""
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		detail = apiErr.Message
	}
	response.FailWithDetail(c, status, code, detail, data)
}
