// Package backend is the HTTP client for the test and scoring service that
// owns tests, attempts and leaderboards.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/model"
)

var (
	ErrUnauthorized     = errors.New("backend: unauthorized")
	ErrForbidden        = errors.New("backend: forbidden")
	ErrNotFound         = errors.New("backend: not found")
	ErrAlreadyAttempted = errors.New("backend: test already attempted")
)

// APIError is a non-success reply that maps to no sentinel.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.Status)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
}

// TokenSource yields the bearer token sent with each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrUnauthorized
	}
	return string(t), nil
}

// envelope is the response wrapper used by every backend endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

// Client talks to the backend on behalf of one token holder.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     zerolog.Logger
}

// New builds a client. baseURL includes the API prefix, for example
// "http://localhost:5000/api".
func New(baseURL string, timeout time.Duration, tokens TokenSource, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log,
	}
}

// WithTokens returns a client sharing the same transport but sending a
// different token.
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// GetTest fetches a test for attempting. Correct answers are withheld.
func (c *Client) GetTest(ctx context.Context, testID string) (*model.Test, error) {
	var t model.Test
	if err := c.do(ctx, http.MethodGet, "/tests/"+url.PathEscape(testID), nil, &t); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = testID
	}
	return &t, nil
}

// ListTests returns the tests visible to the caller.
func (c *Client) ListTests(ctx context.Context) ([]model.Test, error) {
	var tests []model.Test
	if err := c.do(ctx, http.MethodGet, "/tests", nil, &tests); err != nil {
		return nil, err
	}
	return tests, nil
}

// CheckAttempt reports whether the caller already attempted testID.
func (c *Client) CheckAttempt(ctx context.Context, testID string) (*model.AttemptCheck, error) {
	var chk model.AttemptCheck
	if err := c.do(ctx, http.MethodGet, "/tests/"+url.PathEscape(testID)+"/check-attempt", nil, &chk); err != nil {
		return nil, err
	}
	return &chk, nil
}

// Submit sends a finished attempt for scoring.
func (c *Client) Submit(ctx context.Context, testID string, sub model.Submission) (*model.SubmissionResult, error) {
	var res model.SubmissionResult
	if err := c.do(ctx, http.MethodPost, "/tests/"+url.PathEscape(testID)+"/submit", sub, &res); err != nil {
		return nil, err
	}
	if res.TimeTaken == 0 {
		res.TimeTaken = sub.TimeTaken
	}
	return &res, nil
}

// GetAttempt fetches a scored attempt with its full question set.
func (c *Client) GetAttempt(ctx context.Context, attemptID string) (*model.AttemptDetail, error) {
	var d model.AttemptDetail
	if err := c.do(ctx, http.MethodGet, "/attempts/"+url.PathEscape(attemptID), nil, &d); err != nil {
		return nil, err
	}
	if d.AttemptID == "" {
		d.AttemptID = attemptID
	}
	return &d, nil
}

// GetLeaderboard fetches the ranking of testID.
func (c *Client) GetLeaderboard(ctx context.Context, testID string) (*model.Leaderboard, error) {
	var lb model.Leaderboard
	if err := c.do(ctx, http.MethodGet, "/leaderboard/"+url.PathEscape(testID), nil, &lb); err != nil {
		return nil, err
	}
	return &lb, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Backend call")

	var env envelope
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode/100 == 2 {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode/100 != 2 || !env.Success {
		return statusError(resp.StatusCode, &env)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func statusError(status int, env *envelope) error {
	msg := env.Error
	if msg == "" {
		msg = env.Message
	}
	switch {
	case status == http.StatusForbidden && env.Code == "ALREADY_ATTEMPTED":
		return ErrAlreadyAttempted
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	}
	if status/100 == 2 {
		status = http.StatusBadGateway
	}
	return &APIError{Status: status, Code: env.Code, Message: msg}
}
