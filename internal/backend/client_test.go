package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", 5*time.Second, StaticToken("tok-1"), zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetTest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tests/t-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"_id": "t-1", "title": "Mock 1", "duration": 90, "totalMarks": 100,
				"questions": []map[string]any{{"type": "mcq", "question": "Q", "marks": 1, "options": map[string]string{"A": "x"}}},
			},
		})
	})

	test, err := c.GetTest(context.Background(), "t-1")
	if err != nil {
		t.Fatal(err)
	}
	if test.Title != "Mock 1" || test.Duration != 90 || len(test.Questions) != 1 {
		t.Errorf("test = %+v", test)
	}
}

func TestSubmit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tests/t-1/submit" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var sub struct {
			Answers     map[string]any `json:"answers"`
			TimeTaken   int            `json:"timeTaken"`
			SubmittedAt string         `json:"submittedAt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			t.Fatal(err)
		}
		if sub.Answers["0"] != "B" || sub.TimeTaken != 42 || sub.SubmittedAt == "" {
			t.Errorf("payload = %+v", sub)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"data":    map[string]any{"attemptId": "a-1", "score": 3, "totalMarks": 5, "percentage": 60},
		})
	})

	res, err := c.Submit(context.Background(), "t-1", model.Submission{
		Answers:     map[string]any{"0": "B"},
		TimeTaken:   42,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.AttemptID != "a-1" || res.Score != 3 || res.TimeTaken != 42 {
		t.Errorf("result = %+v", res)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		want   error
	}{
		{"already attempted", http.StatusForbidden, map[string]any{"success": false, "code": "ALREADY_ATTEMPTED", "error": "done"}, ErrAlreadyAttempted},
		{"forbidden", http.StatusForbidden, map[string]any{"success": false, "error": "no"}, ErrForbidden},
		{"unauthorized", http.StatusUnauthorized, map[string]any{"success": false}, ErrUnauthorized},
		{"not found", http.StatusNotFound, map[string]any{"success": false}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.CheckAttempt(context.Background(), "t-1")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUnsuccessfulEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "database offline"})
	})
	_, err := c.GetAttempt(context.Background(), "a-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 500 || apiErr.Message != "database offline" {
		t.Errorf("error = %#v", err)
	}
}

func TestMissingToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent without token")
	}).WithTokens(StaticToken(""))
	if _, err := c.GetLeaderboard(context.Background(), "t-1"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("error = %v", err)
	}
}
