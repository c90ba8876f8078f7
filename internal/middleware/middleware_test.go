package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/geocatalyst/exam-engine/internal/config"
	"github.com/geocatalyst/exam-engine/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "mw-secret", SessionTokenTTL: time.Hour})
}

func TestRequireUpstreamToken(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireUpstreamToken(), func(c *gin.Context) {
		c.String(http.StatusOK, UpstreamToken(c))
	})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"bearer", "Bearer id-token", http.StatusOK, "id-token"},
		{"lowercase scheme", "bearer id-token", http.StatusOK, "id-token"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"basic", "Basic abc", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q", w.Body.String())
			}
		})
	}
}

func TestRequireSessionTokenAndOwner(t *testing.T) {
	auth := newAuth()
	sid := uuid.New()
	token, _, err := auth.IssueSessionToken(sid, "t-geo", "subj")
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.GET("/sessions/:session_id", RequireSessionToken(auth), RequireSessionOwner(), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).TestID)
	})

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"header", "/sessions/" + sid.String(), token, http.StatusOK},
		{"query", "/sessions/" + sid.String() + "?token=" + token, "", http.StatusOK},
		{"other session", "/sessions/" + uuid.NewString(), token, http.StatusForbidden},
		{"missing", "/sessions/" + sid.String(), "", http.StatusUnauthorized},
		{"garbage", "/sessions/" + sid.String(), "nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(SessionTokenHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("igneous sedimentary metamorphic ", 100)

	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 256}))
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/chunks", func(c *gin.Context) {
		c.Status(http.StatusOK)
		for i := 0; i < 10; i++ {
			_, _ = c.Writer.WriteString(large[:100])
		}
	})

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	decode := func(t *testing.T, b []byte) string {
		t.Helper()
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(b)))
		if err != nil {
			t.Fatal(err)
		}
		return string(out)
	}

	w := get("/large")
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("large response not compressed")
	}
	if got := decode(t, w.Body.Bytes()); got != large {
		t.Errorf("decoded %d bytes, want %d", len(got), len(large))
	}

	w = get("/small")
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Errorf("small response = %q, encoding %q", w.Body.String(), w.Header().Get("Content-Encoding"))
	}

	w = get("/chunks")
	if got := decode(t, w.Body.Bytes()); got != strings.Repeat(large[:100], 10) {
		t.Errorf("chunked body mismatch: %d bytes", len(got))
	}
}

func TestCacheHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/live", NoStore(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/board", PrivateMaxAge(30), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for path, want := range map[string]string{"/live": "no-store", "/board": "private, max-age=30"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if got := w.Header().Get("Cache-Control"); got != want {
			t.Errorf("%s Cache-Control = %q, want %q", path, got, want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 2, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		if got := rl.allow("a"); got != want {
			t.Errorf("request %d allowed = %v, want %v", i, got, want)
		}
	}
	if !rl.allow("b") {
		t.Error("separate caller limited")
	}

	now = now.Add(time.Minute)
	if !rl.allow("a") {
		t.Error("tokens not refilled after interval")
	}

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Errorf("visitors after cleanup = %d", len(rl.visitors))
	}
}
