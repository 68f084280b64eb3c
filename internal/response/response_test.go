package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFailWithDetailEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		FailWithDetail(c, http.StatusConflict, ErrInvalidTransition, "exam is not in progress")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Code != ErrInvalidTransition {
		t.Fatalf("unexpected error body %+v", body.Error)
	}
	if body.Error.Fields["detail"] != "exam is not in progress" {
		t.Fatalf("missing detail: %+v", body.Error.Fields)
	}
	if body.Metadata.RequestID != "req-123" {
		t.Fatalf("expected request id to be propagated, got %q", body.Metadata.RequestID)
	}
}

func TestRequestIDRejectsOversizedHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", 200))
	r.ServeHTTP(w, req)

	if got := w.Body.String(); len(got) != 36 {
		t.Fatalf("expected a generated uuid, got %q", got)
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 41)
	if p.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", p.TotalPages)
	}
	if NewPagination(1, 0, 10).TotalPages != 0 {
		t.Fatalf("zero page size must not divide by zero")
	}
}

func TestAbortFailStopsChain(t *testing.T) {
	reached := false
	r := gin.New()
	r.GET("/x",
		func(c *gin.Context) { AbortFail(c, http.StatusUnauthorized, ErrTokenRequired) },
		func(c *gin.Context) { reached = true },
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if reached {
		t.Fatal("handler after AbortFail ran")
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusUnauthorized || body.Error == nil || body.Error.Code != ErrTokenRequired {
		t.Fatalf("unexpected response %d %+v", w.Code, body.Error)
	}
	if body.Metadata.RequestID == "" {
		t.Fatal("request id should fall back to a generated one without the middleware")
	}
}
