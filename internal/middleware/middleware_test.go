package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/model"
	"github.com/certprep/certprep-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memorySessions struct {
	mu    sync.Mutex
	known map[string]bool
}

func (m *memorySessions) Touch(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.known == nil {
		m.known = make(map[string]bool)
	}
	created := !m.known[token]
	m.known[token] = true
	return created, nil
}

func newIdentities(t *testing.T) (*service.IdentityService, *service.AuthService) {
	t.Helper()
	auth := service.NewAuthService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour, BcryptCost: 4}, nil)
	return service.NewIdentityService(auth, &memorySessions{}, nil, zerolog.Nop()), auth
}

func identityRouter(identities *service.IdentityService) *gin.Engine {
	r := gin.New()
	r.Use(Identity(identities))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, GetIdentity(c).String())
	})
	return r
}

func TestIdentity(t *testing.T) {
	identities, auth := newIdentities(t)
	token, err := auth.GenerateToken(&model.User{ID: 7, Email: "u@example.com"})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	r := identityRouter(identities)

	tests := []struct {
		name       string
		header     map[string]string
		cookie     string
		wantStatus int
		wantBody   string
		wantEcho   string
	}{
		{"bearer user", map[string]string{"Authorization": "Bearer " + token}, "", http.StatusOK, "user:7", ""},
		{"bad bearer", map[string]string{"Authorization": "Bearer nope"}, "", http.StatusUnauthorized, "", ""},
		{"session header", map[string]string{SessionHeader: "anon-token-1"}, "", http.StatusOK, "anonymous:anon-token-1", "anon-token-1"},
		{"session cookie", nil, "cookie-token-1", http.StatusOK, "anonymous:cookie-token-1", "cookie-token-1"},
		{"invalid session", map[string]string{SessionHeader: "bad id!"}, "", http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Fatalf("expected identity %q, got %q", tt.wantBody, w.Body.String())
			}
			if got := w.Header().Get(SessionHeader); got != tt.wantEcho {
				t.Fatalf("expected echoed session %q, got %q", tt.wantEcho, got)
			}
		})
	}
}

func TestIdentity_GeneratesSessionID(t *testing.T) {
	identities, _ := newIdentities(t)
	r := identityRouter(identities)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	issued := w.Header().Get(SessionHeader)
	if w.Code != http.StatusOK || !service.ValidSessionID(issued) {
		t.Fatalf("expected a generated session id, got %d %q", w.Code, issued)
	}
	if w.Body.String() != "anonymous:"+issued {
		t.Fatalf("identity does not match issued token: %s", w.Body.String())
	}
}

func TestRequireUser(t *testing.T) {
	identities, auth := newIdentities(t)
	token, _ := auth.GenerateToken(&model.User{ID: 3})

	r := gin.New()
	r.GET("/me", RequireUser(identities), func(c *gin.Context) {
		c.String(http.StatusOK, GetIdentity(c).String())
	})

	for _, tt := range []struct {
		auth string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer garbage", http.StatusUnauthorized},
		{"Bearer " + token, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tt.auth != "" {
			req.Header.Set("Authorization", tt.auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Fatalf("auth %q: expected %d, got %d", tt.auth, tt.want, w.Code)
		}
	}
}

func rateLimitedRouter(store RateStore, limit int) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(store, limit, time.Minute, zerolog.Nop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func hit(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Stores(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	stores := map[string]RateStore{
		"memory": NewMemoryRateStore(),
		"redis":  NewRedisRateStore(rdb),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			r := rateLimitedRouter(store, 3)
			for i := 0; i < 3; i++ {
				if w := hit(r); w.Code != http.StatusNoContent {
					t.Fatalf("request %d rejected with %d", i+1, w.Code)
				}
			}
			w := hit(r)
			if w.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", w.Code)
			}
			if w.Header().Get("Retry-After") == "" || w.Header().Get("X-RateLimit-Remaining") != "0" {
				t.Fatalf("missing rate limit headers: %v", w.Header())
			}
		})
	}
}

func TestMemoryRateStore_WindowResets(t *testing.T) {
	store := NewMemoryRateStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _, _ = store.Hit(ctx, "client", time.Minute)
	}
	now = now.Add(time.Minute)
	count, reset, _ := store.Hit(ctx, "client", time.Minute)
	if count != 1 || !reset.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected a fresh window, got count=%d reset=%v", count, reset)
	}
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, io.ErrUnexpectedEOF
}

func TestRateLimit_FailsOpen(t *testing.T) {
	if w := hit(rateLimitedRouter(failingStore{}, 1)); w.Code != http.StatusNoContent {
		t.Fatalf("store failure should not block requests, got %d", w.Code)
	}
}

func TestBrotli(t *testing.T) {
	long := strings.Repeat("certification exam ", 200)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/long", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"text": long}) })
	r.GET("/short", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/plain", func(c *gin.Context) { c.String(http.StatusOK, long) })
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"text": long}) })

	serve := func(path, acceptEncoding string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if acceptEncoding != "" {
			req.Header.Set("Accept-Encoding", acceptEncoding)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("compresses large json bodies", func(t *testing.T) {
		w := serve("/long", "gzip, br;q=0.9")
		if w.Header().Get("Content-Encoding") != "br" {
			t.Fatalf("expected brotli encoding, got %q", w.Header().Get("Content-Encoding"))
		}
		body, err := io.ReadAll(brotli.NewReader(w.Body))
		if err != nil {
			t.Fatalf("decompress: %v", err)
		}
		var got struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &got); err != nil || got.Text != long {
			t.Fatalf("round trip mismatch: %v", err)
		}
	})

	tests := []struct {
		name, path, acceptEncoding string
	}{
		{"leaves small bodies alone", "/short", "br"},
		{"leaves non-json bodies alone", "/plain", "br"},
		{"skips excluded paths", "/health", "br"},
		{"respects accept-encoding", "/long", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.path, tt.acceptEncoding)
			if enc := w.Header().Get("Content-Encoding"); enc != "" {
				t.Fatalf("unexpected encoding %q", enc)
			}
			if w.Body.Len() == 0 {
				t.Fatal("body lost")
			}
		})
	}
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.Use(NoStore())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store, got %q", w.Header().Get("Cache-Control"))
	}
}
