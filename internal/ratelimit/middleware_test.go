package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	lim, err := NewMemoryLimiter("1-M")
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	counted := Handler{Limiter: lim, Key: SessionOrIP("toko_sid")}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/transfer", nil)
	req.AddCookie(&http.Cookie{Name: "toko_sid", Value: "sess-1"})

	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second request, got %d", rr2.Code)
	}
	if rr2.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("unexpected limit header: %q", rr2.Header().Get("X-RateLimit-Limit"))
	}
	if rr2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	other := httptest.NewRequest(http.MethodPost, "/transfer", nil)
	other.AddCookie(&http.Cookie{Name: "toko_sid", Value: "sess-2"})
	rr3 := httptest.NewRecorder()
	counted.ServeHTTP(rr3, other)
	if rr3.Code != http.StatusOK {
		t.Fatalf("expected other session allowed, got %d", rr3.Code)
	}
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer func() { _ = client.Close() }()
	lim, err := NewRedisLimiter(client, "5-S", "test")
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	mr.Close()

	var got error
	counted := Handler{
		Limiter: lim,
		Key:     func(*http.Request) string { return "err" },
		OnError: func(err error) { got = err },
	}.Middleware(okHandler())

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected handler to proceed on error, got %d", rr.Code)
	}
	if got == nil {
		t.Fatal("expected OnError callback to be invoked")
	}
}

func TestSessionOrIP(t *testing.T) {
	key := SessionOrIP("toko_sid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if got := key(req); got != "ip:203.0.113.9" {
		t.Fatalf("unexpected key %q", got)
	}
	req.AddCookie(&http.Cookie{Name: "toko_sid", Value: "abc"})
	if got := key(req); got != "sid:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewMemoryLimiterRejectsBadRate(t *testing.T) {
	if _, err := NewMemoryLimiter("lots"); err == nil {
		t.Fatal("expected error for malformed rate")
	}
}
