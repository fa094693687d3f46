package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 2})
	handler := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/lending/markets", nil)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("10.0.0.1"); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := send("10.0.0.1"); code != http.StatusOK {
		t.Fatalf("second request within burst: %d", code)
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected throttle, got %d", code)
	}
	// Another client has its own bucket.
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("separate client throttled: %d", code)
	}
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 1})
	now := time.Now()
	limiter.now = func() time.Time { return now }

	if !limiter.allow("a") {
		t.Fatalf("first request denied")
	}
	now = now.Add(visitorTTL + time.Minute)
	if !limiter.allow("b") {
		t.Fatalf("second client denied")
	}
	limiter.mu.Lock()
	_, stale := limiter.visitors["a"]
	limiter.mu.Unlock()
	if stale {
		t.Fatalf("idle visitor not evicted")
	}
}
