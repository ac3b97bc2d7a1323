package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeLimiterStore struct {
	counts map[string]int64
	err    error
}

func newFakeLimiterStore() *fakeLimiterStore {
	return &fakeLimiterStore{counts: map[string]int64{}}
}

func (f *fakeLimiterStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitBlocksAfterIPLimit(t *testing.T) {
	store := newFakeLimiterStore()
	policy := NewRateLimitPolicy("checkout", time.Minute, 2, 0)
	handler := RateLimit(policy, store, nil)(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/checkout/create", nil)
		req.RemoteAddr = "203.0.113.7:4410"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", last.Header().Get("Retry-After"))
	}
}

func TestRateLimitSeparatesClients(t *testing.T) {
	store := newFakeLimiterStore()
	policy := NewRateLimitPolicy("orders", time.Minute, 1, 0)
	handler := RateLimit(policy, store, nil)(okHandler())

	for _, addr := range []string{"203.0.113.7:1", "203.0.113.8:1"} {
		req := httptest.NewRequest("POST", "/api/orders/create", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("addr %s status = %d, want 200", addr, rec.Code)
		}
	}
}

func TestRateLimitHonorsForwardedFor(t *testing.T) {
	store := newFakeLimiterStore()
	policy := NewRateLimitPolicy("checkout", time.Minute, 1, 0)
	handler := RateLimit(policy, store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/checkout/create", nil)
		req.RemoteAddr = "10.0.0.1:9999"
		req.Header.Set("X-Forwarded-For", "198.51.100.20, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("second request status = %d, want 429", rec.Code)
		}
	}
	if _, ok := store.counts["ip:checkout:198.51.100.20"]; !ok {
		t.Errorf("scopes = %v, want the forwarded client address", store.counts)
	}
}

func TestRateLimitEmailDimension(t *testing.T) {
	store := newFakeLimiterStore()
	policy := NewRateLimitPolicy("checkout", time.Minute, 0, 1)
	handler := RateLimit(policy, store, nil)(okHandler())

	body := `{"customer_email":"Dana@Example.com"}`
	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/checkout/create", strings.NewReader(body))
		req.RemoteAddr = "203.0.113.7:1"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", last.Code)
	}
	for key := range store.counts {
		if strings.Contains(key, "dana@example.com") || strings.Contains(key, "Dana") {
			t.Errorf("key %q must store a hash, not the raw email", key)
		}
	}
}

func TestRateLimitStoreOutageFailsOpen(t *testing.T) {
	store := newFakeLimiterStore()
	store.err = errors.New("redis down")
	policy := NewRateLimitPolicy("checkout", time.Minute, 1, 0)
	handler := RateLimit(policy, store, nil)(okHandler())

	req := httptest.NewRequest("POST", "/api/checkout/create", nil)
	req.RemoteAddr = "203.0.113.7:1"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, limiter outages must not block traffic", rec.Code)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	policy := NewRateLimitPolicy("checkout", 0, 0, 0)
	handler := RateLimit(policy, newFakeLimiterStore(), nil)(okHandler())

	req := httptest.NewRequest("POST", "/api/checkout/create", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
