package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr bool
	}{
		{"valid", RateLimitConfig{Requests: 100, Window: time.Minute}, false},
		{"zero requests", RateLimitConfig{Requests: 0, Window: time.Minute}, true},
		{"negative requests", RateLimitConfig{Requests: -5, Window: time.Minute}, true},
		{"zero window", RateLimitConfig{Requests: 10, Window: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInMemoryRateLimitStore_Allow(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	cfg := RateLimitConfig{Requests: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := store.Allow(ctx, "ip:1.2.3.4", cfg)
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter, err := store.Allow(ctx, "ip:1.2.3.4", cfg)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if allowed {
		t.Error("fourth request should be blocked")
	}
	if retryAfter < 1 {
		t.Errorf("retryAfter = %d, want >= 1", retryAfter)
	}

	// Separate keys get separate buckets.
	allowed, _, _ = store.Allow(ctx, "ip:5.6.7.8", cfg)
	if !allowed {
		t.Error("different key should have its own bucket")
	}
}

func TestInMemoryRateLimitStore_WindowReset(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	cfg := RateLimitConfig{Requests: 1, Window: time.Minute}
	ctx := context.Background()

	if allowed, _, _ := store.Allow(ctx, "k", cfg); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, "k", cfg); allowed {
		t.Fatal("second request in window should be blocked")
	}

	current = current.Add(time.Minute + time.Second)
	if allowed, _, _ := store.Allow(ctx, "k", cfg); !allowed {
		t.Error("request after window reset should be allowed")
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	cfg := RateLimitConfig{Requests: 10, Window: time.Minute}
	store.Allow(context.Background(), "stale", cfg)

	current = current.Add(10 * time.Minute)
	store.Allow(context.Background(), "fresh", cfg)

	store.Cleanup(5 * time.Minute)

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.buckets["stale"]; ok {
		t.Error("stale bucket should be removed")
	}
	if _, ok := store.buckets["fresh"]; !ok {
		t.Error("fresh bucket should survive cleanup")
	}
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr with port", "10.0.0.1:54321", "", "ip:10.0.0.1"},
		{"forwarded single", "10.0.0.1:54321", "203.0.113.7", "ip:203.0.113.7"},
		{"forwarded chain uses first hop", "10.0.0.1:54321", "203.0.113.7, 10.0.0.2", "ip:203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/places/nearby", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := IPKeyFunc(r); got != tt.want {
				t.Errorf("IPKeyFunc() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserKeyFunc(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/places/nearby", nil)
	r.RemoteAddr = "10.0.0.1:54321"

	if got := UserKeyFunc(r); got != "ip:10.0.0.1" {
		t.Errorf("anonymous UserKeyFunc() = %q, want ip fallback", got)
	}

	r = r.WithContext(SetUserID(r.Context(), "user-42"))
	if got := UserKeyFunc(r); got != "user:user-42" {
		t.Errorf("authenticated UserKeyFunc() = %q, want user:user-42", got)
	}
}

func TestRateLimiter_Blocks(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	cfg := RateLimitConfig{Requests: 2, Window: time.Minute}
	m := NewMetrics()

	handler := RateLimiter(store, cfg, IPKeyFunc, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/places/nearby", nil)
		r.RemoteAddr = "10.0.0.1:54321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}
	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("second request status = %d, want 200", rec.Code)
	}

	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("blocked response missing Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("blocked response missing X-RateLimit-Reset header")
	}
}

type erroringStore struct{}

func (erroringStore) Allow(context.Context, string, RateLimitConfig) (bool, int, error) {
	return false, 0, errors.New("store down")
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	handler := RateLimiter(erroringStore{}, DefaultGlobalRateLimit(), IPKeyFunc, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	r := httptest.NewRequest(http.MethodGet, "/places/nearby", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when store errors (fail open)", rec.Code)
	}
}
