package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig defines the limits for a fixed time window.
type RateLimitConfig struct {
	// Requests is the maximum number of requests allowed per window.
	Requests int
	// Window is the duration of the rate limit window.
	Window time.Duration
}

// Validate checks the configuration for usable values.
func (c RateLimitConfig) Validate() error {
	if c.Requests <= 0 {
		return fmt.Errorf("rate limit requests must be positive, got %d", c.Requests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", c.Window)
	}
	return nil
}

// DefaultGlobalRateLimit applies to all endpoints unless overridden.
func DefaultGlobalRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 100, Window: time.Minute}
}

// DefaultSearchRateLimit applies to the nearby search endpoint, which is the
// most expensive query the API serves.
func DefaultSearchRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 30, Window: time.Minute}
}

// RateLimitStore tracks request counts per key. Allow reports whether the
// request identified by key may proceed and, if not, the number of seconds
// until the current window resets.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, cfg RateLimitConfig) (allowed bool, retryAfter int, err error)
}

type bucket struct {
	count       int
	windowStart time.Time
}

// InMemoryRateLimitStore is a fixed-window counter suitable for a single
// instance. Multi-instance deployments should use RedisRateLimitStore.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, cfg RateLimitConfig) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || now.Sub(b.windowStart) >= cfg.Window {
		s.buckets[key] = &bucket{count: 1, windowStart: now}
		return true, 0, nil
	}

	if b.count >= cfg.Requests {
		retryAfter := int(cfg.Window.Seconds() - now.Sub(b.windowStart).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter, nil
	}

	b.count++
	return true, 0, nil
}

// Cleanup removes buckets whose window expired before the given cutoff age.
// Call periodically to bound memory use.
func (s *InMemoryRateLimitStore) Cleanup(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	for key, b := range s.buckets {
		if b.windowStart.Before(cutoff) {
			delete(s.buckets, key)
		}
	}
}

// KeyFunc derives the rate limit key for a request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys requests by client IP, honoring X-Forwarded-For when
// present (first hop).
func IPKeyFunc(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return "ip:" + strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// UserKeyFunc keys authenticated requests by user ID, falling back to IP for
// anonymous requests.
func UserKeyFunc(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID
	}
	return IPKeyFunc(r)
}

// RateLimiter returns a middleware enforcing cfg per key. Rejected requests
// get 429 with Retry-After and X-RateLimit-Reset headers. Store errors fail
// open: availability beats strict limiting.
func RateLimiter(store RateLimitStore, cfg RateLimitConfig, keyFn KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			endpoint := normalizePath(r.URL.Path)
			keyType, _, _ := strings.Cut(key, ":")

			if metrics != nil {
				metrics.IncRateLimitRequests(endpoint, keyType)
			}

			allowed, retryAfter, err := store.Allow(r.Context(), key, cfg)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				if metrics != nil {
					metrics.IncRateLimitBlocked(endpoint, keyType)
				}
				UpdateResponseContext(w, SetErrorCode(r.Context(), "RATE_LIMITED"))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Duration(retryAfter)*time.Second).Unix(), 10))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"message": "rate limit exceeded, slow down",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
