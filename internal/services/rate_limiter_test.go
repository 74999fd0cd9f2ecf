package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deals-system/internal/config"
	"deals-system/internal/redis"
)

type fakeRateRedis struct {
	data   map[string]int64
	expire map[string]time.Time
}

func newFakeRateRedis() *fakeRateRedis {
	return &fakeRateRedis{
		data:   make(map[string]int64),
		expire: make(map[string]time.Time),
	}
}

func (f *fakeRateRedis) Incr(ctx context.Context, key string) (int64, error) {
	f.cleanup()
	val := f.data[key] + 1
	f.data[key] = val
	return val, nil
}

func (f *fakeRateRedis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.expire[key] = time.Now().Add(ttl)
	return nil
}

func (f *fakeRateRedis) TTL(ctx context.Context, key string) (time.Duration, error) {
	f.cleanup()
	if exp, ok := f.expire[key]; ok {
		return time.Until(exp), nil
	}
	return 0, nil
}

func (f *fakeRateRedis) GetInt(ctx context.Context, key string) (int64, error) {
	f.cleanup()
	val, ok := f.data[key]
	if !ok {
		return 0, nil
	}
	return val, nil
}

func (f *fakeRateRedis) cleanup() {
	now := time.Now()
	for k, exp := range f.expire {
		if now.After(exp) {
			delete(f.expire, k)
			delete(f.data, k)
		}
	}
}

func newTestRateLimiter(limit int, windowSeconds int) (*RateLimiter, *fakeRateRedis) {
	fake := newFakeRateRedis()
	limiter := &RateLimiter{
		redis:   fake,
		log:     newTestLogger(),
		enabled: true,
		limit:   int64(limit),
		window:  time.Duration(windowSeconds) * time.Second,
		prefix:  "ratelimit",
	}
	return limiter, fake
}

func TestRateLimiter_AllowWithinLimit(t *testing.T) {
	limiter, _ := newTestRateLimiter(3, 60)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, _, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("allow failed: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	if allowed {
		t.Fatalf("request over the limit should be denied")
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newTestRateLimiter(1, 60)
	ctx := context.Background()

	if allowed, _, _, _ := limiter.Allow(ctx, "10.0.0.1"); !allowed {
		t.Fatalf("first request should be allowed")
	}
	if allowed, _, _, _ := limiter.Allow(ctx, "10.0.0.1"); allowed {
		t.Fatalf("second request for the same key should be denied")
	}
	if allowed, _, _, _ := limiter.Allow(ctx, "10.0.0.2"); !allowed {
		t.Fatalf("a different key must not be throttled")
	}
}

func TestRateLimiter_DisabledAllowsEverything(t *testing.T) {
	limiter := NewRateLimiter(nil, newTestLogger(), &config.RateLimitConfig{Enabled: false})

	if limiter.Enabled() {
		t.Fatalf("limiter should be disabled")
	}

	for i := 0; i < 100; i++ {
		allowed, _, _, err := limiter.Allow(context.Background(), "10.0.0.1")
		if err != nil || !allowed {
			t.Fatalf("disabled limiter must allow all requests")
		}
	}
}

func TestRateLimiter_DisabledWithoutRedis(t *testing.T) {
	var nilClient *redis.Client
	limiter := NewRateLimiter(nilClient, newTestLogger(), &config.RateLimitConfig{
		Enabled:       true,
		Requests:      10,
		WindowSeconds: 60,
	})

	if limiter.Enabled() {
		t.Fatalf("limiter without redis must fall back to disabled")
	}
}

func TestRateLimiter_Usage(t *testing.T) {
	limiter, _ := newTestRateLimiter(5, 60)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, _, err := limiter.Allow(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("allow failed: %v", err)
		}
	}

	used, remaining, _, err := limiter.Usage(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("usage failed: %v", err)
	}
	if used != 2 || remaining != 3 {
		t.Fatalf("expected used=2 remaining=3, got used=%d remaining=%d", used, remaining)
	}
}

func TestExtractClientIP(t *testing.T) {
	cases := []struct {
		name     string
		build    func() *http.Request
		expected string
	}{
		{
			name: "x-real-ip",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("X-Real-IP", "203.0.113.5")
				return r
			},
			expected: "203.0.113.5",
		},
		{
			name: "x-forwarded-for first hop",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
				return r
			},
			expected: "203.0.113.7",
		},
		{
			name: "remote addr",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.RemoteAddr = "192.0.2.10:54321"
				return r
			},
			expected: "192.0.2.10",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractClientIP(tc.build()); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}
