package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/config"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func loginRequest(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = remoteAddr
	return req.WithContext(WithRateLimitTier(req.Context(), TierLogin))
}

func newTestLimiter(t *testing.T, cfg config.RateLimitConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(cfg, "test")
	t.Cleanup(rl.Stop)
	return rl
}

func TestLoginRateLimit_BlocksAfterBurst(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{LoginPer15Minutes: 5})
	handler := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, loginRequest("192.168.1.101:54321"))
		require.Equal(t, http.StatusOK, res.Code, "request %d", i+1)
	}

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, loginRequest("192.168.1.101:54321"))
	require.Equal(t, http.StatusTooManyRequests, res.Code)
	require.Equal(t, "180", res.Header().Get("Retry-After"))
	require.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))

	// Another client has its own bucket.
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, loginRequest("192.168.1.102:54321"))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestRateLimit_PublicTierDefault(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{PublicPerMinute: 2, LoginPer15Minutes: 5})
	handler := rl.Middleware(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
		req.RemoteAddr = "10.1.1.1:1000"
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		codes = append(codes, res.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_SkipsHealthAndDisabledTiers(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{PublicPerMinute: 1})
	handler := rl.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
	}

	// Login limit of zero disables the tier.
	for i := 0; i < 10; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, loginRequest("10.2.2.2:1"))
		require.Equal(t, http.StatusOK, res.Code)
	}
}

func TestLimiterStore_Cleanup(t *testing.T) {
	store := newLimiterStore(config.RateLimitConfig{PublicPerMinute: 10})
	defer store.Stop()

	require.NotNil(t, store.limiter(TierPublic, "1.1.1.1"))
	require.NotNil(t, store.limiter(TierPublic, "2.2.2.2"))
	require.Equal(t, 2, store.size())

	store.cleanup(time.Now())
	require.Equal(t, 2, store.size())

	store.cleanup(time.Now().Add(limiterTTL + time.Second))
	require.Equal(t, 0, store.size())

	store.Stop()
}

func TestClientIP_TrustedProxies(t *testing.T) {
	trusted := []string{"10.0.0.0/8"}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "direct", remoteAddr: "203.0.113.9:4000", want: "203.0.113.9"},
		{
			name:       "spoofed header from untrusted peer",
			remoteAddr: "203.0.113.9:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:       "203.0.113.9",
		},
		{
			name:       "forwarded by trusted proxy",
			remoteAddr: "10.0.0.5:4000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.5"},
			want:       "198.51.100.7",
		},
		{
			name:       "real ip from trusted proxy",
			remoteAddr: "10.0.0.5:4000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.8"},
			want:       "198.51.100.8",
		},
		{name: "no port", remoteAddr: "198.51.100.10", want: "198.51.100.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, ClientIP(req, trusted))
		})
	}
}

func TestRateLimitTierForPaths_DrawsFromOneBucket(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{PublicPerMinute: 1, LoginPer15Minutes: 3})
	handler := WithRateLimitTierForPaths(TierLogin, "/api/v1/auth/login")(rl.Middleware(okHandler()))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "192.168.1.50:1234"
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code, "login %d", i+1)
	}

	// Logins left the public bucket untouched.
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
		req.RemoteAddr = "192.168.1.50:1234"
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		codes = append(codes, res.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
