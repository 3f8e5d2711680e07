// AngelaMos | 2026
// main_test.go

package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/carterperez-dev/templates/portal-gateway/internal/config"
	"github.com/carterperez-dev/templates/portal-gateway/internal/gate"
	"github.com/carterperez-dev/templates/portal-gateway/internal/middleware"
)

func testLimiter(t *testing.T) http.Handler {
	t.Helper()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	g := gate.New(config.RoutesConfig{
		AdminPrefix:  "/admin",
		OwnerPrefix:  "/owner",
		Login:        "/login",
		Subscription: "/owner/subscription",
		AddProperty:  "/owner/properties/add",
		PropertyList: "/owner/properties",
	}, nil, nil)

	limiter := middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
		Limit:      middleware.PerWindow(100, 20, time.Minute),
		FailOpen:   true,
		BypassFunc: rateLimitBypass(g),
	})

	return limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func burst(h http.Handler, n int, pathOf func(i int) string) int {
	limited := 0
	for i := range n {
		req := httptest.NewRequest(http.MethodGet, pathOf(i), nil)
		req.Header.Set("Cookie", "laravel_session=abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	return limited
}

func TestPublicPageLoadsAreNeverLimited(t *testing.T) {
	h := testLimiter(t)

	assert.Zero(t, burst(h, 40, func(i int) string {
		return fmt.Sprintf("/_next/static/chunks/%d.js", i)
	}))
	assert.Zero(t, burst(h, 40, func(int) string { return "/properties/12" }))
	assert.Zero(t, burst(h, 40, func(int) string { return "/readyz" }))
}

func TestAPIAndProtectedPagesShareTheBudget(t *testing.T) {
	h := testLimiter(t)

	assert.Positive(t, burst(h, 40, func(int) string { return "/v1/properties" }))
	assert.Positive(t, burst(testLimiter(t), 40, func(int) string { return "/owner/dashboard" }))
	assert.Positive(t, burst(testLimiter(t), 40, func(int) string { return "/x/../admin/dashboard" }))
}
