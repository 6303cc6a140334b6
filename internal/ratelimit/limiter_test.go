package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	l := NewMemoryLimiter(2, time.Minute).WithClock(func() time.Time { return now })

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		if err != nil || !ok {
			t.Fatalf("request %d should be allowed: %v", i, err)
		}
	}
	if ok, _ := l.Allow(ctx, "1.2.3.4"); ok {
		t.Fatalf("third request in window should be denied")
	}

	// Another source has its own budget.
	if ok, _ := l.Allow(ctx, "5.6.7.8"); !ok {
		t.Fatalf("other source should be allowed")
	}

	// Window rollover resets the budget.
	now = now.Add(61 * time.Second)
	if ok, _ := l.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatalf("new window should be allowed")
	}
}

func TestMemoryLimiter_SweepsExpiredWindows(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	l := NewMemoryLimiter(10, time.Minute).WithClock(func() time.Time { return now })

	ctx := context.Background()
	for _, key := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		if ok, _ := l.Allow(ctx, key); !ok {
			t.Fatalf("first request for %s should be allowed", key)
		}
	}
	if len(l.windows) != 3 {
		t.Fatalf("expected 3 tracked windows, got %d", len(l.windows))
	}

	// A request in a later window drops every stale entry.
	now = now.Add(2 * time.Minute)
	if ok, _ := l.Allow(ctx, "4.4.4.4"); !ok {
		t.Fatalf("new window should be allowed")
	}
	if len(l.windows) != 1 {
		t.Fatalf("expected stale windows swept, got %d", len(l.windows))
	}
}

func TestMiddleware_Returns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewMemoryLimiter(1, time.Minute)

	r := gin.New()
	r.POST("/webhook", Middleware(l), func(c *gin.Context) { c.Status(200) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	if first.Code != 200 {
		t.Fatalf("expected 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
}
