package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestTokenBucketBurst(t *testing.T) {
	bucket := NewTokenBucket(1, 3)

	for i := 0; i < 3; i++ {
		if !bucket.Allow() {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}

	if bucket.Allow() {
		t.Error("request past the burst capacity should be denied")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	bucket := NewTokenBucket(100, 1)

	if !bucket.Allow() {
		t.Fatal("first request should be allowed")
	}
	if bucket.Allow() {
		t.Fatal("bucket should be empty")
	}

	// 100 tokens/s refills one token well within 50ms
	time.Sleep(50 * time.Millisecond)
	if !bucket.Allow() {
		t.Error("bucket should have refilled")
	}
}

func TestTokenBucketCapacityCap(t *testing.T) {
	bucket := NewTokenBucket(1000, 2)

	time.Sleep(20 * time.Millisecond)

	allowed := 0
	for i := 0; i < 10; i++ {
		if bucket.Allow() {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed = %d, want 2 (tokens must not accumulate past capacity)", allowed)
	}
}

func TestIPRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(IPRateLimiter(0.001, 2))
	r.GET("/limited", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("first two requests should pass, got %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request should be limited, got %d", statuses[2])
	}
}
