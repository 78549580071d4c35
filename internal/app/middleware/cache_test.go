package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestCacheServesRepeatedGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	PurgeCache()

	hits := 0
	r := gin.New()
	r.GET("/cached", Cache(CacheConfig{Expiration: 1 * time.Minute}), func(c *gin.Context) {
		hits++
		c.JSON(http.StatusOK, gin.H{"hits": hits})
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/cached", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/cached", nil))

	if hits != 1 {
		t.Errorf("handler hits = %d, want 1", hits)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("cached response differs: %q vs %q", first.Body.String(), second.Body.String())
	}
}

func TestCacheKeyIncludesQueryParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	PurgeCache()

	r := gin.New()
	r.GET("/cached", Cache(CacheConfig{Expiration: 1 * time.Minute}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"page": c.Query("page")})
	})

	pageOne := httptest.NewRecorder()
	r.ServeHTTP(pageOne, httptest.NewRequest(http.MethodGet, "/cached?page=1", nil))
	pageTwo := httptest.NewRecorder()
	r.ServeHTTP(pageTwo, httptest.NewRequest(http.MethodGet, "/cached?page=2", nil))

	if pageOne.Body.String() == pageTwo.Body.String() {
		t.Error("different query params should not share a cache entry")
	}
}

func TestCacheSkipsNonGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	PurgeCache()

	hits := 0
	r := gin.New()
	r.POST("/write", Cache(CacheConfig{Expiration: 1 * time.Minute}), func(c *gin.Context) {
		hits++
		c.JSON(http.StatusOK, gin.H{"hits": strconv.Itoa(hits)})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", nil))
	}

	if hits != 2 {
		t.Errorf("handler hits = %d, want 2 (POST must bypass the cache)", hits)
	}
}

func TestCacheSkipsErrorResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	PurgeCache()

	hits := 0
	r := gin.New()
	r.GET("/flaky", Cache(CacheConfig{Expiration: 1 * time.Minute}), func(c *gin.Context) {
		hits++
		if hits == 1 {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/flaky", nil))
	}

	if hits != 2 {
		t.Errorf("handler hits = %d, want 2 (error responses must not be cached)", hits)
	}
}
