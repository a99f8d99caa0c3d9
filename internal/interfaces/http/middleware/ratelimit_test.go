package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natebag/Testsite-sub005/internal/infrastructure/ratelimit"
	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
)

func testRouter(cfg *sharedConfig.RateLimitConfig, identity string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(nil), cfg, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if identity != "" {
			c.Set(IdentityKey, identity)
		}
		c.Next()
	})
	r.GET("/ping", RateLimit(limiter, "api_call"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func get(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AdmitsUnderQuota(t *testing.T) {
	cfg := &sharedConfig.RateLimitConfig{
		Events: map[string]sharedConfig.BucketConfig{
			"api_call": {Points: 3, Duration: 60},
		},
	}
	r := testRouter(cfg, "user-1")

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(r).Code)
	}
}

func TestRateLimit_RejectsWithRetryAfter(t *testing.T) {
	cfg := &sharedConfig.RateLimitConfig{
		Events: map[string]sharedConfig.BucketConfig{
			"api_call": {Points: 1, Duration: 60},
		},
	}
	r := testRouter(cfg, "user-1")

	require.Equal(t, http.StatusOK, get(r).Code)

	w := get(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "ms_before_next")
}

func TestRateLimit_BlacklistedPrincipalForbidden(t *testing.T) {
	cfg := &sharedConfig.RateLimitConfig{
		Events: map[string]sharedConfig.BucketConfig{
			"api_call": {Points: 10, Duration: 60},
		},
		Blacklist: []string{"banned-user"},
	}
	r := testRouter(cfg, "banned-user")

	assert.Equal(t, http.StatusForbidden, get(r).Code)
}
