package middleware

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/natebag/Testsite-sub005/internal/infrastructure/ratelimit"
	apperrors "github.com/natebag/Testsite-sub005/internal/shared/errors"
)

// IdentityKey is the gin context key an auth middleware sets for the
// authenticated principal.
const IdentityKey = "identity"

// RolesKey is the gin context key holding the principal's roles.
const RolesKey = "roles"

// RateLimit admits each request through the shared limiter. Anonymous
// requests fall back to IP-scoped quota only.
func RateLimit(limiter *ratelimit.Limiter, event string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := ratelimit.Request{
			IP:    c.ClientIP(),
			Event: event,
		}
		if identity, ok := c.Get(IdentityKey); ok {
			req.Identity, _ = identity.(string)
		}
		if roles, ok := c.Get(RolesKey); ok {
			req.Roles, _ = roles.([]string)
		}

		decision, err := limiter.Allow(c.Request.Context(), req)
		if err != nil {
			// Store outage handling already happened inside the limiter;
			// any residual error means the request cannot be judged.
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "rate limiter unavailable",
			})
			return
		}

		if rejection := decision.AsError(); rejection != nil {
			var rle *apperrors.RateLimitError
			if stderrors.As(rejection, &rle) {
				seconds := rle.MsBeforeNext / 1000
				if rle.MsBeforeNext%1000 > 0 {
					seconds++
				}
				c.Header("Retry-After", fmt.Sprintf("%d", seconds))
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"error":            "rate limit exceeded",
					"scope":            rle.Scope,
					"ms_before_next":   rle.MsBeforeNext,
					"remaining_points": rle.RemainingPoints,
					"total_hits":       rle.TotalHits,
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied",
			})
			return
		}

		c.Next()
	}
}
