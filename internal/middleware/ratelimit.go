package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"krishimitra/api/internal/ratelimit"
	"krishimitra/api/internal/response"
)

// RateLimit gates a route group by client address. It runs before the
// body is read. While the counter backend fails, requests pass unless the
// class policy fails closed, in which case they get 503.
func RateLimit(limiter *ratelimit.Limiter, class ratelimit.Class, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := limiter.Allow(c.Request.Context(), class, c.ClientIP())
		if err != nil {
			if !decision.Allowed {
				log.Error().Err(err).Str("class", string(class)).Msg("rate limiter unavailable, rejecting request")
				c.Header("Retry-After", "30")
				response.Fail(c, http.StatusServiceUnavailable, response.MsgUnavailable)
				return
			}
			log.Warn().Err(err).Str("class", string(class)).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		now := time.Now()
		resetIn := decision.RetryAfter(now)
		h := c.Writer.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(int(math.Ceil(resetIn.Seconds()))))

		if !decision.Allowed {
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(resetIn.Seconds()))))
			response.Fail(c, http.StatusTooManyRequests, response.MsgTooManyRequests)
			return
		}

		c.Next()
	}
}
