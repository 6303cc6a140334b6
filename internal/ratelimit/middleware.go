package ratelimit

import (
	"net/http"

	"callpulse/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware enforces the budget per source address. Limiter failures fail
// open: dropping webhooks over a dead Redis would lose call history.
func Middleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.FromGin(c).Warn("rate limiter unavailable, allowing request", "err", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "request budget exhausted for this source address",
			})
			return
		}
		c.Next()
	}
}
