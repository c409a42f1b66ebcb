package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	infraPrometheus "github.com/pyrelog/pyre/internal/infra/prometheus"
	"github.com/pyrelog/pyre/internal/ratelimit"
	"go.uber.org/zap"
)

// OriginKey derives the per-client key used for rate limiting and pat
// dedup. It is the closest thing to identity in this anonymous system:
// first hop of X-Forwarded-For, else CF-Connecting-IP, else the peer
// address.
func OriginKey(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if cfIP := c.Get("CF-Connecting-IP"); cfIP != "" {
		return cfIP
	}
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}

// RateLimit admits requests through the fixed-window limiter, exposing the
// remaining quota and reset instant as headers so clients can back off.
// A limiter error fails open: admission control protects capacity, and an
// unavailable backing store must not take the whole surface down with it.
func RateLimit(limiter ratelimit.Limiter, capacity int, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision, err := limiter.Admit(c.Context(), OriginKey(c))
		if err != nil {
			logger.Error("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(capacity))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.UnixMilli(), 10))

		if !decision.Allowed {
			infraPrometheus.RequestsRateLimited.Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limit",
				"message": "too many requests, slow down",
			})
		}

		return c.Next()
	}
}
