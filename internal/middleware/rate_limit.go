package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/sendbtc/internal/auth"
)

const submitRateLimitPrefix = "rl:submit:"

// SubmitRateLimit caps payment submissions per account per minute using a
// Redis counter. Requests pass through when Redis is unavailable.
func SubmitRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		subject, _ := c.Locals(auth.LocalAccountID).(string)
		if subject == "" {
			subject = c.IP()
		}
		key := submitRateLimitPrefix + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many payment submissions, try again later")
		}
		return c.Next()
	}
}
