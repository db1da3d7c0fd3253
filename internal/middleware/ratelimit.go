package middleware

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Limits holds the per-client request quotas
type Limits struct {
	PerSecond int
	PerMinute int
}

// LoadLimitsFromEnv loads rate limits from environment variables
func LoadLimitsFromEnv() Limits {
	perSecond, _ := strconv.Atoi(getEnv("RATE_LIMIT_PER_SECOND", "20"))
	perMinute, _ := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "300"))
	return Limits{PerSecond: perSecond, PerMinute: perMinute}
}

// RateLimitMiddleware enforces per-client-IP quotas backed by Redis
// counters. Limits of zero disable the corresponding check. Redis errors
// fail open so a cache outage never takes the API down with it.
func RateLimitMiddleware(rdb *redis.Client, limits Limits) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()
		now := time.Now()
		ip := c.IP()

		keySecond := fmt.Sprintf("rl:ip:%s:second:%d", ip, now.Unix())
		keyMinute := fmt.Sprintf("rl:ip:%s:minute:%s", ip, now.Format("2006-01-02T15:04"))

		if limits.PerSecond > 0 {
			countSecond, err := rdb.Incr(ctx, keySecond).Result()
			if err == nil {
				rdb.Expire(ctx, keySecond, 2*time.Second)

				if countSecond > int64(limits.PerSecond) {
					c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limits.PerSecond))
					c.Set("X-RateLimit-Remaining-Second", "0")
					c.Set("Retry-After", "1")

					return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
						"error":       "rate_limit_exceeded",
						"message":     "Too many requests per second",
						"limit_type":  "per_second",
						"limit":       limits.PerSecond,
						"retry_after": 1,
					})
				}
			}
		}

		if limits.PerMinute > 0 {
			countMinute, err := rdb.Incr(ctx, keyMinute).Result()
			if err == nil {
				rdb.Expire(ctx, keyMinute, 2*time.Minute)

				if countMinute > int64(limits.PerMinute) {
					nextMinute := now.Truncate(time.Minute).Add(time.Minute)
					retryAfter := int64(nextMinute.Sub(now).Seconds()) + 1

					c.Set("X-RateLimit-Limit-Minute", strconv.Itoa(limits.PerMinute))
					c.Set("X-RateLimit-Remaining-Minute", "0")
					c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

					return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
						"error":       "rate_limit_exceeded",
						"message":     "Too many requests per minute",
						"limit_type":  "per_minute",
						"limit":       limits.PerMinute,
						"used":        countMinute,
						"retry_after": retryAfter,
					})
				}

				c.Set("X-RateLimit-Remaining-Minute", strconv.FormatInt(int64(limits.PerMinute)-countMinute, 10))
			}
		}

		c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limits.PerSecond))
		c.Set("X-RateLimit-Limit-Minute", strconv.Itoa(limits.PerMinute))

		return c.Next()
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
