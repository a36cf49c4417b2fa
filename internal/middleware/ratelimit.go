package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimit builds a per-client-IP rate limiting middleware backed by
// Redis. The rate uses the limiter formatted syntax, e.g. "100-M" for 100
// requests per minute. A nil Redis client disables limiting (the
// middleware becomes a pass-through), so the service keeps working when
// the cache tier is absent.
func RateLimit(client *redis.Client, formatted string) (gin.HandlerFunc, error) {
	if client == nil {
		return func(c *gin.Context) { c.Next() }, nil
	}

	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "hoplink:ratelimit",
	})
	if err != nil {
		return nil, err
	}

	return mgin.NewMiddleware(limiter.New(store, rate)), nil
}
