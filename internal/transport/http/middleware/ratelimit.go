package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	resp "myduka-web/internal/transport/http/response"
)

// RateLimit 全局令牌桶限速
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		tooMany(c)
	}
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimitPerIP 每 IP 限速；idle 之后的桶被回收
func RateLimitPerIP(rps rate.Limit, burst int, idle time.Duration) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		buckets = make(map[string]*ipBucket)
		swept   = time.Now()
	)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if idle > 0 && now.Sub(swept) > idle {
			for k, b := range buckets {
				if now.Sub(b.seen) > idle {
					delete(buckets, k)
				}
			}
			swept = now
		}
		b, ok := buckets[ip]
		if !ok {
			b = &ipBucket{lim: rate.NewLimiter(rps, burst)}
			buckets[ip] = b
		}
		b.seen = now
		allowed := b.lim.Allow()
		mu.Unlock()

		if allowed {
			c.Next()
			return
		}
		tooMany(c)
	}
}

func tooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeTooManyRequests, "too many requests"))
}
