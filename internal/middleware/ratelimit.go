package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/cinecircle/internal/utils"
	"golang.org/x/time/rate"
)

// ipLimiter 按客户端 IP 限流，长时间不活跃的 IP 会被淘汰
type ipLimiter struct {
	mu       sync.Mutex
	limiters *utils.TTLCache[*rate.Limiter]
	limit    rate.Limit
	burst    int
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters.Get(ip); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Set(ip, lim)
	return lim
}

// RateLimit 每个 IP 每分钟最多 perMinute 次请求，用于登录、注册、重置密码
func RateLimit(perMinute, burst int) gin.HandlerFunc {
	l := &ipLimiter{
		limiters: utils.NewTTLCache[*rate.Limiter](10000, 10*time.Minute),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			utils.Error(c, http.StatusTooManyRequests, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Next()
	}
}
