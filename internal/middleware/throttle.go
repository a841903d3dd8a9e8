package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/user/filmfinder/internal/utils"
)

// Throttle 登录限流器：按哈希后的 IP 统计失败次数
type Throttle struct {
	failures *cache.Cache
	limit    int
}

// NewThrottle 创建限流器，limit 为窗口期内允许的失败次数，window 为窗口期
func NewThrottle(limit int, window time.Duration) *Throttle {
	return &Throttle{
		failures: cache.New(window, 2*window),
		limit:    limit,
	}
}

// Guard 限流中间件：失败次数超限后直接拒绝
func (t *Throttle) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := utils.HashIP(c.ClientIP())
		if n, ok := t.failures.Get(key); ok && n.(int) >= t.limit {
			utils.Error(c, http.StatusTooManyRequests, "尝试次数过多，请稍后再试")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Fail 记录一次失败尝试
func (t *Throttle) Fail(c *gin.Context) {
	key := utils.HashIP(c.ClientIP())
	if n, ok := t.failures.Get(key); ok {
		t.failures.Set(key, n.(int)+1, cache.DefaultExpiration)
		return
	}
	t.failures.Set(key, 1, cache.DefaultExpiration)
}

// Reset 成功后清除失败计数
func (t *Throttle) Reset(c *gin.Context) {
	t.failures.Delete(utils.HashIP(c.ClientIP()))
}
