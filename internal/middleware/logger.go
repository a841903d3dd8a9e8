package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger 请求日志中间件
// 调用方带了 X-Request-ID 时一并记录，方便与 AI 调用日志串联
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		requestID := c.GetHeader("X-Request-ID")

		// 处理请求
		c.Next()

		// 记录日志
		latency := time.Since(start)
		status := c.Writer.Status()

		if requestID != "" {
			log.Printf("[%s] %s %s %d %v request_id=%s",
				c.Request.Method,
				path,
				c.ClientIP(),
				status,
				latency,
				requestID,
			)
			return
		}

		log.Printf("[%s] %s %s %d %v",
			c.Request.Method,
			path,
			c.ClientIP(),
			status,
			latency,
		)
	}
}
