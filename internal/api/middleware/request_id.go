package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey = "request_id"
	// 外部传入的 ID 超长时弃用重生成，防日志注入
	requestIDMaxLen = 64
)

// RequestID 请求追踪 ID 中间件
//
// 优先沿用调用方的 X-Request-ID（跨服务追踪同一笔交易），
// 缺失时生成 UUID；写回响应头供客户端回报问题时引用。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.NewString()
		}

		c.Set(requestIDKey, rid)
		c.Header("X-Request-ID", rid)

		c.Next()
	}
}
