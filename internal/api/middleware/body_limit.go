package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sosbx/PlanidocsV4-sub010/pkg/response"
)

// BodyLimit 请求体大小上限中间件
//
// 正常业务请求都是小 JSON，上限主要约束用户名册导入的 Excel。
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.IsAborted() {
			return
		}
		for _, ginErr := range c.Errors {
			var maxErr *http.MaxBytesError
			if errors.As(ginErr.Err, &maxErr) {
				response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
				return
			}
		}
	}
}
