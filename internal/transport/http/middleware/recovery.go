package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "myduka-web/internal/transport/http/response"
)

// Recovery 交给 ginzap.CustomRecoveryWithZap，堆栈由 ginzap 记录
func Recovery(c *gin.Context, _ any) {
	c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeServerError, "internal error"))
}
