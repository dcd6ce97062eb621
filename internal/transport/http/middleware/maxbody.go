package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "myduka-web/internal/transport/http/response"
)

// MaxBodyBytes 限制请求体大小；超限时绑定失败，这里兜底输出信封
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "request body too large"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
