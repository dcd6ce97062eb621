package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var sensitiveKeys = map[string]struct{}{
	"password": {}, "pwd": {}, "token": {}, "authorization": {},
	"secret": {}, "client_secret": {}, "access_token": {},
}

func maskQuery(kv map[string][]string) map[string][]string {
	out := make(map[string][]string, len(kv))
	for k, v := range kv {
		if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
			out[k] = []string{"****"}
			continue
		}
		out[k] = v
	}
	return out
}

// AccessLog 请求摘要；放在 Session 之前注册也能拿到 sid（c.Next 之后读取）
func AccessLog(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		sid := c.GetString(KeySID)
		if len(sid) > 8 {
			sid = sid[:8]
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("rid", c.GetString(KeyRequestID)),
			zap.String("sid", sid),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("ua", c.Request.UserAgent()),
			zap.Int("size", c.Writer.Size()),
		}
		if q := c.Request.URL.Query(); len(q) > 0 {
			fields = append(fields, zap.Any("query", maskQuery(q)))
		}
		if len(c.Errors) > 0 {
			l.Warn("HTTP", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		l.Info("HTTP", fields...)
	}
}
