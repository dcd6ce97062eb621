package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"myduka-web/internal/core/auth"
	"myduka-web/internal/session"
)

// KeySID gin context 里的会话 id
const KeySID = "sid"

type CookieOptions struct {
	Name   string
	Domain string
	MaxAge time.Duration
	Secure bool
}

// Session 按签名 cookie 绑定客户端会话；cookie 缺失或无效时分配新会话并下发 cookie
func Session(reg *session.Registry, j *auth.JWTer, o CookieOptions, l *zap.Logger) gin.HandlerFunc {
	if o.Name == "" {
		o.Name = "myduka_sid"
	}
	return func(c *gin.Context) {
		var (
			sid string
			st  *session.Store
		)
		if raw, err := c.Cookie(o.Name); err == nil && raw != "" {
			if claims, err := j.Parse(raw); err == nil {
				sid = claims.SID
				st = reg.Open(c.Request.Context(), sid)
			} else {
				l.Debug("session cookie rejected", zap.Error(err))
			}
		}
		if st == nil {
			sid, st = reg.Create()
			tok, err := j.Issue(sid)
			if err != nil {
				l.Error("issue session cookie", zap.Error(err))
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(o.Name, tok, int(o.MaxAge/time.Second), "/", o.Domain, o.Secure, true)
		}

		c.Set(KeySID, sid)
		c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), sid, st))
		c.Next()
	}
}
