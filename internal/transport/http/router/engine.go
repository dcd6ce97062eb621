package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"myduka-web/internal/backend"
	"myduka-web/internal/core/auth"
	"myduka-web/internal/core/server"
	"myduka-web/internal/session"
	"myduka-web/internal/transport/http/handler"
	mdw "myduka-web/internal/transport/http/middleware"
	resp "myduka-web/internal/transport/http/response"
	"myduka-web/internal/transport/http/ws"
)

// Authenticator 后端认证服务
type Authenticator interface {
	Login(ctx context.Context, email, password string) (backend.LoginResult, error)
	Register(ctx context.Context, token string, req backend.RegisterRequest) error
}

type Limits struct {
	RPS           float64
	Burst         int
	LoginRPS      float64
	LoginBurst    int
	MaxConcurrent int64
	MaxBodyBytes  int64
	Timeout       time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.RPS <= 0 {
		l.RPS, l.Burst = 200, 400
	}
	if l.LoginRPS <= 0 {
		l.LoginRPS, l.LoginBurst = 1, 5
	}
	if l.MaxConcurrent <= 0 {
		l.MaxConcurrent = 300
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = 1 << 20
	}
	if l.Timeout <= 0 {
		l.Timeout = 10 * time.Second
	}
	return l
}

type Deps struct {
	Log         *zap.Logger
	Registry    *session.Registry
	JWT         *auth.JWTer
	Cookie      mdw.CookieOptions
	Auth        Authenticator
	Hub         *ws.Hub
	CORSOrigins []string
	Limits      Limits
}

func NewEngine(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	lim := d.Limits.withDefaults()

	r := server.NewRouter(d.Log, d.CORSOrigins, mdw.Recovery)
	r.Use(
		mdw.RequestID(),
		mdw.AccessLog(d.Log),
		mdw.Metrics(),
		mdw.RateLimit(rate.Limit(lim.RPS), lim.Burst),
		mdw.ConcurrencyLimit(lim.MaxConcurrent),
		mdw.MaxBodyBytes(lim.MaxBodyBytes),
		mdw.Timeout(lim.Timeout),
	)

	// 探活与指标不绑定会话
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", mdw.MetricsHandler())

	app := r.Group("", mdw.Session(d.Registry, d.JWT, d.Cookie, d.Log))

	api := app.Group("/api")
	mountAuthActions(api, d, lim)
	mountSessionActions(api)

	if d.Hub != nil {
		app.GET("/ws/session", d.Hub.Serve)
	}

	pages := handler.NewPageHandler(d.Log)
	mountPages(app, pages, d.Log)

	r.NoRoute(mdw.Session(d.Registry, d.JWT, d.Cookie, d.Log), func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusOK, resp.Error(resp.CodeNotFound, ""))
			return
		}
		pages.NotFound(c)
	})
	return r
}
