// Package guard 受保护页面的访问判定与唯一的跳转出口。
package guard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"myduka-web/internal/access"
	"myduka-web/internal/domain"
	"myduka-web/internal/session"
	"myduka-web/internal/transport/http/view"
)

type State uint8

const (
	Loading State = iota
	Unauthenticated
	Forbidden
	Authorized
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case Authorized:
		return "authorized"
	}
	return "invalid"
}

type Outcome struct {
	State    State
	Decision domain.Decision
}

// Resolve 纯函数；恢复中一律 Loading，不做跳转
func Resolve(s session.Session, required domain.RoleSet) Outcome {
	if s.IsLoading {
		return Outcome{State: Loading}
	}
	d := access.Evaluate(s.User, required)
	switch d.Kind {
	case domain.Allow:
		return Outcome{State: Authorized, Decision: d}
	case domain.RedirectLogin:
		return Outcome{State: Unauthenticated, Decision: d}
	}
	return Outcome{State: Forbidden, Decision: d}
}

const KeyUser = "user"

// RetryAfter Loading 响应的 Retry-After 秒数
const RetryAfter = "1"

var decisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "guard_decisions_total", Help: "Route guard outcomes"},
	[]string{"state"},
)

func init() { prometheus.MustRegister(decisions) }

type Guard struct {
	log *zap.Logger
}

func New(l *zap.Logger) *Guard {
	if l == nil {
		l = zap.NewNop()
	}
	return &Guard{log: l}
}

// Page 包装页面 handler：每次请求重新判定，拒绝时恰好一次 302
func (g *Guard) Page(required domain.RoleSet, render gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		snap := session.SnapshotFromContext(c.Request.Context())
		out := Resolve(snap, required)
		decisions.WithLabelValues(out.State.String()).Inc()

		switch out.State {
		case Loading:
			c.Header("Retry-After", RetryAfter)
			c.AbortWithStatusJSON(http.StatusAccepted, view.Loading(path))
			return
		case Authorized:
			c.Set(KeyUser, snap.User)
			render(c)
			return
		}

		target := out.Decision.Target
		g.log.Debug("guard deny",
			zap.String("state", out.State.String()),
			zap.String("path", path),
			zap.String("required", required.String()),
			zap.String("target", target))
		if target == path {
			// 目标就是当前页时不再跳转
			NotFound(c)
			return
		}
		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}

// User Page 放行后由 render 读取
func User(c *gin.Context) *domain.User {
	v, ok := c.Get(KeyUser)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}

func NotFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, view.NotFound(c.Request.URL.Path))
}
