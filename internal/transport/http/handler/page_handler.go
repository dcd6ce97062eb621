// Package handler 页面渲染；访问控制已由 guard 完成，这里只读 guard.User。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"myduka-web/internal/dashboard"
	"myduka-web/internal/domain"
	"myduka-web/internal/guard"
	"myduka-web/internal/nav"
	"myduka-web/internal/session"
	"myduka-web/internal/transport/http/view"
)

const (
	KindDashboard = "dashboard"
	KindSection   = "section"
	KindLogin     = "login"
)

type PageHandler struct {
	log *zap.Logger
}

func NewPageHandler(l *zap.Logger) *PageHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &PageHandler{log: l}
}

func (h *PageHandler) render(c *gin.Context, u *domain.User, kind, title string, data any) {
	c.JSON(http.StatusOK, view.Page{
		View:  kind,
		Path:  c.Request.URL.Path,
		Title: title,
		User:  u,
		Nav:   nav.VisibleEntries(u, nav.Manifest()),
		Data:  data,
	})
}

// Home / 与 /dashboard：跳到角色首页
func (h *PageHandler) Home(c *gin.Context) {
	u := guard.User(c)
	if u == nil || !u.Role.Valid() {
		guard.NotFound(c)
		return
	}
	c.Redirect(http.StatusFound, u.Role.Home())
}

// Dashboard /dashboard/:role，路由层已按 :role 守卫
func (h *PageHandler) Dashboard(c *gin.Context) {
	u := guard.User(c)
	v, d := dashboard.Select(u)
	if !d.Allowed() {
		h.log.Debug("dashboard unavailable", zap.String("target", d.Target))
		if d.Target == c.Request.URL.Path {
			guard.NotFound(c)
			return
		}
		c.Redirect(http.StatusFound, d.Target)
		return
	}
	h.render(c, u, KindDashboard, v.Title, v)
}

// Section 清单里的普通页面
func (h *PageHandler) Section(e domain.NavigationEntry) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.render(c, guard.User(c), KindSection, e.Name, gin.H{"section": e.Name})
	}
}

// Login 已登录直接回首页；恢复中返回 loading
func (h *PageHandler) Login(c *gin.Context) {
	s := session.SnapshotFromContext(c.Request.Context())
	switch {
	case s.IsLoading:
		c.Header("Retry-After", guard.RetryAfter)
		c.JSON(http.StatusAccepted, view.Loading(c.Request.URL.Path))
	case s.User != nil && s.User.Role.Valid():
		c.Redirect(http.StatusFound, s.User.Role.Home())
	default:
		h.render(c, nil, KindLogin, "Sign in", nil)
	}
}

func (h *PageHandler) NotFound(c *gin.Context) { guard.NotFound(c) }
