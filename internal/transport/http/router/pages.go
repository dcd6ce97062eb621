package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"myduka-web/internal/domain"
	"myduka-web/internal/guard"
	"myduka-web/internal/nav"
	"myduka-web/internal/transport/http/handler"
)

func mountPages(g *gin.RouterGroup, h *handler.PageHandler, l *zap.Logger) {
	gd := guard.New(l)

	g.GET("/login", h.Login)
	g.GET(domain.PathNotFound, h.NotFound)

	g.GET("/", gd.Page(0, h.Home))
	g.GET(domain.PathDashboard, gd.Page(0, h.Home))

	// 每个角色的仪表盘只对该角色开放
	g.GET(domain.PathDashboard+"/:role", func(c *gin.Context) {
		role, err := domain.ParseRole(c.Param("role"))
		if err != nil {
			guard.NotFound(c)
			return
		}
		gd.Page(domain.NewRoleSet(role), h.Dashboard)(c)
	})

	for _, e := range nav.Manifest() {
		if e.Name == nav.DashboardEntry {
			continue
		}
		g.GET(e.Path, gd.Page(e.RequiredRoles, h.Section(e)))
	}
}
