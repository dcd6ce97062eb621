package router

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"myduka-web/internal/backend"
	"myduka-web/internal/domain"
	"myduka-web/internal/guard"
	"myduka-web/internal/nav"
	"myduka-web/internal/session"
	mdw "myduka-web/internal/transport/http/middleware"
)

// 邀请关系：merchant 建 admin，admin 建 clerk / cashier
var invitable = map[domain.Role]domain.RoleSet{
	domain.RoleMerchant: domain.NewRoleSet(domain.RoleAdmin),
	domain.RoleAdmin:    domain.NewRoleSet(domain.RoleClerk, domain.RoleCashier),
}

type sessionOut struct {
	User      *domain.User `json:"user"`
	IsLoading bool         `json:"isLoading"`
	Home      string       `json:"home,omitempty"`
}

func toSessionOut(s session.Session) sessionOut {
	out := sessionOut{User: s.User, IsLoading: s.IsLoading}
	if s.User != nil && s.User.Role.Valid() {
		out.Home = s.User.Role.Home()
	}
	return out
}

func mountAuthActions(api *gin.RouterGroup, d Deps, lim Limits) {
	ez := NewEZ(api)
	loginLimit := mdw.RateLimitPerIP(rate.Limit(lim.LoginRPS), lim.LoginBurst, 10*time.Minute)

	type loginIn struct {
		Email    string `json:"email"    binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	RegisterAction(ez, Action[loginIn, sessionOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (sessionOut, error) {
			res, err := d.Auth.Login(c.Request.Context(), strings.TrimSpace(in.Email), in.Password)
			if err != nil {
				return sessionOut{}, backendErr(err)
			}
			u := res.User
			if err := u.CanSignIn(); err != nil {
				if errors.Is(err, domain.ErrInactiveUser) {
					return sessionOut{}, Forbidden("account is deactivated")
				}
				return sessionOut{}, Forbidden(err.Error())
			}
			tok := res.BearerToken()
			if tok == "" {
				return sessionOut{}, BadGateway("backend returned no token", nil)
			}
			sid := c.GetString(mdw.KeySID)
			if err := d.Registry.Login(c.Request.Context(), sid, tok, u); err != nil {
				return sessionOut{}, Internal("save session", err)
			}
			d.Log.Info("login",
				zap.String("uid", u.ID),
				zap.Stringer("role", u.Role))
			return toSessionOut(session.Session{User: &u}), nil
		},
	}, loginLimit)

	type registerIn struct {
		Email    string `json:"email"    binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Name     string `json:"name"     binding:"required,max=64"`
		Role     string `json:"role"     binding:"required"`
		StoreID  string `json:"store_id" binding:"omitempty,max=64"`
	}
	type registerOut struct {
		Email string      `json:"email"`
		Role  domain.Role `json:"role"`
	}
	RegisterAction(ez, Action[registerIn, registerOut]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: BindJSON,
		Roles:  domain.NewRoleSet(domain.RoleMerchant, domain.RoleAdmin),
		Handler: func(c *gin.Context, in *registerIn) (registerOut, error) {
			inviter := guard.User(c)
			role, err := domain.ParseRole(in.Role)
			if err != nil {
				return registerOut{}, BadRequest(err.Error())
			}
			if !invitable[inviter.Role].Has(role) {
				return registerOut{}, Forbidden(inviter.Role.String() + " cannot create " + role.String())
			}
			storeID := strings.TrimSpace(in.StoreID)
			if inviter.Role == domain.RoleAdmin {
				storeID = inviter.StoreID
			}
			if storeID == "" {
				return registerOut{}, BadRequest("store_id is required")
			}

			sid := c.GetString(mdw.KeySID)
			tok, err := d.Registry.Token(c.Request.Context(), sid)
			if err != nil {
				return registerOut{}, Internal("load session token", err)
			}
			if tok == "" {
				return registerOut{}, Unauthorized("session expired")
			}
			err = d.Auth.Register(c.Request.Context(), tok, backend.RegisterRequest{
				Email:    strings.TrimSpace(in.Email),
				Password: in.Password,
				Name:     strings.TrimSpace(in.Name),
				Role:     role,
				StoreID:  storeID,
			})
			if err != nil {
				return registerOut{}, backendErr(err)
			}
			return registerOut{Email: in.Email, Role: role}, nil
		},
	})

	RegisterAction(ez, Action[struct{}, sessionOut]{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Binder: BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (sessionOut, error) {
			if err := d.Registry.Logout(c.Request.Context(), c.GetString(mdw.KeySID)); err != nil {
				// 会话已清空，token 删除失败只记录
				d.Log.Warn("logout: delete token", zap.Error(err))
			}
			return sessionOut{}, nil
		},
	})
}

func mountSessionActions(api *gin.RouterGroup) {
	ez := NewEZ(api)

	RegisterAction(ez, Action[struct{}, sessionOut]{
		Method: http.MethodGet,
		Path:   "/session",
		Binder: BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (sessionOut, error) {
			return toSessionOut(session.SnapshotFromContext(c.Request.Context())), nil
		},
	})

	type navOut struct {
		Entries []domain.NavigationEntry `json:"entries"`
	}
	RegisterAction(ez, Action[struct{}, navOut]{
		Method: http.MethodGet,
		Path:   "/navigation",
		Binder: BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (navOut, error) {
			return navOut{Entries: nav.VisibleEntries(guard.User(c), nav.Manifest())}, nil
		},
	})
}

func backendErr(err error) error {
	var se *backend.StatusError
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		return Unauthorized("invalid credentials")
	case errors.As(err, &se) && se.Code == http.StatusConflict:
		return Conflict(se.Msg)
	case errors.As(err, &se) && se.Code >= 400 && se.Code < 500:
		return BadRequest(se.Msg)
	}
	return BadGateway("backend unavailable", err)
}
