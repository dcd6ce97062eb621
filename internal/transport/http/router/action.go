package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"myduka-web/internal/access"
	"myduka-web/internal/domain"
	"myduka-web/internal/guard"
	"myduka-web/internal/session"
	resp "myduka-web/internal/transport/http/response"
)

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"
	BindQuery Binder = "query"
	BindNone  Binder = "none"
)

// AErr 动作错误，Code 直接作为信封里的业务码
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func Conflict(msg string) error     { return &AErr{Code: resp.CodeConflict, Msg: msg} }
func BadGateway(msg string, err error) error {
	return &AErr{Code: resp.CodeBadGateway, Msg: msg, Err: err}
}
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// Action 一行注册的 JSON 接口：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string
	Path    string
	Binder  Binder
	Auth    bool           // 要求已登录
	Roles   domain.RoleSet // 非空时隐含 Auth
	Handler func(c *gin.Context, in *I) (O, error)
}

type EZ struct{ g *gin.RouterGroup }

func NewEZ(g *gin.RouterGroup) EZ { return EZ{g: g} }

func RegisterAction[I any, O any](e EZ, a Action[I, O], mw ...gin.HandlerFunc) {
	h := func(c *gin.Context) {
		// 1) 会话 / 角色
		snap := session.SnapshotFromContext(c.Request.Context())
		if a.Auth || !a.Roles.Empty() {
			if snap.IsLoading {
				c.JSON(http.StatusOK, resp.Error(resp.CodeServerBusy, "session is being restored"))
				return
			}
			switch d := access.Evaluate(snap.User, a.Roles); d.Kind {
			case domain.Allow:
			case domain.RedirectLogin:
				c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "unauthorized"))
				return
			default:
				c.JSON(http.StatusOK, resp.Error(resp.CodeForbidden, "forbidden"))
				return
			}
		}
		c.Set(guard.KeyUser, snap.User)

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, bindErr.Error()))
			return
		}

		// 3) 执行 + 错误映射
		out, err := a.Handler(c, &in)
		if err != nil {
			var ae *AErr
			if errors.As(err, &ae) {
				if ae.Err != nil {
					_ = c.Error(ae.Err)
				}
				c.JSON(http.StatusOK, resp.Error(ae.Code, ae.Error()))
				return
			}
			_ = c.Error(err)
			c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, "internal error"))
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	handlers := append(append([]gin.HandlerFunc(nil), mw...), h)
	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, handlers...)
	case http.MethodPut:
		e.g.PUT(a.Path, handlers...)
	case http.MethodDelete:
		e.g.DELETE(a.Path, handlers...)
	default:
		e.g.POST(a.Path, handlers...)
	}
}
