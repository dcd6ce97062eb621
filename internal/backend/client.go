// Package backend MyDuka REST 后端（认证 + 用户资料）的 HTTP 客户端。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"myduka-web/internal/domain"
)

var (
	ErrUnauthorized     = errors.New("backend: unauthorized")
	ErrUnexpectedStatus = errors.New("backend: unexpected status")
)

// StatusError 非 2xx 响应；errors.Is(err, ErrUnexpectedStatus) 成立
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("backend: status %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("backend: status %d", e.Code)
}

func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

type Options struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
	Logger   *zap.Logger
}

type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = o.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = o.Timeout
	rc.Logger = nil
	if o.Logger != nil {
		rc.Logger = leveled{o.Logger.Sugar()}
	}
	// 只对网络错误和 5xx 重试，4xx 直接返回
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		}
		return resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented, nil
	}
	// 重试耗尽时把最后一次响应交回调用方，而不是包成通用错误
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		http:    rc.StandardClient(),
		baseURL: strings.TrimRight(o.BaseURL, "/"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult 后端登录返回；token 字段兼容 token / access_token
type LoginResult struct {
	User        domain.User `json:"user"`
	Token       string      `json:"token"`
	AccessToken string      `json:"access_token"`
}

func (r LoginResult) BearerToken() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

// Login POST /api/auth/login；凭据错误返回 ErrUnauthorized
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

type RegisterRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	StoreID  string      `json:"store_id,omitempty"`
}

// Register POST /api/auth/register，以邀请人的 token 调用
func (c *Client) Register(ctx context.Context, token string, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register", token, req, nil)
}

// Profile GET /api/users/profile
func (c *Client) Profile(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, ErrUnauthorized
	}
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/api/users/profile", token, nil, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{Code: resp.StatusCode, Msg: errorMessage(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// 后端错误体常见 {"message":..} 或 {"error":..}
func errorMessage(raw []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(raw, &e) != nil {
		return ""
	}
	for _, s := range []string{e.Message, e.Error, e.Msg} {
		if s != "" {
			return s
		}
	}
	return ""
}

// leveled 把 retryablehttp 的日志接到 zap
type leveled struct{ s *zap.SugaredLogger }

func (l leveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveled) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
