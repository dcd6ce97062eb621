package router_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"myduka-web/internal/backend"
	"myduka-web/internal/core/auth"
	"myduka-web/internal/domain"
	"myduka-web/internal/mocks"
	"myduka-web/internal/session"
	mdw "myduka-web/internal/transport/http/middleware"
	"myduka-web/internal/transport/http/router"
)

func init() { gin.SetMode(gin.TestMode) }

type fixture struct {
	engine   *gin.Engine
	auth     *mocks.MockAuthenticator
	profiles *mocks.MockProfileFetcher
	tokens   *session.MemoryTokens
	jwt      *auth.JWTer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		auth:     mocks.NewMockAuthenticator(ctrl),
		profiles: mocks.NewMockProfileFetcher(ctrl),
		tokens:   session.NewMemoryTokens(),
		jwt:      &auth.JWTer{Secret: []byte("k"), Issuer: "test", TTL: time.Hour},
	}
	reg := session.NewRegistry(f.tokens, f.profiles, session.Options{RestoreTimeout: time.Second}, nil)
	f.engine = router.NewEngine(router.Deps{
		Registry: reg,
		JWT:      f.jwt,
		Cookie:   mdw.CookieOptions{Name: "sid", MaxAge: time.Hour},
		Auth:     f.auth,
		Limits:   router.Limits{LoginRPS: 100, LoginBurst: 100},
	})
	return f
}

// browser 带着 cookie 的客户端
type browser struct {
	t      *testing.T
	f      *fixture
	cookie *http.Cookie
}

func (f *fixture) browser(t *testing.T) *browser { return &browser{t: t, f: f} }

func (b *browser) do(method, path, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	w := httptest.NewRecorder()
	b.f.engine.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "sid" {
			b.cookie = ck
		}
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder { return b.do(http.MethodGet, path, "") }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func user(id string, r domain.Role, store string) domain.User {
	return domain.User{ID: id, Name: id, Email: id + "@duka.test", Role: r, StoreID: store, IsActive: true}
}

func (b *browser) login(u domain.User, token string) {
	b.t.Helper()
	b.f.auth.EXPECT().Login(gomock.Any(), u.Email, "pw").Return(backend.LoginResult{User: u, Token: token}, nil)
	e := decode(b.t, b.do(http.MethodPost, "/api/auth/login", `{"email":"`+u.Email+`","password":"pw"}`))
	require.Equal(b.t, 0, e.Code, e.Msg)
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, target string) {
	t.Helper()
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, target, w.Header().Get("Location"))
}

func TestPages_AnonymousGoesToLogin(t *testing.T) {
	b := newFixture(t).browser(t)
	for _, p := range []string{"/", "/dashboard", "/dashboard/admin", "/reports", "/profile"} {
		assertRedirect(t, b.get(p), "/login")
	}
	w := b.get("/login")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"view":"login"`)
}

func TestPages_MerchantFlow(t *testing.T) {
	b := newFixture(t).browser(t)
	b.login(user("mo", domain.RoleMerchant, ""), "tok-m")

	assertRedirect(t, b.get("/"), "/dashboard/merchant")
	assertRedirect(t, b.get("/dashboard"), "/dashboard/merchant")
	assertRedirect(t, b.get("/login"), "/dashboard/merchant")

	w := b.get("/dashboard/merchant")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"view":"dashboard"`)
	assert.Contains(t, w.Body.String(), `"title":"Merchant Dashboard"`)
	assert.Contains(t, w.Body.String(), `"path":"/dashboard/merchant"`)

	assert.Equal(t, http.StatusOK, b.get("/reports").Code)
	assertRedirect(t, b.get("/pos"), "/dashboard/merchant")
	assertRedirect(t, b.get("/dashboard/cashier"), "/dashboard/merchant")
}

func TestPages_CashierDeniedReports(t *testing.T) {
	b := newFixture(t).browser(t)
	b.login(user("cy", domain.RoleCashier, "s1"), "tok-c")

	assertRedirect(t, b.get("/reports"), "/dashboard/cashier")
	assert.Equal(t, http.StatusOK, b.get("/pos").Code)
}

func TestPages_ClerkHasOwnDashboard(t *testing.T) {
	b := newFixture(t).browser(t)
	b.login(user("cl", domain.RoleClerk, "s1"), "tok-cl")

	w := b.get("/dashboard/clerk")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Clerk Dashboard"`)
	assert.NotContains(t, w.Body.String(), `"name":"Dashboard"`)
}

func TestPages_NotFound(t *testing.T) {
	b := newFixture(t).browser(t)
	b.login(user("ad", domain.RoleAdmin, "s1"), "tok-a")

	w := b.get("/dashboard/owner")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"view":"not_found"`)

	assert.Equal(t, http.StatusNotFound, b.get("/nowhere").Code)

	e := decode(t, b.get("/api/nowhere"))
	assert.Equal(t, 404, e.Code)
}

func TestPages_LoadingWhileRestoring(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tokens.Put(context.Background(), "sid-r", "tok-r", 0))
	tok, err := f.jwt.Issue("sid-r")
	require.NoError(t, err)

	release := make(chan struct{})
	f.profiles.EXPECT().Profile(gomock.Any(), "tok-r").DoAndReturn(func(ctx context.Context, _ string) (domain.User, error) {
		<-release
		return user("ad", domain.RoleAdmin, "s1"), nil
	})

	b := f.browser(t)
	b.cookie = &http.Cookie{Name: "sid", Value: tok}
	w := b.get("/clerks")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Equal(t, http.StatusAccepted, b.get("/login").Code)

	close(release)
	assert.Eventually(t, func() bool { return b.get("/clerks").Code == http.StatusOK }, time.Second, 10*time.Millisecond)
}

func TestAPI_LoginRejectsInactive(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	u := user("gone", domain.RoleAdmin, "s1")
	u.IsActive = false
	f.auth.EXPECT().Login(gomock.Any(), u.Email, "pw").Return(backend.LoginResult{User: u, Token: "t"}, nil)

	e := decode(t, b.do(http.MethodPost, "/api/auth/login", `{"email":"gone@duka.test","password":"pw"}`))
	assert.Equal(t, 403, e.Code)
	assertRedirect(t, b.get("/clerks"), "/login")
}

func TestAPI_LoginBadCredentials(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	f.auth.EXPECT().Login(gomock.Any(), "x@duka.test", "bad").Return(backend.LoginResult{}, backend.ErrUnauthorized)

	e := decode(t, b.do(http.MethodPost, "/api/auth/login", `{"email":"x@duka.test","password":"bad"}`))
	assert.Equal(t, 401, e.Code)
}

func TestAPI_LoginValidatesBody(t *testing.T) {
	b := newFixture(t).browser(t)
	e := decode(t, b.do(http.MethodPost, "/api/auth/login", `{"email":"not-an-email"}`))
	assert.Equal(t, 400, e.Code)
}

func TestAPI_SessionAndNavigation(t *testing.T) {
	b := newFixture(t).browser(t)

	e := decode(t, b.get("/api/navigation"))
	assert.JSONEq(t, `{"entries":[]}`, string(e.Data))

	e = decode(t, b.get("/api/session"))
	assert.JSONEq(t, `{"user":null,"isLoading":false}`, string(e.Data))

	b.login(user("cy", domain.RoleCashier, "s1"), "tok-c")
	e = decode(t, b.get("/api/session"))
	assert.Contains(t, string(e.Data), `"home":"/dashboard/cashier"`)

	e = decode(t, b.get("/api/navigation"))
	var out struct {
		Entries []domain.NavigationEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(e.Data, &out))
	require.NotEmpty(t, out.Entries)
	assert.Equal(t, "/dashboard/cashier", out.Entries[0].Path)
}

func TestAPI_Logout(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	b.login(user("ad", domain.RoleAdmin, "s1"), "tok-a")
	assert.Equal(t, http.StatusOK, b.get("/clerks").Code)

	e := decode(t, b.do(http.MethodPost, "/api/auth/logout", ""))
	assert.Equal(t, 0, e.Code)
	assertRedirect(t, b.get("/clerks"), "/login")

	claims, err := f.jwt.Parse(b.cookie.Value)
	require.NoError(t, err)
	tok, err := f.tokens.Get(context.Background(), claims.SID)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestAPI_RegisterByAdminInheritsStore(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	b.login(user("ad", domain.RoleAdmin, "store-7"), "tok-a")

	f.auth.EXPECT().Register(gomock.Any(), "tok-a", backend.RegisterRequest{
		Email: "new@duka.test", Password: "secret1", Name: "New", Role: domain.RoleCashier, StoreID: "store-7",
	}).Return(nil)

	e := decode(t, b.do(http.MethodPost, "/api/auth/register",
		`{"email":"new@duka.test","password":"secret1","name":"New","role":"cashier","store_id":"other"}`))
	assert.Equal(t, 0, e.Code, e.Msg)
	assert.JSONEq(t, `{"email":"new@duka.test","role":"cashier"}`, string(e.Data))
}

func TestAPI_RegisterRules(t *testing.T) {
	cases := []struct {
		name    string
		inviter domain.User
		body    string
		code    int
	}{
		{"admin cannot create admin", user("ad", domain.RoleAdmin, "s1"),
			`{"email":"a@duka.test","password":"secret1","name":"A","role":"admin"}`, 403},
		{"merchant cannot create clerk", user("mo", domain.RoleMerchant, ""),
			`{"email":"a@duka.test","password":"secret1","name":"A","role":"clerk"}`, 403},
		{"merchant must pick store", user("mo", domain.RoleMerchant, ""),
			`{"email":"a@duka.test","password":"secret1","name":"A","role":"admin"}`, 400},
		{"unknown role", user("mo", domain.RoleMerchant, ""),
			`{"email":"a@duka.test","password":"secret1","name":"A","role":"owner"}`, 400},
		{"clerk cannot register", user("cl", domain.RoleClerk, "s1"),
			`{"email":"a@duka.test","password":"secret1","name":"A","role":"cashier"}`, 403},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newFixture(t).browser(t)
			b.login(tc.inviter, "tok")
			e := decode(t, b.do(http.MethodPost, "/api/auth/register", tc.body))
			assert.Equal(t, tc.code, e.Code, e.Msg)
		})
	}
}

func TestAPI_RegisterConflict(t *testing.T) {
	f := newFixture(t)
	b := f.browser(t)
	b.login(user("mo", domain.RoleMerchant, ""), "tok-m")
	f.auth.EXPECT().Register(gomock.Any(), "tok-m", gomock.Any()).
		Return(&backend.StatusError{Code: http.StatusConflict, Msg: "email already registered"})

	e := decode(t, b.do(http.MethodPost, "/api/auth/register",
		`{"email":"a@duka.test","password":"secret1","name":"A","role":"admin","store_id":"s2"}`))
	assert.Equal(t, 409, e.Code)
	assert.Equal(t, "email already registered", e.Msg)
}

func TestAPI_RegisterRequiresLogin(t *testing.T) {
	b := newFixture(t).browser(t)
	e := decode(t, b.do(http.MethodPost, "/api/auth/register",
		`{"email":"a@duka.test","password":"secret1","name":"A","role":"admin"}`))
	assert.Equal(t, 401, e.Code)
}

func TestHealthHasNoSession(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
}
