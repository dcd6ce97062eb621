package ws_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myduka-web/internal/domain"
	"myduka-web/internal/session"
	"myduka-web/internal/transport/http/ws"
)

func init() { gin.SetMode(gin.TestMode) }

func setup(t *testing.T) (*ws.Hub, *session.Store, string) {
	t.Helper()
	hub := ws.NewHub(nil)
	st := session.NewStore()
	st.Subscribe(func(s session.Session) { hub.Publish("sid-1", s) })

	r := gin.New()
	r.GET("/ws/session", func(c *gin.Context) {
		c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), "sid-1", st))
		hub.Serve(c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, st, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
}

func read(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var m ws.Message
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestHub_PushesSnapshotThenChanges(t *testing.T) {
	hub, st, url := setup(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := read(t, conn)
	assert.Equal(t, "session", first.Type)
	assert.Nil(t, first.Session.User)
	assert.Equal(t, 1, hub.Len("sid-1"))

	st.Login(domain.User{ID: "u1", Role: domain.RoleAdmin, StoreID: "s1", IsActive: true})
	next := read(t, conn)
	require.NotNil(t, next.Session.User)
	assert.Equal(t, domain.RoleAdmin, next.Session.User.Role)

	st.Logout()
	assert.Nil(t, read(t, conn).Session.User)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, _, url := setup(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	read(t, conn)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Len("sid-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishWithoutClientsIsNoop(t *testing.T) {
	hub := ws.NewHub(nil)
	hub.Publish("nobody", session.Session{IsLoading: true})
	assert.Zero(t, hub.Len("nobody"))
}

func TestHub_RejectsUnboundRequest(t *testing.T) {
	hub := ws.NewHub(nil)
	r := gin.New()
	r.GET("/ws/session", hub.Serve)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ws/session", nil))
	assert.Equal(t, 401, w.Code)
}
