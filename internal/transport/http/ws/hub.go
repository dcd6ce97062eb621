// Package ws 把会话变化推送给同一客户端打开的 websocket 连接。
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"myduka-web/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// 默认 CheckOrigin 只接受同源
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Message struct {
	Type    string          `json:"type"`
	Session session.Session `json:"session"`
}

type Client struct {
	hub  *Hub
	sid  string
	conn *websocket.Conn
	send chan []byte
}

// Hub 按 sid 分组连接；Publish 不阻塞，发送队列满的连接直接断开
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*Client]struct{}
	log     *zap.Logger
}

func NewHub(l *zap.Logger) *Hub {
	if l == nil {
		l = zap.NewNop()
	}
	return &Hub{clients: make(map[string]map[*Client]struct{}), log: l}
}

// Publish 签名与 session.Listener 一致
func (h *Hub) Publish(sid string, s session.Session) {
	b, err := encode(s)
	if err != nil {
		h.log.Error("ws encode", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[sid] {
		select {
		case c.send <- b:
		default:
			h.dropLocked(c)
		}
	}
}

// Len sid 下的连接数
func (h *Hub) Len(sid string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[sid])
}

// Close 断开全部连接
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.dropLocked(c)
		}
	}
}

// Serve GET /ws/session；连接建立后先推当前快照
func (h *Hub) Serve(c *gin.Context) {
	sid, st := session.FromContext(c.Request.Context())
	if st == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	cl := &Client{hub: h, sid: sid, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	set, ok := h.clients[sid]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[sid] = set
	}
	set[cl] = struct{}{}
	if b, err := encode(st.Session()); err == nil {
		cl.send <- b
	}
	h.mu.Unlock()

	go cl.writePump()
	go cl.readPump()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *Client) {
	set, ok := h.clients[c.sid]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.sid)
	}
}

func encode(s session.Session) ([]byte, error) {
	return json.Marshal(Message{Type: "session", Session: s})
}

func (c *Client) writePump() {
	tk := time.NewTicker(pingPeriod)
	defer func() {
		tk.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-tk.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理 pong 和关闭；客户端发来的消息忽略
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("ws read", zap.String("sid", c.sid[:min(8, len(c.sid))]), zap.Error(err))
			}
			return
		}
	}
}
