package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/postways-next/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 45 * time.Second
	maxReadBytes = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 浏览器端跨域由 CORS 中间件统一控制，这里不再二次校验
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client 单个 WebSocket 连接
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	topic  string
	userID uint
	send   chan []byte

	closeOnce sync.Once
}

// Serve 升级 HTTP 连接并接入广播中心
// userID 为 0 表示匿名订阅者，只收事件不做回声抑制。
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string, userID uint) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &Client{
		hub:    h,
		conn:   conn,
		topic:  topic,
		userID: userID,
		send:   make(chan []byte, h.sendBuffer()),
	}
	h.register(topic, client)
	go client.writePump()
	go client.readPump()
	return nil
}

func (c *Client) closeSlow() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c.topic, c)
		c.conn.Close()
	})
}

// readPump 只消费控制帧，收到任何错误即注销连接
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c.topic, c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugw("连接异常断开", "topic", c.topic, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout()))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
