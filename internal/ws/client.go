package ws

import (
	"net/http"
	"time"

	"callpulse/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy for the dashboard is enforced at the HTTP CORS layer.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Client is one connected dashboard socket.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	callID string
}

// Serve upgrades the request and streams events until the peer goes away.
// An optional ?call_id= query narrows the feed to a single call.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromGin(c).Warn("ws upgrade failed", "err", err)
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 64),
		callID: c.Query("call_id"),
	}
	select {
	case h.register <- client:
	case <-h.done:
		// Hub already stopped; never strand the connection.
		_ = conn.Close()
		return
	}

	go client.writePump()
	client.readPump(h)
}

// readPump discards inbound frames; its job is noticing disconnects.
func (cl *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- cl:
		case <-h.done:
		}
		_ = cl.conn.Close()
	}()
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (cl *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
