package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsConn serializes writes to one websocket connection.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(messageType, data)
}

// WebsocketHandler upgrades the request and streams broker messages as text frames.
// Incoming frames are read only to process pongs and detect closure.
func (b *Broker) WebsocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Warn("⚠️  Websocket upgrade failed", zap.Error(err))
			return
		}
		conn := &wsConn{conn: raw}
		defer raw.Close()

		client, err := b.subscribe(r.Context())
		if err != nil {
			return
		}
		defer b.unsubscribe(client)

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			raw.SetReadLimit(512)
			_ = raw.SetReadDeadline(time.Now().Add(wsPongWait))
			raw.SetPongHandler(func(string) error {
				return raw.SetReadDeadline(time.Now().Add(wsPongWait))
			})
			for {
				if _, _, err := raw.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-closed:
				return
			case msg, ok := <-client:
				if !ok {
					_ = conn.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
					return
				}
				if err := conn.write(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
