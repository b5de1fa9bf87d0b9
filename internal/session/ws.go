package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Mikey786/Mediasoup/internal/config"
	pkglog "github.com/Mikey786/Mediasoup/pkg/log"
)

// WSConn adapts a gorilla websocket connection to the Conn interface.
// Writes go through a buffered channel drained by WritePump; reads stay on
// the caller's goroutine so inbound messages are handled one at a time.
type WSConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	cfg  config.WebSocketConfig
	once sync.Once
}

// NewWSConn wraps an upgraded websocket connection.
func NewWSConn(conn *websocket.Conn, cfg config.WebSocketConfig) *WSConn {
	c := &WSConn{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 256),
		cfg:  cfg,
	}

	conn.SetReadLimit(cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	return c
}

func (c *WSConn) ID() string {
	return c.id
}

func (c *WSConn) Deliver(data []byte) {
	select {
	case c.send <- data:
	default:
		// Send buffer full: the client is too slow, drop rather than block
		// the publisher.
		l := pkglog.L()
		l.Warn().Str("conn_id", c.id).Msg("send buffer full, dropping message")
	}
}

func (c *WSConn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Deliver(data)
	return nil
}

// Close sends a close frame with the given code and closes the connection.
func (c *WSConn) Close(code int, reason string) {
	c.once.Do(func() {
		deadline := time.Now().Add(c.cfg.WriteWait)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.conn.Close()
	})
}

// Receive reads the next text message from the connection. It returns an
// error when the connection is closed or the read deadline expires.
func (c *WSConn) Receive() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// WritePump drains the send channel onto the connection and keeps the
// connection alive with pings. Run it on its own goroutine; it exits when
// the connection closes.
func (c *WSConn) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ Conn = (*WSConn)(nil)
