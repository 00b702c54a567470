package ws

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"terrafort/server/internal/session"
)

const (
	writeWait              = 10 * time.Second
	pongWait               = 60 * time.Second
	pingPeriod             = (pongWait * 9) / 10
	defaultMaxMessageBytes = 4096
)

var errSessionClosed = errors.New("ws: session closed")

// wsConn adapts a gorilla connection to session.Conn. Close may be called
// from the session manager while the pumps are still running.
type wsConn struct {
	conn *websocket.Conn
	once sync.Once
	err  error
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *wsConn) Close() error {
	c.once.Do(func() {
		deadline := time.Now().Add(writeWait)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, message, deadline)
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.err = err
		}
	})
	return c.err
}

// Serve registers conn with the engine and pumps frames in both directions.
// The session is disconnected when either pump stops.
func (h *Handler) Serve(ctx context.Context, conn *websocket.Conn) {
	if h == nil || h.engine == nil || conn == nil {
		return
	}
	adapter := &wsConn{conn: conn}
	s := h.engine.Connect(adapter)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.readPump(s, conn)
	})
	g.Go(func() error {
		return h.writePump(ctx, s, conn)
	})

	reason := "closed"
	if err := g.Wait(); err != nil && !errors.Is(err, errSessionClosed) {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			h.logger.Printf("session %s ended: %v", s.ID(), err)
		}
		reason = err.Error()
	}
	h.engine.Disconnect(s, reason)
}

func (h *Handler) readPump(s *session.Session, conn *websocket.Conn) error {
	conn.SetReadLimit(h.maxBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if s.Closed() {
				return errSessionClosed
			}
			// Wake the write pump so the group can finish.
			_ = conn.Close()
			return err
		}
		// Rejected messages are logged by the session manager.
		_ = h.engine.Receive(s, payload)
	}
}

func (h *Handler) writePump(ctx context.Context, s *session.Session, conn *websocket.Conn) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return ctx.Err()
		case <-s.Done():
			return errSessionClosed
		case frame := <-s.Outbox():
			messageType := websocket.TextMessage
			if frame.Binary {
				messageType = websocket.BinaryMessage
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(messageType, frame.Data); err != nil {
				_ = conn.Close()
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return err
			}
		}
	}
}
