// Package ws serves game sessions over gorilla websockets.
package ws

import (
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"terrafort/server/internal/session"
)

// Engine is the part of the simulation a websocket connection talks to.
type Engine interface {
	Connect(conn session.Conn) *session.Session
	Receive(s *session.Session, data []byte) error
	Disconnect(s *session.Session, reason string)
}

type HandlerConfig struct {
	Logger *log.Logger
	// MaxMessageBytes caps inbound frames. Zero uses defaultMaxMessageBytes.
	MaxMessageBytes int64
}

type Handler struct {
	engine   Engine
	logger   *log.Logger
	upgrader websocket.Upgrader
	maxBytes int64
}

func NewHandler(engine Engine, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	maxBytes := cfg.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxMessageBytes
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		engine:   engine,
		logger:   logger,
		upgrader: upgrader,
		maxBytes: maxBytes,
	}
}

// Handle upgrades the request and serves the session until either side
// closes the connection.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	h.Serve(r.Context(), conn)
}
