package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"safeher/pkg/logger"
)

// MessageRouter receives every message a client sends.
type MessageRouter interface {
	HandleClientMessage(ctx context.Context, sessionID string, msg Message) error
	SessionExists(sessionID string) bool
}

type Options struct {
	ReadBufferSize   int
	WriteBufferSize  int
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	WriteWait        time.Duration
	MaxMessageSize   int64
	AllowedOrigins   []string
}

func (o Options) withDefaults() Options {
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = (o.PongTimeout * 9) / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	return o
}

type Handler struct {
	hub      *Hub
	router   MessageRouter
	opts     Options
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHandler(hub *Hub, router MessageRouter, opts Options, log *logger.Logger) *Handler {
	opts = opts.withDefaults()
	return &Handler{
		hub:    hub,
		router: router,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   opts.ReadBufferSize,
			WriteBufferSize:  opts.WriteBufferSize,
			HandshakeTimeout: opts.HandshakeTimeout,
			CheckOrigin:      originChecker(opts.AllowedOrigins),
		},
		log: log,
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	sessionID := c.Param("id")
	if !h.router.SessionExists(sessionID) {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithSessionID(sessionID).WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, h.router, h.opts, sessionID)
	if !h.hub.join(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
