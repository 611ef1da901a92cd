package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ai-images-server-go/internal/platform/logging"
	"ai-images-server-go/internal/platform/observability"
)

// Handler drives one upgraded connection. The connection is closed when it returns.
type Handler func(ctx context.Context, conn *Connection) error

// Router upgrades HTTP requests and runs a Handler on the resulting connection.
type Router struct {
	hub    *Hub
	logger *logging.Logger

	upgrader  *websocket.Upgrader
	readLimit int64
}

type RouterOptions struct {
	HandshakeTimeout time.Duration
	CheckOrigin      func(r *http.Request) bool
	// ReadLimit caps a single inbound message.
	ReadLimit int64
}

func NewRouter(hub *Hub, logger *logging.Logger, opts RouterOptions) *Router {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	upgrader := &websocket.Upgrader{
		HandshakeTimeout: timeout,
		CheckOrigin:      opts.CheckOrigin,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	return &Router{
		hub:       hub,
		logger:    logger,
		upgrader:  upgrader,
		readLimit: opts.ReadLimit,
	}
}

// Serve upgrades the request and blocks until handler returns. The handler's
// context ends with the connection, not with the hijacked request.
func (r *Router) Serve(w http.ResponseWriter, req *http.Request, handler Handler) {
	ctx, spanEnd := observability.StartSpan(req.Context(), "transport.websocket", "serve")
	var spanErr error
	defer func() {
		spanEnd(spanErr)
	}()

	socket, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		spanErr = err
		observability.RecordMetric(ctx, "websocket.upgrade.error", 1, map[string]string{
			"component": "transport.websocket",
		})
		r.logger.ErrorTag("WebSocket", "握手失败: %v", err)
		return
	}
	if r.readLimit > 0 {
		socket.SetReadLimit(r.readLimit)
	}

	conn := NewConnection(ctx, uuid.NewString(), socket)
	r.hub.Register(conn)
	defer func() {
		r.hub.Unregister(conn.ID())
		_ = conn.Close()
	}()

	r.logger.DebugTag("WebSocket", "建立连接 %s", conn.ID())
	observability.RecordMetric(ctx, "websocket.connection.opened", 1, map[string]string{
		"component": "transport.websocket",
	})

	if err := handler(conn.Context(), conn); err != nil {
		spanErr = err
		r.logger.WarnTag("WebSocket", "连接 %s 异常结束: %v", conn.ID(), err)
	}
}
