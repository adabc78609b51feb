package ws

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vesta-voice/internal/platform/logging"
	"vesta-voice/internal/platform/observability"
)

const defaultHandshakeTimeout = 10 * time.Second

// HandlerBuilder creates the page session for an upgraded connection.
type HandlerBuilder func(conn *Connection, req *http.Request) (SessionHandler, error)

// RouterOptions configures the websocket router.
type RouterOptions struct {
	HandshakeTimeout time.Duration
	// AllowOrigins 为空或包含 "*" 时不限制来源；CheckOrigin 优先
	AllowOrigins []string
	CheckOrigin  func(r *http.Request) bool
}

// Router upgrades page requests and runs one Session per connection.
type Router struct {
	hub              *Hub
	logger           *logging.Logger
	upgrader         websocket.Upgrader
	handshakeTimeout time.Duration
	builder          atomic.Pointer[HandlerBuilder]
}

// NewRouter constructs a websocket router over hub.
func NewRouter(hub *Hub, logger *logging.Logger, opts RouterOptions) *Router {
	check := opts.CheckOrigin
	if check == nil {
		check = originChecker(opts.AllowOrigins)
	}
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	return &Router{
		hub:              hub,
		logger:           logger,
		upgrader:         websocket.Upgrader{CheckOrigin: check, HandshakeTimeout: timeout},
		handshakeTimeout: timeout,
	}
}

// SetHandlerBuilder installs the builder; until then upgrades are refused.
func (r *Router) SetHandlerBuilder(builder HandlerBuilder) {
	r.builder.Store(&builder)
}

// Hub returns the session hub.
func (r *Router) Hub() *Hub {
	return r.hub
}

// Handle upgrades the request and serves the page session in the background.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	builder := r.builder.Load()
	if builder == nil || *builder == nil {
		http.Error(w, "websocket handler not ready", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeoutCause(req.Context(), r.handshakeTimeout, ErrHandshakeTimeout)
	defer cancel()
	ctx, end := observability.StartSpan(ctx, "transport.websocket", "handshake")
	session, err := r.accept(ctx, w, req.WithContext(ctx), *builder)
	end(err)
	if err != nil {
		return
	}
	go r.serve(session)
}

func (r *Router) accept(ctx context.Context, w http.ResponseWriter, req *http.Request, build HandlerBuilder) (*Session, error) {
	socket, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.record(ctx, "websocket.upgrade.error", "")
		r.logger.WarnTag(logging.TagWebSocket, "握手失败 remote=%s origin=%s: %v", req.RemoteAddr, req.Header.Get("Origin"), err)
		return nil, err
	}

	conn := NewConnection(clientID(req), socket)
	handler, err := build(conn, req)
	if err == nil && handler == nil {
		err = ErrNoHandler
	}
	if err != nil {
		r.record(ctx, "websocket.connection.error", "handler_creation_failed")
		r.logger.ErrorTag(logging.TagWebSocket, "创建页面会话失败 client=%s: %v", conn.ID(), err)
		_ = conn.Close()
		return nil, err
	}

	// 会话生命周期长于握手请求
	session := newSession(context.WithoutCancel(ctx), handler, conn, r.logger)
	r.hub.Register(session)
	r.record(ctx, "websocket.connection.opened", "")
	r.logger.InfoTag(logging.TagWebSocket, "页面会话 %s 已建立 client=%s remote=%s", session.ID(), conn.ID(), req.RemoteAddr)
	return session, nil
}

func (r *Router) serve(session *Session) {
	err := session.run()
	r.hub.Unregister(session.ID())

	reason := ""
	if err != nil {
		reason = "handler_error"
		r.logger.WarnTag(logging.TagWebSocket, "页面会话 %s 异常结束: %v", session.ID(), err)
	}
	r.record(session.Context(), "websocket.connection.closed", reason)
	r.logger.InfoTag(logging.TagWebSocket, "页面会话 %s 结束 client=%s，持续 %s", session.ID(), session.ClientID(), session.Age().Truncate(time.Millisecond))
}

func (r *Router) record(ctx context.Context, name, reason string) {
	attrs := map[string]string{"component": "transport.websocket"}
	if reason != "" {
		attrs["reason"] = reason
	}
	observability.RecordMetric(ctx, name, 1, attrs)
}

// clientID 依次取 Client-Id 请求头、client_id 查询参数，都没有时生成随机 ID
func clientID(req *http.Request) string {
	if id := strings.TrimSpace(req.Header.Get("Client-Id")); id != "" {
		return id
	}
	if id := strings.TrimSpace(req.URL.Query().Get("client_id")); id != "" {
		return id
	}
	return uuid.NewString()
}

// originChecker accepts requests without an Origin header (non-browser
// peers) and origins listed in allowed, compared by scheme and host.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
