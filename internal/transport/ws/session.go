package ws

import (
	"context"
	"sync"
	"time"

	"vesta-voice/internal/platform/logging"
)

const handlerCloseTimeout = 5 * time.Second

// SessionHandler runs the application side of one websocket connection.
// Handle blocks until the connection ends; Close must unblock it.
type SessionHandler interface {
	Handle(ctx context.Context) error
	Close()
	SessionID() string
}

// Session binds one page connection to its handler from upgrade to teardown.
type Session struct {
	handler SessionHandler
	conn    *Connection
	logger  *logging.Logger
	opened  time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
	once   sync.Once
}

func newSession(parent context.Context, handler SessionHandler, conn *Connection, logger *logging.Logger) *Session {
	ctx, cancel := context.WithCancelCause(parent)
	return &Session{
		handler: handler,
		conn:    conn,
		logger:  logger,
		opened:  time.Now(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// ID is the handler's session id.
func (s *Session) ID() string { return s.handler.SessionID() }

// ClientID identifies the browser behind the connection.
func (s *Session) ClientID() string { return s.conn.ID() }

// Context is cancelled with the close reason when the session ends.
func (s *Session) Context() context.Context { return s.ctx }

// Done is closed once the handler's read loop has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Age 会话已存活时长
func (s *Session) Age() time.Duration { return time.Since(s.opened) }

// run blocks in the handler and tears the session down when it returns.
func (s *Session) run() error {
	defer close(s.done)
	err := s.handler.Handle(s.ctx)
	s.Close(ErrPeerGone)
	return err
}

// Close cancels the session context, then releases the handler and the
// connection. Only the first reason is kept.
func (s *Session) Close(reason error) {
	s.once.Do(func() {
		if reason == nil {
			reason = ErrSessionShutdown
		}
		s.cancel(reason)

		released := make(chan struct{})
		go func() {
			s.handler.Close()
			close(released)
		}()
		select {
		case <-released:
		case <-time.After(handlerCloseTimeout):
			s.logger.WarnTag(logging.TagWebSocket, "会话 %s 处理器关闭超时 (%v)", s.ID(), reason)
		}

		if err := s.conn.Close(); err != nil {
			s.logger.DebugTag(logging.TagWebSocket, "会话 %s 连接关闭: %v", s.ID(), err)
		}
	})
}

// Wait blocks until the read loop returned or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
