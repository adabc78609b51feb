package ws

import (
	"context"
	"sync"

	"vesta-voice/internal/platform/logging"
)

// Hub tracks the live page sessions of one router.
type Hub struct {
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub 创建会话表
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{logger: logger, sessions: make(map[string]*Session)}
}

// Register adds session under its id.
func (h *Hub) Register(session *Session) {
	if session == nil {
		return
	}
	h.mu.Lock()
	h.sessions[session.ID()] = session
	h.mu.Unlock()
}

// Unregister drops id; unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
}

// Count 当前会话数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll closes every session with reason and waits, bounded by the handler
// close deadline, for their read loops to return.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for id, s := range h.sessions {
		sessions = append(sessions, s)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close(reason)
			ctx, cancel := context.WithTimeout(context.Background(), handlerCloseTimeout)
			defer cancel()
			if err := s.Wait(ctx); err != nil {
				h.logger.WarnTag(logging.TagWebSocket, "会话 %s 未在期限内退出", s.ID())
			}
		}(s)
	}
	wg.Wait()
	h.logger.InfoTag(logging.TagWebSocket, "已关闭 %d 个页面会话: %v", len(sessions), reason)
}
