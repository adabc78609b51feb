package services

import (
	"net/http"
	"sync"
	"time"

	"vesta-voice/internal/domain/auth"
	"vesta-voice/internal/domain/classifier"
	"vesta-voice/internal/domain/eventbus"
	"vesta-voice/internal/domain/prefs/store"
	"vesta-voice/internal/domain/voice"
	"vesta-voice/internal/platform/config"
	"vesta-voice/internal/platform/errors"
	"vesta-voice/internal/platform/logging"
	"vesta-voice/internal/transport/ws"
)

const storeTimeout = 3 * time.Second

// TokenClassifier binds the remote classifier to a per-session token lookup.
type TokenClassifier interface {
	WithTokens(tokens classifier.TokenFunc) voice.Classifier
}

// Dependencies 页面会话共享的依赖
type Dependencies struct {
	Config     *config.Config
	Logger     *logging.Logger
	Events     voice.Publisher
	Classifier TokenClassifier
	Tokens     *auth.Resolver
	// Sessions 页面会话级存储，会话结束即清理
	Sessions store.Store
	// Prefs 持久偏好（主题、本地令牌）
	Prefs store.Store
	// Synthesis 为 nil 时由页面自行合成
	Synthesis Synthesis
	QueueSize int
}

// Service creates page sessions for upgraded websocket connections and
// keeps track of the live ones.
type Service struct {
	deps        Dependencies
	logger      *logging.Logger
	voiceConfig voice.Config
	functions   []string
	namespace   string
	queueSize   int

	mu       sync.RWMutex
	sessions map[string]*PageSession
}

// NewService validates deps and builds the service.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Config == nil {
		return nil, errors.New(errors.KindConfig, "services.new", "config is required")
	}
	if deps.Logger == nil {
		return nil, errors.New(errors.KindConfig, "services.new", "logger is required")
	}
	namespace := deps.Config.Store.Namespace
	if namespace == "" {
		namespace = "vesta"
	}
	return &Service{
		deps:        deps,
		logger:      deps.Logger,
		voiceConfig: VoiceConfig(deps.Config.Assistant),
		functions:   append([]string(nil), deps.Config.Assistant.Functions...),
		namespace:   namespace,
		queueSize:   deps.QueueSize,
		sessions:    make(map[string]*PageSession),
	}, nil
}

// VoiceConfig maps the assistant settings onto the controller config.
func VoiceConfig(a config.AssistantConfig) voice.Config {
	cfg := voice.Config{
		Language:           a.Language,
		SpeechRate:         a.SpeechRate,
		SpeechPitch:        a.SpeechPitch,
		SpeechVolume:       a.SpeechVolume,
		RecognitionTimeout: a.RecognitionTimeout,
		ProcessingTimeout:  a.ProcessingTimeout,
		ErrorDisplayDelay:  a.ErrorDisplayDelay,
		FollowUpDelay:      a.FollowUpDelay,
		MaxSpokenErrors:    a.MaxSpokenErrors,
	}
	for _, r := range a.Routes {
		cfg.Routes = append(cfg.Routes, voice.NavigationRoute{
			Name:         r.Name,
			Keywords:     append([]string(nil), r.Keywords...),
			TargetURL:    r.URL,
			Confirmation: r.Confirmation,
		})
	}
	return cfg
}

// NewSession is the ws.HandlerBuilder for the voice endpoint.
func (s *Service) NewSession(conn *ws.Connection, _ *http.Request) (ws.SessionHandler, error) {
	return s.Open(conn)
}

// Open creates and registers a page session on conn.
func (s *Service) Open(conn Conn) (*PageSession, error) {
	session, err := newPageSession(s, conn)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()

	s.publish(eventbus.EventSessionOpened, eventbus.SessionEventData{
		SessionID: session.id,
		ClientID:  session.clientID,
	})
	return session, nil
}

// Lookup 按会话 ID 查找
func (s *Service) Lookup(id string) (*PageSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Count returns the number of live page sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Broadcast sends a notification to every live page session and reports
// how many accepted it.
func (s *Service) Broadcast(notification interface{}) int {
	s.mu.RLock()
	targets := make([]*PageSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		targets = append(targets, session)
	}
	s.mu.RUnlock()

	delivered := 0
	for _, session := range targets {
		if err := session.Notify(notification); err != nil {
			s.logger.DebugTag(logging.TagPush, "推送失败 session=%s: %v", session.id, err)
			continue
		}
		delivered++
	}
	s.logger.InfoTag(logging.TagPush, "通知已推送 %d/%d", delivered, len(targets))
	return delivered
}

// CloseAll closes every live page session.
func (s *Service) CloseAll() {
	s.mu.RLock()
	targets := make([]*PageSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		targets = append(targets, session)
	}
	s.mu.RUnlock()
	for _, session := range targets {
		session.Close()
	}
}

func (s *Service) release(session *PageSession) {
	s.mu.Lock()
	_, ok := s.sessions[session.id]
	delete(s.sessions, session.id)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.publish(eventbus.EventSessionClosed, eventbus.SessionEventData{
		SessionID: session.id,
		ClientID:  session.clientID,
	})
}

func (s *Service) synthesisMode() string {
	if s.deps.Synthesis != nil {
		return "edge"
	}
	return "browser"
}

func (s *Service) publish(topic string, data interface{}) {
	if s.deps.Events != nil {
		s.deps.Events.PublishAsync(topic, data)
	}
}
