package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vesta-voice/internal/domain/auth"
	"vesta-voice/internal/domain/dialog"
	"vesta-voice/internal/domain/prefs/store"
	"vesta-voice/internal/domain/tts/edge"
	"vesta-voice/internal/domain/voice"
	"vesta-voice/internal/platform/errors"
	"vesta-voice/internal/platform/logging"
	"vesta-voice/internal/transport/ws"
)

// PageSession 一个页面（标签页）的语音会话：读取页面上报的事件并驱动控制器
type PageSession struct {
	id       string
	clientID string
	svc      *Service
	conn     Conn
	logger   *logging.Logger

	out      *MessageQueue
	bridge   *pageBridge
	speech   *SpeechService
	dialogs  *dialog.Manager
	themes   *themeStore
	registry *voice.Registry
	ctrl     *voice.Controller

	mu    sync.Mutex
	scope auth.Scope

	closeOnce sync.Once
}

func newPageSession(svc *Service, conn Conn) (*PageSession, error) {
	id := uuid.NewString()
	clientID := conn.ID()
	if clientID == "" {
		clientID = id
	}
	out := NewMessageQueue(conn, svc.queueSize, svc.logger)
	bridge := newPageBridge(out)

	s := &PageSession{
		id:       id,
		clientID: clientID,
		svc:      svc,
		conn:     conn,
		logger:   svc.logger,
		out:      out,
		bridge:   bridge,
		registry: voice.NewRegistry(),
		scope: auth.Scope{
			SessionNS: svc.namespace + ":session:" + id,
			LocalNS:   svc.namespace + ":" + clientID,
		},
	}
	s.dialogs = dialog.NewManager(bridge, bridge, svc.logger)

	for _, name := range svc.functions {
		if name == "setTheme" {
			continue
		}
		if err := s.registry.Register(name, bridge.invoker(name)); err != nil {
			svc.logger.WarnTag(logging.TagVoice, "注册页面函数失败: %v", err)
		}
	}

	deps := voice.Deps{
		Recognizer:  bridge,
		Synthesizer: bridge,
		Page:        bridge,
		Alerter:     s.dialogs,
		Registry:    s.registry,
		Logger:      svc.logger.WithTag(logging.TagVoice),
		OnPhase:     s.onPhase,
	}
	if svc.deps.Events != nil {
		deps.Events = svc.deps.Events
	}
	if svc.deps.Synthesis != nil {
		s.speech = newSpeechService(svc.deps.Synthesis, out, svc.logger, s.dispatch)
		deps.Synthesizer = s.speech
	}
	if svc.deps.Classifier != nil {
		deps.Classifier = svc.deps.Classifier.WithTokens(s.token)
	}
	if svc.deps.Prefs != nil {
		s.themes = &themeStore{store: svc.deps.Prefs, namespace: s.scope.LocalNS}
		deps.Themes = s.themes
	}

	cfg := svc.voiceConfig
	cfg.SessionID = id
	ctrl, err := voice.New(cfg, deps)
	if err != nil {
		out.Stop()
		return nil, errors.Wrap(errors.KindDomain, "session.new", "create voice controller", err)
	}
	s.ctrl = ctrl
	return s, nil
}

// SessionID implements ws.SessionHandler.
func (s *PageSession) SessionID() string {
	return s.id
}

// ClientID 浏览器标识（跨会话）
func (s *PageSession) ClientID() string {
	return s.clientID
}

// State returns the controller snapshot.
func (s *PageSession) State() voice.State {
	return s.ctrl.State()
}

// Handle reads page frames until the connection ends.
func (s *PageSession) Handle(ctx context.Context) error {
	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if isClosed(err) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := s.handleFrame(ctx, frame); err != nil {
			s.logger.WarnTag(logging.TagWebSocket, "处理消息 %s 失败 session=%s: %v", frame.Type, s.id, err)
		}
	}
}

// Close 释放会话资源，可重复调用
func (s *PageSession) Close() {
	s.closeOnce.Do(func() {
		_ = s.ctrl.Close()
		if s.speech != nil {
			s.speech.Stop()
		}
		s.dialogs.Close()
		if s.svc.deps.Sessions != nil {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			if err := s.svc.deps.Sessions.Remove(ctx, s.scope.SessionNS, store.KeyToken); err != nil {
				s.logger.DebugTag(logging.TagStorage, "清理会话令牌失败: %v", err)
			}
			cancel()
		}
		s.out.Stop()
		_ = s.conn.Close()
		s.svc.release(s)
	})
}

// Notify pushes a rendered notification to the page.
func (s *PageSession) Notify(n interface{}) error {
	return s.out.Send(OutNotification, n)
}

func (s *PageSession) handleFrame(ctx context.Context, frame ws.Frame) error {
	switch frame.Type {
	case MsgHello:
		var msg helloMessage
		if err := frame.Decode(&msg); err != nil {
			return err
		}
		return s.handleHello(ctx, msg)
	case MsgRecognition:
		var msg recognitionMessage
		if err := frame.Decode(&msg); err != nil {
			return err
		}
		return s.handleRecognition(msg)
	case MsgSynthesis:
		var msg synthesisMessage
		if err := frame.Decode(&msg); err != nil {
			return err
		}
		return s.handleSynthesis(msg)
	case MsgVoices:
		var msg voicesMessage
		if err := frame.Decode(&msg); err != nil {
			return err
		}
		if s.speech != nil {
			// 服务端合成时使用 Edge 声音目录
			return nil
		}
		return s.ctrl.Dispatch(voice.Event{Kind: voice.VoicesChanged, Voices: msg.Voices})
	case MsgKey:
		var key voice.Key
		if err := frame.Decode(&key); err != nil {
			return err
		}
		_, err := s.ctrl.HandleKey(key)
		return err
	case MsgVisibility:
		var msg visibilityMessage
		if err := frame.Decode(&msg); err != nil {
			return err
		}
		if !msg.Hidden {
			return nil
		}
		return s.ctrl.Cancel("hidden")
	case MsgStorage:
		var msg storageMessage
		if err := frame.Decode(&msg); err != nil {
			return err
		}
		return s.handleStorage(ctx, msg)
	case MsgDialog:
		var msg dialogMessage
		if err := frame.Decode(&msg); err != nil {
			return err
		}
		if !s.dialogs.Resolve(msg.ID, msg.Confirmed) {
			s.logger.DebugTag(logging.TagDialog, "对话框 %s 已处理或不存在", msg.ID)
		}
		return nil
	case MsgStart:
		return s.ctrl.StartListening()
	case MsgStop:
		return s.ctrl.StopListening()
	case MsgStopSpeaking:
		return s.ctrl.StopSpeaking()
	case MsgToggle:
		return s.ctrl.Toggle()
	default:
		return fmt.Errorf("未知的消息类型: %s", frame.Type)
	}
}

func (s *PageSession) handleHello(ctx context.Context, msg helloMessage) error {
	s.mu.Lock()
	s.scope.Meta = msg.MetaToken
	scope := s.scope
	s.mu.Unlock()

	if tokens := s.svc.deps.Tokens; tokens != nil {
		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		if msg.Storage.SessionToken != "" {
			if err := tokens.Remember(storeCtx, auth.SourceSession, scope, msg.Storage.SessionToken); err != nil {
				s.logger.WarnTag(logging.TagStorage, "保存会话令牌失败: %v", err)
			}
		}
		if msg.Storage.LocalToken != "" {
			if err := tokens.Remember(storeCtx, auth.SourceLocal, scope, msg.Storage.LocalToken); err != nil {
				s.logger.WarnTag(logging.TagStorage, "保存本地令牌失败: %v", err)
			}
		}
		cancel()
	}

	reply := helloReply{
		SessionID: s.id,
		Language:  s.svc.voiceConfig.Language,
		Synthesis: s.svc.synthesisMode(),
		Functions: s.registry.Names(),
	}

	if s.themes != nil {
		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		theme, ok, err := s.themes.LoadTheme(storeCtx)
		cancel()
		switch {
		case err != nil:
			s.logger.WarnTag(logging.TagStorage, "读取主题失败: %v", err)
		case ok:
			reply.Theme = theme
			_ = s.bridge.ApplyTheme(theme)
		}
	}

	openErr := s.ctrl.Open(ctx, msg.Capabilities)
	reply.Ready = openErr == nil

	voices := msg.Voices
	if s.speech != nil {
		voices = edge.PageVoices()
		reply.Voices = voices
	}
	if err := s.out.Send(OutHello, reply); err != nil {
		return err
	}

	s.svc.logger.InfoTag(logging.TagWebSocket, "页面握手 session=%s client=%s ready=%t", s.id, s.clientID, reply.Ready)
	if openErr != nil {
		if errors.IsKind(openErr, errors.KindCapability) {
			return nil
		}
		return openErr
	}
	if len(voices) > 0 {
		return s.ctrl.Dispatch(voice.Event{Kind: voice.VoicesChanged, Voices: voices})
	}
	return nil
}

func (s *PageSession) handleRecognition(msg recognitionMessage) error {
	ev := voice.Event{
		Attempt:    msg.Attempt,
		Transcript: msg.Transcript,
		Confidence: msg.Confidence,
		Error:      msg.Error,
	}
	switch msg.Event {
	case RecognitionStart:
		ev.Kind = voice.RecognitionStarted
	case RecognitionResult:
		ev.Kind = voice.ResultReady
	case RecognitionError:
		ev.Kind = voice.ErrorOccurred
	case RecognitionEnd:
		ev.Kind = voice.RecognitionEnded
	default:
		return fmt.Errorf("未知的识别事件: %s", msg.Event)
	}
	return s.ctrl.Dispatch(ev)
}

func (s *PageSession) handleSynthesis(msg synthesisMessage) error {
	ev := voice.Event{Attempt: msg.Utterance, Error: msg.Error}
	switch msg.Event {
	case SynthesisStart:
		ev.Kind = voice.SynthesisStarted
	case SynthesisEnd:
		ev.Kind = voice.SynthesisEnded
	case SynthesisError:
		ev.Kind = voice.SynthesisFailed
	default:
		return fmt.Errorf("未知的合成事件: %s", msg.Event)
	}
	return s.ctrl.Dispatch(ev)
}

func (s *PageSession) handleStorage(ctx context.Context, msg storageMessage) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	switch msg.Key {
	case store.KeyToken:
		tokens := s.svc.deps.Tokens
		if tokens == nil {
			return nil
		}
		src := auth.SourceLocal
		if msg.Scope == ScopeSession {
			src = auth.SourceSession
		}
		s.mu.Lock()
		scope := s.scope
		s.mu.Unlock()
		return tokens.Remember(ctx, src, scope, msg.Value)
	case store.KeyTheme:
		if s.themes == nil {
			return nil
		}
		theme := voice.Theme(msg.Value)
		if theme != voice.ThemeDark && theme != voice.ThemeLight {
			return fmt.Errorf("无效主题: %q", msg.Value)
		}
		return s.themes.SaveTheme(ctx, theme)
	default:
		return fmt.Errorf("不支持的存储键: %s", msg.Key)
	}
}

// token resolves the bearer token for classifier requests.
func (s *PageSession) token(ctx context.Context) string {
	tokens := s.svc.deps.Tokens
	if tokens == nil {
		return ""
	}
	s.mu.Lock()
	scope := s.scope
	s.mu.Unlock()
	token, src, ok := tokens.Resolve(ctx, scope)
	if !ok {
		s.logger.DebugTag(logging.TagClassifier, "未找到令牌，匿名请求 session=%s", s.id)
		return ""
	}
	s.logger.DebugTag(logging.TagClassifier, "使用令牌来源 %s session=%s", src, s.id)
	return token
}

func (s *PageSession) dispatch(ev voice.Event) error {
	return s.ctrl.Dispatch(ev)
}

// onPhase runs on the controller's dispatcher; Send never blocks.
func (s *PageSession) onPhase(state voice.State) {
	_ = s.out.Send(OutState, state)
}

func isClosed(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return stderrors.Is(err, io.EOF) || stderrors.Is(err, net.ErrClosed) || stderrors.Is(err, ws.ErrConnectionClosed)
}
