package eventbus

import (
	"context"
	"sync/atomic"

	"vesta-voice/internal/platform/logging"
	"vesta-voice/internal/platform/observability"
)

// DefaultEventHandler 把总线事件落到日志和指标
type DefaultEventHandler struct {
	logger   *logging.Logger
	sessions atomic.Int64
}

// NewDefaultEventHandler 创建默认事件处理器
func NewDefaultEventHandler(logger *logging.Logger) *DefaultEventHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DefaultEventHandler{logger: logger}
}

// ActiveSessions 当前打开的页面会话数
func (h *DefaultEventHandler) ActiveSessions() int64 {
	return h.sessions.Load()
}

func (h *DefaultEventHandler) handlePhase(data PhaseEventData) {
	h.logger.DebugTag(logging.TagVoice, "会话 %s 阶段 %s -> %s", data.SessionID, data.From, data.To)
	observability.RecordMetric(context.Background(), "voice.phase", 1, map[string]string{"to": data.To})
}

func (h *DefaultEventHandler) handleCommand(data CommandEventData) {
	h.logger.InfoTag(logging.TagVoice, "会话 %s 命令 %q 解析为 %s", data.SessionID, data.Text, data.Resolution)
	observability.RecordMetric(context.Background(), "voice.command", 1, map[string]string{"resolution": data.Resolution})
}

func (h *DefaultEventHandler) handleError(data ErrorEventData) {
	h.logger.WarnTag(logging.TagVoice, "会话 %s 识别错误 %s (%d): %s", data.SessionID, data.Code, data.Count, data.Message)
	observability.RecordMetric(context.Background(), "voice.error", 1, map[string]string{"code": data.Code})
}

func (h *DefaultEventHandler) handleAction(data ActionEventData) {
	h.logger.InfoTag(logging.TagVoice, "会话 %s 执行动作 %s %s executed=%v", data.SessionID, data.Kind, data.Target, data.Executed)
	observability.RecordMetric(context.Background(), "voice.action", 1, map[string]string{"kind": data.Kind})
}

func (h *DefaultEventHandler) handleSession(opened bool, data SessionEventData) {
	if opened {
		h.sessions.Add(1)
		h.logger.InfoTag(logging.TagWebSocket, "页面会话打开: %s", data.SessionID)
		return
	}
	h.sessions.Add(-1)
	h.logger.InfoTag(logging.TagWebSocket, "页面会话关闭: %s (%s)", data.SessionID, data.Reason)
}

// SetupEventHandlers 订阅所有语音主题
func SetupEventHandlers(bus *Bus, handler *DefaultEventHandler) error {
	subs := map[string]interface{}{
		EventVoicePhase:    func(data PhaseEventData) { handler.handlePhase(data) },
		EventVoiceCommand:  func(data CommandEventData) { handler.handleCommand(data) },
		EventVoiceError:    func(data ErrorEventData) { handler.handleError(data) },
		EventVoiceAction:   func(data ActionEventData) { handler.handleAction(data) },
		EventSessionOpened: func(data SessionEventData) { handler.handleSession(true, data) },
		EventSessionClosed: func(data SessionEventData) { handler.handleSession(false, data) },
	}
	for topic, fn := range subs {
		if err := bus.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	return nil
}
