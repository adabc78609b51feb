package eventbus

// 事件类型定义
const (
	// 语音控制器
	EventVoicePhase   = "voice:phase"
	EventVoiceCommand = "voice:command"
	EventVoiceError   = "voice:error"
	EventVoiceAction  = "voice:action"

	// 页面会话
	EventSessionOpened = "session:opened"
	EventSessionClosed = "session:closed"
)

// PhaseEventData 阶段切换
type PhaseEventData struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// CommandEventData 一次命令解析的结果
type CommandEventData struct {
	SessionID  string  `json:"session_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	// Resolution 为 local 规则名或 remote / fallback
	Resolution string `json:"resolution"`
	Reply      string `json:"reply,omitempty"`
}

// ErrorEventData 识别或合成错误
type ErrorEventData struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Count     int    `json:"count"`
	Spoken    bool   `json:"spoken"`
}

// ActionEventData 远程动作执行
type ActionEventData struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Target    string `json:"target,omitempty"`
	Executed  bool   `json:"executed"`
}

// SessionEventData 页面会话生命周期
type SessionEventData struct {
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
