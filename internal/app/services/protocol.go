package services

import (
	"vesta-voice/internal/domain/voice"
)

// 页面 -> 服务端
const (
	MsgHello        = "hello"
	MsgRecognition  = "recognition"
	MsgSynthesis    = "synthesis"
	MsgVoices       = "voices"
	MsgKey          = "key"
	MsgVisibility   = "visibility"
	MsgStorage      = "storage"
	MsgDialog       = "dialog"
	MsgStart        = "start"
	MsgStop         = "stop"
	MsgStopSpeaking = "stop_speaking"
	MsgToggle       = "toggle"
)

// 服务端 -> 页面
const (
	OutHello            = "hello"
	OutRecognitionStart = "recognition_start"
	OutRecognitionStop  = "recognition_stop"
	OutSpeak            = "speak"
	OutSpeakAudio       = "speak_audio"
	OutSpeakCancel      = "speak_cancel"
	OutToast            = "toast"
	OutNavigate         = "navigate"
	OutOpenDialog       = "open_dialog"
	OutScroll           = "scroll"
	OutInvoke           = "invoke"
	OutTheme            = "theme"
	OutDialog           = "dialog"
	OutDialogClose      = "dialog_close"
	OutAlert            = "alert"
	OutNotification     = "notification"
	OutState            = "state"
)

// Recognition events reported by the page.
const (
	RecognitionStart  = "start"
	RecognitionResult = "result"
	RecognitionError  = "error"
	RecognitionEnd    = "end"
)

// Synthesis events reported by the page.
const (
	SynthesisStart = "start"
	SynthesisEnd   = "end"
	SynthesisError = "error"
)

// Storage scopes a page may write to.
const (
	ScopeSession = "session"
	ScopeLocal   = "local"
)

type helloMessage struct {
	Capabilities voice.Capabilities `json:"capabilities"`
	MetaToken    string             `json:"meta_token"`
	Storage      struct {
		SessionToken string `json:"session_token"`
		LocalToken   string `json:"local_token"`
	} `json:"storage"`
	Voices []voice.Voice `json:"voices"`
}

type recognitionMessage struct {
	Event      string  `json:"event"`
	Attempt    string  `json:"attempt"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

type synthesisMessage struct {
	Event     string `json:"event"`
	Utterance string `json:"utterance"`
	Error     string `json:"error"`
}

type voicesMessage struct {
	Voices []voice.Voice `json:"voices"`
}

type visibilityMessage struct {
	Hidden bool `json:"hidden"`
}

type storageMessage struct {
	Scope string `json:"scope"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type dialogMessage struct {
	ID        string `json:"id"`
	Confirmed bool   `json:"confirmed"`
}

// helloReply 握手应答
type helloReply struct {
	SessionID string        `json:"session_id"`
	Language  string        `json:"language"`
	Synthesis string        `json:"synthesis"`
	Functions []string      `json:"functions,omitempty"`
	Voices    []voice.Voice `json:"voices,omitempty"`
	Theme     voice.Theme   `json:"theme,omitempty"`
	Ready     bool          `json:"ready"`
}

type recognitionCommand struct {
	Attempt string `json:"attempt"`
	Lang    string `json:"lang,omitempty"`
}

type speakAudio struct {
	Utterance  string  `json:"utterance"`
	Format     string  `json:"format"`
	Audio      string  `json:"audio"`
	DurationMS int64   `json:"duration_ms"`
	Volume     float64 `json:"volume"`
}

type toastCommand struct {
	Message    string          `json:"message"`
	Kind       voice.ToastKind `json:"kind"`
	DurationMS int64           `json:"duration_ms,omitempty"`
}

type targetCommand struct {
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
}

type invokeCommand struct {
	Name string        `json:"name"`
	Args []interface{} `json:"args,omitempty"`
}

type themeCommand struct {
	Theme voice.Theme `json:"theme"`
}

type dialogClose struct {
	ID string `json:"id"`
}

type alertCommand struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}
