package voice

import (
	"context"
	"time"
)

// Utterance 一次语音合成请求
type Utterance struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Lang   string  `json:"lang"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
	// Voice 为空时使用系统默认声音
	Voice string `json:"voice,omitempty"`
}

// Theme 页面主题
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ToastKind 提示样式
type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastDanger  ToastKind = "danger"
	ToastWarning ToastKind = "warning"
)

// Toast 短暂提示
type Toast struct {
	Message  string        `json:"message"`
	Kind     ToastKind     `json:"kind"`
	Duration time.Duration `json:"-"`
}

// Capabilities the page reports at startup.
type Capabilities struct {
	Recognition bool `json:"recognition"`
	Synthesis   bool `json:"synthesis"`
}

// ClassifyRequest 发往远程分类器的请求
type ClassifyRequest struct {
	Transcript string
	Normalized string
	Timestamp  time.Time
	Confidence float64
}

// Recognizer drives the page's speech recognition.
type Recognizer interface {
	StartRecognition(attempt, lang string) error
	StopRecognition(attempt string) error
}

// Synthesizer drives speech output.
type Synthesizer interface {
	Speak(u Utterance) error
	CancelSpeech() error
}

// Page executes UI side effects.
type Page interface {
	Navigate(url string) error
	OpenDialog(selector string) error
	ScrollTo(selector string) error
	ApplyTheme(theme Theme) error
	Toast(t Toast) error
}

// Classifier resolves utterances the local table cannot handle.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (*Result, error)
}

// ThemeStore persists the theme preference.
type ThemeStore interface {
	SaveTheme(ctx context.Context, theme Theme) error
}

// Alerter shows a blocking notice when the modal helper is unavailable.
type Alerter interface {
	Alert(title, message string) error
}

// Publisher receives controller events; implementations must not block.
type Publisher interface {
	PublishAsync(topic string, args ...interface{})
}

// Logger provides the minimal logging contract required by the voice domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
