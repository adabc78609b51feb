package services

import (
	"vesta-voice/internal/domain/dialog"
	"vesta-voice/internal/domain/voice"
)

// pageBridge turns controller side effects into frames for the page peer.
// It implements voice.Recognizer, voice.Synthesizer, voice.Page,
// dialog.Presenter and the basic alert.
type pageBridge struct {
	out *MessageQueue
}

func newPageBridge(out *MessageQueue) *pageBridge {
	return &pageBridge{out: out}
}

func (b *pageBridge) StartRecognition(attempt, lang string) error {
	return b.out.Send(OutRecognitionStart, recognitionCommand{Attempt: attempt, Lang: lang})
}

func (b *pageBridge) StopRecognition(attempt string) error {
	return b.out.Send(OutRecognitionStop, recognitionCommand{Attempt: attempt})
}

func (b *pageBridge) Speak(u voice.Utterance) error {
	return b.out.Send(OutSpeak, u)
}

func (b *pageBridge) CancelSpeech() error {
	return b.out.Send(OutSpeakCancel, nil)
}

func (b *pageBridge) Navigate(url string) error {
	return b.out.Send(OutNavigate, targetCommand{URL: url})
}

func (b *pageBridge) OpenDialog(selector string) error {
	return b.out.Send(OutOpenDialog, targetCommand{Selector: selector})
}

func (b *pageBridge) ScrollTo(selector string) error {
	return b.out.Send(OutScroll, targetCommand{Selector: selector})
}

func (b *pageBridge) ApplyTheme(theme voice.Theme) error {
	return b.out.Send(OutTheme, themeCommand{Theme: theme})
}

func (b *pageBridge) Toast(t voice.Toast) error {
	return b.out.Send(OutToast, toastCommand{
		Message:    t.Message,
		Kind:       t.Kind,
		DurationMS: t.Duration.Milliseconds(),
	})
}

// Present 渲染对话框
func (b *pageBridge) Present(d dialog.Dialog) error {
	return b.out.Send(OutDialog, d)
}

func (b *pageBridge) Dispose(id string) error {
	return b.out.Send(OutDialogClose, dialogClose{ID: id})
}

// Alert 浏览器原生 alert，作为对话框的兜底
func (b *pageBridge) Alert(title, message string) error {
	return b.out.Send(OutAlert, alertCommand{Title: title, Message: message})
}

// invoker forwards a registered page function call to the page.
func (b *pageBridge) invoker(name string) voice.Handler {
	return func(args []interface{}) error {
		return b.out.Send(OutInvoke, invokeCommand{Name: name, Args: args})
	}
}
