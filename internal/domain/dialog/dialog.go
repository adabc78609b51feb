// Package dialog renders modal notices and confirmations on the page and
// tracks their callbacks until the user answers.
package dialog

import "strings"

// Kind 对话框类型
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindConfirm Kind = "confirm"
)

// Dialog is what the page needs to render one modal.
type Dialog struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	ConfirmText string `json:"confirm_text"`
	CancelText  string `json:"cancel_text,omitempty"`
	ShowCancel  bool   `json:"show_cancel"`
	HeaderClass string `json:"header_class"`
	Icon        string `json:"icon"`
	ButtonClass string `json:"button_class"`
	// CloseWhite 深色标题栏使用白色关闭按钮
	CloseWhite bool `json:"close_white"`
}

const defaultTitle = "Notificación"

var styles = map[Kind]struct {
	header, icon, confirm string
}{
	KindInfo:    {"bg-primary text-white", "bi-info-circle-fill", "Entendido"},
	KindSuccess: {"bg-success text-white", "bi-check-circle-fill", "Aceptar"},
	KindError:   {"bg-danger text-white", "bi-x-circle-fill", "Cerrar"},
	KindWarning: {"bg-warning text-dark", "bi-exclamation-triangle-fill", "Entendido"},
	KindConfirm: {"bg-primary text-white", "bi-question-circle-fill", "Sí"},
}

// build fills in the presentation defaults for kind.
func build(id string, kind Kind, title, message string) Dialog {
	style, ok := styles[kind]
	if !ok {
		kind = KindInfo
		style = styles[KindInfo]
	}
	if strings.TrimSpace(title) == "" {
		title = defaultTitle
	}

	d := Dialog{
		ID:          id,
		Kind:        kind,
		Title:       title,
		Message:     message,
		ConfirmText: style.confirm,
		HeaderClass: style.header,
		Icon:        style.icon,
		ButtonClass: "btn-primary",
		CloseWhite:  kind == KindError || kind == KindSuccess || kind == KindInfo,
	}
	switch kind {
	case KindError:
		d.ButtonClass = "btn-danger"
	case KindSuccess:
		d.ButtonClass = "btn-success"
	case KindConfirm:
		d.ShowCancel = true
		d.CancelText = "No"
	}
	return d
}
