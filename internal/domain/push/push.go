// Package push turns backend push payloads into system notification options.
package push

import (
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"vesta-voice/internal/platform/errors"
)

const (
	Title = "Vesta Seguros"
	Icon  = "/img/vesta-icon.png"
	Badge = "/img/badge.png"

	ActionView  = "ver"
	ActionRenew = "renovar"
)

// Payload 后端推送内容
type Payload struct {
	Mensaje string `json:"mensaje" validate:"required"`
	URL     string `json:"url"`
	// Tipo: vencimiento, recomendacion, siniestro
	Tipo string `json:"tipo" validate:"omitempty,oneof=vencimiento recomendacion siniestro"`
}

// Action is one notification button.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Data travels with the notification and comes back on click.
type Data struct {
	URL  string `json:"url"`
	Tipo string `json:"tipo"`
}

// Notification mirrors the options a service worker passes to showNotification.
type Notification struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Icon    string   `json:"icon"`
	Badge   string   `json:"badge"`
	Vibrate []int    `json:"vibrate"`
	Data    Data     `json:"data"`
	Actions []Action `json:"actions"`
}

// Renderer validates payloads and renders notifications. It holds no state
// besides the validator and is safe for concurrent use.
type Renderer struct {
	checker *validator.Validate
}

func NewRenderer() *Renderer {
	return &Renderer{checker: validator.New()}
}

// Render builds the notification for p.
func (r *Renderer) Render(p Payload) (Notification, error) {
	p.Mensaje = strings.TrimSpace(p.Mensaje)
	p.Tipo = strings.ToLower(strings.TrimSpace(p.Tipo))
	if err := r.checker.Struct(p); err != nil {
		return Notification{}, errors.Wrap(errors.KindDomain, "push.render", "invalid payload", err)
	}
	return Notification{
		Title:   Title,
		Body:    p.Mensaje,
		Icon:    Icon,
		Badge:   Badge,
		Vibrate: []int{200, 100, 200},
		Data:    Data{URL: p.URL, Tipo: p.Tipo},
		Actions: []Action{
			{Action: ActionView, Title: "Ver Detalles"},
			{Action: ActionRenew, Title: "Renovar Ahora"},
		},
	}, nil
}

// Decode parses a raw push body and renders it.
func (r *Renderer) Decode(raw []byte) (Notification, error) {
	var p Payload
	if err := sonic.Unmarshal(raw, &p); err != nil {
		return Notification{}, errors.Wrap(errors.KindDomain, "push.decode", "decode payload", err)
	}
	return r.Render(p)
}
