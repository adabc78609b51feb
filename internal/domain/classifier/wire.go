package classifier

import (
	"strings"
	"time"

	"vesta-voice/internal/domain/voice"
	"vesta-voice/internal/platform/errors"
)

// request 远程接口的请求体，字段名由后端约定
type request struct {
	Comando      string  `json:"comando"`
	ComandoLower string  `json:"comandoLower"`
	Timestamp    string  `json:"timestamp"`
	Confidence   float64 `json:"confidence"`
}

func newRequest(req voice.ClassifyRequest) request {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	lower := req.Normalized
	if lower == "" {
		lower = voice.Lower(req.Transcript)
	}
	return request{
		Comando:      req.Transcript,
		ComandoLower: lower,
		Timestamp:    ts.UTC().Format(time.RFC3339),
		Confidence:   req.Confidence,
	}
}

type response struct {
	Respuesta *string `json:"respuesta"`
	Accion    *accion `json:"accion" validate:"omitempty"`
}

type accion struct {
	Tipo       string        `json:"tipo" validate:"required,oneof=redirect modal function scroll"`
	URL        string        `json:"url" validate:"required_if=Tipo redirect"`
	Selector   string        `json:"selector" validate:"required_if=Tipo modal,required_if=Tipo scroll"`
	Nombre     string        `json:"nombre" validate:"required_if=Tipo function"`
	Parametros []interface{} `json:"parametros"`
}

func (r response) toResult() (*voice.Result, error) {
	result := &voice.Result{}
	if r.Respuesta != nil {
		result.Reply = strings.TrimSpace(*r.Respuesta)
	}
	if r.Accion == nil {
		return result, nil
	}
	kind, err := voice.ParseActionKind(r.Accion.Tipo)
	if err != nil {
		return nil, errors.Wrap(errors.KindClassifier, "classifier.action", "unsupported action", err)
	}
	result.Action = &voice.Action{
		Kind:     kind,
		URL:      r.Accion.URL,
		Selector: r.Accion.Selector,
		Function: r.Accion.Nombre,
		Args:     r.Accion.Parametros,
	}
	return result, nil
}
