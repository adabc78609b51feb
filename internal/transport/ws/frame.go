package ws

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// Frame is the JSON envelope exchanged with the page.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the frame payload into v. A frame without data leaves v untouched.
func (f Frame) Decode(v interface{}) error {
	if len(f.Data) == 0 {
		return nil
	}
	return sonic.Unmarshal(f.Data, v)
}

// EncodeFrame builds the wire bytes for a typed payload.
func EncodeFrame(typ string, data interface{}) ([]byte, error) {
	out := struct {
		Type string      `json:"type"`
		Data interface{} `json:"data,omitempty"`
	}{Type: typ, Data: data}
	return sonic.Marshal(out)
}

// DecodeFrame parses wire bytes into a Frame.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(raw, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}
