package edge

import (
	"strings"

	"vesta-voice/internal/domain/voice"
)

// Voice Edge 神经网络声音
type Voice struct {
	ID          string
	Name        string
	Lang        string
	Gender      string
	Description string
}

var catalogue = []Voice{
	{ID: "es-ES-ElviraNeural", Name: "Elvira", Lang: "es-ES", Gender: "Female", Description: "Español (España) - voz femenina natural"},
	{ID: "es-ES-AlvaroNeural", Name: "Álvaro", Lang: "es-ES", Gender: "Male", Description: "Español (España) - voz masculina"},
	{ID: "es-MX-DaliaNeural", Name: "Dalia", Lang: "es-MX", Gender: "Female", Description: "Español (México) - voz femenina"},
	{ID: "es-MX-JorgeNeural", Name: "Jorge", Lang: "es-MX", Gender: "Male", Description: "Español (México) - voz masculina"},
	{ID: "es-AR-ElenaNeural", Name: "Elena", Lang: "es-AR", Gender: "Female", Description: "Español (Argentina) - voz femenina"},
	{ID: "en-US-AriaNeural", Name: "Aria", Lang: "en-US", Gender: "Female", Description: "English (US) - natural female voice"},
	{ID: "en-US-GuyNeural", Name: "Guy", Lang: "en-US", Gender: "Male", Description: "English (US) - friendly male voice"},
}

// Catalogue returns the Edge voices offered to pages.
func Catalogue() []Voice {
	return append([]Voice(nil), catalogue...)
}

// DisplayName is the catalogue name reported to the page, carrying the
// gender hint voice selection looks for.
func (v Voice) DisplayName() string {
	return v.ID + " (" + v.Gender + ")"
}

// PageVoices converts the catalogue for voice.SelectVoice.
func PageVoices() []voice.Voice {
	out := make([]voice.Voice, 0, len(catalogue))
	for _, v := range catalogue {
		out = append(out, voice.Voice{Name: v.DisplayName(), Lang: v.Lang, Default: v.ID == DefaultVoice})
	}
	return out
}

// Lookup finds a voice by id or display name.
func Lookup(name string) (Voice, bool) {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, " ("); i > 0 {
		name = name[:i]
	}
	for _, v := range catalogue {
		if strings.EqualFold(v.ID, name) {
			return v, true
		}
	}
	return Voice{}, false
}
