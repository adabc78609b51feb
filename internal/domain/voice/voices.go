package voice

import "strings"

// Voice 页面或合成后端提供的声音
type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// SelectVoice picks a voice for lang: an exact tag match whose name hints
// "female", then any exact tag match, then any voice with the same primary
// subtag. It returns nil when nothing fits so the system default stays in place.
func SelectVoice(voices []Voice, lang string) *Voice {
	want := canonicalTag(lang)
	if want == "" || len(voices) == 0 {
		return nil
	}
	primary := primarySubtag(want)

	var exact, sameLanguage *Voice
	for i := range voices {
		v := &voices[i]
		tag := canonicalTag(v.Lang)
		switch {
		case tag == want:
			if strings.Contains(strings.ToLower(v.Name), "female") {
				return v
			}
			if exact == nil {
				exact = v
			}
		case sameLanguage == nil && primarySubtag(tag) == primary:
			sameLanguage = v
		}
	}
	if exact != nil {
		return exact
	}
	return sameLanguage
}

// canonicalTag 统一 es_ES / es-es 写法
func canonicalTag(tag string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
}

func primarySubtag(tag string) string {
	if i := strings.IndexByte(tag, '-'); i >= 0 {
		return tag[:i]
	}
	return tag
}
