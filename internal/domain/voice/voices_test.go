package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectVoice(t *testing.T) {
	voices := []Voice{
		{Name: "Google US English", Lang: "en-US"},
		{Name: "Microsoft Pablo", Lang: "es-ES"},
		{Name: "Microsoft Helena Female", Lang: "es_ES"},
		{Name: "Paulina", Lang: "es-MX"},
	}

	v := SelectVoice(voices, "es-ES")
	require.NotNil(t, v)
	assert.Equal(t, "Microsoft Helena Female", v.Name)

	v = SelectVoice(voices[:2], "es-ES")
	require.NotNil(t, v)
	assert.Equal(t, "Microsoft Pablo", v.Name)

	v = SelectVoice([]Voice{voices[0], voices[3]}, "es-ES")
	require.NotNil(t, v)
	assert.Equal(t, "Paulina", v.Name)

	assert.Nil(t, SelectVoice(voices[:1], "es-ES"))
	assert.Nil(t, SelectVoice(nil, "es-ES"))
}

func TestSelectVoiceReturnsElementOfSlice(t *testing.T) {
	voices := []Voice{{Name: "Lucia", Lang: "es-ES"}}
	v := SelectVoice(voices, "es-es")
	require.NotNil(t, v)
	assert.Same(t, &voices[0], v)
}
