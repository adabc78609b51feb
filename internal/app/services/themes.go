package services

import (
	"context"
	"errors"

	"vesta-voice/internal/domain/prefs/store"
	"vesta-voice/internal/domain/voice"
)

// themeStore keeps the theme preference in the persistent prefs store,
// under the browser's local namespace.
type themeStore struct {
	store     store.Store
	namespace string
}

func (t *themeStore) SaveTheme(ctx context.Context, theme voice.Theme) error {
	return t.store.Set(ctx, t.namespace, store.Entry{Key: store.KeyTheme, Value: string(theme)})
}

// LoadTheme returns the saved theme, ok=false when none is stored.
func (t *themeStore) LoadTheme(ctx context.Context) (voice.Theme, bool, error) {
	entry, err := t.store.Get(ctx, t.namespace, store.KeyTheme)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	switch theme := voice.Theme(entry.Value); theme {
	case voice.ThemeDark, voice.ThemeLight:
		return theme, true, nil
	}
	return "", false, nil
}
