package auth

import (
	"context"
	"testing"
	"time"

	"vesta-voice/internal/domain/prefs/store"

	"github.com/golang-jwt/jwt/v5"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newResolver(t *testing.T, order []Source, global string) (*Resolver, store.Store, store.Store) {
	t.Helper()
	session := store.NewMemory(store.Config{})
	local := store.NewMemory(store.Config{})
	r, err := NewResolver(Options{
		Order:       order,
		Session:     session,
		Local:       local,
		GlobalToken: global,
		Logger:      nopLogger{},
	})
	if err != nil {
		t.Fatalf("NewResolver error: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Close()
		_ = session.Close(context.Background())
		_ = local.Close(context.Background())
	})
	return r, session, local
}

func signedWithExpiry(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	raw, err := token.SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestResolveOrder(t *testing.T) {
	ctx := context.Background()
	scope := Scope{SessionNS: "tab-1", LocalNS: "client-1", Meta: "meta-token"}

	tests := []struct {
		name    string
		order   []Source
		session string
		local   string
		want    string
		wantSrc Source
	}{
		{"session first", DefaultOrder, "s-tok", "l-tok", "s-tok", SourceSession},
		{"falls through to local", DefaultOrder, "", "l-tok", "l-tok", SourceLocal},
		{"falls through to meta", DefaultOrder, "", "", "meta-token", SourceMeta},
		{"configured order", []Source{SourceGlobal, SourceSession}, "s-tok", "", "global-token", SourceGlobal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newResolver(t, tt.order, "global-token")
			if tt.session != "" {
				if err := r.Remember(ctx, SourceSession, scope, tt.session); err != nil {
					t.Fatalf("Remember session: %v", err)
				}
			}
			if tt.local != "" {
				if err := r.Remember(ctx, SourceLocal, scope, tt.local); err != nil {
					t.Fatalf("Remember local: %v", err)
				}
			}
			got, src, ok := r.Resolve(ctx, scope)
			if !ok || got != tt.want || src != tt.wantSrc {
				t.Fatalf("Resolve() = %q, %q, %v; want %q, %q", got, src, ok, tt.want, tt.wantSrc)
			}
		})
	}
}

func TestResolveSkipsExpiredJWT(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newResolver(t, nil, "")
	scope := Scope{SessionNS: "tab", LocalNS: "client"}

	stale := signedWithExpiry(t, time.Now().Add(-time.Minute))
	fresh := signedWithExpiry(t, time.Now().Add(time.Hour))
	if err := r.Remember(ctx, SourceSession, scope, stale); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if err := r.Remember(ctx, SourceLocal, scope, fresh); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	got, src, ok := r.Resolve(ctx, scope)
	if !ok || got != fresh || src != SourceLocal {
		t.Fatalf("expected fresh local token, got %q from %q", got, src)
	}
}

func TestResolveUnauthenticated(t *testing.T) {
	r, _, _ := newResolver(t, nil, "")
	stale := signedWithExpiry(t, time.Now().Add(-time.Hour))

	_, src, ok := r.Resolve(context.Background(), Scope{Meta: stale})
	if ok || src != SourceNone {
		t.Fatalf("expected unauthenticated, got %q %v", src, ok)
	}
}

func TestRememberEmptyRemoves(t *testing.T) {
	ctx := context.Background()
	r, session, _ := newResolver(t, nil, "")
	scope := Scope{SessionNS: "tab"}

	if err := r.Remember(ctx, SourceSession, scope, "tok"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if err := r.Remember(ctx, SourceSession, scope, "  "); err != nil {
		t.Fatalf("Remember empty: %v", err)
	}
	if _, err := session.Get(ctx, "tab", store.KeyToken); err == nil {
		t.Fatalf("expected token removed")
	}
	if err := r.Remember(ctx, SourceMeta, scope, "x"); err == nil {
		t.Fatalf("meta source must not be writable")
	}
}

func TestParseSources(t *testing.T) {
	got, err := ParseSources([]string{"Global", "session", "global"})
	if err != nil {
		t.Fatalf("ParseSources error: %v", err)
	}
	if len(got) != 2 || got[0] != SourceGlobal || got[1] != SourceSession {
		t.Fatalf("unexpected order: %v", got)
	}
	if _, err := ParseSources([]string{"cookie"}); err == nil {
		t.Fatalf("expected error for unknown source")
	}
	def, _ := ParseSources(nil)
	if len(def) != 4 || def[0] != SourceSession {
		t.Fatalf("unexpected default order: %v", def)
	}
}

func TestNewResolverRequiresLogger(t *testing.T) {
	if _, err := NewResolver(Options{}); err == nil {
		t.Fatalf("expected error without logger")
	}
}
