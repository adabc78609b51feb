package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"vesta-voice/internal/domain/prefs/store"
)

// Source 令牌来源
type Source string

const (
	SourceSession Source = "session"
	SourceLocal   Source = "local"
	SourceMeta    Source = "meta"
	SourceGlobal  Source = "global"
	// SourceNone marks an unauthenticated request.
	SourceNone Source = ""
)

// DefaultOrder is the lookup order used when none is configured.
var DefaultOrder = []Source{SourceSession, SourceLocal, SourceMeta, SourceGlobal}

const (
	defaultCleanupInterval = 10 * time.Minute
	minCleanupInterval     = 30 * time.Second
)

// Logger provides the minimal logging contract required by the auth domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// ParseSources converts configured names into sources, preserving order.
func ParseSources(names []string) ([]Source, error) {
	if len(names) == 0 {
		return append([]Source(nil), DefaultOrder...), nil
	}
	out := make([]Source, 0, len(names))
	seen := make(map[Source]bool, len(names))
	for _, name := range names {
		src := Source(strings.ToLower(strings.TrimSpace(name)))
		switch src {
		case SourceSession, SourceLocal, SourceMeta, SourceGlobal:
		default:
			return nil, fmt.Errorf("unknown token source: %q", name)
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out, nil
}

// Scope identifies where a page's tokens live.
type Scope struct {
	// SessionNS 当前页面会话（标签页）命名空间
	SessionNS string
	// LocalNS 浏览器持久命名空间（跨会话）
	LocalNS string
	// Meta 页面 meta 标签声明的令牌
	Meta string
}

// Options encapsulates the dependencies required to construct a Resolver.
type Options struct {
	Order           []Source
	Session         store.Store
	Local           store.Store
	GlobalToken     string
	Logger          Logger
	CleanupInterval time.Duration
	Now             func() time.Time
}

// Resolver picks the bearer token for outgoing classifier requests.
type Resolver struct {
	order   []Source
	session store.Store
	local   store.Store
	global  string
	logger  Logger
	now     func() time.Time

	cleanupInterval time.Duration
	cleanupStop     chan struct{}
	cleanupOnce     sync.Once
}

// NewResolver wires a Resolver using the supplied options.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.Logger == nil {
		return nil, errors.New("token resolver requires a logger")
	}
	order := opts.Order
	if len(order) == 0 {
		order = DefaultOrder
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	interval := opts.CleanupInterval
	if interval <= 0 {
		interval = defaultCleanupInterval
	} else if interval < minCleanupInterval {
		opts.Logger.Warn("cleanup interval too small, adjusting to minimum %s", minCleanupInterval)
		interval = minCleanupInterval
	}

	r := &Resolver{
		order:           append([]Source(nil), order...),
		session:         opts.Session,
		local:           opts.Local,
		global:          strings.TrimSpace(opts.GlobalToken),
		logger:          opts.Logger,
		now:             now,
		cleanupInterval: interval,
		cleanupStop:     make(chan struct{}),
	}
	go r.runCleanup()
	return r, nil
}

func (r *Resolver) runCleanup() {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, s := range []store.Store{r.session, r.local} {
				if s == nil {
					continue
				}
				if err := s.CleanupExpired(context.Background()); err != nil {
					r.logger.Warn("token store cleanup failed: %v", err)
				}
			}
		case <-r.cleanupStop:
			return
		}
	}
}

// Order returns the configured lookup order.
func (r *Resolver) Order() []Source {
	return append([]Source(nil), r.order...)
}

// Resolve returns the first non-empty, non-expired token in the configured order.
// ok is false when the request must go out unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, scope Scope) (token string, src Source, ok bool) {
	now := r.now()
	for _, candidate := range r.order {
		value := r.lookup(ctx, candidate, scope)
		if value == "" {
			continue
		}
		if expired(value, now) {
			r.logger.Debug("skip expired token from %s", candidate)
			continue
		}
		return value, candidate, true
	}
	return "", SourceNone, false
}

func (r *Resolver) lookup(ctx context.Context, src Source, scope Scope) string {
	switch src {
	case SourceSession:
		return r.read(ctx, r.session, scope.SessionNS)
	case SourceLocal:
		return r.read(ctx, r.local, scope.LocalNS)
	case SourceMeta:
		return strings.TrimSpace(scope.Meta)
	case SourceGlobal:
		return r.global
	}
	return ""
}

func (r *Resolver) read(ctx context.Context, s store.Store, ns string) string {
	if s == nil || ns == "" {
		return ""
	}
	entry, err := s.Get(ctx, ns, store.KeyToken)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("token lookup failed: %v", err)
		}
		return ""
	}
	return strings.TrimSpace(entry.Value)
}

// Remember stores a token announced by the page under the session or local scope.
// An empty token removes the entry.
func (r *Resolver) Remember(ctx context.Context, src Source, scope Scope, token string) error {
	var (
		s  store.Store
		ns string
	)
	switch src {
	case SourceSession:
		s, ns = r.session, scope.SessionNS
	case SourceLocal:
		s, ns = r.local, scope.LocalNS
	default:
		return fmt.Errorf("token source %q is not writable", src)
	}
	if s == nil || ns == "" {
		return fmt.Errorf("token source %q has no store", src)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Remove(ctx, ns, store.KeyToken)
	}
	return s.Set(ctx, ns, store.Entry{
		Key:   store.KeyToken,
		Value: token,
		Meta:  map[string]string{"source": string(src)},
	})
}

// Close stops the background cleanup.
func (r *Resolver) Close() error {
	r.cleanupOnce.Do(func() {
		close(r.cleanupStop)
	})
	return nil
}
