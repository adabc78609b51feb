package voice

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ActionKind 远程动作类型
type ActionKind string

const (
	ActionRedirect       ActionKind = "redirect"
	ActionOpenDialog     ActionKind = "modal"
	ActionInvokeFunction ActionKind = "function"
	ActionScrollTo       ActionKind = "scroll"
)

// ParseActionKind maps the classifier's tipo field.
func ParseActionKind(tipo string) (ActionKind, error) {
	switch k := ActionKind(strings.ToLower(strings.TrimSpace(tipo))); k {
	case ActionRedirect, ActionOpenDialog, ActionInvokeFunction, ActionScrollTo:
		return k, nil
	default:
		return "", fmt.Errorf("unknown action kind %q", tipo)
	}
}

// Action is the follow-up requested by the remote classifier.
type Action struct {
	Kind     ActionKind    `json:"kind"`
	URL      string        `json:"url,omitempty"`
	Selector string        `json:"selector,omitempty"`
	Function string        `json:"function,omitempty"`
	Args     []interface{} `json:"args,omitempty"`
}

// Target describes what the action points at, for logs.
func (a Action) Target() string {
	switch a.Kind {
	case ActionRedirect:
		return a.URL
	case ActionInvokeFunction:
		return a.Function
	default:
		return a.Selector
	}
}

// Result 远程分类结果。Reply 为空表示不播报
type Result struct {
	Reply  string  `json:"reply,omitempty"`
	Action *Action `json:"action,omitempty"`
}

// Handler is a page behavior the server may trigger by name.
type Handler func(args []interface{}) error

// Registry maps function names to registered handlers.
// Lookups of unbound names report ok=false and nothing runs.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds name to h, replacing any previous binding.
func (r *Registry) Register(name string, h Handler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("function name required")
	}
	if h == nil {
		return fmt.Errorf("handler for %q is nil", name)
	}
	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
	return nil
}

// Has reports whether name is bound.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	_, ok := r.handlers[name]
	r.mu.RUnlock()
	return ok
}

// Invoke runs the handler bound to name.
func (r *Registry) Invoke(name string, args []interface{}) (ok bool, err error) {
	r.mu.RLock()
	h, found := r.handlers[name]
	r.mu.RUnlock()
	if !found {
		return false, nil
	}
	return true, h(args)
}

// Names 已注册的函数名（排序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
