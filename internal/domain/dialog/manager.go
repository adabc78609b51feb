package dialog

import (
	"sync"

	"github.com/google/uuid"

	"vesta-voice/internal/platform/errors"
)

// Presenter renders dialogs on the page and removes them again.
type Presenter interface {
	Present(d Dialog) error
	Dispose(id string) error
}

// Alerter is the basic blocking notice used when no presenter is available.
type Alerter interface {
	Alert(title, message string) error
}

// Logger is the subset of logging the manager needs.
type Logger interface {
	DebugTag(tag, msg string, args ...interface{})
	WarnTag(tag, msg string, args ...interface{})
}

type pending struct {
	onConfirm func()
	onCancel  func()
}

// Manager shows dialogs and runs at most one of their callbacks, exactly once.
type Manager struct {
	presenter Presenter
	alerter   Alerter
	logger    Logger

	mu      sync.Mutex
	pending map[string]*pending
	closed  bool
}

// NewManager builds a manager. presenter may be nil, in which case every
// dialog degrades to alerter.
func NewManager(presenter Presenter, alerter Alerter, logger Logger) *Manager {
	return &Manager{
		presenter: presenter,
		alerter:   alerter,
		logger:    logger,
		pending:   make(map[string]*pending),
	}
}

func (m *Manager) ShowInfo(title, message string) (string, error) {
	return m.show(KindInfo, title, message, nil, nil)
}

func (m *Manager) ShowSuccess(title, message string) (string, error) {
	return m.show(KindSuccess, title, message, nil, nil)
}

func (m *Manager) ShowError(title, message string) (string, error) {
	return m.show(KindError, title, message, nil, nil)
}

func (m *Manager) ShowWarning(title, message string) (string, error) {
	return m.show(KindWarning, title, message, nil, nil)
}

// ShowConfirm asks a yes/no question. Either callback may be nil.
func (m *Manager) ShowConfirm(title, message string, onConfirm, onCancel func()) (string, error) {
	return m.show(KindConfirm, title, message, onConfirm, onCancel)
}

// Alert reports a blocking problem, such as missing speech support.
func (m *Manager) Alert(title, message string) error {
	_, err := m.ShowError(title, message)
	return err
}

func (m *Manager) show(kind Kind, title, message string, onConfirm, onCancel func()) (string, error) {
	d := build(uuid.NewString(), kind, title, message)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", errors.New(errors.KindDomain, "dialog.show", "dialog manager closed")
	}
	if m.presenter != nil {
		m.pending[d.ID] = &pending{onConfirm: onConfirm, onCancel: onCancel}
	}
	m.mu.Unlock()

	if m.presenter != nil {
		err := m.presenter.Present(d)
		if err == nil {
			return d.ID, nil
		}
		m.mu.Lock()
		delete(m.pending, d.ID)
		m.mu.Unlock()
		m.warn("渲染对话框失败，改用基础提示: %v", err)
	}

	if err := m.fallback(d); err != nil {
		return "", err
	}
	// 基础提示无法回答确认问题，按取消处理
	if kind == KindConfirm && onCancel != nil {
		onCancel()
	}
	return d.ID, nil
}

func (m *Manager) fallback(d Dialog) error {
	if m.alerter == nil {
		return errors.New(errors.KindDomain, "dialog.fallback", "no presenter or alerter available")
	}
	if err := m.alerter.Alert(d.Title, d.Message); err != nil {
		return errors.Wrap(errors.KindDomain, "dialog.fallback", "alert failed", err)
	}
	return nil
}

// Resolve records the user's answer for id. Confirming runs onConfirm,
// dismissing runs onCancel for confirmation dialogs only. It reports false
// when id is unknown or was already resolved.
func (m *Manager) Resolve(id string, confirmed bool) bool {
	m.mu.Lock()
	p, ok := m.pending[id]
	delete(m.pending, id)
	m.mu.Unlock()
	if !ok {
		m.debug("忽略未知对话框 %s", id)
		return false
	}

	if confirmed && p.onConfirm != nil {
		p.onConfirm()
	} else if !confirmed && p.onCancel != nil {
		p.onCancel()
	}

	if m.presenter != nil {
		if err := m.presenter.Dispose(id); err != nil {
			m.warn("关闭对话框 %s 失败: %v", id, err)
		}
	}
	return true
}

// Pending returns how many dialogs await an answer.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Close drops unanswered dialogs without running their callbacks.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.pending = make(map[string]*pending)
	m.mu.Unlock()
}

func (m *Manager) debug(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.DebugTag("对话框", msg, args...)
	}
}

func (m *Manager) warn(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.WarnTag("对话框", msg, args...)
	}
}
