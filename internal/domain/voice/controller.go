package voice

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"vesta-voice/internal/platform/errors"
)

// 浏览器能力缺失提示
const (
	AlertTitle       = "Asistente de voz"
	MsgNoRecognition = "Tu navegador no soporta reconocimiento de voz. Usa Chrome, Edge o Safari."
	MsgNoSynthesis   = "Tu navegador no soporta síntesis de voz."

	MsgSynthesisFailed = "No se pudo reproducir la respuesta por voz."
)

// Config 控制器参数。零值字段在 New 中取 DefaultConfig 的对应值
type Config struct {
	SessionID          string
	Language           string
	SpeechRate         float64
	SpeechPitch        float64
	SpeechVolume       float64
	RecognitionTimeout time.Duration
	ProcessingTimeout  time.Duration
	ErrorDisplayDelay  time.Duration
	FollowUpDelay      time.Duration
	// MaxSpokenErrors 连续错误中最多播报的次数
	MaxSpokenErrors int
	Routes          []NavigationRoute
	QueueSize       int
}

// DefaultConfig returns the stock assistant settings.
func DefaultConfig() Config {
	return Config{
		Language:           "es-ES",
		SpeechRate:         0.9,
		SpeechPitch:        1.0,
		SpeechVolume:       1.0,
		RecognitionTimeout: 10 * time.Second,
		ProcessingTimeout:  15 * time.Second,
		ErrorDisplayDelay:  3 * time.Second,
		FollowUpDelay:      time.Second,
		MaxSpokenErrors:    2,
		Routes:             DefaultRoutes(),
		QueueSize:          64,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.SpeechRate <= 0 {
		cfg.SpeechRate = def.SpeechRate
	}
	if cfg.RecognitionTimeout <= 0 {
		cfg.RecognitionTimeout = def.RecognitionTimeout
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = def.ProcessingTimeout
	}
	if cfg.ErrorDisplayDelay <= 0 {
		cfg.ErrorDisplayDelay = def.ErrorDisplayDelay
	}
	if cfg.FollowUpDelay <= 0 {
		cfg.FollowUpDelay = def.FollowUpDelay
	}
	if cfg.MaxSpokenErrors <= 0 {
		cfg.MaxSpokenErrors = def.MaxSpokenErrors
	}
	if cfg.Routes == nil {
		cfg.Routes = def.Routes
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return cfg
}

// EffectiveRoutes returns the navigation routes a controller built from cfg
// resolves against, DefaultRoutes when none are configured.
func (cfg Config) EffectiveRoutes() []NavigationRoute {
	return cfg.withDefaults().Routes
}

// Deps are the collaborators a controller drives.
type Deps struct {
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Page        Page
	Classifier  Classifier
	Themes      ThemeStore
	Alerter     Alerter
	Registry    *Registry
	Events      Publisher
	Logger      Logger
	// OnPhase 在分发协程上调用，不能阻塞
	OnPhase func(State)
}

type followUp struct {
	name  string
	run   func()
	timer *time.Timer
}

// Controller owns one page session's listening/processing/speaking flow.
// Every mutation runs on a single dispatcher goroutine fed by a buffered queue.
type Controller struct {
	cfg    Config
	deps   Deps
	routes []compiledRoute

	events chan Event
	done   chan struct{}

	lifecycle sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	opened    atomic.Bool
	openOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu    sync.RWMutex
	state State

	// 以下字段只在分发协程中访问
	attempt    string
	errorHold  bool
	utterance  string
	seq        uint64
	pendingRaw string
	guards     [slotCount]guard
	followUps  map[uint64]*followUp
	nextFollow uint64
	voices     []Voice
	voice      *Voice
}

// New creates a controller. Call Open to start dispatching.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Recognizer == nil || deps.Synthesizer == nil || deps.Page == nil {
		return nil, errors.New(errors.KindDomain, "voice.new", "recognizer, synthesizer and page are required")
	}
	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:       cfg,
		deps:      deps,
		routes:    compileRoutes(cfg.Routes),
		events:    make(chan Event, cfg.QueueSize),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		followUps: make(map[uint64]*followUp),
	}

	if !deps.Registry.Has("setTheme") {
		_ = deps.Registry.Register("setTheme", c.setThemeHandler)
	}
	return c, nil
}

// Open checks the page capabilities and starts the dispatcher.
// A missing speech capability is reported once through the Alerter and
// leaves the controller uninitialized.
func (c *Controller) Open(ctx context.Context, caps Capabilities) error {
	if !caps.Recognition {
		c.alert(MsgNoRecognition)
		return errors.New(errors.KindCapability, "voice.open", MsgNoRecognition)
	}
	if !caps.Synthesis {
		c.alert(MsgNoSynthesis)
		return errors.New(errors.KindCapability, "voice.open", MsgNoSynthesis)
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	select {
	case <-c.done:
		return errors.New(errors.KindDomain, "voice.open", "controller closed")
	default:
	}

	c.openOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		c.cancel()
		c.ctx, c.cancel = context.WithCancel(ctx)

		c.mu.Lock()
		c.state.Initialized = true
		c.mu.Unlock()
		c.opened.Store(true)

		c.wg.Add(1)
		go c.loop()
		c.deps.Logger.Info("语音控制器已启动 session=%s lang=%s", c.cfg.SessionID, c.cfg.Language)
	})
	return nil
}

func (c *Controller) alert(msg string) {
	if c.deps.Alerter == nil {
		c.deps.Logger.Error("%s", msg)
		return
	}
	if err := c.deps.Alerter.Alert(AlertTitle, msg); err != nil {
		c.deps.Logger.Warn("alert failed: %v", err)
	}
}

// StartListening begins a recognition attempt. Speaking is preempted,
// processing rejects the request.
func (c *Controller) StartListening() error { return c.submit(Event{Kind: evStart}) }

// StopListening forces Listening to Idle. It is a no-op in any other phase.
func (c *Controller) StopListening() error { return c.submit(Event{Kind: evStop}) }

// StopSpeaking forces Speaking to Idle.
func (c *Controller) StopSpeaking() error { return c.submit(Event{Kind: evStopSpeaking}) }

// Toggle stops listening when listening, otherwise starts.
func (c *Controller) Toggle() error { return c.submit(Event{Kind: evToggle}) }

// Cancel handles an external cancellation such as the tab becoming hidden.
// Listening and speaking stop; a pending remote reply is abandoned.
func (c *Controller) Cancel(reason string) error {
	return c.submit(Event{Kind: evCancel, reason: reason})
}

// HandleKey maps a keyboard shortcut onto the controller. It reports whether
// the key was consumed, so the page can suppress the default behaviour.
func (c *Controller) HandleKey(k Key) (bool, error) {
	kind, ok := keyAction(k)
	if !ok {
		return false, nil
	}
	return true, c.submit(Event{Kind: kind})
}

// Dispatch feeds a recognizer, synthesizer or voice-catalogue event.
func (c *Controller) Dispatch(ev Event) error {
	if !ev.Kind.external() {
		return errors.New(errors.KindDomain, "voice.dispatch", "unsupported event kind")
	}
	ev.gen, ev.seq, ev.result, ev.err, ev.reason = 0, 0, nil, nil, ""
	return c.submit(ev)
}

// State returns a snapshot of the interaction state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Close stops the dispatcher, cancels in-flight remote calls, drops pending
// follow-ups and resets the state. It is safe to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.lifecycle.Lock()
		close(c.done)
		cancel := c.cancel
		c.lifecycle.Unlock()

		cancel()
		c.wg.Wait()

		for s := range c.guards {
			c.clearGuard(slot(s))
		}
		for id, f := range c.followUps {
			f.timer.Stop()
			delete(c.followUps, id)
		}

		c.mu.RLock()
		phase := c.state.Phase
		c.mu.RUnlock()
		switch {
		case phase == PhaseListening && c.attempt != "":
			_ = c.deps.Recognizer.StopRecognition(c.attempt)
		case phase == PhaseSpeaking:
			_ = c.deps.Synthesizer.CancelSpeech()
		}

		c.mu.Lock()
		c.state = State{}
		c.mu.Unlock()
		c.attempt, c.utterance, c.errorHold = "", "", false
		c.opened.Store(false)
		c.deps.Logger.Info("语音控制器已关闭 session=%s", c.cfg.SessionID)
	})
	return nil
}

func (c *Controller) submit(ev Event) error {
	if !c.opened.Load() {
		if ev.Kind.stops() {
			// 未启动的控制器始终处于 Idle，停止类命令无事可做
			return nil
		}
		return errors.New(errors.KindDomain, "voice.submit", "controller not initialized")
	}
	if !c.post(ev) {
		return errors.New(errors.KindDomain, "voice.submit", "controller closed")
	}
	return nil
}

// post enqueues ev unless the controller is closed.
func (c *Controller) post(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
