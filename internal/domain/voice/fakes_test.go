package voice

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRecognizer struct {
	mu       sync.Mutex
	starts   []string
	stops    []string
	startErr error
}

func (f *fakeRecognizer) StartRecognition(attempt, lang string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, attempt)
	return f.startErr
}

func (f *fakeRecognizer) StopRecognition(attempt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, attempt)
	return nil
}

func (f *fakeRecognizer) snapshot() (starts, stops []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.starts...), append([]string(nil), f.stops...)
}

type spoken struct {
	u  Utterance
	at time.Time
}

type fakeSynth struct {
	mu      sync.Mutex
	said    []spoken
	cancels int
	fail    error
}

func (f *fakeSynth) Speak(u Utterance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, spoken{u: u, at: time.Now()})
	return f.fail
}

func (f *fakeSynth) failWith(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeSynth) CancelSpeech() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeSynth) utterances() []spoken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]spoken(nil), f.said...)
}

func (f *fakeSynth) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

type navigation struct {
	url string
	at  time.Time
}

type fakePage struct {
	mu      sync.Mutex
	navs    []navigation
	dialogs []string
	scrolls []string
	themes  []Theme
	toasts  []Toast
}

func (f *fakePage) Navigate(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navs = append(f.navs, navigation{url: url, at: time.Now()})
	return nil
}

func (f *fakePage) OpenDialog(selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogs = append(f.dialogs, selector)
	return nil
}

func (f *fakePage) ScrollTo(selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls = append(f.scrolls, selector)
	return nil
}

func (f *fakePage) ApplyTheme(theme Theme) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.themes = append(f.themes, theme)
	return nil
}

func (f *fakePage) Toast(t Toast) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, t)
	return nil
}

func (f *fakePage) navigations() []navigation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]navigation(nil), f.navs...)
}

func (f *fakePage) toastList() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Toast(nil), f.toasts...)
}

type fakeClassifier struct {
	calls atomic.Int32
	mu    sync.Mutex
	reqs  []ClassifyRequest
	fn    func(ctx context.Context, req ClassifyRequest) (*Result, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, req ClassifyRequest) (*Result, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return &Result{}, nil
	}
	return fn(ctx, req)
}

type fakeThemes struct {
	mu    sync.Mutex
	saved []Theme
}

func (f *fakeThemes) SaveTheme(_ context.Context, theme Theme) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, theme)
	return nil
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeAlerter) Alert(_, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, message)
	return nil
}

type harness struct {
	t      *testing.T
	c      *Controller
	rec    *fakeRecognizer
	syn    *fakeSynth
	page   *fakePage
	cls    *fakeClassifier
	themes *fakeThemes
	alerts *fakeAlerter
	reg    *Registry
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SessionID = "test"
	cfg.FollowUpDelay = 30 * time.Millisecond
	cfg.ErrorDisplayDelay = 40 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		t:      t,
		rec:    &fakeRecognizer{},
		syn:    &fakeSynth{},
		page:   &fakePage{},
		cls:    &fakeClassifier{},
		themes: &fakeThemes{},
		alerts: &fakeAlerter{},
		reg:    NewRegistry(),
	}
	c, err := New(cfg, Deps{
		Recognizer:  h.rec,
		Synthesizer: h.syn,
		Page:        h.page,
		Classifier:  h.cls,
		Themes:      h.themes,
		Alerter:     h.alerts,
		Registry:    h.reg,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	h.c = c
	t.Cleanup(func() { _ = c.Close() })
	return h
}

func (h *harness) open() {
	h.t.Helper()
	if err := h.c.Open(context.Background(), Capabilities{Recognition: true, Synthesis: true}); err != nil {
		h.t.Fatalf("Open error: %v", err)
	}
}

// listen starts a recognition attempt and returns its id.
func (h *harness) listen() string {
	h.t.Helper()
	before, _ := h.rec.snapshot()
	if err := h.c.StartListening(); err != nil {
		h.t.Fatalf("StartListening error: %v", err)
	}
	var attempt string
	waitFor(h.t, "recognition start", func() bool {
		starts, _ := h.rec.snapshot()
		if len(starts) > len(before) {
			attempt = starts[len(starts)-1]
			return true
		}
		return false
	})
	h.waitPhase(PhaseListening)
	return attempt
}

// say runs one full recognition that yields transcript.
func (h *harness) say(transcript string) {
	h.t.Helper()
	attempt := h.listen()
	if err := h.c.Dispatch(Event{Kind: ResultReady, Attempt: attempt, Transcript: transcript, Confidence: 0.92}); err != nil {
		h.t.Fatalf("Dispatch error: %v", err)
	}
}

// nextUtterance waits until the synthesizer has received n utterances and returns the last.
func (h *harness) nextUtterance(n int) Utterance {
	h.t.Helper()
	var u Utterance
	waitFor(h.t, "utterance", func() bool {
		said := h.syn.utterances()
		if len(said) >= n {
			u = said[n-1].u
			return true
		}
		return false
	})
	return u
}

func (h *harness) finishSpeaking(u Utterance) {
	h.t.Helper()
	if err := h.c.Dispatch(Event{Kind: SynthesisEnded, Attempt: u.ID}); err != nil {
		h.t.Fatalf("Dispatch error: %v", err)
	}
}

func (h *harness) waitPhase(p Phase) {
	h.t.Helper()
	waitFor(h.t, "phase "+p.String(), func() bool { return h.c.State().Phase == p })
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle lets queued events drain.
func settle() {
	time.Sleep(20 * time.Millisecond)
}
