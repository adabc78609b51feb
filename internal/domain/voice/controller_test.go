package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	perrors "vesta-voice/internal/platform/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNavigationRouteSpeaksThenNavigates(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	h.say("abrir comparador")

	u := h.nextUtterance(1)
	assert.Equal(t, "Abriendo el comparador de seguros", u.Text)
	assert.Equal(t, "es-ES", u.Lang)
	assert.InDelta(t, 0.9, u.Rate, 1e-9)
	h.waitPhase(PhaseSpeaking)

	waitFor(t, "navigation", func() bool { return len(h.page.navigations()) == 1 })
	nav := h.page.navigations()[0]
	said := h.syn.utterances()[0]
	assert.Equal(t, "/cliente/comparador", nav.url)
	assert.True(t, nav.at.Sub(said.at) >= 20*time.Millisecond, "navigation must wait for the follow-up delay")
	assert.Zero(t, h.cls.calls.Load(), "local route must not reach the classifier")

	h.finishSpeaking(u)
	h.waitPhase(PhaseIdle)
	assert.Equal(t, "Abriendo el comparador de seguros", h.c.State().LastReply)
}

func TestRemoteFailureFallsBackToCannedReply(t *testing.T) {
	h := newHarness(t, nil)
	h.cls.fn = func(context.Context, ClassifyRequest) (*Result, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	h.open()

	h.say("¿Cuánto cuesta?")

	u := h.nextUtterance(1)
	assert.Equal(t, FallbackPrice, u.Text)
	assert.Equal(t, int32(1), h.cls.calls.Load())
	h.waitPhase(PhaseSpeaking)

	h.finishSpeaking(u)
	h.waitPhase(PhaseIdle)
}

func TestRemoteRequestCarriesTranscript(t *testing.T) {
	h := newHarness(t, nil)
	h.cls.fn = func(context.Context, ClassifyRequest) (*Result, error) {
		return &Result{Reply: "Tu póliza vence en marzo"}, nil
	}
	h.open()

	h.say("Cuándo Vence mi seguro")
	u := h.nextUtterance(1)
	assert.Equal(t, "Tu póliza vence en marzo", u.Text)

	h.cls.mu.Lock()
	req := h.cls.reqs[0]
	h.cls.mu.Unlock()
	assert.Equal(t, "Cuándo Vence mi seguro", req.Transcript)
	assert.Equal(t, "cuándo vence mi seguro", req.Normalized)
	assert.InDelta(t, 0.92, req.Confidence, 1e-9)
	assert.False(t, req.Timestamp.IsZero())
}

func TestRemoteActionRunsAfterDelay(t *testing.T) {
	h := newHarness(t, nil)
	invoked := make(chan []interface{}, 1)
	require.NoError(t, h.reg.Register("abrirChat", func(args []interface{}) error {
		invoked <- args
		return nil
	}))
	h.cls.fn = func(context.Context, ClassifyRequest) (*Result, error) {
		return &Result{
			Reply:  "Te conecto con un agente",
			Action: &Action{Kind: ActionInvokeFunction, Function: "abrirChat", Args: []interface{}{"soporte", 2.0}},
		}, nil
	}
	h.open()

	h.say("quiero hablar con alguien")
	h.nextUtterance(1)

	select {
	case args := <-invoked:
		assert.Equal(t, []interface{}{"soporte", 2.0}, args)
	case <-time.After(2 * time.Second):
		t.Fatal("registered function was not invoked")
	}
}

func TestUnboundFunctionIsSilentNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.cls.fn = func(context.Context, ClassifyRequest) (*Result, error) {
		return &Result{Action: &Action{Kind: ActionInvokeFunction, Function: "noExiste"}}, nil
	}
	h.open()

	h.say("haz algo raro")
	h.waitPhase(PhaseIdle)
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, h.syn.utterances())
	assert.Equal(t, PhaseIdle, h.c.State().Phase)
}

func TestRemoteWithoutReplyGoesIdleAndScrolls(t *testing.T) {
	h := newHarness(t, nil)
	h.cls.fn = func(context.Context, ClassifyRequest) (*Result, error) {
		return &Result{Action: &Action{Kind: ActionScrollTo, Selector: "#coberturas"}}, nil
	}
	h.open()

	h.say("muéstrame las coberturas")
	h.waitPhase(PhaseIdle)
	waitFor(t, "scroll", func() bool {
		h.page.mu.Lock()
		defer h.page.mu.Unlock()
		return len(h.page.scrolls) == 1 && h.page.scrolls[0] == "#coberturas"
	})
	assert.Empty(t, h.syn.utterances())
}

func TestAbortedRecognitionIsSilent(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	attempt := h.listen()
	require.NoError(t, h.c.Dispatch(Event{Kind: ErrorOccurred, Attempt: attempt, Error: ErrAborted}))

	h.waitPhase(PhaseIdle)
	settle()
	for _, toast := range h.page.toastList() {
		assert.Equal(t, "Escuchando...", toast.Message)
	}
	assert.Empty(t, h.syn.utterances())
	assert.Zero(t, h.c.State().ErrorCount)
}

func TestSpokenErrorFeedbackIsBounded(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	for i := 1; i <= 3; i++ {
		attempt := h.listen()
		require.NoError(t, h.c.Dispatch(Event{Kind: ErrorOccurred, Attempt: attempt, Error: ErrNoSpeech}))
		waitFor(t, "error counted", func() bool { return h.c.State().ErrorCount == i })
	}
	settle()

	said := h.syn.utterances()
	require.Len(t, said, 2, "only the first two errors are spoken")
	for _, s := range said {
		assert.Equal(t, "No se detectó voz. Intenta de nuevo.", s.u.Text)
	}

	// third error holds Listening for the display delay, then returns to Idle
	h.waitPhase(PhaseIdle)

	var dangerToasts int
	for _, toast := range h.page.toastList() {
		if toast.Message == "No se detectó voz. Intenta de nuevo." {
			dangerToasts++
			assert.Equal(t, ToastDanger, toast.Kind)
		}
	}
	assert.Equal(t, 3, dangerToasts, "every non-aborted error is toasted")

	h.say("ayuda")
	waitFor(t, "counter reset", func() bool { return h.c.State().ErrorCount == 0 })
	assert.Equal(t, ReplyHelp, h.nextUtterance(3).Text)
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	require.NoError(t, h.c.StopListening())
	require.NoError(t, h.c.StopSpeaking())
	settle()

	_, stops := h.rec.snapshot()
	assert.Empty(t, stops)
	assert.Zero(t, h.syn.cancelCount())
	assert.Equal(t, PhaseIdle, h.c.State().Phase)
}

func TestStopListening(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	attempt := h.listen()
	require.NoError(t, h.c.StopListening())
	h.waitPhase(PhaseIdle)

	_, stops := h.rec.snapshot()
	assert.Equal(t, []string{attempt}, stops)

	// a late result for the stopped attempt is ignored
	require.NoError(t, h.c.Dispatch(Event{Kind: ResultReady, Attempt: attempt, Transcript: "ayuda"}))
	settle()
	assert.Equal(t, PhaseIdle, h.c.State().Phase)
	assert.Nil(t, h.c.State().LastCommand)
}

func TestRecognitionTimeoutSpeaksFallback(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.RecognitionTimeout = 30 * time.Millisecond })
	h.open()

	attempt := h.listen()
	u := h.nextUtterance(1)
	assert.Equal(t, ReplyNotHeard, u.Text)
	h.waitPhase(PhaseSpeaking)

	_, stops := h.rec.snapshot()
	assert.Equal(t, []string{attempt}, stops)
}

func TestExitedPhaseTimerNeverFires(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.RecognitionTimeout = 50 * time.Millisecond })
	h.open()

	h.say("ayuda")
	u := h.nextUtterance(1)
	h.waitPhase(PhaseSpeaking)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, PhaseSpeaking, h.c.State().Phase)
	assert.Len(t, h.syn.utterances(), 1)
	_, stops := h.rec.snapshot()
	assert.Empty(t, stops)

	h.finishSpeaking(u)
	h.waitPhase(PhaseIdle)
}

func TestProcessingTimeoutDiscardsLateReply(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(cfg *Config) { cfg.ProcessingTimeout = 30 * time.Millisecond })
	h.cls.fn = func(ctx context.Context, _ ClassifyRequest) (*Result, error) {
		select {
		case <-release:
			return &Result{Reply: "respuesta tardía"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	h.open()

	h.say("consulta lenta")
	h.waitPhase(PhaseProcessing)
	h.waitPhase(PhaseIdle)

	var sawTimeout bool
	for _, toast := range h.page.toastList() {
		if toast.Message == "La solicitud está tardando demasiado. Inténtalo de nuevo." {
			sawTimeout = true
			assert.Equal(t, ToastDanger, toast.Kind)
		}
	}
	assert.True(t, sawTimeout, "processing timeout must surface a danger toast")

	close(release)
	settle()
	assert.Empty(t, h.syn.utterances(), "late reply must be discarded")
	assert.Equal(t, PhaseIdle, h.c.State().Phase)
}

func TestStartListeningPreemptsSpeaking(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	h.say("ayuda")
	u := h.nextUtterance(1)
	h.waitPhase(PhaseSpeaking)

	h.listen()
	assert.Equal(t, 1, h.syn.cancelCount())

	// the cancelled utterance finishing later must not end the new attempt
	h.finishSpeaking(u)
	settle()
	assert.Equal(t, PhaseListening, h.c.State().Phase)
}

func TestStartListeningRejectedWhileProcessing(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	h := newHarness(t, nil)
	h.cls.fn = func(ctx context.Context, _ ClassifyRequest) (*Result, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, errors.New("gone")
	}
	h.open()

	h.say("algo remoto")
	h.waitPhase(PhaseProcessing)
	require.NoError(t, h.c.StartListening())
	settle()

	starts, _ := h.rec.snapshot()
	assert.Len(t, starts, 1)
	assert.Equal(t, PhaseProcessing, h.c.State().Phase)
}

func TestCancelAbandonsProcessing(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, nil)
	h.cls.fn = func(ctx context.Context, _ ClassifyRequest) (*Result, error) {
		<-release
		return &Result{Reply: "demasiado tarde"}, nil
	}
	h.open()

	h.say("pregunta remota")
	h.waitPhase(PhaseProcessing)
	require.NoError(t, h.c.Cancel("hidden"))
	h.waitPhase(PhaseIdle)

	close(release)
	settle()
	assert.Empty(t, h.syn.utterances())
}

func TestThemeCommandPersistsPreference(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	h.say("Activa el modo oscuro")
	u := h.nextUtterance(1)
	assert.Equal(t, ReplyThemeDark, u.Text)

	h.page.mu.Lock()
	assert.Equal(t, []Theme{ThemeDark}, h.page.themes)
	h.page.mu.Unlock()
	h.themes.mu.Lock()
	assert.Equal(t, []Theme{ThemeDark}, h.themes.saved)
	h.themes.mu.Unlock()
	assert.Zero(t, h.cls.calls.Load())
}

func TestRepeatAndCancelCommands(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	h.say("repite")
	assert.Equal(t, ReplyNothing, h.nextUtterance(1).Text)
	h.finishSpeaking(h.nextUtterance(1))
	h.waitPhase(PhaseIdle)

	h.say("qué puedes hacer")
	h.finishSpeaking(h.nextUtterance(2))
	h.waitPhase(PhaseIdle)

	h.say("repite")
	assert.Equal(t, ReplyHelp, h.nextUtterance(3).Text)
	h.finishSpeaking(h.nextUtterance(3))
	h.waitPhase(PhaseIdle)

	h.say("olvídalo")
	assert.Equal(t, ReplyCancelled, h.nextUtterance(4).Text)
	assert.Zero(t, h.cls.calls.Load())
}

func TestSynthesisFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	h.say("ayuda")
	u := h.nextUtterance(1)
	h.waitPhase(PhaseSpeaking)

	require.NoError(t, h.c.Dispatch(Event{Kind: SynthesisFailed, Attempt: "other"}))
	settle()
	assert.Equal(t, PhaseSpeaking, h.c.State().Phase, "events for another utterance are ignored")

	assert.Empty(t, toastsWith(h.page.toastList(), MsgSynthesisFailed))

	require.NoError(t, h.c.Dispatch(Event{Kind: SynthesisFailed, Attempt: u.ID, Error: "synthesis-failed"}))
	h.waitPhase(PhaseIdle)
	waitFor(t, "synthesis error toast", func() bool {
		return len(toastsWith(h.page.toastList(), MsgSynthesisFailed)) == 1
	})
	toast := toastsWith(h.page.toastList(), MsgSynthesisFailed)[0]
	assert.Equal(t, ToastDanger, toast.Kind)
	assert.Equal(t, 40*time.Millisecond, toast.Duration)
}

func TestSpeakRejectedShowsToast(t *testing.T) {
	h := newHarness(t, nil)
	h.open()
	h.syn.failWith(errors.New("speechSynthesis unavailable"))

	h.say("ayuda")
	h.nextUtterance(1)
	h.waitPhase(PhaseIdle)
	waitFor(t, "synthesis error toast", func() bool {
		return len(toastsWith(h.page.toastList(), MsgSynthesisFailed)) == 1
	})
}

func toastsWith(toasts []Toast, message string) []Toast {
	var out []Toast
	for _, t := range toasts {
		if t.Message == message {
			out = append(out, t)
		}
	}
	return out
}

func TestVoicesChangedSelectsVoice(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	require.NoError(t, h.c.Dispatch(Event{Kind: VoicesChanged, Voices: []Voice{
		{Name: "Google US English", Lang: "en-US"},
		{Name: "Microsoft Elvira Female", Lang: "es-ES"},
	}}))
	h.say("ayuda")
	assert.Equal(t, "Microsoft Elvira Female", h.nextUtterance(1).Voice)
}

func TestKeyboardShortcuts(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	handled, err := h.c.HandleKey(Key{Name: "v", InputFocused: true})
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = h.c.HandleKey(Key{Name: "V"})
	require.NoError(t, err)
	assert.True(t, handled)
	h.waitPhase(PhaseListening)

	handled, err = h.c.HandleKey(Key{Name: "Escape"})
	require.NoError(t, err)
	assert.True(t, handled)
	h.waitPhase(PhaseIdle)

	handled, _ = h.c.HandleKey(Key{Name: "q"})
	assert.False(t, handled)
}

func TestToggle(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	require.NoError(t, h.c.Toggle())
	h.waitPhase(PhaseListening)
	require.NoError(t, h.c.Toggle())
	h.waitPhase(PhaseIdle)
}

func TestCapabilityAbsentAlertsOnce(t *testing.T) {
	h := newHarness(t, nil)

	err := h.c.Open(context.Background(), Capabilities{Recognition: false, Synthesis: true})
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.KindCapability))
	assert.Equal(t, []string{MsgNoRecognition}, h.alerts.alerts)
	assert.False(t, h.c.State().Initialized)
	assert.Error(t, h.c.StartListening())

	err = h.c.Open(context.Background(), Capabilities{Recognition: true})
	assert.True(t, perrors.IsKind(err, perrors.KindCapability))
	assert.Equal(t, []string{MsgNoRecognition, MsgNoSynthesis}, h.alerts.alerts)
}

func TestStopCommandsOnUnopenedControllerAreNoops(t *testing.T) {
	h := newHarness(t, nil)

	assert.NoError(t, h.c.StopListening())
	assert.NoError(t, h.c.StopSpeaking())
	assert.NoError(t, h.c.Cancel("hidden"))
	consumed, err := h.c.HandleKey(Key{Name: "Escape"})
	assert.True(t, consumed)
	assert.NoError(t, err)
	assert.Equal(t, PhaseIdle, h.c.State().Phase)

	assert.Error(t, h.c.StartListening())
	assert.Error(t, h.c.Toggle())

	// 能力检查失败后同样处于 Idle
	require.Error(t, h.c.Open(context.Background(), Capabilities{Synthesis: true}))
	assert.NoError(t, h.c.StopListening())
	assert.Empty(t, h.syn.utterances())
}

func TestConfigZeroValuesTakeDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	def := DefaultConfig()

	assert.Equal(t, time.Second, cfg.FollowUpDelay)
	assert.Equal(t, def.ErrorDisplayDelay, cfg.ErrorDisplayDelay)
	assert.Equal(t, def.MaxSpokenErrors, cfg.MaxSpokenErrors)
	assert.Equal(t, def.RecognitionTimeout, cfg.RecognitionTimeout)
	assert.Len(t, cfg.Routes, len(DefaultRoutes()))

	custom := Config{FollowUpDelay: 250 * time.Millisecond, MaxSpokenErrors: 1}.withDefaults()
	assert.Equal(t, 250*time.Millisecond, custom.FollowUpDelay)
	assert.Equal(t, 1, custom.MaxSpokenErrors)
}

func TestDispatchRejectsInternalKinds(t *testing.T) {
	h := newHarness(t, nil)
	h.open()
	assert.Error(t, h.c.Dispatch(Event{Kind: evProcessingTimeout}))
}

func TestCloseResetsStateAndDropsFollowUps(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness(t, func(cfg *Config) { cfg.FollowUpDelay = 200 * time.Millisecond })
	h.open()
	assert.True(t, h.c.State().Initialized)

	h.say("abrir carrito")
	h.nextUtterance(1)

	require.NoError(t, h.c.Close())
	require.NoError(t, h.c.Close())

	st := h.c.State()
	assert.False(t, st.Initialized)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Nil(t, st.LastCommand)

	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, h.page.navigations(), "follow-ups are dropped on close")
	assert.Error(t, h.c.StartListening())
}

func TestCloseCancelsInflightClassification(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	h := newHarness(t, nil)
	h.cls.fn = func(ctx context.Context, _ ClassifyRequest) (*Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	h.open()

	h.say("pregunta que nunca responde")
	<-started
	require.NoError(t, h.c.Close())
}

func TestNewRequiresPorts(t *testing.T) {
	_, err := New(DefaultConfig(), Deps{})
	assert.Error(t, err)
}
