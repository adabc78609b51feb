package voice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vesta-voice/internal/domain/eventbus"

	"github.com/google/uuid"
)

const themeSaveTimeout = 2 * time.Second

func (c *Controller) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.deps.Logger.Error("语音事件处理 panic: %v (event=%s)", r, ev.Kind)
		}
	}()

	switch ev.Kind {
	case evStart:
		c.onStart()
	case evStop:
		c.onStop()
	case evStopSpeaking:
		c.onStopSpeaking()
	case evToggle:
		if c.phase() == PhaseListening && !c.errorHold {
			c.onStop()
		} else {
			c.onStart()
		}
	case evEscape:
		c.onStop()
		c.onStopSpeaking()
	case evCancel:
		c.onCancel(ev.reason)
	case RecognitionStarted:
		if ev.Attempt == c.attempt && c.phase() == PhaseListening {
			c.deps.Logger.Debug("麦克风已激活 attempt=%s", ev.Attempt)
		}
	case ResultReady:
		c.onResult(ev)
	case ErrorOccurred:
		c.onRecognitionError(ev)
	case RecognitionEnded:
		c.onRecognitionEnded(ev)
	case SynthesisStarted:
		if ev.Attempt == c.utterance {
			c.deps.Logger.Debug("开始播报 utterance=%s", ev.Attempt)
		}
	case SynthesisEnded, SynthesisFailed:
		c.onSynthesisDone(ev)
	case VoicesChanged:
		c.onVoices(ev.Voices)
	case evRecognitionTimeout:
		c.onRecognitionTimeout(ev.gen)
	case evErrorHoldElapsed:
		if c.fired(slotListening, ev.gen) && c.errorHold {
			c.errorHold = false
			c.setPhase(PhaseIdle)
		}
	case evProcessingTimeout:
		c.onProcessingTimeout(ev.gen)
	case evRemoteDone:
		c.onRemoteDone(ev)
	case evFollowUp:
		if f, ok := c.followUps[ev.seq]; ok {
			delete(c.followUps, ev.seq)
			f.run()
		}
	}
}

func (c *Controller) phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	from := c.state.Phase
	c.state.Phase = p
	snapshot := c.state.clone()
	c.mu.Unlock()
	if from == p {
		return
	}
	c.publish(eventbus.EventVoicePhase, eventbus.PhaseEventData{
		SessionID: c.cfg.SessionID,
		From:      from.String(),
		To:        p.String(),
	})
	if c.deps.OnPhase != nil {
		c.deps.OnPhase(snapshot)
	}
}

func (c *Controller) onStart() {
	switch c.phase() {
	case PhaseListening:
		if !c.errorHold {
			c.deps.Logger.Debug("已在监听中")
			return
		}
		// 错误展示期间允许立即重试
		c.clearGuard(slotListening)
		c.errorHold = false
	case PhaseProcessing:
		c.deps.Logger.Debug("处理中，忽略开始监听")
		return
	case PhaseSpeaking:
		c.cancelSpeech()
	}

	c.attempt = uuid.NewString()
	c.setPhase(PhaseListening)
	if err := c.deps.Recognizer.StartRecognition(c.attempt, c.cfg.Language); err != nil {
		c.deps.Logger.Warn("启动识别失败: %v", err)
		c.recognitionFailed(ErrNotAllowed)
		return
	}
	c.arm(slotListening, c.cfg.RecognitionTimeout, evRecognitionTimeout)
	c.toast("Escuchando...", ToastDanger, 0)
}

func (c *Controller) onStop() {
	if c.phase() != PhaseListening {
		return
	}
	c.clearGuard(slotListening)
	if c.errorHold {
		c.errorHold = false
	} else if c.attempt != "" {
		if err := c.deps.Recognizer.StopRecognition(c.attempt); err != nil {
			c.deps.Logger.Warn("停止识别失败: %v", err)
		}
	}
	c.attempt = ""
	c.setPhase(PhaseIdle)
}

func (c *Controller) onStopSpeaking() {
	if c.phase() != PhaseSpeaking {
		return
	}
	c.cancelSpeech()
	c.setPhase(PhaseIdle)
}

func (c *Controller) onCancel(reason string) {
	c.deps.Logger.Debug("外部取消: %s", reason)
	c.onStop()
	c.onStopSpeaking()
	if c.phase() == PhaseProcessing {
		c.clearGuard(slotProcessing)
		c.seq++
		c.setPhase(PhaseIdle)
	}
}

func (c *Controller) cancelSpeech() {
	c.utterance = ""
	if err := c.deps.Synthesizer.CancelSpeech(); err != nil {
		c.deps.Logger.Warn("取消播报失败: %v", err)
	}
}

func (c *Controller) onResult(ev Event) {
	if c.phase() != PhaseListening || c.errorHold || ev.Attempt == "" || ev.Attempt != c.attempt {
		c.deps.Logger.Debug("忽略过期识别结果 attempt=%s", ev.Attempt)
		return
	}
	c.clearGuard(slotListening)
	c.attempt = ""

	text := strings.TrimSpace(ev.Transcript)
	if text == "" {
		c.setPhase(PhaseIdle)
		return
	}

	now := time.Now()
	c.mu.Lock()
	c.state.LastCommand = &Command{Text: text, Confidence: ev.Confidence, Timestamp: now}
	c.state.ErrorCount = 0
	c.mu.Unlock()

	c.setPhase(PhaseProcessing)
	c.toast(fmt.Sprintf("Procesando: \"%s\"", text), ToastInfo, 0)
	c.arm(slotProcessing, c.cfg.ProcessingTimeout, evProcessingTimeout)
	c.process(text, ev.Confidence, now)
}

// process resolves a final transcript: local rules first, then the remote classifier.
func (c *Controller) process(text string, confidence float64, ts time.Time) {
	normalized := Normalize(text)
	match := resolveLocal(normalized, c.routes)

	var reply string
	remember := true
	switch match.kind {
	case localRepeat:
		reply = c.State().LastReply
		if reply == "" {
			reply, remember = ReplyNothing, false
		}
	case localCancel:
		reply = ReplyCancelled
	case localTheme:
		c.applyTheme(match.theme)
		reply = ReplyThemeLight
		if match.theme == ThemeDark {
			reply = ReplyThemeDark
		}
	case localRoute:
		route := match.route
		reply = route.Confirmation
		c.schedule("navigate:"+route.Name, func() {
			c.execute(Action{Kind: ActionRedirect, URL: route.TargetURL})
		})
	case localHelp:
		reply = ReplyHelp
	default:
		c.remote(text, confidence, ts)
		return
	}

	c.publishCommand(text, confidence, "local:"+match.kind.String(), reply)
	c.finish(reply, remember)
}

func (c *Controller) remote(text string, confidence float64, ts time.Time) {
	c.seq++
	seq := c.seq
	c.pendingRaw = text

	if c.deps.Classifier == nil {
		c.onRemoteDone(Event{Kind: evRemoteDone, seq: seq, err: fmt.Errorf("classifier not configured")})
		return
	}

	req := ClassifyRequest{
		Transcript: text,
		Normalized: Lower(text),
		Timestamp:  ts,
		Confidence: confidence,
	}
	ctx := c.ctx
	classifier := c.deps.Classifier
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		result, err := classifier.Classify(ctx, req)
		c.post(Event{Kind: evRemoteDone, seq: seq, result: result, err: err})
	}()
}

func (c *Controller) onRemoteDone(ev Event) {
	if c.phase() != PhaseProcessing || ev.seq != c.seq {
		c.deps.Logger.Debug("丢弃过期的远程回复 seq=%d", ev.seq)
		return
	}
	text := c.pendingRaw
	c.pendingRaw = ""

	if ev.err != nil || ev.result == nil {
		name, reply := fallbackReply(Normalize(text))
		c.deps.Logger.Warn("远程分类失败，使用兜底回复 %s: %v", name, ev.err)
		c.publishCommand(text, 0, "fallback:"+name, reply)
		c.finish(reply, true)
		return
	}

	reply := strings.TrimSpace(ev.result.Reply)
	if action := ev.result.Action; action != nil {
		a := *action
		c.schedule("action:"+string(a.Kind), func() { c.execute(a) })
	}
	c.publishCommand(text, 0, "remote", reply)
	c.finish(reply, reply != "")
}

// finish leaves Processing: speak the reply, or go Idle when there is none.
func (c *Controller) finish(reply string, remember bool) {
	c.clearGuard(slotProcessing)
	if reply == "" {
		c.setPhase(PhaseIdle)
		return
	}
	if remember {
		c.mu.Lock()
		c.state.LastReply = reply
		c.mu.Unlock()
	}
	c.speak(reply, true)
}

func (c *Controller) speak(text string, announce bool) {
	id := uuid.NewString()
	u := Utterance{
		ID:     id,
		Text:   text,
		Lang:   c.cfg.Language,
		Rate:   c.cfg.SpeechRate,
		Pitch:  c.cfg.SpeechPitch,
		Volume: c.cfg.SpeechVolume,
	}
	if c.voice != nil {
		u.Voice = c.voice.Name
	}
	if err := c.deps.Synthesizer.Speak(u); err != nil {
		c.deps.Logger.Warn("播报失败: %v", err)
		c.utterance = ""
		c.setPhase(PhaseIdle)
		c.synthesisFailed(err.Error())
		return
	}
	c.utterance = id
	c.setPhase(PhaseSpeaking)
	if announce {
		c.toast("Hablando...", ToastSuccess, 0)
	}
}

func (c *Controller) onSynthesisDone(ev Event) {
	if ev.Attempt == "" || ev.Attempt != c.utterance || c.phase() != PhaseSpeaking {
		return
	}
	c.utterance = ""
	c.setPhase(PhaseIdle)
	if ev.Kind == SynthesisFailed {
		c.deps.Logger.Warn("语音合成错误: %s", ev.Error)
		c.synthesisFailed(ev.Error)
	}
}

// synthesisFailed can only be shown, the voice channel is what failed.
func (c *Controller) synthesisFailed(detail string) {
	c.toast(MsgSynthesisFailed, ToastDanger, c.cfg.ErrorDisplayDelay)
	c.publish(eventbus.EventVoiceError, eventbus.ErrorEventData{
		SessionID: c.cfg.SessionID,
		Code:      "synthesis-failed",
		Message:   detail,
	})
}

func (c *Controller) onRecognitionError(ev Event) {
	if c.phase() != PhaseListening || c.errorHold || ev.Attempt == "" || ev.Attempt != c.attempt {
		return
	}
	c.recognitionFailed(ev.Error)
}

// recognitionFailed ends the current attempt with code. Aborted attempts end
// silently; others toast, and speak while the consecutive count allows it.
func (c *Controller) recognitionFailed(code string) {
	c.clearGuard(slotListening)
	c.attempt = ""
	if code == ErrAborted {
		c.setPhase(PhaseIdle)
		return
	}

	msg := RecognitionErrorMessage(code)
	c.mu.Lock()
	c.state.ErrorCount++
	count := c.state.ErrorCount
	c.mu.Unlock()
	spoken := count <= c.cfg.MaxSpokenErrors

	c.toast(msg, ToastDanger, c.cfg.ErrorDisplayDelay)
	c.publish(eventbus.EventVoiceError, eventbus.ErrorEventData{
		SessionID: c.cfg.SessionID,
		Code:      code,
		Message:   msg,
		Count:     count,
		Spoken:    spoken,
	})

	if spoken {
		c.setPhase(PhaseIdle)
		c.speak(msg, false)
		return
	}
	c.errorHold = true
	c.arm(slotListening, c.cfg.ErrorDisplayDelay, evErrorHoldElapsed)
}

func (c *Controller) onRecognitionEnded(ev Event) {
	if c.phase() != PhaseListening || c.errorHold || ev.Attempt == "" || ev.Attempt != c.attempt {
		return
	}
	c.clearGuard(slotListening)
	c.attempt = ""
	c.setPhase(PhaseIdle)
}

func (c *Controller) onRecognitionTimeout(gen uint64) {
	if !c.fired(slotListening, gen) || c.errorHold || c.phase() != PhaseListening {
		return
	}
	if c.attempt != "" {
		if err := c.deps.Recognizer.StopRecognition(c.attempt); err != nil {
			c.deps.Logger.Warn("停止识别失败: %v", err)
		}
	}
	c.attempt = ""
	c.setPhase(PhaseIdle)
	c.toast(ReplyNotHeard, ToastWarning, c.cfg.ErrorDisplayDelay)
	c.speak(ReplyNotHeard, false)
}

func (c *Controller) onProcessingTimeout(gen uint64) {
	if !c.fired(slotProcessing, gen) || c.phase() != PhaseProcessing {
		return
	}
	c.seq++
	c.pendingRaw = ""
	c.setPhase(PhaseIdle)
	msg := "La solicitud está tardando demasiado. Inténtalo de nuevo."
	c.toast(msg, ToastDanger, c.cfg.ErrorDisplayDelay)
	c.publish(eventbus.EventVoiceError, eventbus.ErrorEventData{
		SessionID: c.cfg.SessionID,
		Code:      "processing-timeout",
		Message:   msg,
	})
}

func (c *Controller) onVoices(voices []Voice) {
	c.voices = append(c.voices[:0], voices...)
	c.voice = SelectVoice(c.voices, c.cfg.Language)
	if c.voice != nil {
		c.deps.Logger.Debug("选择声音 %s (%s)", c.voice.Name, c.voice.Lang)
	}
}

// execute performs a follow-up action. Missing targets are a silent no-op.
func (c *Controller) execute(a Action) {
	var (
		err      error
		executed = true
	)
	switch a.Kind {
	case ActionRedirect:
		if a.URL == "" {
			executed = false
			break
		}
		err = c.deps.Page.Navigate(a.URL)
	case ActionOpenDialog:
		err = c.deps.Page.OpenDialog(a.Selector)
	case ActionScrollTo:
		err = c.deps.Page.ScrollTo(a.Selector)
	case ActionInvokeFunction:
		executed, err = c.deps.Registry.Invoke(a.Function, a.Args)
		if !executed {
			c.deps.Logger.Debug("未注册的页面函数: %s", a.Function)
		}
	default:
		executed = false
	}
	if err != nil {
		c.deps.Logger.Warn("执行动作 %s 失败: %v", a.Kind, err)
	}
	c.publish(eventbus.EventVoiceAction, eventbus.ActionEventData{
		SessionID: c.cfg.SessionID,
		Kind:      string(a.Kind),
		Target:    a.Target(),
		Executed:  executed && err == nil,
	})
}

func (c *Controller) applyTheme(theme Theme) {
	if err := c.deps.Page.ApplyTheme(theme); err != nil {
		c.deps.Logger.Warn("应用主题失败: %v", err)
	}
	if c.deps.Themes == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, themeSaveTimeout)
	defer cancel()
	if err := c.deps.Themes.SaveTheme(ctx, theme); err != nil {
		c.deps.Logger.Warn("保存主题失败: %v", err)
	}
}

// setThemeHandler backs the built-in "setTheme" page function.
func (c *Controller) setThemeHandler(args []interface{}) error {
	if len(args) == 0 {
		return fmt.Errorf("setTheme requires a theme argument")
	}
	name, _ := args[0].(string)
	switch theme := Theme(strings.ToLower(strings.TrimSpace(name))); theme {
	case ThemeDark, ThemeLight:
		c.applyTheme(theme)
		return nil
	default:
		return fmt.Errorf("unknown theme %q", name)
	}
}

func (c *Controller) toast(msg string, kind ToastKind, d time.Duration) {
	if err := c.deps.Page.Toast(Toast{Message: msg, Kind: kind, Duration: d}); err != nil {
		c.deps.Logger.Debug("toast failed: %v", err)
	}
}

func (c *Controller) publish(topic string, data interface{}) {
	if c.deps.Events != nil {
		c.deps.Events.PublishAsync(topic, data)
	}
}

func (c *Controller) publishCommand(text string, confidence float64, resolution, reply string) {
	if confidence == 0 {
		if cmd := c.State().LastCommand; cmd != nil {
			confidence = cmd.Confidence
		}
	}
	c.publish(eventbus.EventVoiceCommand, eventbus.CommandEventData{
		SessionID:  c.cfg.SessionID,
		Text:       text,
		Confidence: confidence,
		Resolution: resolution,
		Reply:      reply,
	})
}
