package services

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"

	"vesta-voice/internal/domain/tts/edge"
	"vesta-voice/internal/domain/voice"
	"vesta-voice/internal/platform/logging"
)

// Synthesis is the server-side speech backend.
type Synthesis interface {
	Synthesize(ctx context.Context, text, voiceName string) (*edge.Audio, error)
}

// SpeechService 服务端合成：音频生成后推送给页面播放，页面以 utterance id 回报播放事件
type SpeechService struct {
	synthesis Synthesis
	out       *MessageQueue
	logger    *logging.Logger
	// dispatch 把合成失败回报给控制器
	dispatch func(voice.Event) error

	// 每次 Speak/CancelSpeech 递增，旧轮次的结果被丢弃
	round atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSpeechService(synthesis Synthesis, out *MessageQueue, logger *logging.Logger, dispatch func(voice.Event) error) *SpeechService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SpeechService{
		synthesis: synthesis,
		out:       out,
		logger:    logger,
		dispatch:  dispatch,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Speak synthesises u in the background. It returns once the work is queued.
func (s *SpeechService) Speak(u voice.Utterance) error {
	round := s.round.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		audio, err := s.synthesis.Synthesize(s.ctx, u.Text, u.Voice)
		if s.round.Load() != round {
			return
		}
		if err != nil {
			s.logger.WarnTag(logging.TagTTS, "合成失败 utterance=%s: %v", u.ID, err)
			if s.ctx.Err() == nil && s.dispatch != nil {
				_ = s.dispatch(voice.Event{Kind: voice.SynthesisFailed, Attempt: u.ID, Error: err.Error()})
			}
			return
		}
		_ = s.out.Send(OutSpeakAudio, speakAudio{
			Utterance:  u.ID,
			Format:     audio.Format,
			Audio:      base64.StdEncoding.EncodeToString(audio.Data),
			DurationMS: audio.Duration.Milliseconds(),
			Volume:     u.Volume,
		})
	}()
	return nil
}

// CancelSpeech drops any pending synthesis and stops playback on the page.
func (s *SpeechService) CancelSpeech() error {
	s.round.Add(1)
	return s.out.Send(OutSpeakCancel, nil)
}

// Stop cancels in-flight synthesis and waits for the workers.
func (s *SpeechService) Stop() {
	s.round.Add(1)
	s.cancel()
	s.wg.Wait()
}
