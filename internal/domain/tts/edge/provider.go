// Package edge synthesises speech server-side with Microsoft Edge TTS.
package edge

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"vesta-voice/internal/platform/errors"
	"vesta-voice/internal/platform/observability"
)

const (
	DefaultVoice = "es-ES-ElviraNeural"
	FormatMP3    = "mp3"
)

// Config Edge TTS 配置
type Config struct {
	Voice     string        `yaml:"voice"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	// MaxFailures 连续失败次数达到后熔断 RetryAfter
	MaxFailures int           `yaml:"max_failures"`
	RetryAfter  time.Duration `yaml:"retry_after"`
}

// Logger is the subset of logging the provider needs.
type Logger interface {
	DebugTag(tag, msg string, args ...interface{})
	InfoTag(tag, msg string, args ...interface{})
	WarnTag(tag, msg string, args ...interface{})
}

// Audio is one synthesised utterance.
type Audio struct {
	Data     []byte
	Format   string
	Voice    string
	Duration time.Duration
}

type synthFunc func(ctx context.Context, voice, text string) ([]byte, error)

// Provider wraps edge_tts with a small audio cache and a circuit breaker.
type Provider struct {
	voice   string
	cache   *audioCache
	breaker *circuitBreaker
	synth   synthFunc
	logger  Logger

	requests atomic.Int64
	failures atomic.Int64
}

// New builds a provider. Zero config fields take defaults.
func New(cfg Config, logger Logger) *Provider {
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 200
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 30 * time.Second
	}
	return &Provider{
		voice:   cfg.Voice,
		cache:   newAudioCache(cfg.CacheSize, cfg.CacheTTL),
		breaker: newCircuitBreaker(cfg.MaxFailures, cfg.RetryAfter),
		synth:   communicate,
		logger:  logger,
	}
}

// Voice returns the default voice id.
func (p *Provider) Voice() string { return p.voice }

// Synthesize renders text with voice, falling back to the default voice
// when voice is empty or not an Edge voice.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (audio *Audio, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New(errors.KindSynthesis, "edge.synthesize", "text cannot be empty")
	}
	voiceID := p.resolveVoice(voice)

	ctx, end := observability.StartSpan(ctx, "tts.edge", "synthesize")
	defer func() { end(err) }()

	key := voiceID + "|" + text
	if data := p.cache.get(key); data != nil {
		p.debug("使用缓存音频 voice=%s", voiceID)
		observability.RecordMetric(ctx, "tts.edge.cache_hit", 1, nil)
		return p.audio(data, voiceID), nil
	}

	if p.breaker.isOpen() {
		return nil, errors.New(errors.KindSynthesis, "edge.synthesize", "circuit breaker is open")
	}

	p.requests.Add(1)
	start := time.Now()
	data, err := p.synth(ctx, voiceID, text)
	if err != nil {
		p.breaker.recordFailure()
		p.failures.Add(1)
		if p.logger != nil {
			p.logger.WarnTag("TTS", "语音合成失败 voice=%s: %v", voiceID, err)
		}
		return nil, errors.Wrap(errors.KindSynthesis, "edge.synthesize", "edge tts failed", err)
	}
	if len(data) == 0 {
		p.breaker.recordFailure()
		p.failures.Add(1)
		return nil, errors.New(errors.KindSynthesis, "edge.synthesize", "edge tts returned no audio")
	}
	p.breaker.recordSuccess()
	p.cache.set(key, data)

	p.debug("语音合成完成 voice=%s bytes=%d 耗时=%v", voiceID, len(data), time.Since(start))
	return p.audio(data, voiceID), nil
}

// Stats 请求与失败计数
func (p *Provider) Stats() (requests, failures int64) {
	return p.requests.Load(), p.failures.Load()
}

// Close drops cached audio.
func (p *Provider) Close() {
	p.cache.clear()
}

func (p *Provider) audio(data []byte, voiceID string) *Audio {
	a := &Audio{Data: data, Format: FormatMP3, Voice: voiceID}
	d, err := Duration(data)
	if err != nil {
		p.debug("无法计算音频时长: %v", err)
	} else {
		a.Duration = d
	}
	return a
}

func (p *Provider) resolveVoice(name string) string {
	if v, ok := Lookup(name); ok {
		return v.ID
	}
	return p.voice
}

func (p *Provider) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.DebugTag("TTS", msg, args...)
	}
}

// communicate runs one edge_tts round trip. The library call does not take a
// context, so cancellation only stops the wait.
func communicate(ctx context.Context, voice, text string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		c, err := edge_tts.New(voice)
		if err != nil {
			done <- result{err: fmt.Errorf("create edge tts communicator: %w", err)}
			return
		}
		defer c.Close()
		data, err := c.Output(text)
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
