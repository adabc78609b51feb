package edge

import (
	"sync"
	"time"
)

type audioEntry struct {
	data      []byte
	timestamp time.Time
}

// audioCache 音频缓存，满时淘汰最旧条目
type audioCache struct {
	mu      sync.Mutex
	entries map[string]*audioEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

func newAudioCache(maxSize int, ttl time.Duration) *audioCache {
	return &audioCache{
		entries: make(map[string]*audioEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *audioCache) get(key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.timestamp) >= c.ttl {
		delete(c.entries, key)
		return nil
	}
	return entry.data
}

func (c *audioCache) set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		var (
			oldestKey  string
			oldestTime time.Time
		)
		for k, v := range c.entries {
			if oldestKey == "" || v.timestamp.Before(oldestTime) {
				oldestKey, oldestTime = k, v.timestamp
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[key] = &audioEntry{data: data, timestamp: c.now()}
}

func (c *audioCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *audioCache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]*audioEntry)
	c.mu.Unlock()
}

const (
	breakerClosed = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker 熔断器
type circuitBreaker struct {
	mu          sync.Mutex
	maxFailures int
	failures    int
	lastFailure time.Time
	state       int
	retryAfter  time.Duration
	now         func() time.Time
}

func newCircuitBreaker(maxFailures int, retryAfter time.Duration) *circuitBreaker {
	return &circuitBreaker{maxFailures: maxFailures, retryAfter: retryAfter, now: time.Now}
}

func (cb *circuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != breakerOpen {
		return false
	}
	if cb.now().Sub(cb.lastFailure) > cb.retryAfter {
		cb.state = breakerHalfOpen
		return false
	}
	return true
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	cb.failures = 0
	cb.state = breakerClosed
	cb.mu.Unlock()
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == breakerHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = breakerOpen
	}
}
