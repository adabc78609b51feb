package voice

import "time"

// slot 守护定时器槽位。识别超时和错误展示共用 Listening 槽
type slot int

const (
	slotListening slot = iota
	slotProcessing
	slotCount
)

// guard holds at most one live timer. gen is bumped whenever the timer is
// cleared or fires, so a callback that raced with the clear is recognised as stale.
type guard struct {
	timer *time.Timer
	gen   uint64
}

// arm replaces any timer in s with one that posts kind after d.
func (c *Controller) arm(s slot, d time.Duration, kind EventKind) {
	c.clearGuard(s)
	g := &c.guards[s]
	gen := g.gen
	g.timer = time.AfterFunc(d, func() {
		c.post(Event{Kind: kind, gen: gen})
	})
}

// clearGuard stops and invalidates the timer in s.
func (c *Controller) clearGuard(s slot) {
	g := &c.guards[s]
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.gen++
}

// fired consumes a timer event. It reports false for a superseded timer.
func (c *Controller) fired(s slot, gen uint64) bool {
	g := &c.guards[s]
	if g.timer == nil || g.gen != gen {
		return false
	}
	g.timer = nil
	g.gen++
	return true
}

// schedule runs fn on the dispatcher after the follow-up delay.
func (c *Controller) schedule(name string, fn func()) {
	c.nextFollow++
	id := c.nextFollow
	f := &followUp{name: name, run: fn}
	f.timer = time.AfterFunc(c.cfg.FollowUpDelay, func() {
		c.post(Event{Kind: evFollowUp, seq: id})
	})
	c.followUps[id] = f
}
