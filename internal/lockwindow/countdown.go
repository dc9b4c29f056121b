package lockwindow

import (
	"context"
	"time"
)

// TickInterval is the countdown granularity.
const TickInterval = time.Second

// Clock abstracts wall time for the countdown.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealClock is the system clock.
var RealClock Clock = realClock{}

// Countdown drives Session.Tick from a clock. Elapsed time is measured from
// the clock on every tick rather than by counting ticks, so a late tick
// cannot stretch the lock.
type Countdown struct {
	session *Session
	clock   Clock
	onTick  func(View)
}

// NewCountdown creates a countdown. onTick receives every view produced by
// a tick and must return promptly.
func NewCountdown(s *Session, clock Clock, onTick func(View)) *Countdown {
	if clock == nil {
		clock = RealClock
	}
	if onTick == nil {
		onTick = func(View) {}
	}
	return &Countdown{session: s, clock: clock, onTick: onTick}
}

// Run ticks until the session terminates or ctx is cancelled. It reports
// tick 0 immediately, so a zero duration terminates at once.
func (c *Countdown) Run(ctx context.Context) {
	start := c.clock.Now()

	v := c.session.Tick(0)
	c.onTick(v)
	if v.State == Terminated {
		return
	}

	ticker := c.clock.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.session.Done():
			return
		case <-ticker.C():
			elapsed := int(c.clock.Now().Sub(start) / time.Second)
			v := c.session.Tick(elapsed)
			c.onTick(v)
			if v.State == Terminated {
				return
			}
		}
	}
}

// Start runs the countdown on its own goroutine. The returned channel is
// closed once the goroutine has exited.
func (c *Countdown) Start(ctx context.Context) <-chan struct{} {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		c.Run(ctx)
	}()
	return stopped
}
