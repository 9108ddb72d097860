package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced clock. Tickers fire synchronously from
// Advance, in time order, on the caller's goroutine.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) Every(period time.Duration, f func()) Ticker {
	if period <= 0 {
		panic("clock: non-positive ticker period")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{clock: c, period: period, next: c.now.Add(period), f: f}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing every tick that falls due.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		t := c.earliest(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.next
		t.next = t.next.Add(t.period)
		f := t.f
		c.mu.Unlock()
		f()
	}
}

// Active returns the number of running tickers.
func (c *Fake) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *Fake) earliest(target time.Time) *fakeTicker {
	var first *fakeTicker
	for _, t := range c.tickers {
		if t.next.After(target) {
			continue
		}
		if first == nil || t.next.Before(first.next) {
			first = t
		}
	}
	return first
}

type fakeTicker struct {
	clock  *Fake
	period time.Duration
	next   time.Time
	f      func()
}

func (t *fakeTicker) Stop() {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, other := range c.tickers {
		if other == t {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			return
		}
	}
}
