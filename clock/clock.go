// Package clock provides the time source and repeating timers used by the
// scene. Real uses the system clock; Fake is driven manually by tests.
package clock

import (
	"sync"
	"time"
)

// Clock reads the current time and creates repeating tickers.
type Clock interface {
	Now() time.Time
	// Every calls f every period until the returned Ticker is stopped.
	Every(period time.Duration, f func()) Ticker
}

// Ticker is a cancellable repeating task. Stop is synchronous: once it
// returns the callback is not running and will never run again. Stop must
// not be called from inside the callback.
type Ticker interface {
	Stop()
}

// Real is the system clock.
type Real struct{}

func New() Real {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) Every(period time.Duration, f func()) Ticker {
	t := &realTicker{
		ticker: time.NewTicker(period),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.run(f)
	return t
}

type realTicker struct {
	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (t *realTicker) run(f func()) {
	defer close(t.done)
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			// a stop that raced with the tick wins
			select {
			case <-t.stop:
				return
			default:
			}
			f()
		}
	}
}

func (t *realTicker) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stop)
	})
	<-t.done
}
