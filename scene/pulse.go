package scene

import (
	"sync"
	"time"

	"github.com/bloxidge/gravitone/clock"
	"github.com/bloxidge/gravitone/shared"
)

// DebounceWindow is the minimum spacing between executed pulses of a node.
const DebounceWindow = 20 * time.Millisecond

type PulseState int

const (
	Idle PulseState = iota
	Pulsing
)

func (s PulseState) String() string {
	if s == Pulsing {
		return "pulsing"
	}
	return "idle"
}

// PulseController decides when a node sounds. Contact and timer pulses go
// through RequestPulse; anchored nodes additionally run a repeating
// schedule at the period of their note length.
//
// mu guards the pulse state and is held while the pulse executes. schedMu
// serializes the schedule lifecycle; tick callbacks never take it, which
// lets a cancel wait for an in-flight tick.
type PulseController struct {
	clock  clock.Clock
	length shared.NoteLength
	fire   func()

	mu     sync.Mutex
	state  PulseState
	first  bool
	last   time.Time
	period time.Duration
	closed bool
	pulses int

	schedMu sync.Mutex
	ticker  clock.Ticker
}

func NewPulseController(c clock.Clock, length shared.NoteLength, tempo float64, fire func()) *PulseController {
	return &PulseController{
		clock:  c,
		length: length,
		fire:   fire,
		first:  true,
		period: length.Period(tempo),
	}
}

// RequestPulse executes a pulse unless one was requested less than
// DebounceWindow ago. The first request always executes. The window
// slides: suppressed requests still move the last-request time.
func (pc *PulseController) RequestPulse(now time.Time) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return false
	}
	if pc.first {
		pc.first = false
		pc.last = now
		pc.execute()
		return true
	}
	elapsed := now.Sub(pc.last)
	pc.last = now
	if elapsed < DebounceWindow {
		return false
	}
	pc.execute()
	return true
}

// execute runs with mu held.
func (pc *PulseController) execute() {
	pc.state = Pulsing
	pc.fire()
	pc.state = Idle
	pc.pulses++
}

func (pc *PulseController) tick() {
	pc.RequestPulse(pc.clock.Now())
}

// force pulses immediately, bypassing the debounce.
func (pc *PulseController) force() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return
	}
	pc.first = false
	pc.last = pc.clock.Now()
	pc.execute()
}

// SetTempo recomputes the period. A running schedule is cancelled, pulses
// once and restarts at the new period.
func (pc *PulseController) SetTempo(bpm float64) {
	period := pc.length.Period(bpm)
	if period <= 0 {
		return
	}
	pc.schedMu.Lock()
	defer pc.schedMu.Unlock()

	pc.mu.Lock()
	pc.period = period
	closed := pc.closed
	pc.mu.Unlock()

	if pc.ticker == nil || closed {
		return
	}
	pc.ticker.Stop()
	pc.ticker = nil
	pc.force()
	pc.ticker = pc.clock.Every(period, pc.tick)
}

// StartScheduling starts the repeating pulse. Calling it again while
// scheduled does nothing.
func (pc *PulseController) StartScheduling() {
	pc.schedMu.Lock()
	defer pc.schedMu.Unlock()
	pc.mu.Lock()
	period, closed := pc.period, pc.closed
	pc.mu.Unlock()
	if pc.ticker != nil || closed || period <= 0 {
		return
	}
	pc.ticker = pc.clock.Every(period, pc.tick)
}

func (pc *PulseController) StopScheduling() {
	pc.schedMu.Lock()
	defer pc.schedMu.Unlock()
	if pc.ticker != nil {
		pc.ticker.Stop()
		pc.ticker = nil
	}
}

// Teardown disables the controller. When it returns no tick is running
// and no pulse will execute again.
func (pc *PulseController) Teardown() {
	pc.schedMu.Lock()
	defer pc.schedMu.Unlock()
	pc.mu.Lock()
	pc.closed = true
	pc.mu.Unlock()
	if pc.ticker != nil {
		pc.ticker.Stop()
		pc.ticker = nil
	}
}

func (pc *PulseController) Scheduled() bool {
	pc.schedMu.Lock()
	defer pc.schedMu.Unlock()
	return pc.ticker != nil
}

func (pc *PulseController) State() PulseState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

func (pc *PulseController) Period() time.Duration {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.period
}

// Pulses counts executed pulses.
func (pc *PulseController) Pulses() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.pulses
}

func (pc *PulseController) Closed() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.closed
}
