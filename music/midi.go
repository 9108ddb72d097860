package music

import (
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
)

// QueueSize is the number of MIDI messages buffered ahead of the port.
const QueueSize = 256

// Scheduler puts a buffered queue in front of send so that callers never
// wait on the MIDI port. The returned enqueue function drops the message
// when the queue is full; stop drains the queue and waits for the worker.
func Scheduler(send func(midi.Message) error, logger *charmlog.Logger) (enqueue func(midi.Message) bool, stop func()) {
	queue := make(chan midi.Message, QueueSize)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for msg := range queue {
			if err := send(msg); err != nil {
				logger.Warn("send failed", "msg", msg, "err", err)
			}
		}
	}()

	var once sync.Once
	enqueue = func(m midi.Message) bool {
		select {
		case queue <- m:
			return true
		default:
			logger.Warn("queue full, dropping", "msg", m)
			return false
		}
	}
	stop = func() {
		once.Do(func() { close(queue) })
		<-done
	}
	return enqueue, stop
}

type MIDIOptions struct {
	// Channel overrides the trigger channel when non zero.
	Channel uint8
	// Hold is how long a note sounds before its NoteOff.
	Hold time.Duration
	// Keys maps a sample path to the key it sounds at when unpitched.
	Keys   map[string]midi.Note
	Logger *charmlog.Logger
}

// MIDIEngine plays triggers on an external synth. Every loaded sample is a
// key; pitched triggers replace it with their note.
type MIDIEngine struct {
	opts    MIDIOptions
	log     *charmlog.Logger
	enqueue func(midi.Message) bool
	stop    func()

	mu     sync.Mutex
	closed bool
	held   map[[2]uint8]int // channel, key -> sounding count
}

func NewMIDIEngine(send func(midi.Message) error, opts MIDIOptions) *MIDIEngine {
	if opts.Logger == nil {
		opts.Logger = charmlog.Default()
	}
	if opts.Hold <= 0 {
		opts.Hold = 250 * time.Millisecond
	}
	e := &MIDIEngine{
		opts: opts,
		log:  opts.Logger.WithPrefix("midi"),
		held: map[[2]uint8]int{},
	}
	e.enqueue, e.stop = Scheduler(send, e.log)
	return e
}

func (e *MIDIEngine) LoadSample(path string) (Sampler, error) {
	key, ok := e.opts.Keys[path]
	if !ok {
		key = NativeKey
	}
	return &midiSampler{engine: e, key: key}, nil
}

type midiSampler struct {
	engine *MIDIEngine
	key    midi.Note
}

func (s *midiSampler) Play(t Trigger) {
	vel := t.MIDIVelocity()
	if vel == 0 {
		return
	}
	ch := t.Channel
	if s.engine.opts.Channel != 0 {
		ch = s.engine.opts.Channel
	}
	key := uint8(t.Key(s.key))
	s.engine.noteOn(ch, key, vel)
}

func (e *MIDIEngine) noteOn(ch, key, vel uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if !e.enqueue(midi.NoteOn(ch, key, vel)) {
		return
	}
	e.held[[2]uint8{ch, key}]++
	time.AfterFunc(e.opts.Hold, func() { e.noteOff(ch, key) })
}

func (e *MIDIEngine) noteOff(ch, key uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := [2]uint8{ch, key}
	if e.closed || e.held[k] == 0 {
		return
	}
	e.held[k]--
	if e.held[k] > 0 {
		// a later retrigger of the same key is still sounding
		return
	}
	delete(e.held, k)
	e.enqueue(midi.NoteOff(ch, key))
}

// Sounding counts keys that have not received their NoteOff yet.
func (e *MIDIEngine) Sounding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.held)
}

// Close silences every held key and stops the send queue.
func (e *MIDIEngine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for k := range e.held {
		e.enqueue(midi.NoteOff(k[0], k[1]))
	}
	e.held = map[[2]uint8]int{}
	e.mu.Unlock()
	e.stop()
	e.log.Debug("closed")
}
