package music

import (
	"math"
	"sync"

	"github.com/bloxidge/gravitone/shared"

	"gitlab.com/gomidi/midi/v2"
)

const (
	MaxVelocity = 127
	// NativeKey is the key a sample plays at when it is not pitched.
	NativeKey = midi.Note(60)
)

// Trigger is one playback command for one sample.
type Trigger struct {
	Shape    shared.Shape
	Volume   float64 // channel balance, 0..1
	Gain     float64 // shape bus level
	Tuning   float64 // semitones, global transposition
	Pitched  bool
	Note     midi.Note // meaningful when Pitched
	Velocity uint8
	Channel  uint8
}

// Level is the linear amplitude of the trigger.
func (t Trigger) Level() float64 {
	return t.Volume * t.Gain * float64(t.Velocity) / MaxVelocity
}

// Semitones is the pitch offset from the sample's native key.
func (t Trigger) Semitones(native midi.Note) float64 {
	if !t.Pitched {
		return t.Tuning
	}
	return float64(int(t.Note)-int(native)) + t.Tuning
}

// Key is the MIDI key the trigger sounds at, tuning rounded.
func (t Trigger) Key(native midi.Note) midi.Note {
	k := math.Round(float64(native) + t.Semitones(native))
	return midi.Note(clampInt(int(k), 0, 127))
}

// MIDIVelocity folds the level into a MIDI velocity; 0 means inaudible.
func (t Trigger) MIDIVelocity() uint8 {
	v := int(math.Round(t.Level() * MaxVelocity))
	return uint8(clampInt(v, 0, MaxVelocity))
}

// Engine loads samples for an Instrument. Loading happens once per sample
// when the instrument is built.
type Engine interface {
	LoadSample(path string) (Sampler, error)
}

// Sampler plays one loaded sample. Play must not block and never reports
// errors: a failed playback is simply silent.
type Sampler interface {
	Play(t Trigger)
}

// SilentEngine accepts every sample and plays nothing.
type SilentEngine struct{}

func (SilentEngine) LoadSample(string) (Sampler, error) {
	return silentSampler{}, nil
}

type silentSampler struct{}

func (silentSampler) Play(Trigger) {}

// Played is one trigger seen by a CaptureEngine.
type Played struct {
	Path    string
	Trigger Trigger
}

// CaptureEngine records every trigger instead of playing it.
type CaptureEngine struct {
	mu     sync.Mutex
	loaded []string
	played []Played
}

func NewCaptureEngine() *CaptureEngine {
	return &CaptureEngine{}
}

func (e *CaptureEngine) LoadSample(path string) (Sampler, error) {
	e.mu.Lock()
	e.loaded = append(e.loaded, path)
	e.mu.Unlock()
	return &captureSampler{engine: e, path: path}, nil
}

func (e *CaptureEngine) Played() []Played {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Played(nil), e.played...)
}

func (e *CaptureEngine) Loaded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.loaded...)
}

func (e *CaptureEngine) Reset() {
	e.mu.Lock()
	e.played = e.played[:0]
	e.mu.Unlock()
}

type captureSampler struct {
	engine *CaptureEngine
	path   string
}

func (s *captureSampler) Play(t Trigger) {
	s.engine.mu.Lock()
	s.engine.played = append(s.engine.played, Played{Path: s.path, Trigger: t})
	s.engine.mu.Unlock()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
