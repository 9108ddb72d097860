package music

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
	"gitlab.com/gomidi/midi/v2"
)

const (
	DefaultSampleRate = beep.SampleRate(44100)
	resampleQuality   = 3
)

type BeepOptions struct {
	SampleRate beep.SampleRate
	// NativeKey is the key samples were recorded at.
	NativeKey midi.Note
	Logger    *charmlog.Logger
}

// BeepEngine plays WAV samples from memory through a beep mixer.
type BeepEngine struct {
	format    beep.Format
	nativeKey midi.Note
	log       *charmlog.Logger

	mu      sync.Mutex // guards mixer until the speaker owns it
	mixer   *beep.Mixer
	started bool

	cacheMu sync.Mutex
	cache   map[string]*beep.Buffer
}

func NewBeepEngine(opts BeepOptions) *BeepEngine {
	if opts.SampleRate == 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.NativeKey == 0 {
		opts.NativeKey = NativeKey
	}
	if opts.Logger == nil {
		opts.Logger = charmlog.Default()
	}
	return &BeepEngine{
		format:    beep.Format{SampleRate: opts.SampleRate, NumChannels: 2, Precision: 2},
		nativeKey: opts.NativeKey,
		log:       opts.Logger.WithPrefix("beep"),
		mixer:     &beep.Mixer{},
		cache:     map[string]*beep.Buffer{},
	}
}

// Start opens the audio device and hands the mixer to the speaker.
func (e *BeepEngine) Start(latency time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	sr := e.format.SampleRate
	if err := speaker.Init(sr, sr.N(latency)); err != nil {
		return fmt.Errorf("speaker: %w", err)
	}
	speaker.Play(e.mixer)
	e.started = true
	e.log.Info("speaker started", "rate", int(sr), "latency", latency)
	return nil
}

func (e *BeepEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	speaker.Clear()
	speaker.Close()
	e.started = false
}

// Stream renders the mixer directly. It is meant for offline rendering
// when the speaker has not been started.
func (e *BeepEngine) Stream(samples [][2]float64) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return 0, false
	}
	return e.mixer.Stream(samples)
}

// Voices counts the streams still playing in the mixer.
func (e *BeepEngine) Voices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		speaker.Lock()
		defer speaker.Unlock()
	}
	return e.mixer.Len()
}

// LoadSample decodes a WAV file once; later loads of the same path share
// the buffer.
func (e *BeepEngine) LoadSample(path string) (Sampler, error) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if buf, ok := e.cache[path]; ok {
		return &beepSampler{engine: e, buf: buf}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	defer s.Close()

	var src beep.Streamer = s
	if format.SampleRate != e.format.SampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, e.format.SampleRate, s)
	}
	buf := beep.NewBuffer(e.format)
	buf.Append(src)
	e.cache[path] = buf
	e.log.Debug("loaded", "path", path, "samples", buf.Len())
	return &beepSampler{engine: e, buf: buf}, nil
}

func (e *BeepEngine) add(s beep.Streamer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		speaker.Lock()
		e.mixer.Add(s)
		speaker.Unlock()
		return
	}
	e.mixer.Add(s)
}

type beepSampler struct {
	engine *BeepEngine
	buf    *beep.Buffer
}

func (s *beepSampler) Play(t Trigger) {
	level := t.Level()
	if !(level > 0) || s.buf.Len() == 0 {
		return
	}
	var voice beep.Streamer = s.buf.Streamer(0, s.buf.Len())
	if semis := t.Semitones(s.engine.nativeKey); semis != 0 {
		voice = beep.ResampleRatio(resampleQuality, math.Pow(2, semis/12), voice)
	}
	s.engine.add(&effects.Gain{Streamer: voice, Gain: level - 1})
}
