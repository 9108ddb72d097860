package music

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gitlab.com/gomidi/quantizer/lib/quantizer"
)

const TICKS = smf.MetricTicks(960)

var (
	ErrNotRecording   = errors.New("not recording")
	ErrEmptyRecording = errors.New("nothing recorded")
)

// RecEvent is one audible trigger, timed from the start of the take.
type RecEvent struct {
	At       time.Duration
	Note     midi.Note
	Velocity uint8
	Channel  uint8
}

func (ev RecEvent) Message(on bool) midi.Message {
	if on {
		return midi.NoteOn(ev.Channel, uint8(ev.Note), ev.Velocity)
	}
	return midi.NoteOff(ev.Channel, uint8(ev.Note))
}

type RecTrack []RecEvent

type RecorderOptions struct {
	Now       func() time.Time
	NativeKey midi.Note
	// Length is the written duration of every note.
	Length time.Duration
	Logger *charmlog.Logger
}

// Recorder sits between instruments and the playback engine and keeps a
// take of every audible trigger while recording.
type Recorder struct {
	inner Engine
	opts  RecorderOptions
	log   *charmlog.Logger

	sync.Mutex
	recording bool
	start     time.Time
	take      RecTrack
}

func NewRecorder(inner Engine, opts RecorderOptions) *Recorder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NativeKey == 0 {
		opts.NativeKey = NativeKey
	}
	if opts.Length <= 0 {
		opts.Length = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = charmlog.Default()
	}
	return &Recorder{inner: inner, opts: opts, log: opts.Logger.WithPrefix("recorder")}
}

func (r *Recorder) LoadSample(path string) (Sampler, error) {
	s, err := r.inner.LoadSample(path)
	if err != nil {
		return nil, err
	}
	return &recordingSampler{Sampler: s, rec: r}, nil
}

// Start begins a new take, discarding the previous one.
func (r *Recorder) Start() {
	r.Lock()
	r.recording = true
	r.start = r.opts.Now()
	r.take = r.take[:0]
	r.Unlock()
	r.log.Info("start recording")
}

func (r *Recorder) Stop() error {
	r.Lock()
	defer r.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	r.recording = false
	r.log.Info("stop recording", "events", len(r.take))
	return nil
}

func (r *Recorder) Recording() bool {
	r.Lock()
	defer r.Unlock()
	return r.recording
}

func (r *Recorder) Len() int {
	r.Lock()
	defer r.Unlock()
	return len(r.take)
}

func (r *Recorder) Take() RecTrack {
	r.Lock()
	defer r.Unlock()
	return append(RecTrack(nil), r.take...)
}

func (r *Recorder) record(t Trigger) {
	vel := t.MIDIVelocity()
	if vel == 0 {
		return
	}
	r.Lock()
	defer r.Unlock()
	if !r.recording {
		return
	}
	r.take = append(r.take, RecEvent{
		At:       r.opts.Now().Sub(r.start),
		Note:     t.Key(r.opts.NativeKey),
		Velocity: vel,
		Channel:  t.Channel,
	})
}

type recordingSampler struct {
	Sampler
	rec *Recorder
}

func (s *recordingSampler) Play(t Trigger) {
	s.rec.record(t)
	s.Sampler.Play(t)
}

// Convert lays the take out as an SMF track at the given tempo.
func (rt RecTrack) Convert(bpm float64, length time.Duration) smf.Track {
	type timed struct {
		at time.Duration
		on bool
		ev RecEvent
	}
	all := make([]timed, 0, 2*len(rt))
	for _, ev := range rt {
		all = append(all, timed{ev.At, true, ev}, timed{ev.At + length, false, ev})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].at != all[j].at {
			return all[i].at < all[j].at
		}
		// release before retrigger at the same instant
		return !all[i].on && all[j].on
	})

	tr := smf.Track{}
	tr.Add(0, smf.MetaTrackSequenceName("gravitone"))
	tr.Add(0, smf.MetaTempo(bpm))
	prev := uint32(0)
	for _, t := range all {
		abs := TICKS.Ticks(bpm, t.at)
		tr.Add(abs-prev, t.ev.Message(t.on))
		prev = abs
	}
	tr.Close(0)
	return tr
}

// WriteTo encodes the take as a Standard MIDI File, optionally run through
// the quantizer.
func (r *Recorder) WriteTo(w io.Writer, bpm float64, quantize bool) error {
	take := r.Take()
	if len(take) == 0 {
		return ErrEmptyRecording
	}
	f := smf.New()
	f.TimeFormat = TICKS
	if err := f.Add(take.Convert(bpm, r.opts.Length)); err != nil {
		return err
	}
	if !quantize {
		_, err := f.WriteTo(w)
		return err
	}
	var raw bytes.Buffer
	if _, err := f.WriteTo(&raw); err != nil {
		return err
	}
	return quantizer.Quantize(&raw, w)
}

func (r *Recorder) SaveToFile(filepath string, bpm float64, quantize bool) (errs error) {
	if !strings.HasSuffix(filepath, ".mid") {
		filepath += ".mid"
	}
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	if err := r.WriteTo(file, bpm, quantize); err != nil {
		errs = errors.Join(errs, err)
	}
	if err := file.Close(); err != nil {
		errs = errors.Join(errs, err)
	}
	if errs == nil {
		r.log.Info("saved", "file", filepath, "events", r.Len())
	}
	return errs
}
