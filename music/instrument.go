package music

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bloxidge/gravitone/shared"

	"gitlab.com/gomidi/midi/v2"
)

const (
	Octave = 12
	// AnchorRoot is the root of every anchored (circle) trigger.
	AnchorRoot = midi.Note(60)
)

// Roots is the pentatonic table random roots are drawn from: C D E G A.
var Roots = [...]midi.Note{60, 62, 64, 67, 69}

// PitchPolicy selects how a shape turns a trigger into a pitch.
type PitchPolicy int

const (
	// Unpitched plays every sample at its native pitch (percussion).
	Unpitched PitchPolicy = iota
	// Anchored plays on AnchorRoot, raised by the note length.
	Anchored
	// Roaming plays on a random root, centred on the whole note.
	Roaming
)

func PolicyFor(s shared.Shape) PitchPolicy {
	switch s {
	case shared.Circle:
		return Anchored
	case shared.Triangle, shared.Star:
		return Roaming
	default:
		return Unpitched
	}
}

// Shift is the octave shift in semitones for a note length.
func (p PitchPolicy) Shift(l shared.NoteLength) int {
	var band int
	switch l {
	case shared.Bar, shared.Double:
		band = 0
	case shared.Whole, shared.Half:
		band = 1
	default:
		band = 2
	}
	switch p {
	case Anchored:
		return band * Octave
	case Roaming:
		return (band - 1) * Octave
	}
	return 0
}

// Note returns the key to play given a randomly drawn root. The second
// result is false for unpitched policies.
func (p PitchPolicy) Note(root midi.Note, l shared.NoteLength) (midi.Note, bool) {
	switch p {
	case Anchored:
		return midi.Note(int(AnchorRoot) + p.Shift(l)), true
	case Roaming:
		return midi.Note(int(root) + p.Shift(l)), true
	}
	return 0, false
}

// ChannelVolume compresses a color channel into a sample volume: the
// eighth root keeps low values audible.
func ChannelVolume(c float64) float64 {
	if c <= 0 || math.IsNaN(c) {
		return 0
	}
	if c >= 1 {
		return 1
	}
	return math.Pow(c, 1.0/8)
}

// Volumes returns the red, green and blue sample volumes for a color.
func Volumes(c shared.Color) [3]float64 {
	ch := c.Channels()
	return [3]float64{ChannelVolume(ch[0]), ChannelVolume(ch[1]), ChannelVolume(ch[2])}
}

type InstrumentOptions struct {
	// Gains is the shape bus level; missing shapes play at 1.
	Gains map[shared.Shape]float64
	// Rand draws the random roots. Defaults to a time seeded source.
	Rand *rand.Rand
}

// Instrument holds one three-sample set per shape and plays them as a
// layer.
type Instrument struct {
	id    int
	sets  [len(shared.Shapes)][3]Sampler
	gains [len(shared.Shapes)]float64

	taken atomic.Bool

	mu            sync.Mutex
	rng           *rand.Rand
	transposition float64
}

// NewInstrument loads every sample of the bank through engine.
func NewInstrument(id int, engine Engine, bank map[shared.Shape]shared.SampleSet, opts InstrumentOptions) (*Instrument, error) {
	in := &Instrument{id: id, rng: opts.Rand}
	if in.rng == nil {
		in.rng = rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	}
	var errs error
	for _, shape := range shared.Shapes {
		in.gains[shape] = 1
		if g, ok := opts.Gains[shape]; ok {
			in.gains[shape] = g
		}
		set, ok := bank[shape]
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("no samples for %v", shape))
			continue
		}
		for ch, path := range set.Paths() {
			if path == "" {
				errs = errors.Join(errs, fmt.Errorf("%v/%s: empty sample path", shape, channelNames[ch]))
				continue
			}
			s, err := engine.LoadSample(path)
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("%v/%s: %w", shape, channelNames[ch], err))
				continue
			}
			in.sets[shape][ch] = s
		}
	}
	if errs != nil {
		return nil, errs
	}
	return in, nil
}

var channelNames = [3]string{"red", "green", "blue"}

func (in *Instrument) ID() int {
	return in.id
}

// Taken reports whether the instrument is assigned to a live node.
func (in *Instrument) Taken() bool {
	return in.taken.Load()
}

func (in *Instrument) Transposition() float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.transposition
}

func (in *Instrument) SetTransposition(v float64) {
	in.mu.Lock()
	in.transposition = v
	in.mu.Unlock()
}

// Play triggers the three samples of shape together, balanced by color.
func (in *Instrument) Play(shape shared.Shape, color shared.Color, length shared.NoteLength) {
	if !shape.Valid() {
		return
	}
	in.mu.Lock()
	root := Roots[in.rng.Intn(len(Roots))]
	tuning := in.transposition
	in.mu.Unlock()

	note, pitched := PolicyFor(shape).Note(root, length)
	volumes := Volumes(color)
	for ch, s := range in.sets[shape] {
		if s == nil {
			continue
		}
		s.Play(Trigger{
			Shape:    shape,
			Volume:   volumes[ch],
			Gain:     in.gains[shape],
			Tuning:   tuning,
			Pitched:  pitched,
			Note:     note,
			Velocity: MaxVelocity,
			Channel:  0,
		})
	}
}
