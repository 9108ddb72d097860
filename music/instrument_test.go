package music

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/bloxidge/gravitone/shared"

	"gitlab.com/gomidi/midi/v2"
)

func testBank() map[shared.Shape]shared.SampleSet {
	bank := map[shared.Shape]shared.SampleSet{}
	for _, s := range shared.Shapes {
		name := s.String()
		bank[s] = shared.SampleSet{Red: name + "/r.wav", Green: name + "/g.wav", Blue: name + "/b.wav"}
	}
	return bank
}

func newTestInstrument(t *testing.T, engine Engine, seed int64) *Instrument {
	t.Helper()
	in, err := NewInstrument(0, engine, testBank(), InstrumentOptions{
		Gains: map[shared.Shape]float64{shared.Square: 0.7},
		Rand:  rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return in
}

func TestChannelVolume(t *testing.T) {
	if ChannelVolume(1) != 1 {
		t.Fatal("1 must map to 1")
	}
	if ChannelVolume(0) != 0 {
		t.Fatal("0 must map to 0")
	}
	if got := ChannelVolume(math.NaN()); got != 0 {
		t.Fatalf("NaN mapped to %g", got)
	}
	prev := 0.0
	for i := 1; i <= 1000; i++ {
		v := ChannelVolume(float64(i) / 1000)
		if v < prev {
			t.Fatalf("not monotonic at %d: %g < %g", i, v, prev)
		}
		prev = v
	}
	if got := ChannelVolume(math.Pow(0.5, 8)); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("eighth root: got %g", got)
	}
}

func TestInstrumentLoadsEverySample(t *testing.T) {
	engine := NewCaptureEngine()
	newTestInstrument(t, engine, 1)
	if got := len(engine.Loaded()); got != 12 {
		t.Fatalf("loaded %d samples, want 12", got)
	}
}

func TestInstrumentMissingShape(t *testing.T) {
	bank := testBank()
	delete(bank, shared.Star)
	bank[shared.Circle] = shared.SampleSet{Red: "x.wav"}
	_, err := NewInstrument(0, NewCaptureEngine(), bank, InstrumentOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"star", "circle/green", "circle/blue"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestSquareNeverPitched(t *testing.T) {
	engine := NewCaptureEngine()
	in := newTestInstrument(t, engine, 42)
	for _, l := range []shared.NoteLength{shared.Bar, shared.Whole, shared.Eighth} {
		for i := 0; i < 10; i++ {
			in.Play(shared.Square, shared.White, l)
		}
	}
	played := engine.Played()
	if len(played) != 3*3*10 {
		t.Fatalf("played %d triggers", len(played))
	}
	for _, p := range played {
		if p.Trigger.Pitched {
			t.Fatalf("square trigger is pitched: %+v", p.Trigger)
		}
		if p.Trigger.Key(NativeKey) != NativeKey {
			t.Fatalf("square moved away from native key: %v", p.Trigger.Key(NativeKey))
		}
		if p.Trigger.Gain != 0.7 {
			t.Fatalf("square gain %g", p.Trigger.Gain)
		}
	}
}

func TestCircleShift(t *testing.T) {
	tests := []struct {
		length shared.NoteLength
		want   midi.Note
	}{
		{shared.Bar, 60},
		{shared.Double, 60},
		{shared.Whole, 72},
		{shared.Half, 72},
		{shared.Quarter, 84},
		{shared.Eighth, 84},
	}
	for _, tt := range tests {
		engine := NewCaptureEngine()
		in := newTestInstrument(t, engine, 3)
		in.Play(shared.Circle, shared.Red, tt.length)
		for _, p := range engine.Played() {
			if !p.Trigger.Pitched || p.Trigger.Note != tt.want {
				t.Errorf("%v: got note %v pitched=%v, want %v", tt.length, p.Trigger.Note, p.Trigger.Pitched, tt.want)
			}
			if p.Trigger.Velocity != 127 || p.Trigger.Channel != 0 {
				t.Errorf("%v: velocity %d channel %d", tt.length, p.Trigger.Velocity, p.Trigger.Channel)
			}
		}
	}
}

func TestRoamingShiftAndRoots(t *testing.T) {
	roots := map[int]bool{}
	for _, r := range Roots {
		roots[int(r)] = true
	}
	shifts := map[shared.NoteLength]int{
		shared.Bar: -12, shared.Double: -12,
		shared.Whole: 0, shared.Half: 0,
		shared.Quarter: 12, shared.Eighth: 12,
	}
	for _, shape := range []shared.Shape{shared.Triangle, shared.Star} {
		for length, shift := range shifts {
			engine := NewCaptureEngine()
			in := newTestInstrument(t, engine, 11)
			for i := 0; i < 20; i++ {
				in.Play(shape, shared.Blue, length)
			}
			played := engine.Played()
			for i, p := range played {
				root := int(p.Trigger.Note) - shift
				if !roots[root] {
					t.Fatalf("%v %v: root %d not in table", shape, length, root)
				}
				// the three samples of one call share the root
				if i%3 != 0 && p.Trigger.Note != played[i-i%3].Trigger.Note {
					t.Fatalf("%v %v: layer split across notes", shape, length)
				}
			}
		}
	}
}

func TestPlayIsDeterministicForSeed(t *testing.T) {
	a, b := NewCaptureEngine(), NewCaptureEngine()
	ia, ib := newTestInstrument(t, a, 99), newTestInstrument(t, b, 99)
	for i := 0; i < 10; i++ {
		ia.Play(shared.Star, shared.Yellow, shared.Whole)
		ib.Play(shared.Star, shared.Yellow, shared.Whole)
	}
	pa, pb := a.Played(), b.Played()
	for i := range pa {
		if pa[i].Trigger != pb[i].Trigger {
			t.Fatalf("trigger %d differs: %+v vs %+v", i, pa[i].Trigger, pb[i].Trigger)
		}
	}
}

func TestPlayAppliesColorAndTransposition(t *testing.T) {
	engine := NewCaptureEngine()
	in := newTestInstrument(t, engine, 5)
	in.SetTransposition(-3.5)
	in.Play(shared.Triangle, shared.Color{R: 1, G: 0, B: math.Pow(0.25, 8), A: 1}, shared.Whole)

	played := engine.Played()
	if len(played) != 3 {
		t.Fatalf("want a 3 sample layer, got %d", len(played))
	}
	want := map[string]float64{"triangle/r.wav": 1, "triangle/g.wav": 0, "triangle/b.wav": 0.25}
	for _, p := range played {
		if math.Abs(p.Trigger.Volume-want[p.Path]) > 1e-9 {
			t.Errorf("%s: volume %g, want %g", p.Path, p.Trigger.Volume, want[p.Path])
		}
		if p.Trigger.Tuning != -3.5 {
			t.Errorf("%s: tuning %g", p.Path, p.Trigger.Tuning)
		}
	}
}

func TestTriggerKeyAndVelocity(t *testing.T) {
	tr := Trigger{Volume: 0.5, Gain: 1, Velocity: 127, Pitched: true, Note: 64, Tuning: 1.4}
	if got := tr.Key(NativeKey); got != 65 {
		t.Errorf("key %v", got)
	}
	if got := tr.MIDIVelocity(); got != 64 {
		t.Errorf("velocity %d", got)
	}
	tr = Trigger{Volume: 1, Gain: 1, Velocity: 127, Tuning: 200}
	if got := tr.Key(NativeKey); got != 127 {
		t.Errorf("key should clamp, got %v", got)
	}
	if (Trigger{Volume: 0, Gain: 1, Velocity: 127}).MIDIVelocity() != 0 {
		t.Error("silent trigger must have velocity 0")
	}
}
