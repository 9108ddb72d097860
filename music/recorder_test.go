package music

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bloxidge/gravitone/shared"

	"gitlab.com/gomidi/midi/v2/smf"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func countNoteOns(t *testing.T, tr smf.Track) (ons, offs int, keys []uint8) {
	t.Helper()
	var ch, key, vel uint8
	for _, ev := range tr {
		switch {
		case ev.Message.GetNoteOn(&ch, &key, &vel):
			ons++
			keys = append(keys, key)
		case ev.Message.GetNoteEnd(&ch, &key):
			offs++
		}
	}
	return
}

func TestRecorderCapturesOnlyWhileRecording(t *testing.T) {
	clk := &stepClock{now: time.Unix(0, 0)}
	inner := NewCaptureEngine()
	rec := NewRecorder(inner, RecorderOptions{Now: clk.Now})
	in := newTestInstrument(t, rec, 1)

	in.Play(shared.Circle, shared.White, shared.Whole)
	if rec.Len() != 0 {
		t.Fatal("recorded before Start")
	}
	rec.Start()
	clk.now = clk.now.Add(500 * time.Millisecond)
	in.Play(shared.Circle, shared.Red, shared.Whole) // green and blue are silent
	clk.now = clk.now.Add(500 * time.Millisecond)
	in.Play(shared.Circle, shared.White, shared.Bar)
	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}
	in.Play(shared.Circle, shared.White, shared.Whole)

	take := rec.Take()
	if len(take) != 4 {
		t.Fatalf("recorded %d events, want 4", len(take))
	}
	if take[0].At != 500*time.Millisecond || take[0].Note != 72 {
		t.Fatalf("first event %+v", take[0])
	}
	if take[1].At != time.Second || take[1].Note != 60 {
		t.Fatalf("second event %+v", take[1])
	}
	// the wrapped engine still plays everything
	if got := len(inner.Played()); got != 12 {
		t.Fatalf("inner engine saw %d triggers", got)
	}
	if err := rec.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("second stop: %v", err)
	}
}

func TestRecTrackConvert(t *testing.T) {
	take := RecTrack{
		{At: 0, Note: 60, Velocity: 100},
		{At: 500 * time.Millisecond, Note: 64, Velocity: 90},
	}
	tr := take.Convert(120, 250*time.Millisecond)
	ons, offs, keys := countNoteOns(t, tr)
	if ons != 2 || offs != 2 {
		t.Fatalf("ons=%d offs=%d", ons, offs)
	}
	if keys[0] != 60 || keys[1] != 64 {
		t.Fatalf("keys %v", keys)
	}
	var total uint32
	for _, ev := range tr {
		total += ev.Delta
	}
	// 750ms at 120 bpm is one and a half beats
	if want := uint32(960 * 3 / 2); total != want {
		t.Fatalf("track spans %d ticks, want %d", total, want)
	}
}

func TestRecorderWriteAndSave(t *testing.T) {
	clk := &stepClock{now: time.Unix(0, 0)}
	rec := NewRecorder(SilentEngine{}, RecorderOptions{Now: clk.Now})
	in := newTestInstrument(t, rec, 2)

	var buf bytes.Buffer
	if err := rec.WriteTo(&buf, 120, false); !errors.Is(err, ErrEmptyRecording) {
		t.Fatalf("empty take: %v", err)
	}

	rec.Start()
	for i := 0; i < 4; i++ {
		in.Play(shared.Square, shared.White, shared.Quarter)
		clk.now = clk.now.Add(250 * time.Millisecond)
	}
	rec.Stop()

	if err := rec.WriteTo(&buf, 120, false); err != nil {
		t.Fatal(err)
	}
	f, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if f.NumTracks() != 1 {
		t.Fatalf("tracks = %d", f.NumTracks())
	}
	if ons, _, _ := countNoteOns(t, f.Tracks[0]); ons != 12 {
		t.Fatalf("note ons = %d", ons)
	}

	path := filepath.Join(t.TempDir(), "take")
	if err := rec.SaveToFile(path, 120, false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".mid"); err != nil {
		t.Fatal(err)
	}
}
