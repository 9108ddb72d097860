package scene

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bloxidge/gravitone/clock"
	"github.com/bloxidge/gravitone/music"
	"github.com/bloxidge/gravitone/shared"
)

type loopHarness struct {
	in   chan shared.Message
	out  chan shared.Message
	done chan struct{}
}

func startLoop(t *testing.T, s *Scene, opts LoopOptions) *loopHarness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := &loopHarness{
		in:   make(chan shared.Message),
		out:  make(chan shared.Message, 32),
		done: make(chan struct{}),
	}
	go func() {
		Run(ctx, s, h.in, h.out, opts)
		close(h.done)
	}()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *loopHarness) expect(t *testing.T, send shared.Message, want shared.Event) shared.Message {
	t.Helper()
	h.in <- send
	select {
	case got := <-h.out:
		if got.Type != want {
			t.Fatalf("%s: got %s %q, want %s", send.Type, got.Type, got.String, want)
		}
		return got
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no reply", send.Type)
	}
	return shared.Message{}
}

func TestRunControlMessages(t *testing.T) {
	f := newFixture(t, 2, Options{})
	h := startLoop(t, f.scene, LoopOptions{})

	placed := h.expect(t, shared.Message{Type: shared.PlaceNode, String: "pad 60", Spec: movable}, shared.NodePlaced)
	if placed.Number2 != 0 || placed.String != "pad 60" || placed.Spec.Shape != movable.Shape {
		t.Fatalf("placed %+v", placed)
	}
	second := h.expect(t, shared.Message{Type: shared.PlaceNode, Spec: anchored}, shared.NodePlaced)
	if got := h.expect(t, shared.Message{Type: shared.PlaceNode, String: "pad 61", Spec: movable}, shared.PlaceFailed); got.String != "pad 61" {
		t.Fatalf("failed placement reply %+v", got)
	}

	h.expect(t, shared.Message{Type: shared.SetTempo, Float: 0}, shared.Error)
	got := h.expect(t, shared.Message{Type: shared.SetTempo, Float: 60}, shared.ParamsChanged)
	if got.String != "tempo" || got.Float != 60 {
		t.Fatalf("tempo reply %+v", got)
	}

	got = h.expect(t, shared.Message{Type: shared.SetTransposition, Float: 2.4}, shared.ParamsChanged)
	if got.String != "transposition" || got.Float != 2 {
		t.Fatalf("transposition reply %+v", got)
	}
	// rounds to the same step, so nothing is broadcast and the next reply
	// belongs to the restitution change
	h.in <- shared.Message{Type: shared.SetTransposition, Float: 2.3}
	got = h.expect(t, shared.Message{Type: shared.SetRestitution, Float: 2}, shared.ParamsChanged)
	if got.String != "restitution" || got.Float != 1 {
		t.Fatalf("restitution reply %+v", got)
	}
	if f.pool.Instruments()[0].Transposition() != 2 {
		t.Fatal("transposition not applied")
	}

	a, _ := f.scene.Node(placed.Number)
	b, _ := f.scene.Node(second.Number)
	h.in <- shared.Message{Type: shared.Contact, Number: placed.Number, Number2: second.Number}
	h.expect(t, shared.Message{Type: shared.Contact, Number: placed.Number, Number2: 99}, shared.Error)
	if a.Pulse().Pulses() != 1 {
		t.Fatalf("contact pulses %d", a.Pulse().Pulses())
	}

	h.in <- shared.Message{Type: shared.SetFixed, Number: placed.Number, Boolean: true}
	h.expect(t, shared.Message{Type: shared.Record, Boolean: true}, shared.Error)
	if !a.Fixed() {
		t.Fatal("node not anchored")
	}

	got = h.expect(t, shared.Message{Type: shared.RemoveNode, Number: second.Number}, shared.NodeRemoved)
	if got.Number != second.Number || !b.Removed() {
		t.Fatalf("removed %+v", got)
	}
	h.expect(t, shared.Message{Type: shared.RemoveNode, Number: second.Number}, shared.Error)
	h.expect(t, shared.Message{Type: shared.ClearNodes}, shared.NodeRemoved)
	if f.scene.Len() != 0 || f.pool.Free() != 2 {
		t.Fatalf("len=%d free=%d", f.scene.Len(), f.pool.Free())
	}

	h.in <- shared.Message{Type: shared.Quit}
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not quit")
	}
}

func TestRunRecording(t *testing.T) {
	fc := clock.NewFake(epoch)
	rec := music.NewRecorder(music.NewCaptureEngine(), music.RecorderOptions{Now: fc.Now})
	pool := newTestPool(t, 2, rec)
	s, err := New(pool, Options{Clock: fc})
	if err != nil {
		t.Fatal(err)
	}
	h := startLoop(t, s, LoopOptions{Recorder: rec})

	path := filepath.Join(t.TempDir(), "take")
	h.expect(t, shared.Message{Type: shared.RecordExport, String: path}, shared.Error)

	if got := h.expect(t, shared.Message{Type: shared.Record, Boolean: true}, shared.Record); !got.Boolean {
		t.Fatal("recording not reported")
	}
	h.expect(t, shared.Message{Type: shared.PlaceNode, Spec: shared.NodeSpec{Shape: shared.Square, Color: shared.White, Length: shared.Half, Fixed: true}}, shared.NodePlaced)
	fc.Advance(time.Second)
	if got := h.expect(t, shared.Message{Type: shared.Record, Boolean: false}, shared.Record); got.Boolean {
		t.Fatal("still recording")
	}
	// placement pulse plus one tick, three layered samples each
	if rec.Len() != 6 {
		t.Fatalf("recorded %d events", rec.Len())
	}
	h.expect(t, shared.Message{Type: shared.Record, Boolean: false}, shared.Error)

	got := h.expect(t, shared.Message{Type: shared.RecordExport, String: path}, shared.RecordExport)
	if got.String != path {
		t.Fatalf("export reply %+v", got)
	}
	if _, err := os.Stat(path + ".mid"); err != nil {
		t.Fatal(err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, 1, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, f.scene, make(chan shared.Message), nil, LoopOptions{})
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop ignored cancellation")
	}
}
