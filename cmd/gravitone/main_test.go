package main

import (
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/bloxidge/gravitone/music"
	"github.com/bloxidge/gravitone/shared"

	charmlog "github.com/charmbracelet/log"
)

func TestSaveRecording(t *testing.T) {
	dir := t.TempDir()
	rec := music.NewRecorder(music.NewCaptureEngine(), music.RecorderOptions{Logger: charmlog.New(io.Discard)})
	bank := map[shared.Shape]shared.SampleSet{}
	for _, s := range shared.Shapes {
		bank[s] = shared.SampleSet{Red: s.String() + "/r.wav", Green: s.String() + "/g.wav", Blue: s.String() + "/b.wav"}
	}
	in, err := music.NewInstrument(0, rec, bank, music.InstrumentOptions{Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatal(err)
	}

	rec.Start()
	in.Play(shared.Circle, shared.White, shared.Quarter)
	if err := saveRecording(rec, filepath.Join(dir, "live"), 120, false); err != nil {
		t.Fatal(err)
	}
	if rec.Recording() {
		t.Fatal("still recording")
	}

	// already stopped from the controls
	if err := saveRecording(rec, filepath.Join(dir, "again.mid"), 120, false); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"live.mid", "again.mid"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}
}
