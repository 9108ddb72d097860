package scene

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/bloxidge/gravitone/shared"

	charmlog "github.com/charmbracelet/log"
)

var ErrInvalidTempo = errors.New("tempo must be a positive finite bpm")

// Params are the live performance parameters shared by every node.
type Params struct {
	Tempo         float64 // beats per minute
	Transposition float64 // semitones
	Restitution   float64 // bounce coefficient, 0..1
}

func DefaultParams() Params {
	return Params{Tempo: 120, Transposition: 0, Restitution: 0.5}
}

// Bus stores the performance parameters and pushes every change to the
// live nodes, in placement order, before the setter returns.
type Bus struct {
	mu     sync.Mutex
	params Params
	scene  *Scene
	log    *charmlog.Logger
}

func (b *Bus) Params() Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

// SetTempo retimes every node. Anchored nodes pulse once and continue at
// the new period.
func (b *Bus) SetTempo(bpm float64) error {
	if !shared.ValidTempo(bpm) {
		return fmt.Errorf("%w: %g", ErrInvalidTempo, bpm)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params.Tempo = bpm
	for _, n := range b.scene.Nodes() {
		n.pulse.SetTempo(bpm)
	}
	b.log.Debug("tempo", "bpm", bpm)
	return nil
}

// SetTransposition applies to the whole pool so instruments acquired later
// start out transposed too.
func (b *Bus) SetTransposition(semitones float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params.Transposition = semitones
	b.scene.pool.SetTransposition(semitones)
	b.log.Debug("transposition", "semitones", semitones)
}

// SetRestitution clamps v to [0, 1] and returns the stored value.
func (b *Bus) SetRestitution(v float64) float64 {
	v = clampRestitution(v)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params.Restitution = v
	for _, n := range b.scene.Nodes() {
		n.body.SetRestitution(v)
	}
	b.log.Debug("restitution", "value", v)
	return v
}

func clampRestitution(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
