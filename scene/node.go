package scene

import (
	"sync"
	"sync/atomic"

	"github.com/bloxidge/gravitone/music"
	"github.com/bloxidge/gravitone/shared"
)

// Feedback is called after each executed pulse of a node, typically to
// flash it on screen. It runs while the node's pulse is in progress and
// must not call back into the node's PulseController or the Bus.
type Feedback func(n *Node)

// Node is a placed shape: a body in the physics world, an instrument from
// the pool and the controller deciding when it sounds.
type Node struct {
	id         int
	spec       shared.NodeSpec
	body       Body
	instrument *music.Instrument
	pulse      *PulseController

	mu      sync.Mutex
	fixed   bool
	grabbed bool
	removed atomic.Bool
}

func (n *Node) ID() int {
	return n.id
}

// Spec returns the node description, with Fixed reflecting the current
// anchoring.
func (n *Node) Spec() shared.NodeSpec {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.spec
	s.Fixed = n.fixed
	return s
}

func (n *Node) Body() Body {
	return n.body
}

func (n *Node) Instrument() *music.Instrument {
	return n.instrument
}

func (n *Node) Pulse() *PulseController {
	return n.pulse
}

func (n *Node) Fixed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fixed
}

func (n *Node) Grabbed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.grabbed
}

func (n *Node) Removed() bool {
	return n.removed.Load()
}

func (n *Node) play(feedback Feedback) func() {
	return func() {
		n.instrument.Play(n.spec.Shape, n.spec.Color, n.spec.Length)
		if feedback != nil {
			feedback(n)
		}
	}
}

func category(fixed bool) shared.Category {
	if fixed {
		return shared.CategoryAnchored
	}
	return shared.CategoryMovable
}
