package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bloxidge/gravitone/clock"
	"github.com/bloxidge/gravitone/music"
	"github.com/bloxidge/gravitone/shared"

	charmlog "github.com/charmbracelet/log"
)

var (
	ErrNodeRemoved = errors.New("node already removed")
	ErrUnknownNode = errors.New("unknown node")
	ErrBodyInUse   = errors.New("body already belongs to a node")
)

type Options struct {
	Clock    clock.Clock
	Logger   *charmlog.Logger
	Feedback Feedback
	// Params are the initial performance parameters. The zero value
	// selects DefaultParams.
	Params Params
}

// Scene owns the live nodes and wires them to the pool, the router and the
// parameter bus.
//
// Lock order: bus, then scene registry, then node pulse.
type Scene struct {
	pool     *music.Pool
	clock    clock.Clock
	log      *charmlog.Logger
	feedback Feedback

	mu     sync.RWMutex
	nodes  []*Node
	byBody map[Body]*Node
	byID   map[int]*Node
	nextID int

	router *Router
	bus    *Bus
}

func New(pool *music.Pool, opts Options) (*Scene, error) {
	if pool == nil {
		return nil, errors.New("scene needs an instrument pool")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = charmlog.Default()
	}
	params := opts.Params
	if params == (Params{}) {
		params = DefaultParams()
	}
	if !shared.ValidTempo(params.Tempo) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidTempo, params.Tempo)
	}
	params.Restitution = clampRestitution(params.Restitution)

	logger := opts.Logger.WithPrefix("scene")
	s := &Scene{
		pool:     pool,
		clock:    opts.Clock,
		log:      logger,
		feedback: opts.Feedback,
		byBody:   make(map[Body]*Node),
		byID:     make(map[int]*Node),
		nextID:   1,
	}
	s.router = &Router{scene: s, log: logger}
	s.bus = &Bus{params: params, scene: s, log: logger}
	pool.SetTransposition(params.Transposition)
	return s, nil
}

func (s *Scene) Router() *Router {
	return s.router
}

func (s *Scene) Bus() *Bus {
	return s.bus
}

func (s *Scene) Pool() *music.Pool {
	return s.pool
}

// Place creates a node for body. Anchored nodes sound once right away and
// then keep pulsing at the period of their note length.
func (s *Scene) Place(spec shared.NodeSpec, body Body) (*Node, error) {
	if body == nil {
		return nil, errors.New("nil body")
	}
	if !spec.Shape.Valid() || !spec.Length.Valid() {
		return nil, fmt.Errorf("invalid node %s/%s", spec.Shape, spec.Length)
	}
	if _, taken := s.Lookup(body); taken {
		return nil, ErrBodyInUse
	}

	// held so a concurrent parameter change cannot miss the new node
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	params := s.bus.params

	in, err := s.pool.Acquire()
	if err != nil {
		s.log.Warn("cannot place node", "shape", spec.Shape, "err", err)
		return nil, err
	}

	body.SetCategory(category(spec.Fixed))
	body.SetPinned(spec.Fixed)
	body.SetDynamic(true)
	body.SetRestitution(params.Restitution)

	n := &Node{
		spec:       spec,
		body:       body,
		instrument: in,
		fixed:      spec.Fixed,
	}
	n.pulse = NewPulseController(s.clock, spec.Length, params.Tempo, n.play(s.feedback))

	s.mu.Lock()
	if _, taken := s.byBody[body]; taken {
		s.mu.Unlock()
		s.pool.Release(in)
		return nil, ErrBodyInUse
	}
	n.id = s.nextID
	s.nextID++
	s.nodes = append(s.nodes, n)
	s.byBody[body] = n
	s.byID[n.id] = n
	s.mu.Unlock()

	s.log.Debug("placed", "node", n.id, "instrument", in.ID(), "shape", spec.Shape, "length", spec.Length, "fixed", spec.Fixed)
	if spec.Fixed {
		n.pulse.RequestPulse(s.clock.Now())
		n.pulse.StartScheduling()
	}
	return n, nil
}

// Remove unregisters the node, stops its pulses and hands its instrument
// back to the pool, in that order.
func (s *Scene) Remove(n *Node) error {
	if n == nil {
		return ErrUnknownNode
	}
	s.mu.Lock()
	if s.byID[n.id] != n {
		s.mu.Unlock()
		if n.removed.Load() {
			return ErrNodeRemoved
		}
		return ErrUnknownNode
	}
	n.removed.Store(true)
	delete(s.byID, n.id)
	delete(s.byBody, n.body)
	for i, other := range s.nodes {
		if other == n {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	n.pulse.Teardown()
	if err := s.pool.Release(n.instrument); err != nil {
		return fmt.Errorf("node %d: %w", n.id, err)
	}
	s.log.Debug("removed", "node", n.id, "instrument", n.instrument.ID())
	return nil
}

// Clear removes every live node.
func (s *Scene) Clear() (errs error) {
	for _, n := range s.Nodes() {
		if err := s.Remove(n); err != nil && !errors.Is(err, ErrNodeRemoved) {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// Grab detaches the node from the simulation while it is dragged.
func (s *Scene) Grab(n *Node) error {
	if n.Removed() {
		return ErrNodeRemoved
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.grabbed = true
	n.body.SetPinned(false)
	n.body.SetDynamic(false)
	return nil
}

// Drop hands a dragged node back to the simulation, pinned again if it is
// anchored.
func (s *Scene) Drop(n *Node) error {
	if n.Removed() {
		return ErrNodeRemoved
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.grabbed {
		return nil
	}
	n.grabbed = false
	n.body.SetPinned(n.fixed)
	n.body.SetDynamic(true)
	return nil
}

// SetFixed anchors or releases a node. Anchored nodes pulse on their own
// schedule; movable ones only on contact.
func (s *Scene) SetFixed(n *Node, fixed bool) error {
	if n.Removed() {
		return ErrNodeRemoved
	}
	n.mu.Lock()
	if n.fixed == fixed {
		n.mu.Unlock()
		return nil
	}
	n.fixed = fixed
	n.body.SetCategory(category(fixed))
	if !n.grabbed {
		n.body.SetPinned(fixed)
	}
	n.mu.Unlock()

	if fixed {
		n.pulse.StartScheduling()
	} else {
		n.pulse.StopScheduling()
	}
	s.log.Debug("anchoring", "node", n.id, "fixed", fixed)
	return nil
}

// Nodes returns the live nodes in placement order.
func (s *Scene) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Node(nil), s.nodes...)
}

func (s *Scene) Node(id int) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	return n, ok
}

func (s *Scene) Lookup(b Body) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byBody[b]
	return n, ok
}

func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}
