package music

import (
	"errors"
	"fmt"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

var (
	ErrNoCapacity        = errors.New("no free instrument")
	ErrDoubleRelease     = errors.New("instrument already free")
	ErrForeignInstrument = errors.New("instrument does not belong to this pool")
)

// Pool is the fixed bank of instruments handed out to nodes.
type Pool struct {
	mu    sync.Mutex
	slots []*Instrument
	log   *charmlog.Logger
}

// NewPool builds size instruments up front. The pool never grows.
func NewPool(size int, build func(id int) (*Instrument, error), logger *charmlog.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	if logger == nil {
		logger = charmlog.Default()
	}
	p := &Pool{
		slots: make([]*Instrument, 0, size),
		log:   logger.WithPrefix("pool"),
	}
	for i := 0; i < size; i++ {
		in, err := build(i)
		if err != nil {
			return nil, fmt.Errorf("instrument %d: %w", i, err)
		}
		in.id = i
		p.slots = append(p.slots, in)
	}
	p.log.Debug("instruments ready", "size", size)
	return p, nil
}

// Acquire hands out the first free instrument in pool order.
func (p *Pool) Acquire() (*Instrument, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, in := range p.slots {
		if !in.taken.Load() {
			in.taken.Store(true)
			return in, nil
		}
	}
	return nil, ErrNoCapacity
}

// Release returns an instrument to the pool. Releasing a free instrument
// is reported but harmless.
func (p *Pool) Release(in *Instrument) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if in == nil || in.id < 0 || in.id >= len(p.slots) || p.slots[in.id] != in {
		return ErrForeignInstrument
	}
	if !in.taken.Load() {
		p.log.Warn("double release", "instrument", in.id)
		return ErrDoubleRelease
	}
	in.taken.Store(false)
	return nil
}

// SetTransposition applies the global transposition to every instrument,
// free ones included, so a newly acquired instrument is always current.
func (p *Pool) SetTransposition(v float64) {
	p.mu.Lock()
	slots := p.slots
	p.mu.Unlock()
	for _, in := range slots {
		in.SetTransposition(v)
	}
}

func (p *Pool) Size() int {
	return len(p.slots)
}

// Free counts the instruments not assigned to a node.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, in := range p.slots {
		if !in.taken.Load() {
			n++
		}
	}
	return n
}

func (p *Pool) Instruments() []*Instrument {
	return append([]*Instrument(nil), p.slots...)
}
