package scene

import (
	"sync"

	"github.com/bloxidge/gravitone/shared"
)

// Body is the handle of a node in the physics world. The scene only reads
// its category and toggles its flags; positions and forces stay with the
// physics engine.
type Body interface {
	Category() shared.Category
	SetCategory(shared.Category)
	SetPinned(bool)
	SetDynamic(bool)
	SetRestitution(float64)
}

// HeadlessBody is a Body without a physics world behind it. Control
// surfaces that only report contacts, like a MIDI pad, place nodes with it.
type HeadlessBody struct {
	mu          sync.Mutex
	category    shared.Category
	pinned      bool
	dynamic     bool
	restitution float64
}

func NewHeadlessBody() *HeadlessBody {
	return &HeadlessBody{}
}

func (b *HeadlessBody) Category() shared.Category {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.category
}

func (b *HeadlessBody) SetCategory(c shared.Category) {
	b.mu.Lock()
	b.category = c
	b.mu.Unlock()
}

func (b *HeadlessBody) SetPinned(v bool) {
	b.mu.Lock()
	b.pinned = v
	b.mu.Unlock()
}

func (b *HeadlessBody) SetDynamic(v bool) {
	b.mu.Lock()
	b.dynamic = v
	b.mu.Unlock()
}

func (b *HeadlessBody) SetRestitution(v float64) {
	b.mu.Lock()
	b.restitution = v
	b.mu.Unlock()
}

func (b *HeadlessBody) Pinned() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pinned
}

func (b *HeadlessBody) Dynamic() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dynamic
}

func (b *HeadlessBody) Restitution() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.restitution
}
