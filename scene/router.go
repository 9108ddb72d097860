package scene

import (
	charmlog "github.com/charmbracelet/log"
)

// Router turns physics contacts into pulse requests.
type Router struct {
	scene *Scene
	log   *charmlog.Logger
}

// OnContact pulses both participants of a contact between two nodes.
// Contacts with anything else, such as the world boundaries, are ignored.
func (r *Router) OnContact(a, b Body) {
	if a == nil || b == nil {
		return
	}
	if !a.Category().IsNode() || !b.Category().IsNode() {
		r.log.Debug("ignored contact", "a", a.Category(), "b", b.Category())
		return
	}
	na, okA := r.scene.Lookup(a)
	nb, okB := r.scene.Lookup(b)
	if !okA || !okB {
		r.log.Debug("contact with unregistered body")
		return
	}
	now := r.scene.clock.Now()
	na.pulse.RequestPulse(now)
	nb.pulse.RequestPulse(now)
}
