package shared

import "fmt"

type Event int

const (
	Quit Event = iota
	PlaceNode
	RemoveNode
	ClearNodes
	SetTempo
	SetTransposition
	SetRestitution
	SetFixed
	Contact
	Record
	RecordExport
	Error
	NodePlaced
	PlaceFailed
	NodeRemoved
	ParamsChanged
)

var eventNames = [...]string{
	Quit:             "quit",
	PlaceNode:        "place-node",
	RemoveNode:       "remove-node",
	ClearNodes:       "clear-nodes",
	SetTempo:         "set-tempo",
	SetTransposition: "set-transposition",
	SetRestitution:   "set-restitution",
	SetFixed:         "set-fixed",
	Contact:          "contact",
	Record:           "record",
	RecordExport:     "record-export",
	Error:            "error",
	NodePlaced:       "node-placed",
	PlaceFailed:      "place-failed",
	NodeRemoved:      "node-removed",
	ParamsChanged:    "params-changed",
}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Message travels between the control surface and the scene loop.
// Field use depends on Type: node ids go in Number/Number2, parameter
// values in Float, switches in Boolean, file names and request labels in
// String.
type Message struct {
	Type    Event
	Number  int
	Number2 int
	Float   float64
	Boolean bool
	String  string
	Spec    NodeSpec
}

// NodeSpec describes a node to be placed.
type NodeSpec struct {
	Shape  Shape
	Color  Color
	Length NoteLength
	Fixed  bool
}

// DiscreteValue detects changes of a continuous control once rounded.
type DiscreteValue struct {
	Old int
	New int
}

func (d DiscreteValue) Changed() bool {
	return d.New != d.Old
}

// Update rounds v into New and reports whether it differs from the
// previous value. Old is moved forward afterwards.
func (d *DiscreteValue) Update(v float64) bool {
	if v < 0 {
		d.New = int(v - 0.5)
	} else {
		d.New = int(v + 0.5)
	}
	changed := d.Changed()
	d.Old = d.New
	return changed
}
