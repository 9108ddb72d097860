package shared

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Shape int

const (
	Square Shape = iota
	Circle
	Triangle
	Star
)

// Shapes lists every shape in cycling order.
var Shapes = [...]Shape{Square, Circle, Triangle, Star}

var shapeNames = [...]string{"square", "circle", "triangle", "star"}

func (s Shape) String() string {
	if s >= 0 && int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

func (s Shape) Valid() bool {
	return s >= Square && s <= Star
}

// Scale is the drawing size relative to a square.
func (s Shape) Scale() float64 {
	switch s {
	case Circle:
		return 1.05
	case Triangle:
		return 1.10
	case Star:
		return 1.15
	default:
		return 1.00
	}
}

func (s Shape) Next() Shape {
	return Shapes[(int(s)+1)%len(Shapes)]
}

func ParseShape(name string) (Shape, error) {
	for i, n := range shapeNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Shape(i), nil
		}
	}
	return Square, fmt.Errorf("unknown shape %q", name)
}

// NoteLength is the note-length class of a node. Lengths are counted in
// whole notes: a whole note lasts 240/bpm seconds.
type NoteLength int

const (
	Bar NoteLength = iota
	Double
	Whole
	Half
	Quarter
	Eighth
)

var noteLengthNames = [...]string{"bar", "double", "whole", "half", "quarter", "eighth"}

func (n NoteLength) String() string {
	if n >= 0 && int(n) < len(noteLengthNames) {
		return noteLengthNames[n]
	}
	return fmt.Sprintf("length(%d)", int(n))
}

func (n NoteLength) Valid() bool {
	return n >= Bar && n <= Eighth
}

func ParseNoteLength(name string) (NoteLength, error) {
	for i, l := range noteLengthNames {
		if strings.EqualFold(l, strings.TrimSpace(name)) {
			return NoteLength(i), nil
		}
	}
	return Whole, fmt.Errorf("unknown note length %q", name)
}

func (n NoteLength) Beats() float64 {
	switch n {
	case Bar:
		return 4
	case Double:
		return 2
	case Whole:
		return 1
	case Half:
		return 1.0 / 2
	case Quarter:
		return 1.0 / 4
	case Eighth:
		return 1.0 / 8
	}
	return 1
}

// Size is the visual diameter of a node of this length.
func (n NoteLength) Size() float64 {
	switch n {
	case Bar:
		return 200
	case Double:
		return 160
	case Whole:
		return 120
	case Half:
		return 90
	case Quarter:
		return 60
	case Eighth:
		return 40
	}
	return 120
}

// Period returns 240 * beats / bpm seconds, or 0 for a tempo ValidTempo
// rejects.
func (n NoteLength) Period(bpm float64) time.Duration {
	if !ValidTempo(bpm) {
		return 0
	}
	return time.Duration(240 * n.Beats() / bpm * float64(time.Second))
}

// ValidTempo reports whether every note length has a positive period at
// bpm that fits in a time.Duration.
func ValidTempo(bpm float64) bool {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return false
	}
	shortest := 240 * Eighth.Beats() / bpm * float64(time.Second)
	longest := 240 * Bar.Beats() / bpm * float64(time.Second)
	return shortest >= 1 && longest < math.MaxInt64
}

// Category is the physics category bitmask of a body.
type Category uint32

const (
	CategoryNone     Category = 0x0
	CategoryAnchored Category = 0x1 << 0
	CategoryMovable  Category = 0x1 << 1
	CategoryAll               = CategoryAnchored | CategoryMovable
)

// IsNode reports whether the category is exactly one of the node
// categories. World boundaries and other bodies carry something else.
func (c Category) IsNode() bool {
	return c == CategoryAnchored || c == CategoryMovable
}
