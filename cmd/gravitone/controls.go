package main

import (
	"math/rand"
	"strconv"
	"sync"

	"github.com/bloxidge/gravitone/shared"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
)

// Controls turns a keyboard into scene messages. Every key toggles a node
// of its own; controllers change the performance parameters and what the
// next key places.
type Controls struct {
	names map[uint8]string
	rng   *rand.Rand
	send  func(shared.Message)
	log   *charmlog.Logger

	mu        sync.Mutex
	shape     shared.Shape
	length    shared.NoteLength
	fixed     bool
	hue       int // hue wheel offset, -1 for random presets
	recording bool
	keys      map[uint8]int // key -> node id, or pending
	order     []int         // live node ids, oldest first
}

// pending marks a key whose placement has been sent but not answered.
const pending = -1

func NewControls(controllers map[string]uint8, rng *rand.Rand, send func(shared.Message), logger *charmlog.Logger) *Controls {
	names := make(map[uint8]string, len(controllers))
	for name, cc := range controllers {
		names[cc] = name
	}
	return &Controls{
		names:  names,
		rng:    rng,
		send:   send,
		log:    logger.WithPrefix("controls"),
		shape:  shared.Circle,
		length: shared.Quarter,
		hue:    -1,
		keys:   map[uint8]int{},
	}
}

// HandleMIDI is the midi.ListenTo callback.
func (c *Controls) HandleMIDI(msg midi.Message, timestampms int32) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		if vel > 0 {
			c.NoteOn(key)
		}
	case msg.GetControlChange(&ch, &key, &vel):
		c.ControlChange(key, vel)
	}
}

// NoteOn places a node for key, or removes the one it placed before.
func (c *Controls) NoteOn(key uint8) {
	c.mu.Lock()
	var msg shared.Message
	if id, ok := c.keys[key]; ok {
		if id == pending {
			c.mu.Unlock()
			c.log.Debug("placement in flight", "key", key)
			return
		}
		delete(c.keys, key)
		msg = shared.Message{Type: shared.RemoveNode, Number: id}
	} else {
		c.keys[key] = pending
		color := shared.RandomPreset(c.rng)
		if c.hue >= 0 {
			color = shared.HueStep(int(key) + c.hue)
		}
		msg = shared.Message{
			Type:   shared.PlaceNode,
			String: strconv.Itoa(int(key)),
			Spec: shared.NodeSpec{
				Shape:  c.shape,
				Color:  color,
				Length: c.length,
				Fixed:  c.fixed,
			},
		}
	}
	c.mu.Unlock()
	c.send(msg)
}

func (c *Controls) ControlChange(cc, value uint8) {
	name, ok := c.names[cc]
	if !ok {
		c.log.Debug("unassigned controller", "cc", cc, "value", value)
		return
	}
	v := float64(value) / 127
	press := value > 0

	c.mu.Lock()
	var msg *shared.Message
	switch name {
	case "tempo":
		msg = &shared.Message{Type: shared.SetTempo, Float: 40 + v*200}
	case "transposition":
		msg = &shared.Message{Type: shared.SetTransposition, Float: v*24 - 12}
	case "restitution":
		msg = &shared.Message{Type: shared.SetRestitution, Float: v}
	case "color":
		// 0 goes back to random presets
		c.hue = -1
		if press {
			c.hue = int(value) * shared.HueSteps / 128
		}
	case "fixed":
		if press {
			c.fixed = !c.fixed
		}
	case "shape":
		if press {
			c.shape = c.shape.Next()
		}
	case "length":
		if press {
			c.length++
			if !c.length.Valid() {
				c.length = shared.Bar
			}
		}
	case "clear":
		if press {
			msg = &shared.Message{Type: shared.ClearNodes}
		}
	case "record":
		if press {
			msg = &shared.Message{Type: shared.Record, Boolean: !c.recording}
		}
	case "contact":
		if n := len(c.order); press && n >= 2 {
			msg = &shared.Message{Type: shared.Contact, Number: c.order[n-2], Number2: c.order[n-1]}
		}
	default:
		c.log.Debug("unknown control", "name", name)
	}
	c.log.Debug("control", "name", name, "value", value, "shape", c.shape, "length", c.length, "fixed", c.fixed)
	c.mu.Unlock()

	if msg != nil {
		c.send(*msg)
	}
}

// Reply keeps track of what the scene loop reports back.
func (c *Controls) Reply(msg shared.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Type {
	case shared.NodePlaced:
		key, err := strconv.Atoi(msg.String)
		if err != nil || key < 0 || key > 127 {
			return
		}
		c.keys[uint8(key)] = msg.Number
		c.order = append(c.order, msg.Number)
	case shared.PlaceFailed:
		if key, err := strconv.Atoi(msg.String); err == nil && key >= 0 && key <= 127 && c.keys[uint8(key)] == pending {
			delete(c.keys, uint8(key))
		}
		c.log.Warn("placement failed", "key", msg.String)
	case shared.NodeRemoved:
		for key, id := range c.keys {
			if id == msg.Number {
				delete(c.keys, key)
			}
		}
		for i, id := range c.order {
			if id == msg.Number {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	case shared.Record:
		c.recording = msg.Boolean
	case shared.Error:
		c.log.Warn(msg.String)
	}
}

// Live returns the ids of the nodes placed through these controls.
func (c *Controls) Live() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.order...)
}
