package scene

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bloxidge/gravitone/music"
	"github.com/bloxidge/gravitone/shared"

	charmlog "github.com/charmbracelet/log"
)

var ErrNoRecorder = errors.New("recording is not available")

type LoopOptions struct {
	// Recorder serves Record and RecordExport messages. May be nil.
	Recorder *music.Recorder
	// NewBody creates the body of a node placed through a message.
	// Defaults to a HeadlessBody.
	NewBody func(shared.NodeSpec) Body
}

// Run processes control messages one at a time until ctx is done or a Quit
// message arrives. Outcomes are reported on out, which may be nil.
// The logger is taken from ctx.
func Run(ctx context.Context, s *Scene, in <-chan shared.Message, out chan<- shared.Message, opts LoopOptions) {
	logger := charmlog.FromContext(ctx).WithPrefix("loop")
	if opts.NewBody == nil {
		opts.NewBody = func(shared.NodeSpec) Body { return NewHeadlessBody() }
	}
	notify := func(m shared.Message) {
		if out == nil {
			return
		}
		select {
		case out <- m:
		case <-ctx.Done():
		}
	}
	fail := func(err error) {
		logger.Error(err)
		notify(shared.Message{Type: shared.Error, String: err.Error()})
	}
	params := func(name string, v float64) {
		notify(shared.Message{Type: shared.ParamsChanged, String: name, Float: v})
	}
	node := func(id int) (*Node, bool) {
		n, ok := s.Node(id)
		if !ok {
			fail(fmt.Errorf("%w: %d", ErrUnknownNode, id))
		}
		return n, ok
	}

	transposition := shared.DiscreteValue{Old: int(math.Round(s.Bus().Params().Transposition))}

	logger.Info("start")
loopchan:
	for {
		select {
		case <-ctx.Done():
			logger.Debug("context done")
			break loopchan
		case msg, ok := <-in:
			if !ok {
				break loopchan
			}
			switch msg.Type {
			case shared.Quit:
				break loopchan
			case shared.PlaceNode:
				// the label of the request comes back with the reply
				n, err := s.Place(msg.Spec, opts.NewBody(msg.Spec))
				if err != nil {
					logger.Error("cannot place node", "label", msg.String, "err", err)
					notify(shared.Message{Type: shared.PlaceFailed, String: msg.String, Spec: msg.Spec})
					continue
				}
				notify(shared.Message{Type: shared.NodePlaced, Number: n.ID(), Number2: n.Instrument().ID(), String: msg.String, Spec: n.Spec()})
			case shared.RemoveNode:
				n, ok := node(msg.Number)
				if !ok {
					continue
				}
				if err := s.Remove(n); err != nil {
					fail(err)
					continue
				}
				notify(shared.Message{Type: shared.NodeRemoved, Number: n.ID()})
			case shared.ClearNodes:
				removed := s.Nodes()
				if err := s.Clear(); err != nil {
					fail(err)
				}
				for _, n := range removed {
					notify(shared.Message{Type: shared.NodeRemoved, Number: n.ID()})
				}
			case shared.SetTempo:
				if err := s.Bus().SetTempo(msg.Float); err != nil {
					fail(err)
					continue
				}
				params("tempo", msg.Float)
			case shared.SetTransposition:
				if !transposition.Update(msg.Float) {
					continue
				}
				s.Bus().SetTransposition(float64(transposition.New))
				params("transposition", float64(transposition.New))
			case shared.SetRestitution:
				params("restitution", s.Bus().SetRestitution(msg.Float))
			case shared.SetFixed:
				n, ok := node(msg.Number)
				if !ok {
					continue
				}
				if err := s.SetFixed(n, msg.Boolean); err != nil {
					fail(err)
				}
			case shared.Contact:
				a, okA := node(msg.Number)
				b, okB := node(msg.Number2)
				if !okA || !okB {
					continue
				}
				s.Router().OnContact(a.Body(), b.Body())
			case shared.Record:
				if opts.Recorder == nil {
					fail(ErrNoRecorder)
					continue
				}
				if msg.Boolean {
					opts.Recorder.Start()
				} else if err := opts.Recorder.Stop(); err != nil {
					fail(err)
					continue
				}
				notify(shared.Message{Type: shared.Record, Boolean: opts.Recorder.Recording()})
			case shared.RecordExport:
				if opts.Recorder == nil {
					fail(ErrNoRecorder)
					continue
				}
				logger.Info("saving to", "filename", msg.String, "quantize", msg.Boolean)
				if err := opts.Recorder.SaveToFile(msg.String, s.Bus().Params().Tempo, msg.Boolean); err != nil {
					fail(err)
					continue
				}
				notify(shared.Message{Type: shared.RecordExport, String: msg.String})
			default:
				logger.Printf("unknown message type: %s", msg.Type)
			}
		}
	}
	logger.Info("stop")
}
