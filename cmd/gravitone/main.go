package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bloxidge/gravitone/music"
	"github.com/bloxidge/gravitone/scene"
	"github.com/bloxidge/gravitone/shared"

	"github.com/albenik/go-serial/v2"
	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

func main() {
	configFile := flag.String("config", "gravitone.yaml", "config file")
	backend := flag.String("backend", "", "playback backend: beep, midi or silent (default from config)")
	inPort := flag.String("input", "", "MIDI controller input port name (default from config)")
	outPort := flag.String("output", "", "MIDI output port name for the midi backend (default from config)")
	serialPort := flag.String("serial", "", "serial key pad port, e.g. /dev/ttyACM0")
	keymapFile := flag.String("keymap", "", "key pad map (format: one 'keycode:value' per line)")
	record := flag.String("record", "", "record the session into this MIDI file")
	quantize := flag.Bool("quantize", false, "quantize the recording before saving")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	config, err := shared.LoadConfig(*configFile)
	missing := errors.Is(err, fs.ErrNotExist)
	if err != nil && !missing {
		charmlog.Fatal("bad config", "file", *configFile, "err", err)
	}
	if *backend != "" {
		config.Backend = *backend
	}
	if *inPort != "" {
		config.MIDI.Input = *inPort
	}
	if *outPort != "" {
		config.MIDI.Output = *outPort
	}
	if *serialPort != "" {
		config.Serial.Port = *serialPort
	}
	if *keymapFile != "" {
		config.Serial.Keymap = *keymapFile
	}

	level, err := charmlog.ParseLevel(config.LogLevel)
	if err != nil {
		level = charmlog.InfoLevel
	}
	if *debug {
		level = charmlog.DebugLevel
	}
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "gravitone",
	})
	if missing {
		logger.Warn("no config file, using defaults", "file", *configFile)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = charmlog.WithContext(ctx, logger)

	defer midi.CloseDriver()
	engine, closeEngine, err := openEngine(config, logger)
	if err != nil {
		logger.Fatal("cannot open playback", "backend", config.Backend, "err", err)
	}
	defer closeEngine()

	rec := music.NewRecorder(engine, music.RecorderOptions{
		NativeKey: midi.Note(config.NativeKey),
		Logger:    logger,
	})
	pool, err := newPool(config, rec, logger)
	if err != nil {
		logger.Fatal("cannot load instruments", "err", err)
	}
	s, err := scene.New(pool, scene.Options{
		Logger: logger,
		Params: scene.Params{
			Tempo:         config.Tempo,
			Transposition: config.Transposition,
			Restitution:   config.Restitution,
		},
	})
	if err != nil {
		logger.Fatal(err)
	}

	in := make(chan shared.Message, 16)
	out := make(chan shared.Message, 64)
	controls := NewControls(config.Controllers, rand.New(rand.NewSource(seed(config))), func(m shared.Message) {
		select {
		case in <- m:
		case <-ctx.Done():
		}
	}, logger)
	go func() {
		for {
			select {
			case m := <-out:
				controls.Reply(m)
			case <-ctx.Done():
				return
			}
		}
	}()

	if config.MIDI.Input != "" {
		stop, err := listenMIDI(config.MIDI.Input, controls, logger)
		if err != nil {
			logger.Error("cannot listen to MIDI input", "port", config.MIDI.Input, "err", err)
		} else {
			defer stop()
		}
	}
	if config.Serial.Port != "" {
		closePad, err := openKeyPad(ctx, config, controls, logger)
		if err != nil {
			logger.Error("cannot open key pad", "port", config.Serial.Port, "err", err)
		} else {
			defer closePad()
		}
	}
	if *record != "" {
		in <- shared.Message{Type: shared.Record, Boolean: true}
	}

	logger.Info("ready", "backend", config.Backend, "instruments", pool.Size(), "tempo", config.Tempo)
	scene.Run(ctx, s, in, out, scene.LoopOptions{Recorder: rec})

	if err := s.Clear(); err != nil {
		logger.Error(err)
	}
	if *record != "" {
		if err := saveRecording(rec, *record, s.Bus().Params().Tempo, *quantize); err != nil {
			logger.Error("cannot save recording", "err", err)
		}
	}
	logger.Info("stop")
}

// saveRecording stops rec, unless the controls stopped it already, and
// writes the take to path.
func saveRecording(rec *music.Recorder, path string, bpm float64, quantize bool) error {
	if err := rec.Stop(); err != nil && !errors.Is(err, music.ErrNotRecording) {
		return err
	}
	return rec.SaveToFile(path, bpm, quantize)
}

func seed(config shared.Config) int64 {
	if config.Seed != 0 {
		return config.Seed
	}
	return time.Now().UnixNano()
}

func newPool(config shared.Config, engine music.Engine, logger *charmlog.Logger) (*music.Pool, error) {
	base := seed(config)
	bank := config.Bank()
	gains := map[shared.Shape]float64{}
	for _, shape := range shared.Shapes {
		gains[shape] = config.Gain(shape)
	}
	return music.NewPool(config.PoolSize, func(id int) (*music.Instrument, error) {
		return music.NewInstrument(id, engine, bank, music.InstrumentOptions{
			Gains: gains,
			Rand:  rand.New(rand.NewSource(base + int64(id))),
		})
	}, logger)
}

func openEngine(config shared.Config, logger *charmlog.Logger) (music.Engine, func(), error) {
	switch config.Backend {
	case "silent":
		return music.SilentEngine{}, func() {}, nil
	case "midi":
		out, err := midi.FindOutPort(config.MIDI.Output)
		if err != nil {
			logger.Warn("can't find output, opening a virtual one", "port", config.MIDI.Output)
			drv, ok := drivers.Get().(*rtmididrv.Driver)
			if !ok {
				return nil, nil, err
			}
			if out, err = drv.OpenVirtualOut("gravitone"); err != nil {
				return nil, nil, err
			}
		}
		logger.Info("output", "port", out.String())
		send, err := midi.SendTo(out)
		if err != nil {
			return nil, nil, err
		}
		keys := map[string]midi.Note{}
		for path, key := range config.MIDI.Keys {
			keys[path] = midi.Note(key)
		}
		e := music.NewMIDIEngine(send, music.MIDIOptions{
			Channel: config.MIDI.Channel,
			Hold:    config.Hold(),
			Keys:    keys,
			Logger:  logger,
		})
		return e, e.Close, nil
	default:
		e := music.NewBeepEngine(music.BeepOptions{
			NativeKey: midi.Note(config.NativeKey),
			Logger:    logger,
		})
		if err := e.Start(50 * time.Millisecond); err != nil {
			logger.Warn("no audio device, playing silently", "err", err)
			return music.SilentEngine{}, func() {}, nil
		}
		return e, e.Close, nil
	}
}

func listenMIDI(port string, controls *Controls, logger *charmlog.Logger) (func(), error) {
	in, err := midi.FindInPort(port)
	if err != nil {
		return nil, err
	}
	logger.Info("input", "port", in.String())
	return midi.ListenTo(in, controls.HandleMIDI)
}

func openKeyPad(ctx context.Context, config shared.Config, controls *Controls, logger *charmlog.Logger) (func(), error) {
	keymap, err := LoadKeymap(config.Serial.Keymap)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(config.Serial.Port,
		serial.WithBaudrate(config.Serial.Baud),
		serial.WithReadTimeout(100),
	)
	if err != nil {
		return nil, err
	}
	if err := port.ResetInputBuffer(); err != nil {
		logger.Warn("cannot reset key pad input", "err", err)
	}
	pad := NewKeyPad(port, keymap, controls, logger)
	go func() {
		if err := pad.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("key pad stopped", "err", err)
		}
	}()
	return func() { port.Close() }, nil
}
