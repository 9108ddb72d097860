package shared

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SampleSet holds the three timbres of one shape, keyed by color channel.
type SampleSet struct {
	Red   string `yaml:"red"`
	Green string `yaml:"green"`
	Blue  string `yaml:"blue"`
}

func (s SampleSet) Paths() [3]string {
	return [3]string{s.Red, s.Green, s.Blue}
}

type Config struct {
	LogLevel string `yaml:"log_level"`
	Seed     int64  `yaml:"seed"` // 0 picks a time based seed

	PoolSize      int     `yaml:"pool_size"`
	Tempo         float64 `yaml:"tempo"`
	Transposition float64 `yaml:"transposition"`
	Restitution   float64 `yaml:"restitution"`

	Backend   string               `yaml:"backend"` // beep, midi or silent
	NativeKey uint8                `yaml:"native_key"`
	Samples   map[string]SampleSet `yaml:"samples"`
	Gains     map[string]float64   `yaml:"gains"`

	MIDI struct {
		Input   string           `yaml:"input"`
		Output  string           `yaml:"output"`
		Channel uint8            `yaml:"channel"`
		HoldMs  int              `yaml:"hold_ms"`
		Keys    map[string]uint8 `yaml:"keys"`
	} `yaml:"midi"`

	Controllers map[string]uint8 `yaml:"controllers"`

	Serial struct {
		Port   string `yaml:"port"`
		Baud   int    `yaml:"baud"`
		Keymap string `yaml:"keymap"`
	} `yaml:"serial"`
}

func DefaultConfig() Config {
	c := Config{
		LogLevel:      "info",
		PoolSize:      20,
		Tempo:         120,
		Transposition: 0,
		Restitution:   0.5,
		Backend:       "beep",
		NativeKey:     60,
		Samples: map[string]SampleSet{
			"square":   {Red: "Sounds/Square/KickHard23.wav", Green: "Sounds/Square/SNHard13.wav", Blue: "Sounds/Square/HatTightNatV06.wav"},
			"circle":   {Red: "Sounds/Circle/BigDrone.wav", Green: "Sounds/Circle/HiQBass.wav", Blue: "Sounds/Circle/Portatone.wav"},
			"triangle": {Red: "Sounds/Triangle/DanceHook.wav", Green: "Sounds/Triangle/SquareLead.wav", Blue: "Sounds/Triangle/FunkyLead.wav"},
			"star":     {Red: "Sounds/Star/Stardust.wav", Green: "Sounds/Star/SunBell.wav", Blue: "Sounds/Star/CrystalEyes.wav"},
		},
		Gains: map[string]float64{
			"square":   0.7,
			"circle":   1.0,
			"triangle": 0.5,
			"star":     0.5,
		},
		Controllers: map[string]uint8{
			"tempo":         20,
			"transposition": 21,
			"restitution":   22,
			"fixed":         23,
			"clear":         24,
			"record":        25,
			"contact":       26,
			"shape":         27,
			"length":        28,
			"color":         29,
		},
	}
	c.MIDI.Output = "Synth input port"
	c.MIDI.HoldMs = 250
	c.MIDI.Keys = map[string]uint8{}
	c.Serial.Baud = 115200
	return c
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(filename string) (Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return DefaultConfig(), err
	}
	defer file.Close()
	return ReadConfig(file)
}

func ReadConfig(r io.Reader) (Config, error) {
	config := DefaultConfig()
	data, err := io.ReadAll(r)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config: %w", err)
	}
	return config, config.Validate()
}

func (c Config) Validate() (errs error) {
	if c.PoolSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("pool_size must be positive, got %d", c.PoolSize))
	}
	if !ValidTempo(c.Tempo) {
		errs = errors.Join(errs, fmt.Errorf("tempo must be a positive finite bpm, got %g", c.Tempo))
	}
	if !(c.Restitution >= 0 && c.Restitution <= 1) {
		errs = errors.Join(errs, fmt.Errorf("restitution must be within 0..1, got %g", c.Restitution))
	}
	switch c.Backend {
	case "beep", "midi", "silent":
	default:
		errs = errors.Join(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	for name := range c.Samples {
		if _, err := ParseShape(name); err != nil {
			errs = errors.Join(errs, fmt.Errorf("samples: %w", err))
		}
	}
	for name := range c.Gains {
		if _, err := ParseShape(name); err != nil {
			errs = errors.Join(errs, fmt.Errorf("gains: %w", err))
		}
	}
	return errs
}

// Bank returns the sample set of every shape.
func (c Config) Bank() map[Shape]SampleSet {
	bank := make(map[Shape]SampleSet, len(Shapes))
	for name, set := range c.Samples {
		if shape, err := ParseShape(name); err == nil {
			bank[shape] = set
		}
	}
	return bank
}

// Gain returns the shape bus level, 1 when not configured.
func (c Config) Gain(s Shape) float64 {
	if g, ok := c.Gains[s.String()]; ok {
		return g
	}
	return 1
}

func (c Config) Hold() time.Duration {
	return time.Duration(c.MIDI.HoldMs) * time.Millisecond
}
