package shared

import (
	"math"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an RGBA color with channels in [0,1].
type Color struct {
	R, G, B, A float64
}

var (
	Green   = Color{0, 1, 0, 1}
	Blue    = Color{0, 0, 1, 1}
	Orange  = Color{1, 0.5, 0, 1}
	Red     = Color{1, 0, 0, 1}
	Purple  = Color{0.5, 0, 0.5, 1}
	Gray    = Color{0.5, 0.5, 0.5, 1}
	Brown   = Color{0.6, 0.4, 0.2, 1}
	Yellow  = Color{1, 1, 0, 1}
	Magenta = Color{1, 0, 1, 1}
	White   = Color{1, 1, 1, 1}
)

var Presets = [...]Color{Green, Blue, Orange, Red, Purple, Gray, Brown, Yellow, Magenta}

// HueSteps is the number of positions on the color slider wheel.
const HueSteps = 12

// RandomPreset picks one of the named presets.
func RandomPreset(rng *rand.Rand) Color {
	return Presets[rng.Intn(len(Presets))]
}

// HueStep returns the fully saturated color at step n of the hue wheel.
func HueStep(n int) Color {
	n %= HueSteps
	if n < 0 {
		n += HueSteps
	}
	c := colorful.Hsv(float64(n)*360/HueSteps, 1, 1).Clamped()
	return Color{R: c.R, G: c.G, B: c.B, A: 1}
}

// Channels returns the red, green and blue components clamped to [0,1].
func (c Color) Channels() [3]float64 {
	return [3]float64{clamp01(c.R), clamp01(c.G), clamp01(c.B)}
}

// Hex formats the color as #rrggbb.
func (c Color) Hex() string {
	return colorful.Color{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B)}.Hex()
}

func ParseHex(s string) (Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return White, err
	}
	return Color{R: c.R, G: c.G, B: c.B, A: 1}, nil
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
