// Package recurrence implements a sine oscillator built on a two-state
// rotation recurrence instead of a lookup table. It is cheap and modulates
// smoothly, but is only valid well below Nyquist.
package recurrence

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/norasector/phasewave/pkg/dsp/shape"
)

const (
	// MaxFrequency is the highest normalized frequency rendered; at or above
	// it the output is silenced.
	MaxFrequency float32 = 0.25

	// MaxBoundedFrequency is the highest normalized frequency at which
	// x^2+y^2 stays inside [0.5, 2] on every sample. The recurrence traces
	// an ellipse whose eccentricity grows with e, and renormalizing only at
	// block starts cannot hold the bound above it.
	MaxBoundedFrequency float32 = 0.125

	minNorm float32 = 0.5
	maxNorm float32 = 2.0
)

type mode int

const (
	modeUnit mode = iota
	modeScaled
	modeAdditive
	modeQuadrature
)

// Sine is the rotation recurrence x += e*y; y -= e*x with e ~ 2 sin(pi f).
// Frequencies are normalized to cycles per sample. The state norm stays in
// [0.5, 2] up to MaxBoundedFrequency; between that and MaxFrequency it
// still oscillates but the norm swings wider.
type Sine struct {
	x, y      float32
	epsilon   float32
	amplitude float32
}

// New returns an oscillator with its state vector at (1, 0).
func New() *Sine {
	s := &Sine{}
	s.Init()
	return s
}

// Init resets the state vector and the smoothed parameters.
func (s *Sine) Init() {
	s.x = 1
	s.y = 0
	s.epsilon = 0
	s.amplitude = 0
}

// Fast2Sin approximates 2*sin(pi*f) with a third-order polynomial tuned for
// a good SNR/THD trade-off over the oscillator's range.
func Fast2Sin(f float32) float32 {
	fPi := f * math32.Pi
	return fPi * (2 - (2*0.96/6)*fPi*fPi)
}

// InvSqrt is the bit-trick inverse square root with one Newton step.
func InvSqrt(x float32) float32 {
	i := math.Float32bits(x)
	i = 0x5f3759df - (i >> 1)
	y := math.Float32frombits(i)
	return y * (1.5 - x*0.5*y*y)
}

// Norm returns x^2 + y^2 of the state vector.
func (s *Sine) Norm() float32 {
	return s.x*s.x + s.y*s.y
}

// State returns the state vector.
func (s *Sine) State() (x, y float32) {
	return s.x, s.y
}

// Render overwrites out with the unit-amplitude sine.
func (s *Sine) Render(frequency float32, out []float32) {
	s.render(modeUnit, frequency, 1, out, nil)
}

// RenderScaled overwrites out with the sine scaled by a ramped amplitude.
func (s *Sine) RenderScaled(frequency, amplitude float32, out []float32) {
	s.render(modeScaled, frequency, amplitude, out, nil)
}

// RenderAdditive adds the amplitude-scaled sine into out.
func (s *Sine) RenderAdditive(frequency, amplitude float32, out []float32) {
	s.render(modeAdditive, frequency, amplitude, out, nil)
}

// RenderQuadrature writes x to out and its quadrature companion y to outQ.
// outQ must be at least as long as out.
func (s *Sine) RenderQuadrature(frequency float32, out, outQ []float32) {
	s.render(modeQuadrature, frequency, 1, out, outQ)
}

func (s *Sine) render(m mode, frequency, amplitude float32, out, outQ []float32) {
	if frequency >= MaxFrequency {
		frequency = MaxFrequency
		amplitude = 0
	}
	if frequency < 0 {
		frequency = 0
	}

	epsilon := shape.NewInterpolator(&s.epsilon, Fast2Sin(frequency), len(out))
	am := shape.NewInterpolator(&s.amplitude, amplitude, len(out))

	x, y := s.x, s.y
	if norm := x*x + y*y; norm <= minNorm || norm >= maxNorm {
		scale := InvSqrt(norm)
		x *= scale
		y *= scale
	}

	for i := range out {
		e := epsilon.Next()
		x += e * y
		y -= e * x
		switch m {
		case modeUnit:
			out[i] = x
		case modeScaled:
			out[i] = am.Next() * x
		case modeAdditive:
			out[i] += am.Next() * x
		case modeQuadrature:
			out[i] = x
			outQ[i] = y
		}
	}
	s.x, s.y = x, y
}
