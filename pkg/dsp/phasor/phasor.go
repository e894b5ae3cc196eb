// Package phasor implements the wrapping phase accumulator every oscillator
// in this module is driven by.
package phasor

import (
	"math"
)

const (
	tau float64 = math.Pi * 2

	// wrapEpsilon lets an exact-integer period wrap on its last sample
	// despite accumulated rounding in the increment.
	wrapEpsilon float64 = 1e-9
)

// Phasor accumulates phase in radians at a frequency-derived increment and
// reports the sample on which it wraps.
type Phasor struct {
	sampleRate float64
	srRecip    float64
	frequency  float64
	phase      float64
	increment  float64
	eoc        bool
}

// New returns a Phasor at freq Hz starting at initialPhase (0..1 of a cycle).
func New(sampleRate, freq, initialPhase float64) *Phasor {
	p := &Phasor{}
	p.Init(sampleRate, freq, initialPhase)
	return p
}

// Init (re)initializes the phasor in place, for embedding by value.
func (p *Phasor) Init(sampleRate, freq, initialPhase float64) {
	p.sampleRate = sampleRate
	p.srRecip = 1 / sampleRate
	p.phase = fold(initialPhase) * tau
	p.eoc = false
	p.SetFreq(freq)
}

// SetFreq recomputes the increment. No clamping is done here: callers that
// care about Nyquist clamp at the call site.
func (p *Phasor) SetFreq(freq float64) {
	p.frequency = freq
	p.increment = (tau * freq) * p.srRecip
}

// Process returns the current phase normalized to [0, 1) and then advances.
func (p *Phasor) Process() float32 {
	out := float32(p.phase / tau)
	// A phase just short of the wrap threshold rounds up to 1 in float32.
	if out >= 1 {
		out = 0
	}

	p.phase += p.increment
	p.eoc = false

	if p.phase >= tau-wrapEpsilon {
		p.phase -= tau
		p.eoc = true
	}
	if p.phase < 0 {
		p.phase = 0
	}
	return out
}

// AddPhase offsets the phase by delta cycles (1.0 is a full turn). Used for
// phase modulation outside the sine table's own PM path.
func (p *Phasor) AddPhase(delta float64) {
	p.phase = fold(p.phase/tau+delta) * tau
}

// Reset hard-syncs the phase to the given fraction of a cycle. Whole turns
// are discarded, so Reset(1) is Reset(0).
func (p *Phasor) Reset(phase float64) {
	p.phase = fold(phase) * tau
}

// fold maps x onto [0, 1).
func fold(x float64) float64 {
	x -= math.Floor(x)
	if x >= 1 {
		x = 0
	}
	return x
}

// IsEOC is true only for the sample on which the last Process wrapped.
func (p *Phasor) IsEOC() bool { return p.eoc }

// Frequency returns the frequency in Hz.
func (p *Phasor) Frequency() float64 { return p.frequency }

// Increment returns the per-sample phase advance in radians.
func (p *Phasor) Increment() float64 { return p.increment }

// Phase returns the current phase normalized to [0, 1).
func (p *Phasor) Phase() float64 { return p.phase / tau }

// SampleRate returns the rate the phasor was initialized with.
func (p *Phasor) SampleRate() float64 { return p.sampleRate }

// WorkBuffer fills output with the normalized phase ramp. Input is ignored;
// the phasor is a source block.
func (p *Phasor) WorkBuffer(output []float32) int {
	for i := range output {
		output[i] = p.Process()
	}
	return len(output)
}
