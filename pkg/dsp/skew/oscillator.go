// Package skew implements a multi-waveform oscillator where a single skew
// control warps each shape continuously: duty cycle, saturation, sigmoid bend
// or phase-modulation depth depending on the selected waveform.
package skew

import (
	"github.com/chewxy/math32"

	"github.com/norasector/phasewave/pkg/dsp/phasor"
	"github.com/norasector/phasewave/pkg/dsp/wavetable"
)

const (
	defaultFrequency = 55.0

	maxSkew float32 = 0.99
)

// Oscillator renders one of the skewable waveforms from a single phasor.
type Oscillator struct {
	phasor     phasor.Phasor
	waveform   Waveform
	sampleRate float64

	frequency float64
	amplitude float32
	skew      float32

	// phase is the register the stateless shapes read; it holds the phase
	// of the sample being rendered.
	phase float32
	// lastOut is the leaky integrator state of the PolyBLEP triangle and
	// shark shapes.
	lastOut float32
}

// New returns a 55 Hz unit-amplitude sine oscillator.
func New(sampleRate float64) *Oscillator {
	o := &Oscillator{}
	o.Init(sampleRate)
	return o
}

// Init resets every parameter and all state.
func (o *Oscillator) Init(sampleRate float64) {
	o.sampleRate = sampleRate
	o.frequency = defaultFrequency
	o.amplitude = 1
	o.skew = 0
	o.phase = 0
	o.lastOut = 0
	o.waveform = Sine
	o.phasor.Init(sampleRate, o.frequency, 0)
	wavetable.Table()
}

// Process renders one sample.
func (o *Oscillator) Process() float32 {
	phase := o.phasor.Process()
	phaseInc := float32(o.phasor.Increment())
	skew := o.skew

	o.phase = phase

	var out float32
	switch o.waveform {
	case Sine:
		out = SineShape(phase, skew)
	case SinePM:
		out = SinePMShape(phase, skew)
	case SineSigmoid:
		out = SineSigmoidShape(phase, skew)
	case SineSigmoidPM:
		out = SineSigmoidPMShape(phase, skew)
	case SineSquare:
		out = SineSquareShape(phase, skew)
	case TriSquare:
		out = TriSquareShape(phase, skew)
	case TriSaw:
		out = TriSawShape(phase, skew)
	case RampSigmoid:
		out = RampSigmoidShape(phase, skew)
	case SquarePWMPolyBLEP:
		out = SquarePWMPolyBLEPShape(phase, skew, phaseInc)
	case TrianglePWMPolyBLEP:
		out = o.trianglePWMPolyBLEP(phase, skew, phaseInc)
	case SharkPWMPolyBLEP:
		out = o.sharkPWMPolyBLEP(phase, skew, phaseInc)
	case SquarePWM:
		// o.phase already holds this sample's phase.
		out = SquarePWMShape(o.phase, skew)
	}

	return out * o.amplitude
}

// leak runs the one-pole integrator whose coefficient is the phase
// increment, so the corner frequency tracks pitch. The coefficient is capped
// at 1; above sampleRate/2pi the filter would otherwise go unstable.
func (o *Oscillator) leak(in, phaseInc float32) float32 {
	a := phaseInc
	if a > 1 {
		a = 1
	}
	out := a*in + (1-a)*o.lastOut
	o.lastOut = out
	return out
}

func (o *Oscillator) trianglePWMPolyBLEP(phase, skew, phaseInc float32) float32 {
	rise, _, riseInc, fallDec := riseFall(skew)

	var out float32
	if phase < rise {
		out = -1 + PolyBLEP(riseInc, phase)
	} else {
		out = 1 - PolyBLEP(fallDec, math32.Mod(phase-rise, 1))
	}
	return o.leak(out, phaseInc)
}

func (o *Oscillator) sharkPWMPolyBLEP(phase, skew, phaseInc float32) float32 {
	rise, _, riseInc, fallDec := riseFall(skew)

	out := float32(-1)
	if phase < rise {
		out = 1
	}
	out += PolyBLEP(riseInc, phase)
	// The falling edge is corrected at a fixed half-cycle position, which
	// gives the fin its shape.
	out -= PolyBLEP(fallDec, 0.5)
	return o.leak(out, phaseInc)
}

// SetWaveform selects the shape; unknown values fall back to Sine.
func (o *Oscillator) SetWaveform(w Waveform) {
	if !w.Valid() {
		w = Sine
	}
	o.waveform = w
}

// Waveform returns the selected shape.
func (o *Oscillator) Waveform() Waveform { return o.waveform }

// SetFreq sets the frequency in Hz, clamped to [0, sampleRate/2].
func (o *Oscillator) SetFreq(freq float64) {
	if freq < 0 {
		freq = 0
	}
	if nyquist := o.sampleRate / 2; freq > nyquist {
		freq = nyquist
	}
	o.frequency = freq
	o.phasor.SetFreq(freq)
}

// Frequency returns the frequency in Hz.
func (o *Oscillator) Frequency() float64 { return o.frequency }

// SetPhase hard-syncs the oscillator to phase, clamped to [0, 1]. A full
// turn lands on phase 0.
func (o *Oscillator) SetPhase(phase float32) {
	if phase < 0 {
		phase = 0
	}
	if phase > 1 {
		phase = 1
	}
	o.phasor.Reset(float64(phase))
	o.phase = float32(o.phasor.Phase())
}

// Phase returns the phase of the last rendered sample.
func (o *Oscillator) Phase() float32 { return o.phase }

// SetSkew sets skew, clamped to [-0.99, 0.99].
func (o *Oscillator) SetSkew(skew float32) {
	if skew < -maxSkew {
		skew = -maxSkew
	}
	if skew > maxSkew {
		skew = maxSkew
	}
	o.skew = skew
}

// Skew returns the clamped skew.
func (o *Oscillator) Skew() float32 { return o.skew }

// SetAmp sets the output gain, clamped to [-1, 1].
func (o *Oscillator) SetAmp(amp float32) {
	if amp < -1 {
		amp = -1
	}
	if amp > 1 {
		amp = 1
	}
	o.amplitude = amp
}

// Amplitude returns the clamped output gain.
func (o *Oscillator) Amplitude() float32 { return o.amplitude }

// Reset clears the integrator state. A hard reset also returns the phase to
// zero; a soft one keeps the oscillator running in phase.
func (o *Oscillator) Reset(hard bool) {
	o.lastOut = 0
	if hard {
		o.phase = 0
		o.phasor.Reset(0)
	}
}

// IsEOC is true on the sample where the phase wrapped.
func (o *Oscillator) IsEOC() bool { return o.phasor.IsEOC() }

// WorkBuffer renders len(output) samples.
func (o *Oscillator) WorkBuffer(output []float32) int {
	for i := range output {
		output[i] = o.Process()
	}
	return len(output)
}
