// Package fm implements a two-operator phase-modulation voice: two stacked
// modulators with self feedback driving a sine carrier.
package fm

import (
	"github.com/norasector/phasewave/pkg/dsp/phasor"
	"github.com/norasector/phasewave/pkg/dsp/shape"
	"github.com/norasector/phasewave/pkg/dsp/wavetable"
)

const (
	defaultFrequency float32 = 55
	defaultRatio     float32 = 2

	maxFeedback float32 = 0.99

	// dampingGain scales (0.5 - f/sampleRate)^4, which is 0 at Nyquist.
	dampingGain float32 = 20

	modulatorOffset float32 = 0.5
	carrierOffset   float32 = 0.25
)

// Modulator is any per-sample control source, such as a noise generator
// or another oscillator.
type Modulator interface {
	Process() float32
}

const (
	carrier = iota
	modulator1
	modulator2
	numOperators
)

type operator struct {
	phasor   phasor.Phasor
	feedback float32
}

// Voice is a fixed modulator2 -> modulator1 -> carrier chain. Only the
// carrier is heard.
type Voice struct {
	sampleRate float64
	srRecip    float32

	frequency   float32
	ratio       float32
	fine        float32
	phaseOffset float32
	feedback    float32
	modLevel    float32
	amplitude   float32

	modEnvelope float32
	noise       Modulator
	noiseLevel  float32

	trigger     bool
	hardTrigger bool

	ops [numOperators]operator
	eoc bool
}

// New returns a voice at 55 Hz, ratio 2, with modulation off.
func New(sampleRate float64) *Voice {
	v := &Voice{}
	v.Init(sampleRate)
	return v
}

// Init resets every parameter and all operator state.
func (v *Voice) Init(sampleRate float64) {
	v.sampleRate = sampleRate
	v.srRecip = float32(1 / sampleRate)

	v.frequency = defaultFrequency
	v.ratio = defaultRatio
	v.fine = 0
	v.phaseOffset = 0
	v.feedback = 0
	v.modLevel = 0
	v.amplitude = 1
	v.modEnvelope = 1
	v.noise = nil
	v.noiseLevel = 0
	v.trigger = false
	v.hardTrigger = false
	v.eoc = false

	modFreq := float64(v.frequency*v.ratio + v.fine)
	v.ops[carrier].phasor.Init(sampleRate, float64(v.frequency), 0)
	v.ops[modulator1].phasor.Init(sampleRate, modFreq, 0)
	v.ops[modulator2].phasor.Init(sampleRate, modFreq, 0)
	for i := range v.ops {
		v.ops[i].feedback = 0
	}
	wavetable.Table()
}

// damping is 0 at Nyquist and grows quartically toward DC. Operators above
// Nyquist get no modulation at all.
func (v *Voice) damping(freq float32) float32 {
	n := 0.5 - freq*v.srRecip
	if n < 0 {
		return 0
	}
	return dampingGain * shape.Pow4(n)
}

func (v *Voice) operator(op *operator, freq, ratio, fine, phaseMod, offset, fb float32, trig, hard bool) float32 {
	frequency := freq*ratio + fine
	op.phasor.SetFreq(float64(frequency))
	n := v.damping(frequency)

	if trig {
		op.feedback = 0
		if hard {
			op.phasor.Reset(0)
		}
	}
	last := op.feedback

	phase := op.phasor.Process()
	mod := offset + last*fb + phaseMod*n
	out := wavetable.SinePM(wavetable.FixedPhase(phase), mod)

	// Negative feedback goes through the square of the output, which gives
	// it a different character from positive feedback.
	switch {
	case fb > 0:
		op.feedback = (out*fb*n + last) * 0.5
	case fb < 0:
		op.feedback = (out*out*fb*n + last) * 0.5
	}
	return out
}

// Process renders one sample and consumes any pending trigger.
func (v *Voice) Process() float32 {
	trig, hard := v.trigger, v.hardTrigger
	v.trigger, v.hardTrigger = false, false

	var noise float32
	if v.noise != nil && v.noiseLevel != 0 {
		noise = v.noise.Process() * v.noiseLevel
	}
	env := v.modEnvelope
	offset := modulatorOffset + v.phaseOffset

	op2 := v.operator(&v.ops[modulator2], v.frequency, v.ratio, v.fine, noise, offset, v.feedback, trig, hard) * env
	op1 := v.operator(&v.ops[modulator1], v.frequency, v.ratio, v.fine, op2*v.modLevel*0.5+noise, offset, v.feedback, trig, hard) * env
	out := v.operator(&v.ops[carrier], v.frequency, 1, 0, op1*v.modLevel+noise, carrierOffset, 0, trig, hard)

	v.eoc = v.ops[carrier].phasor.IsEOC()
	return out * v.amplitude
}

// WorkBuffer renders len(output) samples.
func (v *Voice) WorkBuffer(output []float32) int {
	for i := range output {
		output[i] = v.Process()
	}
	return len(output)
}

// SetFreq sets the base frequency in Hz, clamped to [0, sampleRate/2].
func (v *Voice) SetFreq(freq float32) {
	if freq < 0 {
		freq = 0
	}
	if nyquist := float32(v.sampleRate / 2); freq > nyquist {
		freq = nyquist
	}
	v.frequency = freq
}

// SetRatio sets the modulator frequency ratio, clamped to >= 0.
func (v *Voice) SetRatio(ratio float32) {
	if ratio < 0 {
		ratio = 0
	}
	v.ratio = ratio
}

// SetFine sets the modulator offset in Hz, added after the ratio.
func (v *Voice) SetFine(fine float32) { v.fine = fine }

// SetFeedback sets modulator self feedback, clamped to [-0.99, 0.99].
func (v *Voice) SetFeedback(fb float32) {
	if fb < -maxFeedback {
		fb = -maxFeedback
	}
	if fb > maxFeedback {
		fb = maxFeedback
	}
	v.feedback = fb
}

// SetModLevel sets the modulation depth.
func (v *Voice) SetModLevel(level float32) { v.modLevel = level }

// SetPhase sets the modulators' phase offset in cycles, clamped to [0, 1].
func (v *Voice) SetPhase(phase float32) {
	if phase < 0 {
		phase = 0
	}
	if phase > 1 {
		phase = 1
	}
	v.phaseOffset = phase
}

// SetAmp sets the output gain.
func (v *Voice) SetAmp(amp float32) { v.amplitude = amp }

// SetModEnvelope scales both modulator outputs, clamped to [0, 1]. It is
// the hook for an envelope generator and defaults to 1.
func (v *Voice) SetModEnvelope(level float32) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	v.modEnvelope = level
}

// SetNoise adds source, scaled by level, to every operator's phase
// modulation. A nil source or zero level disables it.
func (v *Voice) SetNoise(source Modulator, level float32) {
	v.noise = source
	v.noiseLevel = level
}

// Trigger arms a retrigger for the next Process. Both kinds clear the
// feedback registers; a hard trigger also resets every phase to 0.
func (v *Voice) Trigger(hard bool) {
	v.trigger = true
	v.hardTrigger = v.hardTrigger || hard
}

// IsEOC is true on the sample where the carrier wrapped.
func (v *Voice) IsEOC() bool { return v.eoc }

func (v *Voice) Frequency() float32   { return v.frequency }
func (v *Voice) Ratio() float32       { return v.ratio }
func (v *Voice) Fine() float32        { return v.fine }
func (v *Voice) Feedback() float32    { return v.feedback }
func (v *Voice) ModLevel() float32    { return v.modLevel }
func (v *Voice) Phase() float32       { return v.phaseOffset }
func (v *Voice) Amplitude() float32   { return v.amplitude }
func (v *Voice) ModEnvelope() float32 { return v.modEnvelope }
