package wavetable

import (
	"github.com/norasector/phasewave/pkg/dsp/shape"
)

// maxFrequency is Nyquist in normalized (cycles per sample) units.
const maxFrequency float32 = 0.5

// SineOscillator is a table-driven sine with its own phase. Frequencies are
// normalized: cycles per sample, so 0.5 is Nyquist.
type SineOscillator struct {
	phase     float32
	frequency float32
	amplitude float32
}

// NewSineOscillator returns a silent oscillator at phase zero.
func NewSineOscillator() *SineOscillator {
	return &SineOscillator{}
}

func clampFrequency(freq float32) float32 {
	if freq < 0 {
		return 0
	}
	if freq >= maxFrequency {
		return maxFrequency
	}
	return freq
}

// SetFreq sets the normalized frequency, clamped to [0, Nyquist].
func (o *SineOscillator) SetFreq(freq float32) {
	freq = clampFrequency(freq)
	o.frequency = freq
}

// SetPhase sets the phase, clamped to [0, 1].
func (o *SineOscillator) SetPhase(phase float32) {
	if phase < 0 {
		phase = 0
	}
	if phase > 1 {
		phase = 1
	}
	o.phase = phase
}

// SetAmp sets the amplitude the next Render ramps from.
func (o *SineOscillator) SetAmp(amp float32) {
	o.amplitude = amp
}

// Frequency returns the normalized frequency last rendered or set.
func (o *SineOscillator) Frequency() float32 { return o.frequency }

// Amplitude returns the amplitude last rendered or set.
func (o *SineOscillator) Amplitude() float32 { return o.amplitude }

// Phase returns the current phase in cycles.
func (o *SineOscillator) Phase() float32 { return o.phase }

// Next advances one sample and returns the sine and cosine outputs.
func (o *SineOscillator) Next(freq, amp float32) (sin, cos float32) {
	freq = clampFrequency(freq)
	o.phase += freq
	if o.phase >= 1 {
		o.phase -= 1
	}
	return amp * SineNoWrap(o.phase), amp * SineNoWrap(o.phase+0.25)
}

// Render adds the oscillator into out, ramping frequency and amplitude from
// their previous values to the new targets across the block.
func (o *SineOscillator) Render(freq, amp float32, out []float32) {
	o.render(freq, amp, out, true)
}

// RenderUnit overwrites out with a unit-amplitude sine, ramping frequency
// only.
func (o *SineOscillator) RenderUnit(freq float32, out []float32) {
	o.render(freq, 1, out, false)
}

func (o *SineOscillator) render(freq, amp float32, out []float32, additive bool) {
	freq = clampFrequency(freq)
	fm := shape.NewInterpolator(&o.frequency, freq, len(out))
	am := shape.NewInterpolator(&o.amplitude, amp, len(out))

	for i := range out {
		o.phase += fm.Next()
		if o.phase >= 1 {
			o.phase -= 1
		}
		s := SineNoWrap(o.phase)
		if additive {
			out[i] += am.Next() * s
		} else {
			out[i] = s
		}
	}
}

// WorkBuffer renders the current frequency and amplitude into output so the
// oscillator can head a processing chain.
func (o *SineOscillator) WorkBuffer(output []float32) int {
	for i := range output {
		output[i] = 0
	}
	o.Render(o.frequency, o.amplitude, output)
	return len(output)
}
