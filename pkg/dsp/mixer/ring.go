// Package mixer multiplies a signal with an internal carrier.
package mixer

import (
	"github.com/norasector/phasewave/pkg/dsp/phasor"
	"github.com/norasector/phasewave/pkg/dsp/wavetable"
)

// RingModulator multiplies its input by a table sine. Depth crossfades
// between the dry input (0) and full ring modulation (1).
type RingModulator struct {
	carrier phasor.Phasor
	depth   float32
}

func NewRingModulator(sampleRate, frequency float64, depth float32) *RingModulator {
	r := &RingModulator{}
	r.carrier.Init(sampleRate, frequency, 0)
	r.SetDepth(depth)
	wavetable.Table()
	return r
}

// SetFrequency retunes the carrier.
func (r *RingModulator) SetFrequency(freq float64) {
	r.carrier.SetFreq(freq)
}

// SetDepth sets the wet amount, clamped to [0, 1].
func (r *RingModulator) SetDepth(depth float32) {
	if depth < 0 {
		depth = 0
	}
	if depth > 1 {
		depth = 1
	}
	r.depth = depth
}

func (r *RingModulator) WorkBuffer(input []float32, output []float32) int {
	dry := 1 - r.depth
	for i := 0; i < len(input); i++ {
		c := wavetable.Sine(r.carrier.Process())
		output[i] = input[i] * (dry + r.depth*c)
	}
	return len(input)
}

func (r *RingModulator) PredictOutputSize(inputSize int) int {
	return inputSize
}
