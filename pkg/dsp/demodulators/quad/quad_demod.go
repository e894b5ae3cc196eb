// Package quad recovers instantaneous frequency from a quadrature pair.
package quad

import (
	"math"

	"github.com/racerxdl/segdsp/dsp"
)

// QuadDemod outputs gain times the phase step between consecutive complex
// samples. With gain sampleRate/2pi the output is in Hz.
type QuadDemod struct {
	gain    float32
	history []complex64
}

func MakeQuadDemod(gain float32) *QuadDemod {
	return &QuadDemod{
		gain:    gain,
		history: make([]complex64, 1),
	}
}

// MakeFrequencyDemod returns a demodulator scaled to Hz.
func MakeFrequencyDemod(sampleRate float64) *QuadDemod {
	return MakeQuadDemod(float32(sampleRate / (2 * math.Pi)))
}

func (f *QuadDemod) WorkBuffer(input []complex64, output []float32) int {
	var samples = append(f.history, input...)
	var tmp = dsp.MultiplyConjugate(samples[1:], samples, len(input))

	for i := 0; i < len(input); i++ {
		output[i] = f.gain * float32(math.Atan2(float64(imag(tmp[i])), float64(real(tmp[i]))))
	}

	f.history = append(f.history[:0], samples[len(samples)-1])
	return len(input)
}

func (f *QuadDemod) PredictOutputSize(inputLength int) int {
	return inputLength
}

// Tracker estimates the frequency of a rotating pair given as separate
// real and imaginary blocks, averaged over each block.
type Tracker struct {
	demod   *QuadDemod
	pairs   []complex64
	freqs   []float32
	primed  bool
	lastEst float64
}

func NewTracker(sampleRate float64) *Tracker {
	return &Tracker{demod: MakeFrequencyDemod(sampleRate)}
}

// Track consumes one block and returns the mean absolute frequency in Hz.
// The first sample ever seen has no predecessor and is skipped.
func (t *Tracker) Track(re, im []float32) float64 {
	n := len(re)
	if len(im) < n {
		n = len(im)
	}
	if n == 0 {
		return t.lastEst
	}
	if cap(t.pairs) < n {
		t.pairs = make([]complex64, n)
		t.freqs = make([]float32, n)
	}
	pairs, freqs := t.pairs[:n], t.freqs[:n]
	for i := 0; i < n; i++ {
		pairs[i] = complex(re[i], im[i])
	}
	t.demod.WorkBuffer(pairs, freqs)

	start := 0
	if !t.primed {
		start = 1
		t.primed = true
	}
	if start >= n {
		return t.lastEst
	}
	var sum float64
	for _, f := range freqs[start:] {
		sum += math.Abs(float64(f))
	}
	t.lastEst = sum / float64(n-start)
	return t.lastEst
}
