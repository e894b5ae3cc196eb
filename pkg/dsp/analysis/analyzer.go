package analysis

import (
	"sync"

	"github.com/norasector/phasewave/pkg/dsp/viz"
)

// DefaultWindow is the number of samples pitch is estimated over.
const DefaultWindow = 4096

// Analyzer is a pass-through stage that keeps level and pitch statistics
// of the signal flowing through it.
type Analyzer struct {
	sampleRate int
	window     []float32
	filled     int

	mu    sync.Mutex
	stats Stats

	inputPlotter *viz.FFTPlotter
}

// NewAnalyzer measures pitch over the last windowSize samples.
func NewAnalyzer(sampleRate, windowSize int) *Analyzer {
	if windowSize <= 0 {
		windowSize = DefaultWindow
	}
	return &Analyzer{
		sampleRate: sampleRate,
		window:     make([]float32, windowSize),
	}
}

// SetInputPlotter attaches a spectrum plot fed with every block.
func (a *Analyzer) SetInputPlotter(p *viz.FFTPlotter) {
	a.inputPlotter = p
}

func (a *Analyzer) WorkBuffer(input, output []float32) int {
	copy(output, input)

	if a.inputPlotter != nil {
		a.inputPlotter.AppendFloat(input)
	}

	size := len(a.window)
	if len(input) >= size {
		copy(a.window, input[len(input)-size:])
	} else {
		copy(a.window, a.window[len(input):])
		copy(a.window[size-len(input):], input)
	}
	a.filled += len(input)

	peak, rms := Level(input)
	stats := Stats{Peak: peak, RMS: rms}
	if a.filled >= size {
		stats.DominantFrequency = DominantFrequency(a.window, a.sampleRate)
	}

	a.mu.Lock()
	a.stats = stats
	a.mu.Unlock()

	return len(input)
}

func (a *Analyzer) PredictOutputSize(inputSize int) int {
	return inputSize
}

// Stats returns the measurements of the latest block. DominantFrequency is
// 0 until a full window has passed.
func (a *Analyzer) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
