package processor

import "github.com/norasector/phasewave/pkg/dsp/viz"

// Source generates samples with no input, e.g. an oscillator.
type Source interface {
	WorkBuffer(output []float32) int
}

// FFWorker is a float in, float out stage. PredictOutputSize bounds the
// output length for a given input length; resamplers change it.
type FFWorker interface {
	WorkBuffer([]float32, []float32) int
	PredictOutputSize(int) int
}

type DSPWorker struct {
	Name        string
	DisplayName string
	InputRate   int
	OutputRate  int

	ffWorker      FFWorker
	fOutputBuffer []float32

	fft        *viz.FFTPlotter
	timeDomain *viz.TimeDomainPlotter
	vizSize    int
	plotType   viz.PlotType
	floatFFT   bool

	plotOptions []viz.PlotOptions
}

type DSPWorkerOption func(r *DSPWorker)

func WithPlotOptions(opts []viz.PlotOptions) DSPWorkerOption {
	return func(r *DSPWorker) {
		r.plotOptions = append(r.plotOptions, opts...)
	}
}

func WithVizLength(length int) DSPWorkerOption {
	return func(r *DSPWorker) {
		r.vizSize = length
	}
}

func WithPlotType(plotType viz.PlotType) DSPWorkerOption {
	return func(r *DSPWorker) {
		r.plotType = plotType
	}
}

// WithFloatFFTPlot adds a spectrum plot of the stage output next to its
// time-domain plot.
func WithFloatFFTPlot() DSPWorkerOption {
	return func(r *DSPWorker) {
		r.floatFFT = true
	}
}

func NewDSPWorkerFF(name, displayName string, inputRate, outputRate int, worker FFWorker, opts ...DSPWorkerOption) *DSPWorker {
	ret := &DSPWorker{
		Name:        name,
		DisplayName: displayName,
		InputRate:   inputRate,
		OutputRate:  outputRate,
		ffWorker:    worker,
	}

	for _, opt := range opts {
		opt(ret)
	}

	return ret
}

// Worker returns the wrapped stage.
func (w *DSPWorker) Worker() FFWorker {
	return w.ffWorker
}
