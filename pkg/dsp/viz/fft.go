package viz

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"

	"github.com/norasector/phasewave/pkg/dsp/filters/fir"
)

// MixAverage is the smoothing factor applied to successive spectra.
const MixAverage = 0.10

// FFTPlotter draws a smoothed magnitude spectrum of the most recent len
// samples.
type FFTPlotter struct {
	mu           sync.Mutex
	bufFloat     []float32
	sampleRate   int
	len          int
	averagePower []float64
	name         string
	plotOptions  []PlotOptions
	fft          *fourier.FFT
	window       []float32
}

func NewFFTPlotterFloat(name string, len, sampleRate int) *FFTPlotter {
	return &FFTPlotter{
		bufFloat:     make([]float32, len),
		averagePower: make([]float64, len/2+1),
		len:          len,
		sampleRate:   sampleRate,
		name:         name,
		fft:          fourier.NewFFT(len),
		window:       fir.BlackmanWindow(len),
	}
}

func (f *FFTPlotter) Name() string {
	return f.name
}

func (p *FFTPlotter) AppendFloat(s []float32) {
	p.mu.Lock()
	if len(s) >= p.len {
		copy(p.bufFloat, s[len(s)-p.len:])
	} else {
		copy(p.bufFloat, p.bufFloat[len(s):])
		copy(p.bufFloat[p.len-len(s):], s)
	}
	p.mu.Unlock()
}

func (pb *FFTPlotter) AddPlotOption(opt PlotOptions) {
	pb.plotOptions = append(pb.plotOptions, opt)
}

// Spectrum updates the running average with the current window and returns
// the frequency and level in dB of every bin up to Nyquist.
func (pb *FFTPlotter) Spectrum() plotter.XYs {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	data := make([]float64, pb.len)
	var gain float64
	for i, s := range pb.bufFloat {
		data[i] = float64(s) * float64(pb.window[i])
		gain += float64(pb.window[i])
	}
	if gain == 0 {
		gain = 1
	}

	coeffs := pb.fft.Coefficients(nil, data)
	ret := make(plotter.XYs, len(coeffs))
	for i, c := range coeffs {
		mag := 2 * cmplx.Abs(c) / gain
		pb.averagePower[i] = (1-MixAverage)*pb.averagePower[i] + MixAverage*mag

		level := pb.averagePower[i]
		if level < 1e-10 {
			level = 1e-10
		}
		ret[i] = plotter.XY{
			X: pb.fft.Freq(i) * float64(pb.sampleRate),
			Y: 20 * math.Log10(level),
		}
	}
	return ret
}

func (pb *FFTPlotter) GetImage() *ImageContainer {
	p := plotWithDefaults()
	p.Title.Text = pb.name
	p.Y.Label.Text = "Power (dB)"
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Max = 0
	p.Y.Min = -120

	for _, opt := range pb.plotOptions {
		opt(p)
	}

	p.Add(plotter.NewGrid())

	if err := plotutil.AddLines(p, "spectrum", pb.Spectrum()); err != nil {
		log.Warn().Err(err).Str("plot", pb.name).Msg("error adding spectrum")
		return nil
	}

	img, err := renderPNG(pb.name, p)
	if err != nil {
		log.Warn().Err(err).Str("plot", pb.name).Msg("error rendering plot")
		return nil
	}
	return img
}
