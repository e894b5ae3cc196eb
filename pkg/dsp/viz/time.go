package viz

import (
	"sync"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
)

type PlotType int

const (
	PlotTypeDefault PlotType = iota
	PlotTypeScatter
	PlotTypeLines
)

// TimeDomainPlotter keeps the most recent size samples of a stage.
type TimeDomainPlotter struct {
	mu          sync.Mutex
	bufFloat    []float32
	size        int
	name        string
	plotFunc    func(*plot.Plot, ...interface{}) error
	plotOptions []PlotOptions
}

func NewTimeDomainPlotter(name string, size int) *TimeDomainPlotter {
	return &TimeDomainPlotter{
		bufFloat: make([]float32, 0, size),
		size:     size,
		name:     name,
		plotFunc: plotutil.AddScatters,
	}
}

func (t *TimeDomainPlotter) Name() string {
	return t.name
}

func (t *TimeDomainPlotter) SetPlotType(tp PlotType) {
	switch tp {
	case PlotTypeLines:
		t.plotFunc = plotutil.AddLines
	default:
		t.plotFunc = plotutil.AddScatters
	}
}

func (tp *TimeDomainPlotter) AppendFloat(f []float32) {
	tp.mu.Lock()
	tp.bufFloat = append(tp.bufFloat, f...)
	if len(tp.bufFloat) > tp.size {
		tp.bufFloat = append(tp.bufFloat[:0], tp.bufFloat[len(tp.bufFloat)-tp.size:]...)
	}
	tp.mu.Unlock()
}

// Samples returns a copy of the buffered window.
func (tp *TimeDomainPlotter) Samples() []float32 {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	ret := make([]float32, len(tp.bufFloat))
	copy(ret, tp.bufFloat)
	return ret
}

func (tp *TimeDomainPlotter) AddPlotOption(opt PlotOptions) {
	tp.plotOptions = append(tp.plotOptions, opt)
}

// GetImage returns nil until a full window has been collected.
func (tp *TimeDomainPlotter) GetImage() *ImageContainer {
	samples := tp.Samples()
	if len(samples) < tp.size {
		return nil
	}

	p := plotWithDefaults()

	p.Title.Text = tp.name
	p.Y.Label.Text = "Amplitude"
	p.Y.Min = -1.5
	p.Y.Max = 1.5
	p.X.Label.Text = "n"

	for _, opt := range tp.plotOptions {
		opt(p)
	}

	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(samples))
	for i, s := range samples {
		xys[i] = plotter.XY{X: float64(i), Y: float64(s)}
	}
	if err := tp.plotFunc(p, "x[n]", xys); err != nil {
		log.Warn().Err(err).Str("plot", tp.name).Msg("error adding samples")
		return nil
	}

	img, err := renderPNG(tp.name, p)
	if err != nil {
		log.Warn().Err(err).Str("plot", tp.name).Msg("error rendering plot")
		return nil
	}
	return img
}
