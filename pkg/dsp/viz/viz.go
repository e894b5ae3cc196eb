// Package viz renders live PNG plots of processor stages and serves them
// over HTTP.
package viz

import (
	"bytes"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

type PlotOptions func(p *plot.Plot)

// WithYRange fixes the vertical axis.
func WithYRange(min, max float64) PlotOptions {
	return func(p *plot.Plot) {
		p.Y.Min = min
		p.Y.Max = max
	}
}

// WithXRange fixes the horizontal axis.
func WithXRange(min, max float64) PlotOptions {
	return func(p *plot.Plot) {
		p.X.Min = min
		p.X.Max = max
	}
}

func plotWithDefaults() *plot.Plot {

	p := plot.New()
	p.BackgroundColor = color.Black
	p.Title.TextStyle.Color = color.White
	p.Y.Label.TextStyle.Color = color.White
	p.Y.Color = color.White
	p.X.Label.TextStyle.Color = color.White
	p.X.Color = color.White
	p.Legend.TextStyle.Color = color.White
	p.X.Tick.Color = color.White
	p.Y.Tick.Color = color.White
	p.X.Tick.Label.Color = color.White
	p.Y.Tick.Label.Color = color.White

	return p
}

func renderPNG(name string, p *plot.Plot) (*ImageContainer, error) {
	var imageData bytes.Buffer
	w, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	if _, err := w.WriteTo(&imageData); err != nil {
		return nil, err
	}
	return &ImageContainer{name: name, data: imageData.Bytes()}, nil
}
