package synth

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/norasector/phasewave/pkg/dsp/demodulators/quad"
	"github.com/norasector/phasewave/pkg/dsp/fm"
	"github.com/norasector/phasewave/pkg/dsp/processor"
	"github.com/norasector/phasewave/pkg/dsp/recurrence"
	"github.com/norasector/phasewave/pkg/dsp/shape"
	"github.com/norasector/phasewave/pkg/dsp/skew"
	"github.com/norasector/phasewave/pkg/dsp/wavetable"
	"github.com/norasector/phasewave/pkg/synth/config"
)

// generator is the oscillator at the head of a channel. apply is only
// called from the render goroutine, between blocks.
type generator interface {
	processor.Source
	apply(p Parameters)
	frequency() float64
}

func newGenerator(ch config.Channel, sampleRate float64) (generator, error) {
	var g generator
	switch ch.Kind {
	case config.KindSkew:
		g = &skewGenerator{osc: skew.New(sampleRate)}
	case config.KindFM:
		g = &fmGenerator{voice: fm.New(sampleRate), noise: &uniformNoise{distuv.Uniform{Min: -1, Max: 1}}}
	case config.KindSine:
		g = &sineGenerator{osc: wavetable.NewSineOscillator(), sampleRate: sampleRate}
	case config.KindRecurrence:
		g = &recurrenceGenerator{
			osc:        recurrence.New(),
			sampleRate: sampleRate,
			tracker:    quad.NewTracker(sampleRate),
		}
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownKind, ch.Kind)
	}
	g.apply(initialParameters(ch))
	return g, nil
}

func initialParameters(ch config.Channel) Parameters {
	p := Parameters{
		Frequency: floatPtr(ch.Frequency),
		Phase:     floatPtr(ch.Phase),
		Skew:      floatPtr(ch.Skew),
		Ratio:     floatPtr(ch.Ratio),
		Fine:      floatPtr(ch.Fine),
		Feedback:  floatPtr(ch.Feedback),
		ModLevel:  floatPtr(ch.ModLevel),
		Noise:     floatPtr(ch.Noise),
	}
	if ch.Amplitude != nil {
		p.Amplitude = floatPtr(*ch.Amplitude)
	}
	if ch.ModEnvelope != nil {
		p.ModEnvelope = floatPtr(*ch.ModEnvelope)
	}
	w := ch.Waveform
	p.Waveform = &w
	return p
}

type skewGenerator struct {
	osc *skew.Oscillator
}

func (g *skewGenerator) WorkBuffer(output []float32) int {
	return g.osc.WorkBuffer(output)
}

func (g *skewGenerator) frequency() float64 { return g.osc.Frequency() }

func (g *skewGenerator) apply(p Parameters) {
	if p.Waveform != nil {
		g.osc.SetWaveform(*p.Waveform)
	}
	if p.Frequency != nil {
		g.osc.SetFreq(*p.Frequency)
	}
	if p.Amplitude != nil {
		g.osc.SetAmp(float32(*p.Amplitude))
	}
	if p.Skew != nil {
		g.osc.SetSkew(float32(*p.Skew))
	}
	if p.Phase != nil {
		g.osc.SetPhase(float32(*p.Phase))
	}
	switch p.Trigger {
	case TriggerSoft:
		g.osc.Reset(false)
	case TriggerHard:
		g.osc.Reset(true)
	}
}

// uniformNoise feeds the FM voice's noise input.
type uniformNoise struct {
	dist distuv.Uniform
}

func (n *uniformNoise) Process() float32 {
	return float32(n.dist.Rand())
}

type fmGenerator struct {
	voice *fm.Voice
	noise fm.Modulator
}

func (g *fmGenerator) WorkBuffer(output []float32) int {
	return g.voice.WorkBuffer(output)
}

func (g *fmGenerator) frequency() float64 { return float64(g.voice.Frequency()) }

// envelopeCurve bends a linear 0..1 envelope level onto a soft knee that
// keeps 0.5 and 1 fixed and pulls low levels down.
func envelopeCurve(level float32) float32 {
	if level <= 0 {
		return 0
	}
	if level >= 1 {
		return 1
	}
	return shape.Curve(level)
}

func (g *fmGenerator) apply(p Parameters) {
	v := g.voice
	if p.Frequency != nil {
		v.SetFreq(float32(*p.Frequency))
	}
	if p.Ratio != nil {
		v.SetRatio(float32(*p.Ratio))
	}
	if p.Fine != nil {
		v.SetFine(float32(*p.Fine))
	}
	if p.Feedback != nil {
		v.SetFeedback(float32(*p.Feedback))
	}
	if p.ModLevel != nil {
		v.SetModLevel(float32(*p.ModLevel))
	}
	if p.ModEnvelope != nil {
		v.SetModEnvelope(envelopeCurve(float32(*p.ModEnvelope)))
	}
	if p.Phase != nil {
		v.SetPhase(float32(*p.Phase))
	}
	if p.Amplitude != nil {
		v.SetAmp(float32(*p.Amplitude))
	}
	if p.Noise != nil {
		if *p.Noise == 0 {
			v.SetNoise(nil, 0)
		} else {
			v.SetNoise(g.noise, float32(*p.Noise))
		}
	}
	switch p.Trigger {
	case TriggerSoft:
		v.Trigger(false)
	case TriggerHard:
		v.Trigger(true)
	}
}

// sineGenerator works in Hz; the table oscillator takes cycles per sample.
// Amplitude changes ramp over one block.
type sineGenerator struct {
	osc        *wavetable.SineOscillator
	sampleRate float64
	freq       float64
	amplitude  float32
}

func (g *sineGenerator) WorkBuffer(output []float32) int {
	for i := range output {
		output[i] = 0
	}
	g.osc.Render(float32(g.freq/g.sampleRate), g.amplitude, output)
	return len(output)
}

func (g *sineGenerator) frequency() float64 { return g.freq }

func (g *sineGenerator) apply(p Parameters) {
	if p.Frequency != nil {
		g.freq = *p.Frequency
		g.osc.SetFreq(float32(g.freq / g.sampleRate))
		g.freq = float64(g.osc.Frequency()) * g.sampleRate
	}
	if p.Amplitude != nil {
		g.amplitude = float32(*p.Amplitude)
	}
	if p.Phase != nil {
		g.osc.SetPhase(float32(*p.Phase))
	}
	if p.Trigger == TriggerHard {
		g.osc.SetPhase(0)
	}
}

// recurrenceGenerator renders the quadrature pair so the frequency actually
// produced by the recurrence can be measured.
type recurrenceGenerator struct {
	osc        *recurrence.Sine
	sampleRate float64
	freq       float64

	amplitude float32
	target    float32
	quad      []float32

	tracker *quad.Tracker
	tracked float64
}

func (g *recurrenceGenerator) WorkBuffer(output []float32) int {
	if cap(g.quad) < len(output) {
		g.quad = make([]float32, len(output))
	}
	q := g.quad[:len(output)]

	norm := float32(g.freq / g.sampleRate)
	g.osc.RenderQuadrature(norm, output, q)
	g.tracked = g.tracker.Track(output, q)

	target := g.target
	if norm >= recurrence.MaxFrequency {
		target = 0
	}
	am := shape.NewInterpolator(&g.amplitude, target, len(output))
	for i := range output {
		output[i] *= am.Next()
	}
	return len(output)
}

func (g *recurrenceGenerator) frequency() float64 { return g.freq }

// trackedFrequency is the mean absolute frequency of the last block.
func (g *recurrenceGenerator) trackedFrequency() float64 { return g.tracked }

func (g *recurrenceGenerator) apply(p Parameters) {
	if p.Frequency != nil {
		f := *p.Frequency
		if f < 0 {
			f = 0
		}
		g.freq = f
	}
	if p.Amplitude != nil {
		g.target = float32(*p.Amplitude)
	}
	if p.Trigger == TriggerHard {
		g.osc.Init()
	}
}
