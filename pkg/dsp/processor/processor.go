package processor

import (
	"errors"
	"fmt"

	"github.com/norasector/turbine-common/types"

	"github.com/norasector/phasewave/pkg/dsp/viz"
	"github.com/norasector/phasewave/pkg/util"
)

const (
	defaultTimeVizLength = 128
	defaultFFTVizLength  = 1024
)

var ErrNoSource = errors.New("processor has no source")

// InputPlotter is implemented by stages that want a spectrum plot of what
// they receive.
type InputPlotter interface {
	SetInputPlotter(*viz.FFTPlotter)
}

// Processor pulls a block from its source and runs it through a chain of
// float stages.
type Processor struct {
	Name       string
	SourceName string
	SampleRate int

	source       Source
	sourceBuffer []float32
	blocks       []*DSPWorker
	vizServer    *viz.Server
	initialized  bool
	sourceTime   *viz.TimeDomainPlotter
	sourceFFT    *viz.FFTPlotter
}

// NewProcessor builds a processor. vizServer may be nil.
func NewProcessor(name, sourceName string, sampleRate int, source Source, vizServer *viz.Server) *Processor {
	return &Processor{
		Name:       name,
		SourceName: sourceName,
		SampleRate: sampleRate,
		source:     source,
		vizServer:  vizServer,
	}
}

func (p *Processor) AddBlock(worker *DSPWorker) {
	p.blocks = append(p.blocks, worker)
}

// Blocks returns the stages in order.
func (p *Processor) Blocks() []*DSPWorker {
	return p.blocks
}

// OutputRate is the sample rate of the last stage.
func (p *Processor) OutputRate() int {
	if len(p.blocks) == 0 {
		return p.SampleRate
	}
	return p.blocks[len(p.blocks)-1].OutputRate
}

func (p *Processor) register(prod viz.Producer) {
	if p.vizServer != nil {
		p.vizServer.Register(p.Name, prod)
	}
}

func (p *Processor) Initialize() error {
	if p.initialized {
		return nil
	}
	if p.source == nil {
		return ErrNoSource
	}

	vizIndex := 0
	nextIndexString := func(s string) string {
		vizIndex++
		return fmt.Sprintf("%02d. %s", vizIndex, s)
	}

	p.sourceTime = viz.NewTimeDomainPlotter(nextIndexString(p.SourceName), defaultTimeVizLength)
	p.sourceTime.SetPlotType(viz.PlotTypeLines)
	p.register(p.sourceTime)
	p.sourceFFT = viz.NewFFTPlotterFloat(nextIndexString(p.SourceName+" (FFT)"), defaultFFTVizLength, p.SampleRate)
	p.register(p.sourceFFT)

	rate := p.SampleRate
	prevName := p.SourceName
	for _, cur := range p.blocks {
		if cur.InputRate != rate {
			return fmt.Errorf("prev: %s cur: %s rate mismatch (%d %d)", prevName, cur.Name, rate, cur.InputRate)
		}

		vizLength := defaultTimeVizLength
		if cur.vizSize > 0 {
			vizLength = cur.vizSize
		}
		cur.timeDomain = viz.NewTimeDomainPlotter(nextIndexString(cur.DisplayName), vizLength)
		for _, opt := range cur.plotOptions {
			cur.timeDomain.AddPlotOption(opt)
		}
		if cur.plotType != viz.PlotTypeDefault {
			cur.timeDomain.SetPlotType(cur.plotType)
		}
		p.register(cur.timeDomain)

		if ip, ok := cur.ffWorker.(InputPlotter); ok {
			in := viz.NewFFTPlotterFloat(nextIndexString(cur.DisplayName+" (Input FFT)"), defaultFFTVizLength, cur.InputRate)
			ip.SetInputPlotter(in)
			p.register(in)
		}
		if cur.floatFFT {
			cur.fft = viz.NewFFTPlotterFloat(nextIndexString(cur.DisplayName+" (FFT)"), defaultFFTVizLength, cur.OutputRate)
			for _, opt := range cur.plotOptions {
				cur.fft.AddPlotOption(opt)
			}
			p.register(cur.fft)
		}

		rate = cur.OutputRate
		prevName = cur.Name
	}

	p.initialized = true

	return nil
}

// Process renders size samples from the source, runs every stage and
// returns a segment holding its own copy of the output. Per-stage
// durations in microseconds are added to metrics as <name>_duration.
func (p *Processor) Process(segmentNumber, size int, metrics map[string]interface{}) (*types.SegmentFloat32, error) {
	if !p.initialized {
		if err := p.Initialize(); err != nil {
			return nil, err
		}
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid block size %d", size)
	}

	if len(p.sourceBuffer) != size {
		p.sourceBuffer = make([]float32, size)
	}

	var n int
	metrics["generate_duration"] = util.TimeOperationMicroseconds(func() {
		n = p.source.WorkBuffer(p.sourceBuffer)
	})

	data := p.sourceBuffer[:n]
	p.sourceTime.AppendFloat(data)
	p.sourceFFT.AppendFloat(data)

	for _, block := range p.blocks {
		needed := block.ffWorker.PredictOutputSize(len(data)) * 2
		if len(block.fOutputBuffer) < needed {
			block.fOutputBuffer = make([]float32, needed)
		}

		var length int
		in := data
		metrics[fmt.Sprintf("%s_duration", block.Name)] = util.TimeOperationMicroseconds(func() {
			length = block.ffWorker.WorkBuffer(in, block.fOutputBuffer)
		})

		data = block.fOutputBuffer[:length]
		if block.timeDomain != nil {
			block.timeDomain.AppendFloat(data)
		}
		if block.fft != nil {
			block.fft.AppendFloat(data)
		}
	}

	out := make([]float32, len(data))
	copy(out, data)

	return &types.SegmentFloat32{
		SegmentNumber: segmentNumber,
		Data:          out,
	}, nil
}
