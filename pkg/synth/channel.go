package synth

import (
	"fmt"
	"strconv"

	"github.com/racerxdl/segdsp/dsp"

	"github.com/norasector/phasewave/pkg/dsp/agc/rmsagc"
	"github.com/norasector/phasewave/pkg/dsp/analysis"
	"github.com/norasector/phasewave/pkg/dsp/filters/fir"
	"github.com/norasector/phasewave/pkg/dsp/mixer"
	"github.com/norasector/phasewave/pkg/dsp/processor"
	"github.com/norasector/phasewave/pkg/dsp/viz"
	"github.com/norasector/phasewave/pkg/synth/config"
)

const resamplerTaps = 127

type channel struct {
	cfg      config.Channel
	tag      string
	gen      generator
	proc     *processor.Processor
	analyzer *analysis.Analyzer
}

func newChannel(e *Engine, cfg config.Channel) (*channel, error) {
	sr := e.opts.SampleRate
	fsr := float64(sr)

	gen, err := newGenerator(cfg, fsr)
	if err != nil {
		return nil, err
	}

	ch := &channel{
		cfg:      cfg,
		tag:      strconv.Itoa(cfg.ID),
		gen:      gen,
		proc:     processor.NewProcessor(cfg.DisplayName(), fmt.Sprintf("%s oscillator", cfg.Kind), sr, gen, e.vizServer),
		analyzer: analysis.NewAnalyzer(sr, cfg.AnalysisWindow),
	}

	vizLength := sr / 100

	if rm := cfg.RingMod; rm != nil {
		ch.proc.AddBlock(processor.NewDSPWorkerFF(
			"ring_mod",
			"Ring Modulator",
			sr, sr,
			mixer.NewRingModulator(fsr, rm.Frequency, float32(rm.Depth)),
			processor.WithVizLength(vizLength),
			processor.WithPlotType(viz.PlotTypeLines),
		))
	}

	if lp := cfg.LowPass; lp != nil {
		ch.proc.AddBlock(processor.NewDSPWorkerFF(
			"lowpass",
			"Lowpass",
			sr, sr,
			dsp.MakeFloatFirFilter(fir.MakeLowPass(1.0, fsr, lp.Cutoff, lp.Transition, lp.Window)),
			processor.WithVizLength(vizLength),
			processor.WithFloatFFTPlot(),
		))
	}

	if bp := cfg.BandPass; bp != nil {
		ch.proc.AddBlock(processor.NewDSPWorkerFF(
			"bandpass",
			"Bandpass",
			sr, sr,
			dsp.MakeFloatFirFilter(fir.MakeBandPass(1.0, fsr, bp.Low, bp.High, bp.Transition, bp.Window)),
			processor.WithVizLength(vizLength),
			processor.WithFloatFFTPlot(),
		))
	}

	if hp := cfg.HighPass; hp != nil {
		ch.proc.AddBlock(processor.NewDSPWorkerFF(
			"dc_block",
			"DC Block",
			sr, sr,
			dsp.MakeFloatFirFilter(fir.MakeHighPass(1.0, fsr, hp.Cutoff, hp.Transition, hp.Window)),
			processor.WithVizLength(vizLength),
			processor.WithPlotType(viz.PlotTypeLines),
		))
	}

	if cfg.Deemphasis > 0 {
		ch.proc.AddBlock(processor.NewDSPWorkerFF(
			"deemphasis",
			"Deemphasis",
			sr, sr,
			dsp.MakeFMDeemph(float32(cfg.Deemphasis), float32(fsr)),
			processor.WithVizLength(vizLength),
		))
	}

	if agc := cfg.AGC; agc != nil {
		ch.proc.AddBlock(processor.NewDSPWorkerFF(
			"agc",
			"RMS AGC",
			sr, sr,
			rmsagc.NewRMSAGC(agc.Alpha, agc.Target, agc.MaxGain),
			processor.WithVizLength(vizLength),
		))
	}

	ch.proc.AddBlock(processor.NewDSPWorkerFF(
		"analysis",
		"Analysis",
		sr, sr,
		ch.analyzer,
		processor.WithVizLength(vizLength),
		processor.WithPlotType(viz.PlotTypeLines),
	))

	if out := e.opts.OutputSampleRate; out != sr {
		ch.proc.AddBlock(processor.NewDSPWorkerFF(
			"resampler",
			"Output Resampler",
			sr, out,
			dsp.MakeFloatResampler(resamplerTaps, float32(out)/float32(sr)),
			processor.WithVizLength(out/100),
			processor.WithFloatFFTPlot(),
		))
	}

	if err := ch.proc.Initialize(); err != nil {
		return nil, fmt.Errorf("channel %d: %w", cfg.ID, err)
	}

	e.logger.Info().
		Int("channel_id", cfg.ID).
		Str("name", cfg.DisplayName()).
		Str("kind", string(cfg.Kind)).
		Float64("frequency", gen.frequency()).
		Int("stages", len(ch.proc.Blocks())).
		Int("sample_rate", sr).
		Int("output_rate", ch.proc.OutputRate()).
		Msg("initializing channel")

	return ch, nil
}

// stats returns the analysis of the last block plus generator readings.
func (ch *channel) stats() map[string]interface{} {
	st := ch.analyzer.Stats()
	fields := map[string]interface{}{
		"peak":               st.Peak,
		"rms":                st.RMS,
		"dominant_frequency": st.DominantFrequency,
		"frequency":          ch.gen.frequency(),
	}
	if t, ok := ch.gen.(interface{ trackedFrequency() float64 }); ok {
		fields["tracked_frequency"] = t.trackedFrequency()
	}
	return fields
}
