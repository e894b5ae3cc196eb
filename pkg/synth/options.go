package synth

import (
	"time"

	"github.com/norasector/phasewave/pkg/synth/config"
)

type Options struct {
	SampleRate       int
	OutputSampleRate int
	BlockSize        int
	// Duration bounds the render; zero renders until stopped and is only
	// allowed in realtime mode.
	Duration     time.Duration
	Realtime     bool
	SystemID     int
	MixGain      float64
	Channels     []config.Channel
	AudioOutputs []AudioOutput
}

// OptionsFromConfig copies the render settings of a validated config.
// Outputs are built by the caller.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SampleRate:       cfg.SampleRate,
		OutputSampleRate: cfg.OutputSampleRate,
		BlockSize:        cfg.BlockSize,
		Duration:         cfg.Duration,
		Realtime:         cfg.Realtime,
		SystemID:         cfg.SystemID,
		MixGain:          cfg.MixGain,
		Channels:         cfg.Channels,
	}
}
