package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/norasector/phasewave/pkg/dsp/filters/fir"
	"github.com/norasector/phasewave/pkg/dsp/skew"
)

const (
	DefaultSampleRate     = 48000
	DefaultBlockSize      = 256
	DefaultAnalysisWindow = 4096
	DefaultSystemID       = 1

	// MixChannelID tags the summed output of every channel.
	MixChannelID = 0
)

var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrInvalidBlockSize  = errors.New("block size must be positive")
	ErrNoChannels        = errors.New("at least one channel is required")
	ErrInvalidChannelID  = errors.New("channel id must be positive")
	ErrDuplicateChannel  = errors.New("duplicate channel id")
	ErrUnknownKind       = errors.New("unknown channel kind")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrUnboundedRender   = errors.New("offline rendering needs a duration")
	ErrUnknownOutput     = errors.New("output references unknown channel")
)

type ChannelKind string

const (
	KindSkew       ChannelKind = "skew"
	KindFM         ChannelKind = "fm"
	KindSine       ChannelKind = "sine"
	KindRecurrence ChannelKind = "recurrence"
)

func (k ChannelKind) Valid() bool {
	switch k {
	case KindSkew, KindFM, KindSine, KindRecurrence:
		return true
	}
	return false
}

type Config struct {
	SampleRate       int           `yaml:"sample_rate"`
	OutputSampleRate int           `yaml:"output_rate"`
	BlockSize        int           `yaml:"block_size"`
	Duration         time.Duration `yaml:"duration"`
	Realtime         bool          `yaml:"realtime"`
	SystemID         int           `yaml:"system_id"`
	MixGain          float64       `yaml:"mix_gain"`
	AutomationScript string        `yaml:"automation_script"`
	Channels         []Channel     `yaml:"channels"`
	Outputs          Outputs       `yaml:"outputs"`
	VizServer        struct {
		Port           int           `yaml:"port"`
		UpdateInterval time.Duration `yaml:"update_interval"`
	} `yaml:"viz_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

// Channel is one oscillator and its processing chain. Fields that do not
// apply to Kind are ignored.
type Channel struct {
	ID        int           `yaml:"id"`
	Name      string        `yaml:"name"`
	Kind      ChannelKind   `yaml:"kind"`
	Frequency float64       `yaml:"frequency"`
	Amplitude *float64      `yaml:"amplitude"`
	Phase     float64       `yaml:"phase"`
	Waveform  skew.Waveform `yaml:"waveform"`
	Skew      float64       `yaml:"skew"`

	Ratio       float64  `yaml:"ratio"`
	Fine        float64  `yaml:"fine"`
	Feedback    float64  `yaml:"feedback"`
	ModLevel    float64  `yaml:"mod_level"`
	ModEnvelope *float64 `yaml:"mod_envelope"`
	Noise       float64  `yaml:"noise"`

	RingMod    *RingMod `yaml:"ring_mod"`
	LowPass    *Filter  `yaml:"lowpass"`
	HighPass   *Filter  `yaml:"highpass"`
	BandPass   *Band    `yaml:"bandpass"`
	Deemphasis float64  `yaml:"deemphasis"`
	AGC        *AGC     `yaml:"agc"`

	AnalysisWindow int `yaml:"analysis_window"`
}

// DisplayName is Name, or a name derived from the id and kind.
func (c Channel) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("channel-%d-%s", c.ID, c.Kind)
}

type Filter struct {
	Cutoff     float64        `yaml:"cutoff"`
	Transition float64        `yaml:"transition"`
	Window     fir.WindowType `yaml:"window"`
}

type Band struct {
	Low        float64        `yaml:"low"`
	High       float64        `yaml:"high"`
	Transition float64        `yaml:"transition"`
	Window     fir.WindowType `yaml:"window"`
}

type RingMod struct {
	Frequency float64 `yaml:"frequency"`
	Depth     float64 `yaml:"depth"`
}

type AGC struct {
	Alpha   float64 `yaml:"alpha"`
	Target  float64 `yaml:"target"`
	MaxGain float64 `yaml:"max_gain"`
}

type Outputs struct {
	Raw      *RawOutput      `yaml:"raw"`
	Wav      *WavOutput      `yaml:"wav"`
	Stream   *StreamOutput   `yaml:"stream"`
	Playback *PlaybackOutput `yaml:"playback"`
}

// RawOutput writes float32 little-endian samples. Path "-" is stdout.
type RawOutput struct {
	Path     string `yaml:"path"`
	Channels []int  `yaml:"channels,flow"`
}

type WavOutput struct {
	Path    string `yaml:"path"`
	Channel int    `yaml:"channel"`
}

type StreamOutput struct {
	Destinations []OutputDestination `yaml:"destinations"`
	Channels     []int               `yaml:"channels,flow"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type PlaybackOutput struct {
	Channel      int `yaml:"channel"`
	BufferBlocks int `yaml:"buffer_blocks"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(contents)
}

// Parse decodes and validates YAML config contents.
func Parse(contents []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(contents, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills defaults and rejects settings the engine cannot render.
func (c *Config) Validate() error {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.SampleRate < 0 {
		return ErrInvalidSampleRate
	}
	if c.OutputSampleRate == 0 {
		c.OutputSampleRate = c.SampleRate
	}
	if c.OutputSampleRate < 0 {
		return ErrInvalidSampleRate
	}
	if c.BlockSize == 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.BlockSize < 0 {
		return ErrInvalidBlockSize
	}
	if c.SystemID == 0 {
		c.SystemID = DefaultSystemID
	}
	if !c.Realtime && c.Duration <= 0 {
		return ErrUnboundedRender
	}
	if c.VizServer.UpdateInterval == 0 {
		c.VizServer.UpdateInterval = time.Second
	}

	if len(c.Channels) == 0 {
		return ErrNoChannels
	}
	ids := make(map[int]struct{}, len(c.Channels))
	for i := range c.Channels {
		ch := &c.Channels[i]
		if err := ch.Validate(float64(c.SampleRate)); err != nil {
			return fmt.Errorf("channel %d: %w", ch.ID, err)
		}
		if _, ok := ids[ch.ID]; ok {
			return fmt.Errorf("channel %d: %w", ch.ID, ErrDuplicateChannel)
		}
		ids[ch.ID] = struct{}{}
	}
	if c.MixGain == 0 {
		c.MixGain = 1 / float64(len(c.Channels))
	}

	return c.Outputs.validate(ids)
}

// Validate fills channel defaults and checks filter bands against Nyquist.
func (c *Channel) Validate(sampleRate float64) error {
	if c.ID <= 0 {
		return ErrInvalidChannelID
	}
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	if c.Amplitude == nil {
		amp := 1.0
		c.Amplitude = &amp
	}
	if c.Kind == KindFM && c.Ratio == 0 {
		c.Ratio = 2
	}
	if c.AnalysisWindow == 0 {
		c.AnalysisWindow = DefaultAnalysisWindow
	}

	nyquist := sampleRate / 2
	for _, f := range []*Filter{c.LowPass, c.HighPass} {
		if f == nil {
			continue
		}
		if f.Cutoff <= 0 || f.Cutoff >= nyquist || f.Transition <= 0 {
			return fmt.Errorf("%w: cutoff %v transition %v", ErrInvalidFilter, f.Cutoff, f.Transition)
		}
	}
	if b := c.BandPass; b != nil {
		if b.Low <= 0 || b.High <= b.Low || b.High >= nyquist || b.Transition <= 0 {
			return fmt.Errorf("%w: band %v-%v transition %v", ErrInvalidFilter, b.Low, b.High, b.Transition)
		}
	}
	if c.AGC != nil {
		if c.AGC.Alpha <= 0 || c.AGC.Alpha > 1 {
			c.AGC.Alpha = 0.01
		}
		if c.AGC.Target <= 0 {
			c.AGC.Target = 0.25
		}
		if c.AGC.MaxGain <= 0 {
			c.AGC.MaxGain = 10
		}
	}
	return nil
}

func (o *Outputs) validate(ids map[int]struct{}) error {
	check := func(id int) error {
		if id == MixChannelID {
			return nil
		}
		if _, ok := ids[id]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownOutput, id)
		}
		return nil
	}

	if o.Raw != nil {
		if len(o.Raw.Channels) == 0 {
			o.Raw.Channels = []int{MixChannelID}
		}
		for _, id := range o.Raw.Channels {
			if err := check(id); err != nil {
				return err
			}
		}
	}
	if o.Wav != nil {
		if err := check(o.Wav.Channel); err != nil {
			return err
		}
	}
	if o.Stream != nil {
		if len(o.Stream.Channels) == 0 {
			o.Stream.Channels = []int{MixChannelID}
		}
		for _, id := range o.Stream.Channels {
			if err := check(id); err != nil {
				return err
			}
		}
	}
	if o.Playback != nil {
		if err := check(o.Playback.Channel); err != nil {
			return err
		}
		if o.Playback.BufferBlocks <= 0 {
			o.Playback.BufferBlocks = 8
		}
	}
	return nil
}
