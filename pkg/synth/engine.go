package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/phasewave/pkg/dsp/analysis"
	"github.com/norasector/phasewave/pkg/dsp/viz"
	"github.com/norasector/phasewave/pkg/synth/config"
	"github.com/norasector/phasewave/pkg/util"
)

var errRenderComplete = errors.New("render complete")

// Automation produces parameter updates keyed by channel id and parameter
// name for the given elapsed render time in seconds.
type Automation interface {
	Control(elapsed float64) (map[int]map[string]float64, error)
}

type clockTick struct {
	elapsed float64
	done    chan struct{}
}

// Engine renders every channel block by block and fans the results out to
// the audio outputs. All oscillators are owned by the render goroutine.
type Engine struct {
	opts       Options
	writeAPI   api.WriteAPI
	vizServer  *viz.Server
	automation Automation
	logger     zerolog.Logger

	channels []*channel
	byID     map[int]*channel
	params   *ParameterBank
	clock    chan clockTick

	mu      sync.Mutex
	cancel  context.CancelFunc
	ctx     context.Context
	stopped bool
}

type Option func(e *Engine) error

func WithInfluxDB(influxClient api.WriteAPI) Option {
	return func(e *Engine) error {
		e.writeAPI = influxClient
		return nil
	}
}

func WithImageServer(vizServer *viz.Server) Option {
	return func(e *Engine) error {
		e.vizServer = vizServer
		return nil
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

func WithAutomation(a Automation) Option {
	return func(e *Engine) error {
		if a == nil {
			return errors.New("nil automation")
		}
		e.automation = a
		return nil
	}
}

func New(options Options, opts ...Option) (*Engine, error) {
	e := &Engine{
		opts:     options,
		writeAPI: &util.MockWriteAPI{}, // overwritten with option
		logger:   log.Logger,
		byID:     make(map[int]*channel),
		params:   NewParameterBank(),
		clock:    make(chan clockTick, 1),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.opts.SampleRate <= 0 || e.opts.BlockSize <= 0 {
		return nil, fmt.Errorf("must specify sample rate and block size")
	}
	if e.opts.OutputSampleRate == 0 {
		e.opts.OutputSampleRate = e.opts.SampleRate
	}
	if !e.opts.Realtime && e.opts.Duration <= 0 {
		return nil, config.ErrUnboundedRender
	}
	if len(e.opts.Channels) == 0 {
		return nil, config.ErrNoChannels
	}
	if e.opts.SystemID == 0 {
		e.opts.SystemID = config.DefaultSystemID
	}
	if e.opts.MixGain == 0 {
		e.opts.MixGain = 1 / float64(len(e.opts.Channels))
	}

	for _, cfg := range e.opts.Channels {
		if err := cfg.Validate(float64(e.opts.SampleRate)); err != nil {
			return nil, fmt.Errorf("channel %d: %w", cfg.ID, err)
		}
		if _, ok := e.byID[cfg.ID]; ok {
			return nil, fmt.Errorf("channel %d: %w", cfg.ID, config.ErrDuplicateChannel)
		}
		ch, err := newChannel(e, cfg)
		if err != nil {
			return nil, err
		}
		e.channels = append(e.channels, ch)
		e.byID[cfg.ID] = ch
	}

	return e, nil
}

// Queue schedules a parameter update for the next block boundary. Safe for
// concurrent use.
func (e *Engine) Queue(channelID int, p Parameters) error {
	if _, ok := e.byID[channelID]; !ok {
		return fmt.Errorf("unknown channel %d", channelID)
	}
	e.params.Queue(channelID, p)
	return nil
}

// Stats returns the latest analysis of a channel.
func (e *Engine) Stats(channelID int) (analysis.Stats, bool) {
	ch, ok := e.byID[channelID]
	if !ok {
		return analysis.Stats{}, false
	}
	return ch.analyzer.Stats(), true
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	e.stopped = true
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func (e *Engine) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	e.mu.Lock()
	e.ctx, e.cancel = context.WithCancel(ctx)
	if e.stopped {
		e.cancel()
	}
	e.mu.Unlock()

	if e.vizServer != nil {
		eg.Go(func() error {
			return e.vizServer.Run(e.ctx)
		})
	}

	for _, output := range e.opts.AudioOutputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(e.ctx)
		})
	}

	if e.automation != nil {
		eg.Go(e.runAutomation)
	}

	eg.Go(e.render)

	e.logger.Info().
		Int("sample_rate", e.opts.SampleRate).
		Int("output_rate", e.opts.OutputSampleRate).
		Int("block_size", e.opts.BlockSize).
		Int("channels", len(e.channels)).
		Bool("realtime", e.opts.Realtime).
		Dur("duration", e.opts.Duration).
		Msg("Starting")

	err := eg.Wait()
	if errors.Is(err, errRenderComplete) {
		e.logger.Info().Msg("render complete")
		return nil
	}
	return err
}

func (e *Engine) runAutomation() error {
	for {
		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		case tick := <-e.clock:
			err := e.control(tick.elapsed)
			if tick.done != nil {
				close(tick.done)
			}
			if err != nil {
				return fmt.Errorf("automation at %.3fs: %w", tick.elapsed, err)
			}
		}
	}
}

func (e *Engine) control(elapsed float64) error {
	updates, err := e.automation.Control(elapsed)
	if err != nil {
		return err
	}
	for id, values := range updates {
		p, err := ParametersFromMap(values)
		if err != nil {
			return fmt.Errorf("channel %d: %w", id, err)
		}
		if err := e.Queue(id, p); err != nil {
			return err
		}
	}
	return nil
}

// tick hands the block clock to the automation goroutine. Offline renders
// wait for the updates so output is reproducible; realtime renders never
// block on a slow script.
func (e *Engine) tick(elapsed float64) error {
	if e.automation == nil {
		return nil
	}
	if e.opts.Realtime {
		select {
		case e.clock <- clockTick{elapsed: elapsed}:
		default:
		}
		return nil
	}

	done := make(chan struct{})
	select {
	case e.clock <- clockTick{elapsed: elapsed, done: done}:
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
	select {
	case <-done:
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
	return nil
}

func (e *Engine) applyPending() {
	for id, p := range e.params.Drain() {
		if ch, ok := e.byID[id]; ok {
			ch.gen.apply(p)
		}
	}
}

func (e *Engine) render() error {
	sr := float64(e.opts.SampleRate)
	var total int64
	if e.opts.Duration > 0 {
		total = int64(math.Round(e.opts.Duration.Seconds() * sr))
	}

	start := time.Now()
	var rendered int64
	for segNum := 1; ; segNum++ {
		if total > 0 && rendered >= total {
			return errRenderComplete
		}
		size := e.opts.BlockSize
		if total > 0 && total-rendered < int64(size) {
			size = int(total - rendered)
		}

		if err := e.tick(float64(rendered) / sr); err != nil {
			return err
		}
		e.applyPending()

		if err := e.renderBlock(segNum, size); err != nil {
			return err
		}
		rendered += int64(size)

		if e.opts.Realtime {
			due := start.Add(time.Duration(float64(rendered) / sr * float64(time.Second)))
			select {
			case <-e.ctx.Done():
				return e.ctx.Err()
			case <-time.After(time.Until(due)):
			}
		} else if err := e.ctx.Err(); err != nil {
			return err
		}
	}
}

func (e *Engine) renderBlock(segNum, size int) error {
	var mix []float32
	for _, ch := range e.channels {
		metrics := map[string]interface{}{
			"samples": size,
		}
		seg, err := ch.proc.Process(segNum, size, metrics)
		if err != nil {
			return fmt.Errorf("channel %d: %w", ch.cfg.ID, err)
		}
		seg.Frequency = int(ch.gen.frequency())

		for k, v := range ch.stats() {
			metrics[k] = v
		}
		e.writeAPI.WritePoint(util.NewPoint("synth.channel.rendered", strconv.Itoa(e.opts.SystemID),
			map[string]string{
				"channel": ch.tag,
				"kind":    string(ch.cfg.Kind),
			},
			metrics, time.Now()))

		if len(seg.Data) > len(mix) {
			grown := make([]float32, len(seg.Data))
			copy(grown, mix)
			mix = grown
		}
		gain := float32(e.opts.MixGain)
		for i, s := range seg.Data {
			mix[i] += s * gain
		}

		if err := e.emit(ch.cfg.ID, seg); err != nil {
			return err
		}
	}

	return e.emit(config.MixChannelID, &types.SegmentFloat32{
		SegmentNumber: segNum,
		Data:          mix,
	})
}

// emit fans a block out to every output. Realtime renders skip outputs
// that are not keeping up; offline renders wait for them.
func (e *Engine) emit(channelID int, seg *types.SegmentFloat32) error {
	buf := &types.TaggedAudioSampleFloat32{
		TalkGroup: &types.TalkGroup{
			ID:       channelID,
			SystemID: e.opts.SystemID,
		},
		Audio: seg,
	}

	skippedOutputs := 0
	for _, output := range e.opts.AudioOutputs {
		if e.opts.Realtime {
			select {
			case output.Receive() <- buf:
				// We will not wait on blocked channels.
			default:
				skippedOutputs++
			}
			continue
		}
		select {
		case output.Receive() <- buf:
		case <-e.ctx.Done():
			return e.ctx.Err()
		}
	}

	e.writeAPI.WritePoint(util.NewPoint("synth.output", strconv.Itoa(e.opts.SystemID),
		map[string]string{
			"channel": strconv.Itoa(channelID),
		},
		map[string]interface{}{
			"samples_written": len(seg.Data),
			"bytes_written":   len(seg.Data) * 4,
			"skipped_outputs": skippedOutputs,
		}, time.Now()))

	return nil
}
