package output

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog/log"
)

// sampleRing is a fixed size FIFO of samples. Writes past capacity drop
// the oldest samples; reads past the end are filled with silence.
type sampleRing struct {
	mu         sync.Mutex
	buf        []float32
	head, size int
	underruns  int
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{buf: make([]float32, capacity)}
}

func (r *sampleRing) write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		tail := (r.head + r.size) % len(r.buf)
		r.buf[tail] = s
		if r.size < len(r.buf) {
			r.size++
		} else {
			r.head = (r.head + 1) % len(r.buf)
		}
	}
}

func (r *sampleRing) read(out []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	short := false
	for i := range out {
		if r.size == 0 {
			out[i] = 0
			short = true
			continue
		}
		out[i] = r.buf[r.head]
		r.head = (r.head + 1) % len(r.buf)
		r.size--
	}
	if short {
		r.underruns++
	}
}

func (r *sampleRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *sampleRing) underrunCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.underruns
}

// PlaybackOutput plays one channel on the default audio device.
type PlaybackOutput struct {
	sampleRate int
	filter     channelFilter
	recvChan   chan *types.TaggedAudioSampleFloat32
	ring       *sampleRing
	scratch    []float32
}

// NewPlaybackOutput buffers up to bufferSamples samples ahead of the
// device.
func NewPlaybackOutput(sampleRate, channel, bufferSamples int) *PlaybackOutput {
	if bufferSamples <= 0 {
		bufferSamples = sampleRate / 10
	}
	return &PlaybackOutput{
		sampleRate: sampleRate,
		filter:     newChannelFilter([]int{channel}),
		recvChan:   make(chan *types.TaggedAudioSampleFloat32, sampleBufferLength),
		ring:       newSampleRing(bufferSamples),
	}
}

func (p *PlaybackOutput) Receive() chan<- *types.TaggedAudioSampleFloat32 {
	return p.recvChan
}

// Read feeds the device as float32 little-endian mono.
func (p *PlaybackOutput) Read(b []byte) (int, error) {
	n := len(b) / 4
	if cap(p.scratch) < n {
		p.scratch = make([]float32, n)
	}
	samples := p.scratch[:n]
	p.ring.read(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(s))
	}
	return n * 4, nil
}

func (p *PlaybackOutput) handle(ts *types.TaggedAudioSampleFloat32) error {
	if p.filter.accepts(ts) {
		p.ring.write(ts.Audio.Data)
	}
	return nil
}

func (p *PlaybackOutput) Start(ctx context.Context) error {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   p.sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return err
	}
	<-ready

	player := otoCtx.NewPlayer(p)
	player.Play()
	defer player.Close()

	log.Info().Int("sample_rate", p.sampleRate).Msg("playback output starting")

	for {
		select {
		case <-ctx.Done():
			log.Info().Int("underruns", p.ring.underrunCount()).Msg("playback output stopping")
			return ctx.Err()
		case ts := <-p.recvChan:
			p.handle(ts)
		}
	}
}
