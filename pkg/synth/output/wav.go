package output

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog/log"
)

const (
	wavBitDepth = 16
	wavPCM      = 1
)

// WavFileOutput records one channel as 16-bit mono PCM. The header is
// finalized when Start returns.
type WavFileOutput struct {
	path       string
	sampleRate int
	filter     channelFilter
	recvChan   chan *types.TaggedAudioSampleFloat32

	file    *os.File
	encoder *wav.Encoder
	intBuf  *audio.IntBuffer
	written int
}

func NewWavFileOutput(path string, sampleRate, channel int) *WavFileOutput {
	return &WavFileOutput{
		path:       path,
		sampleRate: sampleRate,
		filter:     newChannelFilter([]int{channel}),
		recvChan:   make(chan *types.TaggedAudioSampleFloat32, sampleBufferLength),
		intBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: wavBitDepth,
		},
	}
}

func (w *WavFileOutput) Receive() chan<- *types.TaggedAudioSampleFloat32 {
	return w.recvChan
}

// SamplesWritten is the number of frames encoded so far.
func (w *WavFileOutput) SamplesWritten() int {
	return w.written
}

func toPCM16(s float32) int {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	return int(s * 32767)
}

func (w *WavFileOutput) handle(ts *types.TaggedAudioSampleFloat32) error {
	if !w.filter.accepts(ts) {
		return nil
	}
	data := w.intBuf.Data[:0]
	for _, s := range ts.Audio.Data {
		data = append(data, toPCM16(s))
	}
	w.intBuf.Data = data
	if err := w.encoder.Write(w.intBuf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	w.written += len(data)
	return nil
}

func (w *WavFileOutput) close() error {
	if err := w.encoder.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return w.file.Close()
}

func (w *WavFileOutput) Start(ctx context.Context) error {
	f, err := os.Create(w.path)
	if err != nil {
		return err
	}
	w.file = f
	w.encoder = wav.NewEncoder(f, w.sampleRate, wavBitDepth, 1, wavPCM)

	log.Info().Str("path", w.path).Int("sample_rate", w.sampleRate).Msg("wav output starting")

	for {
		select {
		case <-ctx.Done():
			if err := drain(w.recvChan, w.handle); err != nil {
				w.close()
				return err
			}
			if err := w.close(); err != nil {
				log.Error().Err(err).Str("path", w.path).Msg("error closing wav output")
				return err
			}
			log.Info().Str("path", w.path).Int("samples", w.written).Msg("wav output finalized")
			return ctx.Err()

		case ts := <-w.recvChan:
			if err := w.handle(ts); err != nil {
				w.close()
				return err
			}
		}
	}
}
