package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"time"

	"github.com/norasector/turbine-common/types"
)

// SimpleAudioOutput writes the selected channels as raw float32
// little-endian samples, in arrival order.
type SimpleAudioOutput struct {
	dest       io.Writer
	recvChan   chan *types.TaggedAudioSampleFloat32
	filter     channelFilter
	flushAfter time.Duration

	buf     bytes.Buffer
	pending int
}

func NewSimpleAudioOutput(dest io.Writer, channels []int) *SimpleAudioOutput {
	return &SimpleAudioOutput{
		dest:       dest,
		recvChan:   make(chan *types.TaggedAudioSampleFloat32, sampleBufferLength),
		filter:     newChannelFilter(channels),
		flushAfter: 100 * time.Millisecond,
	}
}

func (s *SimpleAudioOutput) Receive() chan<- *types.TaggedAudioSampleFloat32 {
	return s.recvChan
}

func (s *SimpleAudioOutput) handle(ts *types.TaggedAudioSampleFloat32) error {
	if !s.filter.accepts(ts) {
		return nil
	}
	if err := binary.Write(&s.buf, binary.LittleEndian, ts.Audio.Data); err != nil {
		return err
	}
	s.pending++
	if s.pending == sampleBufferLength {
		return s.flush()
	}
	return nil
}

func (s *SimpleAudioOutput) flush() error {
	s.pending = 0
	if s.buf.Len() == 0 {
		return nil
	}
	_, err := s.buf.WriteTo(s.dest)
	s.buf.Reset()
	return err
}

func (s *SimpleAudioOutput) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if err := drain(s.recvChan, s.handle); err != nil {
				return err
			}
			if err := s.flush(); err != nil {
				return err
			}
			return ctx.Err()

		case <-time.After(s.flushAfter):
			if err := s.flush(); err != nil {
				return err
			}

		case ts := <-s.recvChan:
			if err := s.handle(ts); err != nil {
				return err
			}
		}
	}
}
