package output

import (
	"context"
	"fmt"
	"time"

	"github.com/hraban/opus"
	"github.com/norasector/turbine-common/types"
)

const usPerFrame int = 20e3

var validUsRates []int = []int{2.5e3, 5e3, 10e3, 20e3}

// opusSampleRates are the only rates libopus encodes.
var opusSampleRates = map[int]struct{}{8000: {}, 12000: {}, 16000: {}, 24000: {}, 48000: {}}

// OpusEncoder packs one channel's blocks into 20 ms opus frames.
type OpusEncoder struct {
	sampleRate    int
	channelID     int
	encBuf        [4096]byte
	inBuf         []float32
	encoder       *opus.Encoder
	segmentNumber int
	lastTG        types.TalkGroup

	outputChan  chan *types.TaggedAudioFrameOpus
	receiveChan chan *types.TaggedAudioSampleFloat32
}

func NewOpusEncoder(sampleRate, channelID int, outputChan chan *types.TaggedAudioFrameOpus) (*OpusEncoder, error) {
	if _, ok := opusSampleRates[sampleRate]; !ok {
		return nil, fmt.Errorf("opus cannot encode at %d Hz", sampleRate)
	}
	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppAudio)
	if err != nil {
		return nil, err
	}

	if err := enc.SetPacketLossPerc(20); err != nil {
		return nil, err
	}
	enc.SetBitrateToAuto()
	return &OpusEncoder{
		sampleRate:  sampleRate,
		channelID:   channelID,
		receiveChan: make(chan *types.TaggedAudioSampleFloat32, 1),
		outputChan:  outputChan,
		encoder:     enc,
	}, nil
}

func (o *OpusEncoder) samplesPerFrame() int {
	return o.sampleRate * usPerFrame / 1e6
}

func (o *OpusEncoder) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Microsecond * time.Duration(usPerFrame) * 3 / 2):
			if err := o.flush(ctx, true); err != nil {
				return err
			}
		case seg := <-o.receiveChan:
			o.inBuf = append(o.inBuf, seg.Audio.Data...)
			o.lastTG = *seg.TalkGroup
			if err := o.flush(ctx, false); err != nil {
				return err
			}
		}
	}
}

// flush encodes every complete frame. When force is set a remainder is
// sent as the largest shorter frame opus accepts; anything shorter than
// the smallest frame is dropped.
func (o *OpusEncoder) flush(ctx context.Context, force bool) error {
	for len(o.inBuf) >= o.samplesPerFrame() {
		if err := o.encodeFrame(ctx, o.samplesPerFrame()); err != nil {
			return err
		}
	}

	if !force || len(o.inBuf) == 0 {
		return nil
	}
	for j := len(validUsRates) - 1; j >= 0; j-- {
		frameLen := validUsRates[j] * o.sampleRate / 1e6
		if frameLen <= len(o.inBuf) {
			if err := o.encodeFrame(ctx, frameLen); err != nil {
				return err
			}
			break
		}
	}
	o.inBuf = o.inBuf[:0]
	return nil
}

func (o *OpusEncoder) encodeFrame(ctx context.Context, frameLen int) error {
	bytesEncoded, err := o.encoder.EncodeFloat32(o.inBuf[:frameLen], o.encBuf[:])
	if err != nil {
		return err
	}

	// Move leftover samples to the beginning of the input buffer.
	n := copy(o.inBuf, o.inBuf[frameLen:])
	o.inBuf = o.inBuf[:n]

	ret := make([]byte, bytesEncoded)
	copy(ret, o.encBuf[:bytesEncoded])

	tg := o.lastTG
	select {
	case <-ctx.Done():
		return ctx.Err()
	case o.outputChan <- &types.TaggedAudioFrameOpus{
		Audio: &types.SegmentBinaryBytes{
			SegmentNumber: o.segmentNumber,
			Data:          ret,
		},
		TalkGroup:                &tg,
		SampleLengthMicroseconds: frameLen * 1e6 / o.sampleRate,
		Timestamp:                time.Now().UTC()}:
		o.segmentNumber++
	}
	return nil
}

func (o *OpusEncoder) ReceiveChannel() chan<- *types.TaggedAudioSampleFloat32 {
	return o.receiveChan
}
