package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"

	"github.com/norasector/phasewave/pkg/synth/config"
	"github.com/norasector/phasewave/pkg/util"
)

const (
	receiveChannels = 8
	numListeners    = 4
)

// TaggedOpusFrameUDPOutput encodes each selected channel with its own
// OpusEncoder and sends every frame, protobuf encoded behind a
// little-endian uint16 length, to all destinations.
type TaggedOpusFrameUDPOutput struct {
	dests      []config.OutputDestination
	sampleRate int
	filter     channelFilter
	recvChan   chan *types.TaggedAudioSampleFloat32
	opusChan   chan *types.TaggedAudioFrameOpus
	mu         sync.Mutex
	encoders   map[int]*OpusEncoder
	metrics    api.WriteAPI
}

func NewTaggedOpusFrameUDPOutput(dests []config.OutputDestination, sampleRate int, channels []int, metrics api.WriteAPI) *TaggedOpusFrameUDPOutput {
	if metrics == nil {
		metrics = &util.MockWriteAPI{}
	}
	return &TaggedOpusFrameUDPOutput{
		dests:      dests,
		sampleRate: sampleRate,
		filter:     newChannelFilter(channels),
		recvChan:   make(chan *types.TaggedAudioSampleFloat32, receiveChannels),
		encoders:   make(map[int]*OpusEncoder),
		opusChan:   make(chan *types.TaggedAudioFrameOpus),
		metrics:    metrics,
	}
}

func (s *TaggedOpusFrameUDPOutput) Receive() chan<- *types.TaggedAudioSampleFloat32 {
	return s.recvChan
}

func (s *TaggedOpusFrameUDPOutput) getEncoder(channelID int) (*OpusEncoder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc, ok := s.encoders[channelID]
	if ok {
		return enc, false, nil
	}
	enc, err := NewOpusEncoder(s.sampleRate, channelID, s.opusChan)
	if err != nil {
		return nil, false, err
	}
	s.encoders[channelID] = enc
	return enc, true, nil
}

// EncodeFrame frames an opus packet for the wire.
func EncodeFrame(frame *types.TaggedAudioFrameOpus) ([]byte, int, error) {
	encoded, err := proto.Marshal(frame.ToProtobuf())
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling protobuf: %w", err)
	}
	if len(encoded) > 0xffff {
		return nil, 0, fmt.Errorf("frame of %d bytes exceeds length prefix", len(encoded))
	}

	var msgBuf bytes.Buffer
	if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
		return nil, 0, fmt.Errorf("encoding header size: %w", err)
	}
	msgBuf.Write(encoded)
	return msgBuf.Bytes(), len(encoded), nil
}

func (s *TaggedOpusFrameUDPOutput) resolve() ([]*net.UDPAddr, error) {
	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		log.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("stream output starting")
	}
	return destAddrs, nil
}

func (s *TaggedOpusFrameUDPOutput) send(conn *net.UDPConn, destAddrs []*net.UDPAddr, frame *types.TaggedAudioFrameOpus) {
	msg, encodedLen, err := EncodeFrame(frame)
	if err != nil {
		log.Warn().Err(err).Msg("error encoding frame")
		return
	}

	sent, dropped := 0, 0
	var bytesWritten int
	for _, destAddr := range destAddrs {
		n, err := conn.WriteToUDP(msg, destAddr)
		if err != nil {
			log.Error().Err(err).Str("dest", destAddr.String()).Msg("error writing")
			dropped++
			continue
		}
		bytesWritten += n
		sent++
	}

	s.metrics.WritePoint(util.NewPoint("opus.sent_frame", strconv.Itoa(frame.TalkGroup.SystemID),
		map[string]string{
			"channel": strconv.Itoa(frame.TalkGroup.ID),
		},
		map[string]interface{}{
			"bytes_written":  bytesWritten,
			"frame_length":   len(frame.Audio.Data),
			"encoded_length": encodedLen,
			"sent":           sent,
			"dropped":        dropped,
		}, time.Now()))
}

func (s *TaggedOpusFrameUDPOutput) Start(ctx context.Context) error {
	if _, ok := opusSampleRates[s.sampleRate]; !ok {
		return fmt.Errorf("opus stream: unsupported output rate %d", s.sampleRate)
	}

	destAddrs, err := s.resolve()
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)

	for i := 0; i < numListeners; i++ {
		eg.Go(func() error {
			conn, err := net.ListenUDP("udp", nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case frame := <-s.opusChan:
					s.send(conn, destAddrs, frame)
				}
			}
		})
	}

	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case ts := <-s.recvChan:
				if !s.filter.accepts(ts) {
					continue
				}

				enc, created, err := s.getEncoder(ts.TalkGroup.ID)
				if err != nil {
					return err
				}
				if created {
					eg.Go(func() error {
						return enc.Start(ctx)
					})
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				case enc.ReceiveChannel() <- ts:
				}
			}
		}
	})

	return eg.Wait()
}
