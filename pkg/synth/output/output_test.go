package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/norasector/turbine-common/types"
	"google.golang.org/protobuf/proto"

	"github.com/norasector/phasewave/pkg/synth/config"
)

func block(channelID, segNum int, data []float32) *types.TaggedAudioSampleFloat32 {
	return &types.TaggedAudioSampleFloat32{
		TalkGroup: &types.TalkGroup{ID: channelID, SystemID: 1},
		Audio:     &types.SegmentFloat32{SegmentNumber: segNum, Data: data},
	}
}

func ramp(n int, scale float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i) * scale
	}
	return out
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.b.Bytes()...)
}

func TestSimpleAudioOutput(t *testing.T) {
	var dest lockedBuffer
	out := NewSimpleAudioOutput(&dest, []int{config.MixChannelID})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- out.Start(ctx) }()

	out.Receive() <- block(1, 1, ramp(4, 1))
	out.Receive() <- block(0, 1, []float32{0.5, -0.5})
	out.Receive() <- block(0, 2, []float32{0.25})
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Start returned %v", err)
	}

	got := make([]float32, len(dest.Bytes())/4)
	if err := binary.Read(bytes.NewReader(dest.Bytes()), binary.LittleEndian, got); err != nil {
		t.Fatal(err)
	}
	want := []float32{0.5, -0.5, 0.25}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestWavFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	out := NewWavFileOutput(path, 48000, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- out.Start(ctx) }()

	for seg := 0; seg < 4; seg++ {
		out.Receive() <- block(2, seg, ramp(100, 0.01))
		out.Receive() <- block(1, seg, ramp(100, 0.01))
	}
	out.Receive() <- block(2, 5, []float32{2, -2})
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Start returned %v", err)
	}
	if out.SamplesWritten() != 402 {
		t.Errorf("wrote %d samples, want 402", out.SamplesWritten())
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != 48000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("header: rate %d chans %d depth %d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != 402 {
		t.Fatalf("decoded %d samples, want 402", len(buf.Data))
	}
	if buf.Data[50] != toPCM16(0.5) {
		t.Errorf("sample 50 = %d, want %d", buf.Data[50], toPCM16(0.5))
	}
	if buf.Data[400] != 32767 || buf.Data[401] != -32767 {
		t.Errorf("clipped samples = %d, %d", buf.Data[400], buf.Data[401])
	}
}

func TestSampleRing(t *testing.T) {
	r := newSampleRing(4)
	r.write([]float32{1, 2, 3})
	out := make([]float32, 2)
	r.read(out)
	if out[0] != 1 || out[1] != 2 {
		t.Errorf("read %v", out)
	}

	r.write([]float32{4, 5, 6, 7})
	if r.len() != 4 {
		t.Fatalf("len = %d, want 4", r.len())
	}
	out = make([]float32, 6)
	r.read(out)
	want := []float32{4, 5, 6, 7, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("read %v, want %v", out, want)
		}
	}
	if r.underrunCount() != 1 {
		t.Errorf("underruns = %d", r.underrunCount())
	}
}

func TestPlaybackRead(t *testing.T) {
	p := NewPlaybackOutput(48000, 3, 16)
	p.handle(block(3, 0, []float32{0.5, -1}))
	p.handle(block(4, 0, []float32{0.75}))

	b := make([]byte, 12)
	n, err := p.Read(b)
	if err != nil || n != 12 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	want := []float32{0.5, -1, 0}
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		if got != w {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}
}

func TestEncodeFrame(t *testing.T) {
	frame := &types.TaggedAudioFrameOpus{
		Audio:                    &types.SegmentBinaryBytes{SegmentNumber: 3, Data: []byte{1, 2, 3, 4}},
		TalkGroup:                &types.TalkGroup{ID: 2, SystemID: 1},
		SampleLengthMicroseconds: 20000,
		Timestamp:                time.Now().UTC(),
	}
	msg, encodedLen, err := EncodeFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if got := int(binary.LittleEndian.Uint16(msg)); got != encodedLen || got != len(msg)-2 {
		t.Fatalf("length prefix %d, payload %d", got, len(msg)-2)
	}

	decoded := proto.Clone(frame.ToProtobuf())
	proto.Reset(decoded)
	if err := proto.Unmarshal(msg[2:], decoded); err != nil {
		t.Fatal(err)
	}
	if !proto.Equal(decoded, frame.ToProtobuf()) {
		t.Error("decoded frame differs")
	}
}

func TestStreamOutput(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	out := NewTaggedOpusFrameUDPOutput(
		[]config.OutputDestination{{Host: "127.0.0.1", Port: port}},
		48000, []int{config.MixChannelID}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- out.Start(ctx) }()

	tone := make([]float32, 960*2)
	for i := range tone {
		tone[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}
	out.Receive() <- block(0, 1, tone)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	packet := make([]byte, 65536)
	n, _, err := conn.ReadFromUDP(packet)
	if err != nil {
		t.Fatal(err)
	}
	if n < 3 {
		t.Fatalf("packet of %d bytes", n)
	}
	if got := int(binary.LittleEndian.Uint16(packet)); got != n-2 {
		t.Errorf("length prefix %d, payload %d", got, n-2)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Start returned %v", err)
	}
}

func TestStreamOutputRejectsRate(t *testing.T) {
	out := NewTaggedOpusFrameUDPOutput(nil, 44100, nil, nil)
	if err := out.Start(context.Background()); err == nil {
		t.Error("44.1 kHz accepted")
	}
}
