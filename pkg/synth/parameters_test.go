package synth

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/norasector/phasewave/pkg/dsp/skew"
	"github.com/norasector/phasewave/pkg/synth/config"
)

func TestParametersFromMap(t *testing.T) {
	p, err := ParametersFromMap(map[string]float64{
		"note":     69,
		"skew":     0.25,
		"waveform": float64(skew.TriSaw),
		"trigger":  2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Frequency == nil || math.Abs(*p.Frequency-440) > 1e-9 {
		t.Errorf("frequency = %v", p.Frequency)
	}
	if p.Skew == nil || *p.Skew != 0.25 {
		t.Errorf("skew = %v", p.Skew)
	}
	if p.Waveform == nil || *p.Waveform != skew.TriSaw {
		t.Errorf("waveform = %v", p.Waveform)
	}
	if p.Trigger != TriggerHard {
		t.Errorf("trigger = %v", p.Trigger)
	}
	if p.Amplitude != nil {
		t.Error("amplitude set without being named")
	}

	p, _ = ParametersFromMap(map[string]float64{"waveform": 99, "trigger": 0.5})
	if *p.Waveform != skew.Sine || p.Trigger != TriggerNone {
		t.Errorf("out of range values: waveform %v trigger %v", *p.Waveform, p.Trigger)
	}

	if _, err := ParametersFromMap(map[string]float64{"pitch": 1}); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("got %v, want ErrUnknownParameter", err)
	}
	for i := 0; i < 20; i++ {
		_, err := ParametersFromMap(map[string]float64{"note": 69, "frequency": 1000})
		if !errors.Is(err, ErrConflictingParameter) {
			t.Fatalf("note with frequency: got %v, want ErrConflictingParameter", err)
		}
	}
	if len(ParameterNames()) != len(parameterSetters) {
		t.Error("ParameterNames incomplete")
	}
}

func TestMerge(t *testing.T) {
	var p Parameters
	p.Merge(Parameters{Frequency: floatPtr(100), Trigger: TriggerHard})
	p.Merge(Parameters{Frequency: floatPtr(200), Skew: floatPtr(0.1), Trigger: TriggerSoft})

	if *p.Frequency != 200 || *p.Skew != 0.1 {
		t.Errorf("merged %v %v", *p.Frequency, *p.Skew)
	}
	if p.Trigger != TriggerHard {
		t.Errorf("trigger = %v, want hard", p.Trigger)
	}

	src := Parameters{Amplitude: floatPtr(0.5)}
	p.Merge(src)
	*src.Amplitude = 1
	if *p.Amplitude != 0.5 {
		t.Error("Merge aliases the source")
	}
}

func TestParameterBank(t *testing.T) {
	b := NewParameterBank()
	if b.Drain() != nil {
		t.Error("empty bank drained updates")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Queue(1+i%2, Parameters{Fine: floatPtr(float64(i))})
		}(i)
	}
	wg.Wait()
	b.QueueAll(map[int]Parameters{3: {Trigger: TriggerSoft}})

	got := b.Drain()
	if len(got) != 3 {
		t.Fatalf("drained %d channels, want 3", len(got))
	}
	if got[1].Fine == nil || got[2].Fine == nil || got[3].Trigger != TriggerSoft {
		t.Errorf("drained %+v", got)
	}
	if b.Drain() != nil {
		t.Error("Drain did not clear the bank")
	}
}

func render(g generator, n int) []float32 {
	out := make([]float32, n)
	g.WorkBuffer(out)
	return out
}

func TestSkewGeneratorTrigger(t *testing.T) {
	ch := config.Channel{ID: 1, Kind: config.KindSkew, Frequency: 300, Waveform: skew.TriSaw, Amplitude: floatPtr(1)}
	g, err := newGenerator(ch, testSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	fresh, _ := newGenerator(ch, testSampleRate)

	render(g, 123)
	g.apply(Parameters{Trigger: TriggerHard})

	a, b := render(g, 64), render(fresh, 64)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d after hard trigger = %v, fresh %v", i, a[i], b[i])
		}
	}
}

func TestFMGeneratorNoise(t *testing.T) {
	ch := config.Channel{ID: 1, Kind: config.KindFM, Frequency: 220, Ratio: 2, Amplitude: floatPtr(1)}
	quiet, _ := newGenerator(ch, testSampleRate)
	ch.Noise = 0.5
	noisy, _ := newGenerator(ch, testSampleRate)

	a, b := render(quiet, 256), render(noisy, 256)
	differ := false
	for i := range a {
		if math.Abs(float64(b[i])) > 1.0001 {
			t.Fatalf("noisy sample %d = %v out of range", i, b[i])
		}
		if a[i] != b[i] {
			differ = true
		}
	}
	if !differ {
		t.Error("noise had no effect")
	}

	noisy.apply(Parameters{Noise: floatPtr(0), Trigger: TriggerHard})
	quiet.apply(Parameters{Trigger: TriggerHard})
	a, b = render(quiet, 64), render(noisy, 64)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs after disabling noise", i)
		}
	}
}

func TestFMGeneratorEnvelopeCurve(t *testing.T) {
	ch := config.Channel{ID: 1, Kind: config.KindFM, Frequency: 220, Ratio: 2}
	tests := []struct {
		level float64
		want  float32
	}{
		{-1, 0},
		{0, 0},
		{0.25, 0.1},
		{0.5, 0.5},
		{1, 1},
		{4, 1},
	}
	for _, tt := range tests {
		g, err := newGenerator(ch, testSampleRate)
		if err != nil {
			t.Fatal(err)
		}
		g.apply(Parameters{ModEnvelope: floatPtr(tt.level)})
		if got := g.(*fmGenerator).voice.ModEnvelope(); math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("mod_envelope %v: voice envelope %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestRecurrenceGenerator(t *testing.T) {
	ch := config.Channel{ID: 1, Kind: config.KindRecurrence, Frequency: 1000, Amplitude: floatPtr(0.8)}
	g, err := newGenerator(ch, testSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	render(g, 480)
	out := render(g, 480)

	rg := g.(*recurrenceGenerator)
	if math.Abs(rg.trackedFrequency()-1000) > 10 {
		t.Errorf("tracked %v Hz, want 1000", rg.trackedFrequency())
	}
	var peak float64
	for _, s := range out {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if math.Abs(peak-0.8) > 0.05 {
		t.Errorf("peak = %v, want 0.8", peak)
	}

	g.apply(Parameters{Frequency: floatPtr(testSampleRate / 4)})
	render(g, 480)
	for i, s := range render(g, 480) {
		if s != 0 {
			t.Fatalf("sample %d = %v above the recurrence limit", i, s)
		}
	}
}

func TestSineGeneratorClampsToNyquist(t *testing.T) {
	ch := config.Channel{ID: 1, Kind: config.KindSine, Frequency: 30000, Amplitude: floatPtr(1)}
	g, _ := newGenerator(ch, testSampleRate)
	if got := g.frequency(); got != testSampleRate/2 {
		t.Errorf("frequency = %v, want Nyquist", got)
	}
}
