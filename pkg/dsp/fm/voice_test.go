package fm

import (
	"math"
	"testing"

	"github.com/norasector/phasewave/pkg/dsp/phasor"
	"github.com/norasector/phasewave/pkg/dsp/wavetable"
)

const testSampleRate = 48000

func TestZeroModLevelIsPlainCarrier(t *testing.T) {
	v := New(testSampleRate)
	v.SetFreq(440)
	v.SetRatio(3.5)
	v.SetFeedback(0.8)
	v.SetAmp(0.5)

	ref := phasor.New(testSampleRate, 440, 0)
	for i := 0; i < 4800; i++ {
		want := wavetable.SinePM(wavetable.FixedPhase(ref.Process()), carrierOffset) * 0.5
		got := v.Process()
		if got != want {
			t.Fatalf("sample %d: got %v, want %v", i, got, want)
		}
		cos := 0.5 * math.Cos(2*math.Pi*440*float64(i)/testSampleRate)
		if math.Abs(float64(got)-cos) > 1e-3 {
			t.Fatalf("sample %d: %v is not a cosine (%v)", i, got, cos)
		}
	}
}

func TestHardTriggerRestartsVoice(t *testing.T) {
	configure := func(v *Voice) {
		v.SetFreq(220)
		v.SetRatio(2)
		v.SetFeedback(0.6)
		v.SetModLevel(0.7)
	}
	v := New(testSampleRate)
	configure(v)
	for i := 0; i < 333; i++ {
		v.Process()
	}
	v.Trigger(true)

	fresh := New(testSampleRate)
	configure(fresh)

	first := v.Process()
	if math.Abs(float64(first)-1) > 1e-3 {
		t.Errorf("first sample after hard trigger = %v, want ~1", first)
	}
	if want := fresh.Process(); first != want {
		t.Fatalf("sample 0: triggered %v, fresh %v", first, want)
	}
	for i := 1; i < 1000; i++ {
		if got, want := v.Process(), fresh.Process(); got != want {
			t.Fatalf("sample %d: triggered %v, fresh %v", i, got, want)
		}
	}
}

func TestTriggerIsConsumedOnce(t *testing.T) {
	v := New(testSampleRate)
	v.SetFreq(1000)
	v.Trigger(true)
	v.Process()
	second := v.Process()
	if math.Abs(float64(second)-1) < 1e-3 {
		t.Errorf("second sample %v looks like another reset", second)
	}
}

func TestSoftTriggerKeepsPhase(t *testing.T) {
	a, b := New(testSampleRate), New(testSampleRate)
	for _, v := range []*Voice{a, b} {
		v.SetFreq(330)
		v.SetFeedback(0.9)
		v.SetModLevel(0)
		for i := 0; i < 100; i++ {
			v.Process()
		}
	}
	b.Trigger(false)
	for i := 0; i < 100; i++ {
		if x, y := a.Process(), b.Process(); x != y {
			t.Fatalf("sample %d: soft trigger moved the carrier: %v vs %v", i, x, y)
		}
	}
}

func TestSoftTriggerClearsFeedback(t *testing.T) {
	v := New(testSampleRate)
	v.SetFreq(330)
	v.SetFeedback(0.9)
	v.SetModLevel(1)
	for i := 0; i < 100; i++ {
		v.Process()
	}
	if v.ops[modulator2].feedback == 0 {
		t.Fatal("feedback register never charged")
	}
	// With feedback off the registers are left alone by Process, so
	// anything left in them after the trigger was not cleared.
	v.SetFeedback(0)
	phase := v.ops[carrier].phasor.Phase()
	v.Trigger(false)
	v.Process()
	for i, op := range v.ops {
		if op.feedback != 0 {
			t.Errorf("operator %d feedback = %v after soft trigger", i, op.feedback)
		}
	}
	if got := v.ops[carrier].phasor.Phase(); got <= phase {
		t.Errorf("carrier phase went from %v to %v", phase, got)
	}
}

func TestFeedbackSignMatters(t *testing.T) {
	render := func(fb float32) []float32 {
		v := New(testSampleRate)
		v.SetFreq(110)
		v.SetModLevel(1)
		v.SetFeedback(fb)
		out := make([]float32, 512)
		v.WorkBuffer(out)
		return out
	}
	pos, neg := render(0.7), render(-0.7)
	same := true
	for i := range pos {
		if pos[i] != neg[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("positive and negative feedback rendered identically")
	}
}

func TestModulationAddsHarmonics(t *testing.T) {
	const n = 4800
	render := func(level float32) []float64 {
		v := New(testSampleRate)
		v.SetFreq(100)
		v.SetRatio(1)
		v.SetModLevel(level)
		out := make([]float64, n)
		for i := range out {
			out[i] = float64(v.Process())
		}
		return out
	}
	// Energy at 200 Hz, the first sideband of a 1:1 pair.
	bin := func(x []float64, f float64) float64 {
		var re, im float64
		for i, s := range x {
			w := 2 * math.Pi * f * float64(i) / testSampleRate
			re += s * math.Cos(w)
			im -= s * math.Sin(w)
		}
		return math.Hypot(re, im) / float64(len(x))
	}
	if dry := bin(render(0), 200); dry > 1e-3 {
		t.Errorf("unmodulated voice has a 200 Hz component: %v", dry)
	}
	if wet := bin(render(0.1), 200); wet < 1e-2 {
		t.Errorf("modulated voice lacks a 200 Hz component: %v", wet)
	}
}

func TestDampingVanishesAtNyquist(t *testing.T) {
	v := New(testSampleRate)
	tests := []struct {
		freq float32
		want float32
	}{
		{0, dampingGain * 0.0625},
		{testSampleRate / 4, dampingGain * 0.00390625},
		{testSampleRate / 2, 0},
		{testSampleRate, 0},
	}
	for _, tt := range tests {
		if got := v.damping(tt.freq); math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("damping(%v) = %v, want %v", tt.freq, got, tt.want)
		}
	}
}

func TestIsEOCTracksCarrier(t *testing.T) {
	v := New(testSampleRate)
	v.SetFreq(testSampleRate / 4)
	v.SetRatio(3)
	for i := 0; i < 12; i++ {
		v.Process()
		if got := v.IsEOC(); got != (i%4 == 3) {
			t.Errorf("sample %d: IsEOC = %v", i, got)
		}
	}
}

type constant float32

func (c constant) Process() float32 { return float32(c) }

func TestNoiseModulation(t *testing.T) {
	plain := New(testSampleRate)
	noisy := New(testSampleRate)
	noisy.SetNoise(constant(1), 0)
	if a, b := plain.Process(), noisy.Process(); a != b {
		t.Fatalf("zero-level noise changed the output: %v vs %v", a, b)
	}
	noisy.SetNoise(constant(1), 0.2)
	if a, b := plain.Process(), noisy.Process(); a == b {
		t.Error("noise had no effect")
	}
}

func TestModEnvelopeGatesModulators(t *testing.T) {
	a, b := New(testSampleRate), New(testSampleRate)
	a.SetModLevel(0)
	b.SetModLevel(1)
	b.SetModEnvelope(0)
	for i := 0; i < 256; i++ {
		if x, y := a.Process(), b.Process(); x != y {
			t.Fatalf("sample %d: closed envelope still modulates: %v vs %v", i, x, y)
		}
	}
}

func TestSetterClamps(t *testing.T) {
	v := New(testSampleRate)
	v.SetFeedback(2)
	if v.Feedback() != maxFeedback {
		t.Errorf("feedback = %v", v.Feedback())
	}
	v.SetFeedback(-2)
	if v.Feedback() != -maxFeedback {
		t.Errorf("feedback = %v", v.Feedback())
	}
	v.SetRatio(-1)
	if v.Ratio() != 0 {
		t.Errorf("ratio = %v", v.Ratio())
	}
	v.SetPhase(1.5)
	if v.Phase() != 1 {
		t.Errorf("phase = %v", v.Phase())
	}
	v.SetFreq(30000)
	if v.Frequency() != 24000 {
		t.Errorf("frequency = %v", v.Frequency())
	}
	v.SetModEnvelope(3)
	if v.ModEnvelope() != 1 {
		t.Errorf("mod envelope = %v", v.ModEnvelope())
	}
}

func TestDefaults(t *testing.T) {
	v := New(testSampleRate)
	if v.Frequency() != 55 || v.Ratio() != 2 || v.Fine() != 0 || v.ModLevel() != 0 || v.Amplitude() != 1 {
		t.Errorf("unexpected defaults: %+v", v)
	}
}

func BenchmarkVoice(b *testing.B) {
	v := New(testSampleRate)
	v.SetFreq(220)
	v.SetModLevel(0.8)
	v.SetFeedback(0.4)
	buf := make([]float32, 512)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.WorkBuffer(buf)
	}
}
