package fir

import (
	"math"
	"testing"
)

const testSampleRate = 48000

func TestComputeNTapsIsOdd(t *testing.T) {
	for _, w := range []WindowType{Hamming, Hann, Blackman, BlackmanHarris} {
		for _, tw := range []float64{100, 333, 1000, 2500} {
			if n := computeNTaps(testSampleRate, tw, w); n%2 != 1 {
				t.Errorf("%v transition %v: %d taps", w, tw, n)
			}
		}
	}
}

func TestWindowsAreSymmetric(t *testing.T) {
	for _, w := range []WindowType{Hamming, Hann, Blackman, BlackmanHarris} {
		taps := Window(w, 101)
		for i := 0; i < len(taps)/2; i++ {
			if math.Abs(float64(taps[i]-taps[len(taps)-1-i])) > 1e-6 {
				t.Fatalf("%v not symmetric at %d", w, i)
			}
		}
		if mid := taps[50]; math.Abs(float64(mid)-1) > 1e-3 {
			t.Errorf("%v peak = %v, want 1", w, mid)
		}
	}
}

func TestFilterResponses(t *testing.T) {
	tests := []struct {
		name string
		taps []float32
		pass []float64
		stop []float64
		// maxStop is the largest gain allowed in the stopband.
		maxStop float64
	}{
		{
			name: "lowpass",
			taps: MakeLowPass(1, testSampleRate, 4000, 1000, Hamming),
			pass: []float64{0, 1000, 3000},
			stop: []float64{6000, 12000, 20000},
			maxStop: 0.01,
		},
		{
			name: "highpass",
			taps: MakeHighPass(1, testSampleRate, 40, 40, Hann),
			pass: []float64{500, 5000, 24000},
			stop: []float64{0},
			maxStop: 0.02,
		},
		{
			name: "bandpass",
			taps: MakeBandPass(1, testSampleRate, 1000, 4000, 500, Blackman),
			pass: []float64{2000, 2500, 3000},
			stop: []float64{0, 8000, 16000},
			maxStop: 0.001,
		},
		{
			name: "blackman harris lowpass",
			taps: MakeLowPass(1, testSampleRate, 8000, 2000, BlackmanHarris),
			pass: []float64{0, 4000},
			stop: []float64{12000, 20000},
			maxStop: 0.0001,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, f := range tt.pass {
				if g := Response(tt.taps, f, testSampleRate); math.Abs(g-1) > 0.05 {
					t.Errorf("passband %v Hz gain %v", f, g)
				}
			}
			for _, f := range tt.stop {
				if g := Response(tt.taps, f, testSampleRate); g > tt.maxStop {
					t.Errorf("stopband %v Hz gain %v", f, g)
				}
			}
		})
	}
}

func TestUnknownWindowFallsBackToHamming(t *testing.T) {
	got := Window(WindowType(42), 33)
	want := Window(Hamming, 33)
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("tap %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseWindow(t *testing.T) {
	for want, spec := range windows {
		name := spec.name
		got, err := ParseWindow(name)
		if err != nil || got != want {
			t.Errorf("ParseWindow(%q) = %v, %v", name, got, err)
		}
		if got.String() != name {
			t.Errorf("String() = %q, want %q", got.String(), name)
		}
	}
	if _, err := ParseWindow("kaiser"); err == nil {
		t.Error("expected error for unknown window")
	}
}
