package rmsagc

import (
	"math"
	"testing"
)

func rms(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestConvergesToTarget(t *testing.T) {
	tests := []struct {
		name      string
		amplitude float64
		target    float64
	}{
		{"boost quiet", 0.05, 0.5},
		{"cut loud", 0.9, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agc := NewRMSAGC(0.001, tt.target, 0)
			in := make([]float32, 48000)
			for i := range in {
				in[i] = float32(tt.amplitude * math.Sin(2*math.Pi*440*float64(i)/48000))
			}
			out := make([]float32, len(in))
			if n := agc.WorkBuffer(in, out); n != len(in) {
				t.Fatalf("WorkBuffer returned %d", n)
			}
			if got := rms(out[len(out)-4800:]); math.Abs(got-tt.target) > 0.05*tt.target {
				t.Errorf("settled rms %v, want %v", got, tt.target)
			}
		})
	}
}

func TestMaxGainLimitsSilence(t *testing.T) {
	agc := NewRMSAGC(0.1, 1, 4)
	in := make([]float32, 1000)
	in[999] = 1e-4
	out := make([]float32, len(in))
	agc.WorkBuffer(in, out)
	if g := agc.Gain(); g != 4 {
		t.Errorf("gain = %v, want capped at 4", g)
	}
	if out[999] > 4e-4+1e-9 {
		t.Errorf("output %v exceeds max gain", out[999])
	}
}
