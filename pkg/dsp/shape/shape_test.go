package shape

import (
	"math"
	"testing"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestSigmoid(t *testing.T) {
	tests := []struct {
		name string
		x, k float32
		want float32
	}{
		{"linear", 0.3, 0, 0.3},
		{"fixed point zero", 0, 0.7, 0},
		{"fixed point one", 1, 0.7, 1},
		{"fixed point minus one", -1, -0.7, -1},
		{"bends toward sigmoid", 0.5, -0.5, 0.75},
		{"bends toward inverse", 0.5, 0.5, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sigmoid(tt.x, tt.k); !near(float64(got), float64(tt.want), 1e-6) {
				t.Errorf("Sigmoid(%v, %v) = %v, want %v", tt.x, tt.k, got, tt.want)
			}
		})
	}
}

func TestTanhApprox(t *testing.T) {
	for x := -4.0; x <= 4.0; x += 0.05 {
		got := float64(TanhApprox(float32(x)))
		if !near(got, math.Tanh(x), 1e-3) {
			t.Fatalf("TanhApprox(%v) = %v, want %v", x, got, math.Tanh(x))
		}
	}
	if TanhApprox(0) != 0 {
		t.Error("TanhApprox(0) != 0")
	}
	if a, b := TanhApprox(1.3), TanhApprox(-1.3); a != -b {
		t.Errorf("not odd: %v vs %v", a, b)
	}
}

func TestTanApprox(t *testing.T) {
	for _, x := range []float64{-1.2, -0.5, 0, 0.5, 1.2} {
		got := float64(TanApprox(float32(x)))
		if !near(got, math.Tan(x), 1e-4*math.Max(1, math.Abs(math.Tan(x)))) {
			t.Errorf("TanApprox(%v) = %v, want %v", x, got, math.Tan(x))
		}
	}
}

func TestCurve(t *testing.T) {
	tests := []struct{ x, want float32 }{
		{1, 1},
		{0.5, 0.5},
		{0.25, 0.1},
	}
	for _, tt := range tests {
		if got := Curve(tt.x); !near(float64(got), float64(tt.want), 1e-6) {
			t.Errorf("Curve(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestPow4(t *testing.T) {
	if got := Pow4(-2); got != 16 {
		t.Errorf("Pow4(-2) = %v", got)
	}
	if got := Pow4(0.5); got != 0.0625 {
		t.Errorf("Pow4(0.5) = %v", got)
	}
}

func TestFastPower(t *testing.T) {
	tests := []struct {
		f    float32
		n    int
		want float64
	}{
		{1, 3, 1},
		{1.1, 2, 1.21},
		{1.05, 3, 1.2155},
		{0.9, 2, 0.81},
	}
	for _, tt := range tests {
		got := float64(FastPower(tt.f, tt.n))
		if !near(got, tt.want, 0.02*tt.want) {
			t.Errorf("FastPower(%v, %d) = %v, want ~%v", tt.f, tt.n, got, tt.want)
		}
	}
}

func TestInterpolatorRamp(t *testing.T) {
	state := float32(0)
	ip := NewInterpolator(&state, 1, 4)
	want := []float32{0.25, 0.5, 0.75, 1}
	for i, w := range want {
		if got := ip.Next(); !near(float64(got), float64(w), 1e-6) {
			t.Errorf("step %d: got %v, want %v", i, got, w)
		}
	}
	if !near(float64(state), 1, 1e-6) {
		t.Errorf("state not written back: %v", state)
	}
	if ip.Value() != state {
		t.Errorf("Value() = %v, state = %v", ip.Value(), state)
	}
}

func TestInterpolatorZeroSizeJumps(t *testing.T) {
	state := float32(0.2)
	ip := NewInterpolator(&state, 0.9, 0)
	if state != 0.9 || ip.Value() != 0.9 {
		t.Errorf("state %v value %v, want 0.9", state, ip.Value())
	}
	if got := ip.Next(); got != 0.9 {
		t.Errorf("Next() after jump = %v", got)
	}
}
