package skew

import (
	"github.com/chewxy/math32"

	"github.com/norasector/phasewave/pkg/dsp/shape"
	"github.com/norasector/phasewave/pkg/dsp/wavetable"
)

const (
	twoPiRecip float32 = 1 / (2 * math32.Pi)

	sineSquareGain float32 = 10
	triSquareGain  float32 = 7.5
	pwmScale       float32 = 0.707
)

// The stateless shapes below all take a phase in [0, 1) and a skew in
// [-0.99, 0.99].

// SineShape is the plain table sine; skew is ignored.
func SineShape(phase, _ float32) float32 {
	return wavetable.Sine(phase)
}

// SinePMShape uses skew as a phase-modulation offset in cycles.
func SinePMShape(phase, skew float32) float32 {
	return wavetable.SinePM(wavetable.FixedPhase(phase), skew)
}

// SineSigmoidShape warps the phase through the tunable sigmoid before the
// table read.
func SineSigmoidShape(phase, skew float32) float32 {
	return wavetable.Sine(shape.Sigmoid(phase, -skew))
}

// SineSigmoidPMShape feeds the sigmoid-warped phase in as phase modulation.
func SineSigmoidPMShape(phase, skew float32) float32 {
	return wavetable.SinePM(wavetable.FixedPhase(phase), shape.Sigmoid(phase, -skew))
}

// SineSquareShape drives a sine into the tanh approximation; positive skew
// pushes it toward a square.
func SineSquareShape(phase, skew float32) float32 {
	return shape.TanhApprox(wavetable.Sine(phase) * (1 + skew*sineSquareGain))
}

// TriSquareShape does the same to a triangle.
func TriSquareShape(phase, skew float32) float32 {
	ramp := -1 + 2*phase
	triangle := 2 * (math32.Abs(ramp) - 0.5)
	return shape.TanhApprox(2 * triangle * (1 + skew*triSquareGain))
}

func riseFall(skew float32) (rise, fall, riseInc, fallDec float32) {
	rise = (skew + 1) * 0.5
	fall = 1 - rise
	if rise != 0 {
		riseInc = 2 / rise
	}
	if fall != 0 {
		fallDec = 2 / fall
	}
	return
}

// TriSawShape morphs triangle (skew 0) toward a rising saw (skew -> 1) or a
// falling saw (skew -> -1).
func TriSawShape(phase, skew float32) float32 {
	rise, _, riseInc, fallDec := riseFall(skew)
	if phase < rise {
		return -1 + phase*riseInc
	}
	return 1 - (phase-rise)*fallDec
}

// RampSigmoidShape bends a bipolar ramp through the sigmoid.
func RampSigmoidShape(phase, skew float32) float32 {
	return shape.Sigmoid(phase*2-1, skew)
}

// SquarePWMShape is a naive comparator; not band-limited, meant for LFOs.
func SquarePWMShape(phase, skew float32) float32 {
	if phase < (skew+1)*0.5 {
		return 1
	}
	return -1
}

// PolyBLEP returns the polynomial band-limited step correction at position
// t in [0, 1) for a phase increment in radians per sample. Only the
// intervals within one increment of the discontinuity are corrected.
func PolyBLEP(phaseInc, t float32) float32 {
	dt := phaseInc * twoPiRecip
	switch {
	case t < dt:
		t /= dt
		return t + t - t*t - 1
	case t > 1-dt:
		t = (t - 1) / dt
		return t*t + t + t + 1
	default:
		return 0
	}
}

// SawPolyBLEP is a falling band-limited saw.
func SawPolyBLEP(phase, phaseInc float32) float32 {
	out := 2*phase - 1
	out -= PolyBLEP(phaseInc, phase)
	return -out
}

// SquarePWMPolyBLEPShape is the difference of two band-limited saws offset
// by the pulse width.
func SquarePWMPolyBLEPShape(phase, skew, phaseInc float32) float32 {
	shifted := phase + (skew+1)*0.5
	shifted -= math32.Floor(shifted)
	ramp := SawPolyBLEP(phase, phaseInc)
	mod := SawPolyBLEP(shifted, phaseInc)
	return (ramp - mod) * pwmScale
}
