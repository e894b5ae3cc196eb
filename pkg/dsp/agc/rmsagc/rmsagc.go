// Package rmsagc levels a signal toward a target RMS.
package rmsagc

import (
	"math"
)

// RMSAGC is a root-mean-squared automatic gain controller. The running
// mean square is a one-pole average with coefficient alpha, and the applied
// gain never exceeds maxGain so silence is not amplified into noise.
type RMSAGC struct {
	alpha   float64
	beta    float64
	target  float64
	maxGain float64
	average float64
}

// NewRMSAGC returns a controller that drives the output RMS toward target.
// maxGain <= 0 means unbounded.
func NewRMSAGC(alpha, target, maxGain float64) *RMSAGC {
	if maxGain <= 0 {
		maxGain = math.Inf(1)
	}
	return &RMSAGC{
		alpha:   alpha,
		beta:    1 - alpha,
		average: 1.0,
		target:  target,
		maxGain: maxGain,
	}
}

func (r *RMSAGC) PredictOutputSize(inputSize int) int {
	return inputSize
}

// Gain returns the gain the next sample would get at the current average.
func (r *RMSAGC) Gain() float64 {
	if r.average <= 0 {
		return r.maxGain
	}
	return math.Min(r.target/math.Sqrt(r.average), r.maxGain)
}

func (r *RMSAGC) WorkBuffer(input, output []float32) int {
	for i := 0; i < len(input); i++ {
		cur := float64(input[i])
		r.average = r.beta*r.average + r.alpha*cur*cur
		output[i] = float32(r.Gain() * cur)
	}

	return len(input)
}
