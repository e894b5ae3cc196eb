// Package fir designs windowed-sinc FIR taps for the channel post-filters.
package fir

import (
	"math"
)

// computeNTaps sizes a filter for the window's stopband attenuation and the
// requested transition width. The result is always odd.
func computeNTaps(sampleRate float64, transitionWidth float64, winType WindowType) int {
	maxAttenuation := lookupWindow(winType).attenuation
	ntaps := int(float64(maxAttenuation) * sampleRate / (22.0 * transitionWidth))
	ntaps |= 1

	return ntaps
}

// lowpassImpulse is the ideal low-pass response at tap offset n for a cutoff
// of w radians per sample.
func lowpassImpulse(n int, w float64) float64 {
	if n == 0 {
		return w / math.Pi
	}
	fn := float64(n)
	return math.Sin(fn*w) / (fn * math.Pi)
}

// design windows the ideal response and scales the taps so the gain at
// refFreq equals gain.
func design(gain, sampleRate, refFreq, transitionWidth float64, winType WindowType, ideal func(n int) float64) []float32 {
	nTaps := computeNTaps(sampleRate, transitionWidth, winType)
	w := Window(winType, nTaps)
	M := (nTaps - 1) / 2

	taps := make([]float32, nTaps)
	for i := range taps {
		taps[i] = float32(ideal(i-M) * float64(w[i]))
	}

	scale := gain / Response(taps, refFreq, sampleRate)
	for i := range taps {
		taps[i] = float32(float64(taps[i]) * scale)
	}
	return taps
}

// MakeLowPass designs a low-pass with unity gain at DC scaled by gain.
func MakeLowPass(gain, sampleRate, cutFrequency, transitionWidth float64, winType WindowType) []float32 {
	wc := 2 * math.Pi * cutFrequency / sampleRate
	return design(gain, sampleRate, 0, transitionWidth, winType, func(n int) float64 {
		return lowpassImpulse(n, wc)
	})
}

// MakeHighPass designs a high-pass with unity gain at Nyquist scaled by
// gain. With a low cutoff it serves as a DC blocker.
func MakeHighPass(gain, sampleRate, cutFrequency, transitionWidth float64, winType WindowType) []float32 {
	wc := 2 * math.Pi * cutFrequency / sampleRate
	return design(gain, sampleRate, sampleRate/2, transitionWidth, winType, func(n int) float64 {
		if n == 0 {
			return 1 - lowpassImpulse(0, wc)
		}
		return -lowpassImpulse(n, wc)
	})
}

// MakeBandPass designs a band-pass with unity gain at the band center
// scaled by gain.
func MakeBandPass(gain, sampleRate, lowCut, highCut, transitionWidth float64, winType WindowType) []float32 {
	w0 := 2 * math.Pi * lowCut / sampleRate
	w1 := 2 * math.Pi * highCut / sampleRate
	return design(gain, sampleRate, (lowCut+highCut)/2, transitionWidth, winType, func(n int) float64 {
		return lowpassImpulse(n, w1) - lowpassImpulse(n, w0)
	})
}

// Response returns the magnitude response of taps at freq Hz.
func Response(taps []float32, freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	var re, im float64
	for i, t := range taps {
		re += float64(t) * math.Cos(w*float64(i))
		im -= float64(t) * math.Sin(w*float64(i))
	}
	return math.Hypot(re, im)
}
