// Package analysis measures level and pitch of rendered blocks.
package analysis

import (
	"math"
	"math/cmplx"
	"sort"

	dspfft "github.com/mjibson/go-dsp/fft"

	"github.com/norasector/phasewave/pkg/dsp/filters/fir"
)

// Stats summarizes one analysis window.
type Stats struct {
	Peak              float64
	RMS               float64
	DominantFrequency float64
}

// Level returns the absolute peak and the RMS of samples.
func Level(samples []float32) (peak, rms float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		if a := math.Abs(v); a > peak {
			peak = a
		}
		sum += v * v
	}
	return peak, math.Sqrt(sum / float64(len(samples)))
}

func nextRadix(size int) int {
	radix := 16

	for {
		if size > radix {
			radix *= 2
		} else {
			return radix
		}
	}
}

// MagnitudeSpectrum windows samples, zero pads them to a power of two and
// returns the magnitudes of bins 0 through N/2 along with N.
func MagnitudeSpectrum(samples []float32) ([]float64, int) {
	size := nextRadix(len(samples))
	buf := make([]float64, size)
	win := fir.BlackmanWindow(len(samples))
	for i, s := range samples {
		buf[i] = float64(s) * float64(win[i])
	}

	result := dspfft.FFTReal(buf)
	mags := make([]float64, size/2+1)
	for i := range mags {
		mags[i] = cmplx.Abs(result[i])
	}
	return mags, size
}

// DominantFrequency returns the frequency in Hz of the strongest bin above
// DC, refined by parabolic interpolation. Silence returns 0.
func DominantFrequency(samples []float32, sampleRate int) float64 {
	if len(samples) < 4 {
		return 0
	}
	mags, size := MagnitudeSpectrum(samples)

	best := 0
	for i := 1; i < len(mags); i++ {
		if mags[i] > mags[best] {
			best = i
		}
	}
	if best == 0 || mags[best] == 0 {
		return 0
	}

	offset := 0.0
	if best < len(mags)-1 {
		a, b, c := mags[best-1], mags[best], mags[best+1]
		if den := a - 2*b + c; den != 0 {
			offset = 0.5 * (a - c) / den
		}
	}
	return (float64(best) + offset) * float64(sampleRate) / float64(size)
}

type indexedSample struct {
	index int
	value float64
}

type indexedSamples []indexedSample

func (i indexedSamples) Len() int {
	return len(i)
}

// sort in reverse order
func (is indexedSamples) Less(i, j int) bool {
	return is[i].value > is[j].value
}

func (is indexedSamples) Swap(i, j int) {
	is[i], is[j] = is[j], is[i]
}

// Peaks returns the indexes of up to numPeaks local maxima, strongest
// first. A bin is a peak when it is the largest within windowSize/2 bins on
// either side.
func Peaks(spectrum []float64, numPeaks, windowSize int) []int {
	if windowSize < 3 {
		windowSize = 3
	}
	half := windowSize / 2
	peaks := make(indexedSamples, 0)
	for i := range spectrum {
		lo, hi := i-half, i+half
		if lo < 0 {
			lo = 0
		}
		if hi > len(spectrum)-1 {
			hi = len(spectrum) - 1
		}
		isPeak := spectrum[i] > 0
		for j := lo; j <= hi && isPeak; j++ {
			if j != i && spectrum[j] >= spectrum[i] {
				isPeak = false
			}
		}
		if isPeak {
			peaks = append(peaks, indexedSample{index: i, value: spectrum[i]})
		}
	}

	sort.Sort(peaks)

	ret := make([]int, 0, numPeaks)
	for i := 0; i < numPeaks && i < len(peaks); i++ {
		ret = append(ret, peaks[i].index)
	}

	return ret
}
