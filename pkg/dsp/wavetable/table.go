// Package wavetable provides the shared sine lookup table and the
// interpolating read paths the oscillators use, including a fixed-point
// phase-modulation read.
package wavetable

import (
	"math"
	"sync"
)

const (
	// LUTBits is the number of phase bits that index the table.
	LUTBits = 9
	// LUTSize is the number of samples in one sine period.
	LUTSize = 1 << LUTBits
	// lutQuadrature extends the table by a quarter period so reads at
	// phase+0.25 stay in bounds without wrapping.
	lutQuadrature = LUTSize / 4

	maxUint32 float32 = 4294967296.0

	pmMaxIndex = 32
	pmOffset   = float32(pmMaxIndex)
	pmScale    = maxUint32 / float32(pmMaxIndex*2)
)

var (
	lutOnce sync.Once
	lutSine []float32
)

// Table returns the process-wide sine table. Entry LUTSize duplicates entry
// 0, and the table runs on for another quarter period. It is built once and
// must never be written to.
func Table() []float32 {
	lutOnce.Do(func() {
		lut := make([]float32, LUTSize+lutQuadrature+1)
		for i := range lut {
			lut[i] = float32(math.Sin(2 * math.Pi * float64(i%LUTSize) / LUTSize))
		}
		lutSine = lut
	})
	return lutSine
}

func interpolate(table []float32, index float32) float32 {
	index *= LUTSize
	integral := int32(index)
	fractional := index - float32(integral)
	a := table[integral]
	b := table[integral+1]
	return a + (b-a)*fractional
}

// Sine reads the table at phase (in cycles) with linear interpolation.
// Any phase >= 0 is accepted; the integer part is discarded.
func Sine(phase float32) float32 {
	phase -= float32(int32(phase))
	return interpolate(Table(), phase)
}

// SineNoWrap is Sine without the wrap. phase must lie in [0, 1.25).
func SineNoWrap(phase float32) float32 {
	return interpolate(Table(), phase)
}

// SinePM reads the table at a 32-bit fixed-point phase, where the full
// uint32 range is one cycle, offset by pm cycles (|pm| up to 32). The
// offset wraps with ordinary unsigned overflow.
func SinePM(phase uint32, pm float32) float32 {
	phase += uint32(int64((pm+pmOffset)*pmScale)) * pmMaxIndex * 2

	table := Table()
	integral := phase >> (32 - LUTBits)
	fractional := float32(phase<<LUTBits) / maxUint32
	a := table[integral]
	b := table[integral+1]
	return a + (b-a)*fractional
}

// SineRaw reads the table at a 32-bit fixed-point phase without
// interpolation.
func SineRaw(phase uint32) float32 {
	return Table()[phase>>(32-LUTBits)]
}

// FixedPhase converts a phase in cycles to the 32-bit fixed-point form
// taken by SinePM and SineRaw. Whole cycles wrap away.
func FixedPhase(phase float32) uint32 {
	return uint32(int64(float64(phase) * 4294967296.0))
}
