package util

import "math"

const (
	a4Frequency = 440.0
	a4Note      = 69.0
)

// MIDIToHz converts a (possibly fractional) MIDI note number to Hz.
func MIDIToHz(note float64) float64 {
	return a4Frequency * math.Pow(2, (note-a4Note)/12)
}

// HzToMIDI is the inverse of MIDIToHz. Non-positive frequencies return 0.
func HzToMIDI(freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	return a4Note + 12*math.Log2(freq/a4Frequency)
}

// Normalized returns freq as a fraction of the sample rate.
func Normalized(freq, sampleRate float64) float64 {
	return freq / sampleRate
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
