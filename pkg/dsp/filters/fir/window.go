package fir

import (
	"fmt"
	"math"
	"strings"
)

type WindowType int

const (
	Hamming        WindowType = 0
	Hann           WindowType = 1
	BlackmanHarris WindowType = 2
	Blackman       WindowType = 3
)

// windowSpec is a generalized cosine window: c0 - c1·cos(x) + c2·cos(2x) - ...
type windowSpec struct {
	name string
	// attenuation is the stopband attenuation in dB, used to size filters.
	attenuation int
	coeffs      []float64
}

var windows = map[WindowType]windowSpec{
	Hamming:        {name: "hamming", attenuation: 53, coeffs: []float64{0.54, 0.46}},
	Hann:           {name: "hann", attenuation: 44, coeffs: []float64{0.5, 0.5}},
	BlackmanHarris: {name: "blackman_harris", attenuation: 92, coeffs: []float64{0.35875, 0.48829, 0.14128, 0.01168}},
	Blackman:       {name: "blackman", attenuation: 74, coeffs: []float64{0.42, 0.5, 0.08}},
}

func lookupWindow(w WindowType) windowSpec {
	spec, ok := windows[w]
	if !ok {
		return windows[Hamming]
	}
	return spec
}

// ParseWindow maps a config name such as "blackman_harris" to its type.
func ParseWindow(name string) (WindowType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for w, spec := range windows {
		if spec.name == name {
			return w, nil
		}
	}
	return Hamming, fmt.Errorf("unknown window %q", name)
}

func (w WindowType) String() string {
	if spec, ok := windows[w]; ok {
		return spec.name
	}
	return fmt.Sprintf("WindowType(%d)", int(w))
}

// UnmarshalYAML lets windows be written by name in config files.
func (w *WindowType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	parsed, err := ParseWindow(name)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Window returns ntaps coefficients of the given window. Unknown types get
// a Hamming window.
func Window(w WindowType, ntaps int) []float32 {
	return cosineSum(ntaps, lookupWindow(w).coeffs)
}

// BlackmanWindow is used for spectrum analysis as well as filter design.
func BlackmanWindow(ntaps int) []float32 {
	return Window(Blackman, ntaps)
}

func cosineSum(ntaps int, coeffs []float64) []float32 {
	ret := make([]float32, ntaps)
	if ntaps == 1 {
		ret[0] = 1
		return ret
	}
	M := float64(ntaps - 1)

	for i := range ret {
		x := 2 * math.Pi * float64(i) / M
		sign := 1.0
		var v float64
		for k, c := range coeffs {
			v += sign * c * math.Cos(float64(k)*x)
			sign = -sign
		}
		ret[i] = float32(v)
	}
	return ret
}
