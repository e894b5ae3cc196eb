package skew

import (
	"fmt"
	"strings"
)

// Waveform selects the shape rendered by an Oscillator.
type Waveform uint8

const (
	Sine Waveform = iota
	SinePM
	SineSigmoid
	SineSigmoidPM
	SineSquare
	TriSquare
	TriSaw
	RampSigmoid
	SquarePWMPolyBLEP
	TrianglePWMPolyBLEP
	SharkPWMPolyBLEP
	SquarePWM
	waveformLast
)

var waveformNames = [...]string{
	Sine:                "sine",
	SinePM:              "sine_pm",
	SineSigmoid:         "sine_sigmoid",
	SineSigmoidPM:       "sine_sigmoid_pm",
	SineSquare:          "sine_square",
	TriSquare:           "tri_square",
	TriSaw:              "tri_saw",
	RampSigmoid:         "ramp_sigmoid",
	SquarePWMPolyBLEP:   "square_pwm_polyblep",
	TrianglePWMPolyBLEP: "triangle_pwm_polyblep",
	SharkPWMPolyBLEP:    "shark_pwm_polyblep",
	SquarePWM:           "square_pwm",
}

func (w Waveform) String() string {
	if w < waveformLast {
		return waveformNames[w]
	}
	return fmt.Sprintf("Waveform(%d)", uint8(w))
}

// Valid reports whether w names a rendered waveform.
func (w Waveform) Valid() bool { return w < waveformLast }

// ParseWaveform maps a config name such as "tri_saw" to its Waveform.
func ParseWaveform(name string) (Waveform, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range waveformNames {
		if n == name {
			return Waveform(i), nil
		}
	}
	return Sine, fmt.Errorf("unknown waveform %q", name)
}

// UnmarshalYAML lets waveforms be written by name in config files.
func (w *Waveform) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	parsed, err := ParseWaveform(name)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
