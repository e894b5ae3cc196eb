package automation

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/norasector/phasewave/pkg/dsp/skew"
)

const sweep = `
function control(t)
  if t < 1 then
    return { [1] = { frequency = 100 + 100 * t, skew = 0.25 }, [2] = { note = 69 } }
  end
  return { [1] = { waveform = WAVEFORM.TRI_SAW, trigger = TRIGGER_HARD } }
end
`

func TestControl(t *testing.T) {
	s, err := LoadString(sweep)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	updates, err := s.Control(0.5)
	if err != nil {
		t.Fatal(err)
	}
	if got := updates[1]["frequency"]; got != 150 {
		t.Errorf("frequency = %v, want 150", got)
	}
	if got := updates[1]["skew"]; got != 0.25 {
		t.Errorf("skew = %v, want 0.25", got)
	}
	if got := updates[2]["note"]; got != 69 {
		t.Errorf("note = %v, want 69", got)
	}

	updates, err = s.Control(2)
	if err != nil {
		t.Fatal(err)
	}
	if got := updates[1]["waveform"]; got != float64(skew.TriSaw) {
		t.Errorf("waveform = %v, want %d", got, skew.TriSaw)
	}
	if got := updates[1]["trigger"]; got != 2 {
		t.Errorf("trigger = %v, want 2", got)
	}
}

func TestHelpers(t *testing.T) {
	s, err := LoadString(`
function control(t)
  return { [3] = { frequency = midi_to_hz(57), ratio = hz_to_midi(880), trigger = true } }
end`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	updates, err := s.Control(0)
	if err != nil {
		t.Fatal(err)
	}
	if got := updates[3]["frequency"]; math.Abs(got-220) > 1e-9 {
		t.Errorf("midi_to_hz(57) = %v", got)
	}
	if got := updates[3]["ratio"]; math.Abs(got-81) > 1e-9 {
		t.Errorf("hz_to_midi(880) = %v", got)
	}
	if got := updates[3]["trigger"]; got != 1 {
		t.Errorf("trigger = %v", got)
	}
}

func TestNilReturn(t *testing.T) {
	s, err := LoadString(`function control(t) print("tick", t) end`)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	updates, err := s.Control(0)
	if err != nil || updates != nil {
		t.Errorf("got %v, %v", updates, err)
	}
}

func TestErrors(t *testing.T) {
	if _, err := LoadString(`x = 1`); !errors.Is(err, ErrNoControl) {
		t.Errorf("missing control: %v", err)
	}
	if _, err := LoadString(`function control(t`); err == nil {
		t.Error("syntax error accepted")
	}

	tests := []struct {
		name string
		src  string
	}{
		{"runtime error", `function control(t) error("boom") end`},
		{"non table", `function control(t) return 5 end`},
		{"string key", `function control(t) return { lead = { frequency = 1 } } end`},
		{"fractional key", `function control(t) return { [1.5] = { frequency = 1 } } end`},
		{"string value", `function control(t) return { [1] = { frequency = "high" } } end`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := LoadString(tt.src)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if _, err := s.Control(0); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.lua")
	if err := os.WriteFile(path, []byte(sweep), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
}
