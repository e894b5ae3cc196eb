package synth

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/norasector/phasewave/pkg/dsp/skew"
	"github.com/norasector/phasewave/pkg/util"
)

var (
	ErrUnknownParameter     = errors.New("unknown parameter")
	ErrConflictingParameter = errors.New("conflicting parameters")
)

type TriggerKind int

const (
	TriggerNone TriggerKind = iota
	TriggerSoft
	TriggerHard
)

// Parameters is a partial update for one channel. Nil fields are left
// unchanged; fields that do not apply to the channel's kind are ignored.
type Parameters struct {
	Frequency   *float64
	Amplitude   *float64
	Phase       *float64
	Skew        *float64
	Waveform    *skew.Waveform
	Ratio       *float64
	Fine        *float64
	Feedback    *float64
	ModLevel    *float64
	ModEnvelope *float64
	Noise       *float64
	Trigger     TriggerKind
}

func floatPtr(v float64) *float64 { return &v }

// Merge overlays every field set in o. The stronger trigger wins.
func (p *Parameters) Merge(o Parameters) {
	for _, f := range []struct {
		dst **float64
		src *float64
	}{
		{&p.Frequency, o.Frequency},
		{&p.Amplitude, o.Amplitude},
		{&p.Phase, o.Phase},
		{&p.Skew, o.Skew},
		{&p.Ratio, o.Ratio},
		{&p.Fine, o.Fine},
		{&p.Feedback, o.Feedback},
		{&p.ModLevel, o.ModLevel},
		{&p.ModEnvelope, o.ModEnvelope},
		{&p.Noise, o.Noise},
	} {
		if f.src != nil {
			*f.dst = floatPtr(*f.src)
		}
	}
	if o.Waveform != nil {
		w := *o.Waveform
		p.Waveform = &w
	}
	if o.Trigger > p.Trigger {
		p.Trigger = o.Trigger
	}
}

// ParameterNames lists the keys accepted by ParametersFromMap.
func ParameterNames() []string {
	names := make([]string, 0, len(parameterSetters))
	for name := range parameterSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var parameterSetters = map[string]func(p *Parameters, v float64){
	"frequency":    func(p *Parameters, v float64) { p.Frequency = floatPtr(v) },
	"note":         func(p *Parameters, v float64) { p.Frequency = floatPtr(util.MIDIToHz(v)) },
	"amplitude":    func(p *Parameters, v float64) { p.Amplitude = floatPtr(v) },
	"phase":        func(p *Parameters, v float64) { p.Phase = floatPtr(v) },
	"skew":         func(p *Parameters, v float64) { p.Skew = floatPtr(v) },
	"ratio":        func(p *Parameters, v float64) { p.Ratio = floatPtr(v) },
	"fine":         func(p *Parameters, v float64) { p.Fine = floatPtr(v) },
	"feedback":     func(p *Parameters, v float64) { p.Feedback = floatPtr(v) },
	"mod_level":    func(p *Parameters, v float64) { p.ModLevel = floatPtr(v) },
	"mod_envelope": func(p *Parameters, v float64) { p.ModEnvelope = floatPtr(v) },
	"noise":        func(p *Parameters, v float64) { p.Noise = floatPtr(v) },
	"waveform": func(p *Parameters, v float64) {
		w := skew.Waveform(v)
		if v < 0 || !w.Valid() {
			w = skew.Sine
		}
		p.Waveform = &w
	},
	"trigger": func(p *Parameters, v float64) {
		switch {
		case v >= float64(TriggerHard):
			p.Trigger = TriggerHard
		case v >= float64(TriggerSoft):
			p.Trigger = TriggerSoft
		}
	},
}

// ParametersFromMap converts named values, as produced by automation
// scripts, into an update. note and frequency both set the pitch, so only
// one of them may be given.
func ParametersFromMap(values map[string]float64) (Parameters, error) {
	_, hasNote := values["note"]
	_, hasFreq := values["frequency"]
	if hasNote && hasFreq {
		return Parameters{}, fmt.Errorf("%w: note and frequency", ErrConflictingParameter)
	}

	var p Parameters
	for name, v := range values {
		set, ok := parameterSetters[name]
		if !ok {
			return Parameters{}, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
		}
		set(&p, v)
	}
	return p, nil
}

// ParameterBank collects updates from any goroutine until the render loop
// drains them at a block boundary.
type ParameterBank struct {
	mu      sync.Mutex
	pending map[int]Parameters
}

func NewParameterBank() *ParameterBank {
	return &ParameterBank{pending: make(map[int]Parameters)}
}

func (b *ParameterBank) Queue(channelID int, p Parameters) {
	b.mu.Lock()
	cur := b.pending[channelID]
	cur.Merge(p)
	b.pending[channelID] = cur
	b.mu.Unlock()
}

func (b *ParameterBank) QueueAll(updates map[int]Parameters) {
	for id, p := range updates {
		b.Queue(id, p)
	}
}

// Drain returns every pending update and clears the bank.
func (b *ParameterBank) Drain() map[int]Parameters {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	ret := b.pending
	b.pending = make(map[int]Parameters)
	return ret
}
