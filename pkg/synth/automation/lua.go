// Package automation drives channel parameters from a Lua script. The
// script defines control(t), called once per block with the elapsed render
// time in seconds, returning a table of updates keyed by channel id:
//
//	function control(t)
//	  return { [1] = { frequency = 220 + 20 * math.sin(t), skew = 0.5 } }
//	end
package automation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/norasector/phasewave/pkg/dsp/skew"
	"github.com/norasector/phasewave/pkg/util"
)

const controlFunc = "control"

var ErrNoControl = errors.New("script does not define control(t)")

// Script is not safe for concurrent use; the engine calls it from a single
// goroutine.
type Script struct {
	L       *lua.LState
	control lua.LValue
	logger  zerolog.Logger
}

// LoadFile runs the script at path and looks up its control function.
func LoadFile(path string) (*Script, error) {
	return load(func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadString is LoadFile for inline source.
func LoadString(src string) (*Script, error) {
	return load(func(L *lua.LState) error { return L.DoString(src) })
}

func load(run func(*lua.LState) error) (*Script, error) {
	s := &Script{
		L:      lua.NewState(),
		logger: log.With().Str("component", "automation").Logger(),
	}
	s.registerGlobals()

	if err := run(s.L); err != nil {
		s.L.Close()
		return nil, fmt.Errorf("loading script: %w", err)
	}

	s.control = s.L.GetGlobal(controlFunc)
	if s.control.Type() != lua.LTFunction {
		s.L.Close()
		return nil, ErrNoControl
	}
	return s, nil
}

func (s *Script) registerGlobals() {
	L := s.L

	L.SetGlobal("midi_to_hz", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(util.MIDIToHz(float64(L.CheckNumber(1)))))
		return 1
	}))
	L.SetGlobal("hz_to_midi", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(util.HzToMIDI(float64(L.CheckNumber(1)))))
		return 1
	}))

	waveforms := L.NewTable()
	for w := skew.Waveform(0); w.Valid(); w++ {
		L.SetField(waveforms, strings.ToUpper(w.String()), lua.LNumber(w))
	}
	L.SetGlobal("WAVEFORM", waveforms)

	L.SetGlobal("TRIGGER_SOFT", lua.LNumber(1))
	L.SetGlobal("TRIGGER_HARD", lua.LNumber(2))

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		s.logger.Info().Msg(strings.Join(parts, " "))
		return 0
	}))
}

// Control calls control(elapsed) and converts the returned table. A nil
// return means no updates.
func (s *Script) Control(elapsed float64) (map[int]map[string]float64, error) {
	if err := s.L.CallByParam(lua.P{
		Fn:      s.control,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(elapsed)); err != nil {
		return nil, err
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)

	if ret == lua.LNil {
		return nil, nil
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("control returned %s, want table", ret.Type())
	}

	updates := make(map[int]map[string]float64)
	var convErr error
	tbl.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		id, ok := k.(lua.LNumber)
		if !ok || float64(id) != float64(int(id)) {
			convErr = fmt.Errorf("channel key %v is not an integer", k)
			return
		}
		values, ok := v.(*lua.LTable)
		if !ok {
			convErr = fmt.Errorf("channel %d: update is %s, want table", int(id), v.Type())
			return
		}
		params, err := toParameters(values)
		if err != nil {
			convErr = fmt.Errorf("channel %d: %w", int(id), err)
			return
		}
		updates[int(id)] = params
	})
	if convErr != nil {
		return nil, convErr
	}
	return updates, nil
}

func toParameters(values *lua.LTable) (map[string]float64, error) {
	params := make(map[string]float64)
	var err error
	values.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		name, ok := k.(lua.LString)
		if !ok {
			err = fmt.Errorf("parameter key %v is not a string", k)
			return
		}
		switch val := v.(type) {
		case lua.LNumber:
			params[string(name)] = float64(val)
		case lua.LBool:
			if val {
				params[string(name)] = 1
			} else {
				params[string(name)] = 0
			}
		default:
			err = fmt.Errorf("parameter %s is %s, want number", name, v.Type())
		}
	})
	return params, err
}

func (s *Script) Close() {
	s.L.Close()
}
