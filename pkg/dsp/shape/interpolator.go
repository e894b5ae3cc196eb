package shape

// Interpolator ramps a parameter linearly from its stored value to a new
// target over a block of samples. The stored value is written back as the
// ramp advances, so the next block starts where this one ended.
type Interpolator struct {
	state     *float32
	value     float32
	increment float32
}

// NewInterpolator prepares a ramp of size steps from *state to target.
func NewInterpolator(state *float32, target float32, size int) Interpolator {
	ip := Interpolator{state: state, value: *state}
	if size > 0 {
		ip.increment = (target - *state) / float32(size)
	} else {
		*state = target
		ip.value = target
	}
	return ip
}

// Next advances the ramp one step and returns the new value.
func (ip *Interpolator) Next() float32 {
	ip.value += ip.increment
	*ip.state = ip.value
	return ip.value
}

// Value returns the current value without advancing.
func (ip *Interpolator) Value() float32 {
	return ip.value
}
