// Package shape holds the small waveshaping and curve helpers shared by the
// oscillators. Everything here is pure and allocation free.
package shape

import (
	"math"

	"github.com/chewxy/math32"
)

// Sigmoid is a normalized tunable sigmoid for x and k in [-1, 1].
// k < 0 bends toward a sigmoid, k > 0 toward its inverse, k = 0 is linear.
// See https://dhemery.github.io/DHE-Modules/technical/sigmoid/
func Sigmoid(x, k float32) float32 {
	return (x - x*k) / (k - math32.Abs(x)*2*k + 1)
}

// TanhApprox is a rational approximation of tanh. It saturates smoothly
// toward +/-1 for |x| up to about 5.
func TanhApprox(x float32) float32 {
	x2 := x * x
	num := x * (135135 + x2*(17325+x2*(378+x2)))
	den := 135135 + x2*(62370+x2*(3150+28*x2))
	return num / den
}

// TanApprox approximates tan(x) for x in [-pi/2, pi/2).
func TanApprox(x float32) float32 {
	x2 := x * x
	num := x * (0.999999492001 + x2*-0.096524608111)
	den := 1 + x2*(-0.429867256894+x2*0.009981877999)
	return num / den
}

// Curve maps (0, 1] onto a soft knee that passes through 1 at x = 1.
func Curve(x float32) float32 {
	return x / (x + (1-1/x)*(x-1))
}

// Pow4 returns x^4.
func Pow4(x float32) float32 {
	x *= x
	x *= x
	return x
}

// FastPower estimates f^(2^(n-1)) by scaling the exponent bits directly.
// Good to a few percent for positive f near 1.
func FastPower(f float32, n int) float32 {
	const one = 0x3F800000
	l := int32(math.Float32bits(f))
	l -= one
	l <<= uint(n - 1)
	l += one
	return math.Float32frombits(uint32(l))
}
