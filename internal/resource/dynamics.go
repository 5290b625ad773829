package resource

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/simtime"
)

// Dynamics describes how a resource evolves from the instant it was read.
// It is one of Linear, Polynomial or Discrete.
type Dynamics interface {
	dynamics()
}

// RealDynamics is continuous real-valued behaviour.
type RealDynamics interface {
	Dynamics
	// ValueAt returns the value at offset t from the dynamics' origin.
	ValueAt(t simtime.Duration) float64
	// Polynomial returns the same dynamics in polynomial form.
	Polynomial() Polynomial
}

// Linear is Initial + Rate*t with t in seconds.
type Linear struct {
	Initial float64
	Rate    float64
}

// Polynomial is Σ Coefficients[i]*t^i with t in seconds. A nil coefficient
// list is the zero polynomial.
type Polynomial struct {
	Coefficients []float64
}

// Discrete holds one value until the next event changes it.
type Discrete struct {
	Value ir.Value
}

func (Linear) dynamics()     {}
func (Polynomial) dynamics() {}
func (Discrete) dynamics()   {}

// ValueAt implements RealDynamics.
func (l Linear) ValueAt(t simtime.Duration) float64 {
	return l.Initial + l.Rate*t.Seconds()
}

// Polynomial implements RealDynamics.
func (l Linear) Polynomial() Polynomial {
	return Polynomial{Coefficients: []float64{l.Initial, l.Rate}}
}

func (l Linear) String() string {
	return fmt.Sprintf("%g %+g/s", l.Initial, l.Rate)
}

// ValueAt implements RealDynamics.
func (p Polynomial) ValueAt(t simtime.Duration) float64 {
	x := t.Seconds()
	v := 0.0
	for i := len(p.Coefficients) - 1; i >= 0; i-- {
		v = v*x + p.Coefficients[i]
	}
	return v
}

// Polynomial implements RealDynamics.
func (p Polynomial) Polynomial() Polynomial { return p }

// Degree returns the index of the highest non-zero coefficient, or -1 for
// the zero polynomial.
func (p Polynomial) Degree() int {
	for i := len(p.Coefficients) - 1; i >= 0; i-- {
		if p.Coefficients[i] != 0 {
			return i
		}
	}
	return -1
}

// Linear returns p as Linear dynamics. ok is false above degree one.
func (p Polynomial) Linear() (Linear, bool) {
	if p.Degree() > 1 {
		return Linear{}, false
	}
	var l Linear
	if len(p.Coefficients) > 0 {
		l.Initial = p.Coefficients[0]
	}
	if len(p.Coefficients) > 1 {
		l.Rate = p.Coefficients[1]
	}
	return l, true
}

// Shift returns the polynomial q with q(x) = p(x + t).
func (p Polynomial) Shift(t simtime.Duration) Polynomial {
	n := len(p.Coefficients)
	if n == 0 || t == 0 {
		return p
	}
	x := t.Seconds()
	out := make([]float64, n)
	for j, c := range p.Coefficients {
		// Binomial expansion of c*(y+x)^j.
		binom := 1.0
		pow := 1.0
		for k := j; k >= 0; k-- {
			out[k] += c * binom * pow
			binom = binom * float64(k) / float64(j-k+1)
			pow *= x
		}
	}
	return Polynomial{Coefficients: out}
}

func (p Polynomial) String() string {
	if p.Degree() < 0 {
		return "0"
	}
	var terms []string
	for i, c := range p.Coefficients {
		switch {
		case c == 0:
		case i == 0:
			terms = append(terms, fmt.Sprintf("%g", c))
		case i == 1:
			terms = append(terms, fmt.Sprintf("%gt", c))
		default:
			terms = append(terms, fmt.Sprintf("%gt^%d", c, i))
		}
	}
	return strings.Join(terms, " + ")
}

func (d Discrete) String() string {
	return ir.Format(d.Value)
}

// Step returns d as seen elapsed later.
func Step(d Dynamics, elapsed simtime.Duration) Dynamics {
	switch d := d.(type) {
	case Linear:
		return Linear{Initial: d.ValueAt(elapsed), Rate: d.Rate}
	case Polynomial:
		return d.Shift(elapsed)
	case Discrete:
		return d
	default:
		panic(fmt.Sprintf("resource: unknown dynamics %T", d))
	}
}

// relTolerance bounds the floating-point drift Equivalent ignores.
const relTolerance = 1e-9

// Equivalent reports whether a and b describe the same behaviour, allowing
// for rounding introduced by stepping.
func Equivalent(a, b Dynamics) bool {
	switch a := a.(type) {
	case Discrete:
		b, ok := b.(Discrete)
		return ok && ir.Equal(a.Value, b.Value)
	case RealDynamics:
		b, ok := b.(RealDynamics)
		if !ok {
			return false
		}
		ac, bc := a.Polynomial().Coefficients, b.Polynomial().Coefficients
		n := max(len(ac), len(bc))
		ac = append(slices.Clone(ac), make([]float64, n-len(ac))...)
		bc = append(slices.Clone(bc), make([]float64, n-len(bc))...)
		for i := range n {
			if !closeEnough(ac[i], bc[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func closeEnough(a, b float64) bool {
	diff := math.Abs(a - b)
	return diff <= relTolerance || diff <= relTolerance*math.Max(math.Abs(a), math.Abs(b))
}
