package resource

import (
	"fmt"

	"github.com/roach88/simkernel/internal/ir"
)

// Kind names a dynamics type in serialized form.
func Kind(d Dynamics) string {
	switch d.(type) {
	case Linear:
		return "linear"
	case Polynomial:
		return "polynomial"
	case Discrete:
		return "discrete"
	default:
		return fmt.Sprintf("%T", d)
	}
}

// Encode renders d as an ir value. Decode(Kind(d), Encode(d)) returns d.
func Encode(d Dynamics) ir.Value {
	switch d := d.(type) {
	case Linear:
		return ir.Object{"initial": ir.Real(d.Initial), "rate": ir.Real(d.Rate)}
	case Polynomial:
		coeffs := make(ir.List, len(d.Coefficients))
		for i, c := range d.Coefficients {
			coeffs[i] = ir.Real(c)
		}
		return ir.Object{"coefficients": coeffs}
	case Discrete:
		if d.Value == nil {
			return ir.Null{}
		}
		return d.Value
	default:
		panic(fmt.Sprintf("resource: unknown dynamics %T", d))
	}
}

// Decode parses dynamics of the named kind.
func Decode(kind string, v ir.Value) (Dynamics, error) {
	switch kind {
	case "discrete":
		return Discrete{Value: v}, nil
	case "linear":
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("linear dynamics: expected object, got %s", ir.TypeName(v))
		}
		initial, err := obj.Float("initial", 0)
		if err != nil {
			return nil, fmt.Errorf("linear dynamics: %w", err)
		}
		rate, err := obj.Float("rate", 0)
		if err != nil {
			return nil, fmt.Errorf("linear dynamics: %w", err)
		}
		return Linear{Initial: initial, Rate: rate}, nil
	case "polynomial":
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("polynomial dynamics: expected object, got %s", ir.TypeName(v))
		}
		list, ok := obj["coefficients"].(ir.List)
		if !ok {
			return nil, fmt.Errorf("polynomial dynamics: missing coefficients")
		}
		coeffs := make([]float64, len(list))
		for i, c := range list {
			f, ok := ir.AsFloat(c)
			if !ok {
				return nil, fmt.Errorf("polynomial dynamics: coefficient %d is %s", i, ir.TypeName(c))
			}
			coeffs[i] = f
		}
		return Polynomial{Coefficients: coeffs}, nil
	default:
		return nil, fmt.Errorf("unknown dynamics kind %q", kind)
	}
}
