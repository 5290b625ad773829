// Package compiler turns CUE plan definitions into plans and checks plans
// against a model's activity types.
package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/plan"
	"github.com/roach88/simkernel/internal/simtime"
)

// CompilePlan parses a CUE value into a Plan.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the plan struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`plan: { name: "p", horizon: "1h", activities: [...] }`)
//	p, err := CompilePlan(v.LookupPath(cue.ParsePath("plan")))
func CompilePlan(v cue.Value) (*plan.Plan, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &plan.Plan{}
	var err error

	if p.Name, err = requiredString(v, "name"); err != nil {
		return nil, err
	}
	if p.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}
	if p.Horizon, err = duration(v, "horizon", true); err != nil {
		return nil, err
	}
	if p.SamplingPeriod, err = duration(v, "sampling_period", false); err != nil {
		return nil, err
	}

	actsVal := v.LookupPath(cue.ParsePath("activities"))
	if actsVal.Exists() {
		iter, err := actsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			act, err := compileActivity(iter.Value())
			if err != nil {
				return nil, err
			}
			p.Activities = append(p.Activities, act)
		}
	}

	return p, nil
}

// CompileFile compiles the top-level `plan` field of a CUE file.
func CompileFile(path string) (*plan.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	planVal := v.LookupPath(cue.ParsePath("plan"))
	if !planVal.Exists() {
		return nil, &CompileError{
			Field:   "plan",
			Message: "no top-level plan field",
			Pos:     v.Pos(),
		}
	}
	return CompilePlan(planVal)
}

func compileActivity(v cue.Value) (plan.Activity, error) {
	var act plan.Activity
	var err error

	if act.ID, err = requiredString(v, "id"); err != nil {
		return act, err
	}
	if act.Type, err = requiredString(v, "type"); err != nil {
		return act, err
	}
	if act.Start, err = duration(v, "start", false); err != nil {
		return act, err
	}

	act.Args = ir.Object{}
	argsVal := v.LookupPath(cue.ParsePath("args"))
	if argsVal.Exists() {
		args, err := toValue(argsVal)
		if err != nil {
			return act, err
		}
		obj, ok := args.(ir.Object)
		if !ok {
			return act, &CompileError{Field: "args", Message: "args must be a struct", Pos: argsVal.Pos()}
		}
		act.Args = obj
	}
	return act, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// duration reads a field holding either a duration string or an integer
// microsecond count.
func duration(v cue.Value, field string, required bool) (simtime.Duration, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		if required {
			return 0, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
		}
		return 0, nil
	}
	switch fv.IncompleteKind() {
	case cue.IntKind:
		n, err := fv.Int64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		return simtime.Duration(n), nil
	case cue.StringKind:
		s, err := fv.String()
		if err != nil {
			return 0, formatCUEError(err)
		}
		d, err := simtime.Parse(s)
		if err != nil {
			return 0, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
		}
		return d, nil
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("expected duration string or integer, got %v", fv.IncompleteKind()),
			Pos:     fv.Pos(),
		}
	}
}

// toValue converts a concrete CUE value into an ir value.
func toValue(v cue.Value) (ir.Value, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.FromAny(f)
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		list := ir.List{}
		for iter.Next() {
			elem, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, elem)
		}
		return list, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.Object{}
		for iter.Next() {
			elem, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   "args",
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError is a plan compilation failure with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
