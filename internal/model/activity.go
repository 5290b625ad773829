package model

import (
	"fmt"
	"slices"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
)

// ParamKind is the type of an activity parameter.
type ParamKind string

const (
	KindReal     ParamKind = "real"
	KindInt      ParamKind = "int"
	KindString   ParamKind = "string"
	KindBool     ParamKind = "bool"
	KindDuration ParamKind = "duration"
)

// Param declares one activity argument. A parameter with a nil Default is
// required.
type Param struct {
	Name    string
	Kind    ParamKind
	Default ir.Value
	OneOf   []string
}

// ActivityType is a schedulable kind of activity.
type ActivityType struct {
	Name        string
	Description string
	Params      []Param

	// New builds the task for one activity from validated arguments.
	New func(args Args) (task.Factory, error)
}

// Bind checks args against the declared parameters and fills in defaults.
// It reports every problem found, not just the first.
func (t ActivityType) Bind(args ir.Object) (ir.Object, error) {
	var problems []string
	full := make(ir.Object, len(t.Params))

	declared := make(map[string]bool, len(t.Params))
	for _, p := range t.Params {
		declared[p.Name] = true
		v, ok := args[p.Name]
		if !ok {
			if p.Default == nil {
				problems = append(problems, fmt.Sprintf("missing required argument %q", p.Name))
				continue
			}
			v = p.Default
		}
		if err := p.check(v); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		full[p.Name] = v
	}
	for _, name := range args.SortedKeys() {
		if !declared[name] {
			problems = append(problems, fmt.Sprintf("unknown argument %q", name))
		}
	}

	if len(problems) > 0 {
		return nil, &ArgumentError{Problems: problems}
	}
	return full, nil
}

func (p Param) check(v ir.Value) error {
	switch p.Kind {
	case KindReal:
		if _, ok := ir.AsFloat(v); !ok {
			return p.mismatch(v)
		}
	case KindInt:
		if _, ok := v.(ir.Int); !ok {
			return p.mismatch(v)
		}
	case KindBool:
		if _, ok := v.(ir.Bool); !ok {
			return p.mismatch(v)
		}
	case KindString:
		s, ok := v.(ir.String)
		if !ok {
			return p.mismatch(v)
		}
		if len(p.OneOf) > 0 && !slices.Contains(p.OneOf, string(s)) {
			return fmt.Errorf("argument %q: %q is not one of %v", p.Name, s, p.OneOf)
		}
	case KindDuration:
		s, ok := v.(ir.String)
		if !ok {
			return p.mismatch(v)
		}
		d, err := simtime.Parse(string(s))
		if err != nil {
			return fmt.Errorf("argument %q: %w", p.Name, err)
		}
		if d < 0 {
			return fmt.Errorf("argument %q: duration %s is negative", p.Name, d)
		}
	default:
		return fmt.Errorf("argument %q: unsupported parameter kind %q", p.Name, p.Kind)
	}
	return nil
}

func (p Param) mismatch(v ir.Value) error {
	return fmt.Errorf("argument %q: expected %s, got %s", p.Name, p.Kind, ir.TypeName(v))
}

// Args are the validated arguments of one activity. Accessors panic on
// names the activity type did not declare with the matching kind.
type Args struct {
	values ir.Object
}

// NewArgs wraps already validated values.
func NewArgs(values ir.Object) Args { return Args{values: values} }

// Object returns the arguments as an ir object.
func (a Args) Object() ir.Object { return a.values }

func (a Args) get(name string) ir.Value {
	v, ok := a.values[name]
	if !ok {
		panic(fmt.Sprintf("model: no argument %q", name))
	}
	return v
}

// Real returns a real argument. Integers are widened.
func (a Args) Real(name string) float64 {
	f, ok := ir.AsFloat(a.get(name))
	if !ok {
		panic(fmt.Sprintf("model: argument %q is not a number", name))
	}
	return f
}

func (a Args) Int(name string) int64 { return int64(a.get(name).(ir.Int)) }

func (a Args) Str(name string) string { return string(a.get(name).(ir.String)) }

func (a Args) Bool(name string) bool { return bool(a.get(name).(ir.Bool)) }

// Duration parses a duration argument.
func (a Args) Duration(name string) simtime.Duration {
	return simtime.MustParse(a.Str(name))
}
