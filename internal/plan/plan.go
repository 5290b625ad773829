// Package plan loads simulation plans: a horizon and a list of activities,
// each with a type, a start offset and arguments.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/simtime"
)

// Plan is a schedule of activities to simulate.
type Plan struct {
	Name           string
	Description    string
	Horizon        simtime.Duration
	SamplingPeriod simtime.Duration
	Activities     []Activity
}

// Activity is one planned activity instance.
type Activity struct {
	ID    string
	Type  string
	Start simtime.Duration
	Args  ir.Object
}

// Object renders the plan as an ir object, the input to its digest.
func (p *Plan) Object() ir.Object {
	acts := make(ir.List, len(p.Activities))
	for i, a := range p.Activities {
		args := a.Args
		if args == nil {
			args = ir.Object{}
		}
		acts[i] = ir.Object{
			"id":    ir.String(a.ID),
			"type":  ir.String(a.Type),
			"start": ir.Int(a.Start.Micros()),
			"args":  args,
		}
	}
	return ir.Object{
		"name":            ir.String(p.Name),
		"horizon":         ir.Int(p.Horizon.Micros()),
		"sampling_period": ir.Int(p.SamplingPeriod.Micros()),
		"activities":      acts,
	}
}

// Digest returns the content digest of the plan.
func (p *Plan) Digest() (string, error) {
	return ir.PlanDigest(p.Object())
}

type yamlPlan struct {
	Name           string           `yaml:"name"`
	Description    string           `yaml:"description"`
	Horizon        simtime.Duration `yaml:"horizon"`
	SamplingPeriod simtime.Duration `yaml:"sampling_period"`
	Activities     []yamlActivity   `yaml:"activities"`
}

type yamlActivity struct {
	ID    string           `yaml:"id"`
	Type  string           `yaml:"type"`
	Start simtime.Duration `yaml:"start"`
	Args  map[string]any   `yaml:"args"`
}

// Parse decodes a YAML plan. Unknown fields are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw yamlPlan
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse plan: empty document")
		}
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return raw.plan()
}

// Load reads and parses a YAML plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func (raw yamlPlan) plan() (*Plan, error) {
	p := &Plan{
		Name:           raw.Name,
		Description:    raw.Description,
		Horizon:        raw.Horizon,
		SamplingPeriod: raw.SamplingPeriod,
		Activities:     make([]Activity, 0, len(raw.Activities)),
	}
	for i, a := range raw.Activities {
		args := ir.Object{}
		if a.Args != nil {
			v, err := ir.FromAny(a.Args)
			if err != nil {
				return nil, fmt.Errorf("parse plan: activities[%d].args: %w", i, err)
			}
			args = v.(ir.Object)
		}
		p.Activities = append(p.Activities, Activity{
			ID:    a.ID,
			Type:  a.Type,
			Start: a.Start,
			Args:  args,
		})
	}
	return p, nil
}
