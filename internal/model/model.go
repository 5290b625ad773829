// Package model describes mission models: the cells a simulation tracks,
// the activity types a plan may schedule, and the daemons that run for the
// whole of every simulation.
//
// A Model is built fresh for every run by its Constructor, so that two runs
// never share cells, caches, or registries.
package model

import (
	"fmt"
	"slices"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/task"
	"github.com/roach88/simkernel/internal/timeline"
)

// Model is one instance of a mission model, owned by a single run.
type Model struct {
	Name       string
	Schema     *timeline.Schema
	Resources  *resource.Registry
	Activities *Registry
	Daemons    []Daemon
}

// Daemon is a task started at time zero of every run.
type Daemon struct {
	Name    string
	Factory task.Factory
}

// Constructor builds a fresh Model.
type Constructor func() *Model

// Registry holds the activity types of a model.
type Registry struct {
	types map[string]ActivityType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]ActivityType)}
}

// Register adds an activity type.
//
// Panics on a duplicate or unnamed type.
func (r *Registry) Register(t ActivityType) {
	if t.Name == "" {
		panic("model: activity type without a name")
	}
	if _, dup := r.types[t.Name]; dup {
		panic(fmt.Sprintf("model: activity type %q registered twice", t.Name))
	}
	if t.New == nil {
		panic(fmt.Sprintf("model: activity type %q has no constructor", t.Name))
	}
	r.types[t.Name] = t
}

// Lookup returns the named activity type.
func (r *Registry) Lookup(name string) (ActivityType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Names returns every registered type name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Instantiate validates args against the named type and builds the task
// factory for one activity. Failures are InstantiationErrors naming id.
func (r *Registry) Instantiate(id, typeName string, args ir.Object) (task.Factory, ir.Object, error) {
	t, ok := r.types[typeName]
	if !ok {
		return nil, nil, &InstantiationError{ActivityID: id, Type: typeName, Err: ErrUnknownType}
	}
	full, err := t.Bind(args)
	if err != nil {
		return nil, nil, &InstantiationError{ActivityID: id, Type: typeName, Err: err}
	}
	factory, err := t.New(Args{values: full})
	if err != nil {
		return nil, nil, &InstantiationError{ActivityID: id, Type: typeName, Err: err}
	}
	return factory, full, nil
}

// Catalog maps model names to constructors.
type Catalog struct {
	constructors map[string]Constructor
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{constructors: make(map[string]Constructor)}
}

// Add registers a constructor under name. Panics on duplicates.
func (c *Catalog) Add(name string, ctor Constructor) {
	if _, dup := c.constructors[name]; dup {
		panic(fmt.Sprintf("model: model %q added twice", name))
	}
	c.constructors[name] = ctor
}

// Lookup returns the constructor for name.
func (c *Catalog) Lookup(name string) (Constructor, error) {
	ctor, ok := c.constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (available: %v)", name, c.Names())
	}
	return ctor, nil
}

// Names returns every model name, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.constructors))
	for name := range c.constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
