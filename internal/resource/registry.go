package resource

import (
	"fmt"

	"github.com/roach88/simkernel/internal/task"
)

// Registry holds the named resources of one simulation run. Each run owns
// its own Registry, so runs in the same process never share resource
// state.
type Registry struct {
	names    []string
	real     map[string]RealResource
	discrete map[string]DiscreteResource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		real:     make(map[string]RealResource),
		discrete: make(map[string]DiscreteResource),
	}
}

// AddReal registers res. Panics if the name is taken.
func (reg *Registry) AddReal(res RealResource) {
	reg.claim(res.Name())
	reg.real[res.Name()] = res
}

// AddDiscrete registers res. Panics if the name is taken.
func (reg *Registry) AddDiscrete(res DiscreteResource) {
	reg.claim(res.Name())
	reg.discrete[res.Name()] = res
}

func (reg *Registry) claim(name string) {
	if _, ok := reg.real[name]; ok {
		panic(fmt.Sprintf("resource: %q registered twice", name))
	}
	if _, ok := reg.discrete[name]; ok {
		panic(fmt.Sprintf("resource: %q registered twice", name))
	}
	reg.names = append(reg.names, name)
}

// Names returns resource names in registration order.
func (reg *Registry) Names() []string {
	out := make([]string, len(reg.names))
	copy(out, reg.names)
	return out
}

// Len returns the number of registered resources.
func (reg *Registry) Len() int { return len(reg.names) }

// Real looks up a real resource by name.
func (reg *Registry) Real(name string) (RealResource, bool) {
	res, ok := reg.real[name]
	return res, ok
}

// Discrete looks up a discrete resource by name.
func (reg *Registry) Discrete(name string) (DiscreteResource, bool) {
	res, ok := reg.discrete[name]
	return res, ok
}

// Sample reads the current dynamics of every resource.
func (reg *Registry) Sample(r task.Reader) map[string]Dynamics {
	out := make(map[string]Dynamics, len(reg.names))
	for name, res := range reg.real {
		out[name] = res.Real(r)
	}
	for name, res := range reg.discrete {
		out[name] = res.Discrete(r)
	}
	return out
}
