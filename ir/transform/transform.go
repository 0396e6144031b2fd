package transform

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/coreir/ir"
)

// Transform is a pass over a module.
//
// Run reads its options from inputs and may add side results to outputs.
// A pass either completes or leaves the module in an unspecified state.
type Transform interface {
	Name() string
	Run(m *ir.Module, inputs, outputs *DataMap) error
}

// pass adapts a function to the Transform interface.
type pass struct {
	name string
	run  func(m *ir.Module, inputs, outputs *DataMap) error
}

func (p *pass) Name() string { return p.name }

func (p *pass) Run(m *ir.Module, inputs, outputs *DataMap) (err error) {
	defer ir.Recover(&err)
	if m == nil {
		return fmt.Errorf("%s: nil module", p.name)
	}
	return p.run(m, inputs, outputs)
}

// withoutOptions wraps a pass function that takes no options.
func withoutOptions(name string, fn func(*ir.Module) error) Transform {
	return &pass{name: name, run: func(m *ir.Module, _, _ *DataMap) error { return fn(m) }}
}

// withOptions wraps a pass function configured by a value of type T read
// from the inputs. defaults is used when the inputs hold no T.
func withOptions[T any](name string, defaults T, fn func(*ir.Module, T) error) Transform {
	return &pass{name: name, run: func(m *ir.Module, inputs, _ *DataMap) error {
		cfg, ok := Get[T](inputs)
		if !ok {
			cfg = defaults
		}
		return fn(m, cfg)
	}}
}

// builtins lists the passes of this package in declaration order.
var builtins []Transform

func register(t Transform) Transform {
	builtins = append(builtins, t)
	return t
}

// Registry maps pass names to passes.
type Registry struct {
	passes map[string]Transform
}

// NewRegistry returns a registry holding passes.
func NewRegistry(passes ...Transform) (*Registry, error) {
	r := &Registry{passes: make(map[string]Transform, len(passes))}
	for _, t := range passes {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a new registry holding the passes of this package.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(builtins...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds t. Names must be unique.
func (r *Registry) Register(t Transform) error {
	name := t.Name()
	if name == "" {
		return errors.New("transform: pass has no name")
	}
	if _, dup := r.passes[name]; dup {
		return fmt.Errorf("transform: pass %q is already registered", name)
	}
	r.passes[name] = t
	return nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.passes))
	for name := range r.passes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the pass registered as name.
func (r *Registry) Lookup(name string) (Transform, bool) {
	t, ok := r.passes[name]
	return t, ok
}
