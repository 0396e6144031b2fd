// Package backend defines the egress boundary of the IR: a Generator turns a
// valid module into target output.
//
// Generators are looked up through an explicit Registry. There is no
// package-level registry; callers build one with NewRegistry or Default and
// pass it where it is needed.
//
// Two generators are built in:
//   - "text" emits the disassembly (see ir.Disassemble);
//   - "cir" emits the binary encoding of package ir/binary.
//
// Every generator refuses a module that fails validation.
package backend

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/coreir/ir"
)

// ErrUnknownGenerator is returned for a generator name that is not registered.
var ErrUnknownGenerator = errors.New("backend: unknown generator")

// Options configures code generation.
type Options struct {
	// Style decorates the text generator's output. The zero Style emits
	// plain text.
	Style ir.Style

	// EntryPoint, if set, must name an entry point of the module.
	EntryPoint string
}

// Output is the result of code generation.
type Output struct {
	// Data is the generated text or binary.
	Data []byte

	// EntryPoints lists the entry point names of the module in declaration
	// order.
	EntryPoints []string
}

// Generator produces target output from a module.
type Generator interface {
	// Name is the name the generator is registered under.
	Name() string
	// Generate produces output for m. It does not modify m.
	Generate(m *ir.Module, opts Options) (*Output, error)
}

// Registry maps generator names to generators.
type Registry struct {
	generators map[string]Generator
}

// NewRegistry returns a registry holding gens.
func NewRegistry(gens ...Generator) (*Registry, error) {
	r := &Registry{generators: make(map[string]Generator, len(gens))}
	for _, g := range gens {
		if err := r.Register(g); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns a new registry holding the built-in generators.
func Default() *Registry {
	r, err := NewRegistry(Text{}, Binary{})
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds g. Names must be unique.
func (r *Registry) Register(g Generator) error {
	name := g.Name()
	if name == "" {
		return errors.New("backend: generator has no name")
	}
	if _, dup := r.generators[name]; dup {
		return fmt.Errorf("backend: generator %q is already registered", name)
	}
	r.generators[name] = g
	return nil
}

// Lookup returns the generator registered as name.
func (r *Registry) Lookup(name string) (Generator, bool) {
	g, ok := r.generators[name]
	return g, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate runs the generator registered as name.
func (r *Registry) Generate(name string, m *ir.Module, opts Options) (*Output, error) {
	g, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownGenerator, name)
	}
	return g.Generate(m, opts)
}

// prepare checks that m is valid and resolves the entry points for opts.
func prepare(generator string, m *ir.Module, opts Options) ([]string, error) {
	if m == nil {
		return nil, fmt.Errorf("%s: module is nil", generator)
	}
	if err := ir.Check(m); err != nil {
		return nil, fmt.Errorf("%s: invalid module: %w", generator, err)
	}
	var eps []string
	found := opts.EntryPoint == ""
	for _, fn := range m.Functions() {
		if !fn.IsEntryPoint() {
			continue
		}
		eps = append(eps, fn.Name())
		if fn.Name() == opts.EntryPoint {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%s: entry point %q not found", generator, opts.EntryPoint)
	}
	return eps, nil
}
