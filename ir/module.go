package ir

import "strconv"

// Module is the top-level container of the IR. It owns every type,
// constant, value, instruction, block and function reachable from it.
type Module struct {
	// Types interns the types used by the module.
	Types *TypeManager
	// Constants interns the constant values used by the module.
	Constants *ConstantManager
	// Capabilities relax the rules the validator applies to the module.
	Capabilities Capabilities

	root      *Block
	functions []*Function
	constants map[ConstValue]*Constant

	symbols   map[string]struct{}
	names     map[Value]string
	namedFns  map[string]*Function
	allocated arena
}

// Capabilities is a set of relaxations of the core IR rules.
type Capabilities uint8

const (
	// AllowRefTypes permits variables and accesses to produce reference
	// types.
	AllowRefTypes Capabilities = 1 << iota
)

// Has reports whether every capability of c is set.
func (caps Capabilities) Has(c Capabilities) bool { return caps&c == c }

// arena records every allocation in creation order so that passes and the
// validator can enumerate them without walking the control-flow tree.
type arena struct {
	instructions []Instruction
	blocks       []*Block
	values       []Value
}

// NewModule creates an empty module.
func NewModule() *Module {
	types := NewTypeManager()
	return &Module{
		Types:     types,
		Constants: NewConstantManager(types),
		constants: make(map[ConstValue]*Constant),
		symbols:   make(map[string]struct{}),
		names:     make(map[Value]string),
		namedFns:  make(map[string]*Function),
	}
}

// RootBlock returns the block holding module-scope variables, creating it
// on first use.
func (m *Module) RootBlock() *Block {
	if m.root == nil {
		m.root = m.newBlock(false)
	}
	return m.root
}

// HasRootBlock reports whether the root block has been created.
func (m *Module) HasRootBlock() bool { return m.root != nil }

// Functions returns the functions in declaration order.
func (m *Module) Functions() []*Function { return m.functions }

// AddFunction appends fn to the function list.
func (m *Module) AddFunction(fn *Function) { m.functions = append(m.functions, fn) }

// SetFunctions replaces the function list.
func (m *Module) SetFunctions(fns []*Function) {
	m.functions = append([]*Function(nil), fns...)
}

// RemoveFunction deletes fn from the function list.
func (m *Module) RemoveFunction(fn *Function) {
	for i, f := range m.functions {
		if f == fn {
			m.functions = append(m.functions[:i], m.functions[i+1:]...)
			break
		}
	}
	if m.namedFns[fn.name] == fn {
		delete(m.namedFns, fn.name)
		delete(m.symbols, fn.name)
	}
}

// DestroyFunction removes fn from the module and destroys its body. Calls
// made by fn stop counting as call sites of their targets.
func (m *Module) DestroyFunction(fn *Function) {
	m.RemoveFunction(fn)
	fn.block.destroyContents()
}

// FunctionByName returns the function called name.
func (m *Module) FunctionByName(name string) *Function { return m.namedFns[name] }

// Constant returns the value wrapping the constant cv. Each constant has
// exactly one value per module.
func (m *Module) Constant(cv ConstValue) *Constant {
	if c, ok := m.constants[cv]; ok {
		return c
	}
	c := &Constant{value: cv}
	m.constants[cv] = c
	m.allocated.values = append(m.allocated.values, c)
	return c
}

// OwnsConstant reports whether c was created by this module.
func (m *Module) OwnsConstant(c *Constant) bool {
	return m.constants[c.value] == c && m.Constants.Owns(c.value)
}

// uniqueName reserves and returns the first free symbol derived from name.
func (m *Module) uniqueName(name string) string {
	if _, taken := m.symbols[name]; !taken {
		m.symbols[name] = struct{}{}
		return name
	}
	for i := 1; ; i++ {
		candidate := name + "_" + strconv.Itoa(i)
		if _, taken := m.symbols[candidate]; !taken {
			m.symbols[candidate] = struct{}{}
			return candidate
		}
	}
}

// SetName names v. If the name is already in use a numeric suffix is added.
// The name actually assigned is returned.
func (m *Module) SetName(v Value, name string) string {
	if old, ok := m.names[v]; ok {
		delete(m.symbols, old)
	}
	if name == "" {
		delete(m.names, v)
		return ""
	}
	unique := m.uniqueName(name)
	m.names[v] = unique
	return unique
}

// NameOf returns the name of v, or "".
func (m *Module) NameOf(v Value) string { return m.names[v] }

// SetFunctionName renames fn, releasing its old name. If the name is already
// in use a numeric suffix is added. The name actually assigned is returned.
func (m *Module) SetFunctionName(fn *Function, name string) string {
	if fn.name != "" && m.namedFns[fn.name] == fn {
		delete(m.namedFns, fn.name)
		delete(m.symbols, fn.name)
	}
	fn.name = m.uniqueName(name)
	m.namedFns[fn.name] = fn
	return fn.name
}

// Instructions returns every live instruction allocated by the module in
// creation order, including detached ones.
func (m *Module) Instructions() []Instruction {
	out := make([]Instruction, 0, len(m.allocated.instructions))
	for _, inst := range m.allocated.instructions {
		if inst.Alive() {
			out = append(out, inst)
		}
	}
	return out
}

// Blocks returns every block allocated by the module in creation order.
func (m *Module) Blocks() []*Block { return m.allocated.blocks }

// Values returns every live value allocated by the module in creation order.
func (m *Module) Values() []Value {
	out := make([]Value, 0, len(m.allocated.values))
	for _, v := range m.allocated.values {
		if v.Alive() {
			out = append(out, v)
		}
	}
	return out
}

func (m *Module) newBlock(multiIn bool) *Block {
	b := &Block{multiIn: multiIn}
	m.allocated.blocks = append(m.allocated.blocks, b)
	return b
}

func (m *Module) track(inst Instruction) {
	m.allocated.instructions = append(m.allocated.instructions, inst)
}

func (m *Module) trackValue(v Value) {
	m.allocated.values = append(m.allocated.values, v)
}
