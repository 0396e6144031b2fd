package ir

// BinaryOp is the operation of a Binary instruction.
type BinaryOp uint8

const (
	BinaryAdd BinaryOp = iota
	BinarySubtract
	BinaryMultiply
	BinaryDivide
	BinaryModulo
	BinaryAnd
	BinaryOr
	BinaryXor
	BinaryShiftLeft
	BinaryShiftRight
	BinaryEqual
	BinaryNotEqual
	BinaryLessThan
	BinaryGreaterThan
	BinaryLessThanEqual
	BinaryGreaterThanEqual
	BinaryLogicalAnd
	BinaryLogicalOr
)

var binaryOpNames = [...]string{
	BinaryAdd:              "add",
	BinarySubtract:         "sub",
	BinaryMultiply:         "mul",
	BinaryDivide:           "div",
	BinaryModulo:           "mod",
	BinaryAnd:              "and",
	BinaryOr:               "or",
	BinaryXor:              "xor",
	BinaryShiftLeft:        "shiftl",
	BinaryShiftRight:       "shiftr",
	BinaryEqual:            "eq",
	BinaryNotEqual:         "neq",
	BinaryLessThan:         "lt",
	BinaryGreaterThan:      "gt",
	BinaryLessThanEqual:    "lte",
	BinaryGreaterThanEqual: "gte",
	BinaryLogicalAnd:       "logical-and",
	BinaryLogicalOr:        "logical-or",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "binary?"
}

// UnaryOp is the operation of a Unary instruction.
type UnaryOp uint8

const (
	UnaryComplement UnaryOp = iota
	UnaryNegation
	UnaryNot
	// UnaryAddressOf converts a reference to a pointer.
	UnaryAddressOf
	// UnaryIndirection converts a pointer to a reference.
	UnaryIndirection
)

var unaryOpNames = [...]string{
	UnaryComplement:  "complement",
	UnaryNegation:    "negation",
	UnaryNot:         "not",
	UnaryAddressOf:   "ref-to-ptr",
	UnaryIndirection: "ptr-to-ref",
}

func (op UnaryOp) String() string {
	if int(op) < len(unaryOpNames) {
		return unaryOpNames[op]
	}
	return "unary?"
}

// Binary is an arithmetic, bitwise, relational or logical operation.
type Binary struct {
	instBase
	Op BinaryOp
}

// LHS returns the left-hand operand.
func (b *Binary) LHS() Value { return b.Operand(0) }

// RHS returns the right-hand operand.
func (b *Binary) RHS() Value           { return b.Operand(1) }
func (b *Binary) FriendlyName() string { return "binary" }

// Unary is a single-operand operation.
type Unary struct {
	instBase
	Op UnaryOp
}

// Val returns the operand.
func (u *Unary) Val() Value           { return u.Operand(0) }
func (u *Unary) FriendlyName() string { return "unary" }

// Load reads the value a pointer or reference refers to.
type Load struct {
	instBase
}

// From returns the memory view being loaded.
func (l *Load) From() Value          { return l.Operand(0) }
func (l *Load) FriendlyName() string { return "load" }

// Store writes a value to memory.
type Store struct {
	instBase
}

// To returns the memory view being stored to.
func (s *Store) To() Value { return s.Operand(0) }

// From returns the stored value.
func (s *Store) From() Value          { return s.Operand(1) }
func (s *Store) FriendlyName() string { return "store" }

// LoadVectorElement reads a single element of a vector in memory.
type LoadVectorElement struct {
	instBase
}

func (l *LoadVectorElement) From() Value          { return l.Operand(0) }
func (l *LoadVectorElement) Index() Value         { return l.Operand(1) }
func (l *LoadVectorElement) FriendlyName() string { return "load_vector_element" }

// StoreVectorElement writes a single element of a vector in memory.
type StoreVectorElement struct {
	instBase
}

func (s *StoreVectorElement) To() Value            { return s.Operand(0) }
func (s *StoreVectorElement) Index() Value         { return s.Operand(1) }
func (s *StoreVectorElement) Value() Value         { return s.Operand(2) }
func (s *StoreVectorElement) FriendlyName() string { return "store_vector_element" }

// Access selects an element of a composite value, or produces a pointer to
// an element of a composite in memory.
type Access struct {
	instBase
}

// Object returns the value or memory view being indexed.
func (a *Access) Object() Value { return a.Operand(0) }

// Indices returns the index operands.
func (a *Access) Indices() []Value {
	if len(a.operands) < 1 {
		return nil
	}
	return a.operands[1:]
}

// SetIndices replaces the index operands.
func (a *Access) SetIndices(indices ...Value) {
	a.SetOperands(append([]Value{a.Object()}, indices...)...)
}

// AddIndex appends an index operand.
func (a *Access) AddIndex(idx Value)   { a.appendOperand(idx) }
func (a *Access) FriendlyName() string { return "access" }

// Var declares a variable. Its result is a pointer to the storage of the
// variable.
type Var struct {
	instBase
	BindingPoint *BindingPoint
	Attributes   IOAttributes
}

// Initializer returns the initial value, or nil.
func (v *Var) Initializer() Value { return v.Operand(0) }

// SetInitializer replaces the initial value. A nil value removes it.
func (v *Var) SetInitializer(init Value) { v.SetOperand(0, init) }
func (v *Var) FriendlyName() string      { return "var" }

// Let binds a value to a name.
type Let struct {
	instBase
}

func (l *Let) Value() Value         { return l.Operand(0) }
func (l *Let) SetValue(v Value)     { l.SetOperand(0, v) }
func (l *Let) FriendlyName() string { return "let" }

// Call is implemented by UserCall and BuiltinCall.
type Call interface {
	Instruction
	Args() []Value
	call()
}

// UserCall calls a function of the module.
type UserCall struct {
	instBase
	target *Function
}

func (c *UserCall) call()         {}
func (c *UserCall) Args() []Value { return c.operands }

// Target returns the called function.
func (c *UserCall) Target() *Function { return c.target }

// SetTarget changes the called function, maintaining the call site lists of
// the old and new targets.
func (c *UserCall) SetTarget(fn *Function) {
	if c.target != nil {
		c.target.removeCallSite(c)
	}
	c.target = fn
	if fn != nil {
		fn.callSites = append(fn.callSites, c)
	}
}

// SetArgs replaces the arguments.
func (c *UserCall) SetArgs(args ...Value) { c.SetOperands(args...) }
func (c *UserCall) FriendlyName() string  { return "call" }
func (c *UserCall) onDestroy()            { c.SetTarget(nil) }

// BuiltinCall calls a builtin function.
type BuiltinCall struct {
	instBase
	Func BuiltinFn
}

func (c *BuiltinCall) call()                 {}
func (c *BuiltinCall) Args() []Value         { return c.operands }
func (c *BuiltinCall) SetArgs(args ...Value) { c.SetOperands(args...) }
func (c *BuiltinCall) FriendlyName() string  { return c.Func.String() }

// Convert converts a value to another numeric type.
type Convert struct {
	instBase
}

func (c *Convert) Val() Value           { return c.Operand(0) }
func (c *Convert) FriendlyName() string { return "convert" }

// Construct builds a composite value from its elements.
type Construct struct {
	instBase
}

func (c *Construct) Args() []Value        { return c.operands }
func (c *Construct) FriendlyName() string { return "construct" }

// Bitcast reinterprets the bits of a value as another type.
type Bitcast struct {
	instBase
}

func (c *Bitcast) Val() Value           { return c.Operand(0) }
func (c *Bitcast) FriendlyName() string { return "bitcast" }

// Swizzle selects and reorders vector components.
type Swizzle struct {
	instBase
	Indices []uint32
}

func (s *Swizzle) Object() Value        { return s.Operand(0) }
func (s *Swizzle) FriendlyName() string { return "swizzle" }

// Discard demotes the invocation to a helper invocation.
type Discard struct {
	instBase
}

func (d *Discard) FriendlyName() string { return "discard" }

// IsSequenced reports whether inst reads or writes memory, or otherwise has
// an effect that fixes its position relative to other sequenced
// instructions.
func IsSequenced(inst Instruction) bool {
	switch inst := inst.(type) {
	case *Load, *LoadVectorElement, *Store, *StoreVectorElement, *UserCall, *Discard:
		return true
	case *BuiltinCall:
		return inst.Func.HasSideEffects()
	}
	return false
}
