package ir

// Usage is a single reference to a value: operand Operand of Instruction.
type Usage struct {
	Instruction Instruction
	Operand     int
}

// Value is a typed SSA value.
//
// The usage set of a value is maintained by Instruction.SetOperand and
// friends; it is never edited directly.
type Value interface {
	Type() Type
	// Usages returns the references to the value in the order they were
	// added. The returned slice must not be modified.
	Usages() []Usage
	// NumUsages returns the number of references to the value.
	NumUsages() int
	Alive() bool
	// Destroy marks the value as dead. It must have no usages.
	Destroy()

	base() *valueBase
}

type valueBase struct {
	usages []Usage
	dead   bool
}

func (v *valueBase) base() *valueBase { return v }
func (v *valueBase) Usages() []Usage  { return v.usages }
func (v *valueBase) NumUsages() int   { return len(v.usages) }
func (v *valueBase) Alive() bool      { return !v.dead }

func (v *valueBase) addUsage(u Usage) {
	v.usages = append(v.usages, u)
}

func (v *valueBase) removeUsage(u Usage) {
	for i, x := range v.usages {
		if x == u {
			copy(v.usages[i:], v.usages[i+1:])
			v.usages[len(v.usages)-1] = Usage{}
			v.usages = v.usages[:len(v.usages)-1]
			return
		}
	}
}

func (v *valueBase) destroy() {
	if len(v.usages) != 0 {
		Panicf("destroying a value that still has %d usages", len(v.usages))
	}
	v.dead = true
}

// Constant is a value holding an interned constant.
type Constant struct {
	valueBase
	value ConstValue
}

// Value returns the wrapped constant.
func (c *Constant) Value() ConstValue { return c.value }
func (c *Constant) Type() Type        { return c.value.Type() }
func (c *Constant) Destroy()          { c.destroy() }

// InstructionResult is a value produced by an instruction.
type InstructionResult struct {
	valueBase
	typ  Type
	inst Instruction
}

// Instruction returns the instruction that produces the result, or nil if
// the result is not yet attached.
func (r *InstructionResult) Instruction() Instruction { return r.inst }
func (r *InstructionResult) Type() Type               { return r.typ }

// SetType changes the type of the result.
func (r *InstructionResult) SetType(t Type) { r.typ = t }
func (r *InstructionResult) Destroy()       { r.destroy() }

// FunctionParam is a function parameter.
type FunctionParam struct {
	valueBase
	typ          Type
	fn           *Function
	Attributes   IOAttributes
	BindingPoint *BindingPoint
}

func (p *FunctionParam) Type() Type { return p.typ }

// SetType changes the type of the parameter.
func (p *FunctionParam) SetType(t Type) { p.typ = t }

// Function returns the function the parameter belongs to.
func (p *FunctionParam) Function() *Function { return p.fn }
func (p *FunctionParam) Destroy()            { p.destroy() }

// Index returns the position of the parameter, or -1 if it is not attached.
func (p *FunctionParam) Index() int {
	if p.fn == nil {
		return -1
	}
	for i, q := range p.fn.params {
		if q == p {
			return i
		}
	}
	return -1
}

// BlockParam is an incoming value at the head of a multi-in block.
type BlockParam struct {
	valueBase
	typ   Type
	block *Block
}

func (p *BlockParam) Type() Type { return p.typ }

// Block returns the block that declares the parameter.
func (p *BlockParam) Block() *Block { return p.block }
func (p *BlockParam) Destroy()      { p.destroy() }

// Index returns the position of the parameter, or -1 if it is not attached.
func (p *BlockParam) Index() int {
	if p.block == nil {
		return -1
	}
	for i, q := range p.block.params {
		if q == p {
			return i
		}
	}
	return -1
}

// Undef is an explicit "don't care" value.
type Undef struct {
	valueBase
	typ Type
}

func (u *Undef) Type() Type { return u.typ }
func (u *Undef) Destroy()   { u.destroy() }

// ReplaceAllUsesWith rewrites every usage of v to refer to replacement.
func ReplaceAllUsesWith(v, replacement Value) {
	if v == replacement {
		return
	}
	for len(v.Usages()) > 0 {
		u := v.Usages()[0]
		u.Instruction.SetOperand(u.Operand, replacement)
	}
}

// ReplaceAllUsesWithFn rewrites every usage of v to refer to the value
// returned by fn for that usage. Returning v keeps the usage unchanged.
func ReplaceAllUsesWithFn(v Value, fn func(Usage) Value) {
	for _, u := range append([]Usage(nil), v.Usages()...) {
		if r := fn(u); r != v {
			u.Instruction.SetOperand(u.Operand, r)
		}
	}
}

// IsResultOf returns the instruction producing v, or nil if v is not an
// instruction result.
func IsResultOf(v Value) Instruction {
	if r, ok := v.(*InstructionResult); ok {
		return r.inst
	}
	return nil
}

// ConstantIndex returns the value of v as an index if it is an integer
// constant.
func ConstantIndex(v Value) (uint32, bool) {
	c, ok := v.(*Constant)
	if !ok {
		return 0, false
	}
	s, ok := c.value.(*ScalarValue)
	if !ok {
		return 0, false
	}
	switch s.typ.Kind {
	case ScalarI32:
		if s.Int() < 0 {
			return 0, false
		}
		return uint32(s.Int()), true
	case ScalarU32:
		return s.Uint(), true
	}
	return 0, false
}
