package ir

// Builder is the mutation API of the IR. It creates values, instructions
// and blocks owned by its Module and keeps a stack of insertion points.
//
// While a With* callback runs, every instruction created by the builder is
// inserted at the active insertion point. Outside any callback instructions
// are created detached and must be linked explicitly.
type Builder struct {
	Module *Module
	cursor []insertionPoint
}

type insertionPoint struct {
	block  *Block
	before Instruction
	after  Instruction
}

// NewBuilder returns a builder for m.
func NewBuilder(m *Module) *Builder {
	return &Builder{Module: m}
}

func (b *Builder) push(ip insertionPoint, fn func()) {
	b.cursor = append(b.cursor, ip)
	defer func() { b.cursor = b.cursor[:len(b.cursor)-1] }()
	fn()
}

// With appends the instructions created by fn to the end of blk.
func (b *Builder) With(blk *Block, fn func()) {
	if blk == nil {
		Panicf("With: nil block")
	}
	b.push(insertionPoint{block: blk}, fn)
}

// WithFront inserts the instructions created by fn, in order, at the start
// of blk.
func (b *Builder) WithFront(blk *Block, fn func()) {
	if blk == nil {
		Panicf("WithFront: nil block")
	}
	b.push(insertionPoint{block: blk, before: blk.Front()}, fn)
}

// WithBefore inserts the instructions created by fn, in order, before
// anchor.
func (b *Builder) WithBefore(anchor Instruction, fn func()) {
	if anchor == nil || anchor.Block() == nil {
		Panicf("WithBefore: anchor is not in a block")
	}
	b.push(insertionPoint{block: anchor.Block(), before: anchor}, fn)
}

// WithAfter inserts the instructions created by fn, in order, after anchor.
func (b *Builder) WithAfter(anchor Instruction, fn func()) {
	if anchor == nil || anchor.Block() == nil {
		Panicf("WithAfter: anchor is not in a block")
	}
	b.push(insertionPoint{block: anchor.Block(), after: anchor}, fn)
}

// InsertionBlock returns the block of the active insertion point, or nil.
func (b *Builder) InsertionBlock() *Block {
	if len(b.cursor) == 0 {
		return nil
	}
	return b.cursor[len(b.cursor)-1].block
}

func (b *Builder) insert(inst Instruction) {
	if len(b.cursor) == 0 {
		return
	}
	ip := &b.cursor[len(b.cursor)-1]
	switch {
	case ip.before != nil:
		ip.block.InsertBefore(ip.before, inst)
	case ip.after != nil:
		ip.block.InsertAfter(ip.after, inst)
		ip.after = inst
	default:
		ip.block.Append(inst)
	}
}

// Append adds inst to the end of blk.
func (b *Builder) Append(blk *Block, inst Instruction) {
	if blk == nil {
		Panicf("Append: nil block")
	}
	blk.Append(inst)
}

// Prepend adds inst to the start of blk.
func (b *Builder) Prepend(blk *Block, inst Instruction) {
	if blk == nil {
		Panicf("Prepend: nil block")
	}
	blk.Prepend(inst)
}

// InsertBefore links inst immediately before anchor.
func (b *Builder) InsertBefore(anchor, inst Instruction) {
	if anchor == nil || anchor.Block() == nil {
		Panicf("InsertBefore: anchor is not in a block")
	}
	anchor.Block().InsertBefore(anchor, inst)
}

// InsertAfter links inst immediately after anchor.
func (b *Builder) InsertAfter(anchor, inst Instruction) {
	if anchor == nil || anchor.Block() == nil {
		Panicf("InsertAfter: anchor is not in a block")
	}
	anchor.Block().InsertAfter(anchor, inst)
}

// Replace links replacement in the position of old and unlinks old.
func (b *Builder) Replace(old, replacement Instruction) {
	if old == nil || old.Block() == nil {
		Panicf("Replace: instruction is not in a block")
	}
	old.Block().Replace(old, replacement)
}

// Remove unlinks inst from its block.
func (b *Builder) Remove(inst Instruction) {
	if inst == nil || inst.Block() == nil {
		Panicf("Remove: instruction is not in a block")
	}
	inst.Block().Remove(inst)
}

// emit initializes inst, tracks it in the module arena and inserts it at the
// active insertion point.
func (b *Builder) emit(inst Instruction, result Type, operands ...Value) {
	ib := inst.inst()
	ib.self = inst
	ib.operands = make([]Value, len(operands))
	for i, v := range operands {
		ib.SetOperand(i, v)
	}
	if result != nil {
		ib.AddResult(b.InstructionResult(result))
	}
	b.Module.track(inst)
	b.insert(inst)
}

// Block creates a single-entry block.
func (b *Builder) Block() *Block { return b.Module.newBlock(false) }

// MultiInBlock creates a block that may declare block parameters.
func (b *Builder) MultiInBlock() *Block { return b.Module.newBlock(true) }

// RootBlock returns the module's root block.
func (b *Builder) RootBlock() *Block { return b.Module.RootBlock() }

// Function creates a function and appends it to the module.
func (b *Builder) Function(name string, returnType Type, stage PipelineStage) *Function {
	fn := &Function{returnType: returnType, Stage: stage}
	fn.block = b.Block()
	b.Module.SetFunctionName(fn, name)
	b.Module.AddFunction(fn)
	return fn
}

// ComputeFunction creates a compute entry point with the given workgroup
// size.
func (b *Builder) ComputeFunction(name string, x, y, z uint32) *Function {
	fn := b.Function(name, b.Module.Types.Void(), StageCompute)
	fn.WorkgroupSize = &[3]uint32{x, y, z}
	return fn
}

// FunctionParam creates a parameter. A non-empty name is registered with
// the module.
func (b *Builder) FunctionParam(name string, t Type) *FunctionParam {
	p := &FunctionParam{typ: t}
	b.Module.trackValue(p)
	if name != "" {
		b.Module.SetName(p, name)
	}
	return p
}

// BlockParam creates a block parameter. A non-empty name is registered with
// the module.
func (b *Builder) BlockParam(name string, t Type) *BlockParam {
	p := &BlockParam{typ: t}
	b.Module.trackValue(p)
	if name != "" {
		b.Module.SetName(p, name)
	}
	return p
}

// InstructionResult creates a detached result of type t.
func (b *Builder) InstructionResult(t Type) *InstructionResult {
	r := &InstructionResult{typ: t}
	b.Module.trackValue(r)
	return r
}

// Undef creates an undefined value of type t.
func (b *Builder) Undef(t Type) *Undef {
	u := &Undef{typ: t}
	b.Module.trackValue(u)
	return u
}

// Constant returns the value for cv.
func (b *Builder) Constant(cv ConstValue) *Constant { return b.Module.Constant(cv) }

// Bool returns the bool constant v.
func (b *Builder) Bool(v bool) *Constant { return b.Constant(b.Module.Constants.Bool(v)) }

// I32 returns the i32 constant v.
func (b *Builder) I32(v int32) *Constant { return b.Constant(b.Module.Constants.I32(v)) }

// U32 returns the u32 constant v.
func (b *Builder) U32(v uint32) *Constant { return b.Constant(b.Module.Constants.U32(v)) }

// F32 returns the f32 constant v.
func (b *Builder) F32(v float32) *Constant { return b.Constant(b.Module.Constants.F32(v)) }

// Zero returns the zero value of t.
func (b *Builder) Zero(t Type) *Constant { return b.Constant(b.Module.Constants.Zero(t)) }

// Binary creates a binary instruction.
func (b *Builder) Binary(op BinaryOp, t Type, lhs, rhs Value) *Binary {
	inst := &Binary{Op: op}
	b.emit(inst, t, lhs, rhs)
	return inst
}

func (b *Builder) Add(t Type, lhs, rhs Value) *Binary { return b.Binary(BinaryAdd, t, lhs, rhs) }
func (b *Builder) Subtract(t Type, lhs, rhs Value) *Binary {
	return b.Binary(BinarySubtract, t, lhs, rhs)
}
func (b *Builder) Multiply(t Type, lhs, rhs Value) *Binary {
	return b.Binary(BinaryMultiply, t, lhs, rhs)
}
func (b *Builder) Divide(t Type, lhs, rhs Value) *Binary { return b.Binary(BinaryDivide, t, lhs, rhs) }
func (b *Builder) Modulo(t Type, lhs, rhs Value) *Binary { return b.Binary(BinaryModulo, t, lhs, rhs) }
func (b *Builder) And(t Type, lhs, rhs Value) *Binary    { return b.Binary(BinaryAnd, t, lhs, rhs) }
func (b *Builder) Or(t Type, lhs, rhs Value) *Binary     { return b.Binary(BinaryOr, t, lhs, rhs) }
func (b *Builder) Equal(t Type, lhs, rhs Value) *Binary  { return b.Binary(BinaryEqual, t, lhs, rhs) }
func (b *Builder) LessThan(t Type, lhs, rhs Value) *Binary {
	return b.Binary(BinaryLessThan, t, lhs, rhs)
}
func (b *Builder) GreaterThan(t Type, lhs, rhs Value) *Binary {
	return b.Binary(BinaryGreaterThan, t, lhs, rhs)
}
func (b *Builder) GreaterThanEqual(t Type, lhs, rhs Value) *Binary {
	return b.Binary(BinaryGreaterThanEqual, t, lhs, rhs)
}

// Unary creates a unary instruction.
func (b *Builder) Unary(op UnaryOp, t Type, val Value) *Unary {
	inst := &Unary{Op: op}
	b.emit(inst, t, val)
	return inst
}

// Not creates a logical negation.
func (b *Builder) Not(t Type, val Value) *Unary { return b.Unary(UnaryNot, t, val) }

// Negation creates an arithmetic negation.
func (b *Builder) Negation(t Type, val Value) *Unary { return b.Unary(UnaryNegation, t, val) }

// AddressOf converts a reference to the equivalent pointer.
func (b *Builder) AddressOf(val Value) *Unary {
	ref, ok := val.Type().(*Reference)
	if !ok {
		Panicf("AddressOf: operand type %s is not a reference", val.Type())
	}
	return b.Unary(UnaryAddressOf, b.Module.Types.Ptr(ref.Space, ref.StoreType, ref.Access), val)
}

// Indirection converts a pointer to the equivalent reference.
func (b *Builder) Indirection(val Value) *Unary {
	ptr, ok := val.Type().(*Pointer)
	if !ok {
		Panicf("Indirection: operand type %s is not a pointer", val.Type())
	}
	return b.Unary(UnaryIndirection, b.Module.Types.Ref(ptr.Space, ptr.StoreType, ptr.Access), val)
}

// Load creates a load from a pointer or reference.
func (b *Builder) Load(from Value) *Load {
	view, ok := from.Type().(MemoryView)
	if !ok {
		Panicf("Load: operand type %s is not a pointer or reference", from.Type())
	}
	t := view.Store()
	if a, isAtomic := t.(*Atomic); isAtomic {
		t = a.Elem
	}
	inst := &Load{}
	b.emit(inst, t, from)
	return inst
}

// Store creates a store of from to the memory view to.
func (b *Builder) Store(to, from Value) *Store {
	inst := &Store{}
	b.emit(inst, nil, to, from)
	return inst
}

// LoadVectorElement creates a load of element index of the vector at from.
func (b *Builder) LoadVectorElement(from, index Value) *LoadVectorElement {
	view, ok := from.Type().(MemoryView)
	if !ok {
		Panicf("LoadVectorElement: operand type %s is not a pointer or reference", from.Type())
	}
	vec, ok := view.Store().(*Vector)
	if !ok {
		Panicf("LoadVectorElement: store type %s is not a vector", view.Store())
	}
	inst := &LoadVectorElement{}
	b.emit(inst, vec.Elem, from, index)
	return inst
}

// StoreVectorElement creates a store of value to element index of the
// vector at to.
func (b *Builder) StoreVectorElement(to, index, value Value) *StoreVectorElement {
	inst := &StoreVectorElement{}
	b.emit(inst, nil, to, index, value)
	return inst
}

// Access creates an access of object with the given indices.
func (b *Builder) Access(t Type, object Value, indices ...Value) *Access {
	inst := &Access{}
	b.emit(inst, t, append([]Value{object}, indices...)...)
	return inst
}

// Var creates a variable declaration whose result has type t, which must be
// a pointer type in a well-formed module.
func (b *Builder) Var(t Type) *Var {
	inst := &Var{}
	b.emit(inst, t, nil)
	return inst
}

// VarNamed creates a named variable of type t with an optional initializer.
func (b *Builder) VarNamed(name string, t Type, init Value) *Var {
	v := b.Var(t)
	if init != nil {
		v.SetInitializer(init)
	}
	if name != "" {
		b.Module.SetName(v.Result(), name)
	}
	return v
}

// Let binds val.
func (b *Builder) Let(val Value) *Let {
	inst := &Let{}
	b.emit(inst, val.Type(), val)
	return inst
}

// Call creates a call of fn returning t.
func (b *Builder) Call(t Type, fn *Function, args ...Value) *UserCall {
	inst := &UserCall{}
	b.emit(inst, t, args...)
	inst.SetTarget(fn)
	return inst
}

// CallBuiltin creates a call of the builtin fn returning t.
func (b *Builder) CallBuiltin(t Type, fn BuiltinFn, args ...Value) *BuiltinCall {
	inst := &BuiltinCall{Func: fn}
	b.emit(inst, t, args...)
	return inst
}

// Convert creates a value conversion to t.
func (b *Builder) Convert(t Type, val Value) *Convert {
	inst := &Convert{}
	b.emit(inst, t, val)
	return inst
}

// Construct creates a composite construction of type t.
func (b *Builder) Construct(t Type, args ...Value) *Construct {
	inst := &Construct{}
	b.emit(inst, t, args...)
	return inst
}

// Bitcast creates a bit reinterpretation of val as t.
func (b *Builder) Bitcast(t Type, val Value) *Bitcast {
	inst := &Bitcast{}
	b.emit(inst, t, val)
	return inst
}

// Swizzle creates a swizzle of val.
func (b *Builder) Swizzle(t Type, val Value, indices ...uint32) *Swizzle {
	inst := &Swizzle{Indices: append([]uint32(nil), indices...)}
	b.emit(inst, t, val)
	return inst
}

// Discard creates a discard instruction.
func (b *Builder) Discard() *Discard {
	inst := &Discard{}
	b.emit(inst, nil)
	return inst
}

// If creates an if instruction with empty true and false blocks.
func (b *Builder) If(cond Value) *If {
	inst := &If{}
	inst.SetTrue(b.Block())
	inst.SetFalse(b.Block())
	b.emit(inst, nil, cond)
	return inst
}

// Loop creates a loop instruction with empty blocks.
func (b *Builder) Loop() *Loop {
	inst := &Loop{}
	inst.initializer = b.Block()
	inst.body = b.MultiInBlock()
	inst.continuing = b.MultiInBlock()
	for _, blk := range inst.Blocks() {
		blk.parent = inst
	}
	b.emit(inst, nil)
	return inst
}

// Switch creates a switch instruction with no cases.
func (b *Builder) Switch(cond Value) *Switch {
	inst := &Switch{}
	b.emit(inst, nil, cond)
	return inst
}

// Case adds a case to sw selected by the given constants and returns the
// case block. A nil selector is the default selector.
func (b *Builder) Case(sw *Switch, selectors ...*Constant) *Block {
	c := &Case{Block: b.Block()}
	for _, s := range selectors {
		c.Selectors = append(c.Selectors, CaseSelector{Value: s})
	}
	sw.AddCase(c)
	return c.Block
}

// Return creates a return from fn with an optional value.
func (b *Builder) Return(fn *Function, value ...Value) *Return {
	if len(value) > 1 {
		Panicf("Return: %d values", len(value))
	}
	inst := &Return{fn: fn}
	b.emit(inst, nil, value...)
	return inst
}

// Exit creates the exit instruction appropriate for ctrl.
func (b *Builder) Exit(ctrl ControlInstruction, args ...Value) Exit {
	switch c := ctrl.(type) {
	case *If:
		return b.ExitIf(c, args...)
	case *Loop:
		return b.ExitLoop(c, args...)
	case *Switch:
		return b.ExitSwitch(c, args...)
	}
	Panicf("Exit: unhandled control instruction %T", ctrl)
	return nil
}

// ExitIf creates a branch to the merge point of i.
func (b *Builder) ExitIf(i *If, args ...Value) *ExitIf {
	inst := &ExitIf{}
	b.emit(inst, nil, args...)
	inst.SetControlInstruction(i)
	return inst
}

// ExitLoop creates a branch to the merge point of l.
func (b *Builder) ExitLoop(l *Loop, args ...Value) *ExitLoop {
	inst := &ExitLoop{}
	b.emit(inst, nil, args...)
	inst.SetControlInstruction(l)
	return inst
}

// ExitSwitch creates a branch to the merge point of s.
func (b *Builder) ExitSwitch(s *Switch, args ...Value) *ExitSwitch {
	inst := &ExitSwitch{}
	b.emit(inst, nil, args...)
	inst.SetControlInstruction(s)
	return inst
}

// Continue creates a branch to the continuing block of l.
func (b *Builder) Continue(l *Loop, args ...Value) *Continue {
	inst := &Continue{}
	b.emit(inst, nil, args...)
	inst.SetLoop(l)
	return inst
}

// NextIteration creates a branch to the body of l.
func (b *Builder) NextIteration(l *Loop, args ...Value) *NextIteration {
	inst := &NextIteration{}
	b.emit(inst, nil, args...)
	inst.SetLoop(l)
	return inst
}

// BreakIf creates the conditional back-edge of l.
func (b *Builder) BreakIf(l *Loop, cond Value, nextIter, exit []Value) *BreakIf {
	inst := &BreakIf{numNextIter: len(nextIter)}
	ops := append([]Value{cond}, nextIter...)
	b.emit(inst, nil, append(ops, exit...)...)
	inst.SetControlInstruction(l)
	return inst
}

// Unreachable creates an unreachable terminator.
func (b *Builder) Unreachable() *Unreachable {
	inst := &Unreachable{}
	b.emit(inst, nil)
	return inst
}
