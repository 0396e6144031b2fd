package ir

// ControlInstruction is an instruction that owns nested blocks: If, Loop or
// Switch. Its results are the values that flow out of the construct to the
// point after it in the parent block (the merge point).
type ControlInstruction interface {
	Instruction
	// Exits returns the exit instructions that branch to the merge point of
	// the control instruction.
	Exits() []Exit
	// Blocks returns the owned blocks in disassembly order.
	Blocks() []*Block
	// Label is the label prefix used in disassembly comments.
	Label() string

	addExit(e Exit)
	removeExit(e Exit)
}

type ctrlBase struct {
	exits []Exit
}

func (c *ctrlBase) Exits() []Exit { return c.exits }

func (c *ctrlBase) addExit(e Exit) { c.exits = append(c.exits, e) }

func (c *ctrlBase) removeExit(e Exit) {
	for i, x := range c.exits {
		if x == e {
			c.exits = append(c.exits[:i], c.exits[i+1:]...)
			return
		}
	}
}

// If executes True when the condition holds and False otherwise.
// An empty False block exits the If with undefined results.
type If struct {
	instBase
	ctrlBase
	trueBlock  *Block
	falseBlock *Block
}

// Condition returns the condition operand.
func (i *If) Condition() Value { return i.Operand(0) }

// True returns the block executed when the condition holds.
func (i *If) True() *Block { return i.trueBlock }

// False returns the block executed when the condition does not hold.
func (i *If) False() *Block { return i.falseBlock }

// SetTrue replaces the true block.
func (i *If) SetTrue(b *Block) {
	i.trueBlock = b
	b.parent = i
}

// SetFalse replaces the false block.
func (i *If) SetFalse(b *Block) {
	i.falseBlock = b
	b.parent = i
}

func (i *If) Blocks() []*Block     { return []*Block{i.trueBlock, i.falseBlock} }
func (i *If) Label() string        { return "if" }
func (i *If) FriendlyName() string { return "if" }

func (i *If) onDestroy() {
	i.trueBlock.destroyContents()
	i.falseBlock.destroyContents()
}

// Loop executes Initializer once, then Body repeatedly. Body continues to
// Continuing, which branches back to Body or exits the loop.
type Loop struct {
	instBase
	ctrlBase
	initializer *Block
	body        *Block
	continuing  *Block
}

// Initializer returns the block executed once on entry. It may be empty.
func (l *Loop) Initializer() *Block { return l.initializer }

// Body returns the loop body.
func (l *Loop) Body() *Block { return l.body }

// Continuing returns the continuing block. It may be empty.
func (l *Loop) Continuing() *Block { return l.continuing }

func (l *Loop) Blocks() []*Block     { return []*Block{l.initializer, l.body, l.continuing} }
func (l *Loop) Label() string        { return "loop" }
func (l *Loop) FriendlyName() string { return "loop" }

func (l *Loop) onDestroy() {
	l.continuing.destroyContents()
	l.body.destroyContents()
	l.initializer.destroyContents()
}

// CaseSelector is a single case value. A nil Value selects the default
// case.
type CaseSelector struct {
	Value *Constant
}

// IsDefault reports whether the selector is the default selector.
func (s CaseSelector) IsDefault() bool { return s.Value == nil }

// Case is a clause of a Switch.
type Case struct {
	Selectors []CaseSelector
	Block     *Block
}

// Switch selects a case block by the value of its condition.
type Switch struct {
	instBase
	ctrlBase
	cases []*Case
}

// Condition returns the selector operand.
func (s *Switch) Condition() Value { return s.Operand(0) }

// Cases returns the case clauses in order.
func (s *Switch) Cases() []*Case { return s.cases }

// AddCase appends a case clause.
func (s *Switch) AddCase(c *Case) {
	c.Block.parent = s
	s.cases = append(s.cases, c)
}

func (s *Switch) Blocks() []*Block {
	out := make([]*Block, len(s.cases))
	for i, c := range s.cases {
		out[i] = c.Block
	}
	return out
}

func (s *Switch) Label() string        { return "switch" }
func (s *Switch) FriendlyName() string { return "switch" }

func (s *Switch) onDestroy() {
	for _, c := range s.cases {
		c.Block.destroyContents()
	}
}

// Terminator is an instruction that ends a block.
type Terminator interface {
	Instruction
	// Args returns the values passed to the branch target.
	Args() []Value
	terminator()
}

// Exit is a terminator that branches to the merge point of a control
// instruction.
type Exit interface {
	Terminator
	ControlInstruction() ControlInstruction
	SetControlInstruction(c ControlInstruction)
	SetArgs(args ...Value)
}

func retarget(e Exit, old, c ControlInstruction) {
	if old != nil {
		old.removeExit(e)
	}
	if c != nil {
		c.addExit(e)
	}
}

// Return returns from a function, with an optional value.
type Return struct {
	instBase
	fn *Function
}

func (*Return) terminator() {}

// Func returns the function being returned from.
func (r *Return) Func() *Function { return r.fn }

// Value returns the returned value, or nil.
func (r *Return) Value() Value { return r.Operand(0) }

// SetValue replaces the returned value.
func (r *Return) SetValue(v Value) {
	if len(r.operands) == 0 {
		r.appendOperand(v)
		return
	}
	r.SetOperand(0, v)
}

func (r *Return) Args() []Value {
	if len(r.operands) == 0 || r.operands[0] == nil {
		return nil
	}
	return r.operands
}

func (r *Return) FriendlyName() string { return "return" }

// ExitIf branches to the merge point of an If.
type ExitIf struct {
	instBase
	ctrl *If
}

func (*ExitIf) terminator()     {}
func (e *ExitIf) If() *If       { return e.ctrl }
func (e *ExitIf) Args() []Value { return e.operands }

func (e *ExitIf) ControlInstruction() ControlInstruction {
	if e.ctrl == nil {
		return nil
	}
	return e.ctrl
}

func (e *ExitIf) SetControlInstruction(c ControlInstruction) {
	var old ControlInstruction
	if e.ctrl != nil {
		old = e.ctrl
	}
	e.ctrl, _ = c.(*If)
	retarget(e, old, c)
}

func (e *ExitIf) SetArgs(args ...Value) { e.SetOperands(args...) }
func (e *ExitIf) FriendlyName() string  { return "exit_if" }
func (e *ExitIf) onDestroy()            { e.SetControlInstruction(nil) }

// ExitLoop branches to the merge point of a Loop.
type ExitLoop struct {
	instBase
	ctrl *Loop
}

func (*ExitLoop) terminator()     {}
func (e *ExitLoop) Loop() *Loop   { return e.ctrl }
func (e *ExitLoop) Args() []Value { return e.operands }

func (e *ExitLoop) ControlInstruction() ControlInstruction {
	if e.ctrl == nil {
		return nil
	}
	return e.ctrl
}

func (e *ExitLoop) SetControlInstruction(c ControlInstruction) {
	var old ControlInstruction
	if e.ctrl != nil {
		old = e.ctrl
	}
	e.ctrl, _ = c.(*Loop)
	retarget(e, old, c)
}

func (e *ExitLoop) SetArgs(args ...Value) { e.SetOperands(args...) }
func (e *ExitLoop) FriendlyName() string  { return "exit_loop" }
func (e *ExitLoop) onDestroy()            { e.SetControlInstruction(nil) }

// ExitSwitch branches to the merge point of a Switch.
type ExitSwitch struct {
	instBase
	ctrl *Switch
}

func (*ExitSwitch) terminator()       {}
func (e *ExitSwitch) Switch() *Switch { return e.ctrl }
func (e *ExitSwitch) Args() []Value   { return e.operands }

func (e *ExitSwitch) ControlInstruction() ControlInstruction {
	if e.ctrl == nil {
		return nil
	}
	return e.ctrl
}

func (e *ExitSwitch) SetControlInstruction(c ControlInstruction) {
	var old ControlInstruction
	if e.ctrl != nil {
		old = e.ctrl
	}
	e.ctrl, _ = c.(*Switch)
	retarget(e, old, c)
}

func (e *ExitSwitch) SetArgs(args ...Value) { e.SetOperands(args...) }
func (e *ExitSwitch) FriendlyName() string  { return "exit_switch" }
func (e *ExitSwitch) onDestroy()            { e.SetControlInstruction(nil) }

// Continue branches from the body of a loop to its continuing block.
type Continue struct {
	instBase
	loop *Loop
}

func (*Continue) terminator()             {}
func (c *Continue) Loop() *Loop           { return c.loop }
func (c *Continue) Args() []Value         { return c.operands }
func (c *Continue) SetArgs(args ...Value) { c.SetOperands(args...) }
func (c *Continue) FriendlyName() string  { return "continue" }

// SetLoop changes the loop being continued.
func (c *Continue) SetLoop(l *Loop) {
	if c.loop != nil {
		c.loop.continuing.removeInbound(c)
	}
	c.loop = l
	if l != nil {
		l.continuing.addInbound(c)
	}
}

func (c *Continue) onDestroy() { c.SetLoop(nil) }

// NextIteration branches back to the body of a loop.
type NextIteration struct {
	instBase
	loop *Loop
}

func (*NextIteration) terminator()             {}
func (n *NextIteration) Loop() *Loop           { return n.loop }
func (n *NextIteration) Args() []Value         { return n.operands }
func (n *NextIteration) SetArgs(args ...Value) { n.SetOperands(args...) }
func (n *NextIteration) FriendlyName() string  { return "next_iteration" }

// SetLoop changes the loop being iterated.
func (n *NextIteration) SetLoop(l *Loop) {
	if n.loop != nil {
		n.loop.body.removeInbound(n)
	}
	n.loop = l
	if l != nil {
		l.body.addInbound(n)
	}
}

func (n *NextIteration) onDestroy() { n.SetLoop(nil) }

// BreakIf ends the continuing block of a loop. If the condition holds the
// loop exits with the exit values, otherwise the next iteration starts with
// the next-iteration values.
//
// Operands are [condition, next-iteration values..., exit values...].
type BreakIf struct {
	instBase
	loop        *Loop
	numNextIter int
}

func (*BreakIf) terminator() {}

// Loop returns the loop being continued or exited.
func (b *BreakIf) Loop() *Loop { return b.loop }

// Condition returns the exit condition.
func (b *BreakIf) Condition() Value { return b.Operand(0) }

// NextIterationValues returns the arguments passed to the body parameters.
func (b *BreakIf) NextIterationValues() []Value { return b.operands[1 : 1+b.numNextIter] }

// ExitValues returns the arguments passed to the loop results.
func (b *BreakIf) ExitValues() []Value { return b.operands[1+b.numNextIter:] }

// Args returns the exit values.
func (b *BreakIf) Args() []Value { return b.ExitValues() }

// SetArgs replaces the exit values.
func (b *BreakIf) SetArgs(args ...Value) {
	b.setValues(b.Condition(), append([]Value(nil), b.NextIterationValues()...), args)
}

// SetNextIterationValues replaces the next-iteration values.
func (b *BreakIf) SetNextIterationValues(values ...Value) {
	b.setValues(b.Condition(), values, append([]Value(nil), b.ExitValues()...))
}

func (b *BreakIf) setValues(cond Value, next, exit []Value) {
	ops := append([]Value{cond}, next...)
	b.numNextIter = len(next)
	b.SetOperands(append(ops, exit...)...)
}

func (b *BreakIf) ControlInstruction() ControlInstruction {
	if b.loop == nil {
		return nil
	}
	return b.loop
}

func (b *BreakIf) SetControlInstruction(c ControlInstruction) {
	var old ControlInstruction
	if b.loop != nil {
		old = b.loop
		b.loop.body.removeInbound(b)
	}
	b.loop, _ = c.(*Loop)
	if b.loop != nil {
		b.loop.body.addInbound(b)
	}
	retarget(b, old, c)
}

func (b *BreakIf) FriendlyName() string { return "break_if" }
func (b *BreakIf) onDestroy() {
	b.SetControlInstruction(nil)
	b.numNextIter = 0
}

// Unreachable marks the end of a block that cannot be reached.
type Unreachable struct {
	instBase
}

func (*Unreachable) terminator()            {}
func (u *Unreachable) Args() []Value        { return nil }
func (u *Unreachable) FriendlyName() string { return "unreachable" }

// ExitTarget returns the control instruction targeted by t if it is an
// exit, or nil.
func ExitTarget(t Instruction) ControlInstruction {
	if e, ok := t.(Exit); ok {
		return e.ControlInstruction()
	}
	return nil
}
