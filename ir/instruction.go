package ir

// Instruction is an IR operation.
//
// Every instruction belongs to at most one Block, where it is linked into a
// doubly linked list. Operands are set only through SetOperand and
// SetOperands, which keep the usage sets of the operand values consistent.
type Instruction interface {
	// Block returns the block the instruction is linked into, or nil.
	Block() *Block
	Prev() Instruction
	Next() Instruction

	Operands() []Value
	Operand(i int) Value
	SetOperand(i int, v Value)
	SetOperands(values ...Value)

	Results() []*InstructionResult
	// Result returns the first result, or nil.
	Result() *InstructionResult
	SetResults(results ...*InstructionResult)
	AddResult(r *InstructionResult)

	Alive() bool
	// Destroy unlinks the instruction, drops all of its operands and marks
	// it and its results as dead.
	Destroy()

	// Remove unlinks the instruction from its block without destroying it.
	Remove()
	InsertBefore(anchor Instruction)
	InsertAfter(anchor Instruction)
	// ReplaceWith links replacement in the position of the instruction and
	// unlinks the instruction.
	ReplaceWith(replacement Instruction)

	// FriendlyName is the opcode used by the disassembler.
	FriendlyName() string

	inst() *instBase
}

type instBase struct {
	self     Instruction
	block    *Block
	prev     Instruction
	next     Instruction
	operands []Value
	results  []*InstructionResult
	dead     bool
}

func (i *instBase) inst() *instBase { return i }

func (i *instBase) Block() *Block     { return i.block }
func (i *instBase) Prev() Instruction { return i.prev }
func (i *instBase) Next() Instruction { return i.next }
func (i *instBase) Alive() bool       { return !i.dead }

func (i *instBase) Operands() []Value { return i.operands }

func (i *instBase) Operand(n int) Value {
	if n < 0 || n >= len(i.operands) {
		return nil
	}
	return i.operands[n]
}

func (i *instBase) SetOperand(n int, v Value) {
	if n < 0 || n >= len(i.operands) {
		Panicf("%s: operand index %d out of range [0, %d)", i.self.FriendlyName(), n, len(i.operands))
	}
	if old := i.operands[n]; old != nil {
		old.base().removeUsage(Usage{i.self, n})
	}
	i.operands[n] = v
	if v != nil {
		v.base().addUsage(Usage{i.self, n})
	}
}

func (i *instBase) SetOperands(values ...Value) {
	i.clearOperands()
	i.operands = make([]Value, len(values))
	for n, v := range values {
		i.SetOperand(n, v)
	}
}

// appendOperand grows the operand list by one.
func (i *instBase) appendOperand(v Value) {
	i.operands = append(i.operands, nil)
	i.SetOperand(len(i.operands)-1, v)
}

// removeOperands deletes operands [from, to), renumbering the usages of the
// operands that follow.
func (i *instBase) removeOperands(from, to int) {
	rest := append([]Value(nil), i.operands[to:]...)
	for n := from; n < len(i.operands); n++ {
		i.SetOperand(n, nil)
	}
	i.operands = i.operands[:from]
	for _, v := range rest {
		i.appendOperand(v)
	}
}

func (i *instBase) clearOperands() {
	for n := range i.operands {
		i.SetOperand(n, nil)
	}
	i.operands = nil
}

func (i *instBase) Results() []*InstructionResult { return i.results }

func (i *instBase) Result() *InstructionResult {
	if len(i.results) == 0 {
		return nil
	}
	return i.results[0]
}

func (i *instBase) SetResults(results ...*InstructionResult) {
	for _, r := range i.results {
		if r.inst == i.self {
			r.inst = nil
		}
	}
	i.results = nil
	for _, r := range results {
		i.AddResult(r)
	}
}

func (i *instBase) AddResult(r *InstructionResult) {
	if r == nil {
		Panicf("%s: nil result", i.self.FriendlyName())
	}
	r.inst = i.self
	i.results = append(i.results, r)
}

func (i *instBase) Destroy() {
	if i.dead {
		return
	}
	if i.block != nil {
		i.Remove()
	}
	i.clearOperands()
	for _, r := range i.results {
		r.dead = true
	}
	i.dead = true
	if d, ok := i.self.(destroyHook); ok {
		d.onDestroy()
	}
}

// destroyHook is implemented by instructions that hold extra references,
// such as branch targets or owned blocks.
type destroyHook interface {
	onDestroy()
}

func (i *instBase) Remove() {
	if i.block == nil {
		Panicf("%s: removing an instruction that is not in a block", i.self.FriendlyName())
	}
	i.block.unlink(i.self)
}

func (i *instBase) InsertBefore(anchor Instruction) {
	if anchor == nil {
		Panicf("%s: insert before a nil instruction", i.self.FriendlyName())
	}
	if anchor.Block() == nil {
		Panicf("%s: insert before an instruction that is not in a block", i.self.FriendlyName())
	}
	anchor.Block().InsertBefore(anchor, i.self)
}

func (i *instBase) InsertAfter(anchor Instruction) {
	if anchor == nil {
		Panicf("%s: insert after a nil instruction", i.self.FriendlyName())
	}
	if anchor.Block() == nil {
		Panicf("%s: insert after an instruction that is not in a block", i.self.FriendlyName())
	}
	anchor.Block().InsertAfter(anchor, i.self)
}

func (i *instBase) ReplaceWith(replacement Instruction) {
	if i.block == nil {
		Panicf("%s: replacing an instruction that is not in a block", i.self.FriendlyName())
	}
	i.block.Replace(i.self, replacement)
}

// DestroyIfUnused destroys inst if none of its results are used, and
// reports whether it did so.
func DestroyIfUnused(inst Instruction) bool {
	for _, r := range inst.Results() {
		if r.NumUsages() > 0 {
			return false
		}
	}
	inst.Destroy()
	return true
}
