package ir

// Block is an ordered sequence of instructions ending in at most one
// terminator.
//
// A multi-in block (the body or continuing block of a loop) may declare
// block parameters, which receive the arguments of every branch targeting
// the block.
type Block struct {
	first, last Instruction
	count       int

	parent  ControlInstruction
	multiIn bool
	params  []*BlockParam
	inbound []Terminator
}

// Front returns the first instruction, or nil.
func (b *Block) Front() Instruction { return b.first }

// Back returns the last instruction, or nil.
func (b *Block) Back() Instruction { return b.last }

// Len returns the number of instructions.
func (b *Block) Len() int { return b.count }

// IsEmpty reports whether the block holds no instructions.
func (b *Block) IsEmpty() bool { return b.count == 0 }

// Instructions returns a snapshot of the block's instructions. The block
// may be modified while iterating over the snapshot.
func (b *Block) Instructions() []Instruction {
	out := make([]Instruction, 0, b.count)
	for i := b.first; i != nil; i = i.Next() {
		out = append(out, i)
	}
	return out
}

// Terminator returns the terminator ending the block, or nil if the block
// is not terminated.
func (b *Block) Terminator() Terminator {
	if t, ok := b.last.(Terminator); ok {
		return t
	}
	return nil
}

// Parent returns the control instruction that owns the block, or nil for a
// function entry block or the root block.
func (b *Block) Parent() ControlInstruction { return b.parent }

// SetParent sets the owning control instruction.
func (b *Block) SetParent(c ControlInstruction) { b.parent = c }

// IsMultiIn reports whether the block may declare block parameters.
func (b *Block) IsMultiIn() bool { return b.multiIn }

// Params returns the block parameters.
func (b *Block) Params() []*BlockParam { return b.params }

// SetParams replaces the block parameters.
func (b *Block) SetParams(params ...*BlockParam) {
	if !b.multiIn && len(params) > 0 {
		Panicf("block parameters on a single-entry block")
	}
	for _, p := range b.params {
		p.block = nil
	}
	b.params = nil
	for _, p := range params {
		b.AddParam(p)
	}
}

// AddParam appends a block parameter.
func (b *Block) AddParam(p *BlockParam) {
	if !b.multiIn {
		Panicf("block parameters on a single-entry block")
	}
	p.block = b
	b.params = append(b.params, p)
}

// InboundBranches returns the terminators that branch to the block.
func (b *Block) InboundBranches() []Terminator { return b.inbound }

func (b *Block) addInbound(t Terminator) {
	b.inbound = append(b.inbound, t)
}

func (b *Block) removeInbound(t Terminator) {
	for i, x := range b.inbound {
		if x == t {
			b.inbound = append(b.inbound[:i], b.inbound[i+1:]...)
			return
		}
	}
}

func (b *Block) checkInsertable(inst Instruction) {
	if inst == nil {
		Panicf("inserting a nil instruction")
	}
	if !inst.Alive() {
		Panicf("%s: inserting a destroyed instruction", inst.FriendlyName())
	}
	if inst.Block() != nil {
		Panicf("%s: inserting an instruction that is already in a block", inst.FriendlyName())
	}
}

func (b *Block) checkAnchor(anchor Instruction) {
	if anchor == nil {
		Panicf("nil anchor instruction")
	}
	if anchor.Block() != b {
		Panicf("%s: anchor instruction is not in this block", anchor.FriendlyName())
	}
}

// Append adds inst to the end of the block.
func (b *Block) Append(inst Instruction) {
	b.checkInsertable(inst)
	ib := inst.inst()
	ib.block = b
	ib.prev = b.last
	ib.next = nil
	if b.last != nil {
		b.last.inst().next = inst
	} else {
		b.first = inst
	}
	b.last = inst
	b.count++
}

// Prepend adds inst to the start of the block.
func (b *Block) Prepend(inst Instruction) {
	if b.first == nil {
		b.Append(inst)
		return
	}
	b.InsertBefore(b.first, inst)
}

// InsertBefore links inst immediately before anchor.
func (b *Block) InsertBefore(anchor, inst Instruction) {
	b.checkAnchor(anchor)
	b.checkInsertable(inst)
	ib, ab := inst.inst(), anchor.inst()
	ib.block = b
	ib.next = anchor
	ib.prev = ab.prev
	if ab.prev != nil {
		ab.prev.inst().next = inst
	} else {
		b.first = inst
	}
	ab.prev = inst
	b.count++
}

// InsertAfter links inst immediately after anchor.
func (b *Block) InsertAfter(anchor, inst Instruction) {
	b.checkAnchor(anchor)
	b.checkInsertable(inst)
	ib, ab := inst.inst(), anchor.inst()
	ib.block = b
	ib.prev = anchor
	ib.next = ab.next
	if ab.next != nil {
		ab.next.inst().prev = inst
	} else {
		b.last = inst
	}
	ab.next = inst
	b.count++
}

// Replace links replacement in the position of target and unlinks target.
func (b *Block) Replace(target, replacement Instruction) {
	b.checkAnchor(target)
	b.InsertBefore(target, replacement)
	b.unlink(target)
}

// Remove unlinks inst from the block.
func (b *Block) Remove(inst Instruction) {
	b.checkAnchor(inst)
	b.unlink(inst)
}

func (b *Block) unlink(inst Instruction) {
	ib := inst.inst()
	if ib.block != b {
		Panicf("%s: instruction is not in this block", inst.FriendlyName())
	}
	if ib.prev != nil {
		ib.prev.inst().next = ib.next
	} else {
		b.first = ib.next
	}
	if ib.next != nil {
		ib.next.inst().prev = ib.prev
	} else {
		b.last = ib.prev
	}
	ib.block, ib.prev, ib.next = nil, nil, nil
	b.count--
}

// destroyContents destroys every instruction in the block.
func (b *Block) destroyContents() {
	for b.last != nil {
		b.last.Destroy()
	}
}
