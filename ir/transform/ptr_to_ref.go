package transform

import "github.com/gogpu/coreir/ir"

// PtrToRefPass runs PtrToRef.
var PtrToRefPass = register(withoutOptions("ptr_to_ref", PtrToRef))

// PtrToRef rewrites a module for backends that model memory with
// references. Variables and accesses produce references. Pointer values
// used as the base of a memory operation go through ptr-to-ref, and
// references used anywhere else go through ref-to-ptr.
//
// The module gains the AllowRefTypes capability.
func PtrToRef(m *ir.Module) (err error) {
	defer ir.Recover(&err)
	m.Capabilities |= ir.AllowRefTypes
	p := &ptrToRef{b: ir.NewBuilder(m), types: m.Types}
	if m.HasRootBlock() {
		for _, inst := range m.RootBlock().Instructions() {
			if v, ok := inst.(*ir.Var); ok {
				p.toRef(v.Result())
			}
		}
	}
	for _, fn := range m.Functions() {
		fn.WalkInstructions(p.process)
	}
	return nil
}

type ptrToRef struct {
	b     *ir.Builder
	types *ir.TypeManager
}

func (p *ptrToRef) toRef(r *ir.InstructionResult) {
	if ptr, ok := r.Type().(*ir.Pointer); ok {
		r.SetType(p.types.Ref(ptr.Space, ptr.StoreType, ptr.Access))
	}
}

// isMemoryBase reports whether operand i of inst is the memory it reads,
// writes or indexes.
func isMemoryBase(inst ir.Instruction, i int) bool {
	if i != 0 {
		return false
	}
	switch inst.(type) {
	case *ir.Load, *ir.Store, *ir.LoadVectorElement, *ir.StoreVectorElement, *ir.Access:
		return true
	}
	return false
}

func (p *ptrToRef) process(inst ir.Instruction) {
	if v, ok := inst.(*ir.Var); ok {
		p.toRef(v.Result())
		return
	}
	if u, ok := inst.(*ir.Unary); ok && u.Op == ir.UnaryAddressOf {
		return
	}
	for i, op := range inst.Operands() {
		if op == nil {
			continue
		}
		switch op.Type().(type) {
		case *ir.Pointer:
			if isMemoryBase(inst, i) {
				p.b.WithBefore(inst, func() {
					inst.SetOperand(i, p.b.Indirection(op).Result())
				})
			}
		case *ir.Reference:
			if !isMemoryBase(inst, i) {
				p.b.WithBefore(inst, func() {
					inst.SetOperand(i, p.b.AddressOf(op).Result())
				})
			}
		}
	}
	if a, ok := inst.(*ir.Access); ok {
		if _, isRef := a.Object().Type().(*ir.Reference); isRef {
			p.toRef(a.Result())
		}
	}
}
