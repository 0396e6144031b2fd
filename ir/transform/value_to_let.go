package transform

import "github.com/gogpu/coreir/ir"

// ValueToLetPass runs ValueToLet.
var ValueToLetPass = register(withoutOptions("value_to_let", ValueToLet))

// ValueToLet binds the results of sequenced instructions to lets wherever
// inlining them at their single use could reorder them with another
// sequenced instruction. Results used more than once or from another block
// are always bound.
func ValueToLet(m *ir.Module) (err error) {
	defer ir.Recover(&err)
	b := ir.NewBuilder(m)
	for _, fn := range m.Functions() {
		fn.WalkBlocks(func(blk *ir.Block) {
			valueToLetBlock(b, blk)
		})
	}
	return nil
}

func valueToLetBlock(b *ir.Builder, blk *ir.Block) {
	// pending is a sequenced result with a single use later in blk that may
	// still be inlined.
	var pending *ir.InstructionResult
	flush := func() {
		if pending != nil {
			putInLet(b, pending)
			pending = nil
		}
	}

	for inst := blk.Front(); inst != nil; inst = inst.Next() {
		if len(inst.Results()) > 1 {
			ir.Panicf("value_to_let: %s has %d results", inst.FriendlyName(), len(inst.Results()))
		}
		sequenced := ir.IsSequenced(inst)

		var seqOperands []*ir.InstructionResult
		for _, op := range inst.Operands() {
			res, ok := op.(*ir.InstructionResult)
			if !ok {
				continue
			}
			if res == pending || (res.Instruction() != nil && ir.IsSequenced(res.Instruction())) {
				seqOperands = append(seqOperands, res)
			}
		}
		switch len(seqOperands) {
		case 0:
		case 1:
			if seqOperands[0] == pending {
				// Inlined into inst, which now carries its ordering.
				pending = nil
				sequenced = true
			} else {
				flush()
			}
		default:
			flush()
		}

		if _, isLet := inst.(*ir.Let); isLet || !sequenced {
			continue
		}
		flush()

		result := inst.Result()
		if result == nil {
			continue
		}
		switch usages := result.Usages(); len(usages) {
		case 0:
		case 1:
			if usages[0].Instruction.Block() == blk {
				pending = result
			} else {
				inst = putInLet(b, result)
			}
		default:
			inst = putInLet(b, result)
		}
	}
}

// putInLet binds v to a new let placed right after its instruction and
// redirects every use of v to the let.
func putInLet(b *ir.Builder, v *ir.InstructionResult) *ir.Let {
	var let *ir.Let
	b.WithAfter(v.Instruction(), func() {
		let = b.Let(v)
	})
	ir.ReplaceAllUsesWithFn(v, func(u ir.Usage) ir.Value {
		if u.Instruction == let {
			return v
		}
		return let.Result()
	})
	return let
}
