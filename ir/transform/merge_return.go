package transform

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/gogpu/coreir/ir"
)

// MergeReturnPass runs MergeReturn.
var MergeReturnPass = register(withoutOptions("merge_return", MergeReturn))

// MergeReturn rewrites every function with a nested return so that its only
// return is the terminator of its entry block.
//
// A nested return clears the continue_execution flag, stores the returned
// value to return_value and exits to the enclosing control instruction.
// The instructions following a control instruction that may have returned
// are guarded by the flag. Functions whose only return already ends the
// entry block are left untouched.
func MergeReturn(m *ir.Module) (err error) {
	defer ir.Recover(&err)
	b := ir.NewBuilder(m)
	for _, fn := range m.Functions() {
		mr := &mergeReturn{b: b, fn: fn, holdsReturn: mapset.NewSet()}
		mr.run()
	}
	return nil
}

type mergeReturn struct {
	b  *ir.Builder
	fn *ir.Function

	// holdsReturn is the set of control instructions that transitively
	// contain a return.
	holdsReturn mapset.Set

	continueExecution *ir.Var
	returnValue       *ir.Var
}

func (mr *mergeReturn) run() {
	root := mr.fn.Block()
	mr.fn.WalkInstructions(func(inst ir.Instruction) {
		ret, ok := inst.(*ir.Return)
		if !ok || ret.Block() == root {
			return
		}
		for ctrl := ret.Block().Parent(); ctrl != nil; ctrl = ctrl.Block().Parent() {
			mr.holdsReturn.Add(ctrl)
		}
	})
	if mr.holdsReturn.Cardinality() == 0 {
		return
	}

	b, ty := mr.b, mr.b.Module.Types
	b.WithFront(root, func() {
		if _, void := mr.fn.ReturnType().(*ir.Void); !void && mr.fn.ReturnType() != nil {
			rt := mr.fn.ReturnType()
			mr.returnValue = b.VarNamed("return_value", ty.Ptr(ir.AddressSpaceFunction, rt, ir.AccessReadWrite), nil)
		}
		mr.continueExecution = b.VarNamed("continue_execution",
			ty.Ptr(ir.AddressSpaceFunction, ty.Bool(), ir.AccessReadWrite), b.Bool(true))
	})

	mr.processBlock(root)
	mr.finalize()
}

// processBlock rewrites the returns of blk and guards the instructions that
// follow a control instruction holding a return.
func (mr *mergeReturn) processBlock(blk *ir.Block) {
	for inst := blk.Front(); inst != nil; {
		next := inst.Next()
		switch inst := inst.(type) {
		case *ir.Return:
			if blk != mr.fn.Block() {
				mr.processReturn(inst)
			}
		case ir.ControlInstruction:
			if mr.holdsReturn.Contains(inst) {
				for _, nested := range inst.Blocks() {
					mr.processBlock(nested)
				}
				mr.guardRest(blk, inst)
				return
			}
		}
		inst = next
	}
}

func (mr *mergeReturn) processReturn(ret *ir.Return) {
	blk := ret.Block()
	mr.b.WithBefore(ret, func() {
		mr.b.Store(mr.continueExecution.Result(), mr.b.Bool(false))
		if v := ret.Value(); v != nil {
			if mr.returnValue == nil {
				ir.Panicf("merge_return: value returned from void function %s", mr.fn.Name())
			}
			mr.b.Store(mr.returnValue.Result(), v)
		}
		mr.exitToParent(blk)
	})
	ret.Destroy()
}

// guardRest moves the instructions after ctrl into the true block of an if
// on continue_execution.
func (mr *mergeReturn) guardRest(blk *ir.Block, ctrl ir.ControlInstruction) {
	b := mr.b
	root := blk == mr.fn.Block()
	first := ctrl.Next()
	if first == nil {
		if !root {
			b.With(blk, func() { mr.exitToParent(blk) })
		}
		return
	}
	if first.Next() == nil {
		switch t := first.(type) {
		case ir.Exit:
			return
		case *ir.Return:
			if root && t.Value() == nil {
				return
			}
		case *ir.Unreachable:
			if root {
				t.Destroy()
				return
			}
		}
	}

	var guard *ir.If
	b.WithBefore(first, func() {
		cond := b.Load(mr.continueExecution.Result())
		guard = b.If(cond.Result())
	})
	for inst := first; inst != nil; {
		next := inst.Next()
		inst.Remove()
		guard.True().Append(inst)
		inst = next
	}

	if exit, ok := guard.True().Terminator().(*ir.ExitIf); ok && !root {
		results := make([]*ir.InstructionResult, len(exit.Args()))
		for i, arg := range exit.Args() {
			results[i] = b.InstructionResult(arg.Type())
		}
		guard.SetResults(results...)
		exit.SetControlInstruction(guard)
		values := make([]ir.Value, len(results))
		for i, r := range results {
			values[i] = r
		}
		parent, ok := blk.Parent().(*ir.If)
		if !ok {
			ir.Panicf("merge_return: exit_if in a block not owned by an if")
		}
		b.With(blk, func() { b.ExitIf(parent, values...) })
	} else if !root {
		b.With(blk, func() { mr.exitToParent(blk) })
	}

	mr.processBlock(guard.True())
}

// exitToParent creates an exit from blk to the control instruction owning
// it, passing undef for every result.
func (mr *mergeReturn) exitToParent(blk *ir.Block) {
	b := mr.b
	parent := blk.Parent()
	if parent == nil {
		ir.Panicf("merge_return: block of %s has no parent", mr.fn.Name())
	}
	args := make([]ir.Value, len(parent.Results()))
	for i, r := range parent.Results() {
		args[i] = b.Undef(r.Type())
	}
	switch p := parent.(type) {
	case *ir.If:
		b.ExitIf(p, args...)
	case *ir.Switch:
		b.ExitSwitch(p, args...)
	case *ir.Loop:
		if blk != p.Body() {
			ir.Panicf("merge_return: return outside the body of a loop in %s", mr.fn.Name())
		}
		b.ExitLoop(p, args...)
	default:
		ir.Panicf("merge_return: unhandled control instruction %s", parent.FriendlyName())
	}
}

func (mr *mergeReturn) finalize() {
	b := mr.b
	root := mr.fn.Block()
	switch t := root.Terminator().(type) {
	case nil:
	case *ir.Unreachable:
		t.Destroy()
	case *ir.Return:
		if mr.returnValue != nil {
			ir.Panicf("merge_return: unguarded return in %s", mr.fn.Name())
		}
	default:
		ir.Panicf("merge_return: entry block of %s ends in %s", mr.fn.Name(), t.FriendlyName())
	}
	if root.Terminator() == nil {
		b.With(root, func() {
			if mr.returnValue != nil {
				v := b.Load(mr.returnValue.Result())
				b.Return(mr.fn, v.Result())
			} else {
				b.Return(mr.fn)
			}
		})
	}

	// The flag is dead if no guard was needed.
	flag := mr.continueExecution.Result()
	for _, u := range flag.Usages() {
		if _, isLoad := u.Instruction.(*ir.Load); isLoad {
			return
		}
	}
	for _, u := range append([]ir.Usage(nil), flag.Usages()...) {
		u.Instruction.Destroy()
	}
	mr.continueExecution.Destroy()
}
