package transform

import "github.com/gogpu/coreir/ir"

// RemoveTerminatorArgsPass runs RemoveTerminatorArgs.
var RemoveTerminatorArgsPass = register(withoutOptions("remove_terminator_args", RemoveTerminatorArgs))

// RemoveTerminatorArgs replaces control instruction results and loop block
// parameters with function-scope variables. Every branch stores its
// arguments to the variables and the join point loads them back.
//
// Afterwards no control instruction has results, no block has parameters
// and the only remaining terminator operand is the condition of break_if.
func RemoveTerminatorArgs(m *ir.Module) (err error) {
	defer ir.Recover(&err)
	rta := &removeTerminatorArgs{b: ir.NewBuilder(m)}
	for _, fn := range m.Functions() {
		var ctrls []ir.ControlInstruction
		fn.WalkInstructions(func(inst ir.Instruction) {
			if ctrl, ok := inst.(ir.ControlInstruction); ok {
				ctrls = append(ctrls, ctrl)
			}
		})
		for _, ctrl := range ctrls {
			if l, ok := ctrl.(*ir.Loop); ok {
				rta.processParams(l, l.Body())
				rta.processParams(l, l.Continuing())
			}
			rta.processResults(ctrl)
		}
	}
	return nil
}

type removeTerminatorArgs struct {
	b *ir.Builder
}

// locals declares one function-scope variable per type before anchor.
func (rta *removeTerminatorArgs) locals(anchor ir.Instruction, types []ir.Type) []*ir.Var {
	vars := make([]*ir.Var, len(types))
	rta.b.WithBefore(anchor, func() {
		for i, t := range types {
			vars[i] = rta.b.Var(rta.b.Module.Types.Ptr(ir.AddressSpaceFunction, t, ir.AccessReadWrite))
		}
	})
	return vars
}

// storeArgs stores args to vars before the branch term.
func (rta *removeTerminatorArgs) storeArgs(term ir.Instruction, vars []*ir.Var, args []ir.Value) {
	if len(args) != len(vars) {
		ir.Panicf("remove_terminator_args: %s passes %d values to %d variables",
			term.FriendlyName(), len(args), len(vars))
	}
	rta.b.WithBefore(term, func() {
		for i, arg := range args {
			if _, undef := arg.(*ir.Undef); undef || arg == nil {
				continue
			}
			rta.b.Store(vars[i].Result(), arg)
		}
	})
}

func (rta *removeTerminatorArgs) processResults(ctrl ir.ControlInstruction) {
	results := ctrl.Results()
	if len(results) == 0 {
		return
	}
	types := make([]ir.Type, len(results))
	for i, r := range results {
		types[i] = r.Type()
	}
	vars := rta.locals(ctrl, types)

	for _, exit := range append([]ir.Exit(nil), ctrl.Exits()...) {
		rta.storeArgs(exit, vars, append([]ir.Value(nil), exit.Args()...))
		exit.SetArgs()
	}

	rta.b.WithAfter(ctrl, func() {
		for i, r := range results {
			load := rta.b.Load(vars[i].Result())
			ir.ReplaceAllUsesWith(r, load.Result())
		}
	})
	ctrl.SetResults()
	for _, r := range results {
		r.Destroy()
	}
}

// processParams replaces the parameters of blk, the body or continuing
// block of l.
func (rta *removeTerminatorArgs) processParams(l *ir.Loop, blk *ir.Block) {
	params := blk.Params()
	if len(params) == 0 {
		return
	}
	types := make([]ir.Type, len(params))
	for i, p := range params {
		types[i] = p.Type()
	}
	vars := rta.locals(l, types)

	for _, term := range append([]ir.Terminator(nil), blk.InboundBranches()...) {
		switch term := term.(type) {
		case *ir.NextIteration:
			rta.storeArgs(term, vars, append([]ir.Value(nil), term.Args()...))
			term.SetArgs()
		case *ir.Continue:
			rta.storeArgs(term, vars, append([]ir.Value(nil), term.Args()...))
			term.SetArgs()
		case *ir.BreakIf:
			rta.storeArgs(term, vars, append([]ir.Value(nil), term.NextIterationValues()...))
			term.SetNextIterationValues()
		default:
			ir.Panicf("remove_terminator_args: unexpected inbound branch %s", term.FriendlyName())
		}
	}

	rta.b.WithFront(blk, func() {
		for i, p := range params {
			load := rta.b.Load(vars[i].Result())
			ir.ReplaceAllUsesWith(p, load.Result())
		}
	})
	blk.SetParams()
	for _, p := range params {
		p.Destroy()
	}
}
