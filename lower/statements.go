package lower

import (
	"github.com/gogpu/coreir/ir"
	"github.com/gogpu/coreir/program"
)

// frame is a loop or switch that break and continue statements may target.
type frame struct {
	ctrl ir.ControlInstruction
	// merged is set once an exit to the merge point has been emitted.
	merged bool
	// continued is set once a continue has been emitted for a loop.
	continued bool
}

// open reports whether the current insertion block can still take
// instructions.
func (l *lowerer) open() bool {
	return l.b.InsertionBlock().Terminator() == nil
}

// lowerStatements lowers stmts into the current block. Statements after a
// terminator are unreachable and are dropped.
func (l *lowerer) lowerStatements(stmts []program.Stmt) {
	for _, s := range stmts {
		if !l.open() {
			return
		}
		l.lowerStatement(s)
	}
}

func (l *lowerer) lowerBlock(blk *program.Block) {
	l.pushScope()
	defer l.popScope()
	l.lowerStatements(blk.Stmts)
}

//nolint:gocyclo,cyclop // one case per statement kind
func (l *lowerer) lowerStatement(s program.Stmt) {
	switch s := s.(type) {
	case *program.Block:
		l.lowerBlock(s)
	case *program.VarStmt:
		l.lowerVar(s)
	case *program.LetStmt:
		v := l.b.Let(l.value(s.Value))
		l.mod.SetName(v.Result(), s.Name)
		l.declare(s.Name, symbol{value: v.Result()})
	case *program.AssignStmt:
		l.lowerAssign(s)
	case *program.IfStmt:
		l.lowerIf(s)
	case *program.LoopStmt:
		l.lowerLoop(nil, nil, s.Body, s.Continuing, s.BreakIf)
	case *program.ForStmt:
		l.pushScope()
		l.lowerLoop(s.Init, s.Cond, s.Body, updateBlock(s.Update), nil)
		l.popScope()
	case *program.WhileStmt:
		l.lowerLoop(nil, s.Cond, s.Body, nil, nil)
	case *program.SwitchStmt:
		l.lowerSwitch(s)
	case *program.BreakStmt:
		l.lowerBreak()
	case *program.ContinueStmt:
		f := l.innermost(isLoop)
		if f == nil {
			ir.Panicf("lower: continue outside of a loop")
		}
		f.continued = true
		l.b.Continue(f.ctrl.(*ir.Loop))
	case *program.DiscardStmt:
		l.b.Discard()
	case *program.ReturnStmt:
		if s.Value == nil {
			l.b.Return(l.fn)
		} else {
			l.b.Return(l.fn, l.value(s.Value))
		}
	case *program.CallStmt:
		l.call(s.Call)
	default:
		ir.Panicf("lower: unhandled statement %T", s)
	}
}

func (l *lowerer) lowerVar(s *program.VarStmt) {
	store := l.typ(s.Type)
	var init ir.Value
	if s.Init != nil {
		init = l.value(s.Init)
	}
	ptr := l.mod.Types.Ptr(ir.AddressSpaceFunction, store, ir.AccessReadWrite)
	v := l.b.VarNamed(s.Name, ptr, init)
	l.declare(s.Name, symbol{value: v.Result(), memory: true})
}

func (l *lowerer) lowerAssign(s *program.AssignStmt) {
	if s.LHS == nil {
		l.value(s.RHS)
		return
	}
	dst := l.place(s.LHS)
	if s.Op == program.OpNone {
		l.store(dst, l.value(s.RHS))
		return
	}
	cur := l.load(dst)
	rhs := l.value(s.RHS)
	res := l.b.Binary(binaryOp(s.Op), l.typ(s.LHS.Type()), cur, rhs)
	l.store(dst, res.Result())
}

func (l *lowerer) lowerIf(s *program.IfStmt) {
	i := l.b.If(l.value(s.Cond))
	merged := false

	l.b.With(i.True(), func() {
		l.lowerBlock(s.Then)
		if l.open() {
			l.b.ExitIf(i)
			merged = true
		}
	})
	if s.Else == nil {
		merged = true
	} else {
		l.b.With(i.False(), func() {
			l.lowerStatement(s.Else)
			if l.open() {
				l.b.ExitIf(i)
				merged = true
			}
		})
	}
	if !merged {
		l.b.Unreachable()
	}
}

// updateBlock wraps the update statement of a for loop as a continuing
// block.
func updateBlock(update program.Stmt) *program.Block {
	if update == nil {
		return nil
	}
	return &program.Block{Stmts: []program.Stmt{update}, Span: update.Pos()}
}

// lowerLoop lowers loop, for and while statements. init runs once in the
// initializer. A nil cond loops until a break. continuing and breakIf make
// up the continuing block.
func (l *lowerer) lowerLoop(init program.Stmt, cond program.Expr, body, continuing *program.Block, breakIf program.Expr) {
	loop := l.b.Loop()
	f := &frame{ctrl: loop}

	if init != nil {
		l.b.With(loop.Initializer(), func() {
			l.lowerStatement(init)
			l.b.NextIteration(loop)
		})
	}

	l.frames = append(l.frames, f)
	l.pushScope()
	l.b.With(loop.Body(), func() {
		if cond != nil {
			check := l.b.If(l.value(cond))
			l.b.With(check.True(), func() { l.b.ExitIf(check) })
			l.b.With(check.False(), func() { l.b.ExitLoop(loop) })
			f.merged = true
		}
		if body != nil {
			l.lowerStatements(body.Stmts)
		}
		if l.open() {
			l.b.Continue(loop)
			f.continued = true
		}
	})
	l.frames = l.frames[:len(l.frames)-1]

	// The continuing block sees the declarations of the body.
	if f.continued {
		l.b.With(loop.Continuing(), func() {
			if continuing != nil {
				l.lowerBlock(continuing)
			}
			if !l.open() {
				return
			}
			if breakIf != nil {
				l.b.BreakIf(loop, l.value(breakIf), nil, nil)
				f.merged = true
			} else {
				l.b.NextIteration(loop)
			}
		})
	}
	l.popScope()

	if !f.merged {
		l.b.Unreachable()
	}
}

func (l *lowerer) lowerSwitch(s *program.SwitchStmt) {
	sw := l.b.Switch(l.value(s.Selector))
	f := &frame{ctrl: sw}
	l.frames = append(l.frames, f)
	for _, c := range s.Cases {
		selectors := make([]*ir.Constant, 0, len(c.Selectors)+1)
		for _, sel := range c.Selectors {
			cv, ok := l.constant(sel)
			if !ok {
				ir.Panicf("lower: case selector is not a constant expression")
			}
			selectors = append(selectors, l.b.Constant(cv))
		}
		if c.Default {
			selectors = append(selectors, nil)
		}
		l.b.With(l.b.Case(sw, selectors...), func() {
			l.lowerBlock(c.Body)
			if l.open() {
				l.b.ExitSwitch(sw)
				f.merged = true
			}
		})
	}
	l.frames = l.frames[:len(l.frames)-1]

	if !f.merged {
		l.b.Unreachable()
	}
}

func (l *lowerer) lowerBreak() {
	f := l.innermost(func(*frame) bool { return true })
	if f == nil {
		ir.Panicf("lower: break outside of a loop or switch")
	}
	f.merged = true
	switch c := f.ctrl.(type) {
	case *ir.Loop:
		l.b.ExitLoop(c)
	case *ir.Switch:
		l.b.ExitSwitch(c)
	}
}

func isLoop(f *frame) bool {
	_, ok := f.ctrl.(*ir.Loop)
	return ok
}

// innermost returns the innermost frame matching pred, or nil.
func (l *lowerer) innermost(pred func(*frame) bool) *frame {
	for i := len(l.frames) - 1; i >= 0; i-- {
		if pred(l.frames[i]) {
			return l.frames[i]
		}
	}
	return nil
}
