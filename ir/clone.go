package ir

// CloneFunction deep-copies fn into a new function called name and appends
// it to the module of b. Values defined inside fn are remapped to their
// copies. Values defined outside fn, such as constants and module-scope
// variables, are shared with the original.
func CloneFunction(b *Builder, fn *Function, name string) *Function {
	out := b.Function(name, fn.returnType, fn.Stage)
	out.ReturnAttributes = fn.ReturnAttributes
	if fn.WorkgroupSize != nil {
		ws := *fn.WorkgroupSize
		out.WorkgroupSize = &ws
	}

	c := &cloner{
		b:      b,
		from:   fn,
		to:     out,
		values: make(map[Value]Value),
		ctrls:  make(map[ControlInstruction]ControlInstruction),
	}
	for _, p := range fn.params {
		np := b.FunctionParam(b.Module.NameOf(p), p.typ)
		np.Attributes = p.Attributes
		if p.BindingPoint != nil {
			bp := *p.BindingPoint
			np.BindingPoint = &bp
		}
		out.AddParam(np)
		c.values[p] = np
	}
	c.block(fn.block, out.block)
	return out
}

type cloner struct {
	b      *Builder
	from   *Function
	to     *Function
	values map[Value]Value
	ctrls  map[ControlInstruction]ControlInstruction
}

func (c *cloner) value(v Value) Value {
	if v == nil {
		return nil
	}
	if nv, ok := c.values[v]; ok {
		return nv
	}
	return v
}

func (c *cloner) ctrl(ci ControlInstruction) ControlInstruction {
	if ci == nil {
		return nil
	}
	nc, ok := c.ctrls[ci]
	if !ok {
		Panicf("clone: %s targets a control instruction outside the function", ci.FriendlyName())
	}
	return nc
}

func (c *cloner) block(src, dst *Block) {
	for _, p := range src.params {
		np := c.b.BlockParam(c.b.Module.NameOf(p), p.typ)
		dst.AddParam(np)
		c.values[p] = np
	}
	for inst := src.Front(); inst != nil; inst = inst.Next() {
		c.instruction(inst, dst)
	}
}

//nolint:gocyclo,cyclop // one case per instruction kind
func (c *cloner) instruction(src Instruction, dst *Block) {
	var out Instruction
	switch src := src.(type) {
	case *Binary:
		out = &Binary{Op: src.Op}
	case *Unary:
		out = &Unary{Op: src.Op}
	case *Load:
		out = &Load{}
	case *Store:
		out = &Store{}
	case *LoadVectorElement:
		out = &LoadVectorElement{}
	case *StoreVectorElement:
		out = &StoreVectorElement{}
	case *Access:
		out = &Access{}
	case *Var:
		v := &Var{Attributes: src.Attributes}
		if src.BindingPoint != nil {
			bp := *src.BindingPoint
			v.BindingPoint = &bp
		}
		out = v
	case *Let:
		out = &Let{}
	case *UserCall:
		out = &UserCall{}
	case *BuiltinCall:
		out = &BuiltinCall{Func: src.Func}
	case *Convert:
		out = &Convert{}
	case *Construct:
		out = &Construct{}
	case *Bitcast:
		out = &Bitcast{}
	case *Swizzle:
		out = &Swizzle{Indices: append([]uint32(nil), src.Indices...)}
	case *Discard:
		out = &Discard{}
	case *If:
		i := &If{}
		i.SetTrue(c.b.Block())
		i.SetFalse(c.b.Block())
		out = i
	case *Loop:
		l := &Loop{initializer: c.b.Block(), body: c.b.MultiInBlock(), continuing: c.b.MultiInBlock()}
		for _, blk := range l.Blocks() {
			blk.parent = l
		}
		out = l
	case *Switch:
		out = &Switch{}
	case *Return:
		out = &Return{fn: c.to}
	case *ExitIf:
		out = &ExitIf{}
	case *ExitLoop:
		out = &ExitLoop{}
	case *ExitSwitch:
		out = &ExitSwitch{}
	case *Continue:
		out = &Continue{}
	case *NextIteration:
		out = &NextIteration{}
	case *BreakIf:
		out = &BreakIf{numNextIter: src.numNextIter}
	case *Unreachable:
		out = &Unreachable{}
	default:
		Panicf("clone: unhandled instruction %s", src.FriendlyName())
	}

	ib := out.inst()
	ib.self = out
	ib.operands = make([]Value, len(src.Operands()))
	for n, v := range src.Operands() {
		ib.SetOperand(n, c.value(v))
	}
	for _, r := range src.Results() {
		nr := c.b.InstructionResult(r.typ)
		if name := c.b.Module.NameOf(r); name != "" {
			c.b.Module.SetName(nr, name)
		}
		ib.AddResult(nr)
		c.values[r] = nr
	}
	c.b.Module.track(out)
	dst.Append(out)

	switch src := src.(type) {
	case *UserCall:
		out.(*UserCall).SetTarget(src.target)
	case *If:
		i := out.(*If)
		c.ctrls[src] = i
		c.block(src.trueBlock, i.trueBlock)
		c.block(src.falseBlock, i.falseBlock)
	case *Loop:
		l := out.(*Loop)
		c.ctrls[src] = l
		c.block(src.initializer, l.initializer)
		c.block(src.body, l.body)
		c.block(src.continuing, l.continuing)
	case *Switch:
		s := out.(*Switch)
		c.ctrls[src] = s
		for _, cs := range src.cases {
			nc := &Case{Selectors: append([]CaseSelector(nil), cs.Selectors...), Block: c.b.Block()}
			s.AddCase(nc)
			c.block(cs.Block, nc.Block)
		}
	case Exit:
		out.(Exit).SetControlInstruction(c.ctrl(src.ControlInstruction()))
	case *Continue:
		out.(*Continue).SetLoop(c.ctrl(src.loop).(*Loop))
	case *NextIteration:
		out.(*NextIteration).SetLoop(c.ctrl(src.loop).(*Loop))
	}
}
