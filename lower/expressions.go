package lower

import (
	"github.com/gogpu/coreir/ir"
	"github.com/gogpu/coreir/program"
)

// place is a memory location: a pointer, optionally narrowed to a single
// vector component.
type place struct {
	ptr ir.Value
	// component, if set, selects an element of the vector ptr points to.
	component ir.Value
}

func (l *lowerer) load(p place) ir.Value {
	if p.component != nil {
		return l.b.LoadVectorElement(p.ptr, p.component).Result()
	}
	return l.b.Load(p.ptr).Result()
}

func (l *lowerer) store(p place, v ir.Value) {
	if p.component != nil {
		l.b.StoreVectorElement(p.ptr, p.component, v)
		return
	}
	l.b.Store(p.ptr, v)
}

// isMemory reports whether e denotes memory rather than a value.
func (l *lowerer) isMemory(e program.Expr) bool {
	switch e := e.(type) {
	case *program.Ident:
		return l.lookup(e.Name).memory
	case *program.Unary:
		return e.Op == program.OpDeref
	case *program.Index:
		return l.isMemory(e.X)
	case *program.Member:
		return l.isMemory(e.X)
	case *program.Swizzle:
		return len(e.Indices) == 1 && l.isMemory(e.X)
	}
	return false
}

// chain unwinds nested index, member and single-component swizzle
// expressions down to their root. links are ordered from the root outward.
func chain(e program.Expr) (root program.Expr, links []program.Expr) {
	for {
		var next program.Expr
		switch x := e.(type) {
		case *program.Index:
			next = x.X
		case *program.Member:
			next = x.X
		case *program.Swizzle:
			if len(x.Indices) == 1 {
				next = x.X
			}
		}
		if next == nil {
			break
		}
		links = append(links, e)
		e = next
	}
	for i, j := 0, len(links)-1; i < j; i, j = i+1, j-1 {
		links[i], links[j] = links[j], links[i]
	}
	return e, links
}

// linkIndex returns the index operand selected by an access link and the
// type it selects.
func (l *lowerer) linkIndex(link program.Expr) (ir.Value, ir.Type) {
	switch x := link.(type) {
	case *program.Index:
		return l.value(x.Index), l.typ(x.T)
	case *program.Member:
		s, ok := x.X.Type().(*program.Struct)
		if !ok {
			ir.Panicf("lower: member %q of non-structure type %s", x.Name, x.X.Type())
		}
		_, idx := s.Member(x.Name)
		if idx < 0 {
			ir.Panicf("lower: structure %s has no member %q", s.Name, x.Name)
		}
		return l.b.U32(uint32(idx)), l.typ(x.T)
	case *program.Swizzle:
		return l.b.U32(x.Indices[0]), l.typ(x.T)
	}
	ir.Panicf("lower: unhandled access %T", link)
	return nil, nil
}

// place lowers a memory expression to its location. Consecutive indices
// fold into one access instruction.
func (l *lowerer) place(e program.Expr) place {
	root, links := chain(e)
	var base ir.Value
	switch r := root.(type) {
	case *program.Ident:
		sym := l.lookup(r.Name)
		if !sym.memory {
			ir.Panicf("lower: %q is not a variable", r.Name)
		}
		base = sym.value
	case *program.Unary:
		if r.Op != program.OpDeref {
			ir.Panicf("lower: %s expression does not denote memory", r.Op)
		}
		base = l.value(r.X)
	default:
		ir.Panicf("lower: %T does not denote memory", root)
	}

	ptr, ok := base.Type().(*ir.Pointer)
	if !ok {
		ir.Panicf("lower: memory root has non-pointer type %s", base.Type())
	}
	var indices []ir.Value
	var component ir.Value
	store := ptr.StoreType
	for i, link := range links {
		idx, elem := l.linkIndex(link)
		if _, vec := store.(*ir.Vector); vec && i == len(links)-1 {
			component = idx
			break
		}
		indices = append(indices, idx)
		store = elem
	}
	if len(indices) > 0 {
		view := l.mod.Types.Ptr(ptr.Space, store, ptr.Access)
		base = l.b.Access(view, base, indices...).Result()
	}
	return place{ptr: base, component: component}
}

// value lowers e to the value it evaluates to.
//
//nolint:gocyclo,cyclop // one case per expression kind
func (l *lowerer) value(e program.Expr) ir.Value {
	if l.isMemory(e) {
		return l.load(l.place(e))
	}
	switch e := e.(type) {
	case *program.Literal:
		return l.b.Constant(l.literal(e))
	case *program.Ident:
		return l.lookup(e.Name).value
	case *program.Binary:
		if e.Op == program.OpLogicalAnd || e.Op == program.OpLogicalOr {
			return l.shortCircuit(e)
		}
		lhs := l.value(e.LHS)
		rhs := l.value(e.RHS)
		return l.b.Binary(binaryOp(e.Op), l.typ(e.T), lhs, rhs).Result()
	case *program.Unary:
		return l.unary(e)
	case *program.Call:
		return l.call(e)
	case *program.Construct:
		t := l.typ(e.T)
		if len(e.Args) == 0 {
			return l.b.Zero(t)
		}
		return l.b.Construct(t, l.values(e.Args)...).Result()
	case *program.Convert:
		return l.b.Convert(l.typ(e.T), l.value(e.X)).Result()
	case *program.Bitcast:
		return l.b.Bitcast(l.typ(e.T), l.value(e.X)).Result()
	case *program.Index, *program.Member:
		return l.access(e)
	case *program.Swizzle:
		if len(e.Indices) == 1 {
			return l.access(e)
		}
		return l.b.Swizzle(l.typ(e.T), l.value(e.X), e.Indices...).Result()
	case nil:
		ir.Panicf("lower: missing expression")
	}
	ir.Panicf("lower: unhandled expression %T", e)
	return nil
}

func (l *lowerer) values(es []program.Expr) []ir.Value {
	out := make([]ir.Value, len(es))
	for i, e := range es {
		out[i] = l.value(e)
	}
	return out
}

// access lowers an index chain into a value.
func (l *lowerer) access(e program.Expr) ir.Value {
	root, links := chain(e)
	obj := l.value(root)
	indices := make([]ir.Value, len(links))
	for i, link := range links {
		indices[i], _ = l.linkIndex(link)
	}
	return l.b.Access(l.typ(e.Type()), obj, indices...).Result()
}

func (l *lowerer) unary(e *program.Unary) ir.Value {
	switch e.Op {
	case program.OpAddressOf:
		p := l.place(e.X)
		if p.component != nil {
			ir.Panicf("lower: cannot take the address of a vector component")
		}
		return p.ptr
	case program.OpNegate:
		return l.b.Negation(l.typ(e.T), l.value(e.X)).Result()
	case program.OpNot:
		return l.b.Not(l.typ(e.T), l.value(e.X)).Result()
	case program.OpComplement:
		return l.b.Unary(ir.UnaryComplement, l.typ(e.T), l.value(e.X)).Result()
	}
	ir.Panicf("lower: unhandled unary operator %q", e.Op)
	return nil
}

// shortCircuit lowers a && b to an if whose false branch yields false
// without evaluating b, and a || b to one whose true branch yields true.
func (l *lowerer) shortCircuit(e *program.Binary) ir.Value {
	boolT := l.mod.Types.Bool()
	i := l.b.If(l.value(e.LHS))
	i.SetResults(l.b.InstructionResult(boolT))
	rhs, short := i.True(), i.False()
	if e.Op == program.OpLogicalOr {
		rhs, short = short, rhs
	}
	l.b.With(rhs, func() { l.b.ExitIf(i, l.value(e.RHS)) })
	l.b.With(short, func() { l.b.ExitIf(i, l.b.Bool(e.Op == program.OpLogicalOr)) })
	return i.Result()
}

// call lowers a call to a user function or a builtin. The result of a
// call without a return value has type void.
func (l *lowerer) call(c *program.Call) ir.Value {
	t := ir.Type(l.mod.Types.Void())
	if c.T != nil {
		t = l.typ(c.T)
	}
	args := l.values(c.Args)
	if fn, ok := l.fns[c.Func]; ok {
		return l.b.Call(t, fn, args...).Result()
	}
	if bf, ok := ir.BuiltinFnByName(c.Func); ok {
		return l.b.CallBuiltin(t, bf, args...).Result()
	}
	ir.Panicf("lower: call of unknown function %q", c.Func)
	return nil
}

func (l *lowerer) literal(lit *program.Literal) ir.ConstValue {
	c := l.mod.Constants
	switch lit.T.Kind {
	case program.Bool:
		return c.Bool(lit.Bool)
	case program.I32:
		return c.I32(int32(lit.Int))
	case program.U32:
		return c.U32(uint32(lit.Int))
	case program.F32:
		return c.F32(float32(lit.Float))
	case program.F16:
		return c.F16(float32(lit.Float))
	}
	ir.Panicf("lower: unhandled literal kind %d", lit.T.Kind)
	return nil
}

// constant evaluates a constant expression: a literal, a negated literal,
// or a construction from constant expressions.
func (l *lowerer) constant(e program.Expr) (ir.ConstValue, bool) {
	c := l.mod.Constants
	switch e := e.(type) {
	case *program.Literal:
		return l.literal(e), true
	case *program.Unary:
		lit, ok := e.X.(*program.Literal)
		if e.Op != program.OpNegate || !ok {
			return nil, false
		}
		neg := *lit
		neg.Int, neg.Float = -lit.Int, -lit.Float
		return l.literal(&neg), true
	case *program.Construct:
		t := l.typ(e.T)
		if len(e.Args) == 0 {
			return c.Zero(t), true
		}
		elems := make([]ir.ConstValue, len(e.Args))
		for i, a := range e.Args {
			cv, ok := l.constant(a)
			if !ok {
				return nil, false
			}
			elems[i] = cv
		}
		if v, ok := t.(*ir.Vector); ok && len(elems) == 1 && v.Width > 1 {
			return c.Splat(t, elems[0], int(v.Width)), true
		}
		return c.Composite(t, elems), true
	}
	return nil, false
}

func binaryOp(op program.BinaryOp) ir.BinaryOp {
	switch op {
	case program.OpAdd:
		return ir.BinaryAdd
	case program.OpSub:
		return ir.BinarySubtract
	case program.OpMul:
		return ir.BinaryMultiply
	case program.OpDiv:
		return ir.BinaryDivide
	case program.OpMod:
		return ir.BinaryModulo
	case program.OpAnd:
		return ir.BinaryAnd
	case program.OpOr:
		return ir.BinaryOr
	case program.OpXor:
		return ir.BinaryXor
	case program.OpShiftLeft:
		return ir.BinaryShiftLeft
	case program.OpShiftRight:
		return ir.BinaryShiftRight
	case program.OpEqual:
		return ir.BinaryEqual
	case program.OpNotEqual:
		return ir.BinaryNotEqual
	case program.OpLess:
		return ir.BinaryLessThan
	case program.OpLessEqual:
		return ir.BinaryLessThanEqual
	case program.OpGreater:
		return ir.BinaryGreaterThan
	case program.OpGreaterEqual:
		return ir.BinaryGreaterThanEqual
	}
	ir.Panicf("lower: unhandled binary operator %q", op)
	return 0
}
