package transform

import (
	"fmt"
	"strings"

	"github.com/gogpu/coreir/ir"
)

// DirectVariableAccessOptions configures DirectVariableAccess.
type DirectVariableAccessOptions struct {
	// TransformPrivate also rewrites parameters pointing into the private
	// address space.
	TransformPrivate bool
	// TransformFunction also rewrites parameters pointing into the function
	// address space.
	TransformFunction bool
	// MaxVariants bounds the number of function variants created. Zero
	// selects a default of 4096.
	MaxVariants int
}

const defaultMaxVariants = 4096

// DirectVariableAccessPass runs DirectVariableAccess.
var DirectVariableAccessPass = register(withOptions("direct_variable_access",
	DirectVariableAccessOptions{}, DirectVariableAccess))

// DirectVariableAccess removes pointer parameters in the storage, uniform and
// workgroup address spaces, and optionally the private and function ones.
// Every distinct access path passed to such a parameter gets its own variant
// of the callee. The variant reaches the variable directly: module-scope
// variables are referenced by name, function-scope variables are passed as a
// root pointer, and the dynamic indices of the path are passed as an
// array<u32, N> value.
//
// Variants are named after the callee and the shape of each rewritten
// argument, for example foo_buf_data_X for buf.data[i]. Callees that are no
// longer called after the rewrite are removed. Running the pass a second
// time does not change the module.
func DirectVariableAccess(m *ir.Module, opts DirectVariableAccessOptions) (err error) {
	defer ir.Recover(&err)
	if opts.MaxVariants <= 0 {
		opts.MaxVariants = defaultMaxVariants
	}
	d := &directVariableAccess{
		m:        m,
		b:        ir.NewBuilder(m),
		opts:     opts,
		needs:    make(map[*ir.Function]bool),
		variants:  make(map[*ir.Function]*fnVariants),
		snapshots: make(map[*ir.Function]*fnSnapshot),
		rootIDs:   make(map[ir.Value]int),
	}
	d.run()
	return nil
}

// accessOp is one step of an access path: either a struct member, which is
// part of the variant, or an index, which is passed at run time.
type accessOp struct {
	member *ir.StructMember
}

func (op accessOp) isIndex() bool { return op.member == nil }

// accessShape is the static part of an access path: the variable it starts
// at and the operations applied to it.
type accessShape struct {
	// global is the module-scope variable the path starts at, or nil if the
	// path starts at a pointer passed in as rootPtr.
	global *ir.Var
	// rootType is the pointer type of the root pointer when global is nil.
	rootType ir.Type
	ops      []accessOp
}

func (s accessShape) numIndices() int {
	n := 0
	for _, op := range s.ops {
		if op.isIndex() {
			n++
		}
	}
	return n
}

// identity reports whether s passes the root pointer through unchanged.
func (s accessShape) identity() bool { return s.global == nil && len(s.ops) == 0 }

// accessChain is an access path found at a call site.
type accessChain struct {
	shape   accessShape
	rootPtr ir.Value
	indices []ir.Value
}

// variantSignature maps parameter indices of a callee to the shapes passed
// to them.
type variantSignature map[int]accessShape

type fnVariant struct {
	fn        *ir.Function
	source    *ir.Function
	signature variantSignature
}

type fnVariants struct {
	byKey map[string]*fnVariant
	order []*fnVariant
}

// fnSnapshot is an unnamed copy of a function taken before its calls were
// rewritten in place. names holds the names of the original's values in
// definedValues order.
type fnSnapshot struct {
	fn    *ir.Function
	names []string
}

type directVariableAccess struct {
	m    *ir.Module
	b    *ir.Builder
	opts DirectVariableAccessOptions

	needs     map[*ir.Function]bool
	variants  map[*ir.Function]*fnVariants
	snapshots map[*ir.Function]*fnSnapshot
	rootIDs   map[ir.Value]int
	queue     []*fnVariant
	created   int
}

func (d *directVariableAccess) run() {
	fns := append([]*ir.Function(nil), d.m.Functions()...)
	for _, fn := range fns {
		for _, p := range fn.Params() {
			if d.paramNeedsTransforming(p) {
				d.needs[fn] = true
				break
			}
		}
	}
	if len(d.needs) == 0 {
		return
	}
	for _, fn := range fns {
		if !d.needs[fn] {
			d.transformCalls(fn)
		}
	}
	for len(d.queue) > 0 {
		v := d.queue[0]
		d.queue = d.queue[1:]
		if v.fn == v.source {
			// Variants requested from here on clone the body as it was.
			d.snapshot(v.fn)
		}
		d.buildVariantParams(v)
		d.transformCalls(v.fn)
	}
	for _, s := range d.snapshots {
		d.m.DestroyFunction(s.fn)
	}

	// Replace each rewritten function with its variants, in the order they
	// were first requested.
	var out []*ir.Function
	for _, fn := range fns {
		if !d.needs[fn] {
			out = append(out, fn)
			continue
		}
		keep := false
		if vs := d.variants[fn]; vs != nil {
			for _, v := range vs.order {
				out = append(out, v.fn)
				keep = keep || v.fn == fn
			}
		}
		if !keep {
			d.m.DestroyFunction(fn)
		}
	}
	d.m.SetFunctions(out)
}

func (d *directVariableAccess) paramNeedsTransforming(p *ir.FunctionParam) bool {
	ptr, ok := p.Type().(*ir.Pointer)
	if !ok {
		return false
	}
	switch ptr.Space {
	case ir.AddressSpaceStorage, ir.AddressSpaceUniform, ir.AddressSpaceWorkgroup:
		return true
	case ir.AddressSpacePrivate:
		return d.opts.TransformPrivate
	case ir.AddressSpaceFunction:
		return d.opts.TransformFunction
	}
	return false
}

// transformCalls rewrites the calls of fn that target a function with
// parameters to transform.
func (d *directVariableAccess) transformCalls(fn *ir.Function) {
	var calls []*ir.UserCall
	fn.WalkInstructions(func(inst ir.Instruction) {
		if c, ok := inst.(*ir.UserCall); ok && d.needs[c.Target()] {
			calls = append(calls, c)
		}
	})
	for _, c := range calls {
		d.transformCall(c)
	}
}

func (d *directVariableAccess) transformCall(call *ir.UserCall) {
	target := call.Target()
	params := target.Params()
	oldArgs := append([]ir.Value(nil), call.Args()...)
	sig := variantSignature{}
	var args []ir.Value
	var dropped []ir.Value

	d.b.WithBefore(call, func() {
		for i, arg := range oldArgs {
			if !d.paramNeedsTransforming(params[i]) {
				args = append(args, arg)
				continue
			}
			chain := d.accessChainFor(arg)
			sig[i] = chain.shape
			dropped = append(dropped, arg)
			if chain.shape.identity() {
				args = append(args, chain.rootPtr)
				continue
			}
			if chain.rootPtr != nil {
				args = append(args, chain.rootPtr)
			}
			if n := len(chain.indices); n > 0 {
				arr := d.m.Types.Array(d.m.Types.U32(), uint32(n))
				args = append(args, d.b.Construct(arr, chain.indices...).Result())
			}
		}
	})

	v := d.variantFor(target, sig)
	if v.fn != target {
		call.SetTarget(v.fn)
	}
	call.SetArgs(args...)
	for _, arg := range dropped {
		destroyDeadChain(arg)
	}
}

// destroyDeadChain destroys the access and let instructions that produced v
// once nothing uses them any more.
func destroyDeadChain(v ir.Value) {
	for v != nil && v.NumUsages() == 0 {
		switch inst := ir.IsResultOf(v).(type) {
		case *ir.Access:
			v = inst.Object()
			inst.Destroy()
		case *ir.Let:
			v = inst.Value()
			inst.Destroy()
		default:
			return
		}
	}
}

// accessChainFor walks the pointer arg back to the variable it points into.
// Indices that are not u32 are converted in front of the current insertion
// point.
func (d *directVariableAccess) accessChainFor(arg ir.Value) accessChain {
	var ops []accessOp
	var indices []ir.Value
	var chain accessChain
	v := arg
walk:
	for {
		switch x := v.(type) {
		case *ir.FunctionParam:
			chain.rootPtr = x
			chain.shape.rootType = x.Type()
			break walk
		case *ir.InstructionResult:
			switch inst := x.Instruction().(type) {
			case *ir.Access:
				ops, indices = d.appendAccessOps(ops, indices, inst)
				v = inst.Object()
			case *ir.Let:
				v = inst.Value()
			case *ir.Var:
				if d.m.HasRootBlock() && inst.Block() == d.m.RootBlock() {
					chain.shape.global = inst
				} else {
					chain.rootPtr = inst.Result()
					chain.shape.rootType = inst.Result().Type()
				}
				break walk
			default:
				ir.Panicf("direct_variable_access: unexpected pointer source %s", inst.FriendlyName())
			}
		default:
			ir.Panicf("direct_variable_access: unexpected pointer argument %T", v)
		}
	}
	reverse(ops)
	reverse(indices)
	chain.shape.ops = ops
	chain.indices = indices
	return chain
}

// appendAccessOps appends the operations of a, innermost first.
func (d *directVariableAccess) appendAccessOps(ops []accessOp, indices []ir.Value, a *ir.Access) ([]accessOp, []ir.Value) {
	types := d.m.Types
	cur := a.Object().Type().(ir.MemoryView).Store()
	steps := make([]accessOp, len(a.Indices()))
	var dynamic []ir.Value
	for i, idx := range a.Indices() {
		if s, ok := cur.(*ir.Struct); ok {
			n, isConst := ir.ConstantIndex(idx)
			if !isConst || int(n) >= len(s.Members) {
				ir.Panicf("direct_variable_access: invalid member index into %s", s.Name)
			}
			steps[i] = accessOp{member: s.Members[n]}
			cur = s.Members[n].Type
			continue
		}
		if !ir.IsScalar(idx.Type(), ir.ScalarU32) {
			idx = d.b.Convert(types.U32(), idx).Result()
		}
		dynamic = append(dynamic, idx)
		cur = types.Element(cur, 0)
	}
	for i := len(steps) - 1; i >= 0; i-- {
		ops = append(ops, steps[i])
	}
	for i := len(dynamic) - 1; i >= 0; i-- {
		indices = append(indices, dynamic[i])
	}
	return ops, indices
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func (d *directVariableAccess) rootID(v ir.Value) int {
	id, ok := d.rootIDs[v]
	if !ok {
		id = len(d.rootIDs)
		d.rootIDs[v] = id
	}
	return id
}

func (d *directVariableAccess) shapeKey(s accessShape) string {
	var sb strings.Builder
	if s.global != nil {
		fmt.Fprintf(&sb, "G%d", d.rootID(s.global.Result()))
	} else {
		fmt.Fprintf(&sb, "P<%s>", s.rootType)
	}
	for _, op := range s.ops {
		if op.isIndex() {
			sb.WriteString("[]")
		} else {
			fmt.Fprintf(&sb, ".%d", op.member.Index)
		}
	}
	return sb.String()
}

func (d *directVariableAccess) shapeName(s accessShape) string {
	var sb strings.Builder
	if s.global != nil {
		name := d.m.NameOf(s.global.Result())
		if name == "" {
			name = "G"
		}
		sb.WriteString(name)
	} else {
		sb.WriteString("P")
	}
	for _, op := range s.ops {
		if op.isIndex() {
			sb.WriteString("_X")
		} else {
			sb.WriteString("_" + op.member.Name)
		}
	}
	return sb.String()
}

// variantFor returns the variant of fn for sig, creating it on first use.
// A signature made only of pass-through root pointers is served by fn
// itself.
func (d *directVariableAccess) variantFor(fn *ir.Function, sig variantSignature) *fnVariant {
	vs := d.variants[fn]
	if vs == nil {
		vs = &fnVariants{byKey: make(map[string]*fnVariant)}
		d.variants[fn] = vs
	}

	identity := true
	var key, name strings.Builder
	name.WriteString(fn.Name())
	for i, p := range fn.Params() {
		s, ok := sig[i]
		if !ok {
			continue
		}
		fmt.Fprintf(&key, "%d:%s;", p.Index(), d.shapeKey(s))
		if !s.identity() {
			identity = false
		}
		name.WriteString("_" + d.shapeName(s))
	}
	if v, ok := vs.byKey[key.String()]; ok {
		return v
	}

	v := &fnVariant{source: fn, signature: sig}
	if identity {
		v.fn = fn
	} else {
		d.created++
		if d.created > d.opts.MaxVariants {
			ir.Panicf("direct_variable_access: more than %d function variants required", d.opts.MaxVariants)
		}
		v.fn = d.clone(fn, name.String())
	}
	vs.byKey[key.String()] = v
	vs.order = append(vs.order, v)
	d.queue = append(d.queue, v)
	return v
}

// snapshot records the current body of fn. The copy is kept out of the
// function list and its values are unnamed.
func (d *directVariableAccess) snapshot(fn *ir.Function) {
	c := ir.CloneFunction(d.b, fn, fn.Name())
	d.m.RemoveFunction(c)
	orig := definedValues(fn)
	s := &fnSnapshot{fn: c}
	for i, v := range definedValues(c) {
		s.names = append(s.names, d.m.NameOf(orig[i]))
		d.m.SetName(v, "")
	}
	d.snapshots[fn] = s
}

// clone copies fn into a new function called name, starting from its
// snapshot when its calls have already been rewritten.
func (d *directVariableAccess) clone(fn *ir.Function, name string) *ir.Function {
	s, ok := d.snapshots[fn]
	if !ok {
		return ir.CloneFunction(d.b, fn, name)
	}
	out := ir.CloneFunction(d.b, s.fn, name)
	for i, v := range definedValues(out) {
		if s.names[i] != "" {
			d.m.SetName(v, s.names[i])
		}
	}
	return out
}

// definedValues returns the parameters, instruction results and block
// parameters of fn in a fixed order. Two structurally identical functions
// list corresponding values at the same positions.
func definedValues(fn *ir.Function) []ir.Value {
	var out []ir.Value
	for _, p := range fn.Params() {
		out = append(out, p)
	}
	fn.WalkInstructions(func(inst ir.Instruction) {
		for _, r := range inst.Results() {
			out = append(out, r)
		}
		if ctrl, ok := inst.(ir.ControlInstruction); ok {
			for _, b := range ctrl.Blocks() {
				for _, p := range b.Params() {
					out = append(out, p)
				}
			}
		}
	})
	return out
}

// buildVariantParams replaces each rewritten parameter of a variant with its
// root pointer and index array, and rebuilds the access path at the top of
// the body.
func (d *directVariableAccess) buildVariantParams(v *fnVariant) {
	fn := v.fn
	types := d.m.Types
	old := append([]*ir.FunctionParam(nil), fn.Params()...)
	var params []*ir.FunctionParam
	replaced := false

	d.b.WithFront(fn.Block(), func() {
		for i, p := range old {
			shape, ok := v.signature[i]
			if !ok || shape.identity() {
				params = append(params, p)
				continue
			}
			replaced = true
			// Release the copied name.
			d.m.SetName(p, "")
			name := d.m.NameOf(v.source.Params()[i])
			if name == "" {
				name = "p"
			}

			var root ir.Value
			if shape.global != nil {
				root = shape.global.Result()
			} else {
				rp := d.b.FunctionParam(name+"_root", shape.rootType)
				params = append(params, rp)
				root = rp
			}

			var dynamic []ir.Value
			if n := shape.numIndices(); n > 0 {
				ip := d.b.FunctionParam(name+"_indices", types.Array(types.U32(), uint32(n)))
				params = append(params, ip)
				for j := 0; j < n; j++ {
					dynamic = append(dynamic, d.b.Access(types.U32(), ip, d.b.U32(uint32(j))).Result())
				}
			}

			repl := root
			if len(shape.ops) > 0 {
				var idx []ir.Value
				next := 0
				for _, op := range shape.ops {
					if op.isIndex() {
						idx = append(idx, dynamic[next])
						next++
					} else {
						idx = append(idx, d.b.U32(op.member.Index))
					}
				}
				repl = d.b.Access(p.Type(), root, idx...).Result()
			}
			ir.ReplaceAllUsesWith(p, repl)
			p.Destroy()
		}
	})
	if replaced {
		fn.SetParams(params...)
	}
}
