package transform

import (
	"sort"

	mapset "github.com/deckarep/golang-set"

	"github.com/gogpu/coreir/ir"
)

// ZeroInitWorkgroupMemoryPass runs ZeroInitWorkgroupMemory.
var ZeroInitWorkgroupMemoryPass = register(withoutOptions("zero_init_workgroup_memory", ZeroInitWorkgroupMemory))

// ZeroInitWorkgroupMemory zeroes every workgroup variable used by a compute
// entry point, directly or through the functions it calls, at the start of
// the entry point. Elements of arrays are spread over the invocations of
// the workgroup with a strided loop. A workgroupBarrier follows the stores.
func ZeroInitWorkgroupMemory(m *ir.Module) (err error) {
	defer ir.Recover(&err)
	if !m.HasRootBlock() {
		return nil
	}
	z := &zeroInit{
		b:      ir.NewBuilder(m),
		m:      m,
		order:  make(map[*ir.Var]int),
		byFunc: make(map[*ir.Function]mapset.Set),
	}
	for _, inst := range m.RootBlock().Instructions() {
		v, ok := inst.(*ir.Var)
		if !ok {
			continue
		}
		if ptr, ok := v.Result().Type().(*ir.Pointer); ok && ptr.Space == ir.AddressSpaceWorkgroup {
			z.order[v] = len(z.order)
		}
	}
	if len(z.order) == 0 {
		return nil
	}
	for _, fn := range m.Functions() {
		if fn.Stage == ir.StageCompute {
			z.processEntryPoint(fn)
		}
	}
	return nil
}

type zeroInit struct {
	b *ir.Builder
	m *ir.Module

	// order is the declaration index of each workgroup variable.
	order map[*ir.Var]int
	// byFunc caches the workgroup variables reachable from a function.
	byFunc map[*ir.Function]mapset.Set
}

// zeroIndex is one index of the access chain to a zeroed element. Member
// indices are constant; array indices are derived from the linear index.
type zeroIndex struct {
	member *uint32
	// stride is the number of iterations needed to reach the array.
	stride uint32
	count  uint32
}

// zeroStore zeroes one element of a workgroup variable.
type zeroStore struct {
	v       *ir.Var
	typ     ir.Type
	indices []zeroIndex
}

// referencedVars returns the workgroup variables used by fn or its callees.
func (z *zeroInit) referencedVars(fn *ir.Function) mapset.Set {
	if vars, ok := z.byFunc[fn]; ok {
		return vars
	}
	vars := mapset.NewSet()
	// Recursion is not allowed, but guard against it anyway.
	z.byFunc[fn] = vars
	fn.WalkInstructions(func(inst ir.Instruction) {
		for _, op := range inst.Operands() {
			r, ok := op.(*ir.InstructionResult)
			if !ok {
				continue
			}
			if v, ok := r.Instruction().(*ir.Var); ok {
				if _, wg := z.order[v]; wg {
					vars.Add(v)
				}
			}
		}
		if call, ok := inst.(*ir.UserCall); ok && call.Target() != nil {
			for _, v := range z.referencedVars(call.Target()).ToSlice() {
				vars.Add(v)
			}
		}
	})
	return vars
}

// triviallyZeroable reports whether t can be zeroed with a single store.
func triviallyZeroable(t ir.Type) bool {
	switch t := t.(type) {
	case *ir.Atomic, *ir.Array:
		return false
	case *ir.Struct:
		for _, mem := range t.Members {
			if !triviallyZeroable(mem.Type) {
				return false
			}
		}
	}
	return true
}

// collect adds the stores that zero t, reached through indices, to stores,
// keyed by the number of iterations they need.
func (z *zeroInit) collect(v *ir.Var, t ir.Type, iterations uint32, indices []zeroIndex, stores map[uint32][]zeroStore) {
	if triviallyZeroable(t) {
		stores[iterations] = append(stores[iterations], zeroStore{v: v, typ: t, indices: indices})
		return
	}
	switch t := t.(type) {
	case *ir.Array:
		if t.Count == 0 {
			ir.Panicf("zero_init_workgroup_memory: runtime-sized array in workgroup variable %s", z.m.NameOf(v.Result()))
		}
		next := append(append([]zeroIndex(nil), indices...), zeroIndex{stride: iterations, count: t.Count})
		z.collect(v, t.Elem, iterations*t.Count, next, stores)
	case *ir.Atomic:
		stores[iterations] = append(stores[iterations], zeroStore{v: v, typ: t, indices: indices})
	case *ir.Struct:
		for _, mem := range t.Members {
			idx := mem.Index
			next := append(append([]zeroIndex(nil), indices...), zeroIndex{member: &idx})
			z.collect(v, mem.Type, iterations, next, stores)
		}
	default:
		ir.Panicf("zero_init_workgroup_memory: unexpected type %s", t)
	}
}

// localInvocationIndex returns the local invocation index of fn, adding a
// parameter for it if the entry point has none. Accesses of struct
// parameters are placed before start.
func (z *zeroInit) localInvocationIndex(fn *ir.Function, start ir.Instruction) ir.Value {
	u32 := z.m.Types.U32()
	for _, p := range fn.Params() {
		if s, ok := p.Type().(*ir.Struct); ok {
			for _, mem := range s.Members {
				if b := mem.Attributes().Builtin; b != nil && *b == ir.BuiltinLocalInvocationIndex {
					var idx ir.Value
					z.b.WithBefore(start, func() {
						idx = z.b.Access(u32, p, z.b.U32(mem.Index)).Result()
					})
					return idx
				}
			}
			continue
		}
		if b := p.Attributes.Builtin; b != nil && *b == ir.BuiltinLocalInvocationIndex {
			return p
		}
	}
	p := z.b.FunctionParam("", u32)
	p.Attributes = ir.Builtin(ir.BuiltinLocalInvocationIndex)
	fn.AddParam(p)
	return p
}

func (z *zeroInit) processEntryPoint(fn *ir.Function) {
	refs := z.referencedVars(fn)
	if refs.Cardinality() == 0 {
		return
	}
	if fn.WorkgroupSize == nil {
		ir.Panicf("zero_init_workgroup_memory: compute entry point %s has no workgroup size", fn.Name())
	}
	vars := make([]*ir.Var, 0, refs.Cardinality())
	for _, v := range refs.ToSlice() {
		vars = append(vars, v.(*ir.Var))
	}
	sort.Slice(vars, func(i, j int) bool { return z.order[vars[i]] < z.order[vars[j]] })

	stores := make(map[uint32][]zeroStore)
	for _, v := range vars {
		z.collect(v, v.Result().Type().(*ir.Pointer).StoreType, 1, nil, stores)
	}
	counts := make([]uint32, 0, len(stores))
	for n := range stores {
		counts = append(counts, n)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })

	start := fn.Block().Front()
	if start == nil {
		ir.Panicf("zero_init_workgroup_memory: entry point %s has an empty body", fn.Name())
	}
	local := z.localInvocationIndex(fn, start)
	size := fn.WorkgroupSize[0] * fn.WorkgroupSize[1] * fn.WorkgroupSize[2]

	z.b.WithBefore(start, func() {
		for _, n := range counts {
			if n == 1 {
				z.emitSingle(local, stores[n])
			} else {
				z.emitLoop(local, n, size, stores[n])
			}
		}
		z.b.CallBuiltin(z.m.Types.Void(), ir.BuiltinWorkgroupBarrier)
	})
}

// emitSingle makes the first invocation of the workgroup perform stores.
func (z *zeroInit) emitSingle(local ir.Value, stores []zeroStore) {
	ty := z.m.Types
	cond := z.b.Equal(ty.Bool(), local, z.b.U32(0))
	i := z.b.If(cond.Result())
	z.b.With(i.True(), func() {
		for _, s := range stores {
			z.emitStore(s, nil, 1)
		}
		z.b.ExitIf(i)
	})
}

// emitLoop spreads stores needing n iterations over the invocations:
//
//	for (var idx = local; idx < n; idx += size) { stores at idx }
func (z *zeroInit) emitLoop(local ir.Value, n, size uint32, stores []zeroStore) {
	ty := z.m.Types
	l := z.b.Loop()
	idx := z.b.BlockParam("", ty.U32())
	l.Body().SetParams(idx)
	z.b.With(l.Initializer(), func() { z.b.NextIteration(l, local) })
	z.b.With(l.Body(), func() {
		done := z.b.GreaterThanEqual(ty.Bool(), idx, z.b.U32(n))
		i := z.b.If(done.Result())
		z.b.With(i.True(), func() { z.b.ExitLoop(l) })
		for _, s := range stores {
			z.emitStore(s, idx, n)
		}
		z.b.Continue(l)
	})
	z.b.With(l.Continuing(), func() {
		next := z.b.Add(ty.U32(), idx, z.b.U32(size))
		z.b.NextIteration(l, next.Result())
	})
}

// emitStore zeroes the element of s selected by the linear index, which
// ranges over total iterations.
func (z *zeroInit) emitStore(s zeroStore, linear ir.Value, total uint32) {
	ty := z.m.Types
	to := s.v.Result()
	if len(s.indices) > 0 {
		indices := make([]ir.Value, len(s.indices))
		for i, zi := range s.indices {
			if zi.member != nil {
				indices[i] = z.b.U32(*zi.member)
				continue
			}
			if linear == nil || zi.count == 1 {
				indices[i] = z.b.U32(0)
				continue
			}
			idx := linear
			if zi.stride > 1 {
				idx = z.b.Divide(ty.U32(), idx, z.b.U32(zi.stride)).Result()
			}
			if zi.stride*zi.count < total {
				idx = z.b.Modulo(ty.U32(), idx, z.b.U32(zi.count)).Result()
			}
			indices[i] = idx
		}
		to = z.b.Access(ty.Ptr(ir.AddressSpaceWorkgroup, s.typ, ir.AccessReadWrite), to, indices...).Result()
	}
	if a, ok := s.typ.(*ir.Atomic); ok {
		z.b.CallBuiltin(ty.Void(), ir.BuiltinAtomicStore, to, z.b.Zero(a.Elem))
		return
	}
	z.b.Store(to, z.b.Zero(s.typ))
}
