package transform

import (
	"strconv"
	"strings"

	"github.com/gogpu/coreir/ir"
)

// VarForDynamicIndexPass runs VarForDynamicIndex.
var VarForDynamicIndexPass = register(withoutOptions("var_for_dynamic_index", VarForDynamicIndex))

// VarForDynamicIndex copies array and matrix values that are indexed with
// a non-constant index into function-scope variables, and indexes the
// variable instead. A leading run of constant indices is applied to the
// value first so only the dynamically indexed part is copied. Accesses of
// the same value with the same constant prefix share one variable.
//
// Dynamic indexing of vector values is left alone.
func VarForDynamicIndex(m *ir.Module) (err error) {
	defer ir.Recover(&err)
	b := ir.NewBuilder(m)
	for _, fn := range m.Functions() {
		v := &varForDynamicIndex{b: b, fn: fn, vars: make(map[dynamicIndexKey]*ir.Var)}
		var accesses []*ir.Access
		fn.WalkInstructions(func(inst ir.Instruction) {
			if a, ok := inst.(*ir.Access); ok {
				accesses = append(accesses, a)
			}
		})
		for _, a := range accesses {
			v.process(a)
		}
	}
	return nil
}

// dynamicIndexKey identifies the variable holding root indexed by a
// constant prefix.
type dynamicIndexKey struct {
	root   ir.Value
	prefix string
}

type varForDynamicIndex struct {
	b    *ir.Builder
	fn   *ir.Function
	vars map[dynamicIndexKey]*ir.Var
}

// firstDynamicIndex returns the position of the first non-constant index
// into an array or matrix, and the type indexed at that position.
func (v *varForDynamicIndex) firstDynamicIndex(a *ir.Access) (int, ir.Type) {
	types := v.b.Module.Types
	cur := a.Object().Type()
	for i, idx := range a.Indices() {
		c, isConst := ir.ConstantIndex(idx)
		if !isConst {
			switch cur.(type) {
			case *ir.Array, *ir.Matrix:
				return i, cur
			}
			return -1, nil
		}
		cur = types.Element(cur, c)
		if cur == nil {
			ir.Panicf("var_for_dynamic_index: access index %d of %s is out of range", i, a.Object().Type())
		}
	}
	return -1, nil
}

func (v *varForDynamicIndex) process(a *ir.Access) {
	if _, isView := a.Object().Type().(ir.MemoryView); isView {
		return
	}
	pos, indexed := v.firstDynamicIndex(a)
	if pos < 0 {
		return
	}
	prefix := append([]ir.Value(nil), a.Indices()[:pos]...)
	rest := append([]ir.Value(nil), a.Indices()[pos:]...)

	local := v.localFor(a, prefix, indexed)

	types := v.b.Module.Types
	v.b.WithBefore(a, func() {
		ptr := v.b.Access(types.Ptr(ir.AddressSpaceFunction, a.Result().Type(), ir.AccessReadWrite),
			local.Result(), rest...)
		load := v.b.Load(ptr.Result())
		ir.ReplaceAllUsesWith(a.Result(), load.Result())
	})
	a.Destroy()
}

// localFor returns the variable holding the object of a indexed by prefix,
// creating it on first use.
func (v *varForDynamicIndex) localFor(a *ir.Access, prefix []ir.Value, indexed ir.Type) *ir.Var {
	root := a.Object()
	parts := make([]string, len(prefix))
	for i, idx := range prefix {
		n, _ := ir.ConstantIndex(idx)
		parts[i] = strconv.FormatUint(uint64(n), 10)
	}
	key := dynamicIndexKey{root: root, prefix: strings.Join(parts, ",")}
	if local, ok := v.vars[key]; ok {
		return local
	}

	var local *ir.Var
	build := func() {
		base := root
		if len(prefix) > 0 {
			base = v.b.Access(indexed, root, prefix...).Result()
		}
		ptr := v.b.Module.Types.Ptr(ir.AddressSpaceFunction, indexed, ir.AccessReadWrite)
		local = v.b.VarNamed("", ptr, base)
	}
	switch r := root.(type) {
	case *ir.InstructionResult:
		v.b.WithAfter(r.Instruction(), build)
	case *ir.BlockParam:
		v.b.WithFront(r.Block(), build)
	default:
		// Function parameters and constants dominate the whole body.
		v.b.WithFront(v.fn.Block(), build)
	}
	v.vars[key] = local
	return local
}
