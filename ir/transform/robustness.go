package transform

import "github.com/gogpu/coreir/ir"

// RobustnessConfig selects the accesses that are clamped.
type RobustnessConfig struct {
	// ClampValue clamps indices into values that are not in memory.
	ClampValue bool

	ClampFunction  bool
	ClampPrivate   bool
	ClampStorage   bool
	ClampUniform   bool
	ClampWorkgroup bool
}

// DefaultRobustnessConfig clamps every access.
func DefaultRobustnessConfig() RobustnessConfig {
	return RobustnessConfig{
		ClampValue:     true,
		ClampFunction:  true,
		ClampPrivate:   true,
		ClampStorage:   true,
		ClampUniform:   true,
		ClampWorkgroup: true,
	}
}

func (c RobustnessConfig) clamps(space ir.AddressSpace) bool {
	switch space {
	case ir.AddressSpaceFunction:
		return c.ClampFunction
	case ir.AddressSpacePrivate:
		return c.ClampPrivate
	case ir.AddressSpaceStorage:
		return c.ClampStorage
	case ir.AddressSpaceUniform:
		return c.ClampUniform
	case ir.AddressSpaceWorkgroup:
		return c.ClampWorkgroup
	}
	return false
}

// RobustnessPass runs Robustness with the RobustnessConfig of the inputs,
// or the default config.
var RobustnessPass = register(withOptions("robustness", DefaultRobustnessConfig(), Robustness))

// Robustness clamps the indices of access, load_vector_element and
// store_vector_element instructions to the bounds of the indexed type.
// Constant indices are clamped in place. Dynamic indices are converted to
// u32 and passed through min. Runtime-sized arrays are bounded by
// arrayLength.
func Robustness(m *ir.Module, cfg RobustnessConfig) (err error) {
	defer ir.Recover(&err)
	r := &robustness{b: ir.NewBuilder(m), m: m}

	var (
		accesses []*ir.Access
		loads    []*ir.LoadVectorElement
		stores   []*ir.StoreVectorElement
	)
	for _, inst := range m.Instructions() {
		if !inst.Alive() || inst.Block() == nil {
			continue
		}
		switch inst := inst.(type) {
		case *ir.Access:
			if view, ok := inst.Object().Type().(ir.MemoryView); ok {
				if cfg.clamps(view.AddressSpace()) {
					accesses = append(accesses, inst)
				}
			} else if cfg.ClampValue {
				accesses = append(accesses, inst)
			}
		case *ir.LoadVectorElement:
			if view, ok := inst.From().Type().(ir.MemoryView); ok && cfg.clamps(view.AddressSpace()) {
				loads = append(loads, inst)
			}
		case *ir.StoreVectorElement:
			if view, ok := inst.To().Type().(ir.MemoryView); ok && cfg.clamps(view.AddressSpace()) {
				stores = append(stores, inst)
			}
		}
	}

	for _, a := range accesses {
		r.b.WithBefore(a, func() { r.clampAccess(a) })
	}
	for _, l := range loads {
		r.b.WithBefore(l, func() { r.clampVectorElement(l, l.From()) })
	}
	for _, s := range stores {
		r.b.WithBefore(s, func() { r.clampVectorElement(s, s.To()) })
	}
	return nil
}

type robustness struct {
	b *ir.Builder
	m *ir.Module
}

func (r *robustness) clampVectorElement(inst ir.Instruction, ptr ir.Value) {
	vec, ok := ptr.Type().(ir.MemoryView).Store().(*ir.Vector)
	if !ok {
		ir.Panicf("robustness: %s of non-vector %s", inst.FriendlyName(), ptr.Type())
	}
	r.clampOperand(inst, 1, r.b.U32(vec.Width-1))
}

// clampOperand replaces operand i of inst with its value clamped to limit.
func (r *robustness) clampOperand(inst ir.Instruction, i int, limit ir.Value) {
	idx := inst.Operand(i)
	c, constIdx := ir.ConstantIndex(idx)
	l, constLimit := ir.ConstantIndex(limit)
	if constIdx && constLimit {
		inst.SetOperand(i, r.b.U32(min(c, l)))
		return
	}
	u32 := r.m.Types.U32()
	if ir.IsSignedInteger(idx.Type()) {
		idx = r.b.Convert(u32, idx).Result()
	}
	clamped := r.b.CallBuiltin(u32, ir.BuiltinMin, idx, limit)
	inst.SetOperand(i, clamped.Result())
}

func (r *robustness) clampAccess(a *ir.Access) {
	types := r.m.Types
	cur := a.Object().Type()
	if view, ok := cur.(ir.MemoryView); ok {
		cur = view.Store()
	}
	for i, idx := range a.Indices() {
		var limit ir.Value
		switch t := cur.(type) {
		case *ir.Vector:
			limit = r.b.U32(t.Width - 1)
		case *ir.Matrix:
			limit = r.b.U32(t.Columns - 1)
		case *ir.Array:
			if t.Count > 0 {
				limit = r.b.U32(t.Count - 1)
			} else {
				limit = r.runtimeArrayLimit(a, i, t)
			}
		}
		if limit != nil {
			// Operand 0 is the object.
			r.clampOperand(a, i+1, limit)
		}
		if c, ok := ir.ConstantIndex(idx); ok {
			cur = types.Element(cur, c)
		} else {
			cur = types.Element(cur, 0)
		}
		if cur == nil {
			ir.Panicf("robustness: access index %d out of range", i)
		}
	}
}

// runtimeArrayLimit returns arrayLength(arr) - 1 for the runtime-sized
// array indexed by index i of a.
func (r *robustness) runtimeArrayLimit(a *ir.Access, i int, arr *ir.Array) ir.Value {
	u32 := r.m.Types.U32()
	object := a.Object()
	if i > 0 {
		ptr, ok := object.Type().(*ir.Pointer)
		if !ok || i != 1 {
			ir.Panicf("robustness: runtime-sized array must be the last member of a buffer")
		}
		object = r.b.Access(r.m.Types.Ptr(ptr.Space, arr, ptr.Access), object, a.Indices()[0]).Result()
	}
	length := r.b.CallBuiltin(u32, ir.BuiltinArrayLength, object)
	return r.b.Subtract(u32, length.Result(), r.b.U32(1)).Result()
}
