package transform

import (
	"testing"

	"github.com/gogpu/coreir/ir"
)

func TestVarForDynamicIndex_NoModify_ConstantIndex(t *testing.T) {
	f := newFixture()
	arr := f.ty.Array(f.ty.I32(), 4)
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	a := f.b.FunctionParam("arr", arr)
	fn.SetParams(a)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(f.ty.I32(), a, f.b.U32(1))
		f.b.Return(fn, access.Result())
	})

	expectUnchanged(t, f.m, VarForDynamicIndexPass, nil)
}

func TestVarForDynamicIndex_NoModify_DynamicIndexThroughPointer(t *testing.T) {
	f := newFixture()
	arr := f.ty.Array(f.ty.I32(), 4)
	g := f.global("g", ir.AddressSpacePrivate, arr)
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	idx := f.b.FunctionParam("idx", f.ty.I32())
	fn.SetParams(idx)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(f.ptr(ir.AddressSpacePrivate, f.ty.I32()), g.Result(), idx)
		load := f.b.Load(access.Result())
		f.b.Return(fn, load.Result())
	})

	expectUnchanged(t, f.m, VarForDynamicIndexPass, nil)
}

func TestVarForDynamicIndex_NoModify_DynamicIndexIntoVector(t *testing.T) {
	f := newFixture()
	vec := f.ty.Vec(f.ty.F32(), 4)
	fn := f.b.Function("foo", f.ty.F32(), ir.StageNone)
	v := f.b.FunctionParam("v", vec)
	idx := f.b.FunctionParam("idx", f.ty.I32())
	fn.SetParams(v, idx)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(f.ty.F32(), v, idx)
		f.b.Return(fn, access.Result())
	})

	expectUnchanged(t, f.m, VarForDynamicIndexPass, nil)
}

func TestVarForDynamicIndex_DynamicIndexIntoArrayValue(t *testing.T) {
	f := newFixture()
	arr := f.ty.Array(f.ty.I32(), 4)
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	a := f.b.FunctionParam("arr", arr)
	fn.SetParams(a)
	f.b.With(fn.Block(), func() {
		i := f.b.VarNamed("i", f.ptr(ir.AddressSpaceFunction, f.ty.I32()), nil)
		idx := f.b.Load(i.Result())
		access := f.b.Access(f.ty.I32(), a, idx.Result())
		f.b.Return(fn, access.Result())
	})

	runPass(t, f.m, VarForDynamicIndexPass, nil)

	expectDisassembly(t, f.m, `
%foo = func(%arr:array<i32, 4>):i32 -> %b1 {
  %b1 = block {
    %1:ptr<function, array<i32, 4>, read_write> = var, %arr
    %i:ptr<function, i32, read_write> = var
    %2:i32 = load %i
    %3:ptr<function, i32, read_write> = access %1, %2
    %4:i32 = load %3
    ret %4
  }
}
`)
}

func TestVarForDynamicIndex_DynamicIndexIntoMatrixValue(t *testing.T) {
	f := newFixture()
	mat := f.ty.Mat(2, 2, f.ty.F32())
	vec := f.ty.Vec(f.ty.F32(), 2)
	fn := f.b.Function("foo", vec, ir.StageNone)
	mp := f.b.FunctionParam("m", mat)
	idx := f.b.FunctionParam("idx", f.ty.I32())
	fn.SetParams(mp, idx)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(vec, mp, idx)
		f.b.Return(fn, access.Result())
	})

	runPass(t, f.m, VarForDynamicIndexPass, nil)

	expectDisassembly(t, f.m, `
%foo = func(%m:mat2x2<f32>, %idx:i32):vec2<f32> -> %b1 {
  %b1 = block {
    %1:ptr<function, mat2x2<f32>, read_write> = var, %m
    %2:ptr<function, vec2<f32>, read_write> = access %1, %idx
    %3:vec2<f32> = load %2
    ret %3
  }
}
`)
}

func TestVarForDynamicIndex_SkipConstantPrefix(t *testing.T) {
	f := newFixture()
	inner := f.ty.Array(f.ty.I32(), 4)
	outer := f.ty.Array(inner, 4)
	g := f.global("g", ir.AddressSpacePrivate, outer)
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	idx := f.b.FunctionParam("idx", f.ty.I32())
	fn.SetParams(idx)
	f.b.With(fn.Block(), func() {
		val := f.b.Load(g.Result())
		access := f.b.Access(f.ty.I32(), val.Result(), f.b.U32(1), idx)
		f.b.Return(fn, access.Result())
	})

	runPass(t, f.m, VarForDynamicIndexPass, nil)

	expectDisassembly(t, f.m, `
%b1 = block {  # root
  %g:ptr<private, array<array<i32, 4>, 4>, read_write> = var
}

%foo = func(%idx:i32):i32 -> %b2 {
  %b2 = block {
    %1:array<array<i32, 4>, 4> = load %g
    %2:array<i32, 4> = access %1, 1u
    %3:ptr<function, array<i32, 4>, read_write> = var, %2
    %4:ptr<function, i32, read_write> = access %3, %idx
    %5:i32 = load %4
    ret %5
  }
}
`)
}

func TestVarForDynamicIndex_ConstantRoot(t *testing.T) {
	f := newFixture()
	arr := f.ty.Array(f.ty.I32(), 4)
	c := f.m.Constant(f.m.Constants.Composite(arr, []ir.ConstValue{
		f.m.Constants.I32(1), f.m.Constants.I32(2), f.m.Constants.I32(3), f.m.Constants.I32(4),
	}))
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	idx := f.b.FunctionParam("idx", f.ty.I32())
	fn.SetParams(idx)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(f.ty.I32(), c, idx)
		f.b.Return(fn, access.Result())
	})

	runPass(t, f.m, VarForDynamicIndexPass, nil)

	expectDisassembly(t, f.m, `
%foo = func(%idx:i32):i32 -> %b1 {
  %b1 = block {
    %1:ptr<function, array<i32, 4>, read_write> = var, array<i32, 4>(1i, 2i, 3i, 4i)
    %2:ptr<function, i32, read_write> = access %1, %idx
    %3:i32 = load %2
    ret %3
  }
}
`)
}

func TestVarForDynamicIndex_ConstantRootInSiblingBlocks(t *testing.T) {
	f := newFixture()
	arr := f.ty.Array(f.ty.I32(), 4)
	c := f.m.Constant(f.m.Constants.Composite(arr, []ir.ConstValue{
		f.m.Constants.I32(1), f.m.Constants.I32(2), f.m.Constants.I32(3), f.m.Constants.I32(4),
	}))
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	cond := f.b.FunctionParam("cond", f.ty.Bool())
	idx := f.b.FunctionParam("idx", f.ty.I32())
	fn.SetParams(cond, idx)
	f.b.With(fn.Block(), func() {
		i := f.b.If(cond)
		f.b.With(i.True(), func() {
			f.b.Return(fn, f.b.Access(f.ty.I32(), c, idx).Result())
		})
		f.b.With(i.False(), func() {
			f.b.Return(fn, f.b.Access(f.ty.I32(), c, idx).Result())
		})
		f.b.Unreachable()
	})

	runPass(t, f.m, VarForDynamicIndexPass, nil)
	mustValidate(t, f.m)

	expectDisassembly(t, f.m, `
%foo = func(%cond:bool, %idx:i32):i32 -> %b1 {
  %b1 = block {
    %1:ptr<function, array<i32, 4>, read_write> = var, array<i32, 4>(1i, 2i, 3i, 4i)
    if %cond [t: %b2, f: %b3] {  # if_1
      %b2 = block {  # true
        %2:ptr<function, i32, read_write> = access %1, %idx
        %3:i32 = load %2
        ret %3
      }
      %b3 = block {  # false
        %4:ptr<function, i32, read_write> = access %1, %idx
        %5:i32 = load %4
        ret %5
      }
    }
    unreachable
  }
}
`)
}

func TestVarForDynamicIndex_MultipleAccessesShareVariable(t *testing.T) {
	f := newFixture()
	i32 := f.ty.I32()
	arr := f.ty.Array(i32, 4)
	fn := f.b.Function("foo", i32, ir.StageNone)
	a := f.b.FunctionParam("arr", arr)
	fn.SetParams(a)
	f.b.With(fn.Block(), func() {
		i := f.b.VarNamed("i", f.ptr(ir.AddressSpaceFunction, i32), nil)
		first := f.b.Load(i.Result())
		second := f.b.Add(i32, first.Result(), f.b.I32(1))
		x := f.b.Access(i32, a, first.Result())
		y := f.b.Access(i32, a, second.Result())
		sum := f.b.Add(i32, x.Result(), y.Result())
		f.b.Return(fn, sum.Result())
	})

	runPass(t, f.m, VarForDynamicIndexPass, nil)

	expectDisassembly(t, f.m, `
%foo = func(%arr:array<i32, 4>):i32 -> %b1 {
  %b1 = block {
    %1:ptr<function, array<i32, 4>, read_write> = var, %arr
    %i:ptr<function, i32, read_write> = var
    %2:i32 = load %i
    %3:i32 = add %2, 1i
    %4:ptr<function, i32, read_write> = access %1, %2
    %5:i32 = load %4
    %6:ptr<function, i32, read_write> = access %1, %3
    %7:i32 = load %6
    %8:i32 = add %5, %7
    ret %8
  }
}
`)

	vars := 0
	fn.WalkInstructions(func(inst ir.Instruction) {
		if v, ok := inst.(*ir.Var); ok && v.Initializer() == ir.Value(a) {
			vars++
		}
	})
	if vars != 1 {
		t.Errorf("got %d copies of %%arr, want 1", vars)
	}
}

func TestVarForDynamicIndex_Idempotent(t *testing.T) {
	f := newFixture()
	arr := f.ty.Array(f.ty.I32(), 4)
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	a := f.b.FunctionParam("arr", arr)
	idx := f.b.FunctionParam("idx", f.ty.I32())
	fn.SetParams(a, idx)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(f.ty.I32(), a, idx)
		f.b.Return(fn, access.Result())
	})

	runPass(t, f.m, VarForDynamicIndexPass, nil)
	expectUnchanged(t, f.m, VarForDynamicIndexPass, nil)
}
