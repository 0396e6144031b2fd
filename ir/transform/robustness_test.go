package transform

import (
	"fmt"
	"testing"

	"github.com/gogpu/coreir/ir"
)

// runRobustness runs the pass with only the given config.
func runRobustness(t *testing.T, m *ir.Module, cfg RobustnessConfig) {
	t.Helper()
	inputs := NewDataMap()
	Add(inputs, cfg)
	runPass(t, m, RobustnessPass, inputs)
}

func TestRobustness_VectorLoad_ConstIndex(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		t.Run(fmt.Sprint(enabled), func(t *testing.T) {
			f := newFixture()
			fn := f.b.Function("foo", f.ty.U32(), ir.StageNone)
			f.b.With(fn.Block(), func() {
				vec := f.b.VarNamed("vec", f.ptr(ir.AddressSpaceFunction, f.ty.Vec(f.ty.U32(), 4)), nil)
				load := f.b.LoadVectorElement(vec.Result(), f.b.U32(5))
				f.b.Return(fn, load.Result())
			})

			src := "\n" + ir.Disassemble(f.m)
			runRobustness(t, f.m, RobustnessConfig{ClampFunction: enabled})

			want := `
%foo = func():u32 -> %b1 {
  %b1 = block {
    %vec:ptr<function, vec4<u32>, read_write> = var
    %1:u32 = load_vector_element %vec, 3u
    ret %1
  }
}
`
			if !enabled {
				want = src
			}
			expectDisassembly(t, f.m, want)
		})
	}
}

func TestRobustness_VectorStore_SignedDynamicIndex(t *testing.T) {
	f := newFixture()
	fn := f.b.Function("foo", f.ty.Void(), ir.StageNone)
	idx := f.b.FunctionParam("idx", f.ty.I32())
	fn.SetParams(idx)
	f.b.With(fn.Block(), func() {
		vec := f.b.VarNamed("vec", f.ptr(ir.AddressSpaceFunction, f.ty.Vec(f.ty.U32(), 4)), nil)
		f.b.StoreVectorElement(vec.Result(), idx, f.b.U32(1))
		f.b.Return(fn)
	})

	runRobustness(t, f.m, DefaultRobustnessConfig())

	expectDisassembly(t, f.m, `
%foo = func(%idx:i32):void -> %b1 {
  %b1 = block {
    %vec:ptr<function, vec4<u32>, read_write> = var
    %1:u32 = convert %idx
    %2:u32 = min %1, 3u
    store_vector_element %vec, %2, 1u
    ret
  }
}
`)
}

func TestRobustness_ValueAccess(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		t.Run(fmt.Sprint(enabled), func(t *testing.T) {
			f := newFixture()
			arr := f.ty.Array(f.ty.I32(), 4)
			fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
			a := f.b.FunctionParam("arr", arr)
			idx := f.b.FunctionParam("idx", f.ty.U32())
			fn.SetParams(a, idx)
			f.b.With(fn.Block(), func() {
				access := f.b.Access(f.ty.I32(), a, idx)
				f.b.Return(fn, access.Result())
			})

			src := "\n" + ir.Disassemble(f.m)
			cfg := DefaultRobustnessConfig()
			cfg.ClampValue = enabled
			runRobustness(t, f.m, cfg)

			want := `
%foo = func(%arr:array<i32, 4>, %idx:u32):i32 -> %b1 {
  %b1 = block {
    %1:u32 = min %idx, 3u
    %2:i32 = access %arr, %1
    ret %2
  }
}
`
			if !enabled {
				want = src
			}
			expectDisassembly(t, f.m, want)
		})
	}
}

func TestRobustness_MatrixAndVectorConstantIndices(t *testing.T) {
	f := newFixture()
	mat := f.ty.Mat(2, 3, f.ty.F32())
	g := f.global("m", ir.AddressSpacePrivate, mat)
	fn := f.b.Function("foo", f.ty.F32(), ir.StageNone)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(f.ptr(ir.AddressSpacePrivate, f.ty.F32()), g.Result(), f.b.U32(7), f.b.U32(9))
		load := f.b.Load(access.Result())
		f.b.Return(fn, load.Result())
	})

	runRobustness(t, f.m, DefaultRobustnessConfig())

	expectDisassembly(t, f.m, `
%b1 = block {  # root
  %m:ptr<private, mat2x3<f32>, read_write> = var
}

%foo = func():f32 -> %b2 {
  %b2 = block {
    %1:ptr<private, f32, read_write> = access %m, 1u, 2u
    %2:f32 = load %1
    ret %2
  }
}
`)
}

func TestRobustness_RuntimeSizedArray(t *testing.T) {
	f := newFixture()
	f32 := f.ty.F32()
	buf := f.ty.Struct("Buf", []ir.StructMemberDesc{
		{Name: "n", Type: f.ty.U32()},
		{Name: "data", Type: f.ty.RuntimeArray(f32)},
	})
	g := f.global("buf", ir.AddressSpaceStorage, buf)
	fn := f.b.Function("foo", f32, ir.StageNone)
	idx := f.b.FunctionParam("idx", f.ty.U32())
	fn.SetParams(idx)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(f.ptr(ir.AddressSpaceStorage, f32), g.Result(), f.b.U32(1), idx)
		load := f.b.Load(access.Result())
		f.b.Return(fn, load.Result())
	})

	runRobustness(t, f.m, DefaultRobustnessConfig())

	expectDisassembly(t, f.m, `
Buf = struct @align(4) {
  n:u32 @offset(0)
  data:array<f32> @offset(4)
}

%b1 = block {  # root
  %buf:ptr<storage, Buf, read_write> = var
}

%foo = func(%idx:u32):f32 -> %b2 {
  %b2 = block {
    %1:ptr<storage, array<f32>, read_write> = access %buf, 1u
    %2:u32 = arrayLength %1
    %3:u32 = sub %2, 1u
    %4:u32 = min %idx, %3
    %5:ptr<storage, f32, read_write> = access %buf, 1u, %4
    %6:f32 = load %5
    ret %6
  }
}
`)
}

func TestRobustness_DisabledAddressSpace(t *testing.T) {
	f := newFixture()
	arr := f.ty.Array(f.ty.I32(), 4)
	g := f.global("wg", ir.AddressSpaceWorkgroup, arr)
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	idx := f.b.FunctionParam("idx", f.ty.U32())
	fn.SetParams(idx)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(f.ptr(ir.AddressSpaceWorkgroup, f.ty.I32()), g.Result(), idx)
		load := f.b.Load(access.Result())
		f.b.Return(fn, load.Result())
	})

	cfg := DefaultRobustnessConfig()
	cfg.ClampWorkgroup = false
	inputs := NewDataMap()
	Add(inputs, cfg)
	expectUnchanged(t, f.m, RobustnessPass, inputs)
}
