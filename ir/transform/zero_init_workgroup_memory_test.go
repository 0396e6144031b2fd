package transform

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/coreir/ir"
)

func TestZeroInitWorkgroupMemory_NoRootBlock(t *testing.T) {
	f := newFixture()
	fn := f.b.ComputeFunction("main", 1, 1, 1)
	f.b.With(fn.Block(), func() { f.b.Return(fn) })

	expectUnchanged(t, f.m, ZeroInitWorkgroupMemoryPass, nil)
}

func TestZeroInitWorkgroupMemory_UnusedVar(t *testing.T) {
	f := newFixture()
	f.global("wgvar", ir.AddressSpaceWorkgroup, f.ty.I32())
	fn := f.b.ComputeFunction("main", 1, 1, 1)
	f.b.With(fn.Block(), func() { f.b.Return(fn) })

	expectUnchanged(t, f.m, ZeroInitWorkgroupMemoryPass, nil)
}

func TestZeroInitWorkgroupMemory_ScalarAddsLocalIndex(t *testing.T) {
	f := newFixture()
	wg := f.global("wgvar", ir.AddressSpaceWorkgroup, f.ty.I32())
	fn := f.b.ComputeFunction("main", 1, 1, 1)
	f.b.With(fn.Block(), func() {
		f.b.Load(wg.Result())
		f.b.Return(fn)
	})

	runPass(t, f.m, ZeroInitWorkgroupMemoryPass, nil)

	expectDisassembly(t, f.m, `
%b1 = block {  # root
  %wgvar:ptr<workgroup, i32, read_write> = var
}

%main = @compute @workgroup_size(1, 1, 1) func(%1:u32 [@local_invocation_index]):void -> %b2 {
  %b2 = block {
    %2:bool = eq %1, 0u
    if %2 [t: %b3] {  # if_1
      %b3 = block {  # true
        store %wgvar, 0i
        exit_if  # if_1
      }
    }
    %3:void = workgroupBarrier
    %4:i32 = load %wgvar
    ret
  }
}
`)
}

func TestZeroInitWorkgroupMemory_NestedArray(t *testing.T) {
	f := newFixture()
	arr := f.ty.Array(f.ty.Array(f.ty.I32(), 2), 3)
	wg := f.global("arr", ir.AddressSpaceWorkgroup, arr)
	fn := f.b.ComputeFunction("main", 2, 1, 1)
	idx := f.b.FunctionParam("idx", f.ty.U32())
	idx.Attributes = ir.Builtin(ir.BuiltinLocalInvocationIndex)
	fn.SetParams(idx)
	f.b.With(fn.Block(), func() {
		f.b.Load(wg.Result())
		f.b.Return(fn)
	})

	runPass(t, f.m, ZeroInitWorkgroupMemoryPass, nil)

	expectDisassembly(t, f.m, `
%b1 = block {  # root
  %arr:ptr<workgroup, array<array<i32, 2>, 3>, read_write> = var
}

%main = @compute @workgroup_size(2, 1, 1) func(%idx:u32 [@local_invocation_index]):void -> %b2 {
  %b2 = block {
    loop [i: %b3, b: %b4, c: %b5] {  # loop_1
      %b3 = block {  # initializer
        next_iteration %idx  # -> %b4
      }
      %b4 = block (%1:u32) {  # body
        %2:bool = gte %1, 6u
        if %2 [t: %b6] {  # if_1
          %b6 = block {  # true
            exit_loop  # loop_1
          }
        }
        %3:u32 = mod %1, 3u
        %4:u32 = div %1, 3u
        %5:ptr<workgroup, i32, read_write> = access %arr, %3, %4
        store %5, 0i
        continue  # -> %b5
      }
      %b5 = block {  # continuing
        %6:u32 = add %1, 2u
        next_iteration %6  # -> %b4
      }
    }
    %7:void = workgroupBarrier
    %8:array<array<i32, 2>, 3> = load %arr
    ret
  }
}
`)
}

func TestZeroInitWorkgroupMemory_StructWithAtomicThroughCall(t *testing.T) {
	f := newFixture()
	s := f.ty.Struct("S", []ir.StructMemberDesc{
		{Name: "count", Type: f.ty.Atomic(f.ty.U32())},
		{Name: "total", Type: f.ty.I32()},
	})
	wg := f.global("s", ir.AddressSpaceWorkgroup, s)

	touch := f.b.Function("touch", f.ty.Void(), ir.StageNone)
	f.b.With(touch.Block(), func() {
		total := f.b.Access(f.ptr(ir.AddressSpaceWorkgroup, f.ty.I32()), wg.Result(), f.b.U32(1))
		f.b.Store(total.Result(), f.b.I32(1))
		f.b.Return(touch)
	})

	fn := f.b.ComputeFunction("main", 4, 1, 1)
	idx := f.b.FunctionParam("idx", f.ty.U32())
	idx.Attributes = ir.Builtin(ir.BuiltinLocalInvocationIndex)
	fn.SetParams(idx)
	f.b.With(fn.Block(), func() {
		f.b.Call(f.ty.Void(), touch)
		f.b.Return(fn)
	})

	runPass(t, f.m, ZeroInitWorkgroupMemoryPass, nil)

	expectDisassembly(t, f.m, `
S = struct @align(4) {
  count:atomic<u32> @offset(0)
  total:i32 @offset(4)
}

%b1 = block {  # root
  %s:ptr<workgroup, S, read_write> = var
}

%touch = func():void -> %b2 {
  %b2 = block {
    %1:ptr<workgroup, i32, read_write> = access %s, 1u
    store %1, 1i
    ret
  }
}

%main = @compute @workgroup_size(4, 1, 1) func(%idx:u32 [@local_invocation_index]):void -> %b3 {
  %b3 = block {
    %2:bool = eq %idx, 0u
    if %2 [t: %b4] {  # if_1
      %b4 = block {  # true
        %3:ptr<workgroup, atomic<u32>, read_write> = access %s, 0u
        %4:void = atomicStore %3, 0u
        %5:ptr<workgroup, i32, read_write> = access %s, 1u
        store %5, 0i
        exit_if  # if_1
      }
    }
    %6:void = workgroupBarrier
    %7:void = call %touch
    ret
  }
}
`)
}

func TestZeroInitWorkgroupMemory_SingleElementArrays(t *testing.T) {
	f := newFixture()
	one := f.global("one", ir.AddressSpaceWorkgroup, f.ty.Array(f.ty.I32(), 1))
	counters := f.global("counters", ir.AddressSpaceWorkgroup, f.ty.Array(f.ty.Atomic(f.ty.I32()), 1))
	fn := f.b.ComputeFunction("main", 2, 1, 1)
	idx := f.b.FunctionParam("idx", f.ty.U32())
	idx.Attributes = ir.Builtin(ir.BuiltinLocalInvocationIndex)
	fn.SetParams(idx)
	f.b.With(fn.Block(), func() {
		elem := f.b.Access(f.ptr(ir.AddressSpaceWorkgroup, f.ty.I32()), one.Result(), f.b.U32(0))
		f.b.Store(elem.Result(), f.b.I32(1))
		counter := f.b.Access(f.ptr(ir.AddressSpaceWorkgroup, f.ty.Atomic(f.ty.I32())), counters.Result(), f.b.U32(0))
		f.b.CallBuiltin(f.ty.Void(), ir.BuiltinAtomicStore, counter.Result(), f.b.I32(1))
		f.b.Return(fn)
	})

	runPass(t, f.m, ZeroInitWorkgroupMemoryPass, nil)
	mustValidate(t, f.m)

	expectDisassembly(t, f.m, `
%b1 = block {  # root
  %one:ptr<workgroup, array<i32, 1>, read_write> = var
  %counters:ptr<workgroup, array<atomic<i32>, 1>, read_write> = var
}

%main = @compute @workgroup_size(2, 1, 1) func(%idx:u32 [@local_invocation_index]):void -> %b2 {
  %b2 = block {
    %1:bool = eq %idx, 0u
    if %1 [t: %b3] {  # if_1
      %b3 = block {  # true
        %2:ptr<workgroup, i32, read_write> = access %one, 0u
        store %2, 0i
        %3:ptr<workgroup, atomic<i32>, read_write> = access %counters, 0u
        %4:void = atomicStore %3, 0i
        exit_if  # if_1
      }
    }
    %5:void = workgroupBarrier
    %6:ptr<workgroup, i32, read_write> = access %one, 0u
    store %6, 1i
    %7:ptr<workgroup, atomic<i32>, read_write> = access %counters, 0u
    %8:void = atomicStore %7, 1i
    ret
  }
}
`)
}

func TestZeroInitWorkgroupMemory_MissingWorkgroupSize(t *testing.T) {
	f := newFixture()
	wg := f.global("wgvar", ir.AddressSpaceWorkgroup, f.ty.I32())
	fn := f.b.Function("main", f.ty.Void(), ir.StageCompute)
	f.b.With(fn.Block(), func() {
		f.b.Load(wg.Result())
		f.b.Return(fn)
	})

	err := (&Manager{Passes: []Transform{ZeroInitWorkgroupMemoryPass}}).Run(f.m, nil, nil)
	var ice *ir.ICE
	if !errors.As(err, &ice) {
		t.Fatalf("expected an internal compiler error, got %v", err)
	}
	if !strings.Contains(ice.Message, "has no workgroup size") {
		t.Errorf("unexpected message: %s", ice.Message)
	}
}
