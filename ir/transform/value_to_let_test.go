package transform

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/coreir/ir"
)

func TestValueToLet_NoModify_InlinableChain(t *testing.T) {
	f := newFixture()
	v := f.global("v", ir.AddressSpacePrivate, f.ty.I32())
	fn := f.b.Function("foo", f.ty.Void(), ir.StageNone)
	f.b.With(fn.Block(), func() {
		load := f.b.Load(v.Result())
		add := f.b.Add(f.ty.I32(), load.Result(), f.b.I32(1))
		f.b.Store(v.Result(), add.Result())
		f.b.Return(fn)
	})

	expectUnchanged(t, f.m, ValueToLetPass, nil)
}

func TestValueToLet_StoreFlushesPendingLoad(t *testing.T) {
	f := newFixture()
	v := f.global("v", ir.AddressSpacePrivate, f.ty.I32())
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	f.b.With(fn.Block(), func() {
		load := f.b.Load(v.Result())
		f.b.Store(v.Result(), f.b.I32(2))
		add := f.b.Add(f.ty.I32(), load.Result(), f.b.I32(1))
		f.b.Return(fn, add.Result())
	})

	runPass(t, f.m, ValueToLetPass, nil)

	expectDisassembly(t, f.m, `
%b1 = block {  # root
  %v:ptr<private, i32, read_write> = var
}

%foo = func():i32 -> %b2 {
  %b2 = block {
    %1:i32 = load %v
    %2:i32 = let %1
    store %v, 2i
    %3:i32 = add %2, 1i
    ret %3
  }
}
`)
}

func TestValueToLet_MultipleUses(t *testing.T) {
	f := newFixture()
	v := f.global("v", ir.AddressSpacePrivate, f.ty.I32())
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	f.b.With(fn.Block(), func() {
		load := f.b.Load(v.Result())
		add := f.b.Add(f.ty.I32(), load.Result(), load.Result())
		f.b.Return(fn, add.Result())
	})

	runPass(t, f.m, ValueToLetPass, nil)

	expectDisassembly(t, f.m, `
%b1 = block {  # root
  %v:ptr<private, i32, read_write> = var
}

%foo = func():i32 -> %b2 {
  %b2 = block {
    %1:i32 = load %v
    %2:i32 = let %1
    %3:i32 = add %2, %2
    ret %3
  }
}
`)
}

func TestValueToLet_UseInAnotherBlock(t *testing.T) {
	f := newFixture()
	v := f.global("v", ir.AddressSpacePrivate, f.ty.I32())
	fn := f.b.Function("foo", f.ty.Void(), ir.StageNone)
	cond := f.b.FunctionParam("cond", f.ty.Bool())
	fn.SetParams(cond)
	f.b.With(fn.Block(), func() {
		load := f.b.Load(v.Result())
		i := f.b.If(cond)
		f.b.With(i.True(), func() {
			f.b.Store(v.Result(), load.Result())
			f.b.ExitIf(i)
		})
		f.b.Return(fn)
	})

	runPass(t, f.m, ValueToLetPass, nil)

	expectDisassembly(t, f.m, `
%b1 = block {  # root
  %v:ptr<private, i32, read_write> = var
}

%foo = func(%cond:bool):void -> %b2 {
  %b2 = block {
    %1:i32 = load %v
    %2:i32 = let %1
    if %cond [t: %b3] {  # if_1
      %b3 = block {  # true
        store %v, %2
        exit_if  # if_1
      }
    }
    ret
  }
}
`)
}

func TestValueToLet_CallResults(t *testing.T) {
	f := newFixture()
	i32 := f.ty.I32()
	get := f.b.Function("get", i32, ir.StageNone)
	f.b.With(get.Block(), func() { f.b.Return(get, f.b.I32(1)) })

	fn := f.b.Function("foo", i32, ir.StageNone)
	f.b.With(fn.Block(), func() {
		a := f.b.Call(i32, get)
		b := f.b.Call(i32, get)
		// The first call must be bound before the second one runs.
		sum := f.b.Add(i32, a.Result(), b.Result())
		f.b.Return(fn, sum.Result())
	})

	runPass(t, f.m, ValueToLetPass, nil)

	expectDisassembly(t, f.m, `
%get = func():i32 -> %b1 {
  %b1 = block {
    ret 1i
  }
}

%foo = func():i32 -> %b2 {
  %b2 = block {
    %1:i32 = call %get
    %2:i32 = let %1
    %3:i32 = call %get
    %4:i32 = add %2, %3
    ret %4
  }
}
`)
}

func TestValueToLet_Idempotent(t *testing.T) {
	f := newFixture()
	v := f.global("v", ir.AddressSpacePrivate, f.ty.I32())
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	cond := f.b.FunctionParam("cond", f.ty.Bool())
	fn.SetParams(cond)
	f.b.With(fn.Block(), func() {
		a := f.b.Load(v.Result())
		b := f.b.Load(v.Result())
		f.b.Store(v.Result(), a.Result())
		i := f.b.If(cond)
		f.b.With(i.True(), func() {
			f.b.Store(v.Result(), b.Result())
			f.b.ExitIf(i)
		})
		sum := f.b.Add(f.ty.I32(), a.Result(), b.Result())
		f.b.Return(fn, sum.Result())
	})

	runPass(t, f.m, ValueToLetPass, nil)
	once := ir.Disassemble(f.m)
	runPass(t, f.m, ValueToLetPass, nil)
	if diff := cmp.Diff(once, ir.Disassemble(f.m)); diff != "" {
		t.Errorf("second run changed the module (-once +twice):\n%s", diff)
	}
}
