package transform

import (
	"testing"

	"github.com/gogpu/coreir/ir"
)

func TestPtrToRef_VarLoadStoreAndCall(t *testing.T) {
	f := newFixture()
	i32 := f.ty.I32()
	ptrType := f.ptr(ir.AddressSpaceFunction, i32)

	bar := f.b.Function("bar", i32, ir.StageNone)
	p := f.b.FunctionParam("p", ptrType)
	bar.SetParams(p)
	f.b.With(bar.Block(), func() {
		load := f.b.Load(p)
		f.b.Return(bar, load.Result())
	})

	foo := f.b.Function("foo", i32, ir.StageNone)
	f.b.With(foo.Block(), func() {
		v := f.b.VarNamed("v", ptrType, nil)
		f.b.Store(v.Result(), f.b.I32(1))
		call := f.b.Call(i32, bar, v.Result())
		f.b.Return(foo, call.Result())
	})

	runPass(t, f.m, PtrToRefPass, nil)

	expectDisassembly(t, f.m, `
%bar = func(%p:ptr<function, i32, read_write>):i32 -> %b1 {
  %b1 = block {
    %1:ref<function, i32, read_write> = ptr-to-ref %p
    %2:i32 = load %1
    ret %2
  }
}

%foo = func():i32 -> %b2 {
  %b2 = block {
    %v:ref<function, i32, read_write> = var
    store %v, 1i
    %3:ptr<function, i32, read_write> = ref-to-ptr %v
    %4:i32 = call %bar, %3
    ret %4
  }
}
`)
	if !f.m.Capabilities.Has(ir.AllowRefTypes) {
		t.Error("module should allow reference types")
	}
}

func TestPtrToRef_AccessAndLet(t *testing.T) {
	f := newFixture()
	i32 := f.ty.I32()
	g := f.global("g", ir.AddressSpacePrivate, f.ty.Array(i32, 4))
	fn := f.b.Function("foo", i32, ir.StageNone)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(f.ptr(ir.AddressSpacePrivate, i32), g.Result(), f.b.U32(1))
		l := f.b.Let(access.Result())
		f.m.SetName(l.Result(), "l")
		load := f.b.Load(l.Result())
		f.b.Return(fn, load.Result())
	})

	runPass(t, f.m, PtrToRefPass, nil)

	want := `
%b1 = block {  # root
  %g:ref<private, array<i32, 4>, read_write> = var
}

%foo = func():i32 -> %b2 {
  %b2 = block {
    %1:ref<private, i32, read_write> = access %g, 1u
    %2:ptr<private, i32, read_write> = ref-to-ptr %1
    %l:ptr<private, i32, read_write> = let %2
    %3:ref<private, i32, read_write> = ptr-to-ref %l
    %4:i32 = load %3
    ret %4
  }
}
`
	expectDisassembly(t, f.m, want)

	// Running the pass again finds nothing left to convert.
	expectUnchanged(t, f.m, PtrToRefPass, nil)
}

func TestPtrToRef_ValuesUntouched(t *testing.T) {
	f := newFixture()
	arr := f.ty.Array(f.ty.I32(), 4)
	fn := f.b.Function("foo", f.ty.I32(), ir.StageNone)
	a := f.b.FunctionParam("arr", arr)
	fn.SetParams(a)
	f.b.With(fn.Block(), func() {
		access := f.b.Access(f.ty.I32(), a, f.b.U32(2))
		f.b.Return(fn, access.Result())
	})

	expectUnchanged(t, f.m, PtrToRefPass, nil)
}
