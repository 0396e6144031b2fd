package transform

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/coreir/ir"
)

// expectDisassembly compares the disassembly of m against want, which starts
// with a newline so that goldens can be written as raw strings.
func expectDisassembly(t *testing.T, m *ir.Module, want string) {
	t.Helper()
	got := "\n" + ir.Disassemble(m)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("disassembly mismatch (-want +got):\n%s", diff)
	}
}

func mustValidate(t *testing.T, m *ir.Module) {
	t.Helper()
	if err := ir.Check(m); err != nil {
		t.Fatalf("module is invalid:\n%v\n%s", err, ir.Disassemble(m))
	}
}

// runPass runs p through a validating manager.
func runPass(t *testing.T, m *ir.Module, p Transform, inputs *DataMap) *DataMap {
	t.Helper()
	outputs := NewDataMap()
	mgr := &Manager{Validate: true, Passes: []Transform{p}}
	if err := mgr.Run(m, inputs, outputs); err != nil {
		t.Fatalf("%s failed: %v\n%s", p.Name(), err, ir.Disassemble(m))
	}
	return outputs
}

// expectUnchanged runs p and checks that the disassembly did not change.
func expectUnchanged(t *testing.T, m *ir.Module, p Transform, inputs *DataMap) {
	t.Helper()
	before := ir.Disassemble(m)
	runPass(t, m, p, inputs)
	if diff := cmp.Diff(before, ir.Disassemble(m)); diff != "" {
		t.Errorf("%s modified the module (-before +after):\n%s", p.Name(), diff)
	}
}

type fixture struct {
	m  *ir.Module
	b  *ir.Builder
	ty *ir.TypeManager
}

func newFixture() *fixture {
	m := ir.NewModule()
	return &fixture{m: m, b: ir.NewBuilder(m), ty: m.Types}
}

func (f *fixture) ptr(space ir.AddressSpace, t ir.Type) *ir.Pointer {
	return f.ty.Ptr(space, t, ir.AccessReadWrite)
}

// global declares a named module-scope variable.
func (f *fixture) global(name string, space ir.AddressSpace, t ir.Type) *ir.Var {
	var v *ir.Var
	f.b.With(f.b.RootBlock(), func() {
		v = f.b.VarNamed(name, f.ptr(space, t), nil)
	})
	return v
}
