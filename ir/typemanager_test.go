package ir

import "testing"

func TestTypeManager_ScalarDeduplication(t *testing.T) {
	types := NewTypeManager()

	f1 := types.F32()
	f2 := types.Scalar(ScalarF32)

	if f1 != f2 {
		t.Errorf("Expected same pointer for identical scalar types, got %p and %p", f1, f2)
	}
	if types.Count() != 1 {
		t.Errorf("Expected 1 type, got %d", types.Count())
	}
}

func TestTypeManager_DifferentScalars(t *testing.T) {
	types := NewTypeManager()

	all := []Type{types.Bool(), types.I32(), types.U32(), types.F32(), types.F16()}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[i] == all[j] {
				t.Errorf("Expected different types, got %s == %s", all[i], all[j])
			}
		}
	}
	if types.Count() != 5 {
		t.Errorf("Expected 5 types, got %d", types.Count())
	}
}

func TestTypeManager_CompositeDeduplication(t *testing.T) {
	types := NewTypeManager()
	f32 := types.F32()

	if types.Vec(f32, 4) != types.Vec(f32, 4) {
		t.Error("vec4<f32> should be interned")
	}
	if types.Vec(f32, 4) == types.Vec(f32, 3) {
		t.Error("vec4<f32> should differ from vec3<f32>")
	}
	if types.Array(types.I32(), 4) != types.Array(types.I32(), 4) {
		t.Error("array<i32, 4> should be interned")
	}
	if types.Array(types.I32(), 4) == types.RuntimeArray(types.I32()) {
		t.Error("array<i32, 4> should differ from array<i32>")
	}
	p1 := types.Ptr(AddressSpaceFunction, f32, AccessReadWrite)
	p2 := types.Ptr(AddressSpaceFunction, f32, AccessReadWrite)
	if p1 != p2 {
		t.Error("pointer types should be interned")
	}
	if types.Ptr(AddressSpacePrivate, f32, AccessReadWrite) == p1 {
		t.Error("pointers in different address spaces should differ")
	}
	if Type(types.Ref(AddressSpaceFunction, f32, AccessReadWrite)) == Type(p1) {
		t.Error("reference and pointer types should differ")
	}
	if types.Tuple(f32, types.I32()) != types.Tuple(f32, types.I32()) {
		t.Error("tuple types should be interned")
	}
}

func TestTypeManager_Strings(t *testing.T) {
	types := NewTypeManager()
	f32 := types.F32()

	tests := []struct {
		typ  Type
		want string
	}{
		{types.Void(), "void"},
		{types.Vec(f32, 4), "vec4<f32>"},
		{types.Mat(2, 3, f32), "mat2x3<f32>"},
		{types.Array(types.I32(), 4), "array<i32, 4>"},
		{types.RuntimeArray(types.U32()), "array<u32>"},
		{types.Ptr(AddressSpaceFunction, types.I32(), AccessReadWrite), "ptr<function, i32, read_write>"},
		{types.Ref(AddressSpaceStorage, f32, AccessRead), "ref<storage, f32, read>"},
		{types.Ptr(AddressSpaceIn, f32, AccessRead), "ptr<__in, f32, read>"},
		{types.Atomic(types.U32()), "atomic<u32>"},
		{types.Tuple(f32, types.Bool()), "tuple<f32, bool>"},
		{types.Sampler(true), "sampler_comparison"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestTypeManager_Layout(t *testing.T) {
	types := NewTypeManager()
	f32 := types.F32()

	tests := []struct {
		name        string
		typ         Type
		size, align uint32
	}{
		{"f32", f32, 4, 4},
		{"f16", types.F16(), 2, 2},
		{"vec2<f32>", types.Vec(f32, 2), 8, 8},
		{"vec3<f32>", types.Vec(f32, 3), 12, 16},
		{"mat4x4<f32>", types.Mat(4, 4, f32), 64, 16},
		{"mat3x3<f32>", types.Mat(3, 3, f32), 48, 16},
		{"array<vec3<f32>, 2>", types.Array(types.Vec(f32, 3), 2), 32, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.typ.Size() != tt.size {
				t.Errorf("Size() = %d, want %d", tt.typ.Size(), tt.size)
			}
			if tt.typ.Align() != tt.align {
				t.Errorf("Align() = %d, want %d", tt.typ.Align(), tt.align)
			}
		})
	}
}

func TestTypeManager_Struct(t *testing.T) {
	types := NewTypeManager()
	f32 := types.F32()

	s := types.Struct("S", []StructMemberDesc{
		{Name: "a", Type: f32},
		{Name: "b", Type: types.Vec(f32, 3)},
		{Name: "c", Type: f32, Attributes: Location(1)},
	})

	wantOffsets := []uint32{0, 16, 28}
	for i, m := range s.Members {
		if m.Offset != wantOffsets[i] {
			t.Errorf("member %s offset = %d, want %d", m.Name, m.Offset, wantOffsets[i])
		}
		if m.Index != uint32(i) {
			t.Errorf("member %s index = %d, want %d", m.Name, m.Index, i)
		}
	}
	if s.Size() != 32 || s.Align() != 16 {
		t.Errorf("struct layout = (%d, %d), want (32, 16)", s.Size(), s.Align())
	}
	if s.Members[2].Attributes().Location == nil {
		t.Error("member c lost its location")
	}

	again := types.Struct("S", []StructMemberDesc{
		{Name: "a", Type: f32},
		{Name: "b", Type: types.Vec(f32, 3)},
		{Name: "c", Type: f32},
	})
	if again != s {
		t.Error("redeclaring a struct with the same members should return it")
	}
	if got, ok := types.StructByName("S"); !ok || got != s {
		t.Error("StructByName did not find S")
	}

	ice := catchICE(func() {
		types.Struct("S", []StructMemberDesc{{Name: "a", Type: types.I32()}})
	})
	if ice == nil {
		t.Error("redeclaring S with different members should be an internal compiler error")
	}
}

func TestTypeManager_Element(t *testing.T) {
	types := NewTypeManager()
	f32 := types.F32()
	mat := types.Mat(3, 2, f32)

	if got := types.Element(mat, 0); got != types.Vec(f32, 2) {
		t.Errorf("Element(mat3x2) = %v, want vec2<f32>", got)
	}
	if got := types.Element(types.Vec(f32, 4), 3); got != f32 {
		t.Errorf("Element(vec4) = %v, want f32", got)
	}
	if got := types.Element(f32, 0); got != nil {
		t.Errorf("Element(f32) = %v, want nil", got)
	}
	if got := types.MatchWidth(types.U32(), types.Vec(f32, 3)); got != types.Vec(types.U32(), 3) {
		t.Errorf("MatchWidth = %v, want vec3<u32>", got)
	}
}

func TestTypeManager_Owns(t *testing.T) {
	a, b := NewTypeManager(), NewTypeManager()
	if !a.Owns(a.F32()) {
		t.Error("manager should own its own types")
	}
	if a.Owns(b.F32()) {
		t.Error("manager should not own another manager's types")
	}
}

func TestMemoryView_AccessMode(t *testing.T) {
	types := NewTypeManager()
	f32 := types.F32()
	views := []MemoryView{
		types.Ptr(AddressSpaceStorage, f32, AccessRead),
		types.Ref(AddressSpaceStorage, f32, AccessRead),
	}
	for _, v := range views {
		if v.AccessMode() != AccessRead {
			t.Errorf("%s: got access %s, want read", v, v.AccessMode())
		}
		if v.AddressSpace() != AddressSpaceStorage || v.Store() != f32 {
			t.Errorf("%s: wrong address space or store type", v)
		}
	}
	if got := types.Ptr(AddressSpaceFunction, f32, AccessReadWrite).String(); got != "ptr<function, f32, read_write>" {
		t.Errorf("got %q", got)
	}
	if AccessMode(99).String() != "undefined" {
		t.Error("unknown access modes print as undefined")
	}
}
