package ir

// TypeManager interns types so that each unique type exists exactly once.
// Structurally identical requests return the same pointer; structures are
// nominal and keyed by name.
type TypeManager struct {
	types   []Type
	typeMap map[string]Type
	owned   map[Type]struct{}
}

// NewTypeManager creates an empty type manager.
func NewTypeManager() *TypeManager {
	return &TypeManager{
		types:   make([]Type, 0, 16),
		typeMap: make(map[string]Type, 16),
		owned:   make(map[Type]struct{}, 16),
	}
}

// StructMemberDesc describes a member passed to TypeManager.Struct.
type StructMemberDesc struct {
	Name       string
	Type       Type
	Attributes IOAttributes
}

func (m *TypeManager) getOrCreate(key string, create func() Type) Type {
	if t, ok := m.typeMap[key]; ok {
		return t
	}
	t := create()
	m.types = append(m.types, t)
	m.typeMap[key] = t
	m.owned[t] = struct{}{}
	return t
}

// Void returns the void type.
func (m *TypeManager) Void() *Void {
	return m.getOrCreate("void", func() Type { return &Void{} }).(*Void)
}

// Scalar returns the scalar type of the given kind.
func (m *TypeManager) Scalar(kind ScalarKind) *Scalar {
	return m.getOrCreate(kind.String(), func() Type { return &Scalar{Kind: kind} }).(*Scalar)
}

// Bool returns the bool type.
func (m *TypeManager) Bool() *Scalar { return m.Scalar(ScalarBool) }

// I32 returns the i32 type.
func (m *TypeManager) I32() *Scalar { return m.Scalar(ScalarI32) }

// U32 returns the u32 type.
func (m *TypeManager) U32() *Scalar { return m.Scalar(ScalarU32) }

// F32 returns the f32 type.
func (m *TypeManager) F32() *Scalar { return m.Scalar(ScalarF32) }

// F16 returns the f16 type.
func (m *TypeManager) F16() *Scalar { return m.Scalar(ScalarF16) }

// Vec returns the vector of width elements of type elem.
func (m *TypeManager) Vec(elem *Scalar, width uint32) *Vector {
	if width < 2 || width > 4 {
		Panicf("vector width must be 2, 3 or 4, got %d", width)
	}
	v := &Vector{Elem: m.Scalar(elem.Kind), Width: width}
	return m.getOrCreate(v.String(), func() Type { return v }).(*Vector)
}

// Mat returns the matrix type with the given shape.
func (m *TypeManager) Mat(columns, rows uint32, elem *Scalar) *Matrix {
	t := &Matrix{Columns: columns, Rows: rows, Elem: m.Scalar(elem.Kind)}
	return m.getOrCreate(t.String(), func() Type { return t }).(*Matrix)
}

// Array returns the fixed-size array type of count elements. A count of zero
// returns the runtime-sized array.
func (m *TypeManager) Array(elem Type, count uint32) *Array {
	t := &Array{Elem: elem, Count: count, Stride: roundUp(elem.Align(), elem.Size())}
	return m.getOrCreate(t.String(), func() Type { return t }).(*Array)
}

// RuntimeArray returns the runtime-sized array of elem.
func (m *TypeManager) RuntimeArray(elem Type) *Array { return m.Array(elem, 0) }

// Ptr returns a pointer type.
func (m *TypeManager) Ptr(space AddressSpace, store Type, access AccessMode) *Pointer {
	t := &Pointer{Space: space, StoreType: store, Access: access}
	return m.getOrCreate(t.String(), func() Type { return t }).(*Pointer)
}

// Ref returns a reference type.
func (m *TypeManager) Ref(space AddressSpace, store Type, access AccessMode) *Reference {
	t := &Reference{Space: space, StoreType: store, Access: access}
	return m.getOrCreate(t.String(), func() Type { return t }).(*Reference)
}

// Atomic returns the atomic wrapper of elem.
func (m *TypeManager) Atomic(elem *Scalar) *Atomic {
	t := &Atomic{Elem: m.Scalar(elem.Kind)}
	return m.getOrCreate(t.String(), func() Type { return t }).(*Atomic)
}

// Sampler returns the sampler or comparison sampler type.
func (m *TypeManager) Sampler(comparison bool) *Sampler {
	t := &Sampler{Comparison: comparison}
	return m.getOrCreate(t.String(), func() Type { return t }).(*Sampler)
}

// SampledTexture returns a sampled texture type.
func (m *TypeManager) SampledTexture(dim TextureDimension, sampled *Scalar) *SampledTexture {
	t := &SampledTexture{Dim: dim, Sampled: m.Scalar(sampled.Kind)}
	return m.getOrCreate(t.String(), func() Type { return t }).(*SampledTexture)
}

// StorageTexture returns a storage texture type.
func (m *TypeManager) StorageTexture(dim TextureDimension, format string, access AccessMode) *StorageTexture {
	t := &StorageTexture{Dim: dim, Format: format, Access: access}
	return m.getOrCreate(t.String(), func() Type { return t }).(*StorageTexture)
}

// Tuple returns the tuple of the given element types.
func (m *TypeManager) Tuple(elems ...Type) *Tuple {
	t := &Tuple{Elems: append([]Type(nil), elems...)}
	return m.getOrCreate(t.String(), func() Type { return t }).(*Tuple)
}

// Struct returns the structure called name, creating it with the given
// members and a host-shareable layout on first use. Redeclaring a name with
// different members is an internal compiler error.
func (m *TypeManager) Struct(name string, members []StructMemberDesc) *Struct {
	key := "struct " + name
	if existing, ok := m.typeMap[key]; ok {
		s := existing.(*Struct)
		if !sameMembers(s, members) {
			Panicf("struct %q redeclared with different members", name)
		}
		return s
	}
	s := &Struct{Name: name}
	var offset, align uint32
	for i, md := range members {
		a, sz := md.Type.Align(), md.Type.Size()
		offset = roundUp(a, offset)
		s.Members = append(s.Members, &StructMember{
			Name:       md.Name,
			Index:      uint32(i),
			Type:       md.Type,
			Offset:     offset,
			Size:       sz,
			Align:      a,
			attributes: md.Attributes,
		})
		offset += sz
		if a > align {
			align = a
		}
	}
	s.align = align
	s.size = roundUp(align, offset)
	return m.getOrCreate(key, func() Type { return s }).(*Struct)
}

func sameMembers(s *Struct, members []StructMemberDesc) bool {
	if len(s.Members) != len(members) {
		return false
	}
	for i, md := range members {
		if s.Members[i].Name != md.Name || s.Members[i].Type != md.Type {
			return false
		}
	}
	return true
}

// StructByName returns the structure called name, if declared.
func (m *TypeManager) StructByName(name string) (*Struct, bool) {
	t, ok := m.typeMap["struct "+name]
	if !ok {
		return nil, false
	}
	return t.(*Struct), true
}

// Element returns the type selected by indexing t with the constant index
// i, or nil if t cannot be indexed.
func (m *TypeManager) Element(t Type, i uint32) Type {
	switch t := t.(type) {
	case *Vector:
		return t.Elem
	case *Matrix:
		return m.Vec(t.Elem, t.Rows)
	case *Array:
		return t.Elem
	case *Struct:
		if int(i) < len(t.Members) {
			return t.Members[i].Type
		}
	}
	return nil
}

// MatchWidth returns elem if like is a scalar, or the vector of elem with
// the width of like if like is a vector.
func (m *TypeManager) MatchWidth(elem *Scalar, like Type) Type {
	if v, ok := like.(*Vector); ok {
		return m.Vec(elem, v.Width)
	}
	return elem
}

// All returns every interned type in creation order.
func (m *TypeManager) All() []Type {
	return m.types
}

// Structs returns every declared structure in creation order.
func (m *TypeManager) Structs() []*Struct {
	var out []*Struct
	for _, t := range m.types {
		if s, ok := t.(*Struct); ok {
			out = append(out, s)
		}
	}
	return out
}

// Owns reports whether t was created by this manager.
func (m *TypeManager) Owns(t Type) bool {
	_, ok := m.owned[t]
	return ok
}

// Count returns the number of unique types.
func (m *TypeManager) Count() int {
	return len(m.types)
}
