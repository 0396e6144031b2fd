package ir

import (
	"strconv"
	"strings"
)

// Type is an interned, immutable type descriptor.
//
// Types are created by a TypeManager and compared by identity: two
// structurally identical types obtained from the same manager are the same
// pointer.
type Type interface {
	// String returns the type in the disassembly syntax.
	String() string
	// Size returns the host-shareable size in bytes.
	Size() uint32
	// Align returns the host-shareable alignment in bytes.
	Align() uint32
	typeKind()
}

// ScalarKind identifies a scalar type.
type ScalarKind uint8

const (
	ScalarBool ScalarKind = iota
	ScalarI32
	ScalarU32
	ScalarF32
	ScalarF16
)

var scalarNames = [...]string{
	ScalarBool: "bool",
	ScalarI32:  "i32",
	ScalarU32:  "u32",
	ScalarF32:  "f32",
	ScalarF16:  "f16",
}

func (k ScalarKind) String() string {
	if int(k) < len(scalarNames) {
		return scalarNames[k]
	}
	return "scalar(" + strconv.Itoa(int(k)) + ")"
}

// AddressSpace is the memory region a pointer or variable lives in.
type AddressSpace uint8

const (
	AddressSpaceUndefined AddressSpace = iota
	AddressSpaceFunction
	AddressSpacePrivate
	AddressSpaceWorkgroup
	AddressSpaceUniform
	AddressSpaceStorage
	AddressSpaceHandle
	AddressSpaceIn
	AddressSpaceOut
)

var addressSpaceNames = [...]string{
	AddressSpaceUndefined: "undefined",
	AddressSpaceFunction:  "function",
	AddressSpacePrivate:   "private",
	AddressSpaceWorkgroup: "workgroup",
	AddressSpaceUniform:   "uniform",
	AddressSpaceStorage:   "storage",
	AddressSpaceHandle:    "handle",
	AddressSpaceIn:        "__in",
	AddressSpaceOut:       "__out",
}

func (s AddressSpace) String() string {
	if int(s) < len(addressSpaceNames) {
		return addressSpaceNames[s]
	}
	return "space(" + strconv.Itoa(int(s)) + ")"
}

// HostShareable reports whether values in the address space have a fixed
// memory layout visible to the host.
func (s AddressSpace) HostShareable() bool {
	return s == AddressSpaceUniform || s == AddressSpaceStorage
}

// AccessMode is the access mode of a pointer.
type AccessMode uint8

const (
	AccessUndefined AccessMode = iota
	AccessRead
	AccessWrite
	AccessReadWrite
)

func (a AccessMode) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessReadWrite:
		return "read_write"
	default:
		return "undefined"
	}
}

// Void is the type of instructions that produce no value.
type Void struct{}

// Scalar is a bool, integer or floating-point type.
type Scalar struct {
	Kind ScalarKind
}

// Vector is a vector of 2, 3 or 4 scalars.
type Vector struct {
	Elem  *Scalar
	Width uint32
}

// Matrix is a column-major matrix of floating-point values.
type Matrix struct {
	Columns uint32
	Rows    uint32
	Elem    *Scalar
}

// Array is a fixed-size or runtime-sized array.
// A Count of zero denotes a runtime-sized array.
type Array struct {
	Elem   Type
	Count  uint32
	Stride uint32
}

// StructMember is a single member of a Struct.
type StructMember struct {
	Name       string
	Index      uint32
	Type       Type
	Offset     uint32
	Size       uint32
	Align      uint32
	attributes IOAttributes
}

// Attributes returns the shader IO attributes of the member.
func (m *StructMember) Attributes() IOAttributes { return m.attributes }

// SetAttributes replaces the shader IO attributes of the member.
// This is the only mutation permitted on an interned type.
func (m *StructMember) SetAttributes(a IOAttributes) { m.attributes = a }

// Struct is a nominal structure type.
type Struct struct {
	Name    string
	Members []*StructMember
	// Block marks the structure as a block-decorated interface type.
	Block bool
	size  uint32
	align uint32
}

// Pointer is a pointer to memory in an address space.
type Pointer struct {
	Space     AddressSpace
	StoreType Type
	Access    AccessMode
}

// Reference is a memory view in an address space.
type Reference struct {
	Space     AddressSpace
	StoreType Type
	Access    AccessMode
}

// Atomic wraps an i32 or u32 for atomic access.
type Atomic struct {
	Elem *Scalar
}

// Sampler is a texture sampler.
type Sampler struct {
	Comparison bool
}

// TextureDimension is the dimensionality of a texture.
type TextureDimension uint8

const (
	Texture1D TextureDimension = iota
	Texture2D
	Texture2DArray
	Texture3D
	TextureCube
	TextureCubeArray
)

var textureDimNames = [...]string{"1d", "2d", "2d_array", "3d", "cube", "cube_array"}

func (d TextureDimension) String() string {
	if int(d) < len(textureDimNames) {
		return textureDimNames[d]
	}
	return "dim(" + strconv.Itoa(int(d)) + ")"
}

// SampledTexture is a texture read through a sampler.
type SampledTexture struct {
	Dim     TextureDimension
	Sampled *Scalar
}

// StorageTexture is a texture accessed with texel loads and stores.
type StorageTexture struct {
	Dim    TextureDimension
	Format string
	Access AccessMode
}

// Tuple is an ordered list of types. It never describes a value; it is used
// to compare result lists with branch argument lists.
type Tuple struct {
	Elems []Type
}

func (*Void) typeKind()           {}
func (*Scalar) typeKind()         {}
func (*Vector) typeKind()         {}
func (*Matrix) typeKind()         {}
func (*Array) typeKind()          {}
func (*Struct) typeKind()         {}
func (*Pointer) typeKind()        {}
func (*Reference) typeKind()      {}
func (*Atomic) typeKind()         {}
func (*Sampler) typeKind()        {}
func (*SampledTexture) typeKind() {}
func (*StorageTexture) typeKind() {}
func (*Tuple) typeKind()          {}

func (*Void) String() string     { return "void" }
func (t *Scalar) String() string { return t.Kind.String() }

func (t *Vector) String() string {
	return "vec" + strconv.FormatUint(uint64(t.Width), 10) + "<" + t.Elem.String() + ">"
}

func (t *Matrix) String() string {
	return "mat" + strconv.FormatUint(uint64(t.Columns), 10) + "x" +
		strconv.FormatUint(uint64(t.Rows), 10) + "<" + t.Elem.String() + ">"
}

func (t *Array) String() string {
	if t.Count == 0 {
		return "array<" + t.Elem.String() + ">"
	}
	return "array<" + t.Elem.String() + ", " + strconv.FormatUint(uint64(t.Count), 10) + ">"
}

func (t *Struct) String() string { return t.Name }

func (t *Pointer) String() string {
	return "ptr<" + t.Space.String() + ", " + t.StoreType.String() + ", " + t.Access.String() + ">"
}

func (t *Reference) String() string {
	return "ref<" + t.Space.String() + ", " + t.StoreType.String() + ", " + t.Access.String() + ">"
}

func (t *Atomic) String() string { return "atomic<" + t.Elem.String() + ">" }

func (t *Sampler) String() string {
	if t.Comparison {
		return "sampler_comparison"
	}
	return "sampler"
}

func (t *SampledTexture) String() string {
	return "texture_" + t.Dim.String() + "<" + t.Sampled.String() + ">"
}

func (t *StorageTexture) String() string {
	return "texture_storage_" + t.Dim.String() + "<" + t.Format + ", " + t.Access.String() + ">"
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "tuple<" + strings.Join(parts, ", ") + ">"
}

func (*Void) Size() uint32  { return 0 }
func (*Void) Align() uint32 { return 0 }

func (t *Scalar) Size() uint32 {
	if t.Kind == ScalarF16 {
		return 2
	}
	return 4
}

func (t *Scalar) Align() uint32 { return t.Size() }

func (t *Vector) Size() uint32 { return t.Elem.Size() * t.Width }

func (t *Vector) Align() uint32 {
	if t.Width == 2 {
		return t.Elem.Size() * 2
	}
	return t.Elem.Size() * 4
}

func (t *Matrix) column() *Vector { return &Vector{Elem: t.Elem, Width: t.Rows} }

func (t *Matrix) Size() uint32 {
	col := t.column()
	return roundUp(col.Align(), col.Size()) * t.Columns
}

func (t *Matrix) Align() uint32 { return t.column().Align() }

func (t *Array) Size() uint32 {
	if t.Count == 0 {
		return t.Stride
	}
	return t.Stride * t.Count
}

func (t *Array) Align() uint32 { return t.Elem.Align() }

func (t *Struct) Size() uint32  { return t.size }
func (t *Struct) Align() uint32 { return t.align }

func (*Pointer) Size() uint32    { return 0 }
func (*Pointer) Align() uint32   { return 0 }
func (*Reference) Size() uint32  { return 0 }
func (*Reference) Align() uint32 { return 0 }

func (t *Atomic) Size() uint32  { return t.Elem.Size() }
func (t *Atomic) Align() uint32 { return t.Elem.Align() }

func (*Sampler) Size() uint32         { return 0 }
func (*Sampler) Align() uint32        { return 0 }
func (*SampledTexture) Size() uint32  { return 0 }
func (*SampledTexture) Align() uint32 { return 0 }
func (*StorageTexture) Size() uint32  { return 0 }
func (*StorageTexture) Align() uint32 { return 0 }
func (*Tuple) Size() uint32           { return 0 }
func (*Tuple) Align() uint32          { return 0 }

func roundUp(align, size uint32) uint32 {
	if align == 0 {
		return size
	}
	return (size + align - 1) / align * align
}

// IsScalar reports whether t is a scalar of the given kind.
func IsScalar(t Type, kind ScalarKind) bool {
	s, ok := t.(*Scalar)
	return ok && s.Kind == kind
}

// IsInteger reports whether t is an i32 or u32 scalar or vector.
func IsInteger(t Type) bool {
	s := ElementScalar(t)
	return s != nil && (s.Kind == ScalarI32 || s.Kind == ScalarU32)
}

// IsSignedInteger reports whether t is an i32 scalar or vector.
func IsSignedInteger(t Type) bool {
	s := ElementScalar(t)
	return s != nil && s.Kind == ScalarI32
}

// ElementScalar returns the scalar of a scalar or vector type, or nil.
func ElementScalar(t Type) *Scalar {
	switch t := t.(type) {
	case *Scalar:
		return t
	case *Vector:
		return t.Elem
	}
	return nil
}

// MemoryView is implemented by Pointer and Reference.
type MemoryView interface {
	Type
	AddressSpace() AddressSpace
	Store() Type
	AccessMode() AccessMode
}

func (t *Pointer) AddressSpace() AddressSpace   { return t.Space }
func (t *Pointer) Store() Type                  { return t.StoreType }
func (t *Pointer) AccessMode() AccessMode       { return t.Access }
func (t *Reference) AddressSpace() AddressSpace { return t.Space }
func (t *Reference) Store() Type                { return t.StoreType }
func (t *Reference) AccessMode() AccessMode     { return t.Access }

// ElementCount returns the number of indexable elements of t, or zero for
// runtime-sized arrays and non-composite types.
func ElementCount(t Type) uint32 {
	switch t := t.(type) {
	case *Vector:
		return t.Width
	case *Matrix:
		return t.Columns
	case *Array:
		return t.Count
	case *Struct:
		return uint32(len(t.Members))
	}
	return 0
}

// ContainsAtomic reports whether t is, or transitively contains, an atomic.
func ContainsAtomic(t Type) bool {
	switch t := t.(type) {
	case *Atomic:
		return true
	case *Array:
		return ContainsAtomic(t.Elem)
	case *Struct:
		for _, m := range t.Members {
			if ContainsAtomic(m.Type) {
				return true
			}
		}
	}
	return false
}
