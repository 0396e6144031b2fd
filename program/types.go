package program

import (
	"fmt"
	"strings"
)

// Type is a resolved type.
type Type interface {
	String() string
	typeNode()
}

// ScalarKind is the kind of a scalar type.
type ScalarKind uint8

const (
	Bool ScalarKind = iota
	I32
	U32
	F32
	F16
)

var scalarNames = [...]string{Bool: "bool", I32: "i32", U32: "u32", F32: "f32", F16: "f16"}

// Scalar is a bool, integer or floating-point type.
type Scalar struct {
	Kind ScalarKind
}

// Vector is a vector of 2, 3 or 4 scalars.
type Vector struct {
	Elem  *Scalar
	Width uint32
}

// Matrix is a column-major matrix.
type Matrix struct {
	Columns uint32
	Rows    uint32
	Elem    *Scalar
}

// Array is a fixed-size array, or a runtime-sized array if Count is zero.
type Array struct {
	Elem  Type
	Count uint32
}

// Atomic wraps an i32 or u32.
type Atomic struct {
	Elem *Scalar
}

// Pointer is the type of a pointer value, e.g. a function parameter of type
// ptr<function, i32>.
type Pointer struct {
	Space  AddressSpace
	Elem   Type
	Access AccessMode
}

// Sampler is a sampler or comparison sampler.
type Sampler struct {
	Comparison bool
}

// Texture is a sampled texture. Dim is "1d", "2d", "2d_array", "3d",
// "cube" or "cube_array".
type Texture struct {
	Dim     string
	Sampled *Scalar
}

// StorageTexture is a storage texture with a texel format.
type StorageTexture struct {
	Dim    string
	Format string
	Access AccessMode
}

// AddressSpace names the memory a variable lives in.
type AddressSpace string

const (
	SpaceFunction  AddressSpace = "function"
	SpacePrivate   AddressSpace = "private"
	SpaceWorkgroup AddressSpace = "workgroup"
	SpaceUniform   AddressSpace = "uniform"
	SpaceStorage   AddressSpace = "storage"
	SpaceHandle    AddressSpace = "handle"
)

// AccessMode is the access mode of a memory view.
type AccessMode string

const (
	AccessDefault   AccessMode = ""
	AccessRead      AccessMode = "read"
	AccessWrite     AccessMode = "write"
	AccessReadWrite AccessMode = "read_write"
)

func (*Scalar) typeNode()         {}
func (*Vector) typeNode()         {}
func (*Matrix) typeNode()         {}
func (*Array) typeNode()          {}
func (*Atomic) typeNode()         {}
func (*Pointer) typeNode()        {}
func (*Sampler) typeNode()        {}
func (*Texture) typeNode()        {}
func (*StorageTexture) typeNode() {}
func (*Struct) typeNode()         {}

func (s *Scalar) String() string { return scalarNames[s.Kind] }
func (v *Vector) String() string { return fmt.Sprintf("vec%d<%s>", v.Width, v.Elem) }
func (m *Matrix) String() string { return fmt.Sprintf("mat%dx%d<%s>", m.Columns, m.Rows, m.Elem) }

func (a *Array) String() string {
	if a.Count == 0 {
		return fmt.Sprintf("array<%s>", a.Elem)
	}
	return fmt.Sprintf("array<%s, %d>", a.Elem, a.Count)
}

func (a *Atomic) String() string { return "atomic<" + a.Elem.String() + ">" }

func (p *Pointer) String() string {
	parts := []string{string(p.Space), p.Elem.String()}
	if p.Access != AccessDefault {
		parts = append(parts, string(p.Access))
	}
	return "ptr<" + strings.Join(parts, ", ") + ">"
}

func (s *Sampler) String() string {
	if s.Comparison {
		return "sampler_comparison"
	}
	return "sampler"
}

func (t *Texture) String() string { return "texture_" + t.Dim + "<" + t.Sampled.String() + ">" }

func (t *StorageTexture) String() string {
	return "texture_storage_" + t.Dim + "<" + t.Format + ", " + string(t.Access) + ">"
}

func (s *Struct) String() string { return s.Name }

// Member returns the member called name and its index, or nil.
func (s *Struct) Member(name string) (*StructMember, int) {
	for i, m := range s.Members {
		if m.Name == name {
			return m, i
		}
	}
	return nil, -1
}

// Shared scalar types.
var (
	BoolType = &Scalar{Kind: Bool}
	I32Type  = &Scalar{Kind: I32}
	U32Type  = &Scalar{Kind: U32}
	F32Type  = &Scalar{Kind: F32}
	F16Type  = &Scalar{Kind: F16}
)

// Vec returns the vector type of width elements of elem.
func Vec(elem *Scalar, width uint32) *Vector { return &Vector{Elem: elem, Width: width} }
